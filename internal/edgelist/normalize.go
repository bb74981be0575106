package edgelist

import (
	"fmt"
	"math"
	"strings"

	"transitiongraph/internal/eventstream"
)

// NormType selects how raw edge weights are rescaled.
type NormType string

const (
	// NormNone keeps raw aggregate values.
	NormNone NormType = ""
	// NormFull divides by one global denominator.
	NormFull NormType = "full"
	// NormNode divides by a denominator per source event.
	NormNode NormType = "node"
)

func (n NormType) String() string {
	if n == NormNone {
		return "none"
	}
	return string(n)
}

// Validate returns ErrInvalidArgument for unknown modes.
func (n NormType) Validate() error {
	switch n {
	case NormNone, NormFull, NormNode:
		return nil
	default:
		return fmt.Errorf("%w: unknown normalization type: %q", ErrInvalidArgument, string(n))
	}
}

// ParseNormType parses a configured mode. Blank and "none" mean NormNone.
func ParseNormType(raw string) (NormType, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" || v == "none" {
		return NormNone, nil
	}
	n := NormType(v)
	if err := n.Validate(); err != nil {
		return NormNone, err
	}
	return n, nil
}

// MetricTable is the edge table of a single metric.
type MetricTable struct {
	Metric string
	Values map[Pair]float64
}

// computeMetric runs extraction and normalization for one metric. Pairs of
// non-identity metrics are reindexed onto the pairs of the entity sequence;
// pairs the metric never witnesses stay NaN until the custom zero-fill.
func computeMetric(stream *eventstream.Stream, metric string, norm NormType, universe map[Pair]struct{}) MetricTable {
	schema := stream.Schema()
	kind := schema.Classify(metric)

	bigrams := ExtractTransitions(stream, schema.AdjacencyKey(metric))
	abs := aggregate(stream, bigrams, metric, kind)
	if kind != eventstream.IdentityCount {
		abs = reindex(abs, universe)
	}

	values := normalize(stream, bigrams, abs, metric, kind, norm)

	if kind == eventstream.Custom {
		for pair, v := range values {
			if math.IsNaN(v) {
				v = 0
			}
			if norm == NormNone {
				v = math.Trunc(v)
			}
			values[pair] = v
		}
	}

	return MetricTable{Metric: metric, Values: values}
}

func reindex(values map[Pair]float64, universe map[Pair]struct{}) map[Pair]float64 {
	out := make(map[Pair]float64, len(universe))
	for pair := range universe {
		if v, ok := values[pair]; ok {
			out[pair] = v
			continue
		}
		out[pair] = math.NaN()
	}
	return out
}

// normalize divides raw values according to norm. Row and entity counts
// are divided by the total of the aggregates in scope, so that their weights
// form a distribution; custom columns are divided by the number of distinct
// column values in scope. A zero or missing denominator yields NaN.
func normalize(stream *eventstream.Stream, bigrams []Transition, abs map[Pair]float64, metric string, kind eventstream.ColumnKind, norm NormType) map[Pair]float64 {
	out := make(map[Pair]float64, len(abs))
	switch norm {
	case NormFull:
		var denom float64
		if kind == eventstream.Custom {
			denom = countDistinct(stream, bigrams, metric, kind)
		} else {
			denom = total(abs)
		}
		for pair, v := range abs {
			out[pair] = divide(v, denom)
		}
	case NormNode:
		denoms := nodeDenominators(stream, bigrams, abs, metric, kind)
		for pair, v := range abs {
			denom, ok := denoms[pair.From]
			if !ok {
				out[pair] = math.NaN()
				continue
			}
			out[pair] = divide(v, denom)
		}
	default:
		for pair, v := range abs {
			out[pair] = v
		}
	}
	return out
}

func nodeDenominators(stream *eventstream.Stream, bigrams []Transition, abs map[Pair]float64, metric string, kind eventstream.ColumnKind) map[string]float64 {
	if kind != eventstream.Custom {
		denoms := make(map[string]float64, len(abs))
		for pair, v := range abs {
			if math.IsNaN(v) {
				continue
			}
			denoms[pair.From] += v
		}
		return denoms
	}

	bySource := make(map[string][]Transition, len(abs))
	for _, tr := range bigrams {
		bySource[tr.From] = append(bySource[tr.From], tr)
	}
	denoms := make(map[string]float64, len(bySource))
	for from, trs := range bySource {
		denoms[from] = countDistinct(stream, trs, metric, kind)
	}
	return denoms
}

func total(values map[Pair]float64) float64 {
	sum := 0.0
	for _, v := range values {
		if !math.IsNaN(v) {
			sum += v
		}
	}
	return sum
}

func divide(v, denom float64) float64 {
	if denom == 0 || math.IsNaN(denom) {
		return math.NaN()
	}
	return v / denom
}
