// Package edgelist builds the weighted transition table of an event stream
// and manages per-metric thresholds over it.
//
// An Edgelist is not safe for concurrent use. Hosts that share one instance
// between goroutines must serialize every call, or work on a Copy.
package edgelist

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"transitiongraph/internal/eventstream"
	"transitiongraph/internal/logger"
	"transitiongraph/pkg/models"
)

// ErrInvalidArgument is wrapped by every argument validation failure.
var ErrInvalidArgument = errors.New("invalid argument")

// Edgelist holds the computed edge table of a stream.
type Edgelist struct {
	stream     *eventstream.Stream
	weightCols []string
	edges      []models.Edge
	built      bool
}

// New creates an empty edgelist over stream.
func New(stream *eventstream.Stream) *Edgelist {
	return &Edgelist{stream: stream}
}

// NewFromEdges wraps an already computed edge table. When weightCols is
// empty the metric list is taken from the weights present in edges.
func NewFromEdges(stream *eventstream.Stream, weightCols []string, edges []models.Edge) *Edgelist {
	if len(weightCols) == 0 {
		weightCols = metricsOf(edges)
	}
	return &Edgelist{
		stream:     stream,
		weightCols: append([]string(nil), weightCols...),
		edges:      cloneEdges(edges),
		built:      true,
	}
}

// ValidateWeightCol rejects blank metric names.
func ValidateWeightCol(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: weight col cannot be empty", ErrInvalidArgument)
	}
	return nil
}

// Stream returns the source stream shared with copies.
func (e *Edgelist) Stream() *eventstream.Stream {
	return e.stream
}

// WeightCols returns the active metrics.
func (e *Edgelist) WeightCols() []string {
	return append([]string(nil), e.weightCols...)
}

// Calculate recomputes the edge table for weightCols, one metric at a time,
// merges the per-metric tables and applies thresholds. Arguments are checked
// before anything is computed; on error the previous table is kept.
func (e *Edgelist) Calculate(weightCols []string, norm NormType, thresholds models.ThresholdMap) ([]models.Edge, error) {
	if err := norm.Validate(); err != nil {
		return nil, err
	}
	if len(weightCols) == 0 {
		return nil, fmt.Errorf("%w: no weight cols requested", ErrInvalidArgument)
	}
	for _, col := range weightCols {
		if err := ValidateWeightCol(col); err != nil {
			return nil, err
		}
	}
	if e.stream == nil {
		return nil, fmt.Errorf("%w: edgelist has no event stream", ErrInvalidArgument)
	}

	universe := pairSet(ExtractTransitions(e.stream, e.stream.Schema().UserID))
	tables := make([]MetricTable, 0, len(weightCols))
	for _, col := range weightCols {
		tables = append(tables, computeMetric(e.stream, col, norm, universe))
	}

	e.weightCols = append([]string(nil), weightCols...)
	e.edges = MergeTables(tables)
	e.built = true
	e.UpdateThreshold(thresholds)

	logger.Debugf("Edgelist calculated: metrics=%s norm=%s events=%d edges=%d",
		strings.Join(weightCols, ","), norm, e.stream.Len(), len(e.edges))

	return cloneEdges(e.edges), nil
}

// Edges returns a copy of the full table including the threshold flag.
func (e *Edgelist) Edges() []models.Edge {
	return cloneEdges(e.edges)
}

// Copy returns an edgelist that shares the stream but owns its own edge
// table and metric list.
func (e *Edgelist) Copy() *Edgelist {
	return &Edgelist{
		stream:     e.stream,
		weightCols: append([]string(nil), e.weightCols...),
		edges:      cloneEdges(e.edges),
		built:      e.built,
	}
}

func (e *Edgelist) hasColumn(metric string) bool {
	for _, col := range e.weightCols {
		if col == metric {
			return true
		}
	}
	return false
}

func cloneEdges(edges []models.Edge) []models.Edge {
	if edges == nil {
		return nil
	}
	out := make([]models.Edge, len(edges))
	for i, edge := range edges {
		out[i] = edge.Clone()
	}
	return out
}

func metricsOf(edges []models.Edge) []string {
	set := make(map[string]struct{}, 4)
	for _, edge := range edges {
		for k := range edge.Weights {
			set[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
