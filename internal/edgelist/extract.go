package edgelist

import (
	"transitiongraph/internal/eventstream"
	"transitiongraph/pkg/models"
)

// Pair identifies a directed edge between two event names.
type Pair struct {
	From string
	To   string
}

// Transition is a pair of consecutive events of one partition. Row is the
// event the transition starts from; metric values are read from it.
type Transition struct {
	Pair
	Row *models.Event
}

// ExtractTransitions partitions the stream by adjacencyKey and pairs every
// row with the row that follows it in the same partition. Rows without a
// partition value belong to no sequence. Rows with an empty event name keep
// their position but produce no transition on either side.
func ExtractTransitions(stream *eventstream.Stream, adjacencyKey string) []Transition {
	if stream == nil || stream.Len() == 0 {
		return nil
	}

	partitions := make(map[string][]*models.Event, 256)
	order := make([]string, 0, 256)
	for _, ev := range stream.Events() {
		key := stream.Value(ev, adjacencyKey)
		if key == "" {
			continue
		}
		if _, ok := partitions[key]; !ok {
			order = append(order, key)
		}
		partitions[key] = append(partitions[key], ev)
	}

	nameCol := stream.Schema().EventName
	out := make([]Transition, 0, stream.Len())
	for _, key := range order {
		seq := partitions[key]
		for i := 0; i+1 < len(seq); i++ {
			from := stream.Value(seq[i], nameCol)
			to := stream.Value(seq[i+1], nameCol)
			if from == "" || to == "" {
				continue
			}
			out = append(out, Transition{Pair: Pair{From: from, To: to}, Row: seq[i]})
		}
	}
	return out
}

// pairSet returns the distinct pairs of a transition list.
func pairSet(transitions []Transition) map[Pair]struct{} {
	out := make(map[Pair]struct{}, len(transitions))
	for _, tr := range transitions {
		out[tr.Pair] = struct{}{}
	}
	return out
}

// aggregate reduces transitions per pair: row count for the identity column,
// distinct non-empty values of the metric column otherwise.
func aggregate(stream *eventstream.Stream, transitions []Transition, metric string, kind eventstream.ColumnKind) map[Pair]float64 {
	out := make(map[Pair]float64, len(transitions)/2+1)
	if kind == eventstream.IdentityCount {
		for _, tr := range transitions {
			out[tr.Pair]++
		}
		return out
	}

	seen := make(map[Pair]map[string]struct{}, len(transitions)/2+1)
	for _, tr := range transitions {
		values, ok := seen[tr.Pair]
		if !ok {
			values = make(map[string]struct{}, 4)
			seen[tr.Pair] = values
		}
		if v := stream.Value(tr.Row, metric); v != "" {
			values[v] = struct{}{}
		}
	}
	for pair, values := range seen {
		out[pair] = float64(len(values))
	}
	return out
}

// countDistinct counts distinct non-empty metric values over transitions,
// or the transitions themselves for the identity column.
func countDistinct(stream *eventstream.Stream, transitions []Transition, metric string, kind eventstream.ColumnKind) float64 {
	if kind == eventstream.IdentityCount {
		return float64(len(transitions))
	}
	values := make(map[string]struct{}, len(transitions))
	for _, tr := range transitions {
		if v := stream.Value(tr.Row, metric); v != "" {
			values[v] = struct{}{}
		}
	}
	return float64(len(values))
}
