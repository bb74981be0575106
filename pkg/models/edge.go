package models

import (
	"encoding/json"
	"math"
	"sort"
)

// Edge is a single (from, to) transition with one weight per metric.
// A metric missing from Weights has no value for this pair.
type Edge struct {
	From           string             `json:"from"`
	To             string             `json:"to"`
	Weights        map[string]float64 `json:"weights"`
	OutOfThreshold bool               `json:"out_of_threshold"`
}

// Weight returns the value for a metric and whether it is present.
func (e Edge) Weight(metric string) (float64, bool) {
	if e.Weights == nil {
		return 0, false
	}
	v, ok := e.Weights[metric]
	return v, ok
}

// Clone returns a deep copy of the edge.
func (e Edge) Clone() Edge {
	out := e
	if e.Weights != nil {
		out.Weights = make(map[string]float64, len(e.Weights))
		for k, v := range e.Weights {
			out.Weights[k] = v
		}
	}
	return out
}

type edgeJSON struct {
	From           string              `json:"from"`
	To             string              `json:"to"`
	Weights        map[string]*float64 `json:"weights"`
	OutOfThreshold bool                `json:"out_of_threshold"`
}

// MarshalJSON encodes NaN and infinite weights as null.
func (e Edge) MarshalJSON() ([]byte, error) {
	out := edgeJSON{
		From:           e.From,
		To:             e.To,
		Weights:        make(map[string]*float64, len(e.Weights)),
		OutOfThreshold: e.OutOfThreshold,
	}
	for k, v := range e.Weights {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out.Weights[k] = nil
			continue
		}
		val := v
		out.Weights[k] = &val
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes null weights back into NaN.
func (e *Edge) UnmarshalJSON(data []byte) error {
	var in edgeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	e.From = in.From
	e.To = in.To
	e.OutOfThreshold = in.OutOfThreshold
	e.Weights = make(map[string]float64, len(in.Weights))
	for k, v := range in.Weights {
		if v == nil {
			e.Weights[k] = math.NaN()
			continue
		}
		e.Weights[k] = *v
	}
	return nil
}

// SortEdges orders edges by (From, To).
func SortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
}
