package models

import (
	"encoding/json"
	"math"
)

// Threshold is an inclusive [Min, Max] range for one metric.
type Threshold struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Contains reports whether v lies within the inclusive range.
// NaN is never contained.
func (t Threshold) Contains(v float64) bool {
	return t.Min <= v && v <= t.Max
}

type thresholdJSON struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

// MarshalJSON encodes an open (infinite) bound as null.
func (t Threshold) MarshalJSON() ([]byte, error) {
	var out thresholdJSON
	if !math.IsInf(t.Min, 0) && !math.IsNaN(t.Min) {
		lo := t.Min
		out.Min = &lo
	}
	if !math.IsInf(t.Max, 0) && !math.IsNaN(t.Max) {
		hi := t.Max
		out.Max = &hi
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a null or missing bound as open.
func (t *Threshold) UnmarshalJSON(data []byte) error {
	var in thresholdJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	t.Min, t.Max = math.Inf(-1), math.Inf(1)
	if in.Min != nil {
		t.Min = *in.Min
	}
	if in.Max != nil {
		t.Max = *in.Max
	}
	return nil
}

// ThresholdMap maps a metric name to its threshold. The same shape carries
// the global (min, max) of every metric.
type ThresholdMap map[string]Threshold

// Copy returns an independent copy of the map.
func (m ThresholdMap) Copy() ThresholdMap {
	if m == nil {
		return nil
	}
	out := make(ThresholdMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
