package models

import "time"

// Snapshot is one published state of a transition graph.
type Snapshot struct {
	Graph       string       `json:"graph"`
	GeneratedAt time.Time    `json:"generated_at"`
	Events      int          `json:"events"`
	Weights     []string     `json:"weights"`
	Norm        string       `json:"norm"`
	Thresholds  ThresholdMap `json:"thresholds,omitempty"`
	MinMax      ThresholdMap `json:"min_max"`
	Edges       []Edge       `json:"edges"`
}
