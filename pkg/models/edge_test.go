package models

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func TestEdgeJSONEncodesNaNAsNull(t *testing.T) {
	edge := Edge{From: "a", To: "b", Weights: map[string]float64{"user_id": math.NaN(), "event_id": 2}}
	data, err := json.Marshal(edge)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"user_id":null`) {
		t.Fatalf("expected null weight, got %s", data)
	}

	var back Edge
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v, ok := back.Weight("user_id"); !ok || !math.IsNaN(v) {
		t.Fatalf("expected NaN weight, got %v", back.Weights)
	}
	if v, _ := back.Weight("event_id"); v != 2 {
		t.Fatalf("expected event_id=2, got %v", v)
	}
}

func TestEdgeCloneIsDeep(t *testing.T) {
	edge := Edge{From: "a", To: "b", Weights: map[string]float64{"w": 1}}
	clone := edge.Clone()
	clone.Weights["w"] = 5
	if edge.Weights["w"] != 1 {
		t.Fatalf("expected original weights to be untouched")
	}
}

func TestThresholdContains(t *testing.T) {
	th := Threshold{Min: 1, Max: 2}
	if !th.Contains(1) || !th.Contains(2) || th.Contains(2.5) || th.Contains(math.NaN()) {
		t.Fatalf("unexpected Contains results for %+v", th)
	}
}

func TestThresholdJSONOpenBounds(t *testing.T) {
	data, err := json.Marshal(ThresholdMap{"event_id": {Min: 2, Max: math.Inf(1)}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"event_id":{"min":2,"max":null}}` {
		t.Fatalf("unexpected encoding %s", data)
	}

	var back ThresholdMap
	if err := json.Unmarshal([]byte(`{"event_id":{"min":2,"max":null},"user_id":{"max":0.5}}`), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if th := back["event_id"]; th.Min != 2 || !math.IsInf(th.Max, 1) {
		t.Fatalf("unexpected event_id threshold %+v", th)
	}
	if th := back["user_id"]; !math.IsInf(th.Min, -1) || th.Max != 0.5 {
		t.Fatalf("unexpected user_id threshold %+v", th)
	}
}
