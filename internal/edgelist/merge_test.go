package edgelist

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"transitiongraph/pkg/models"
)

func TestMergeTablesFirstValueWins(t *testing.T) {
	tables := []MetricTable{
		{Metric: "event_id", Values: map[Pair]float64{{"a", "b"}: 3}},
		{Metric: "user_id", Values: map[Pair]float64{{"a", "b"}: 2}},
		{Metric: "event_id", Values: map[Pair]float64{{"a", "b"}: 99, {"b", "c"}: 7}},
	}

	got := MergeTables(tables)
	want := []models.Edge{
		{From: "a", To: "b", Weights: map[string]float64{"event_id": 3, "user_id": 2}},
		{From: "b", To: "c", Weights: map[string]float64{}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected merge (-want +got):\n%s", diff)
	}
}

func TestMergeTablesKeepsUnionOfPairs(t *testing.T) {
	tables := []MetricTable{
		{Metric: "event_id", Values: map[Pair]float64{{"x", "y"}: 1}},
		{Metric: "session_id", Values: map[Pair]float64{{"y", "z"}: 4}},
	}

	got := MergeTables(tables)
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if _, ok := got[0].Weight("session_id"); ok {
		t.Fatalf("expected session_id to be absent on x->y, got %+v", got[0])
	}
	if v, ok := got[1].Weight("session_id"); !ok || v != 4 {
		t.Fatalf("expected session_id=4 on y->z, got %+v", got[1])
	}
	for _, edge := range got {
		if edge.OutOfThreshold {
			t.Fatalf("expected flags to start unset, got %+v", edge)
		}
	}
}

func TestMergeTablesEmpty(t *testing.T) {
	if got := MergeTables(nil); len(got) != 0 {
		t.Fatalf("expected empty table, got %+v", got)
	}
}
