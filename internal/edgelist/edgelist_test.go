package edgelist

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"transitiongraph/internal/eventstream"
	"transitiongraph/pkg/models"
)

type row struct {
	user   string
	name   string
	fields map[string]interface{}
}

func buildStream(rows ...row) *eventstream.Stream {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	events := make([]*models.Event, 0, len(rows))
	for i, r := range rows {
		events = append(events, &models.Event{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			EventID:   fmt.Sprintf("ev-%d", i),
			UserID:    r.user,
			EventName: r.name,
			Fields:    r.fields,
		})
	}
	return eventstream.New(eventstream.DefaultSchema(), events)
}

// A: e1, e2, e3; B: e1, e3.
func scenarioStream() *eventstream.Stream {
	return buildStream(
		row{user: "A", name: "e1"},
		row{user: "A", name: "e2"},
		row{user: "A", name: "e3"},
		row{user: "B", name: "e1"},
		row{user: "B", name: "e3"},
	)
}

var approx = cmp.Options{cmpopts.EquateApprox(0, 1e-9), cmpopts.EquateNaNs(), cmpopts.EquateEmpty()}

func weightsOf(edges []models.Edge, metric string) map[Pair]float64 {
	out := make(map[Pair]float64, len(edges))
	for _, edge := range edges {
		if v, ok := edge.Weight(metric); ok {
			out[Pair{From: edge.From, To: edge.To}] = v
		}
	}
	return out
}

func TestCalculateEntityCountScenario(t *testing.T) {
	cases := []struct {
		name string
		norm NormType
		want map[Pair]float64
	}{
		{
			name: "none",
			norm: NormNone,
			want: map[Pair]float64{{"e1", "e2"}: 1, {"e2", "e3"}: 1, {"e1", "e3"}: 1},
		},
		{
			name: "full",
			norm: NormFull,
			want: map[Pair]float64{{"e1", "e2"}: 1.0 / 3, {"e2", "e3"}: 1.0 / 3, {"e1", "e3"}: 1.0 / 3},
		},
		{
			name: "node",
			norm: NormNode,
			want: map[Pair]float64{{"e1", "e2"}: 0.5, {"e2", "e3"}: 1, {"e1", "e3"}: 0.5},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			el := New(scenarioStream())
			edges, err := el.Calculate([]string{"user_id"}, tc.norm, nil)
			if err != nil {
				t.Fatalf("calculate: %v", err)
			}
			if diff := cmp.Diff(tc.want, weightsOf(edges, "user_id"), approx); diff != "" {
				t.Fatalf("unexpected weights (-want +got):\n%s", diff)
			}
			for _, edge := range edges {
				if edge.OutOfThreshold {
					t.Fatalf("expected no flagged edge, got %+v", edge)
				}
			}
		})
	}
}

func TestCalculateOrdersEdgesByPair(t *testing.T) {
	edges, err := New(scenarioStream()).Calculate([]string{"event_id"}, NormNone, nil)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	var got []Pair
	for _, edge := range edges {
		got = append(got, Pair{From: edge.From, To: edge.To})
	}
	want := []Pair{{"e1", "e2"}, {"e1", "e3"}, {"e2", "e3"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestIdentityCountCountsEveryTransition(t *testing.T) {
	s := buildStream(
		row{user: "A", name: "view"},
		row{user: "A", name: "view"},
		row{user: "A", name: "view"},
		row{user: "A", name: "buy"},
		row{user: "B", name: "view"},
		row{user: "B", name: "buy"},
		row{user: "C", name: "view"},
	)
	edges, err := New(s).Calculate([]string{"event_id", "user_id"}, NormNone, nil)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}

	wantRows := map[Pair]float64{{"view", "view"}: 2, {"view", "buy"}: 2}
	if diff := cmp.Diff(wantRows, weightsOf(edges, "event_id"), approx); diff != "" {
		t.Fatalf("unexpected identity counts (-want +got):\n%s", diff)
	}
	wantUsers := map[Pair]float64{{"view", "view"}: 1, {"view", "buy"}: 2}
	if diff := cmp.Diff(wantUsers, weightsOf(edges, "user_id"), approx); diff != "" {
		t.Fatalf("unexpected entity counts (-want +got):\n%s", diff)
	}
}

func TestCustomMetricPartitionsByItsOwnColumn(t *testing.T) {
	s := buildStream(
		row{user: "A", name: "e1", fields: map[string]interface{}{"session_id": "s1"}},
		row{user: "A", name: "e2", fields: map[string]interface{}{"session_id": "s1"}},
		row{user: "A", name: "e3", fields: map[string]interface{}{"session_id": "s2"}},
		row{user: "A", name: "e1", fields: map[string]interface{}{"session_id": "s2"}},
	)
	edges, err := New(s).Calculate([]string{"session_id"}, NormNone, nil)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	want := map[Pair]float64{{"e1", "e2"}: 1, {"e2", "e3"}: 0, {"e3", "e1"}: 1}
	if diff := cmp.Diff(want, weightsOf(edges, "session_id"), approx); diff != "" {
		t.Fatalf("unexpected session weights (-want +got):\n%s", diff)
	}
}

func TestCustomMetricDropsPairsOutsideEntitySequences(t *testing.T) {
	s := buildStream(
		row{user: "A", name: "e1", fields: map[string]interface{}{"cohort": "c1"}},
		row{user: "B", name: "e2", fields: map[string]interface{}{"cohort": "c1"}},
	)
	edges, err := New(s).Calculate([]string{"cohort"}, NormNone, nil)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if len(edges) != 0 {
		t.Fatalf("expected no edges, got %+v", edges)
	}
}

func TestCustomMetricNodeNormalizationFillsZero(t *testing.T) {
	s := buildStream(
		row{user: "A", name: "e1", fields: map[string]interface{}{"session_id": "s1"}},
		row{user: "A", name: "e2", fields: map[string]interface{}{"session_id": "s1"}},
		row{user: "A", name: "e3", fields: map[string]interface{}{"session_id": "s2"}},
	)
	edges, err := New(s).Calculate([]string{"session_id"}, NormNode, nil)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	want := map[Pair]float64{{"e1", "e2"}: 1, {"e2", "e3"}: 0}
	if diff := cmp.Diff(want, weightsOf(edges, "session_id"), approx); diff != "" {
		t.Fatalf("unexpected weights (-want +got):\n%s", diff)
	}
}

func TestSelfTransitionsAndSingleEventGroups(t *testing.T) {
	s := buildStream(
		row{user: "bot", name: "ping"},
		row{user: "bot", name: "ping"},
		row{user: "bot", name: "ping"},
		row{user: "lonely", name: "ping"},
	)
	edges, err := New(s).Calculate([]string{"event_id"}, NormNone, nil)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	want := map[Pair]float64{{"ping", "ping"}: 2}
	if diff := cmp.Diff(want, weightsOf(edges, "event_id"), approx); diff != "" {
		t.Fatalf("unexpected weights (-want +got):\n%s", diff)
	}
}

func largerStream() *eventstream.Stream {
	names := []string{"open", "search", "view", "cart", "buy", "close"}
	var rows []row
	for u := 0; u < 7; u++ {
		for i := 0; i < 4+u; i++ {
			rows = append(rows, row{
				user:   fmt.Sprintf("u%d", u),
				name:   names[(u*3+i*i)%len(names)],
				fields: map[string]interface{}{"session_id": fmt.Sprintf("u%d-s%d", u, i/3)},
			})
		}
	}
	return buildStream(rows...)
}

func TestFullNormalizationSumsToOne(t *testing.T) {
	for _, metric := range []string{"event_id", "user_id"} {
		edges, err := New(largerStream()).Calculate([]string{metric}, NormFull, nil)
		if err != nil {
			t.Fatalf("calculate %s: %v", metric, err)
		}
		sum := 0.0
		for _, edge := range edges {
			v, _ := edge.Weight(metric)
			sum += v
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("%s: expected full weights to sum to 1, got %v", metric, sum)
		}
	}
}

func TestNodeNormalizationSumsToOnePerSource(t *testing.T) {
	for _, metric := range []string{"event_id", "user_id"} {
		edges, err := New(largerStream()).Calculate([]string{metric}, NormNode, nil)
		if err != nil {
			t.Fatalf("calculate %s: %v", metric, err)
		}
		sums := make(map[string]float64)
		for _, edge := range edges {
			v, _ := edge.Weight(metric)
			sums[edge.From] += v
		}
		if len(sums) == 0 {
			t.Fatalf("%s: expected edges", metric)
		}
		for from, sum := range sums {
			if math.Abs(sum-1) > 1e-9 {
				t.Fatalf("%s: source %s: expected outgoing weights to sum to 1, got %v", metric, from, sum)
			}
		}
	}
}

func TestCalculateIsIdempotent(t *testing.T) {
	s := largerStream()
	metrics := []string{"event_id", "user_id", "session_id"}
	first, err := New(s).Calculate(metrics, NormNode, nil)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	second, err := New(s).Calculate(metrics, NormNode, nil)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if diff := cmp.Diff(first, second, cmpopts.EquateNaNs()); diff != "" {
		t.Fatalf("expected identical tables (-first +second):\n%s", diff)
	}
}

func TestCalculateRejectsInvalidArguments(t *testing.T) {
	el := New(scenarioStream())
	if _, err := el.Calculate([]string{"event_id"}, NormNone, nil); err != nil {
		t.Fatalf("calculate: %v", err)
	}

	cases := []struct {
		name    string
		metrics []string
		norm    NormType
	}{
		{name: "unknown norm", metrics: []string{"event_id"}, norm: NormType("softmax")},
		{name: "blank metric", metrics: []string{"event_id", "  "}, norm: NormNone},
		{name: "no metrics", metrics: nil, norm: NormNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			edges, err := el.Calculate(tc.metrics, tc.norm, nil)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
			if edges != nil {
				t.Fatalf("expected no partial edgelist, got %+v", edges)
			}
			if got := el.WeightCols(); len(got) != 1 || got[0] != "event_id" {
				t.Fatalf("expected previous metrics to be kept, got %v", got)
			}
		})
	}
}

func TestParseNormType(t *testing.T) {
	for raw, want := range map[string]NormType{"": NormNone, "none": NormNone, "Full": NormFull, " node ": NormNode} {
		got, err := ParseNormType(raw)
		if err != nil || got != want {
			t.Fatalf("ParseNormType(%q) = %q, %v; want %q", raw, got, err, want)
		}
	}
	if _, err := ParseNormType("global"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestDivideByZeroYieldsNaN(t *testing.T) {
	if v := divide(3, 0); !math.IsNaN(v) {
		t.Fatalf("expected NaN, got %v", v)
	}
	if v := divide(3, 4); v != 0.75 {
		t.Fatalf("expected 0.75, got %v", v)
	}
}
