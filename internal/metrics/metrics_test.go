package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveBuild(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveBuild(20*time.Millisecond, 12, 7, nil)
	m.ObserveBuild(time.Millisecond, 0, 0, errors.New("boom"))

	if got := testutil.ToFloat64(m.Builds.WithLabelValues("ok")); got != 1 {
		t.Fatalf("expected 1 ok build, got %v", got)
	}
	if got := testutil.ToFloat64(m.Builds.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected 1 failed build, got %v", got)
	}
	if got := testutil.ToFloat64(m.Edges); got != 12 {
		t.Fatalf("expected edges gauge 12, got %v", got)
	}
	if got := testutil.ToFloat64(m.EdgesVisible); got != 7 {
		t.Fatalf("expected visible gauge to keep last ok value 7, got %v", got)
	}
	if n, err := testutil.GatherAndCount(reg, "transitiongraph_edgelist_build_duration_seconds"); err != nil || n != 1 {
		t.Fatalf("expected one histogram series, got %d (%v)", n, err)
	}
}

func TestCountersAndNilMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.AddIngested(5)
	m.AddIngested(-1)
	m.AddDropped("invalid", 2)
	if got := testutil.ToFloat64(m.EventsIngested); got != 5 {
		t.Fatalf("expected 5 ingested, got %v", got)
	}
	if got := testutil.ToFloat64(m.EventsDropped.WithLabelValues("invalid")); got != 2 {
		t.Fatalf("expected 2 dropped, got %v", got)
	}

	var none *Metrics
	none.AddIngested(1)
	none.AddDropped("x", 1)
	none.ObserveBuild(time.Second, 1, 1, nil)
}
