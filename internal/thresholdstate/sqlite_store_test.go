package thresholdstate

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"transitiongraph/pkg/models"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "thresholds.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	empty, err := store.Load(ctx, "web")
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if !empty.Empty() {
		t.Fatalf("expected empty state, got %+v", empty)
	}

	want := State{
		Thresholds: models.ThresholdMap{"event_id": {Min: 2, Max: math.Inf(1)}},
		MinMax:     models.ThresholdMap{"event_id": {Min: 1, Max: 7}, "user_id": {Min: 0.25, Max: 0.5}},
	}
	if err := store.Save(ctx, "web", want); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, "mobile", State{Thresholds: models.ThresholdMap{"event_id": {Min: 0, Max: 1}}}); err != nil {
		t.Fatalf("save other graph: %v", err)
	}

	got, err := store.Load(ctx, "web")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(want.Thresholds, got.Thresholds); diff != "" {
		t.Fatalf("thresholds mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.MinMax, got.MinMax); diff != "" {
		t.Fatalf("min/max mismatch (-want +got):\n%s", diff)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatalf("expected updated_at to be set")
	}

	if err := store.Save(ctx, "web", State{MinMax: models.ThresholdMap{"event_id": {Min: 1, Max: 9}}}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err = store.Load(ctx, "web")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Thresholds != nil || got.MinMax["event_id"].Max != 9 {
		t.Fatalf("expected save to replace the previous state, got %+v", got)
	}
}
