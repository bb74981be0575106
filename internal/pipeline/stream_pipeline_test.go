package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"transitiongraph/internal/eventstream"
	"transitiongraph/pkg/models"
)

type sliceSource struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (s *sliceSource) Pop(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	if len(s.payloads) > 0 {
		p := s.payloads[0]
		s.payloads = s.payloads[1:]
		s.mu.Unlock()
		return p, nil
	}
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(10 * time.Millisecond):
		return nil, nil
	}
}

func (s *sliceSource) Close() error { return nil }

type captureWriter struct {
	snaps chan *models.Snapshot
}

func (w *captureWriter) WriteSnapshot(snap *models.Snapshot) error {
	w.snaps <- snap
	return nil
}

func (w *captureWriter) Close() error { return nil }

type nameFilter struct{ drop string }

func (f nameFilter) Keep(event *models.Event) bool { return event.EventName != f.drop }

func TestStreamPipelineRebuildsOnFlush(t *testing.T) {
	source := &sliceSource{payloads: [][]byte{
		[]byte(`{"user_id":"A","event":"e1","timestamp":"2026-03-01T09:00:00Z"}`),
		[]byte(`{"user_id":"A","event":"noise","timestamp":"2026-03-01T09:00:30Z"}`),
		[]byte(`{"user_id":"A","event":"e2","timestamp":"2026-03-01T09:01:00Z"}`),
		[]byte(`not json`),
		[]byte(`{"user_id":"B","event":"e1","timestamp":"2026-03-01T09:02:00Z"}`),
		[]byte(`{"user_id":"B","event":"e2","timestamp":"2026-03-01T09:03:00Z"}`),
	}}
	writer := &captureWriter{snaps: make(chan *models.Snapshot, 16)}
	builder := NewBuilder(BuilderConfig{Graph: "web", Weights: []string{"user_id"}}, nil, nil)

	p := NewStreamPipeline(source, eventstream.DefaultSchema(), nameFilter{drop: "noise"}, builder, writer, nil, Options{
		Workers:       1,
		BatchSize:     4,
		FlushInterval: 20 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	var last *models.Snapshot
	for last == nil || last.Events < 4 {
		select {
		case last = <-writer.snaps:
		case <-deadline:
			cancel()
			t.Fatalf("timed out waiting for snapshot, last=%+v", last)
		}
	}
	cancel()
	if err := <-errCh; err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	if len(last.Edges) != 1 {
		t.Fatalf("expected a single e1->e2 edge, got %+v", last.Edges)
	}
	edge := last.Edges[0]
	if edge.From != "e1" || edge.To != "e2" || edge.Weights["user_id"] != 2 {
		t.Fatalf("unexpected edge %+v", edge)
	}
}
