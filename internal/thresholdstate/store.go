// Package thresholdstate keeps the last applied thresholds of a graph and
// the global min/max they were chosen against, so that a rebuild can re-fit
// them to the new data.
package thresholdstate

import (
	"context"
	"sync"
	"time"

	"transitiongraph/pkg/models"
)

// State is what a graph remembers between rebuilds.
type State struct {
	Thresholds models.ThresholdMap `json:"thresholds"`
	MinMax     models.ThresholdMap `json:"min_max"`
	UpdatedAt  time.Time           `json:"updated_at,omitempty"`
}

// Empty reports whether no thresholds were stored yet.
func (s State) Empty() bool {
	return len(s.Thresholds) == 0
}

// Store loads and saves per-graph state.
type Store interface {
	Load(ctx context.Context, graph string) (State, error)
	Save(ctx context.Context, graph string, state State) error
	Close() error
}

// MemoryStore keeps state in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	graphs map[string]State
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{graphs: make(map[string]State), now: time.Now}
}

// Load returns the stored state, or an empty state for unknown graphs.
func (m *MemoryStore) Load(ctx context.Context, graph string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.graphs[graph]
	return State{Thresholds: st.Thresholds.Copy(), MinMax: st.MinMax.Copy(), UpdatedAt: st.UpdatedAt}, nil
}

// Save replaces the state of graph.
func (m *MemoryStore) Save(ctx context.Context, graph string, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graphs[graph] = State{Thresholds: state.Thresholds.Copy(), MinMax: state.MinMax.Copy(), UpdatedAt: m.now().UTC()}
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
