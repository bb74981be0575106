package pipeline

import (
	"context"
	"time"

	"transitiongraph/internal/edgelist"
	"transitiongraph/internal/eventstream"
	"transitiongraph/internal/logger"
	"transitiongraph/internal/metrics"
	"transitiongraph/internal/thresholdstate"
	"transitiongraph/pkg/models"
)

// BuilderConfig configures edge table builds.
type BuilderConfig struct {
	Graph      string
	Weights    []string
	Norm       edgelist.NormType
	Thresholds models.ThresholdMap
	IncludeAll bool
}

// Builder turns an event stream into a snapshot. When a state store is set,
// thresholds saved by the previous build are re-fitted to the new table and
// take precedence over the configured ones.
type Builder struct {
	cfg     BuilderConfig
	store   thresholdstate.Store
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewBuilder creates a builder. store and m may be nil.
func NewBuilder(cfg BuilderConfig, store thresholdstate.Store, m *metrics.Metrics) *Builder {
	return &Builder{
		cfg:     cfg,
		store:   store,
		metrics: m,
		now:     time.Now,
	}
}

// Build calculates the edge table of stream and applies thresholds.
func (b *Builder) Build(ctx context.Context, stream *eventstream.Stream) (*models.Snapshot, error) {
	start := time.Now()

	el := edgelist.New(stream)
	if _, err := el.Calculate(b.cfg.Weights, b.cfg.Norm, nil); err != nil {
		b.metrics.ObserveBuild(time.Since(start), 0, 0, err)
		return nil, err
	}

	thresholds := b.thresholds(ctx, el)
	el.UpdateThreshold(thresholds)
	minMax := el.MinMax()

	if b.store != nil {
		state := thresholdstate.State{Thresholds: thresholds, MinMax: minMax}
		if err := b.store.Save(ctx, b.cfg.Graph, state); err != nil {
			logger.Warnf("Failed to save threshold state for %s: %v", b.cfg.Graph, err)
		}
	}

	all := el.Edges()
	visible := el.FilteredEdges()
	b.metrics.ObserveBuild(time.Since(start), len(all), len(visible), nil)

	edges := visible
	if b.cfg.IncludeAll {
		edges = all
	}

	logger.Infof("Graph %s built: events=%d edges=%d visible=%d",
		b.cfg.Graph, stream.Len(), len(all), len(visible))

	return &models.Snapshot{
		Graph:       b.cfg.Graph,
		GeneratedAt: b.now().UTC(),
		Events:      stream.Len(),
		Weights:     el.WeightCols(),
		Norm:        b.cfg.Norm.String(),
		Thresholds:  thresholds,
		MinMax:      minMax,
		Edges:       edges,
	}, nil
}

func (b *Builder) thresholds(ctx context.Context, el *edgelist.Edgelist) models.ThresholdMap {
	if b.store == nil {
		return b.cfg.Thresholds.Copy()
	}
	state, err := b.store.Load(ctx, b.cfg.Graph)
	if err != nil {
		logger.Warnf("Failed to load threshold state for %s: %v", b.cfg.Graph, err)
		return b.cfg.Thresholds.Copy()
	}
	if state.Empty() {
		return b.cfg.Thresholds.Copy()
	}
	return el.FitThreshold(state.Thresholds, state.MinMax)
}
