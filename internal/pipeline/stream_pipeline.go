package pipeline

import (
	"context"
	"strconv"
	"sync"
	"time"

	"transitiongraph/internal/eventstream"
	"transitiongraph/internal/logger"
	"transitiongraph/internal/metrics"
	"transitiongraph/internal/rules"
	"transitiongraph/internal/transform/jsonevent"
	"transitiongraph/pkg/models"
)

// Source yields raw event payloads. A nil payload with a nil error means
// nothing arrived before the source's own timeout.
type Source interface {
	Pop(ctx context.Context) ([]byte, error)
	Close() error
}

// StreamPipeline consumes events from a queue and rebuilds the edge
// table of the accumulated stream on every flush.
type StreamPipeline struct {
	source        Source
	filter        rules.Filter
	builder       *Builder
	writer        SnapshotWriter
	metrics       *metrics.Metrics
	stream        *eventstream.Stream
	workers       int
	batchSize     int
	flushInterval time.Duration
	seq           int
}

// Options configures the worker pool of the pipeline.
type Options struct {
	Workers       int
	BatchSize     int
	FlushInterval time.Duration
}

// NewStreamPipeline creates a streaming pipeline. filter and m may be nil.
func NewStreamPipeline(source Source, schema eventstream.Schema, filter rules.Filter, builder *Builder, writer SnapshotWriter, m *metrics.Metrics, opts Options) *StreamPipeline {
	if filter == nil {
		filter = &rules.NoopFilter{}
	}
	return &StreamPipeline{
		source:        source,
		filter:        filter,
		builder:       builder,
		writer:        writer,
		metrics:       m,
		stream:        eventstream.New(schema, nil),
		workers:       opts.Workers,
		batchSize:     opts.BatchSize,
		flushInterval: opts.FlushInterval,
	}
}

// Run starts the pipeline loop and blocks until ctx is done.
func (p *StreamPipeline) Run(ctx context.Context) error {
	logger.Infof("Stream pipeline started")

	if p.workers <= 0 {
		p.workers = 4
	}
	if p.batchSize <= 0 {
		p.batchSize = 1000
	}
	if p.flushInterval <= 0 {
		p.flushInterval = 2 * time.Second
	}

	msgCh := make(chan []byte, p.workers*4)
	workCh := make(chan *models.Event, p.workers*4)

	var readers sync.WaitGroup
	readers.Add(1)
	go func() {
		defer readers.Done()
		p.readLoop(ctx, msgCh)
		close(msgCh)
	}()

	var workers sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			p.workerLoop(msgCh, workCh)
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.writeLoop(ctx, workCh)
	}()

	readers.Wait()
	workers.Wait()
	close(workCh)
	<-done
	return ctx.Err()
}

// Close releases pipeline resources.
func (p *StreamPipeline) Close() error {
	if p.writer != nil {
		if err := p.writer.Close(); err != nil {
			logger.Errorf("Failed to close snapshot writer: %v", err)
		}
	}
	if p.source != nil {
		return p.source.Close()
	}
	return nil
}

func (p *StreamPipeline) readLoop(ctx context.Context, out chan<- []byte) {
	for {
		payload, err := p.source.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Errorf("Failed to pop message: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		if payload == nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		select {
		case out <- payload:
		case <-ctx.Done():
			return
		}
	}
}

func (p *StreamPipeline) workerLoop(in <-chan []byte, out chan<- *models.Event) {
	schema := p.stream.Schema()
	for payload := range in {
		event, err := jsonevent.Parse(payload, schema)
		if err != nil {
			logger.Warnf("Failed to parse event: %v", err)
			p.metrics.AddDropped("parse", 1)
			continue
		}
		if !p.filter.Keep(event) {
			p.metrics.AddDropped("rules", 1)
			continue
		}
		out <- event
	}
}

func (p *StreamPipeline) writeLoop(ctx context.Context, in <-chan *models.Event) {
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	var pending []*models.Event

	flush := func() {
		if len(pending) == 0 {
			return
		}
		for _, ev := range pending {
			p.seq++
			if ev.EventID == "" {
				ev.EventID = strconv.Itoa(p.seq)
			}
		}
		p.stream.Append(pending...)
		p.metrics.AddIngested(len(pending))
		pending = nil
		p.stream.SortByGroupTime()

		// The context may already be cancelled during the final flush.
		snap, err := p.builder.Build(context.WithoutCancel(ctx), p.stream)
		if err != nil {
			logger.Errorf("Failed to build edgelist: %v", err)
			return
		}
		for {
			if err := p.writer.WriteSnapshot(snap); err != nil {
				logger.Errorf("Failed to write snapshot: %v", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(1 * time.Second):
				}
				continue
			}
			break
		}
	}

	for {
		select {
		case <-ticker.C:
			flush()
		case ev, ok := <-in:
			if !ok {
				flush()
				return
			}
			pending = append(pending, ev)
			if len(pending) >= p.batchSize {
				flush()
			}
		}
	}
}
