package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"transitiongraph/internal/logger"
)

const namespace = "transitiongraph"

// Metrics groups the collectors of one process. A nil *Metrics records nothing.
type Metrics struct {
	EventsIngested prometheus.Counter
	EventsDropped  *prometheus.CounterVec
	Builds         *prometheus.CounterVec
	BuildDuration  prometheus.Histogram
	Edges          prometheus.Gauge
	EdgesVisible   prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_ingested_total",
			Help:      "Events appended to the event stream.",
		}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events that did not reach the event stream, by reason.",
		}, []string{"reason"}),
		Builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edgelist_builds_total",
			Help:      "Edgelist calculations, by result.",
		}, []string{"result"}),
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "edgelist_build_duration_seconds",
			Help:      "Time spent calculating the edgelist.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		Edges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "edges",
			Help:      "Edges in the last calculated edgelist.",
		}),
		EdgesVisible: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "edges_visible",
			Help:      "Edges within every threshold in the last calculated edgelist.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.EventsIngested, m.EventsDropped, m.Builds, m.BuildDuration, m.Edges, m.EdgesVisible)
	}
	return m
}

// AddIngested counts events appended to the stream.
func (m *Metrics) AddIngested(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.EventsIngested.Add(float64(n))
}

// AddDropped counts events rejected for reason.
func (m *Metrics) AddDropped(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.EventsDropped.WithLabelValues(reason).Add(float64(n))
}

// ObserveBuild records one edgelist calculation.
func (m *Metrics) ObserveBuild(d time.Duration, total, visible int, err error) {
	if m == nil {
		return
	}
	m.BuildDuration.Observe(d.Seconds())
	if err != nil {
		m.Builds.WithLabelValues("error").Inc()
		return
	}
	m.Builds.WithLabelValues("ok").Inc()
	m.Edges.Set(float64(total))
	m.EdgesVisible.Set(float64(visible))
}

// Serve exposes gatherer on addr until ctx is done.
func Serve(ctx context.Context, addr, path string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("Metrics endpoint listening on %s%s", addr, path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
