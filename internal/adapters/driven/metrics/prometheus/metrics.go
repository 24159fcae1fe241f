// Package prometheus records engine measurements as Prometheus metrics.
package prometheus

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/ragengine/internal/core/domain"
	"github.com/custodia-labs/ragengine/internal/core/ports/driven"
	"github.com/custodia-labs/ragengine/internal/logger"
)

var log = logger.For("metrics")

const namespace = "ragengine"

// Ensure Metrics implements the interface.
var _ driven.EngineMetrics = (*Metrics)(nil)

// Metrics holds the engine collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	embeddingCalls *prometheus.CounterVec
	embeddingTexts prometheus.Counter
	embeddingTime  prometheus.Histogram
	tasksFinished  *prometheus.CounterVec
	taskDuration   prometheus.Histogram
	queueDepth     prometheus.Gauge
	degradedSearch prometheus.Counter
}

// New creates the collectors and registers them with a fresh registry.
func New() *Metrics {
	m := &Metrics{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_hits_total",
			Help:      "Texts whose embedding was served from the cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_misses_total",
			Help:      "Texts that had to be sent to the embedding provider.",
		}),
		embeddingCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Embedding provider calls by outcome.",
		}, []string{"outcome"}),
		embeddingTexts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_texts_total",
			Help:      "Texts sent to the embedding provider.",
		}),
		embeddingTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_request_seconds",
			Help:      "Latency of embedding provider calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		tasksFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_finished_total",
			Help:      "Processing tasks that reached a terminal state.",
		}, []string{"status"}),
		taskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Time from task start to completion.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_pending_tasks",
			Help:      "Tasks waiting for a worker.",
		}),
		degradedSearch: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_degraded_total",
			Help:      "Searches that returned no results because a backend failed.",
		}),
	}

	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(
		m.cacheHits, m.cacheMisses,
		m.embeddingCalls, m.embeddingTexts, m.embeddingTime,
		m.tasksFinished, m.taskDuration,
		m.queueDepth, m.degradedSearch,
	)
	return m
}

// Registry returns the registry holding the engine collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// CacheLookups records hits and misses of one embedding batch.
func (m *Metrics) CacheLookups(hits, misses int) {
	m.cacheHits.Add(float64(hits))
	m.cacheMisses.Add(float64(misses))
}

// EmbeddingCall records one provider call.
func (m *Metrics) EmbeddingCall(batchSize int, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.embeddingCalls.WithLabelValues(outcome).Inc()
	m.embeddingTexts.Add(float64(batchSize))
	m.embeddingTime.Observe(elapsed.Seconds())
}

// TaskFinished records a task reaching a terminal state.
func (m *Metrics) TaskFinished(status domain.TaskStatus, elapsed time.Duration) {
	m.tasksFinished.WithLabelValues(status.String()).Inc()
	m.taskDuration.Observe(elapsed.Seconds())
}

// QueueDepth records the number of pending tasks.
func (m *Metrics) QueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

// SearchDegraded records a search whose backend failure was swallowed.
func (m *Metrics) SearchDegraded() {
	m.degradedSearch.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving metrics on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
