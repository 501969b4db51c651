package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder publishes Prometheus metrics for the resilience core. Each
// Recorder owns its registry so separate instances (one per process, one
// per test) never collide on registration.
type Recorder struct {
	registry *prometheus.Registry
	handler  http.Handler

	selections        *prometheus.CounterVec
	selectionLatency  *prometheus.HistogramVec
	healthReports     *prometheus.CounterVec
	healthTransitions *prometheus.CounterVec
	cacheOperations   *prometheus.CounterVec
	dedupRequests     *prometheus.CounterVec
}

// NewRecorder constructs a Recorder backed by its own registry
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()

	r := &Recorder{
		registry: reg,
		selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resilience",
			Subsystem: "selection",
			Name:      "decisions_total",
			Help:      "Selection decisions by provider and selection path.",
		}, []string{"provider", "path"}),
		selectionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "resilience",
			Subsystem: "selection",
			Name:      "duration_seconds",
			Help:      "End-to-end latency of selection runs.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}, []string{"path"}),
		healthReports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resilience",
			Subsystem: "health",
			Name:      "reports_total",
			Help:      "Provider health outcomes reported to the monitor.",
		}, []string{"provider", "outcome"}),
		healthTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resilience",
			Subsystem: "health",
			Name:      "transitions_total",
			Help:      "Provider health status transitions.",
		}, []string{"provider", "from", "to"}),
		cacheOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resilience",
			Subsystem: "cache",
			Name:      "operations_total",
			Help:      "Cache lookups and stores by cache name and result.",
		}, []string{"cache", "result"}),
		dedupRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resilience",
			Subsystem: "dedup",
			Name:      "requests_total",
			Help:      "Deduplicator requests by outcome (unique or deduplicated).",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		r.selections,
		r.selectionLatency,
		r.healthReports,
		r.healthTransitions,
		r.cacheOperations,
		r.dedupRequests,
	)

	r.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return r
}

// Handler returns the HTTP handler serving this recorder's registry
func (r *Recorder) Handler() http.Handler {
	return r.handler
}

// RecordSelection records a finished selection run
func (r *Recorder) RecordSelection(provider, path string, elapsed time.Duration) {
	if provider == "" {
		provider = "none"
	}
	r.selections.WithLabelValues(provider, path).Inc()
	r.selectionLatency.WithLabelValues(path).Observe(elapsed.Seconds())
}

// RecordHealthReport records one reported provider outcome
func (r *Recorder) RecordHealthReport(provider string, healthy bool) {
	outcome := "success"
	if !healthy {
		outcome = "failure"
	}
	r.healthReports.WithLabelValues(provider, outcome).Inc()
}

// RecordHealthTransition records a provider status change
func (r *Recorder) RecordHealthTransition(provider, from, to string) {
	r.healthTransitions.WithLabelValues(provider, from, to).Inc()
}

// RecordCacheOperation records a cache lookup or store result
func (r *Recorder) RecordCacheOperation(cache, result string) {
	r.cacheOperations.WithLabelValues(cache, result).Inc()
}

// RecordDedup records a deduplicator request outcome
func (r *Recorder) RecordDedup(deduplicated bool) {
	outcome := "unique"
	if deduplicated {
		outcome = "deduplicated"
	}
	r.dedupRequests.WithLabelValues(outcome).Inc()
}
