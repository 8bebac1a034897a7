// Package metrics exposes the few observability signals the ambient stack
// commits to in §5's backpressure policy: queue depth per tracked-account
// kind, and per-job processing latency, both promoted to Prometheus gauges
// and a histogram behind a single registry value (no package globals),
// matching the pack's habit of wiring prometheus/client_golang as a direct
// dependency rather than hand-rolling counters.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DepthWarnThreshold is the queue-depth level above which §5's "warnings
// fire above a threshold" kicks in.
const DepthWarnThreshold = 500

// Registry bundles the swap-ingestion pipeline's Prometheus collectors. A
// zero-value Registry is not usable; build one with New.
type Registry struct {
	reg *prometheus.Registry

	queueDepth    *prometheus.GaugeVec
	jobDuration   *prometheus.HistogramVec
	jobsProcessed *prometheus.CounterVec
}

// New builds a Registry with its own prometheus.Registry (not the global
// default), so tests can construct isolated instances without colliding on
// re-registration.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		queueDepth: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "swapwatch",
			Name:      "queue_depth",
			Help:      "Number of jobs awaiting a due time, per tracked-account kind.",
		}, []string{"kind"}),
		jobDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "swapwatch",
			Name:      "job_duration_seconds",
			Help:      "Time spent processing one queued job end to end.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		jobsProcessed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "swapwatch",
			Name:      "jobs_processed_total",
			Help:      "Jobs processed, by tracked-account kind and terminal status.",
		}, []string{"kind", "status"}),
	}
	return r
}

// SetQueueDepth records the current depth of one kind's queue.
func (r *Registry) SetQueueDepth(kind string, depth int64) {
	r.queueDepth.WithLabelValues(kind).Set(float64(depth))
}

// ObserveJobDuration records how long one job took to process.
func (r *Registry) ObserveJobDuration(kind string, d time.Duration) {
	r.jobDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// IncJobsProcessed increments the processed counter for kind/status
// ("completed", "retried", "failed").
func (r *Registry) IncJobsProcessed(kind, status string) {
	r.jobsProcessed.WithLabelValues(kind, status).Inc()
}

// Handler returns an http.Handler serving this registry's metrics in the
// Prometheus text exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
