// Package metrics exposes the server's Prometheus collectors: request
// counters/latencies recorded by middleware, and gauges/counters the
// garbage collector and lifecycle services update directly.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the server registers. A nil *Metrics is
// valid everywhere it's threaded through: callers guard writes with
// `if m != nil` so metrics stay fully optional.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RateLimitedTotal *prometheus.CounterVec

	GCLastRunTime   prometheus.Gauge
	GCOrphanBlobs   prometheus.Gauge
	GCRunsTotal     prometheus.Counter
	GCBlobsDeleted  prometheus.Counter
	GCBytesFreed    prometheus.Counter
	GCRunDuration   prometheus.Histogram

	LifecycleRunsTotal    prometheus.Counter
	LifecycleObjectsAged  prometheus.Counter
}

// New registers and returns a fresh Metrics bound to the default registry.
func New() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alexander",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests processed, by method and status class.",
		}, []string{"method", "status"}),

		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "alexander",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		RateLimitedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alexander",
			Name:      "rate_limited_requests_total",
			Help:      "Total number of requests rejected by the rate limiter.",
		}, []string{"reason"}),

		GCLastRunTime: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "alexander",
			Subsystem: "gc",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix timestamp of the most recently completed garbage collection run.",
		}),

		GCOrphanBlobs: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "alexander",
			Subsystem: "gc",
			Name:      "orphan_blobs",
			Help:      "Number of zero-reference blobs observed during the most recent run.",
		}),

		GCRunsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "alexander",
			Subsystem: "gc",
			Name:      "runs_total",
			Help:      "Total number of garbage collection runs completed.",
		}),

		GCBlobsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "alexander",
			Subsystem: "gc",
			Name:      "blobs_deleted_total",
			Help:      "Total number of blobs deleted by garbage collection.",
		}),

		GCBytesFreed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "alexander",
			Subsystem: "gc",
			Name:      "bytes_freed_total",
			Help:      "Total number of bytes freed by garbage collection.",
		}),

		GCRunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "alexander",
			Subsystem: "gc",
			Name:      "run_duration_seconds",
			Help:      "Duration of each garbage collection run.",
			Buckets:   prometheus.DefBuckets,
		}),

		LifecycleRunsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "alexander",
			Subsystem: "lifecycle",
			Name:      "runs_total",
			Help:      "Total number of lifecycle evaluation runs completed.",
		}),

		LifecycleObjectsAged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "alexander",
			Subsystem: "lifecycle",
			Name:      "objects_transitioned_total",
			Help:      "Total number of objects transitioned or expired by lifecycle rules.",
		}),
	}
}

// RecordGCRun updates the counters/histogram for one completed run.
func (m *Metrics) RecordGCRun(durationSeconds float64, blobsDeleted int, bytesFreed int64) {
	if m == nil {
		return
	}
	m.GCRunsTotal.Inc()
	m.GCBlobsDeleted.Add(float64(blobsDeleted))
	m.GCBytesFreed.Add(float64(bytesFreed))
	m.GCRunDuration.Observe(durationSeconds)
}

// RecordRequest records one completed HTTP request.
func (m *Metrics) RecordRequest(method, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, status).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordRateLimited records one request rejected by the rate limiter.
func (m *Metrics) RecordRateLimited(reason string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(reason).Inc()
}

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
