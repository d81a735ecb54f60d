// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the arena orchestrator.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 300s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300}

var (
	// RequestsTotal counts all HTTP requests by method, route, and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arena_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "route"},
	)

	// StreamingConnections tracks chat streams currently open.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "arena_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// ProviderRequestsTotal counts completions per side stream by response
	// format, model and outcome.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_provider_requests_total",
			Help: "Provider requests",
		},
		[]string{"format", "model", "status"},
	)

	// ProviderLatency records how long a side stream took from start to end.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arena_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"format", "model"},
	)

	// ChunksTotal counts canonical chunks consumed by side and kind.
	ChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_chunks_total",
			Help: "Processed chunks",
		},
		[]string{"side", "kind"},
	)

	// DedupSkippedTotal counts chat requests dropped as duplicates of a run
	// already in flight.
	DedupSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "arena_dedup_skipped_total",
			Help: "Duplicate chat requests skipped",
		},
	)

	// PersistFailuresTotal counts failed message appends by side.
	PersistFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_persist_failures_total",
			Help: "Failed message appends",
		},
		[]string{"side"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		ProviderRequestsTotal,
		ProviderLatency,
		ChunksTotal,
		DedupSkippedTotal,
		PersistFailuresTotal,
		RateLimitRejectedTotal,
	)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
