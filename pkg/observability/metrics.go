// Package observability provides metrics capabilities for bone.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics namespace for all bone metrics.
const metricsNamespace = "bone"

// Pipeline metrics.
var (
	// PipelineRunsTotal counts pipeline invocations by category and outcome.
	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pipeline_runs_total",
			Help:      "Total number of pipeline runs",
		},
		[]string{"category", "success"},
	)

	// SynthesisTotal counts produced documents by category and provenance.
	SynthesisTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "synthesis_total",
			Help:      "Total number of synthesized SOPs by source",
		},
		[]string{"category", "source"},
	)

	// RebalancedTotal counts step lists that had to be compressed.
	RebalancedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rebalanced_total",
			Help:      "Total number of step lists compressed by the rebalancer",
		},
	)
)

// Generation service metrics.
var (
	// GenerationDuration measures generation service calls in seconds.
	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "generation_duration_seconds",
			Help:      "Duration of generation service calls in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"provider", "status"},
	)
)

// HTTP API metrics.
var (
	// HTTPRequestsTotal counts API requests by route and status code.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP API requests",
		},
		[]string{"route", "code"},
	)

	// RateLimitedTotal counts requests rejected by the rate limiter.
	RateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter",
		},
		[]string{"route"},
	)
)

func init() {
	// Register all metrics with the default registry.
	prometheus.MustRegister(
		PipelineRunsTotal,
		SynthesisTotal,
		RebalancedTotal,
		GenerationDuration,
		HTTPRequestsTotal,
		RateLimitedTotal,
	)
}
