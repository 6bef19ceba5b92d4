// Package metrics provides Prometheus metrics for the drugcheck API:
//   - http_request_total / http_request_duration_seconds / http_request_in_flight
//   - upstream_request_total / upstream_request_duration_seconds for openFDA,
//     PubMed E-utilities and the LLM provider
//   - compatibility_verdicts_total, research_retries_total
//   - patient_records, rate_limiter_buckets_total
//
// All metrics are registered with the Prometheus default registry in init.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	UpstreamRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_request_total",
			Help: "Outbound calls to external services by outcome",
		},
		[]string{"service", "operation", "outcome"},
	)

	UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Outbound call latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 40, 60},
		},
		[]string{"service", "operation"},
	)

	CompatibilityVerdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compatibility_verdicts_total",
			Help: "Compatibility verdicts returned by the model",
		},
		[]string{"verdict"},
	)

	ResearchRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "research_retries_total",
			Help: "Literature searches retried after an empty identifier list",
		},
	)

	PatientRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "patient_records",
			Help: "Records in the currently loaded patient table",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (clients seen since the last cleanup)",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(UpstreamRequestTotals)
	prometheus.MustRegister(UpstreamRequestDuration)
	prometheus.MustRegister(CompatibilityVerdicts)
	prometheus.MustRegister(ResearchRetries)
	prometheus.MustRegister(PatientRecords)
	prometheus.MustRegister(RateLimiterBucketsTotal)
}

// ObserveUpstream records one outbound call. outcome is "ok" for a nil error
// and the caller-supplied label otherwise.
func ObserveUpstream(service, operation string, start time.Time, err error, failure string) {
	outcome := "ok"
	if err != nil {
		outcome = failure
	}
	UpstreamRequestTotals.WithLabelValues(service, operation, outcome).Inc()
	UpstreamRequestDuration.WithLabelValues(service, operation).Observe(time.Since(start).Seconds())
}
