package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for WSCalls and Unenrolments
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeDenied  = "denied"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digitalis_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "digitalis_http_request_duration_seconds",
			Help:    "Time taken to serve HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	WSCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digitalis_ws_calls_total",
			Help: "Total number of web-service function calls",
		},
		[]string{"function", "outcome"},
	)

	LookupCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "digitalis_lookup_candidates",
			Help:    "Number of candidate users produced by criteria filtering",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	Unenrolments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digitalis_unenrolments_total",
			Help: "Total number of unenrolment items processed",
		},
		[]string{"outcome"},
	)
)
