// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the authentication pipeline.
package observability

import "github.com/prometheus/client_golang/prometheus"

// AuthBuckets defines histogram buckets suited for local-ledger auth
// latencies, ranging from 1ms to 10s.
var AuthBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10}

var (
	// RequestsTotal counts all HTTP requests by method, path, and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omega_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "path", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method and path.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "omega_request_duration_seconds",
			Help:    "Request duration",
			Buckets: AuthBuckets,
		},
		[]string{"method", "path"},
	)

	// LoginOutcomesTotal counts login attempts by outcome.
	LoginOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omega_login_outcomes_total",
			Help: "Login outcomes",
		},
		[]string{"outcome"},
	)

	// RegistrationsTotal counts successful user registrations.
	RegistrationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omega_registrations_total",
			Help: "Successful registrations",
		},
	)

	// ActiveSessions tracks the number of currently valid sessions.
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "omega_sessions_active",
			Help: "Active sessions",
		},
	)

	// AuditFallbackTotal counts audit records diverted to the local
	// fallback because the primary ledger backend was unavailable.
	AuditFallbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omega_audit_fallback_total",
			Help: "Audit records stored via local fallback",
		},
	)

	// SweepRemovedTotal counts records removed by background sweeps.
	SweepRemovedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omega_sweep_removed_total",
			Help: "Records removed by background sweeps",
		},
		[]string{"sweep"},
	)

	// RateLimitRejectedTotal counts requests rejected for exhausted
	// tenant quotas.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omega_ratelimit_rejected_total",
			Help: "Quota rejections",
		},
		[]string{"tenant"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		LoginOutcomesTotal,
		RegistrationsTotal,
		ActiveSessions,
		AuditFallbackTotal,
		SweepRemovedTotal,
		RateLimitRejectedTotal,
	)
}
