package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal tracks completed punch runs by action and result
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "punchd_runs_total",
			Help: "Total number of punch runs",
		},
		[]string{"action", "result"},
	)

	// RetryAttempts tracks failed attempts per retried operation
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "punchd_retry_attempts_total",
			Help: "Total number of failed attempts inside retried operations",
		},
		[]string{"operation"},
	)

	// BreakerState exposes the circuit breaker state (0=closed, 1=open, 2=half-open)
	BreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "punchd_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
	)

	// VerifyDuration tracks how long result verification took
	VerifyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "punchd_verify_duration_seconds",
			Help:    "Time spent verifying a punch result",
			Buckets: prometheus.DefBuckets,
		},
	)

	// NotificationsTotal tracks notification deliveries per provider
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "punchd_notifications_total",
			Help: "Total number of notification deliveries",
		},
		[]string{"provider", "result"},
	)

	// TriggerFires tracks scheduler trigger firings and skips
	TriggerFires = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "punchd_trigger_fires_total",
			Help: "Total number of scheduler trigger firings",
		},
		[]string{"job", "result"},
	)
)
