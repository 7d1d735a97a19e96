package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "rupiya_sync_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"path", "method", "status"},
	)

	// QueuePending tracks the number of operations awaiting delivery
	QueuePending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rupiya_sync_queue_pending_operations",
			Help: "Number of queued operations awaiting delivery",
		},
	)

	// QueueFailed tracks operations that exhausted their retries
	QueueFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rupiya_sync_queue_failed_operations_total",
			Help: "Number of operations that exhausted their retries",
		},
	)

	// SyncAttempts tracks delivery attempts by collection and outcome
	SyncAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rupiya_sync_delivery_attempts_total",
			Help: "Number of delivery attempts against the document store",
		},
		[]string{"collection", "status"},
	)

	// RateLimitDecisions tracks admission control outcomes
	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rupiya_sync_rate_limit_decisions_total",
			Help: "Number of rate limiter admission decisions",
		},
		[]string{"key", "outcome"},
	)

	// PersistenceFailures tracks rejected queue snapshot writes
	PersistenceFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rupiya_sync_persistence_failures_total",
			Help: "Number of queue snapshot writes rejected by the store",
		},
	)

	// ActiveConnections tracks active HTTP connections
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rupiya_sync_active_connections",
			Help: "Number of active connections",
		},
	)
)
