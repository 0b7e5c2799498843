package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Trust transaction metrics
	TransactionsRecorded *prometheus.CounterVec
	TransactionsRejected *prometheus.CounterVec
	TransactionsReversed prometheus.Counter
	Shortfalls           prometheus.Counter
	RecordDuration       prometheus.Histogram
	ConcurrencyRetries   prometheus.Counter
	LockWaitDuration     prometheus.Histogram

	// Reconciliation metrics
	Reconciliations *prometheus.CounterVec

	// Audit delivery metrics
	AuditDelivered        prometheus.Counter
	AuditDeliveryFailures prometheus.Counter
	AuditDeadLettered     prometheus.Counter
	AuditBatchSize        prometheus.Histogram

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec

	// Authentication metrics
	AuthFailures *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on reg.
// A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		TransactionsRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustledger_transactions_recorded_total",
				Help: "Total trust transactions recorded by type",
			},
			[]string{"type"},
		),
		TransactionsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustledger_transactions_rejected_total",
				Help: "Total trust transactions rejected by reason",
			},
			[]string{"reason"},
		),
		TransactionsReversed: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustledger_transactions_reversed_total",
			Help: "Total trust transactions reversed",
		}),
		Shortfalls: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustledger_shortfalls_total",
			Help: "Total debits recorded under an override that left a matter negative",
		}),
		RecordDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "trustledger_record_duration_seconds",
			Help:    "Duration of trust write operations",
			Buckets: prometheus.DefBuckets,
		}),
		ConcurrencyRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustledger_concurrency_retries_total",
			Help: "Total write attempts retried after a version conflict",
		}),
		LockWaitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "trustledger_lock_wait_seconds",
			Help:    "Time spent waiting for the per-matter write lock",
			Buckets: prometheus.DefBuckets,
		}),

		Reconciliations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustledger_reconciliations_total",
				Help: "Total reconciliations by scope and status",
			},
			[]string{"scope", "status"},
		),

		AuditDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustledger_audit_delivered_total",
			Help: "Total audit events delivered to the sink",
		}),
		AuditDeliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustledger_audit_delivery_failures_total",
			Help: "Total failed audit delivery attempts",
		}),
		AuditDeadLettered: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustledger_audit_dead_lettered_total",
			Help: "Total audit events that exhausted their delivery attempts",
		}),
		AuditBatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "trustledger_audit_batch_size",
			Help:    "Outbox events fetched per relay pass",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trustledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustledger_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"ip"},
		),

		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trustledger_auth_failures_total",
				Help: "Total authentication failures",
			},
			[]string{"reason"},
		),
	}
}
