package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the vault.
type Metrics struct {
	// Operations
	DepositsTotal      *prometheus.CounterVec
	WithdrawalsTotal   *prometheus.CounterVec
	SweepsTotal        prometheus.Counter
	OperationDuration  *prometheus.HistogramVec
	OperationsRejected *prometheus.CounterVec
	BusyRejections     prometheus.Counter

	// Conversion gateway
	ConversionsTotal   *prometheus.CounterVec
	ConversionDuration prometheus.Histogram

	// Ledger state
	ReserveTotal   prometheus.Gauge
	CapUtilization prometheus.Gauge
	DepositCounter prometheus.Gauge

	// Persistence
	PersistOpsWritten   prometheus.Counter
	PersistBatchDur     prometheus.Histogram
	PersistBatchSize    prometheus.Histogram
	PersistErrors       *prometheus.CounterVec
	PersistLastSequence prometheus.Gauge

	// Projection
	ProjectionUpdateDur prometheus.Histogram
	ProjectionDrops     prometheus.Counter

	// Publishing
	PublishDrops prometheus.Counter

	// Snapshot
	SnapshotTaken    prometheus.Counter
	SnapshotDuration prometheus.Histogram
	SnapshotLastSeq  prometheus.Gauge

	// HTTP API
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	opBuckets := []float64{
		0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005,
		0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0,
	}

	return &Metrics{
		DepositsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_deposits_total",
			Help: "Deposit operations by source path and outcome",
		}, []string{"source", "outcome"}),

		WithdrawalsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_withdrawals_total",
			Help: "Withdrawal operations by outcome",
		}, []string{"outcome"}),

		SweepsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_sweeps_total",
			Help: "Successful treasury sweeps",
		}),

		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vault_operation_duration_seconds",
			Help:    "End-to-end duration of one logical operation",
			Buckets: opBuckets,
		}, []string{"op"}),

		OperationsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_operations_rejected_total",
			Help: "Rejections by error class (input, capacity, conversion, insufficient_funds, transfer)",
		}, []string{"op", "class"}),

		BusyRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_busy_rejections_total",
			Help: "Operations refused by the re-entry interlock",
		}),

		ConversionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_conversions_total",
			Help: "Conversion gateway calls by input asset and outcome",
		}, []string{"asset", "outcome"}),

		ConversionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vault_conversion_duration_seconds",
			Help:    "External swap round-trip time",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 15.0},
		}),

		ReserveTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_reserve_total",
			Help: "Outstanding reserve credits in internal units",
		}),

		CapUtilization: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_cap_utilization",
			Help: "ReserveTotal / GlobalCap (0.0-1.0)",
		}),

		DepositCounter: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_deposit_counter",
			Help: "Monotonic count of successful credits",
		}),

		PersistOpsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_persist_operations_written_total",
			Help: "Operation rows written to Postgres",
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vault_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vault_persist_batch_size",
			Help:    "Operations per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_persist_last_sequence",
			Help: "Last persisted operation sequence",
		}),

		ProjectionUpdateDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vault_projection_update_duration_seconds",
			Help:    "Projection table update duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),

		ProjectionDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_projection_drops_total",
			Help: "Events dropped due to full projection channel",
		}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		SnapshotTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vault_snapshot_taken_total",
			Help: "Balance snapshots created",
		}),

		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vault_snapshot_duration_seconds",
			Help:    "Snapshot creation time",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}),

		SnapshotLastSeq: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vault_snapshot_last_sequence",
			Help: "Sequence of last snapshot",
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vault_http_requests_total",
			Help: "HTTP API requests",
		}, []string{"route", "status"}),

		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vault_http_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: opBuckets,
		}, []string{"route"}),
	}
}

// ObserveLedger refreshes the ledger state gauges after an operation.
func (m *Metrics) ObserveLedger(reserveTotal, cap int64, deposits uint64) {
	m.ReserveTotal.Set(float64(reserveTotal))
	m.DepositCounter.Set(float64(deposits))
	if cap > 0 {
		m.CapUtilization.Set(float64(reserveTotal) / float64(cap))
	}
}
