package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DBPoolAcquiredConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "account_store_pool_acquired_connections",
			Help: "Connections currently checked out of the account store pool",
		},
	)

	DBPoolIdleConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "account_store_pool_idle_connections",
			Help: "Idle connections in the account store pool",
		},
	)

	DBPoolMaxConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "account_store_pool_max_connections",
			Help: "Configured maximum size of the account store pool",
		},
	)

	DBPoolTotalConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "account_store_pool_total_connections",
			Help: "Open connections in the account store pool",
		},
	)

	DBQueryDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "account_store_query_duration_seconds",
			Help:    "Duration of account store statements in seconds",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "account_store_query_errors_total",
			Help: "Account store statements that failed, by error type",
		},
		[]string{"operation", "table", "error_type"},
	)

	// outcome: retrying, recovered, exhausted.
	DBRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "account_store_retries_total",
			Help: "Retries of transient account store failures",
		},
		[]string{"operation", "outcome"},
	)
)
