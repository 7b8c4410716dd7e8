// Package metrics exposes Prometheus metrics for the trading core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tradecore"

// Order metrics
var (
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_total",
		Help:      "Orders by market, side and status.",
	}, []string{"market", "side", "status"})

	FillsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fills_total",
		Help:      "Fill events applied to orders.",
	}, []string{"market", "side"})

	FilledSize = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "filled_size_total",
		Help:      "Absolute base size filled.",
	}, []string{"market"})

	OrderLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "order_fill_latency_seconds",
		Help:      "Time from submission to complete fill.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
	})
)

// Worker metrics
var (
	WorkersActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "workers_active",
		Help:      "Running background workers by kind.",
	}, []string{"kind"})

	WorkerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "worker_errors_total",
		Help:      "Workers terminated by a venue error.",
	}, []string{"kind"})
)

// Advance order metrics
var (
	AdvanceOrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "advance_orders_total",
		Help:      "Advance order state transitions by trigger kind.",
	}, []string{"trigger", "state"})

	AdvanceThreshold = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "advance_threshold",
		Help:      "Latest trigger threshold of the active advance order.",
	}, []string{"market"})
)

// Arbitrage metrics
var (
	ArbitrageScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "arbitrage_scans_total",
		Help:      "Arbitrage scans by outcome.",
	}, []string{"cycle", "outcome"})

	ArbitrageValue = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "arbitrage_pass_through_value",
		Help:      "Latest pass-through value of a cycle direction.",
	}, []string{"cycle", "direction"})
)

// Ledger metrics
var (
	LedgerBalance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ledger_balance",
		Help:      "Signed size held per ticker.",
	}, []string{"ticker"})

	LedgerEntryPrice = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ledger_entry_price",
		Help:      "Weighted-average entry price per ticker.",
	}, []string{"ticker"})

	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "trades_total",
		Help:      "Completed round trips by outcome.",
	}, []string{"market", "side", "outcome"})
)

// System metrics
var (
	DataFeedLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "data_feed_update_seconds",
		Help:      "Duration of listener updates.",
		Buckets:   prometheus.DefBuckets,
	})

	HeartbeatTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "heartbeat_timestamp_seconds",
		Help:      "Unix time of the last trading loop iteration.",
	})

	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "errors_total",
		Help:      "Errors by type.",
	}, []string{"type"})

	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "Build information.",
	}, []string{"version", "commit", "date"})
)

// SetBuildInfo publishes build information.
func SetBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
}
