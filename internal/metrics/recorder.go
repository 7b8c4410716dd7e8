package metrics

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/portfolio"
)

// Recorder provides methods for recording metrics.
type Recorder struct{}

// NewRecorder creates a new metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordOrder records an order state change.
func (r *Recorder) RecordOrder(market, side, status string) {
	OrdersTotal.WithLabelValues(market, side, status).Inc()
}

// RecordFill records a fill of size on market.
func (r *Recorder) RecordFill(market, side string, size decimal.Decimal) {
	FillsTotal.WithLabelValues(market, side).Inc()
	FilledSize.WithLabelValues(market).Add(size.Abs().InexactFloat64())
}

// RecordTrade records a completed round trip.
func (r *Recorder) RecordTrade(market, side string, profitable bool) {
	outcome := "loss"
	if profitable {
		outcome = "win"
	}
	TradesTotal.WithLabelValues(market, side, outcome).Inc()
}

// WorkerStarted marks a background worker of kind as running.
func (r *Recorder) WorkerStarted(kind string) {
	WorkersActive.WithLabelValues(kind).Inc()
}

// WorkerStopped marks a background worker of kind as finished.
func (r *Recorder) WorkerStopped(kind string) {
	WorkersActive.WithLabelValues(kind).Dec()
}

// RecordWorkerError records a worker terminated by an error.
func (r *Recorder) RecordWorkerError(kind string) {
	WorkerErrors.WithLabelValues(kind).Inc()
}

// RecordAdvanceOrder records an advance order entering state.
func (r *Recorder) RecordAdvanceOrder(trigger, state string) {
	AdvanceOrdersTotal.WithLabelValues(trigger, state).Inc()
}

// RecordAdvanceThreshold records the current trigger threshold for market.
func (r *Recorder) RecordAdvanceThreshold(market string, threshold decimal.Decimal) {
	AdvanceThreshold.WithLabelValues(market).Set(threshold.InexactFloat64())
}

// RecordArbitrageScan records one scan outcome and the values observed.
func (r *Recorder) RecordArbitrageScan(cycle, outcome string, forward, reverse decimal.Decimal) {
	ArbitrageScansTotal.WithLabelValues(cycle, outcome).Inc()
	ArbitrageValue.WithLabelValues(cycle, "forward").Set(forward.InexactFloat64())
	if !reverse.IsZero() {
		ArbitrageValue.WithLabelValues(cycle, "reverse").Set(reverse.InexactFloat64())
	}
}

// RecordLedger publishes every balance of the ledger.
func (r *Recorder) RecordLedger(balances []portfolio.Balance) {
	for _, b := range balances {
		LedgerBalance.WithLabelValues(b.Ticker).Set(b.Size.InexactFloat64())
		LedgerEntryPrice.WithLabelValues(b.Ticker).Set(b.EntryPrice.InexactFloat64())
	}
}

// RecordOrderLatency records the time an order took to fill.
func (r *Recorder) RecordOrderLatency(duration time.Duration) {
	OrderLatency.Observe(duration.Seconds())
}

// RecordDataFeedLatency records listener update latency.
func (r *Recorder) RecordDataFeedLatency(duration time.Duration) {
	DataFeedLatency.Observe(duration.Seconds())
}

// RecordHeartbeat records a heartbeat.
func (r *Recorder) RecordHeartbeat() {
	HeartbeatTimestamp.Set(float64(time.Now().Unix()))
}

// RecordError records an error.
func (r *Recorder) RecordError(errorType string) {
	ErrorsTotal.WithLabelValues(errorType).Inc()
}

// Timer is a helper for measuring latency.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the elapsed duration.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// ObserveOrder observes the elapsed time as order latency.
func (t *Timer) ObserveOrder() {
	OrderLatency.Observe(t.Elapsed().Seconds())
}

// ObserveDataFeed observes the elapsed time as listener update latency.
func (t *Timer) ObserveDataFeed() {
	DataFeedLatency.Observe(t.Elapsed().Seconds())
}
