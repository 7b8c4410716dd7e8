package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/portfolio"
)

func TestRecorder_RecordOrder(t *testing.T) {
	r := NewRecorder()

	before := testutil.ToFloat64(OrdersTotal.WithLabelValues("BTC/USD", "LONG", "filled"))
	r.RecordOrder("BTC/USD", "LONG", "filled")
	r.RecordOrder("BTC/USD", "LONG", "filled")
	r.RecordOrder("BTC/USD", "SHORT", "cancelled")

	got := testutil.ToFloat64(OrdersTotal.WithLabelValues("BTC/USD", "LONG", "filled"))
	if got-before != 2 {
		t.Errorf("orders_total delta = %v, want 2", got-before)
	}
}

func TestRecorder_RecordFill(t *testing.T) {
	r := NewRecorder()

	before := testutil.ToFloat64(FilledSize.WithLabelValues("ETH/USD"))
	r.RecordFill("ETH/USD", "SHORT", decimal.RequireFromString("-1.5"))

	got := testutil.ToFloat64(FilledSize.WithLabelValues("ETH/USD"))
	if got-before != 1.5 {
		t.Errorf("filled size delta = %v, want 1.5", got-before)
	}
}

func TestRecorder_Workers(t *testing.T) {
	r := NewRecorder()

	r.WorkerStarted("order")
	r.WorkerStarted("order")
	r.WorkerStopped("order")
	if got := testutil.ToFloat64(WorkersActive.WithLabelValues("order")); got != 1 {
		t.Errorf("workers_active = %v, want 1", got)
	}
	r.WorkerStopped("order")

	r.RecordWorkerError("order")
}

func TestRecorder_RecordLedger(t *testing.T) {
	r := NewRecorder()

	r.RecordLedger([]portfolio.Balance{
		portfolio.NewBalance("XBT", decimal.RequireFromString("0.25"), decimal.NewFromInt(60000)),
	})

	if got := testutil.ToFloat64(LedgerBalance.WithLabelValues("XBT")); got != 0.25 {
		t.Errorf("ledger_balance = %v, want 0.25", got)
	}
	if got := testutil.ToFloat64(LedgerEntryPrice.WithLabelValues("XBT")); got != 60000 {
		t.Errorf("ledger_entry_price = %v, want 60000", got)
	}
}

func TestRecorder_RecordArbitrageScan(t *testing.T) {
	r := NewRecorder()

	r.RecordArbitrageScan("USD-BTC-ETH", "skipped", decimal.RequireFromString("0.998"), decimal.RequireFromString("0.997"))
	if got := testutil.ToFloat64(ArbitrageValue.WithLabelValues("USD-BTC-ETH", "reverse")); got != 0.997 {
		t.Errorf("reverse value = %v, want 0.997", got)
	}
}

func TestRecorder_Misc(t *testing.T) {
	r := NewRecorder()

	r.RecordTrade("BTC/USD", "LONG", true)
	r.RecordTrade("BTC/USD", "SHORT", false)
	r.RecordAdvanceOrder("trailing", "TRIGGERED")
	r.RecordAdvanceThreshold("BTC/USD", decimal.NewFromInt(90))
	r.RecordOrderLatency(100 * time.Millisecond)
	r.RecordDataFeedLatency(5 * time.Millisecond)
	r.RecordHeartbeat()
	r.RecordError("order_timeout")
}

func TestTimer(t *testing.T) {
	timer := NewTimer()
	time.Sleep(10 * time.Millisecond)

	elapsed := timer.Elapsed()
	if elapsed < 10*time.Millisecond {
		t.Errorf("elapsed = %v, expected >= 10ms", elapsed)
	}
	timer.ObserveOrder()
	timer.ObserveDataFeed()
}

func TestSetBuildInfo(t *testing.T) {
	SetBuildInfo("1.0.0", "abc123", "2026-10-18")

	if got := testutil.ToFloat64(BuildInfo.WithLabelValues("1.0.0", "abc123", "2026-10-18")); got != 1 {
		t.Errorf("build_info = %v, want 1", got)
	}
}

func TestMetricsRegistered(t *testing.T) {
	metrics := []prometheus.Collector{
		OrdersTotal,
		FillsTotal,
		FilledSize,
		OrderLatency,
		WorkersActive,
		WorkerErrors,
		AdvanceOrdersTotal,
		AdvanceThreshold,
		ArbitrageScansTotal,
		ArbitrageValue,
		LedgerBalance,
		LedgerEntryPrice,
		TradesTotal,
		DataFeedLatency,
		HeartbeatTimestamp,
		ErrorsTotal,
		BuildInfo,
	}

	for _, m := range metrics {
		if m == nil {
			t.Error("metric is nil")
		}
	}
}
