package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/advance"
	"github.com/tathienbao/tradecore/internal/alerting"
	"github.com/tathienbao/tradecore/internal/listener"
	"github.com/tathienbao/tradecore/internal/market"
	"github.com/tathienbao/tradecore/internal/types"
)

// flakyListener fails a set number of updates before recovering.
type flakyListener struct {
	*listener.Static

	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyListener) Update(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return errors.New("connection reset")
	}
	return f.Static.Update(ctx)
}

func (f *flakyListener) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fixedLogic always opens at a set price.
type fixedLogic struct {
	price decimal.Decimal
	size  decimal.Decimal
}

func (f fixedLogic) Update(context.Context) error { return nil }

func (f fixedLogic) OpenTrade() (decimal.Decimal, decimal.Decimal, bool) {
	return f.price, f.size, true
}

// failingAdvanceLogic never attaches an advance order.
type failingAdvanceLogic struct{}

func (failingAdvanceLogic) OpenAdvanceOrder(context.Context, *market.Position) (*advance.Order, error) {
	return nil, errors.New("stop rejected")
}

func withFlakyFeed(t *testing.T, rig *testRig, failures int) *flakyListener {
	t.Helper()
	flaky := &flakyListener{Static: rig.feed, failures: failures}
	rig.engine.listener = flaky
	return flaky
}

func TestEngine_ReconnectRecovers(t *testing.T) {
	rig := newTestRig(t, testConfig(), nil)
	flaky := withFlakyFeed(t, rig, 2)

	if err := rig.engine.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if flaky.Calls() != 3 {
		t.Errorf("listener calls = %d, want 3", flaky.Calls())
	}
	if !rig.engine.HasPosition() {
		t.Error("expected trade after reconnect")
	}
}

func TestEngine_FeedLost(t *testing.T) {
	rig := newTestRig(t, testConfig(), nil)
	withFlakyFeed(t, rig, 100)

	err := rig.engine.Step(context.Background())
	if !errors.Is(err, ErrFeedLost) {
		t.Fatalf("Step err = %v, want ErrFeedLost", err)
	}
	if n := len(rig.venue.Orders()); n != 0 {
		t.Errorf("venue orders = %d, want 0", n)
	}
}

// TestEngine_FeedLostStopsLoop checks the loop exits and alerts.
func TestEngine_FeedLostStopsLoop(t *testing.T) {
	rig := newTestRig(t, testConfig(), nil)
	withFlakyFeed(t, rig, 1_000_000)
	ctx := context.Background()

	if err := rig.engine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	eventually(t, "feed lost alert", func() bool {
		return rig.alerter.HasAlertContaining("Market feed lost")
	})

	if !errors.Is(rig.engine.Err(), ErrFeedLost) {
		t.Errorf("Err() = %v, want ErrFeedLost", rig.engine.Err())
	}
	if !rig.alerter.HasAlertWithSeverity(alerting.SeverityCritical) {
		t.Error("expected critical alert")
	}

	done := make(chan struct{})
	go func() {
		_ = rig.engine.Stop(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked after the trading loop exited")
	}
}

// TestEngine_OrderTimeout leaves an order resting below the ask.
func TestEngine_OrderTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.OrderTimeout = 30 * time.Millisecond
	rig := newTestRig(t, cfg, fixedLogic{price: d("95"), size: d("1")})

	err := rig.engine.Step(context.Background())
	if !errors.Is(err, types.ErrOrderTimeout) {
		t.Fatalf("Step err = %v, want ErrOrderTimeout", err)
	}

	orders := rig.venue.Orders()
	if len(orders) != 1 {
		t.Fatalf("venue orders = %d, want 1", len(orders))
	}
	if orders[0].Status() != types.OrderStatusCancelled {
		t.Errorf("order status = %v, want CANCELLED", orders[0].Status())
	}
	rec, _ := rig.store.Order(orders[0].ID)
	if rec.Status != types.OrderStatusCancelled {
		t.Errorf("stored status = %v, want CANCELLED", rec.Status)
	}

	if rig.engine.HasPosition() {
		t.Error("expected no position after timeout")
	}
	if st := rig.engine.State(); st.OrderTimeouts != 1 || st.Cycles != 0 {
		t.Errorf("state = %+v, want 1 timeout 0 cycles", st)
	}
	if !rig.alerter.HasAlertContaining("Order stuck") {
		t.Error("expected stuck order alert")
	}
	if !rig.actor.Portfolio().Size("BTC").IsZero() {
		t.Errorf("root BTC = %s, want 0", rig.actor.Portfolio().Size("BTC"))
	}
}

// TestEngine_TimeoutContinues checks a timed-out cycle does not stop the loop.
func TestEngine_TimeoutContinues(t *testing.T) {
	cfg := testConfig()
	cfg.OrderTimeout = 10 * time.Millisecond
	rig := newTestRig(t, cfg, fixedLogic{price: d("95"), size: d("1")})
	rig.engine.now = time.Now
	ctx := context.Background()

	if err := rig.engine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	eventually(t, "second attempt", func() bool {
		return len(rig.venue.Orders()) >= 2
	})
	if !rig.engine.IsRunning() {
		t.Error("expected engine still running")
	}
	_ = rig.engine.Stop(ctx)

	if !errors.Is(rig.engine.Err(), types.ErrOrderTimeout) {
		t.Errorf("Err() = %v, want ErrOrderTimeout", rig.engine.Err())
	}
}

func TestEngine_OrderRejected(t *testing.T) {
	rig := newTestRig(t, testConfig(), nil)
	rig.venue.FailSubmissions(errors.New("insufficient funds"))

	err := rig.engine.Step(context.Background())
	if err == nil {
		t.Fatal("expected error on rejected order")
	}
	if !rig.alerter.HasAlertContaining("Order rejected") {
		t.Error("expected rejection alert")
	}
	if !rig.alerter.HasAlertWithSeverity(alerting.SeverityWarning) {
		t.Error("expected warning severity")
	}
	if rig.engine.HasPosition() {
		t.Error("expected no position")
	}
}

func TestEngine_AdvanceOrderFailure(t *testing.T) {
	rig := newTestRig(t, testConfig(), nil)
	rig.engine.advance = failingAdvanceLogic{}

	err := rig.engine.Step(context.Background())
	if err == nil {
		t.Fatal("expected error when no advance order can be attached")
	}

	last := rig.alerter.LastAlert()
	if last == nil || last.Severity != alerting.SeverityCritical {
		t.Fatalf("last alert = %+v, want critical", last)
	}
	if !rig.actor.Portfolio().Size("BTC").Equal(d("1")) {
		t.Errorf("root BTC = %s, want 1", rig.actor.Portfolio().Size("BTC"))
	}
}

// TestEngine_NilCollaborators runs without alerter or store.
func TestEngine_NilCollaborators(t *testing.T) {
	rig := newTestRig(t, testConfig(), nil)
	rig.engine.alerter = nil
	rig.engine.store = nil
	ctx := context.Background()

	if err := rig.engine.Step(ctx); err != nil {
		t.Fatalf("Step: %v", err)
	}
	rig.engine.recordLedger(ctx)
}
