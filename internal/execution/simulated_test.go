package execution

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/cost"
	"github.com/tathienbao/tradecore/internal/listener"
	"github.com/tathienbao/tradecore/internal/market"
	"github.com/tathienbao/tradecore/internal/types"
)

func submitted(t *testing.T, venue *SimulatedVenue, m market.Market, price, size string) *Order {
	t.Helper()
	o := NewOrder(m, d(price), d(size), cost.Engine{}, decimal.Zero, nil)
	if err := o.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := venue.SubmitOrder(context.Background(), o); err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	return o
}

func TestSimulatedVenue_FillSteps(t *testing.T) {
	venue := NewSimulatedVenue(SimulatedConfig{FillSteps: 4})
	o := submitted(t, venue, market.NewSpot("BTC", "USD"), "100", "-8")

	var total decimal.Decimal
	for i := 0; i < 4; i++ {
		delta, err := venue.UpdateOrder(context.Background(), o)
		if err != nil {
			t.Fatalf("UpdateOrder: %v", err)
		}
		if !delta.Equal(d("-2")) {
			t.Errorf("step %d delta = %s, want -2", i, delta)
		}
		if err := o.Fill(delta); err != nil {
			t.Fatalf("Fill: %v", err)
		}
		total = total.Add(delta)
	}

	if !o.Filled() || !total.Equal(d("-8")) {
		t.Errorf("total = %s, filled = %v", total, o.Filled())
	}

	delta, _ := venue.UpdateOrder(context.Background(), o)
	if !delta.IsZero() {
		t.Errorf("delta after fill = %s, want 0", delta)
	}
}

func TestSimulatedVenue_Marketable(t *testing.T) {
	btc := market.NewSpot("BTC", "USD")
	feed := listener.NewStatic(btc)
	feed.SetTopOfBook(d("99"), d("1"), d("101"), d("1"))

	venue := NewSimulatedVenue(DefaultSimulatedConfig())
	venue.AddListener(feed)

	tests := []struct {
		name  string
		price string
		size  string
		fills bool
	}{
		{"buy at ask", "101", "1", true},
		{"buy below ask", "100", "1", false},
		{"sell at bid", "99", "-1", true},
		{"sell above bid", "100", "-1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := submitted(t, venue, btc, tt.price, tt.size)
			delta, err := venue.UpdateOrder(context.Background(), o)
			if err != nil {
				t.Fatalf("UpdateOrder: %v", err)
			}
			if got := !delta.IsZero(); got != tt.fills {
				t.Errorf("filled = %v, want %v", got, tt.fills)
			}
		})
	}
}

func TestSimulatedVenue_Errors(t *testing.T) {
	venue := NewSimulatedVenue(DefaultSimulatedConfig())
	btc := market.NewSpot("BTC", "USD")

	o := submitted(t, venue, btc, "100", "1")
	if err := venue.SubmitOrder(context.Background(), o); !errors.Is(err, types.ErrOrderAlreadyExecuted) {
		t.Errorf("duplicate submit err = %v, want ErrOrderAlreadyExecuted", err)
	}

	unknown := NewOrder(btc, d("1"), d("1"), cost.Engine{}, decimal.Zero, nil)
	if _, err := venue.UpdateOrder(context.Background(), unknown); !errors.Is(err, types.ErrStateNotFound) {
		t.Errorf("unknown order err = %v, want ErrStateNotFound", err)
	}

	boom := errors.New("boom")
	venue.FailUpdates(boom)
	if _, err := venue.UpdateOrder(context.Background(), o); !errors.Is(err, boom) {
		t.Errorf("err = %v, want injected error", err)
	}

	venue.Reset()
	if len(venue.Orders()) != 0 {
		t.Error("Reset should clear history")
	}
}

func TestSimulatedVenue_ForgetsFinishedOrders(t *testing.T) {
	venue := NewSimulatedVenue(SimulatedConfig{CancellationCost: d("1")})
	btc := market.NewSpot("BTC", "USD")

	filled := submitted(t, venue, btc, "100", "1")
	delta, err := venue.UpdateOrder(context.Background(), filled)
	if err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	if err := filled.Fill(delta); err != nil {
		t.Fatalf("Fill: %v", err)
	}

	cancelled := submitted(t, venue, btc, "100", "-1")
	if n := venue.Pending(); n != 1 {
		t.Errorf("Pending = %d, want 1 after the first order filled", n)
	}
	cancelled.Cancel()
	if n := venue.Pending(); n != 0 {
		t.Errorf("Pending = %d, want 0 after cancel", n)
	}

	// A finished order is still safe to poll.
	if delta, err := venue.UpdateOrder(context.Background(), filled); err != nil || !delta.IsZero() {
		t.Errorf("update after fill = %s, %v; want 0, nil", delta, err)
	}
	if n := len(venue.Orders()); n != 2 {
		t.Errorf("history = %d orders, want 2", n)
	}
}

func TestSimulatedVenue_HistoryLimit(t *testing.T) {
	venue := NewSimulatedVenue(SimulatedConfig{HistoryLimit: 3})
	btc := market.NewSpot("BTC", "USD")

	var last *Order
	for i := 0; i < 5; i++ {
		last = submitted(t, venue, btc, "100", "1")
	}

	orders := venue.Orders()
	if len(orders) != 3 {
		t.Fatalf("history = %d orders, want 3", len(orders))
	}
	if orders[2] != last {
		t.Error("history should keep the most recent orders")
	}
}

func TestSimulatedVenue_CostEngines(t *testing.T) {
	venue := NewSimulatedVenue(DefaultSimulatedConfig())
	btc := market.NewSpot("BTC", "USD")
	eth := market.NewSpot("ETH", "USD")

	venue.SetCostEngine(eth.Symbol(), cost.Engine{})

	if got := venue.CostEngine(btc).VariableCostRate(); !got.Equal(d("0.0026")) {
		t.Errorf("default rate = %s, want 0.0026", got)
	}
	if !venue.CostEngine(eth).IsZero() {
		t.Error("override not applied")
	}
}
