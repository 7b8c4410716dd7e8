package execution

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/cost"
	"github.com/tathienbao/tradecore/internal/market"
	"github.com/tathienbao/tradecore/internal/types"
)

// Venue is the exchange-specific collaborator of the Actor.
type Venue interface {
	// Name identifies the venue.
	Name() string

	// SubmitOrder places the order on the venue.
	SubmitOrder(ctx context.Context, order *Order) error

	// UpdateOrder polls the venue and returns the size filled since the
	// previous update.
	UpdateOrder(ctx context.Context, order *Order) (decimal.Decimal, error)

	// CostEngine returns the transaction costs charged on market.
	CostEngine(m market.Market) cost.Engine

	// CancellationCost returns the settlement-currency charge for cancelling
	// an order on market.
	CancellationCost(m market.Market) decimal.Decimal
}

// AdvanceOrder is a conditional order driven by the Actor: it is polled until
// its trigger fires, then a closing order is executed on its behalf.
type AdvanceOrder interface {
	// Activate moves the order out of the inactive state and binds the
	// worker that will drive it.
	Activate(task *Task) error

	// Active returns false once the order was cancelled or settled, or its
	// position was closed.
	Active() bool

	// Triggered evaluates the trigger at the current price.
	Triggered() bool

	// Position is the position closed on trigger.
	Position() *market.Position

	// ExitPrice is the price to close at after a trigger.
	ExitPrice() decimal.Decimal

	// Trigger hands over the closing order. It returns false if the order
	// was cancelled in the meantime, in which case closing is not executed.
	Trigger(closing *Order) bool

	// Settle merges the closing order's fills into the position.
	Settle(closing *Order)
}

// FillHandler is called after each fill applied by the Actor.
type FillHandler func(order *Order, delta decimal.Decimal)

func sideLabel(size decimal.Decimal) string {
	return types.SideOf(size.Sign()).String()
}
