// Package execution drives orders to completion against a venue.
package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/cost"
	"github.com/tathienbao/tradecore/internal/market"
	"github.com/tathienbao/tradecore/internal/portfolio"
	"github.com/tathienbao/tradecore/internal/types"
)

// Order is a unit of asynchronous execution. It is submitted at a price and
// size, filled incrementally and may be cancelled.
//
// Fills and cancellation are serialized by the order's own lock. Merges into
// the parent portfolio are serialized by the portfolio.
type Order struct {
	ID               string
	Market           market.Market
	Price            decimal.Decimal
	CostEngine       cost.Engine
	CancellationCost decimal.Decimal
	CreatedAt        time.Time

	parent *portfolio.Portfolio
	target decimal.Decimal

	mu         sync.Mutex
	remaining  decimal.Decimal
	traded     decimal.Decimal
	filled     *market.Position
	executed   bool
	executedAt time.Time
	cancelled  bool
	done       chan struct{}
}

// NewOrder creates an order. Fills are mirrored into parent when it is non-nil.
func NewOrder(m market.Market, price, size decimal.Decimal, ce cost.Engine, cancellationCost decimal.Decimal, parent *portfolio.Portfolio) *Order {
	return &Order{
		ID:               uuid.New().String(),
		Market:           m,
		Price:            price,
		CostEngine:       ce,
		CancellationCost: cancellationCost,
		CreatedAt:        time.Now(),
		parent:           parent,
		target:           size,
		remaining:        size,
		filled:           m.EmptyPosition(),
		done:             make(chan struct{}),
	}
}

// Execute marks the order as submitted. Fills are only accepted afterwards.
func (o *Order) Execute() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.executed {
		return fmt.Errorf("%w: %s", types.ErrOrderAlreadyExecuted, o.ID)
	}
	o.executed = true
	o.executedAt = time.Now()
	if o.remaining.IsZero() {
		close(o.done)
	}
	return nil
}

// Fill applies a fill of delta at the order price.
// delta must share the sign of the remaining size and not exceed it.
func (o *Order) Fill(delta decimal.Decimal) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.executed {
		return fmt.Errorf("%w: %s", types.ErrOrderNotExecuted, o.ID)
	}
	if delta.IsZero() {
		return nil
	}
	if delta.Sign() != o.remaining.Sign() || delta.Abs().GreaterThan(o.remaining.Abs()) {
		return fmt.Errorf("%w: fill %s against remaining %s", types.ErrOverfill, delta, o.remaining)
	}

	pos := o.Market.OpenPosition(o.Price, delta, o.CostEngine)
	o.filled.Assimilate(pos)
	if o.parent != nil {
		o.parent.Assimilate(pos.Portfolio)
	}

	o.remaining = o.remaining.Sub(delta)
	o.traded = o.traded.Add(delta)
	if o.remaining.IsZero() {
		close(o.done)
	}
	return nil
}

// Cancel zeroes the remaining size and charges the cancellation cost once.
// It returns false when there was nothing to cancel: the order was never
// executed, is already filled or was already cancelled.
func (o *Order) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.executed || o.cancelled || o.remaining.IsZero() {
		return false
	}

	o.remaining = decimal.Zero
	o.cancelled = true

	if o.CancellationCost.IsPositive() {
		charge := o.Market.CostPosition(o.CancellationCost)
		o.filled.Assimilate(charge)
		if o.parent != nil {
			o.parent.Assimilate(charge.Portfolio)
		}
	}
	close(o.done)
	return true
}

// Filled returns true once nothing remains to fill.
func (o *Order) Filled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.remaining.IsZero()
}

// HasFilled is a predicate form of Filled for polling loops.
func (o *Order) HasFilled() bool {
	return o.Filled()
}

// Executed returns true once the order was submitted.
func (o *Order) Executed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.executed
}

// Size returns the original signed size.
func (o *Order) Size() decimal.Decimal {
	return o.target
}

// FilledSize returns the signed size filled so far. Unlike Size minus
// Remaining it is not affected by cancellation.
func (o *Order) FilledSize() decimal.Decimal {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.traded
}

// Remaining returns the signed size left to fill.
func (o *Order) Remaining() decimal.Decimal {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.remaining
}

func (o *Order) IsShort() bool {
	return o.target.IsNegative()
}

// Side returns the trade direction.
func (o *Order) Side() types.Side {
	return types.SideOf(o.target.Sign())
}

// FilledPosition returns the accumulated fills. The returned position shares
// state with the order and keeps changing until the order is done.
func (o *Order) FilledPosition() *market.Position {
	return o.filled
}

// Status derives the order status.
func (o *Order) Status() types.OrderStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch {
	case !o.executed:
		return types.OrderStatusCreated
	case o.cancelled:
		return types.OrderStatusCancelled
	case o.remaining.IsZero():
		return types.OrderStatusFilled
	case !o.remaining.Equal(o.target):
		return types.OrderStatusPartialFill
	default:
		return types.OrderStatusPending
	}
}

// Done is closed when the order is fully filled or cancelled.
func (o *Order) Done() <-chan struct{} {
	return o.done
}

// Wait blocks until the order is done or ctx expires.
// Expiry is reported as ErrOrderTimeout.
func (o *Order) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %s remaining %s: %v", types.ErrOrderTimeout, o.ID, o.Remaining(), ctx.Err())
	}
}

func (o *Order) String() string {
	return fmt.Sprintf("order %s %s %s @ %s (%s)", o.ID[:8], o.Market.Symbol(), o.target, o.Price, o.Status())
}
