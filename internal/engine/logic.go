package engine

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/listener"
)

// TradingLogic decides when and how to open a position.
type TradingLogic interface {
	// Update refreshes the logic's inputs. It is never called while a
	// position is being managed.
	Update(ctx context.Context) error

	// OpenTrade returns the price and signed size of the next trade.
	// ok is false when no trade should be opened.
	OpenTrade() (price, size decimal.Decimal, ok bool)
}

// FixedTradeLogic opens a fixed-size position at the current touch.
// A positive size buys at the ask, a negative size sells at the bid.
type FixedTradeLogic struct {
	listener listener.Listener
	size     decimal.Decimal

	mu      sync.Mutex
	price   decimal.Decimal
	enabled bool
}

// NewFixedTradeLogic creates the logic for size on l's market.
func NewFixedTradeLogic(l listener.Listener, size decimal.Decimal) *FixedTradeLogic {
	return &FixedTradeLogic{listener: l, size: size, enabled: true}
}

// Update snapshots the touch price used by the next OpenTrade.
func (f *FixedTradeLogic) Update(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.price = f.touch()
	return nil
}

func (f *FixedTradeLogic) touch() decimal.Decimal {
	level := f.listener.CurrentAsk()
	if f.size.IsNegative() {
		level = f.listener.CurrentBid()
	}
	if level.Price.IsPositive() {
		return level.Price
	}
	return f.listener.CurrentPrice()
}

// SetEnabled pauses or resumes trading.
func (f *FixedTradeLogic) SetEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = enabled
}

func (f *FixedTradeLogic) OpenTrade() (decimal.Decimal, decimal.Decimal, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.enabled || f.size.IsZero() {
		return decimal.Zero, decimal.Zero, false
	}

	price := f.touch()
	if !price.IsPositive() {
		price = f.price
	}
	if !price.IsPositive() {
		return decimal.Zero, decimal.Zero, false
	}
	return price, f.size, true
}
