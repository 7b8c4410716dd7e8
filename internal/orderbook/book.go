// Package orderbook holds a level-2 order book snapshot.
package orderbook

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/types"
)

// Level is one price level of the book.
type Level struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// Notional returns price * size.
func (l Level) Notional() decimal.Decimal {
	return l.Price.Mul(l.Size)
}

// Book is a thread-safe order book snapshot.
// Bids are kept in descending price order, asks in ascending order.
// Timestamp strictly increases with every Update.
type Book struct {
	mu        sync.RWMutex
	bids      []Level
	asks      []Level
	timestamp time.Time
}

// NewBook creates an empty book.
func NewBook() *Book {
	return &Book{}
}

// Update replaces both sides of the book.
// A timestamp that does not advance is bumped past the previous one so that
// every snapshot is distinguishable.
func (b *Book) Update(bids, asks []Level, ts time.Time) {
	nb := sortLevels(bids, true)
	na := sortLevels(asks, false)

	b.mu.Lock()
	defer b.mu.Unlock()

	if !ts.After(b.timestamp) {
		ts = b.timestamp.Add(time.Nanosecond)
	}
	b.bids = nb
	b.asks = na
	b.timestamp = ts
}

func sortLevels(levels []Level, desc bool) []Level {
	out := make([]Level, 0, len(levels))
	for _, l := range levels {
		if l.Size.IsPositive() && l.Price.IsPositive() {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i].Price.GreaterThan(out[j].Price)
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}

// Timestamp returns the time of the latest snapshot.
func (b *Book) Timestamp() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.timestamp
}

// BestBid returns the highest bid.
func (b *Book) BestBid() (Level, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 {
		return Level{}, false
	}
	return b.bids[0], true
}

// BestAsk returns the lowest ask.
func (b *Book) BestAsk() (Level, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.asks) == 0 {
		return Level{}, false
	}
	return b.asks[0], true
}

// Mid returns the midpoint of the best bid and ask.
func (b *Book) Mid() (decimal.Decimal, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return decimal.Zero, false
	}
	return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2)), true
}

// Bids returns a copy of the bid side.
func (b *Book) Bids() []Level {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Level(nil), b.bids...)
}

// Asks returns a copy of the ask side.
func (b *Book) Asks() []Level {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Level(nil), b.asks...)
}

// MarketBuyPrice returns the average price of buying size by sweeping asks.
func (b *Book) MarketBuyPrice(size decimal.Decimal) (decimal.Decimal, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sweep(b.asks, size)
}

// MarketSellPrice returns the average price of selling size by sweeping bids.
func (b *Book) MarketSellPrice(size decimal.Decimal) (decimal.Decimal, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sweep(b.bids, size)
}

func sweep(levels []Level, size decimal.Decimal) (decimal.Decimal, error) {
	size = size.Abs()
	if len(levels) == 0 {
		return decimal.Zero, types.ErrDataUnavailable
	}
	if size.IsZero() {
		return levels[0].Price, nil
	}

	remaining := size
	notional := decimal.Zero
	for _, l := range levels {
		take := decimal.Min(remaining, l.Size)
		notional = notional.Add(take.Mul(l.Price))
		remaining = remaining.Sub(take)
		if remaining.IsZero() {
			return notional.Div(size), nil
		}
	}
	return decimal.Zero, fmt.Errorf("%w: %s short of %s", types.ErrInsufficientLiquidity, remaining, size)
}
