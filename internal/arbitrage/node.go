package arbitrage

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/cost"
	"github.com/tathienbao/tradecore/internal/execution"
	"github.com/tathienbao/tradecore/internal/listener"
	"github.com/tathienbao/tradecore/internal/market"
)

// Direction is the side a leg trades on its market.
type Direction int

const (
	// Long buys base with quote.
	Long Direction = iota
	// Short sells base for quote.
	Short
)

func (d Direction) String() string {
	if d == Short {
		return "Short"
	}
	return "Long"
}

// Opposite returns the mirrored direction.
func (d Direction) Opposite() Direction {
	if d == Short {
		return Long
	}
	return Short
}

// Executor places leg orders. *execution.Actor implements it.
type Executor interface {
	CostEngine(m market.Market) cost.Engine
	MakeOrder(m market.Market, price, size decimal.Decimal) *execution.Order
	ExecuteOrder(ctx context.Context, order *execution.Order) (*execution.Task, error)
}

// Node is one leg of an arbitrage cycle. It converts a source currency into
// a destination currency on a single market.
//
// The trade price and size factor are cached against the order book
// timestamp. A node is owned by one scanning goroutine and is not safe for
// concurrent use.
type Node struct {
	Direction Direction
	Logic     Logic
	Listener  listener.Listener
	Executor  Executor

	timestamp time.Time
	price     decimal.Decimal
	factor    decimal.Decimal
	tradeable decimal.Decimal
}

// NewNode creates a leg.
func NewNode(dir Direction, logic Logic, l listener.Listener, exec Executor) *Node {
	return &Node{Direction: dir, Logic: logic, Listener: l, Executor: exec}
}

// Mirror returns a fresh node trading the same market in the opposite direction.
func (n *Node) Mirror() *Node {
	return NewNode(n.Direction.Opposite(), n.Logic, n.Listener, n.Executor)
}

// Market returns the leg's market.
func (n *Node) Market() market.Market {
	return n.Listener.Market()
}

// Source returns the currency the leg spends.
func (n *Node) Source() string {
	if n.Direction == Long {
		return n.Market().QuoteTicker()
	}
	return n.Market().BaseTicker()
}

// Dest returns the currency the leg receives.
func (n *Node) Dest() string {
	if n.Direction == Long {
		return n.Market().BaseTicker()
	}
	return n.Market().QuoteTicker()
}

// Synced reports whether the cache matches the current book snapshot.
func (n *Node) Synced() bool {
	return !n.timestamp.IsZero() && n.timestamp.Equal(n.Listener.Orderbook().Timestamp())
}

// FeeRate returns the executor's variable cost rate on the leg's market.
func (n *Node) FeeRate() decimal.Decimal {
	return n.Executor.CostEngine(n.Market()).VariableCostRate()
}

// TradePrice returns the cached trade price.
func (n *Node) TradePrice() decimal.Decimal {
	return n.price
}

// refresh recomputes the cache from the book unless it is already synced.
func (n *Node) refresh() error {
	if n.Synced() {
		return nil
	}

	book := n.Listener.Orderbook()
	ts := book.Timestamp()

	var price, tradeable decimal.Decimal
	var err error
	if n.Direction == Long {
		if price, err = n.Logic.BuyPrice(book); err == nil {
			tradeable, err = n.Logic.BuySize(book)
		}
	} else {
		if price, err = n.Logic.SellPrice(book); err == nil {
			tradeable, err = n.Logic.SellSize(book)
		}
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", n.Direction, n.Market().Symbol(), err)
	}
	if !price.IsPositive() {
		return fmt.Errorf("%s %s: non-positive price %s", n.Direction, n.Market().Symbol(), price)
	}

	n.price = price
	n.tradeable = tradeable
	if n.Direction == Long {
		n.factor = decimal.NewFromInt(1).Div(price)
	} else {
		n.factor = price
	}
	n.timestamp = ts
	return nil
}

// PassThrough carries one leg's contribution through a cycle. value is the
// running worth of one origin unit; originSize and sourceSize are shrunk
// proportionally when the book cannot absorb the destination size.
func (n *Node) PassThrough(value, originSize, sourceSize decimal.Decimal) (decimal.Decimal, decimal.Decimal, decimal.Decimal, error) {
	if err := n.refresh(); err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, err
	}

	destSize := sourceSize.Mul(n.factor)
	if destSize.GreaterThan(n.tradeable) {
		originSize = originSize.Mul(n.tradeable).Div(destSize)
		destSize = n.tradeable
	}

	keep := decimal.NewFromInt(1).Sub(n.FeeRate())
	value = value.Mul(keep).Mul(n.factor)
	destSize = destSize.Mul(keep)

	return value, originSize, destSize, nil
}

// ExecuteTrade places the leg's order for sourceSize and returns the
// destination size expected after fees. The order is submitted, not waited on.
func (n *Node) ExecuteTrade(ctx context.Context, sourceSize decimal.Decimal) (decimal.Decimal, *execution.Order, error) {
	if err := n.refresh(); err != nil {
		return decimal.Zero, nil, err
	}

	destSize := sourceSize.Mul(n.factor)

	// Orders are sized in base units: a long leg buys the destination, a
	// short leg sells the source.
	size := destSize
	if n.Direction == Short {
		size = sourceSize.Neg()
	}

	order := n.Executor.MakeOrder(n.Market(), n.price, size)
	if _, err := n.Executor.ExecuteOrder(ctx, order); err != nil {
		return decimal.Zero, order, fmt.Errorf("execute %s: %w", n, err)
	}

	keep := decimal.NewFromInt(1).Sub(n.FeeRate())
	return destSize.Mul(keep), order, nil
}

func (n *Node) String() string {
	return n.Direction.String() + " " + n.Market().Symbol()
}
