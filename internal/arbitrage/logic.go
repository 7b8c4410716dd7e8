// Package arbitrage detects and executes cyclic conversion opportunities
// across markets.
package arbitrage

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/orderbook"
	"github.com/tathienbao/tradecore/internal/types"
)

// Logic prices one leg from an order book.
//
// Buy sizes are in base units. Sell sizes are in quote units, the currency a
// short leg produces.
type Logic interface {
	BuyPrice(book *orderbook.Book) (decimal.Decimal, error)
	BuySize(book *orderbook.Book) (decimal.Decimal, error)
	SellPrice(book *orderbook.Book) (decimal.Decimal, error)
	SellSize(book *orderbook.Book) (decimal.Decimal, error)
}

// TopOfBook trades against the best level only.
type TopOfBook struct{}

func (TopOfBook) BuyPrice(book *orderbook.Book) (decimal.Decimal, error) {
	ask, err := bestAsk(book)
	return ask.Price, err
}

func (TopOfBook) BuySize(book *orderbook.Book) (decimal.Decimal, error) {
	ask, err := bestAsk(book)
	return ask.Size, err
}

func (TopOfBook) SellPrice(book *orderbook.Book) (decimal.Decimal, error) {
	bid, err := bestBid(book)
	return bid.Price, err
}

func (TopOfBook) SellSize(book *orderbook.Book) (decimal.Decimal, error) {
	bid, err := bestBid(book)
	return bid.Notional(), err
}

// Depth walks the book up to a fixed number of levels. Prices are the
// volume-weighted average over the levels taken.
type Depth struct {
	Levels int
}

func (l Depth) BuyPrice(book *orderbook.Book) (decimal.Decimal, error) {
	size, err := l.BuySize(book)
	if err != nil {
		return decimal.Zero, err
	}
	return book.MarketBuyPrice(size)
}

func (l Depth) BuySize(book *orderbook.Book) (decimal.Decimal, error) {
	asks := l.take(book.Asks())
	if len(asks) == 0 {
		return decimal.Zero, fmt.Errorf("%w: no asks", types.ErrDataUnavailable)
	}
	total := decimal.Zero
	for _, a := range asks {
		total = total.Add(a.Size)
	}
	return total, nil
}

func (l Depth) SellPrice(book *orderbook.Book) (decimal.Decimal, error) {
	bids := l.take(book.Bids())
	if len(bids) == 0 {
		return decimal.Zero, fmt.Errorf("%w: no bids", types.ErrDataUnavailable)
	}
	size := decimal.Zero
	for _, b := range bids {
		size = size.Add(b.Size)
	}
	return book.MarketSellPrice(size)
}

func (l Depth) SellSize(book *orderbook.Book) (decimal.Decimal, error) {
	bids := l.take(book.Bids())
	if len(bids) == 0 {
		return decimal.Zero, fmt.Errorf("%w: no bids", types.ErrDataUnavailable)
	}
	total := decimal.Zero
	for _, b := range bids {
		total = total.Add(b.Notional())
	}
	return total, nil
}

func (l Depth) take(levels []orderbook.Level) []orderbook.Level {
	if l.Levels > 0 && len(levels) > l.Levels {
		return levels[:l.Levels]
	}
	return levels
}

func bestAsk(book *orderbook.Book) (orderbook.Level, error) {
	ask, ok := book.BestAsk()
	if !ok {
		return orderbook.Level{}, fmt.Errorf("%w: no asks", types.ErrDataUnavailable)
	}
	return ask, nil
}

func bestBid(book *orderbook.Book) (orderbook.Level, error) {
	bid, ok := book.BestBid()
	if !ok {
		return orderbook.Level{}, fmt.Errorf("%w: no bids", types.ErrDataUnavailable)
	}
	return bid, nil
}
