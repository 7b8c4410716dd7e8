// Package listener provides market data feeds consumed by the trading core.
package listener

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/market"
	"github.com/tathienbao/tradecore/internal/orderbook"
)

// Listener is a market data source for one market.
type Listener interface {
	Market() market.Market

	// Update refreshes the feed.
	Update(ctx context.Context) error

	// CurrentPrice returns the last traded price.
	CurrentPrice() decimal.Decimal

	// CurrentBid returns the best bid level; zero if the book is empty.
	CurrentBid() orderbook.Level

	// CurrentAsk returns the best ask level; zero if the book is empty.
	CurrentAsk() orderbook.Level

	// MarketBidPrice returns the average price received selling size now.
	MarketBidPrice(size decimal.Decimal) (decimal.Decimal, error)

	// MarketAskPrice returns the average price paid buying size now.
	MarketAskPrice(size decimal.Decimal) (decimal.Decimal, error)

	Orderbook() *orderbook.Book
}

// bookView implements the book-backed part of Listener.
type bookView struct {
	book *orderbook.Book
}

func (v bookView) Orderbook() *orderbook.Book { return v.book }

func (v bookView) CurrentBid() orderbook.Level {
	l, _ := v.book.BestBid()
	return l
}

func (v bookView) CurrentAsk() orderbook.Level {
	l, _ := v.book.BestAsk()
	return l
}

func (v bookView) MarketBidPrice(size decimal.Decimal) (decimal.Decimal, error) {
	return v.book.MarketSellPrice(size)
}

func (v bookView) MarketAskPrice(size decimal.Decimal) (decimal.Decimal, error) {
	return v.book.MarketBuyPrice(size)
}
