// Package portfolio implements the asset ledger: per-ticker balances with
// weighted-average cost basis.
package portfolio

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Balance is a signed quantity of one asset and its weighted-average entry price.
// EntryPrice is zero whenever Size is zero.
type Balance struct {
	Ticker     string
	Size       decimal.Decimal
	EntryPrice decimal.Decimal
}

// NewBalance creates a balance, normalizing the entry price of an empty balance.
func NewBalance(ticker string, size, entryPrice decimal.Decimal) Balance {
	if size.IsZero() {
		entryPrice = decimal.Zero
	}
	return Balance{Ticker: ticker, Size: size, EntryPrice: entryPrice}
}

// EntryCost returns size * entry price.
func (b Balance) EntryCost() decimal.Decimal {
	return b.Size.Mul(b.EntryPrice)
}

// IsShort returns true for negative balances.
func (b Balance) IsShort() bool {
	return b.Size.IsNegative()
}

// Assimilate merges other into b using a weighted-average cost basis.
// Merging balances of different tickers is a programming error.
func (b *Balance) Assimilate(other Balance) {
	if b.Ticker != other.Ticker {
		panic(fmt.Sprintf("portfolio: assimilate %s into %s", other.Ticker, b.Ticker))
	}

	netCost := b.EntryCost().Add(other.EntryCost())
	b.Size = b.Size.Add(other.Size)

	if b.Size.IsZero() {
		b.EntryPrice = decimal.Zero
		return
	}
	b.EntryPrice = netCost.Div(b.Size)
}

func (b Balance) String() string {
	return fmt.Sprintf("%s %s @ %s", b.Size, b.Ticker, b.EntryPrice)
}
