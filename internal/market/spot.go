package market

import (
	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/cost"
)

// Spot is a spot market. Long fills pay fees in base currency, short fills
// pay them in quote currency.
type Spot struct {
	Base        string
	Quote       string
	QuotePricer QuotePricer
}

// NewSpot creates a spot market for base/quote.
func NewSpot(base, quote string) *Spot {
	return &Spot{Base: base, Quote: quote}
}

// Symbol returns "BASE/QUOTE".
func (s *Spot) Symbol() string { return s.Base + "/" + s.Quote }

// BaseTicker returns the traded asset.
func (s *Spot) BaseTicker() string { return s.Base }

// QuoteTicker returns the currency prices are quoted in.
func (s *Spot) QuoteTicker() string { return s.Quote }

// QuotePrice returns the quote currency's price from QuotePricer, or 1.
func (s *Spot) QuotePrice() decimal.Decimal { return quotePrice(s.QuotePricer) }

// OpenPosition opens a long for positive sizes and a short for negative ones.
func (s *Spot) OpenPosition(price, size decimal.Decimal, ce cost.Engine) *Position {
	notional := price.Mul(size)
	fee := ce.FillCost(notional)

	if size.IsPositive() {
		base := size
		if !fee.IsZero() && !price.IsZero() {
			base = base.Sub(fee.Div(price))
		}
		return makePosition(s, base, notional.Neg())
	}

	return makePosition(s, size, notional.Neg().Sub(fee))
}

// ClosePosition offsets an existing position of size.
// Closing a short buys back exactly the contra size with no second fee charge.
func (s *Spot) ClosePosition(price, size decimal.Decimal, ce cost.Engine) *Position {
	contra := s.ContraPositionSize(size, ce)

	if size.IsPositive() {
		return s.OpenPosition(price, contra, ce)
	}
	return makePosition(s, size.Neg(), price.Mul(contra).Neg())
}

// ContraPositionSize returns -size for longs. Shorts are bought back with the
// larger of the minimum-cost and running-cost bounds so fees never leave a
// residual short.
func (s *Spot) ContraPositionSize(size decimal.Decimal, ce cost.Engine) decimal.Decimal {
	if !size.IsNegative() {
		return size.Neg()
	}

	minBound := ce.MinCost().Sub(size)
	one := decimal.NewFromInt(1)
	runningBound := ce.FlatCost().Sub(size.Div(one.Sub(ce.VariableCostRate())))
	return decimal.Max(minBound, runningBound)
}

// EmptyPosition returns a position with no balances.
func (s *Spot) EmptyPosition() *Position {
	return s.OpenPosition(decimal.Zero, decimal.Zero, cost.Engine{})
}

// CostPosition returns a position charging amount in the quote currency.
func (s *Spot) CostPosition(amount decimal.Decimal) *Position {
	return costPosition(s, amount)
}
