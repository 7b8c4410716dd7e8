package market

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/cost"
)

// Derivative is a contract market settled in a separate currency.
// Fees are always charged against the settlement currency.
type Derivative struct {
	Contract    string
	Settlement  string
	Underlying  string
	Expiry      time.Time
	QuotePricer QuotePricer
}

// NewDerivative creates a derivative market; a zero expiry means perpetual.
func NewDerivative(contract, settlement, underlying string, expiry time.Time) *Derivative {
	return &Derivative{
		Contract:   contract,
		Settlement: settlement,
		Underlying: underlying,
		Expiry:     expiry,
	}
}

// Symbol returns "CONTRACT/SETTLEMENT".
func (d *Derivative) Symbol() string { return d.Contract + "/" + d.Settlement }

// BaseTicker returns the contract ticker.
func (d *Derivative) BaseTicker() string { return d.Contract }

// QuoteTicker returns the settlement currency.
func (d *Derivative) QuoteTicker() string { return d.Settlement }

// QuotePrice returns the settlement currency's price from QuotePricer, or 1.
func (d *Derivative) QuotePrice() decimal.Decimal { return quotePrice(d.QuotePricer) }

// Expired reports whether the contract has expired at now.
func (d *Derivative) Expired(now time.Time) bool {
	return !d.Expiry.IsZero() && !now.Before(d.Expiry)
}

func (d *Derivative) OpenPosition(price, size decimal.Decimal, ce cost.Engine) *Position {
	notional := price.Mul(size)
	return makePosition(d, size, notional.Add(ce.FillCost(notional)).Neg())
}

func (d *Derivative) ClosePosition(price, size decimal.Decimal, ce cost.Engine) *Position {
	return d.OpenPosition(price, d.ContraPositionSize(size, ce), ce)
}

// ContraPositionSize is symmetric: contract sizes carry no fees.
func (d *Derivative) ContraPositionSize(size decimal.Decimal, _ cost.Engine) decimal.Decimal {
	return size.Neg()
}

func (d *Derivative) EmptyPosition() *Position {
	return d.OpenPosition(decimal.Zero, decimal.Zero, cost.Engine{})
}

func (d *Derivative) CostPosition(amount decimal.Decimal) *Position {
	return costPosition(d, amount)
}
