package market

import (
	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/cost"
	"github.com/tathienbao/tradecore/internal/portfolio"
)

// Position is a view over the portfolio produced by trading one market.
// Closed is derived from the open size, not a separate state.
type Position struct {
	Market    Market
	Portfolio *portfolio.Portfolio
}

// OpenSize returns the signed base size held by the position.
func (p *Position) OpenSize() decimal.Decimal {
	return p.Portfolio.Size(p.Market.BaseTicker())
}

// AvgPrice returns the weighted-average entry price of the base balance.
func (p *Position) AvgPrice() decimal.Decimal {
	b, _ := p.Portfolio.Balance(p.Market.BaseTicker())
	return b.EntryPrice
}

// IsOpen returns true if the open size exceeds OpenTolerance in magnitude.
func (p *Position) IsOpen() bool {
	return p.OpenSize().Abs().GreaterThan(OpenTolerance)
}

// IsClosed is the negation of IsOpen.
func (p *Position) IsClosed() bool {
	return !p.IsOpen()
}

// IsShort returns true for a negative open size.
func (p *Position) IsShort() bool {
	return p.OpenSize().IsNegative()
}

// ClosingSize returns the trade size needed to close the position.
func (p *Position) ClosingSize(ce cost.Engine) decimal.Decimal {
	return p.Market.ContraPositionSize(p.OpenSize(), ce)
}

// Value returns the position's worth in quote currency at currentPrice.
func (p *Position) Value(currentPrice decimal.Decimal) decimal.Decimal {
	return p.Portfolio.Value(map[string]decimal.Decimal{
		p.Market.BaseTicker():  currentPrice,
		p.Market.QuoteTicker(): decimal.NewFromInt(1),
	})
}

// Assimilate merges other's balances into this position.
func (p *Position) Assimilate(other *Position) {
	if other == nil {
		return
	}
	p.Portfolio.Assimilate(other.Portfolio)
}

func (p *Position) String() string {
	return p.Market.Symbol() + " " + p.Portfolio.String()
}
