// Package market turns prices and sizes into fee-aware ledger deltas.
package market

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/cost"
	"github.com/tathienbao/tradecore/internal/portfolio"
	"github.com/tathienbao/tradecore/internal/types"
)

// OpenTolerance is the absolute size below which a position counts as closed.
var OpenTolerance = decimal.New(1, -4)

// Market converts trades into positions for one base/quote pair.
type Market interface {
	// Symbol identifies the market, e.g. "BTC/USD".
	Symbol() string
	BaseTicker() string
	QuoteTicker() string

	// QuotePrice is the value of one unit of quote currency; 1 unless priced.
	QuotePrice() decimal.Decimal

	// OpenPosition materializes a trade of size at price.
	// Negative sizes open shorts.
	OpenPosition(price, size decimal.Decimal, ce cost.Engine) *Position

	// ClosePosition returns the position that offsets an existing position
	// of size when merged into it.
	ClosePosition(price, size decimal.Decimal, ce cost.Engine) *Position

	// ContraPositionSize returns the fee-adjusted trade size that closes size.
	ContraPositionSize(size decimal.Decimal, ce cost.Engine) decimal.Decimal

	EmptyPosition() *Position

	// CostPosition records a settlement-currency debit with no trade attached.
	CostPosition(amount decimal.Decimal) *Position
}

// QuotePricer prices the quote currency of a market in a reference currency.
type QuotePricer interface {
	CurrentPrice() decimal.Decimal
}

// ParseSymbol splits "BASE/QUOTE" into its tickers.
func ParseSymbol(symbol string) (string, string, error) {
	base, quote, ok := strings.Cut(symbol, "/")
	base = strings.TrimSpace(base)
	quote = strings.TrimSpace(quote)
	if !ok || base == "" || quote == "" || base == quote {
		return "", "", fmt.Errorf("%w: %q", types.ErrInvalidSymbol, symbol)
	}
	return base, quote, nil
}

// SameMarket reports whether a and b trade the same pair.
func SameMarket(a, b Market) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Symbol() == b.Symbol()
}

func quotePrice(p QuotePricer) decimal.Decimal {
	if p == nil {
		return decimal.NewFromInt(1)
	}
	return p.CurrentPrice()
}

// makePosition builds a two-balance position. The base entry price is the
// quote spent per unit of base.
func makePosition(m Market, baseSize, quoteSize decimal.Decimal) *Position {
	qp := m.QuotePrice()
	baseEntry := qp
	if !baseSize.IsZero() {
		baseEntry = quoteSize.Mul(qp).Div(baseSize).Abs()
	}

	p := portfolio.New(
		portfolio.NewBalance(m.BaseTicker(), baseSize, baseEntry),
		portfolio.NewBalance(m.QuoteTicker(), quoteSize, qp),
	)
	return &Position{Market: m, Portfolio: p}
}

func costPosition(m Market, amount decimal.Decimal) *Position {
	p := portfolio.New(portfolio.NewBalance(m.QuoteTicker(), amount.Neg(), m.QuotePrice()))
	return &Position{Market: m, Portfolio: p}
}
