package alerting

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/portfolio"
)

// SessionSummary contains the ledger change over one run for the shutdown report.
type SessionSummary struct {
	Started        time.Time
	Ended          time.Time
	StartingValue  decimal.Decimal
	EndingValue    decimal.Decimal
	TotalPL        decimal.Decimal
	ReturnPct      decimal.Decimal
	Cycles         int
	StopsTriggered int
	OrderTimeouts  int
	Balances       []portfolio.Balance
}

// NewSessionSummary values both ledgers at prices. Tickers without a price
// are valued at zero.
func NewSessionSummary(started, ended time.Time, start, end *portfolio.Portfolio, prices map[string]decimal.Decimal) SessionSummary {
	startValue := start.Value(prices)
	endValue := end.Value(prices)
	totalPL := endValue.Sub(startValue)

	var returnPct decimal.Decimal
	if startValue.IsPositive() {
		returnPct = totalPL.Div(startValue).Mul(decimal.NewFromInt(100))
	}

	return SessionSummary{
		Started:       started,
		Ended:         ended,
		StartingValue: startValue,
		EndingValue:   endValue,
		TotalPL:       totalPL,
		ReturnPct:     returnPct,
		Balances:      end.Snapshot(),
	}
}

// Duration returns the length of the session.
func (s SessionSummary) Duration() time.Duration {
	return s.Ended.Sub(s.Started)
}

// Fields returns the summary as alert key-value pairs.
func (s SessionSummary) Fields() []any {
	fields := []any{
		"duration", s.Duration().Round(time.Second).String(),
		"pl", s.TotalPL.StringFixed(2),
		"return_pct", s.ReturnPct.StringFixed(2),
		"cycles", s.Cycles,
		"stops", s.StopsTriggered,
		"timeouts", s.OrderTimeouts,
	}
	for _, b := range s.Balances {
		fields = append(fields, b.Ticker, b.Size.String())
	}
	return fields
}
