// Package cost converts fill notionals into transaction costs.
package cost

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/types"
)

// Engine computes the cost of a fill as a flat charge plus a proportional
// rate, floored at a minimum. The zero value charges nothing.
type Engine struct {
	Flat decimal.Decimal
	Min  decimal.Decimal
	Rate decimal.Decimal
}

// NewEngine creates a cost engine and validates its parameters.
func NewEngine(flat, min, rate decimal.Decimal) (Engine, error) {
	e := Engine{Flat: flat, Min: min, Rate: rate}
	if err := e.Validate(); err != nil {
		return Engine{}, err
	}
	return e, nil
}

// Proportional returns an engine charging only a variable rate.
func Proportional(rate decimal.Decimal) Engine {
	return Engine{Rate: rate}
}

// Validate checks that costs are non-negative and the rate lies in [0, 1).
// A rate of 1 or more leaves contra-position sizing undefined.
func (e Engine) Validate() error {
	if e.Flat.IsNegative() || e.Min.IsNegative() {
		return fmt.Errorf("%w: costs must be non-negative", types.ErrInvalidFeeRate)
	}
	if e.Rate.IsNegative() || e.Rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: variable rate %s outside [0, 1)", types.ErrInvalidFeeRate, e.Rate)
	}
	return nil
}

// IsZero reports whether the engine charges nothing.
func (e Engine) IsZero() bool {
	return e.Flat.IsZero() && e.Min.IsZero() && e.Rate.IsZero()
}

// FillCost returns max(flat + |notional|*rate, min).
// Zero-cost engines and zero notionals cost nothing.
func (e Engine) FillCost(notional decimal.Decimal) decimal.Decimal {
	if e.IsZero() || notional.IsZero() {
		return decimal.Zero
	}

	running := e.Flat.Add(notional.Abs().Mul(e.Rate))
	return decimal.Max(running, e.Min)
}

// MinCost is the floor charged on any non-zero fill.
func (e Engine) MinCost() decimal.Decimal { return e.Min }

// FlatCost is charged once per fill on top of the variable part.
func (e Engine) FlatCost() decimal.Decimal { return e.Flat }

// VariableCostRate is the fraction of the notional charged per fill.
func (e Engine) VariableCostRate() decimal.Decimal { return e.Rate }
