// Package advance implements conditional position-closing orders.
package advance

import (
	"github.com/shopspring/decimal"
)

// Trigger computes the stop threshold of an advance order.
//
// Update is called on every evaluation with the reference price and the
// direction of the protected position. Trailing variants ratchet their
// reference price before returning the new threshold, so skipping an
// evaluation leaves the threshold stale.
type Trigger interface {
	Name() string
	Update(price decimal.Decimal, long bool) decimal.Decimal
	Threshold() decimal.Decimal
}

// triggersAt reports whether price crosses threshold adversely for the position.
func triggersAt(price, threshold decimal.Decimal, long bool) bool {
	if long {
		return price.LessThanOrEqual(threshold)
	}
	return price.GreaterThanOrEqual(threshold)
}

// Fixed triggers at a constant price.
type Fixed struct {
	Price decimal.Decimal
}

// NewFixed creates a fixed trigger at price.
func NewFixed(price decimal.Decimal) *Fixed {
	return &Fixed{Price: price}
}

// NewFixedFromRate places the stop rate away from entry against the position.
func NewFixedFromRate(entry, rate decimal.Decimal, long bool) *Fixed {
	one := decimal.NewFromInt(1)
	if long {
		return NewFixed(entry.Mul(one.Sub(rate)))
	}
	return NewFixed(entry.Mul(one.Add(rate)))
}

func (f *Fixed) Name() string { return "fixed" }

func (f *Fixed) Update(decimal.Decimal, bool) decimal.Decimal { return f.Price }

func (f *Fixed) Threshold() decimal.Decimal { return f.Price }

// ratchet tracks the most favourable price seen for a position.
type ratchet struct {
	record decimal.Decimal
	seeded bool
}

func (r *ratchet) update(price decimal.Decimal, long bool) decimal.Decimal {
	switch {
	case !r.seeded:
		r.record = price
		r.seeded = true
	case long && price.GreaterThan(r.record):
		r.record = price
	case !long && price.LessThan(r.record):
		r.record = price
	}
	return r.record
}

func newRatchet(start decimal.Decimal) ratchet {
	if start.IsZero() {
		return ratchet{}
	}
	return ratchet{record: start, seeded: true}
}

// Trailing keeps its threshold a fixed gap behind the best price seen.
type Trailing struct {
	Gap decimal.Decimal

	ratchet
	threshold decimal.Decimal
}

// NewTrailing creates a trailing trigger. A zero start seeds the record
// price from the first update. The threshold is zero until then.
func NewTrailing(gap, start decimal.Decimal) *Trailing {
	return &Trailing{Gap: gap, ratchet: newRatchet(start)}
}

func (t *Trailing) Name() string { return "trailing" }

func (t *Trailing) Update(price decimal.Decimal, long bool) decimal.Decimal {
	record := t.update(price, long)
	if long {
		t.threshold = record.Sub(t.Gap)
	} else {
		t.threshold = record.Add(t.Gap)
	}
	return t.threshold
}

func (t *Trailing) Threshold() decimal.Decimal { return t.threshold }

// TrailingPercent keeps its threshold a fixed fraction behind the best price seen.
type TrailingPercent struct {
	Rate decimal.Decimal

	ratchet
	threshold decimal.Decimal
}

// NewTrailingPercent creates a proportional trailing trigger; rate 0.05 trails by 5%.
func NewTrailingPercent(rate, start decimal.Decimal) *TrailingPercent {
	return &TrailingPercent{Rate: rate, ratchet: newRatchet(start)}
}

func (t *TrailingPercent) Name() string { return "trailing_percent" }

func (t *TrailingPercent) Update(price decimal.Decimal, long bool) decimal.Decimal {
	record := t.update(price, long)
	one := decimal.NewFromInt(1)
	if long {
		t.threshold = record.Mul(one.Sub(t.Rate))
	} else {
		t.threshold = record.Mul(one.Add(t.Rate))
	}
	return t.threshold
}

func (t *TrailingPercent) Threshold() decimal.Decimal { return t.threshold }

// Convertible starts as a fixed stop and switches to its trailing stop once
// the trailing threshold is strictly better than the entry price. The switch
// is permanent.
type Convertible struct {
	Fixed    *Fixed
	Trailing Trigger
	Entry    decimal.Decimal

	converted bool
	threshold decimal.Decimal
}

// NewConvertible creates a convertible trigger.
func NewConvertible(fixed *Fixed, trailing Trigger, entry decimal.Decimal) *Convertible {
	return &Convertible{
		Fixed:     fixed,
		Trailing:  trailing,
		Entry:     entry,
		threshold: fixed.Price,
	}
}

func (c *Convertible) Name() string { return "convertible" }

func (c *Convertible) Update(price decimal.Decimal, long bool) decimal.Decimal {
	trailing := c.Trailing.Update(price, long)

	if !c.converted {
		if long && trailing.GreaterThan(c.Entry) || !long && trailing.LessThan(c.Entry) {
			c.converted = true
		}
	}

	if c.converted {
		c.threshold = trailing
	} else {
		c.threshold = c.Fixed.Update(price, long)
	}
	return c.threshold
}

func (c *Convertible) Threshold() decimal.Decimal { return c.threshold }

// Converted reports whether the trailing stop has taken over.
func (c *Convertible) Converted() bool { return c.converted }
