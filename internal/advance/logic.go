package advance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/execution"
	"github.com/tathienbao/tradecore/internal/listener"
	"github.com/tathienbao/tradecore/internal/market"
	"github.com/tathienbao/tradecore/internal/types"
)

// Logic attaches an advance order to a freshly opened position.
type Logic interface {
	OpenAdvanceOrder(ctx context.Context, pos *market.Position) (*Order, error)
}

// Stop-loss kinds.
const (
	KindFixed           = "fixed"
	KindTrailing        = "trailing"
	KindTrailingPercent = "trailing_percent"
	KindConvertible     = "convertible"
)

// StopLossConfig holds stop-loss parameters.
type StopLossConfig struct {
	Kind         string
	StopRate     decimal.Decimal // Fixed stop distance from entry, as a fraction
	TrailingGap  decimal.Decimal // Absolute gap for trailing stops
	TrailingRate decimal.Decimal // Fractional gap for trailing_percent stops
	UseOrderbook bool
}

// DefaultStopLossConfig returns a 2% fixed stop.
func DefaultStopLossConfig() StopLossConfig {
	return StopLossConfig{
		Kind:         KindFixed,
		StopRate:     decimal.NewFromFloat(0.02),
		TrailingRate: decimal.NewFromFloat(0.02),
	}
}

// Validate checks the parameters required by Kind.
func (c StopLossConfig) Validate() error {
	one := decimal.NewFromInt(1)
	inUnit := func(v decimal.Decimal) bool {
		return v.IsPositive() && v.LessThan(one)
	}

	switch c.Kind {
	case KindFixed:
		if !inUnit(c.StopRate) {
			return fmt.Errorf("%w: stop rate %s must be in (0,1)", types.ErrInvalidConfig, c.StopRate)
		}
	case KindTrailing:
		if !c.TrailingGap.IsPositive() {
			return fmt.Errorf("%w: trailing gap must be positive", types.ErrInvalidConfig)
		}
	case KindTrailingPercent:
		if !inUnit(c.TrailingRate) {
			return fmt.Errorf("%w: trailing rate %s must be in (0,1)", types.ErrInvalidConfig, c.TrailingRate)
		}
	case KindConvertible:
		if !inUnit(c.StopRate) {
			return fmt.Errorf("%w: stop rate %s must be in (0,1)", types.ErrInvalidConfig, c.StopRate)
		}
		if !c.TrailingGap.IsPositive() && !inUnit(c.TrailingRate) {
			return fmt.Errorf("%w: convertible stop needs a trailing gap or rate", types.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown stop kind %q", types.ErrInvalidConfig, c.Kind)
	}
	return nil
}

// StopLossLogic protects each position with a stop of the configured kind
// and hands it to the actor.
type StopLossLogic struct {
	cfg      StopLossConfig
	actor    *execution.Actor
	listener listener.Listener
	logger   *slog.Logger
}

// NewStopLossLogic creates the logic.
func NewStopLossLogic(cfg StopLossConfig, actor *execution.Actor, l listener.Listener, logger *slog.Logger) (*StopLossLogic, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StopLossLogic{cfg: cfg, actor: actor, listener: l, logger: logger}, nil
}

// Trigger builds the trigger for a position entered at entry.
func (l *StopLossLogic) Trigger(entry decimal.Decimal, long bool) Trigger {
	switch l.cfg.Kind {
	case KindTrailing:
		return NewTrailing(l.cfg.TrailingGap, entry)
	case KindTrailingPercent:
		return NewTrailingPercent(l.cfg.TrailingRate, entry)
	case KindConvertible:
		var trailing Trigger = NewTrailingPercent(l.cfg.TrailingRate, entry)
		if l.cfg.TrailingGap.IsPositive() {
			trailing = NewTrailing(l.cfg.TrailingGap, entry)
		}
		return NewConvertible(NewFixedFromRate(entry, l.cfg.StopRate, long), trailing, entry)
	default:
		return NewFixedFromRate(entry, l.cfg.StopRate, long)
	}
}

// OpenAdvanceOrder creates and activates a stop for pos.
func (l *StopLossLogic) OpenAdvanceOrder(ctx context.Context, pos *market.Position) (*Order, error) {
	if !pos.IsOpen() {
		return nil, fmt.Errorf("%w: position %s is not open", types.ErrInvalidOrderSize, pos.Market.Symbol())
	}

	entry := pos.AvgPrice()
	trigger := l.Trigger(entry, !pos.IsShort())

	order, err := New(pos, l.listener, trigger, l.cfg.UseOrderbook, l.logger)
	if err != nil {
		return nil, err
	}
	if _, err := l.actor.ActivateAdvanceOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("activate stop: %w", err)
	}

	l.logger.Info("stop attached",
		"market", pos.Market.Symbol(),
		"kind", trigger.Name(),
		"entry", entry,
		"size", pos.OpenSize(),
	)
	return order, nil
}
