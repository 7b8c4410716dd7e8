package advance

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/execution"
	"github.com/tathienbao/tradecore/internal/listener"
	"github.com/tathienbao/tradecore/internal/market"
	"github.com/tathienbao/tradecore/internal/metrics"
	"github.com/tathienbao/tradecore/internal/types"
)

// Order closes a position once its trigger fires.
//
// States move Inactive -> Activated -> Triggered -> Filled, or from
// Activated/Triggered to Cancelled. The trigger is evaluated by the actor
// worker bound at activation.
type Order struct {
	position     *market.Position
	listener     listener.Listener
	trigger      Trigger
	useOrderbook bool
	recorder     *metrics.Recorder
	logger       *slog.Logger

	mu        sync.Mutex
	state     types.AdvanceState
	task      *execution.Task
	closing   *execution.Order
	lastPrice decimal.Decimal

	settleOnce sync.Once
}

// New creates an inactive advance order protecting position.
// The listener must feed the position's market.
func New(position *market.Position, l listener.Listener, trigger Trigger, useOrderbook bool, logger *slog.Logger) (*Order, error) {
	if position == nil || l == nil || !market.SameMarket(position.Market, l.Market()) {
		return nil, types.ErrMarketMismatch
	}
	if trigger == nil {
		return nil, fmt.Errorf("%w: advance order needs a trigger", types.ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Order{
		position:     position,
		listener:     l,
		trigger:      trigger,
		useOrderbook: useOrderbook,
		recorder:     metrics.NewRecorder(),
		logger:       logger.With("market", position.Market.Symbol(), "trigger", trigger.Name()),
		state:        types.AdvanceInactive,
	}, nil
}

// Activate moves the order to Activated and binds the driving worker.
func (o *Order) Activate(task *execution.Task) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != types.AdvanceInactive {
		return fmt.Errorf("%w: state %s", types.ErrAlreadyActivated, o.state)
	}
	o.state = types.AdvanceActivated
	o.task = task
	o.recorder.RecordAdvanceOrder(o.trigger.Name(), o.state.String())
	return nil
}

// Active returns true while the order is activated or triggered and the
// position is still open.
func (o *Order) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.position.IsClosed() {
		return false
	}
	return o.state == types.AdvanceActivated || o.state == types.AdvanceTriggered
}

// Triggered evaluates the trigger at the current reference price.
// Trailing triggers ratchet on every call.
func (o *Order) Triggered() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.state {
	case types.AdvanceTriggered, types.AdvanceFilled:
		return true
	case types.AdvanceActivated:
	default:
		return false
	}
	if o.position.IsClosed() {
		return false
	}

	long := !o.position.IsShort()
	price := o.referencePrice(long)
	if price.IsZero() {
		return false
	}

	threshold := o.trigger.Update(price, long)
	o.lastPrice = price
	o.recorder.RecordAdvanceThreshold(o.position.Market.Symbol(), threshold)

	return triggersAt(price, threshold, long)
}

// referencePrice returns the best bid for longs and best ask for shorts when
// the book is used, otherwise the last price. Caller holds mu.
func (o *Order) referencePrice(long bool) decimal.Decimal {
	if o.useOrderbook {
		level := o.listener.CurrentAsk()
		if long {
			level = o.listener.CurrentBid()
		}
		if !level.Price.IsZero() {
			return level.Price
		}
	}
	return o.listener.CurrentPrice()
}

// Position returns the protected position.
func (o *Order) Position() *market.Position {
	return o.position
}

// ExitPrice returns the touch price on the closing side, falling back to the
// last evaluated price when that side of the book is empty.
func (o *Order) ExitPrice() decimal.Decimal {
	o.mu.Lock()
	defer o.mu.Unlock()

	level := o.listener.CurrentAsk()
	if !o.position.IsShort() {
		level = o.listener.CurrentBid()
	}
	if !level.Price.IsZero() {
		return level.Price
	}
	return o.lastPrice
}

// Trigger records the closing order and moves to Triggered.
func (o *Order) Trigger(closing *execution.Order) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != types.AdvanceActivated {
		return false
	}
	o.state = types.AdvanceTriggered
	o.closing = closing
	o.recorder.RecordAdvanceOrder(o.trigger.Name(), o.state.String())
	o.logger.Info("stop triggered",
		"price", o.lastPrice,
		"threshold", o.trigger.Threshold(),
		"closing_size", closing.Size(),
	)
	return true
}

// Settle merges the closing order's fills into the position. Only the first
// call merges. The order ends Filled when it was triggered and not cancelled,
// or when the merged fills closed the position.
func (o *Order) Settle(closing *execution.Order) {
	o.settleOnce.Do(func() {
		o.position.Assimilate(closing.FilledPosition())
	})

	o.mu.Lock()
	defer o.mu.Unlock()
	switch {
	case o.state == types.AdvanceTriggered,
		o.state == types.AdvanceCancelled && o.closing == closing && o.position.IsClosed():
		o.state = types.AdvanceFilled
		o.recorder.RecordAdvanceOrder(o.trigger.Name(), o.state.String())
	}
}

// Cancel deactivates the order and joins its worker. A triggered order then
// cancels its closing order and settles whatever filled, so the position is
// not touched after Cancel returns.
func (o *Order) Cancel() {
	o.mu.Lock()
	prev := o.state
	switch prev {
	case types.AdvanceFilled, types.AdvanceCancelled:
		o.mu.Unlock()
		return
	}
	o.state = types.AdvanceCancelled
	task := o.task
	closing := o.closing
	o.mu.Unlock()

	o.recorder.RecordAdvanceOrder(o.trigger.Name(), types.AdvanceCancelled.String())

	if task != nil {
		task.Cancel()
		task.Wait()
	}
	if prev == types.AdvanceTriggered && closing != nil {
		closing.Cancel()
		o.Settle(closing)
	}
}

// State returns the current state.
func (o *Order) State() types.AdvanceState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Filled returns true once the position is closed.
func (o *Order) Filled() bool {
	return o.position.IsClosed()
}

// Threshold returns the latest trigger threshold.
func (o *Order) Threshold() decimal.Decimal {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.trigger.Threshold()
}

// TriggerName returns the trigger variant.
func (o *Order) TriggerName() string {
	return o.trigger.Name()
}

// Closing returns the closing order once triggered.
func (o *Order) Closing() *execution.Order {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closing
}
