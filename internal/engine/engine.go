// Package engine provides the single-market trading loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/advance"
	"github.com/tathienbao/tradecore/internal/alerting"
	"github.com/tathienbao/tradecore/internal/execution"
	"github.com/tathienbao/tradecore/internal/listener"
	"github.com/tathienbao/tradecore/internal/metrics"
	"github.com/tathienbao/tradecore/internal/persistence"
	"github.com/tathienbao/tradecore/internal/portfolio"
	"github.com/tathienbao/tradecore/internal/types"
)

// Config holds engine configuration.
type Config struct {
	TickInterval        time.Duration // Period of the trading loop
	Cooldown            time.Duration // No new position for this long after a stop fills
	OrderTimeout        time.Duration // Max wait for an opening order to fill
	LogicUpdateInterval time.Duration // Period of TradingLogic.Update while flat
	ReconnectAttempts   int           // Listener update attempts per tick
	ReconnectDelay      time.Duration
	LedgerInterval      time.Duration // Period of ledger snapshots and heartbeats
}

// DefaultConfig returns default engine config.
func DefaultConfig() Config {
	return Config{
		TickInterval:        time.Second,
		Cooldown:            5 * time.Minute,
		OrderTimeout:        time.Minute,
		LogicUpdateInterval: 5 * time.Minute,
		ReconnectAttempts:   200,
		ReconnectDelay:      200 * time.Millisecond,
		LedgerInterval:      time.Minute,
	}
}

// ErrFeedLost is returned when the listener cannot be updated after every
// reconnect attempt. It stops the trading loop.
var ErrFeedLost = errors.New("market feed lost")

// Store is the persistence used by the engine.
type Store interface {
	SaveLedgerSnapshot(ctx context.Context, snapshot persistence.LedgerSnapshot) error
	SaveOrder(ctx context.Context, order persistence.OrderRecord) error
	SaveState(ctx context.Context, state persistence.EngineState) error
}

// Engine opens one position at a time on a single market, guards it with an
// advance order and waits out a cooldown once the advance order fills.
type Engine struct {
	cfg      Config
	logger   *slog.Logger
	actor    *execution.Actor
	listener listener.Listener
	logic    TradingLogic
	advance  advance.Logic
	alerter  alerting.Alerter
	store    Store
	recorder *metrics.Recorder
	now      func() time.Time

	// State
	mu              sync.RWMutex
	running         bool
	current         *advance.Order
	cooldownUntil   time.Time
	nextLogicUpdate time.Time
	cycles          int
	stopsTriggered  int
	orderTimeouts   int
	lastErr         error
	startedAt       time.Time
	startLedger     *portfolio.Portfolio

	// Channels
	done chan struct{}
	wg   sync.WaitGroup
}

// NewEngine creates a new trading engine. alerter and store may be nil.
func NewEngine(
	cfg Config,
	actor *execution.Actor,
	l listener.Listener,
	logic TradingLogic,
	advanceLogic advance.Logic,
	alerter alerting.Alerter,
	store Store,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	if cfg.LedgerInterval <= 0 {
		cfg.LedgerInterval = DefaultConfig().LedgerInterval
	}
	if cfg.ReconnectAttempts < 1 {
		cfg.ReconnectAttempts = 1
	}

	return &Engine{
		cfg:      cfg,
		logger:   logger.With("market", l.Market().Symbol()),
		actor:    actor,
		listener: l,
		logic:    logic,
		advance:  advanceLogic,
		alerter:  alerter,
		store:    store,
		recorder: metrics.NewRecorder(),
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Restore resumes counters and cooldown from a persisted state.
func (e *Engine) Restore(state *persistence.EngineState) {
	if state == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.cycles = state.Cycles
	e.stopsTriggered = state.StopsTriggered
	e.orderTimeouts = state.OrderTimeouts
	e.cooldownUntil = state.CooldownUntil

	e.logger.Info("engine state restored",
		"cycles", state.Cycles,
		"cooldown_until", state.CooldownUntil,
	)
}

// Start starts the trading and ledger loops.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine already running")
	}
	e.running = true
	e.startedAt = e.now()
	e.startLedger = portfolio.New(e.actor.Portfolio().Snapshot()...)
	e.mu.Unlock()

	e.logger.Info("starting trading engine", "venue", e.actor.Name())

	e.wg.Add(2)
	go e.tradingLoop(ctx)
	go e.ledgerLoop(ctx)

	e.alert(ctx, alerting.EventEngineStarted, "Trading engine started",
		"market", e.listener.Market().Symbol(),
		"venue", e.actor.Name(),
	)
	return nil
}

// tradingLoop runs Step on every tick until stopped or the feed is lost.
func (e *Engine) tradingLoop(ctx context.Context) {
	defer e.wg.Done()

	e.logger.Info("trading loop started")

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		err := e.Step(ctx)
		switch {
		case err == nil:
		case errors.Is(err, ErrFeedLost):
			e.setErr(err)
			e.recorder.RecordError("feed_lost")
			e.logger.Error("trading loop stopped", "err", err)
			e.alert(ctx, alerting.EventFeedLost, "Market feed lost", "error", err.Error())
			return
		case errors.Is(err, context.Canceled):
			return
		default:
			e.setErr(err)
			e.recorder.RecordError("cycle")
			e.logger.Warn("trading cycle failed", "err", err)
		}

		select {
		case <-ctx.Done():
			e.logger.Info("trading loop stopped: context cancelled")
			return
		case <-e.done:
			e.logger.Info("trading loop stopped: shutdown requested")
			return
		case <-ticker.C:
		}
	}
}

// Step runs one iteration of the trading loop.
func (e *Engine) Step(ctx context.Context) error {
	now := e.now()

	if !e.HasPosition() && !now.Before(e.nextLogicUpdate) {
		if err := e.logic.Update(ctx); err != nil {
			return fmt.Errorf("update trading logic: %w", err)
		}
		e.mu.Lock()
		e.nextLogicUpdate = now.Add(e.cfg.LogicUpdateInterval)
		e.mu.Unlock()
	}

	if err := e.updateListener(ctx); err != nil {
		return err
	}

	if e.HasPosition() {
		e.manageAdvanceOrder(ctx, now)
		return nil
	}

	if e.InCooldown() {
		return nil
	}

	price, size, ok := e.logic.OpenTrade()
	if !ok {
		return nil
	}
	return e.openTrade(ctx, price, size)
}

// updateListener retries the listener update up to ReconnectAttempts times.
func (e *Engine) updateListener(ctx context.Context) error {
	timer := metrics.NewTimer()

	var err error
	for attempt := 1; attempt <= e.cfg.ReconnectAttempts; attempt++ {
		if err = e.listener.Update(ctx); err == nil {
			timer.ObserveDataFeed()
			if attempt > 1 {
				e.logger.Info("market feed restored", "attempts", attempt)
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		e.logger.Warn("listener update failed", "attempt", attempt, "err", err)
		if attempt < e.cfg.ReconnectAttempts && e.cfg.ReconnectDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.cfg.ReconnectDelay):
			}
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrFeedLost, e.cfg.ReconnectAttempts, err)
}

// manageAdvanceOrder releases the current advance order once it is final.
func (e *Engine) manageAdvanceOrder(ctx context.Context, now time.Time) {
	e.mu.Lock()
	current := e.current
	e.mu.Unlock()

	switch current.State() {
	case types.AdvanceFilled:
		e.mu.Lock()
		e.current = nil
		e.stopsTriggered++
		e.cooldownUntil = now.Add(e.cfg.Cooldown)
		e.mu.Unlock()

		closing := current.Closing()
		pos := current.Position()
		profitable := pos.Portfolio.Size(pos.Market.QuoteTicker()).IsPositive()
		e.saveOrder(ctx, closing, "close")
		e.recorder.RecordTrade(pos.Market.Symbol(), types.SideOf(-closing.Size().Sign()).String(), profitable)

		e.logger.Info("position closed",
			"trigger", current.TriggerName(),
			"exit_price", closing.Price,
			"cooldown_until", now.Add(e.cfg.Cooldown),
		)
		e.alert(ctx, alerting.EventPositionClosed, "Advance order filled",
			"trigger", current.TriggerName(),
			"exit_price", closing.Price.String(),
			"ledger", e.actor.Portfolio().String(),
		)

	case types.AdvanceCancelled:
		e.mu.Lock()
		e.current = nil
		e.mu.Unlock()
		e.logger.Info("advance order cancelled")
	}
}

// openTrade executes an opening order, waits for it to fill and attaches
// an advance order to the filled position. A timeout fails the cycle only.
func (e *Engine) openTrade(ctx context.Context, price, size decimal.Decimal) error {
	m := e.listener.Market()
	order := e.actor.MakeOrder(m, price, size)

	task, err := e.actor.ExecuteOrder(ctx, order)
	if err != nil {
		e.alert(ctx, alerting.EventOrderRejected, "Order rejected",
			"market", m.Symbol(),
			"size", size.String(),
			"error", err.Error(),
		)
		return fmt.Errorf("open trade: %w", err)
	}
	e.saveOrder(ctx, order, "open")

	e.logger.Info("order placed",
		"order_id", order.ID,
		"price", price,
		"size", size,
	)

	waitCtx, cancel := context.WithTimeout(ctx, e.cfg.OrderTimeout)
	err = order.Wait(waitCtx)
	cancel()
	if err != nil {
		return e.abandon(ctx, order, task, err)
	}
	e.saveOrder(ctx, order, "open")

	pos := order.FilledPosition()
	ao, err := e.advance.OpenAdvanceOrder(ctx, pos)
	if err != nil {
		e.recorder.RecordError("advance_order")
		e.alert(ctx, alerting.EventPositionUnguarded, "Position open without advance order",
			"order_id", order.ID,
			"size", pos.OpenSize().String(),
			"error", err.Error(),
		)
		return fmt.Errorf("attach advance order: %w", err)
	}

	e.mu.Lock()
	e.current = ao
	e.cycles++
	e.mu.Unlock()

	e.alert(ctx, alerting.EventPositionOpened, "Position opened",
		"market", m.Symbol(),
		"size", pos.OpenSize().String(),
		"entry", pos.AvgPrice().String(),
		"stop", ao.Threshold().String(),
	)
	return nil
}

// abandon cancels an order that did not fill in time.
func (e *Engine) abandon(ctx context.Context, order *execution.Order, task *execution.Task, cause error) error {
	task.Cancel()
	order.Cancel()

	e.mu.Lock()
	e.orderTimeouts++
	e.mu.Unlock()

	e.saveOrder(ctx, order, "open")
	e.logger.Warn("order timed out", "order_id", order.ID, "remaining", order.Remaining())
	e.alert(ctx, alerting.EventOrderTimeout, "Order stuck, cancelled",
		"order_id", order.ID,
		"price", order.Price.String(),
		"filled", order.FilledSize().String(),
	)

	// Whatever did fill is still an open position that needs protection.
	if !order.FilledSize().IsZero() {
		if pos := order.FilledPosition(); pos.IsOpen() {
			if ao, err := e.advance.OpenAdvanceOrder(ctx, pos); err == nil {
				e.mu.Lock()
				e.current = ao
				e.mu.Unlock()
			}
		}
	}
	return cause
}

// ledgerLoop periodically records the root ledger.
func (e *Engine) ledgerLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.LedgerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.done:
			return
		case <-ticker.C:
			e.recordLedger(ctx)
		}
	}
}

// recordLedger publishes balances and persists the ledger and loop state.
func (e *Engine) recordLedger(ctx context.Context) {
	balances := e.actor.Portfolio().Snapshot()

	e.recorder.RecordHeartbeat()
	e.recorder.RecordLedger(balances)

	if e.store == nil {
		return
	}

	snapshot := persistence.LedgerSnapshot{Timestamp: e.now(), Balances: balances}
	if err := e.store.SaveLedgerSnapshot(ctx, snapshot); err != nil {
		e.recorder.RecordError("persistence")
		e.logger.Warn("failed to save ledger snapshot", "err", err)
	}
	if err := e.store.SaveState(ctx, e.State()); err != nil {
		e.recorder.RecordError("persistence")
		e.logger.Warn("failed to save engine state", "err", err)
	}
}

func (e *Engine) saveOrder(ctx context.Context, order *execution.Order, purpose string) {
	if e.store == nil || order == nil {
		return
	}
	if err := e.store.SaveOrder(ctx, persistence.NewOrderRecord(order, purpose)); err != nil {
		e.recorder.RecordError("persistence")
		e.logger.Warn("failed to save order", "order_id", order.ID, "err", err)
	}
}

func (e *Engine) alert(ctx context.Context, event alerting.AlertEvent, message string, fields ...any) {
	if e.alerter == nil {
		return
	}
	if err := e.alerter.Alert(ctx, alerting.EventSeverity(event), message, fields...); err != nil {
		e.logger.Warn("failed to send alert", "event", event, "err", err)
	}
}

func (e *Engine) setErr(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastErr = err
}

// Stop stops both loops and writes a final ledger snapshot. The current
// advance order stays with the actor.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	e.mu.Unlock()

	e.logger.Info("stopping trading engine")

	close(e.done)
	e.wg.Wait()

	e.recordLedger(ctx)
	e.alert(ctx, alerting.EventEngineStopped, "Trading engine stopped",
		"ledger", e.actor.Portfolio().String(),
	)
	summary := e.Summary()
	e.alert(ctx, alerting.EventSessionSummary, "Session summary", summary.Fields()...)

	e.logger.Info("trading engine stopped")
	return nil
}

// Flatten cancels the current advance order and closes what is left of its
// position at the touch. Call it after Stop.
func (e *Engine) Flatten(ctx context.Context) error {
	e.mu.Lock()
	current := e.current
	e.current = nil
	e.mu.Unlock()

	if current == nil {
		return nil
	}
	current.Cancel()

	pos := current.Position()
	if !pos.IsOpen() {
		if closing := current.Closing(); closing != nil && current.State() == types.AdvanceFilled {
			e.saveOrder(ctx, closing, "close")
		}
		return nil
	}

	order, err := e.actor.ClosePosition(ctx, pos, current.ExitPrice())
	if err != nil {
		e.alert(ctx, alerting.EventOrderRejected, "Close order rejected",
			"market", pos.Market.Symbol(),
			"error", err.Error(),
		)
		return fmt.Errorf("flatten: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, e.cfg.OrderTimeout)
	err = order.Wait(waitCtx)
	cancel()
	if err != nil {
		order.Cancel()
	}
	pos.Assimilate(order.FilledPosition())
	e.saveOrder(ctx, order, "close")

	e.alert(ctx, alerting.EventPositionClosed, "Position flattened",
		"exit_price", order.Price.String(),
		"filled", order.FilledSize().String(),
		"ledger", e.actor.Portfolio().String(),
	)
	if err != nil {
		return fmt.Errorf("flatten: %w", err)
	}
	return nil
}

// IsRunning returns true if engine is running.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// HasPosition returns true while an advance order is being managed.
func (e *Engine) HasPosition() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current != nil
}

// AdvanceOrder returns the advance order being managed, or nil.
func (e *Engine) AdvanceOrder() *advance.Order {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// InCooldown returns true while new positions are blocked.
func (e *Engine) InCooldown() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.now().Before(e.cooldownUntil)
}

// Err returns the last cycle error.
func (e *Engine) Err() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastErr
}

// Summary reports the ledger change since Start, valued at the current price.
func (e *Engine) Summary() alerting.SessionSummary {
	m := e.listener.Market()
	prices := map[string]decimal.Decimal{
		m.BaseTicker():  e.listener.CurrentPrice(),
		m.QuoteTicker(): decimal.NewFromInt(1),
	}

	e.mu.RLock()
	startedAt, start := e.startedAt, e.startLedger
	e.mu.RUnlock()
	if start == nil {
		start = portfolio.New()
	}

	summary := alerting.NewSessionSummary(startedAt, e.now(), start, e.actor.Portfolio(), prices)
	st := e.State()
	summary.Cycles = st.Cycles
	summary.StopsTriggered = st.StopsTriggered
	summary.OrderTimeouts = st.OrderTimeouts
	return summary
}

// State returns the loop state for persistence.
func (e *Engine) State() persistence.EngineState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return persistence.EngineState{
		LastUpdated:    e.now(),
		Cycles:         e.cycles,
		StopsTriggered: e.stopsTriggered,
		OrderTimeouts:  e.orderTimeouts,
		CooldownUntil:  e.cooldownUntil,
	}
}
