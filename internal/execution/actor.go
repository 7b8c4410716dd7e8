package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"
	"golang.org/x/time/rate"

	"github.com/tathienbao/tradecore/internal/cost"
	"github.com/tathienbao/tradecore/internal/market"
	"github.com/tathienbao/tradecore/internal/metrics"
	"github.com/tathienbao/tradecore/internal/portfolio"
	"github.com/tathienbao/tradecore/internal/types"
)

// Worker kinds.
const (
	KindOrder   = "order"
	KindAdvance = "advance"
)

// Config holds actor configuration.
type Config struct {
	OrderUpdateInterval time.Duration // Poll period of every worker
	SubmitRatePerSecond float64       // Venue submission rate limit; 0 disables
	SubmitBurst         int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		OrderUpdateInterval: 200 * time.Millisecond,
		SubmitRatePerSecond: 10,
		SubmitBurst:         3,
	}
}

// Actor drives orders and advance orders to completion on a venue.
// It owns the root portfolio that every fill is merged into.
type Actor struct {
	cfg       Config
	venue     Venue
	portfolio *portfolio.Portfolio
	limiter   *rate.Limiter
	recorder  *metrics.Recorder
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup

	mu          sync.Mutex
	closed      bool
	fillHandler FillHandler
}

// NewActor creates an actor. A nil root starts from an empty portfolio.
func NewActor(cfg Config, venue Venue, root *portfolio.Portfolio, logger *slog.Logger) *Actor {
	if logger == nil {
		logger = slog.Default()
	}
	if root == nil {
		root = portfolio.New()
	}
	if cfg.OrderUpdateInterval <= 0 {
		cfg.OrderUpdateInterval = DefaultConfig().OrderUpdateInterval
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.SubmitRatePerSecond > 0 {
		burst := cfg.SubmitBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.SubmitRatePerSecond), burst)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Actor{
		cfg:       cfg,
		venue:     venue,
		portfolio: root,
		limiter:   limiter,
		recorder:  metrics.NewRecorder(),
		logger:    logger.With("venue", venue.Name()),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Name returns the venue name.
func (a *Actor) Name() string {
	return a.venue.Name()
}

// Portfolio returns the root ledger.
func (a *Actor) Portfolio() *portfolio.Portfolio {
	return a.portfolio
}

// CostEngine returns the venue's transaction costs for m.
func (a *Actor) CostEngine(m market.Market) cost.Engine {
	return a.venue.CostEngine(m)
}

// SetFillHandler sets the callback for fill events.
func (a *Actor) SetFillHandler(handler FillHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fillHandler = handler
}

// MakeOrder creates an unexecuted order whose fills flow into the root ledger.
func (a *Actor) MakeOrder(m market.Market, price, size decimal.Decimal) *Order {
	return NewOrder(m, price, size, a.venue.CostEngine(m), a.venue.CancellationCost(m), a.portfolio)
}

// ExecuteOrder marks the order executed, submits it and starts a worker that
// applies venue fills until the order is filled or cancelled.
//
// A venue error during polling terminates the worker and leaves the order
// unfilled; callers detect this by timing out on the order.
func (a *Actor) ExecuteOrder(ctx context.Context, order *Order) (*Task, error) {
	if err := a.submit(ctx, order); err != nil {
		return nil, err
	}
	if order.Filled() {
		return finishedTask(KindOrder), nil
	}

	task, taskCtx, err := a.newTask(KindOrder)
	if err != nil {
		return nil, err
	}
	a.start(taskCtx, task, func(ctx context.Context) error {
		return a.awaitFill(ctx, order)
	})
	return task, nil
}

// ActivateAdvanceOrder activates ao and starts a worker that polls its
// trigger. On trigger the worker executes a closing order, waits for it to
// fill and settles the fill into the advance order's position.
func (a *Actor) ActivateAdvanceOrder(ctx context.Context, ao AdvanceOrder) (*Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	task, taskCtx, err := a.newTask(KindAdvance)
	if err != nil {
		return nil, err
	}
	if err := ao.Activate(task); err != nil {
		task.Cancel()
		return nil, err
	}

	a.start(taskCtx, task, func(ctx context.Context) error {
		return a.manageAdvanceOrder(ctx, ao)
	})
	return task, nil
}

// ClosePosition executes an order that closes pos at exitPrice.
func (a *Actor) ClosePosition(ctx context.Context, pos *market.Position, exitPrice decimal.Decimal) (*Order, error) {
	size := pos.ClosingSize(a.venue.CostEngine(pos.Market))
	order := a.MakeOrder(pos.Market, exitPrice, size)

	if _, err := a.ExecuteOrder(ctx, order); err != nil {
		return order, err
	}
	return order, nil
}

// Shutdown cancels every worker and waits for them to return.
func (a *Actor) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	a.cancel()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.logger.Info("market actor stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for workers: %w", ctx.Err())
	}
}

func (a *Actor) submit(ctx context.Context, order *Order) error {
	if a.isClosed() {
		return types.ErrActorClosed
	}
	if err := order.Execute(); err != nil {
		return err
	}
	if order.Filled() {
		return nil
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	if err := a.venue.SubmitOrder(ctx, order); err != nil {
		a.recorder.RecordOrder(order.Market.Symbol(), order.Side().String(), "rejected")
		return fmt.Errorf("submit order %s: %w", order.ID, err)
	}

	a.recorder.RecordOrder(order.Market.Symbol(), order.Side().String(), "submitted")
	a.logger.Debug("order submitted",
		"order_id", order.ID,
		"market", order.Market.Symbol(),
		"price", order.Price,
		"size", order.Size(),
	)
	return nil
}

func (a *Actor) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// newTask creates a task bound to the actor's lifetime.
func (a *Actor) newTask(kind string) (*Task, context.Context, error) {
	if a.isClosed() {
		return nil, nil, types.ErrActorClosed
	}
	ctx, cancel := context.WithCancel(a.ctx)
	return newTask(kind, cancel), ctx, nil
}

// start runs fn as the task's worker. Worker errors are logged and counted;
// they never cross the worker boundary.
func (a *Actor) start(ctx context.Context, task *Task, fn func(ctx context.Context) error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		task.Cancel()
		close(task.done)
		return
	}

	a.recorder.WorkerStarted(task.Kind)
	a.wg.Go(func() {
		defer close(task.done)
		defer task.Cancel()
		defer a.recorder.WorkerStopped(task.Kind)

		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.recorder.RecordWorkerError(task.Kind)
			a.logger.Error("worker terminated", "kind", task.Kind, "err", err)
		}
	})
}

// awaitFill polls the venue until the order is filled or cancelled.
func (a *Actor) awaitFill(ctx context.Context, order *Order) error {
	timer := metrics.NewTimer()
	ticker := time.NewTicker(a.cfg.OrderUpdateInterval)
	defer ticker.Stop()

	for !order.Filled() {
		delta, err := a.venue.UpdateOrder(ctx, order)
		if err != nil {
			return fmt.Errorf("update order %s: %w", order.ID, err)
		}

		if !delta.IsZero() {
			if err := order.Fill(delta); err != nil {
				return err
			}
			a.recorder.RecordFill(order.Market.Symbol(), sideLabel(delta), delta)
			a.notifyFill(order, delta)
		}

		if order.Filled() {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	status := order.Status()
	a.recorder.RecordOrder(order.Market.Symbol(), order.Side().String(), status.String())
	if status == types.OrderStatusFilled {
		timer.ObserveOrder()
	}
	a.logger.Debug("order done", "order_id", order.ID, "status", status)
	return nil
}

func (a *Actor) notifyFill(order *Order, delta decimal.Decimal) {
	a.mu.Lock()
	handler := a.fillHandler
	a.mu.Unlock()

	if handler != nil {
		handler(order, delta)
	}
}

// manageAdvanceOrder polls the trigger until it fires or the order is cancelled.
func (a *Actor) manageAdvanceOrder(ctx context.Context, ao AdvanceOrder) error {
	ticker := time.NewTicker(a.cfg.OrderUpdateInterval)
	defer ticker.Stop()

	for {
		if !ao.Active() {
			return nil
		}
		if ao.Triggered() {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	pos := ao.Position()
	closing := a.MakeOrder(pos.Market, ao.ExitPrice(), pos.ClosingSize(a.venue.CostEngine(pos.Market)))
	if !ao.Trigger(closing) {
		return nil
	}

	a.logger.Info("advance order triggered",
		"market", pos.Market.Symbol(),
		"exit_price", closing.Price,
		"size", closing.Size(),
	)

	if err := a.submit(ctx, closing); err != nil {
		return err
	}
	if err := a.awaitFill(ctx, closing); err != nil {
		return err
	}

	ao.Settle(closing)
	return nil
}
