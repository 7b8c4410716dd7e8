package execution

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/cost"
	"github.com/tathienbao/tradecore/internal/listener"
	"github.com/tathienbao/tradecore/internal/market"
	"github.com/tathienbao/tradecore/internal/types"
)

// SimulatedConfig holds configuration for the simulated venue.
type SimulatedConfig struct {
	FillSteps        int             // Updates needed to fill an order completely
	CostEngine       cost.Engine     // Default transaction costs
	CancellationCost decimal.Decimal // Charge per cancelled order
	HistoryLimit     int             // Orders kept for Orders(); 0 keeps all
}

// DefaultHistoryLimit bounds the order history of long paper sessions.
const DefaultHistoryLimit = 1000

// DefaultSimulatedConfig returns sensible defaults.
func DefaultSimulatedConfig() SimulatedConfig {
	return SimulatedConfig{
		FillSteps:    1,
		CostEngine:   cost.Proportional(decimal.RequireFromString("0.0026")),
		HistoryLimit: DefaultHistoryLimit,
	}
}

type simOrder struct {
	order     *Order
	stepsLeft int
}

// SimulatedVenue fills orders locally for paper trading and tests.
// Orders on a market with a registered listener fill only while their price
// is marketable against the listener's book.
type SimulatedVenue struct {
	cfg SimulatedConfig

	mu        sync.Mutex
	listeners map[string]listener.Listener // symbol -> feed
	costs     map[string]cost.Engine       // symbol -> cost override
	orders    map[string]*simOrder         // order ID -> state
	history   []*Order
	submitErr error
	updateErr error
}

// NewSimulatedVenue creates a new simulated venue.
func NewSimulatedVenue(cfg SimulatedConfig) *SimulatedVenue {
	if cfg.FillSteps < 1 {
		cfg.FillSteps = 1
	}
	return &SimulatedVenue{
		cfg:       cfg,
		listeners: make(map[string]listener.Listener),
		costs:     make(map[string]cost.Engine),
		orders:    make(map[string]*simOrder),
	}
}

func (s *SimulatedVenue) Name() string { return "simulated" }

// AddListener prices orders on the listener's market against its book.
func (s *SimulatedVenue) AddListener(l listener.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[l.Market().Symbol()] = l
}

// SetCostEngine overrides transaction costs for one market.
func (s *SimulatedVenue) SetCostEngine(symbol string, ce cost.Engine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.costs[symbol] = ce
}

// FailSubmissions makes every following submission return err; nil clears it.
func (s *SimulatedVenue) FailSubmissions(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitErr = err
}

// FailUpdates makes every following update return err; nil clears it.
func (s *SimulatedVenue) FailUpdates(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateErr = err
}

// SubmitOrder accepts the order for filling.
func (s *SimulatedVenue) SubmitOrder(ctx context.Context, order *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.submitErr != nil {
		return s.submitErr
	}
	if _, exists := s.orders[order.ID]; exists {
		return fmt.Errorf("%w: %s", types.ErrOrderAlreadyExecuted, order.ID)
	}

	s.prune()
	s.orders[order.ID] = &simOrder{order: order, stepsLeft: s.cfg.FillSteps}
	s.history = append(s.history, order)
	if limit := s.cfg.HistoryLimit; limit > 0 && len(s.history) > limit {
		s.history = append([]*Order(nil), s.history[len(s.history)-limit:]...)
	}
	return nil
}

// prune drops orders that were filled or cancelled. Caller holds mu.
func (s *SimulatedVenue) prune() {
	for id, so := range s.orders {
		if so.order.Remaining().IsZero() {
			delete(s.orders, id)
		}
	}
}

// Pending returns the number of submitted orders still being filled.
func (s *SimulatedVenue) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()
	return len(s.orders)
}

// UpdateOrder fills an equal share of the remaining size per update.
func (s *SimulatedVenue) UpdateOrder(ctx context.Context, order *Order) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updateErr != nil {
		return decimal.Zero, s.updateErr
	}

	remaining := order.Remaining()
	if remaining.IsZero() {
		delete(s.orders, order.ID)
		return decimal.Zero, nil
	}

	so, ok := s.orders[order.ID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: order %s", types.ErrStateNotFound, order.ID)
	}
	if !s.marketable(order, remaining) {
		return decimal.Zero, nil
	}

	if so.stepsLeft <= 1 {
		delete(s.orders, order.ID)
		return remaining, nil
	}
	delta := remaining.Div(decimal.NewFromInt(int64(so.stepsLeft)))
	so.stepsLeft--
	return delta, nil
}

// marketable reports whether the order would cross the book. Caller holds mu.
func (s *SimulatedVenue) marketable(order *Order, remaining decimal.Decimal) bool {
	l, ok := s.listeners[order.Market.Symbol()]
	if !ok {
		return true
	}

	if remaining.IsPositive() {
		ask := l.CurrentAsk()
		if ask.Price.IsZero() {
			return order.Price.GreaterThanOrEqual(l.CurrentPrice())
		}
		return order.Price.GreaterThanOrEqual(ask.Price)
	}

	bid := l.CurrentBid()
	if bid.Price.IsZero() {
		return order.Price.LessThanOrEqual(l.CurrentPrice())
	}
	return order.Price.LessThanOrEqual(bid.Price)
}

func (s *SimulatedVenue) CostEngine(m market.Market) cost.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ce, ok := s.costs[m.Symbol()]; ok {
		return ce
	}
	return s.cfg.CostEngine
}

func (s *SimulatedVenue) CancellationCost(m market.Market) decimal.Decimal {
	return s.cfg.CancellationCost
}

// Orders returns every submitted order in submission order.
func (s *SimulatedVenue) Orders() []*Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := make([]*Order, len(s.history))
	copy(orders, s.history)
	return orders
}

// Reset clears all state.
func (s *SimulatedVenue) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders = make(map[string]*simOrder)
	s.history = nil
	s.submitErr = nil
	s.updateErr = nil
}
