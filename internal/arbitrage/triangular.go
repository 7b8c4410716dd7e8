package arbitrage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/execution"
	"github.com/tathienbao/tradecore/internal/listener"
	"github.com/tathienbao/tradecore/internal/metrics"
	"github.com/tathienbao/tradecore/internal/types"
)

// Cycle directions.
const (
	Forward = "forward"
	Reverse = "reverse"
)

// Leg pairs a market feed with the executor trading it.
type Leg struct {
	Listener listener.Listener
	Executor Executor
}

// Execution records one executed cycle.
type Execution struct {
	ID           string
	Cycle        string
	Direction    string
	Value        decimal.Decimal // Terminal value of one origin unit
	OriginSize   decimal.Decimal // Origin size after liquidity scaling
	ExpectedSize decimal.Decimal // Expected ending origin size
	Orders       []*execution.Order
	ExecutedAt   time.Time
}

// ExecutionHandler is called after each executed cycle.
type ExecutionHandler func(exec Execution)

// Triangular scans a closed conversion cycle in both directions.
type Triangular struct {
	Origin string

	forward []*Node
	reverse []*Node
	name    string

	recorder *metrics.Recorder
	logger   *slog.Logger

	mu      sync.Mutex
	last    *Execution
	handler ExecutionHandler
}

// NewTriangular walks legs from origin, at each step taking the first
// remaining market that trades the current currency. A leg whose quote is the
// current currency is bought, otherwise sold. The reverse cycle mirrors the
// forward one leg by leg in opposite order.
func NewTriangular(origin string, logic Logic, legs []Leg, logger *slog.Logger) (*Triangular, error) {
	if len(legs) < 2 {
		return nil, fmt.Errorf("%w: need at least two markets, got %d", types.ErrNoArbitragePath, len(legs))
	}
	if logger == nil {
		logger = slog.Default()
	}

	remaining := make([]Leg, len(legs))
	copy(remaining, legs)

	var forward []*Node
	source := origin
	for len(forward) == 0 || source != origin {
		idx := -1
		for i, leg := range remaining {
			m := leg.Listener.Market()
			if m.BaseTicker() == source || m.QuoteTicker() == source {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("%w: no market trades %s", types.ErrNoArbitragePath, source)
		}

		leg := remaining[idx]
		remaining = append(remaining[:idx], remaining[idx+1:]...)

		m := leg.Listener.Market()
		if m.QuoteTicker() == source {
			forward = append(forward, NewNode(Long, logic, leg.Listener, leg.Executor))
			source = m.BaseTicker()
		} else {
			forward = append(forward, NewNode(Short, logic, leg.Listener, leg.Executor))
			source = m.QuoteTicker()
		}
	}
	if len(remaining) > 0 {
		return nil, fmt.Errorf("%w: %d markets left outside the cycle", types.ErrNoArbitragePath, len(remaining))
	}

	reverse := make([]*Node, len(forward))
	for i, n := range forward {
		reverse[len(forward)-1-i] = n.Mirror()
	}

	symbols := make([]string, len(forward))
	for i, n := range forward {
		symbols[i] = n.Market().Symbol()
	}
	name := origin + ":" + strings.Join(symbols, ",")

	return &Triangular{
		Origin:   origin,
		forward:  forward,
		reverse:  reverse,
		name:     name,
		recorder: metrics.NewRecorder(),
		logger:   logger.With("cycle", name),
	}, nil
}

// Name identifies the cycle by origin and market order.
func (t *Triangular) Name() string { return t.name }

// ForwardPath returns the forward legs.
func (t *Triangular) ForwardPath() []*Node { return t.forward }

// ReversePath returns the reverse legs.
func (t *Triangular) ReversePath() []*Node { return t.reverse }

// SetExecutionHandler sets the callback for executed cycles.
func (t *Triangular) SetExecutionHandler(handler ExecutionHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = handler
}

// LastExecution returns the most recent executed cycle.
func (t *Triangular) LastExecution() (Execution, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return Execution{}, false
	}
	return *t.last, true
}

// ScanAndExecute evaluates the forward cycle and executes it if one origin
// unit comes back as more than one. Only when the forward cycle is not
// profitable is the reverse cycle evaluated. At most one direction executes
// per call.
func (t *Triangular) ScanAndExecute(ctx context.Context, originSize decimal.Decimal) (bool, error) {
	one := decimal.NewFromInt(1)

	fwdValue, fwdSize, err := PassThroughPath(t.forward, originSize)
	if err != nil {
		t.recorder.RecordArbitrageScan(t.name, "error", decimal.Zero, decimal.Zero)
		return false, fmt.Errorf("forward pass: %w", err)
	}
	if fwdValue.GreaterThan(one) {
		t.recorder.RecordArbitrageScan(t.name, Forward, fwdValue, decimal.Zero)
		return true, t.execute(ctx, Forward, t.forward, fwdValue, fwdSize)
	}

	revValue, revSize, err := PassThroughPath(t.reverse, originSize)
	if err != nil {
		t.recorder.RecordArbitrageScan(t.name, "error", fwdValue, decimal.Zero)
		return false, fmt.Errorf("reverse pass: %w", err)
	}
	if revValue.GreaterThan(one) {
		t.recorder.RecordArbitrageScan(t.name, Reverse, fwdValue, revValue)
		return true, t.execute(ctx, Reverse, t.reverse, revValue, revSize)
	}

	t.recorder.RecordArbitrageScan(t.name, "none", fwdValue, revValue)
	t.logger.Debug("no opportunity", "forward", fwdValue, "reverse", revValue)
	return false, nil
}

func (t *Triangular) execute(ctx context.Context, direction string, path []*Node, value, originSize decimal.Decimal) error {
	expected, orders, err := ExecuteTrades(ctx, path, originSize)

	exec := Execution{
		ID:           uuid.New().String(),
		Cycle:        t.name,
		Direction:    direction,
		Value:        value,
		OriginSize:   originSize,
		ExpectedSize: expected,
		Orders:       orders,
		ExecutedAt:   time.Now(),
	}

	if err != nil {
		t.logger.Error("cycle partially executed",
			"direction", direction,
			"legs_placed", len(orders),
			"err", err,
		)
		return fmt.Errorf("%s cycle: %w", direction, err)
	}

	t.mu.Lock()
	t.last = &exec
	handler := t.handler
	t.mu.Unlock()

	t.logger.Info("cycle executed",
		"direction", direction,
		"value", value,
		"origin_size", originSize,
		"expected_size", expected,
	)

	if handler != nil {
		handler(exec)
	}
	return nil
}
