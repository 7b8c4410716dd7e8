// Package persistence provides state persistence functionality.
package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/arbitrage"
	"github.com/tathienbao/tradecore/internal/execution"
	"github.com/tathienbao/tradecore/internal/portfolio"
	"github.com/tathienbao/tradecore/internal/types"
)

// Repository defines the interface for state persistence.
type Repository interface {
	// Ledger operations
	SaveLedgerSnapshot(ctx context.Context, snapshot LedgerSnapshot) error
	GetLatestLedgerSnapshot(ctx context.Context) (*LedgerSnapshot, error)
	GetLedgerHistory(ctx context.Context, from, to time.Time) ([]LedgerSnapshot, error)

	// Order operations
	SaveOrder(ctx context.Context, order OrderRecord) error
	GetOrder(ctx context.Context, orderID string) (*OrderRecord, error)
	GetPendingOrders(ctx context.Context) ([]OrderRecord, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status types.OrderStatus, filled decimal.Decimal) error

	// Arbitrage operations
	SaveArbitrageExecution(ctx context.Context, exec ArbitrageRecord) error
	GetArbitrageExecutions(ctx context.Context, from, to time.Time) ([]ArbitrageRecord, error)

	// State operations
	SaveState(ctx context.Context, state EngineState) error
	GetState(ctx context.Context) (*EngineState, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

// LedgerSnapshot is the root portfolio at a point in time.
type LedgerSnapshot struct {
	ID        int64
	Timestamp time.Time
	Balances  []portfolio.Balance
}

// Portfolio rebuilds a portfolio from the snapshot.
func (s LedgerSnapshot) Portfolio() *portfolio.Portfolio {
	return portfolio.New(s.Balances...)
}

// OrderRecord represents a persisted order.
type OrderRecord struct {
	ID        int64
	OrderID   string
	Symbol    string
	Side      types.Side
	Purpose   string // open, close or arbitrage
	Price     decimal.Decimal
	Size      decimal.Decimal
	Filled    decimal.Decimal
	Status    types.OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewOrderRecord captures the current state of order.
func NewOrderRecord(order *execution.Order, purpose string) OrderRecord {
	return OrderRecord{
		OrderID:   order.ID,
		Symbol:    order.Market.Symbol(),
		Side:      order.Side(),
		Purpose:   purpose,
		Price:     order.Price,
		Size:      order.Size(),
		Filled:    order.FilledSize(),
		Status:    order.Status(),
		CreatedAt: order.CreatedAt,
	}
}

// ArbitrageRecord represents a persisted cycle execution.
type ArbitrageRecord struct {
	ID           string
	Cycle        string
	Direction    string
	Value        decimal.Decimal
	OriginSize   decimal.Decimal
	ExpectedSize decimal.Decimal
	OrderIDs     []string
	ExecutedAt   time.Time
}

// NewArbitrageRecord converts an executed cycle.
func NewArbitrageRecord(exec arbitrage.Execution) ArbitrageRecord {
	ids := make([]string, len(exec.Orders))
	for i, o := range exec.Orders {
		ids[i] = o.ID
	}
	return ArbitrageRecord{
		ID:           exec.ID,
		Cycle:        exec.Cycle,
		Direction:    exec.Direction,
		Value:        exec.Value,
		OriginSize:   exec.OriginSize,
		ExpectedSize: exec.ExpectedSize,
		OrderIDs:     ids,
		ExecutedAt:   exec.ExecutedAt,
	}
}

func joinIDs(ids []string) string {
	return strings.Join(ids, ",")
}

func splitIDs(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// EngineState represents the driving loop state for recovery.
type EngineState struct {
	ID             int64
	LastUpdated    time.Time
	Cycles         int
	StopsTriggered int
	OrderTimeouts  int
	CooldownUntil  time.Time
}
