package persistence

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/arbitrage"
	"github.com/tathienbao/tradecore/internal/cost"
	"github.com/tathienbao/tradecore/internal/execution"
	"github.com/tathienbao/tradecore/internal/market"
	"github.com/tathienbao/tradecore/internal/portfolio"
	"github.com/tathienbao/tradecore/internal/types"
)

func setupTestDB(t *testing.T) (*SQLiteRepository, func()) {
	t.Helper()

	// Create temp file
	f, err := os.CreateTemp("", "tradecore-test-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	path := f.Name()
	f.Close()

	repo, err := NewSQLiteRepository(path)
	if err != nil {
		os.Remove(path)
		t.Fatalf("create repository: %v", err)
	}

	cleanup := func() {
		repo.Close()
		os.Remove(path)
	}

	return repo, cleanup
}

func TestSQLiteRepository_LedgerSnapshot(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	latest, err := repo.GetLatestLedgerSnapshot(ctx)
	if err != nil {
		t.Fatalf("get latest on empty db: %v", err)
	}
	if latest != nil {
		t.Fatal("expected nil snapshot on empty db")
	}

	ledger := portfolio.New(
		portfolio.NewBalance("USD", decimal.NewFromInt(-1000), decimal.NewFromInt(1)),
		portfolio.NewBalance("BTC", decimal.RequireFromString("9.9"), decimal.RequireFromString("101.0101")),
	)
	snapshot := LedgerSnapshot{
		Timestamp: time.Now().Truncate(time.Second),
		Balances:  ledger.Snapshot(),
	}
	if err := repo.SaveLedgerSnapshot(ctx, snapshot); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	latest, err = repo.GetLatestLedgerSnapshot(ctx)
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if latest == nil {
		t.Fatal("expected snapshot, got nil")
	}
	if len(latest.Balances) != 2 {
		t.Fatalf("balances = %d, want 2", len(latest.Balances))
	}

	restored := latest.Portfolio()
	for _, ticker := range []string{"USD", "BTC"} {
		want, _ := ledger.Balance(ticker)
		got, ok := restored.Balance(ticker)
		if !ok {
			t.Errorf("%s missing after restore", ticker)
			continue
		}
		if !got.Size.Equal(want.Size) || !got.EntryPrice.Equal(want.EntryPrice) {
			t.Errorf("%s = %s, want %s", ticker, got, want)
		}
	}
}

func TestSQLiteRepository_LedgerHistory(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	// Save multiple snapshots
	for i := 0; i < 5; i++ {
		snapshot := LedgerSnapshot{
			Timestamp: now.Add(time.Duration(i) * time.Hour),
			Balances: []portfolio.Balance{
				portfolio.NewBalance("USD", decimal.NewFromInt(int64(1000+i*100)), decimal.NewFromInt(1)),
			},
		}
		if err := repo.SaveLedgerSnapshot(ctx, snapshot); err != nil {
			t.Fatalf("save snapshot %d: %v", i, err)
		}
	}

	history, err := repo.GetLedgerHistory(ctx, now.Add(-time.Hour), now.Add(10*time.Hour))
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if len(history) != 5 {
		t.Fatalf("history length = %d, want 5", len(history))
	}
	if got := history[4].Balances[0].Size; !got.Equal(decimal.NewFromInt(1400)) {
		t.Errorf("last USD = %s, want 1400", got)
	}

	latest, _ := repo.GetLatestLedgerSnapshot(ctx)
	if latest.ID != history[4].ID {
		t.Errorf("latest id = %d, want %d", latest.ID, history[4].ID)
	}
}

func TestSQLiteRepository_Order(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	order := execution.NewOrder(market.NewSpot("BTC", "USD"), decimal.NewFromInt(100), decimal.NewFromInt(5), cost.Engine{}, decimal.Zero, nil)
	if err := order.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	_ = order.Fill(decimal.NewFromInt(2))

	record := NewOrderRecord(order, "open")
	if err := repo.SaveOrder(ctx, record); err != nil {
		t.Fatalf("save order: %v", err)
	}

	pending, err := repo.GetPendingOrders(ctx)
	if err != nil {
		t.Fatalf("get pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending orders = %d, want 1", len(pending))
	}
	got := pending[0]
	if got.OrderID != order.ID || got.Symbol != "BTC/USD" || got.Side != types.SideLong {
		t.Errorf("record = %+v", got)
	}
	if !got.Filled.Equal(decimal.NewFromInt(2)) || got.Status != types.OrderStatusPartialFill {
		t.Errorf("filled = %s status = %s, want 2 PARTIAL_FILL", got.Filled, got.Status)
	}

	// Saving again updates in place.
	_ = order.Fill(decimal.NewFromInt(3))
	if err := repo.SaveOrder(ctx, NewOrderRecord(order, "open")); err != nil {
		t.Fatalf("save order again: %v", err)
	}

	pending, _ = repo.GetPendingOrders(ctx)
	if len(pending) != 0 {
		t.Errorf("pending orders = %d after fill, want 0", len(pending))
	}

	stored, err := repo.GetOrder(ctx, order.ID)
	if err != nil || stored == nil {
		t.Fatalf("get order: %v", err)
	}
	if stored.Status != types.OrderStatusFilled || !stored.Filled.Equal(decimal.NewFromInt(5)) {
		t.Errorf("stored = %s %s, want FILLED 5", stored.Status, stored.Filled)
	}

	missing, err := repo.GetOrder(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("GetOrder(unknown) = %v, %v; want nil, nil", missing, err)
	}
}

func TestSQLiteRepository_UpdateOrderStatus(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	record := OrderRecord{
		OrderID: "order-1",
		Symbol:  "ETH/USD",
		Side:    types.SideShort,
		Purpose: "close",
		Price:   decimal.NewFromInt(3000),
		Size:    decimal.NewFromInt(-2),
		Filled:  decimal.Zero,
		Status:  types.OrderStatusPending,
	}
	if err := repo.SaveOrder(ctx, record); err != nil {
		t.Fatalf("save order: %v", err)
	}

	if err := repo.UpdateOrderStatus(ctx, "order-1", types.OrderStatusCancelled, decimal.NewFromInt(-1)); err != nil {
		t.Fatalf("update status: %v", err)
	}

	stored, _ := repo.GetOrder(ctx, "order-1")
	if stored.Status != types.OrderStatusCancelled || !stored.Filled.Equal(decimal.NewFromInt(-1)) {
		t.Errorf("stored = %s %s, want CANCELLED -1", stored.Status, stored.Filled)
	}

	err := repo.UpdateOrderStatus(ctx, "missing", types.OrderStatusFilled, decimal.Zero)
	if !errors.Is(err, types.ErrStateNotFound) {
		t.Errorf("update unknown err = %v, want ErrStateNotFound", err)
	}
}

func TestSQLiteRepository_ArbitrageExecution(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	btc := market.NewSpot("BTC", "USD")
	legs := []*execution.Order{
		execution.NewOrder(btc, decimal.NewFromInt(100), decimal.NewFromInt(1), cost.Engine{}, decimal.Zero, nil),
		execution.NewOrder(btc, decimal.NewFromInt(100), decimal.NewFromInt(-1), cost.Engine{}, decimal.Zero, nil),
	}
	exec := arbitrage.Execution{
		ID:           "exec-1",
		Cycle:        "USD:BTC/USD,ETH/BTC,ETH/USD",
		Direction:    arbitrage.Forward,
		Value:        decimal.RequireFromString("1.2"),
		OriginSize:   decimal.NewFromInt(100),
		ExpectedSize: decimal.NewFromInt(120),
		Orders:       legs,
		ExecutedAt:   now,
	}

	if err := repo.SaveArbitrageExecution(ctx, NewArbitrageRecord(exec)); err != nil {
		t.Fatalf("save execution: %v", err)
	}

	execs, err := repo.GetArbitrageExecutions(ctx, now.Add(-time.Minute), now.Add(time.Minute))
	if err != nil {
		t.Fatalf("get executions: %v", err)
	}
	if len(execs) != 1 {
		t.Fatalf("executions = %d, want 1", len(execs))
	}

	got := execs[0]
	if got.Direction != arbitrage.Forward || !got.Value.Equal(exec.Value) {
		t.Errorf("execution = %+v", got)
	}
	if len(got.OrderIDs) != 2 || got.OrderIDs[0] != legs[0].ID || got.OrderIDs[1] != legs[1].ID {
		t.Errorf("order ids = %v", got.OrderIDs)
	}

	// Duplicate IDs are rejected.
	if err := repo.SaveArbitrageExecution(ctx, NewArbitrageRecord(exec)); err == nil {
		t.Error("expected error for duplicate execution id")
	}
}

func TestSQLiteRepository_State(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	state, err := repo.GetState(ctx)
	if err != nil {
		t.Fatalf("get empty state: %v", err)
	}
	if state != nil {
		t.Fatal("expected nil state on empty db")
	}

	saved := EngineState{
		LastUpdated:    time.Now().Truncate(time.Second),
		Cycles:         7,
		StopsTriggered: 2,
		OrderTimeouts:  1,
	}
	if err := repo.SaveState(ctx, saved); err != nil {
		t.Fatalf("save state: %v", err)
	}

	// Overwrite
	saved.Cycles = 8
	saved.CooldownUntil = saved.LastUpdated.Add(5 * time.Minute)
	if err := repo.SaveState(ctx, saved); err != nil {
		t.Fatalf("save state: %v", err)
	}

	state, err = repo.GetState(ctx)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.Cycles != 8 || state.StopsTriggered != 2 || state.OrderTimeouts != 1 {
		t.Errorf("state = %+v", state)
	}
	if !state.CooldownUntil.Equal(saved.CooldownUntil) {
		t.Errorf("cooldown = %v, want %v", state.CooldownUntil, saved.CooldownUntil)
	}
}
