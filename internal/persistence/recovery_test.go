package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/tradecore/internal/cost"
	"github.com/tathienbao/tradecore/internal/market"
	"github.com/tathienbao/tradecore/internal/portfolio"
	"github.com/tathienbao/tradecore/internal/types"
)

// TestRecovery_LedgerRestored reopens the database and rebuilds the root
// portfolio from the last snapshot.
func TestRecovery_LedgerRestored(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "recovery_test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "test.db")
	ctx := context.Background()

	repo1, err := NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}

	// Buy 10 BTC at 100, then sell 4 at 110.
	btc := market.NewSpot("BTC", "USD")
	root := portfolio.New()
	root.Assimilate(btc.OpenPosition(decimal.NewFromInt(100), decimal.NewFromInt(10), cost.Engine{}).Portfolio)
	root.Assimilate(btc.OpenPosition(decimal.NewFromInt(110), decimal.NewFromInt(-4), cost.Engine{}).Portfolio)

	if err := repo1.SaveLedgerSnapshot(ctx, LedgerSnapshot{Timestamp: time.Now(), Balances: root.Snapshot()}); err != nil {
		t.Fatalf("failed to save ledger: %v", err)
	}
	if err := repo1.SaveState(ctx, EngineState{LastUpdated: time.Now(), Cycles: 42, StopsTriggered: 3}); err != nil {
		t.Fatalf("failed to save state: %v", err)
	}

	repo1.Close()

	// Create second repository (simulating restart)
	repo2, err := NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("failed to create second repository: %v", err)
	}
	defer repo2.Close()

	snapshot, err := repo2.GetLatestLedgerSnapshot(ctx)
	if err != nil || snapshot == nil {
		t.Fatalf("failed to get ledger: %v", err)
	}
	restored := snapshot.Portfolio()

	for _, ticker := range root.Tickers() {
		if got, want := restored.Size(ticker), root.Size(ticker); !got.Equal(want) {
			t.Errorf("%s size mismatch: got %s, want %s", ticker, got, want)
		}
	}
	if got := restored.Size("BTC"); !got.Equal(decimal.NewFromInt(6)) {
		t.Errorf("BTC = %s, want 6", got)
	}
	if got := restored.Size("USD"); !got.Equal(decimal.NewFromInt(-560)) {
		t.Errorf("USD = %s, want -560", got)
	}

	state, err := repo2.GetState(ctx)
	if err != nil {
		t.Fatalf("failed to get state: %v", err)
	}
	if state.Cycles != 42 || state.StopsTriggered != 3 {
		t.Errorf("state mismatch: got %+v", state)
	}
}

// TestRecovery_PendingOrders finds orders left open at shutdown.
func TestRecovery_PendingOrders(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	statuses := []types.OrderStatus{
		types.OrderStatusPending,
		types.OrderStatusPartialFill,
		types.OrderStatusFilled,
		types.OrderStatusCancelled,
	}
	for i, status := range statuses {
		record := OrderRecord{
			OrderID:   "order-" + status.String(),
			Symbol:    "BTC/USD",
			Side:      types.SideLong,
			Purpose:   "open",
			Price:     decimal.NewFromInt(100),
			Size:      decimal.NewFromInt(1),
			Status:    status,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
		if err := repo.SaveOrder(ctx, record); err != nil {
			t.Fatalf("save order %d: %v", i, err)
		}
	}

	pending, err := repo.GetPendingOrders(ctx)
	if err != nil {
		t.Fatalf("get pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	for _, o := range pending {
		if o.Status.IsFinal() {
			t.Errorf("final order %s returned as pending", o.OrderID)
		}
	}
}

func TestRecovery_EmptyDatabase(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	snapshot, err := repo.GetLatestLedgerSnapshot(ctx)
	if err != nil || snapshot != nil {
		t.Errorf("ledger = %v, %v; want nil, nil", snapshot, err)
	}
	state, err := repo.GetState(ctx)
	if err != nil || state != nil {
		t.Errorf("state = %v, %v; want nil, nil", state, err)
	}

	// Migrations are idempotent.
	if err := repo.Migrate(ctx); err != nil {
		t.Errorf("second migrate: %v", err)
	}
}
