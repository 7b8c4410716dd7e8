package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tathienbao/tradecore/internal/config"
	"github.com/tathienbao/tradecore/internal/persistence"
)

const testConfigYAML = `
venue:
  fee_rate: 0.001
execution:
  order_update_interval_ms: 5
markets:
  - symbol: BTC/USD
    feed: {start_price: 30000, seed: 1}
  - symbol: ETH/BTC
    feed: {start_price: 0.05, seed: 2}
  - symbol: ETH/USD
    feed: {start_price: 1500, seed: 3}
account:
  balances: {USD: 10000}
trading:
  market: BTC/USD
  size: 0.01
  tick_interval_ms: 10
  order_timeout_sec: 1
  ledger_interval_sec: 1
arbitrage:
  origin: USD
  legs: [BTC/USD, ETH/BTC, ETH/USD]
  size: 100
  scan_interval_ms: 5
persistence:
  enabled: true
  type: sqlite
  path: PLACEHOLDER
shutdown:
  timeout_sec: 5
`

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "data", "tradecore.db")
	path := filepath.Join(dir, "config.yaml")
	content := strings.Replace(testConfigYAML, "PLACEHOLDER", dbPath, 1)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path, dbPath
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "tradecore version "+Version) {
		t.Errorf("output = %q", out)
	}
}

func TestValidateCmd(t *testing.T) {
	path, _ := writeConfig(t)

	out, err := execute(t, "validate", "--config", path)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	for _, want := range []string{"Configuration is valid!", "Markets: 3", "Trading: BTC/USD", "Arbitrage: USD"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestValidateCmd_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("venue:\n  type: live\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := execute(t, "validate", "--config", path); err == nil {
		t.Error("expected validation error")
	}
	if _, err := execute(t, "validate", "--config", "/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestArbCmd_Help(t *testing.T) {
	out, err := execute(t, "arb", "--help")
	if err != nil {
		t.Fatalf("arb --help: %v", err)
	}
	if !strings.Contains(out, "forward cycle is priced first") {
		t.Errorf("help should describe the forward-first scan:\n%s", out)
	}
	if strings.Contains(out, "whichever direction") {
		t.Errorf("help still describes a best-of-both scan:\n%s", out)
	}
}

func TestRunArbitrage_SavesLedger(t *testing.T) {
	path, dbPath := writeConfig(t)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := runArbitrage(context.Background(), cfg, 3, quietLogger()); err != nil {
		t.Fatalf("runArbitrage: %v", err)
	}

	repo, err := persistence.NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer repo.Close()

	snap, err := repo.GetLatestLedgerSnapshot(context.Background())
	if err != nil || snap == nil {
		t.Fatalf("snapshot = %v, %v; want saved ledger", snap, err)
	}
	if snap.Portfolio().Size("USD").IsZero() {
		t.Error("expected a USD balance in the saved ledger")
	}
}

func TestRunEngine_PersistsState(t *testing.T) {
	path, dbPath := writeConfig(t)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := runEngine(ctx, cfg, quietLogger()); err != nil {
		t.Fatalf("runEngine: %v", err)
	}

	repo, err := persistence.NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer repo.Close()

	state, err := repo.GetState(context.Background())
	if err != nil || state == nil {
		t.Fatalf("state = %v, %v; want saved state", state, err)
	}
	snap, err := repo.GetLatestLedgerSnapshot(context.Background())
	if err != nil || snap == nil {
		t.Fatalf("snapshot = %v, %v; want saved ledger", snap, err)
	}
}

func TestRunCommands_RequireSections(t *testing.T) {
	cfg := config.Default()
	ctx := context.Background()

	if err := runEngine(ctx, cfg, quietLogger()); err == nil {
		t.Error("runEngine without trading.market: expected error")
	}
	if err := runArbitrage(ctx, cfg, 1, quietLogger()); err == nil {
		t.Error("runArbitrage without legs: expected error")
	}
}
