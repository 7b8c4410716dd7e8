package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tathienbao/tradecore/internal/alerting"
	"github.com/tathienbao/tradecore/internal/config"
	"github.com/tathienbao/tradecore/internal/execution"
	"github.com/tathienbao/tradecore/internal/listener"
	"github.com/tathienbao/tradecore/internal/metrics"
	"github.com/tathienbao/tradecore/internal/persistence"
	"github.com/tathienbao/tradecore/internal/portfolio"
)

// app holds the components shared by the run and arb commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	feeds   map[string]*listener.RandomWalk
	venue   *execution.SimulatedVenue
	actor   *execution.Actor
	store   *persistence.SQLiteRepository
	alerter alerting.Alerter
	server  *metrics.Server
}

// newApp opens the store, restores the ledger and builds one random walk
// feed per configured market.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		feeds:   make(map[string]*listener.RandomWalk, len(cfg.Markets)),
		alerter: cfg.Alerter(logger),
	}

	ledger := cfg.InitialLedger()
	if cfg.Persistence.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.Persistence.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		store, err := persistence.NewSQLiteRepository(cfg.Persistence.Path)
		if err != nil {
			return nil, err
		}
		a.store = store

		restored, err := a.restoreLedger(ctx)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		if restored != nil {
			ledger = restored
		}
	}

	a.venue = execution.NewSimulatedVenue(cfg.SimulatedConfig())
	for _, mc := range cfg.Markets {
		m, err := mc.Build()
		if err != nil {
			a.closeStore()
			return nil, err
		}
		feed, err := listener.NewRandomWalk(m, mc.Feed.RandomWalk())
		if err != nil {
			a.closeStore()
			return nil, fmt.Errorf("feed %s: %w", mc.Symbol, err)
		}
		a.feeds[mc.Symbol] = feed
		a.venue.AddListener(feed)
	}

	a.actor = execution.NewActor(cfg.ActorConfig(), a.venue, ledger, logger)
	logger.Info("ledger loaded", "ledger", ledger.String())

	if cfg.Metrics.Enabled {
		a.server = metrics.NewServer(metrics.ServerConfig{
			Port:        cfg.Metrics.Port,
			MetricsPath: cfg.Metrics.Path,
		}, logger)
		a.server.SetLedger(a.actor.Portfolio())
		if err := a.server.Start(); err != nil {
			a.closeStore()
			return nil, err
		}
	}

	return a, nil
}

// restoreLedger returns the last persisted ledger, or nil on a fresh database.
// Orders left pending by a previous run are reported; the paper venue does
// not know them any more.
func (a *app) restoreLedger(ctx context.Context) (*portfolio.Portfolio, error) {
	pending, err := a.store.GetPendingOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pending orders: %w", err)
	}
	for _, o := range pending {
		a.logger.Warn("order left pending by previous run",
			"order_id", o.OrderID,
			"symbol", o.Symbol,
			"status", o.Status,
		)
	}

	snap, err := a.store.GetLatestLedgerSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if snap == nil {
		return nil, nil
	}
	a.logger.Info("ledger restored", "snapshot_id", snap.ID, "taken_at", snap.Timestamp)
	return snap.Portfolio(), nil
}

func (a *app) saveLedger(ctx context.Context) {
	if a.store == nil {
		return
	}
	snap := persistence.LedgerSnapshot{Timestamp: time.Now(), Balances: a.actor.Portfolio().Snapshot()}
	if err := a.store.SaveLedgerSnapshot(ctx, snap); err != nil {
		a.logger.Warn("failed to save ledger", "err", err)
	}
}

func (a *app) closeStore() {
	if a.store != nil {
		_ = a.store.Close()
	}
}

// close stops the actor's workers, the metrics server and the store.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if err := a.actor.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("actor: %w", err))
	}
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	return errors.Join(errs...)
}
