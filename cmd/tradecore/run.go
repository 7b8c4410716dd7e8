package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/tathienbao/tradecore/internal/advance"
	"github.com/tathienbao/tradecore/internal/config"
	"github.com/tathienbao/tradecore/internal/engine"
	"github.com/tathienbao/tradecore/internal/metrics"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the guarded trading loop on the paper venue",
		Long: `Run opens a position on the configured market, protects it with an
advance order, waits for the stop to close it and cools down before the next cycle.

Example:
  tradecore run --config config.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runEngine(ctx, cfg, slog.Default())
		},
	}
}

// runEngine trades until ctx is cancelled or the feed is lost.
func runEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.Trading.Market == "" {
		return errors.New("trading.market is not configured")
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	feed := a.feeds[cfg.Trading.Market]
	stops, err := advance.NewStopLossLogic(cfg.StopLossConfig(), a.actor, feed, logger)
	if err != nil {
		_ = a.close(ctx)
		return err
	}
	logic := engine.NewFixedTradeLogic(feed, decimal.NewFromFloat(cfg.Trading.Size))

	var store engine.Store
	if a.store != nil {
		store = a.store
	}
	eng := engine.NewEngine(cfg.EngineConfig(), a.actor, feed, logic, stops, a.alerter, store, logger)

	if a.store != nil {
		state, err := a.store.GetState(ctx)
		if err != nil {
			_ = a.close(ctx)
			return fmt.Errorf("load engine state: %w", err)
		}
		eng.Restore(state)
	}

	if a.server != nil {
		a.server.RegisterHealthCheck("engine", func() metrics.Check {
			if errors.Is(eng.Err(), engine.ErrFeedLost) {
				return metrics.Unhealthy(eng.Err().Error())
			}
			if !eng.IsRunning() {
				return metrics.Unhealthy("engine stopped")
			}
			return metrics.Healthy()
		})
	}

	logger.Info("tradecore starting",
		"version", Version,
		"market", cfg.Trading.Market,
		"size", cfg.Trading.Size,
		"stop", cfg.Advance.Kind,
	)

	if err := eng.Start(ctx); err != nil {
		_ = a.close(ctx)
		return err
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()

	return shutdownEngine(shutdownCtx, cfg, a, eng)
}

// shutdownEngine stops the loop, optionally flattens the open position and
// releases every component.
func shutdownEngine(ctx context.Context, cfg *config.Config, a *app, eng *engine.Engine) error {
	a.logger.Info("starting graceful shutdown", "timeout", cfg.ShutdownTimeout())

	var errs []error
	if err := eng.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if cfg.Shutdown.ClosePositions {
		if err := eng.Flatten(ctx); err != nil {
			errs = append(errs, err)
		}
		a.saveLedger(ctx)
	}
	if err := a.close(ctx); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		a.logger.Error("shutdown error", "err", err)
		return err
	}
	a.logger.Info("tradecore shutdown complete", "ledger", a.actor.Portfolio().String())
	return nil
}
