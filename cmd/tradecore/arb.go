package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/tathienbao/tradecore/internal/alerting"
	"github.com/tathienbao/tradecore/internal/arbitrage"
	"github.com/tathienbao/tradecore/internal/config"
	"github.com/tathienbao/tradecore/internal/listener"
	"github.com/tathienbao/tradecore/internal/persistence"
)

func newArbCmd(opts *rootOptions) *cobra.Command {
	var scans int

	cmd := &cobra.Command{
		Use:   "arb",
		Short: "Scan a triangular arbitrage cycle and trade it on the paper venue",
		Long: `Arb walks the configured legs from the origin currency on every scan.
The forward cycle is priced first and executed when it returns more than it
costs. Only when it does not is the reverse cycle priced and, if profitable,
executed instead.

Example:
  tradecore arb --config config.yaml --scans 100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runArbitrage(ctx, cfg, scans, slog.Default())
		},
	}

	cmd.Flags().IntVarP(&scans, "scans", "n", 0, "stop after this many scans (0 runs until interrupted)")
	return cmd
}

// runArbitrage scans the cycle every scan interval until ctx is done or
// maxScans scans have run.
func runArbitrage(ctx context.Context, cfg *config.Config, maxScans int, logger *slog.Logger) error {
	if len(cfg.Arbitrage.Legs) == 0 {
		return errors.New("arbitrage.legs is not configured")
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	feeds := make([]listener.Listener, 0, len(cfg.Arbitrage.Legs))
	legs := make([]arbitrage.Leg, 0, len(cfg.Arbitrage.Legs))
	for _, symbol := range cfg.Arbitrage.Legs {
		feeds = append(feeds, a.feeds[symbol])
		legs = append(legs, arbitrage.Leg{Listener: a.feeds[symbol], Executor: a.actor})
	}

	tri, err := arbitrage.NewTriangular(cfg.Arbitrage.Origin, cfg.ArbitrageLogic(), legs, logger)
	if err != nil {
		_ = a.close(ctx)
		return err
	}
	tri.SetExecutionHandler(func(exec arbitrage.Execution) {
		recordExecution(context.WithoutCancel(ctx), a, exec)
	})

	logger.Info("arbitrage scanner starting",
		"cycle", tri.Name(),
		"size", cfg.Arbitrage.Size,
		"interval", cfg.ScanInterval(),
	)

	scanErr := scanLoop(ctx, tri, feeds, decimal.NewFromFloat(cfg.Arbitrage.Size), cfg.ScanInterval(), maxScans, a.alerter, logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()

	a.saveLedger(shutdownCtx)
	err = errors.Join(scanErr, a.close(shutdownCtx))
	logger.Info("arbitrage scanner stopped", "ledger", a.actor.Portfolio().String())
	return err
}

// scanLoop refreshes every leg and scans the cycle once per interval. A
// failed scan is alerted and the loop carries on.
func scanLoop(
	ctx context.Context,
	tri *arbitrage.Triangular,
	feeds []listener.Listener,
	size decimal.Decimal,
	interval time.Duration,
	maxScans int,
	alerter alerting.Alerter,
	logger *slog.Logger,
) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for n := 0; maxScans <= 0 || n < maxScans; n++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if err := refresh(ctx, feeds); err != nil {
			logger.Warn("feed update failed", "err", err)
			continue
		}

		if _, err := tri.ScanAndExecute(ctx, size); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			logger.Error("arbitrage scan failed", "err", err)
			if alertErr := alerter.Alert(ctx, alerting.EventSeverity(alerting.EventArbitrageFailed),
				"Arbitrage failed", "cycle", tri.Name(), "error", err.Error()); alertErr != nil {
				logger.Warn("failed to send alert", "err", alertErr)
			}
		}
	}
	return nil
}

func refresh(ctx context.Context, feeds []listener.Listener) error {
	for _, f := range feeds {
		if err := f.Update(ctx); err != nil {
			return fmt.Errorf("%s: %w", f.Market().Symbol(), err)
		}
	}
	return nil
}

func recordExecution(ctx context.Context, a *app, exec arbitrage.Execution) {
	if a.store != nil {
		if err := a.store.SaveArbitrageExecution(ctx, persistence.NewArbitrageRecord(exec)); err != nil {
			a.logger.Warn("failed to save arbitrage execution", "id", exec.ID, "err", err)
		}
		for _, o := range exec.Orders {
			if err := a.store.SaveOrder(ctx, persistence.NewOrderRecord(o, "arbitrage")); err != nil {
				a.logger.Warn("failed to save order", "order_id", o.ID, "err", err)
			}
		}
	}

	_ = a.alerter.Alert(ctx, alerting.EventSeverity(alerting.EventArbitrageExecuted), "Arbitrage executed",
		"cycle", exec.Cycle,
		"direction", exec.Direction,
		"value", exec.Value.String(),
		"origin_size", exec.OriginSize.String(),
		"expected", exec.ExpectedSize.String(),
	)
}
