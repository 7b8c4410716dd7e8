package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tathienbao/tradecore/internal/config"
	"github.com/tathienbao/tradecore/internal/metrics"
)

type rootOptions struct {
	configPath string
	verbose    bool
	jsonLogs   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "tradecore",
		Short: "Order and position lifecycle engine with paper execution",
		Long: `tradecore trades against simulated venues fed by random walk order books.

It provides:
  - A guarded trading loop: open, protect with a stop, close, cool down
  - Fixed, trailing and convertible stop-loss advance orders
  - Triangular arbitrage scanning across three markets
  - SQLite ledger persistence, Prometheus metrics and Telegram alerts`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(newLogger(cmd.ErrOrStderr(), opts))
			metrics.SetBuildInfo(Version, GitCommit, BuildTime)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to configuration file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().BoolVar(&opts.jsonLogs, "json", false, "JSON log output")

	cmd.AddCommand(
		newRunCmd(opts),
		newArbCmd(opts),
		newValidateCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func newLogger(w io.Writer, opts *rootOptions) *slog.Logger {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if opts.jsonLogs {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tradecore version %s\n", Version)
			fmt.Fprintf(out, "  Build time: %s\n", BuildTime)
			fmt.Fprintf(out, "  Git commit: %s\n", GitCommit)
		},
	}
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration is valid!")
			fmt.Fprintf(out, "  Venue: %s (fee rate %.4f)\n", cfg.Venue.Type, cfg.Venue.FeeRate)
			fmt.Fprintf(out, "  Markets: %d\n", len(cfg.Markets))
			if cfg.Trading.Market != "" {
				fmt.Fprintf(out, "  Trading: %s size %g, %s stop\n", cfg.Trading.Market, cfg.Trading.Size, cfg.Advance.Kind)
			}
			if len(cfg.Arbitrage.Legs) > 0 {
				fmt.Fprintf(out, "  Arbitrage: %s via %v (%s)\n", cfg.Arbitrage.Origin, cfg.Arbitrage.Legs, cfg.Arbitrage.Logic)
			}
			if cfg.Persistence.Enabled {
				fmt.Fprintf(out, "  Persistence: %s\n", cfg.Persistence.Path)
			}
			return nil
		},
	}
}
