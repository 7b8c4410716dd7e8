// Package config handles configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/tathienbao/tradecore/internal/advance"
	"github.com/tathienbao/tradecore/internal/alerting"
	"github.com/tathienbao/tradecore/internal/arbitrage"
	"github.com/tathienbao/tradecore/internal/cost"
	"github.com/tathienbao/tradecore/internal/engine"
	"github.com/tathienbao/tradecore/internal/execution"
	"github.com/tathienbao/tradecore/internal/listener"
	"github.com/tathienbao/tradecore/internal/market"
	"github.com/tathienbao/tradecore/internal/portfolio"
	"github.com/tathienbao/tradecore/internal/types"
)

// Config represents the full application configuration.
type Config struct {
	Venue       VenueConfig       `yaml:"venue"`
	Execution   ExecutionConfig   `yaml:"execution"`
	Markets     []MarketConfig    `yaml:"markets"`
	Account     AccountConfig     `yaml:"account"`
	Trading     TradingConfig     `yaml:"trading"`
	Advance     AdvanceConfig     `yaml:"advance"`
	Arbitrage   ArbitrageConfig   `yaml:"arbitrage"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Alerting    AlertingConfig    `yaml:"alerting"`
	Shutdown    ShutdownConfig    `yaml:"shutdown"`
}

// VenueConfig holds venue settings.
type VenueConfig struct {
	Type             string  `yaml:"type"` // simulated
	FillSteps        int     `yaml:"fill_steps"`
	FeeRate          float64 `yaml:"fee_rate"`
	FeeFlat          float64 `yaml:"fee_flat"`
	FeeMin           float64 `yaml:"fee_min"`
	CancellationCost float64 `yaml:"cancellation_cost"`
}

// ExecutionConfig holds market actor settings.
type ExecutionConfig struct {
	OrderUpdateIntervalMs int     `yaml:"order_update_interval_ms"`
	RateLimitPerSecond    float64 `yaml:"rate_limit_per_second"`
	RateLimitBurst        int     `yaml:"rate_limit_burst"`
}

// MarketConfig describes one market and its paper feed.
type MarketConfig struct {
	Symbol     string     `yaml:"symbol"`     // BASE/QUOTE
	Kind       string     `yaml:"kind"`       // spot | derivative
	Underlying string     `yaml:"underlying"` // derivative only
	Expiry     string     `yaml:"expiry"`     // RFC 3339, derivative only
	Feed       FeedConfig `yaml:"feed"`
}

// FeedConfig holds random walk parameters.
type FeedConfig struct {
	StartPrice float64 `yaml:"start_price"`
	Drift      float64 `yaml:"drift"`
	Volatility float64 `yaml:"volatility"`
	Spread     float64 `yaml:"spread"`
	Levels     int     `yaml:"levels"`
	LevelSize  float64 `yaml:"level_size"`
	Seed       uint64  `yaml:"seed"`
}

// AccountConfig holds the initial ledger.
type AccountConfig struct {
	Balances map[string]float64 `yaml:"balances"`
}

// TradingConfig holds trading loop settings.
type TradingConfig struct {
	Market                 string  `yaml:"market"`
	Size                   float64 `yaml:"size"`
	TickIntervalMs         int     `yaml:"tick_interval_ms"`
	CooldownSec            int     `yaml:"cooldown_sec"`
	OrderTimeoutSec        int     `yaml:"order_timeout_sec"`
	LogicUpdateIntervalSec int     `yaml:"logic_update_interval_sec"`
	ReconnectAttempts      int     `yaml:"reconnect_attempts"`
	ReconnectDelayMs       int     `yaml:"reconnect_delay_ms"`
	LedgerIntervalSec      int     `yaml:"ledger_interval_sec"`
}

// AdvanceConfig holds stop-loss settings.
type AdvanceConfig struct {
	Kind         string  `yaml:"kind"` // fixed | trailing | trailing_percent | convertible
	StopRate     float64 `yaml:"stop_rate"`
	TrailingGap  float64 `yaml:"trailing_gap"`
	TrailingRate float64 `yaml:"trailing_rate"`
	UseOrderbook bool    `yaml:"use_orderbook"`
}

// ArbitrageConfig holds triangular arbitrage settings.
type ArbitrageConfig struct {
	Origin         string   `yaml:"origin"`
	Legs           []string `yaml:"legs"`  // market symbols
	Logic          string   `yaml:"logic"` // top_of_book | depth
	DepthLevels    int      `yaml:"depth_levels"`
	Size           float64  `yaml:"size"`
	ScanIntervalMs int      `yaml:"scan_interval_ms"`
}

// PersistenceConfig holds persistence settings.
type PersistenceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Type    string `yaml:"type"` // sqlite
	Path    string `yaml:"path"`
}

// AlertingConfig holds alerting settings.
type AlertingConfig struct {
	Enabled  bool            `yaml:"enabled"`
	Channels []ChannelConfig `yaml:"channels"`
}

// ChannelConfig holds a single alert channel configuration.
type ChannelConfig struct {
	Type        string `yaml:"type"` // console | telegram
	BotToken    string `yaml:"bot_token"`
	ChatID      string `yaml:"chat_id"`
	APIURL      string `yaml:"api_url"`
	MinSeverity string `yaml:"min_severity"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// ShutdownConfig holds shutdown settings.
type ShutdownConfig struct {
	TimeoutSec     int  `yaml:"timeout_sec"`
	ClosePositions bool `yaml:"close_positions"`
}

// Load loads configuration from a YAML file. A .env file next to it, if
// present, is loaded into the environment before ${VAR} expansion.
func Load(path string) (*Config, error) {
	if err := LoadEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadEnv loads variables from dotenv files without overriding the existing
// environment. Missing files are skipped.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// LoadFromBytes loads configuration from YAML bytes.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Default returns a paper configuration trading BTC/USD.
func Default() *Config {
	return &Config{
		Venue: VenueConfig{Type: "simulated", FillSteps: 1, FeeRate: 0.0026},
		Execution: ExecutionConfig{
			OrderUpdateIntervalMs: 200,
			RateLimitPerSecond:    10,
			RateLimitBurst:        3,
		},
		Trading: TradingConfig{
			TickIntervalMs:         1000,
			CooldownSec:            300,
			OrderTimeoutSec:        60,
			LogicUpdateIntervalSec: 300,
			ReconnectAttempts:      200,
			ReconnectDelayMs:       200,
			LedgerIntervalSec:      60,
		},
		Advance: AdvanceConfig{Kind: advance.KindFixed, StopRate: 0.02, TrailingRate: 0.02},
		Arbitrage: ArbitrageConfig{
			Logic:          "top_of_book",
			DepthLevels:    5,
			ScanIntervalMs: 1000,
		},
		Metrics:  MetricsConfig{Port: 9090, Path: "/metrics"},
		Shutdown: ShutdownConfig{TimeoutSec: 30},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	// Venue validation
	if c.Venue.Type != "simulated" {
		errs = append(errs, fmt.Sprintf("venue.type '%s' is not supported", c.Venue.Type))
	}
	if c.Venue.FillSteps < 1 {
		errs = append(errs, "venue.fill_steps must be at least 1")
	}
	if _, err := c.CostEngine(); err != nil {
		errs = append(errs, "venue fees: "+err.Error())
	}
	if c.Venue.CancellationCost < 0 {
		errs = append(errs, "venue.cancellation_cost must not be negative")
	}

	// Execution validation
	if c.Execution.OrderUpdateIntervalMs <= 0 {
		errs = append(errs, "execution.order_update_interval_ms must be positive")
	}
	if c.Execution.RateLimitPerSecond < 0 {
		errs = append(errs, "execution.rate_limit_per_second must not be negative")
	}

	// Market validation
	seen := make(map[string]bool)
	for i, mc := range c.Markets {
		if _, err := mc.Build(); err != nil {
			errs = append(errs, fmt.Sprintf("markets[%d]: %v", i, err))
			continue
		}
		if seen[mc.Symbol] {
			errs = append(errs, fmt.Sprintf("markets[%d]: duplicate symbol %s", i, mc.Symbol))
		}
		seen[mc.Symbol] = true
		if err := mc.Feed.RandomWalk().Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("markets[%d].feed: %v", i, err))
		}
	}

	// Trading validation
	if c.Trading.Market != "" {
		if !seen[c.Trading.Market] {
			errs = append(errs, fmt.Sprintf("trading.market '%s' is not configured", c.Trading.Market))
		}
		if c.Trading.Size == 0 {
			errs = append(errs, "trading.size must be non-zero")
		}
		if c.Trading.OrderTimeoutSec <= 0 {
			errs = append(errs, "trading.order_timeout_sec must be positive")
		}
		if c.Trading.TickIntervalMs <= 0 {
			errs = append(errs, "trading.tick_interval_ms must be positive")
		}
		if err := c.StopLossConfig().Validate(); err != nil {
			errs = append(errs, "advance: "+err.Error())
		}
	}

	// Arbitrage validation
	if len(c.Arbitrage.Legs) > 0 {
		if c.Arbitrage.Origin == "" {
			errs = append(errs, "arbitrage.origin is required")
		}
		if len(c.Arbitrage.Legs) < 2 {
			errs = append(errs, "arbitrage.legs needs at least 2 markets")
		}
		for _, leg := range c.Arbitrage.Legs {
			if !seen[leg] {
				errs = append(errs, fmt.Sprintf("arbitrage leg '%s' is not configured", leg))
			}
		}
		if c.Arbitrage.Size <= 0 {
			errs = append(errs, "arbitrage.size must be positive")
		}
		if c.Arbitrage.Logic != "top_of_book" && c.Arbitrage.Logic != "depth" {
			errs = append(errs, "arbitrage.logic must be 'top_of_book' or 'depth'")
		}
		if c.Arbitrage.Logic == "depth" && c.Arbitrage.DepthLevels < 1 {
			errs = append(errs, "arbitrage.depth_levels must be at least 1")
		}
	}

	// Persistence validation
	if c.Persistence.Enabled {
		if c.Persistence.Type != "sqlite" {
			errs = append(errs, "persistence.type must be 'sqlite'")
		}
		if c.Persistence.Path == "" {
			errs = append(errs, "persistence.path is required for sqlite")
		}
	}

	// Metrics validation
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		errs = append(errs, "metrics.port must be between 1 and 65535")
	}

	// Alerting validation
	if c.Alerting.Enabled {
		for i, ch := range c.Alerting.Channels {
			switch ch.Type {
			case "console":
			case "telegram":
				if ch.BotToken == "" || ch.ChatID == "" {
					errs = append(errs, fmt.Sprintf("alerting.channels[%d]: telegram needs bot_token and chat_id", i))
				}
			default:
				errs = append(errs, fmt.Sprintf("alerting.channels[%d]: unknown type '%s'", i, ch.Type))
			}
			if _, err := ParseSeverity(ch.MinSeverity); err != nil {
				errs = append(errs, fmt.Sprintf("alerting.channels[%d]: %v", i, err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", types.ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// Build creates the market described by mc.
func (mc MarketConfig) Build() (market.Market, error) {
	base, quote, err := market.ParseSymbol(mc.Symbol)
	if err != nil {
		return nil, err
	}

	switch mc.Kind {
	case "", "spot":
		return market.NewSpot(base, quote), nil
	case "derivative":
		var expiry time.Time
		if mc.Expiry != "" {
			expiry, err = time.Parse(time.RFC3339, mc.Expiry)
			if err != nil {
				return nil, fmt.Errorf("%w: expiry: %v", types.ErrInvalidConfig, err)
			}
		}
		return market.NewDerivative(base, quote, mc.Underlying, expiry), nil
	default:
		return nil, fmt.Errorf("%w: unknown market kind %q", types.ErrInvalidConfig, mc.Kind)
	}
}

// RandomWalk converts the feed settings, filling defaults for zero values.
func (fc FeedConfig) RandomWalk() listener.RandomWalkConfig {
	cfg := listener.DefaultRandomWalkConfig()
	if fc.StartPrice != 0 {
		cfg.StartPrice = decimal.NewFromFloat(fc.StartPrice)
	}
	cfg.Drift = fc.Drift
	if fc.Volatility != 0 {
		cfg.Volatility = fc.Volatility
	}
	if fc.Spread != 0 {
		cfg.Spread = fc.Spread
	}
	if fc.Levels != 0 {
		cfg.Levels = fc.Levels
	}
	if fc.LevelSize != 0 {
		cfg.LevelSize = decimal.NewFromFloat(fc.LevelSize)
	}
	if fc.Seed != 0 {
		cfg.Seed = fc.Seed
	}
	return cfg
}

// Market returns the configuration of symbol.
func (c *Config) Market(symbol string) (MarketConfig, bool) {
	for _, mc := range c.Markets {
		if mc.Symbol == symbol {
			return mc, true
		}
	}
	return MarketConfig{}, false
}

// CostEngine returns the venue's transaction costs.
func (c *Config) CostEngine() (cost.Engine, error) {
	return cost.NewEngine(
		decimal.NewFromFloat(c.Venue.FeeFlat),
		decimal.NewFromFloat(c.Venue.FeeMin),
		decimal.NewFromFloat(c.Venue.FeeRate),
	)
}

// SimulatedConfig converts to execution.SimulatedConfig.
func (c *Config) SimulatedConfig() execution.SimulatedConfig {
	ce, _ := c.CostEngine()
	return execution.SimulatedConfig{
		FillSteps:        c.Venue.FillSteps,
		CostEngine:       ce,
		CancellationCost: decimal.NewFromFloat(c.Venue.CancellationCost),
		HistoryLimit:     execution.DefaultHistoryLimit,
	}
}

// ActorConfig converts to execution.Config.
func (c *Config) ActorConfig() execution.Config {
	return execution.Config{
		OrderUpdateInterval: time.Duration(c.Execution.OrderUpdateIntervalMs) * time.Millisecond,
		SubmitRatePerSecond: c.Execution.RateLimitPerSecond,
		SubmitBurst:         c.Execution.RateLimitBurst,
	}
}

// EngineConfig converts to engine.Config.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		TickInterval:        time.Duration(c.Trading.TickIntervalMs) * time.Millisecond,
		Cooldown:            time.Duration(c.Trading.CooldownSec) * time.Second,
		OrderTimeout:        c.OrderTimeout(),
		LogicUpdateInterval: time.Duration(c.Trading.LogicUpdateIntervalSec) * time.Second,
		ReconnectAttempts:   c.Trading.ReconnectAttempts,
		ReconnectDelay:      time.Duration(c.Trading.ReconnectDelayMs) * time.Millisecond,
		LedgerInterval:      time.Duration(c.Trading.LedgerIntervalSec) * time.Second,
	}
}

// StopLossConfig converts to advance.StopLossConfig.
func (c *Config) StopLossConfig() advance.StopLossConfig {
	return advance.StopLossConfig{
		Kind:         c.Advance.Kind,
		StopRate:     decimal.NewFromFloat(c.Advance.StopRate),
		TrailingGap:  decimal.NewFromFloat(c.Advance.TrailingGap),
		TrailingRate: decimal.NewFromFloat(c.Advance.TrailingRate),
		UseOrderbook: c.Advance.UseOrderbook,
	}
}

// ArbitrageLogic returns the configured pricing logic.
func (c *Config) ArbitrageLogic() arbitrage.Logic {
	if c.Arbitrage.Logic == "depth" {
		return arbitrage.Depth{Levels: c.Arbitrage.DepthLevels}
	}
	return arbitrage.TopOfBook{}
}

// InitialLedger returns the configured starting balances. Quote-style
// balances are entered at a unit price.
func (c *Config) InitialLedger() *portfolio.Portfolio {
	ledger := portfolio.New()
	for ticker, size := range c.Account.Balances {
		ledger.Add(portfolio.NewBalance(ticker, decimal.NewFromFloat(size), decimal.NewFromInt(1)))
	}
	return ledger
}

// Alerter builds the configured alert channels. Without channels, or with
// alerting disabled, alerts go to the console.
func (c *Config) Alerter(logger *slog.Logger) alerting.Alerter {
	multi := alerting.NewMultiAlerter(logger)
	if !c.Alerting.Enabled {
		multi.AddAlerter(alerting.NewConsoleAlerter(logger))
		return multi
	}

	for _, ch := range c.Alerting.Channels {
		severity, _ := ParseSeverity(ch.MinSeverity)
		switch ch.Type {
		case "console":
			multi.AddAlerter(alerting.NewConsoleAlerter(logger))
		case "telegram":
			multi.AddAlerter(alerting.NewTelegramAlerter(alerting.TelegramConfig{
				BotToken:    ch.BotToken,
				ChatID:      ch.ChatID,
				APIURL:      ch.APIURL,
				MinSeverity: severity,
			}))
		}
	}
	if multi.Len() == 0 {
		multi.AddAlerter(alerting.NewConsoleAlerter(logger))
	}
	return multi
}

// ParseSeverity parses a severity name; empty means info.
func ParseSeverity(s string) (alerting.Severity, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return alerting.SeverityInfo, nil
	case "warning":
		return alerting.SeverityWarning, nil
	case "high":
		return alerting.SeverityHigh, nil
	case "critical":
		return alerting.SeverityCritical, nil
	default:
		return alerting.SeverityInfo, fmt.Errorf("unknown severity %q", s)
	}
}

// OrderTimeout returns the order timeout duration.
func (c *Config) OrderTimeout() time.Duration {
	return time.Duration(c.Trading.OrderTimeoutSec) * time.Second
}

// ScanInterval returns the arbitrage scan period.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Arbitrage.ScanIntervalMs) * time.Millisecond
}

// ShutdownTimeout returns the shutdown timeout duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Shutdown.TimeoutSec) * time.Second
}
