package alerting

import (
	"context"
	"log/slog"
)

// ConsoleAlerter logs alerts through slog, so they end up next to the
// engine's own log lines.
type ConsoleAlerter struct {
	logger *slog.Logger
}

// NewConsoleAlerter tags every alert with component=alert. A nil logger
// uses slog.Default().
func NewConsoleAlerter(logger *slog.Logger) *ConsoleAlerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleAlerter{logger: logger.With("component", "alert")}
}

func (c *ConsoleAlerter) Name() string { return "console" }

// Alert never fails.
func (c *ConsoleAlerter) Alert(ctx context.Context, severity Severity, message string, fields ...any) error {
	args := append([]any{"severity", severity.String()}, fields...)
	c.logger.Log(ctx, severity.Level(), "[ALERT] "+message, args...)
	return nil
}
