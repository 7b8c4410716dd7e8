// Package alerting notifies operators about engine and arbitrage events.
// Alerts go out through one or more channels: the log, Telegram, or both
// combined by a MultiAlerter.
package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Severity ranks an alert. Channels drop alerts below their configured
// minimum.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	// SeverityHigh marks a failed trade cycle that left no position unguarded.
	SeverityHigh
	// SeverityCritical marks an open position the engine can no longer manage.
	SeverityCritical
)

type severityInfo struct {
	name  string
	emoji string
	level slog.Level
}

var severities = map[Severity]severityInfo{
	SeverityInfo:     {"INFO", "ℹ️", slog.LevelInfo},
	SeverityWarning:  {"WARNING", "⚠️", slog.LevelWarn},
	SeverityHigh:     {"HIGH", "🔴", slog.LevelWarn},
	SeverityCritical: {"CRITICAL", "🚨", slog.LevelError},
}

func (s Severity) String() string {
	if info, ok := severities[s]; ok {
		return info.name
	}
	return "UNKNOWN"
}

// Emoji prefixes chat messages.
func (s Severity) Emoji() string {
	if info, ok := severities[s]; ok {
		return info.emoji
	}
	return "❓"
}

// Level is the slog level a console alert is logged at.
func (s Severity) Level() slog.Level {
	if info, ok := severities[s]; ok {
		return info.level
	}
	return slog.LevelInfo
}

// Alerter delivers alerts to one channel. fields are slog-style key/value
// pairs describing the market, order or ledger involved.
type Alerter interface {
	Alert(ctx context.Context, severity Severity, message string, fields ...any) error
	Name() string
}

// FormatFields renders key/value pairs as one bullet per line. Pairs with a
// non-string key and a trailing key without value are skipped.
func FormatFields(fields ...any) string {
	var b strings.Builder
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "• %s: %v", key, fields[i+1])
	}
	return b.String()
}

// AlertEvent names something the engine or the arbitrage scanner reports.
type AlertEvent string

const (
	// EventEngineStarted is sent when the trading loop starts.
	EventEngineStarted AlertEvent = "engine_started"
	// EventEngineStopped is sent when the trading loop stops.
	EventEngineStopped AlertEvent = "engine_stopped"
	// EventFeedLost is sent when the market listener cannot be reconnected.
	EventFeedLost AlertEvent = "feed_lost"
	// EventOrderRejected is sent when the venue refuses an order.
	EventOrderRejected AlertEvent = "order_rejected"
	// EventOrderTimeout is sent when an order is stuck and gets cancelled.
	EventOrderTimeout AlertEvent = "order_timeout"
	// EventPositionOpened is sent when an opening order fills.
	EventPositionOpened AlertEvent = "position_opened"
	// EventPositionClosed is sent when an advance order fills.
	EventPositionClosed AlertEvent = "position_closed"
	// EventPositionUnguarded is sent when no advance order could be attached.
	EventPositionUnguarded AlertEvent = "position_unguarded"
	// EventArbitrageExecuted is sent after a cycle's trades are placed.
	EventArbitrageExecuted AlertEvent = "arbitrage_executed"
	// EventArbitrageFailed is sent when a cycle stops part way.
	EventArbitrageFailed AlertEvent = "arbitrage_failed"
	// EventSessionSummary is sent on shutdown.
	EventSessionSummary AlertEvent = "session_summary"
)

// EventSeverity ranks an event. Events that leave a position unmanaged are
// critical.
func EventSeverity(event AlertEvent) Severity {
	switch event {
	case EventFeedLost, EventPositionUnguarded:
		return SeverityCritical
	case EventArbitrageFailed:
		return SeverityHigh
	case EventOrderRejected, EventOrderTimeout:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}
