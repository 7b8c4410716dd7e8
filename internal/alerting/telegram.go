package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultTelegramURL = "https://api.telegram.org"

// TelegramConfig holds configuration for Telegram alerter.
type TelegramConfig struct {
	BotToken    string
	ChatID      string
	APIURL      string // Defaults to the public Bot API
	Timeout     time.Duration
	MinSeverity Severity
	RatePerMin  int // Messages per minute; 0 uses 20
}

// TelegramAlerter sends alerts via the Telegram Bot API.
type TelegramAlerter struct {
	cfg     TelegramConfig
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

// NewTelegramAlerter creates a new Telegram alerter.
func NewTelegramAlerter(cfg TelegramConfig) *TelegramAlerter {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.APIURL == "" {
		cfg.APIURL = defaultTelegramURL
	}
	if cfg.RatePerMin <= 0 {
		cfg.RatePerMin = 20
	}

	return &TelegramAlerter{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMin)), 3),
		now:     time.Now,
	}
}

func (t *TelegramAlerter) Name() string {
	return "telegram"
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// Alert sends an alert via Telegram. Alerts below MinSeverity are dropped.
func (t *TelegramAlerter) Alert(ctx context.Context, severity Severity, message string, fields ...any) error {
	if severity < t.cfg.MinSeverity {
		return nil
	}
	return t.send(ctx, t.formatMessage(severity, message, fields...))
}

// SendSummary sends a formatted session summary regardless of MinSeverity.
func (t *TelegramAlerter) SendSummary(ctx context.Context, summary SessionSummary) error {
	return t.send(ctx, t.formatSummary(summary))
}

func (t *TelegramAlerter) send(ctx context.Context, text string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	body, err := json.Marshal(telegramMessage{
		ChatID:    t.cfg.ChatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.cfg.APIURL, "/"), t.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var telegramResp telegramResponse
	if err := json.Unmarshal(respBody, &telegramResp); err != nil {
		return fmt.Errorf("parse response (status %d): %w", resp.StatusCode, err)
	}
	if !telegramResp.OK {
		return fmt.Errorf("telegram API error: %s", telegramResp.Description)
	}
	return nil
}

func (t *TelegramAlerter) formatMessage(severity Severity, message string, fields ...any) string {
	text := fmt.Sprintf("%s <b>[%s]</b>\n%s", severity.Emoji(), severity.String(), message)

	if details := FormatFields(fields...); details != "" {
		text += "\n\n<b>Details:</b>\n" + details
	}

	text += fmt.Sprintf("\n\n<i>%s</i>", t.now().Format("2006-01-02 15:04:05 MST"))
	return text
}

func (t *TelegramAlerter) formatSummary(s SessionSummary) string {
	plEmoji := "📈"
	if s.TotalPL.IsNegative() {
		plEmoji = "📉"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>Session Summary</b>\n", plEmoji)
	fmt.Fprintf(&b, "<b>From:</b> %s\n<b>To:</b> %s\n\n", s.Started.Format(time.DateTime), s.Ended.Format(time.DateTime))
	fmt.Fprintf(&b, "<b>Ledger value:</b> %s → %s\n", s.StartingValue.StringFixed(2), s.EndingValue.StringFixed(2))
	fmt.Fprintf(&b, "<b>P/L:</b> %s (%s%%)\n\n", s.TotalPL.StringFixed(2), s.ReturnPct.StringFixed(2))
	fmt.Fprintf(&b, "<b>Cycles:</b> %d | <b>Stops:</b> %d | <b>Timeouts:</b> %d", s.Cycles, s.StopsTriggered, s.OrderTimeouts)

	if len(s.Balances) > 0 {
		b.WriteString("\n\n<b>Balances:</b>")
		for _, bal := range s.Balances {
			fmt.Fprintf(&b, "\n• %s: %s", bal.Ticker, bal.Size.String())
		}
	}
	return b.String()
}
