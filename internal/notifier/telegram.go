package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"goldsignal/internal/models"
)

const defaultTelegramBase = "https://api.telegram.org"

// Telegram posts events to a chat via the Bot API. Plain sendMessage calls
// with HTML parse mode and a bounded retry; no bot framework needed for a
// one-way alert channel.
type Telegram struct {
	Token   string
	ChatID  string
	BaseURL string
	Client  *http.Client
	Logger  *zap.Logger

	// Retries is the number of additional attempts after a failed send.
	Retries int
}

func (t *Telegram) SignalEmitted(ctx context.Context, sig models.Signal) error {
	if sig.Class == models.ClassNeutral {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<b>GOLD SIGNAL: %s</b>\n", sig.Class)
	fmt.Fprintf(&b, "Confidence: <b>%.1f%%</b>\n", sig.Confidence*100)
	fmt.Fprintf(&b, "Entry: <b>$%s</b>\n", sig.EntryPrice.StringFixed(2))
	if sig.StopLoss != nil {
		fmt.Fprintf(&b, "Stop Loss: <b>$%s</b>\n", sig.StopLoss.StringFixed(2))
	}
	if sig.TakeProfit != nil {
		fmt.Fprintf(&b, "Take Profit: <b>$%s</b>\n", sig.TakeProfit.StringFixed(2))
	}
	fmt.Fprintf(&b, "Time: %s", sig.Timestamp.UTC().Format("2006-01-02 15:04:05"))
	return t.send(ctx, b.String())
}

func (t *Telegram) TradeClosed(ctx context.Context, trade models.Trade) error {
	pl := "n/a"
	if trade.ProfitLoss != nil {
		pl = "$" + trade.ProfitLoss.StringFixed(2)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<b>TRADE CLOSED: %s</b>\n", trade.Result)
	fmt.Fprintf(&b, "%s %s @ $%s\n", trade.ID, trade.Signal.Class, trade.Signal.EntryPrice.StringFixed(2))
	fmt.Fprintf(&b, "P/L: <b>%s</b>\n", pl)
	fmt.Fprintf(&b, "Reason: %s", trade.ExitReason)
	return t.send(ctx, b.String())
}

func (t *Telegram) StatusChanged(ctx context.Context, from, to models.SignalStatus, reason string, metrics *models.PerformanceMetrics) error {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>PERFORMANCE UPDATE</b>\n")
	fmt.Fprintf(&b, "Status: %s -> <b>%s</b>\n", from, to)
	if reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", reason)
	}
	if metrics != nil {
		fmt.Fprintf(&b, "Win Rate: <b>%.1f%%</b>\n", metrics.WinRate*100)
		fmt.Fprintf(&b, "Profit Factor: <b>%s</b>\n", formatProfitFactor(metrics.ProfitFactor))
		fmt.Fprintf(&b, "Total Trades: <b>%d</b>", metrics.TotalTrades)
	}
	return t.send(ctx, strings.TrimRight(b.String(), "\n"))
}

// PerformanceReport delivers the scheduled report. The text is column
// aligned, so it goes out inside a pre block.
func (t *Telegram) PerformanceReport(ctx context.Context, report string) error {
	return t.send(ctx, "<pre>"+html.EscapeString(report)+"</pre>")
}

func (t *Telegram) send(ctx context.Context, text string) error {
	var lastErr error
	for attempt := 0; attempt <= t.Retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
		if err := t.sendOnce(ctx, text); err != nil {
			lastErr = err
			if t.Logger != nil {
				t.Logger.Warn("telegram send failed",
					zap.Int("attempt", attempt+1),
					zap.Error(err),
				)
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("telegram: retries exhausted: %w", lastErr)
}

func (t *Telegram) sendOnce(ctx context.Context, text string) error {
	base := t.BaseURL
	if base == "" {
		base = defaultTelegramBase
	}
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", base, t.Token)

	payload, err := json.Marshal(map[string]string{
		"chat_id":    t.ChatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := t.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram api status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func formatProfitFactor(pf float64) string {
	if math.IsInf(pf, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", pf)
}
