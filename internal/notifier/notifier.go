package notifier

import (
	"context"

	"goldsignal/internal/models"
)

// Notifier receives fire-and-forget events from the core. Delivery failures
// are the notifier's problem; callers log and move on, gate state is never
// affected.
type Notifier interface {
	SignalEmitted(ctx context.Context, sig models.Signal) error
	TradeClosed(ctx context.Context, trade models.Trade) error
	StatusChanged(ctx context.Context, from, to models.SignalStatus, reason string, metrics *models.PerformanceMetrics) error
}

// Noop drops every event.
type Noop struct{}

func (Noop) SignalEmitted(context.Context, models.Signal) error {
	return nil
}

func (Noop) TradeClosed(context.Context, models.Trade) error {
	return nil
}

func (Noop) StatusChanged(context.Context, models.SignalStatus, models.SignalStatus, string, *models.PerformanceMetrics) error {
	return nil
}
