package performance

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"goldsignal/internal/artifact"
	"goldsignal/internal/config"
	"goldsignal/internal/models"
	"goldsignal/internal/notifier"
	"goldsignal/internal/store"
)

// HistoricalValidator replays the live classifier over recent history and
// renders a pass/fail verdict with the synthetic metrics behind it.
type HistoricalValidator interface {
	ValidateOnRecentHistory(ctx context.Context) (bool, *models.PerformanceMetrics, error)
}

// StatusArchiver mirrors gate transitions into the archive database.
type StatusArchiver interface {
	StatusChanged(ctx context.Context, from, to models.SignalStatus, reason string) error
}

// Monitor owns the performance ledger and the emission gate. Every record
// append re-validates the current model version against the configured
// thresholds; the resulting status is what the generator consults before
// emitting anything.
type Monitor struct {
	Store     *store.Store
	Binder    *artifact.Binder
	Config    config.PerformanceConfig
	Validator HistoricalValidator
	Notifier  notifier.Notifier
	Archive   StatusArchiver
	Logger    *zap.Logger
}

// RecordTradeResult appends the closed trade's projection to the history,
// stamped with the live model version, then re-validates performance.
func (m *Monitor) RecordTradeResult(sig models.Signal, result models.TradeResult, profitLoss decimal.Decimal) error {
	record := models.PerformanceRecord{
		Timestamp:    time.Now().UTC(),
		Class:        sig.Class,
		Confidence:   sig.Confidence,
		EntryPrice:   sig.EntryPrice,
		Result:       result,
		ProfitLoss:   profitLoss,
		ModelVersion: m.Binder.Current(),
	}

	err := m.Store.UpdateHistory(func(h *models.PerformanceHistory) error {
		h.Trades = append(h.Trades, record)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record trade result: %w", err)
	}

	if m.Logger != nil {
		m.Logger.Info("trade result recorded",
			zap.String("class", string(sig.Class)),
			zap.String("result", string(result)),
			zap.String("profit_loss", profitLoss.String()),
			zap.String("model_version", record.ModelVersion),
		)
	}

	_, err = m.ValidatePerformance()
	return err
}

// ValidatePerformance recomputes metrics over the current model version's
// records and moves the gate. Fewer than MinTrades records leave the gate
// untouched: small samples neither promote nor suspend.
func (m *Monitor) ValidatePerformance() (models.SignalStatus, error) {
	version := m.Binder.Current()

	var (
		status     models.SignalStatus
		fromStatus models.SignalStatus
		metrics    *models.PerformanceMetrics
		reason     string
		skipped    bool
	)

	err := m.Store.UpdateHistory(func(h *models.PerformanceHistory) error {
		fromStatus = h.SignalStatus
		status = h.SignalStatus

		current := filterByVersion(h.Trades, version)
		metrics = ComputeMetrics(current)
		if metrics == nil || metrics.TotalTrades < m.Config.MinTrades {
			skipped = true
			return store.ErrSkipSave
		}

		reason = m.thresholdFailure(metrics)
		if reason == "" {
			status = models.StatusActive
		} else {
			status = models.StatusSuspended
		}

		h.SignalStatus = status
		h.PerformanceMetrics = metrics
		now := time.Now().UTC()
		h.LastValidation = &now
		return nil
	})
	if err != nil {
		return fromStatus, fmt.Errorf("validate performance: %w", err)
	}

	if skipped {
		if m.Logger != nil {
			n := 0
			if metrics != nil {
				n = metrics.TotalTrades
			}
			m.Logger.Info("insufficient trades for validation, gate unchanged",
				zap.Int("trades", n),
				zap.Int("min_trades", m.Config.MinTrades),
				zap.String("model_version", version),
			)
		}
		return fromStatus, nil
	}

	m.logAndNotifyTransition(fromStatus, status, reason, metrics)
	return status, nil
}

// IsSignalAllowed is the single authoritative gate check: only ACTIVE
// allows emission. A fresh system with no history is ACTIVE.
func (m *Monitor) IsSignalAllowed() (bool, error) {
	h, err := m.Store.History()
	if err != nil {
		return false, err
	}
	return h.SignalStatus == models.StatusActive, nil
}

// Status returns the persisted gate state.
func (m *Monitor) Status() (models.SignalStatus, error) {
	h, err := m.Store.History()
	if err != nil {
		return "", err
	}
	return h.SignalStatus, nil
}

// Metrics returns the last stored metrics, nil when none were computed yet.
func (m *Monitor) Metrics() (*models.PerformanceMetrics, error) {
	h, err := m.Store.History()
	if err != nil {
		return nil, err
	}
	return h.PerformanceMetrics, nil
}

// BeginRetrain moves the gate to TESTING while a new model artifact is
// being produced. Resolved by PostRetrainValidation.
func (m *Monitor) BeginRetrain(reason string) error {
	var from models.SignalStatus
	err := m.Store.UpdateHistory(func(h *models.PerformanceHistory) error {
		from = h.SignalStatus
		h.SignalStatus = models.StatusTesting
		return nil
	})
	if err != nil {
		return fmt.Errorf("begin retrain: %w", err)
	}
	m.logAndNotifyTransition(from, models.StatusTesting, reason, nil)
	return nil
}

// PostRetrainValidation records the new model version, runs the historical
// validator, and sets the gate from its verdict. The live minimum-trade
// gate does not apply here: this is the pre-live check that decides whether
// a freshly trained model may see real trades at all.
func (m *Monitor) PostRetrainValidation(ctx context.Context, reason string) (models.SignalStatus, error) {
	version := m.Binder.Current()

	err := m.Store.UpdateHistory(func(h *models.PerformanceHistory) error {
		h.ModelVersions = append(h.ModelVersions, models.ModelVersionEntry{
			Timestamp: time.Now().UTC(),
			Version:   version,
			Reason:    reason,
		})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("post-retrain validation: record version: %w", err)
	}

	if m.Logger != nil {
		m.Logger.Info("validating retrained model on historical data",
			zap.String("model_version", version),
			zap.String("reason", reason),
		)
	}

	passed := false
	var metrics *models.PerformanceMetrics
	if m.Validator != nil {
		var verr error
		passed, metrics, verr = m.Validator.ValidateOnRecentHistory(ctx)
		if verr != nil {
			// Fail-safe: a validator that cannot produce evidence suspends.
			passed = false
			metrics = nil
			if m.Logger != nil {
				m.Logger.Warn("historical validation failed to run", zap.Error(verr))
			}
		}
	} else if m.Logger != nil {
		m.Logger.Warn("no historical validator configured, suspending after retrain")
	}

	status := models.StatusSuspended
	verdict := "failed historical validation"
	if passed {
		status = models.StatusActive
		verdict = "passed historical validation"
	}

	var from models.SignalStatus
	err = m.Store.UpdateHistory(func(h *models.PerformanceHistory) error {
		from = h.SignalStatus
		h.SignalStatus = status
		if metrics != nil {
			h.PerformanceMetrics = metrics
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("post-retrain validation: set status: %w", err)
	}

	m.logAndNotifyTransition(from, status, verdict, metrics)
	return status, nil
}

// Report renders the human-readable performance summary.
func (m *Monitor) Report() (string, error) {
	h, err := m.Store.History()
	if err != nil {
		return "", err
	}
	metrics := h.PerformanceMetrics
	if metrics == nil {
		return "No performance data available", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "PERFORMANCE STATUS: %s\n\n", h.SignalStatus)
	fmt.Fprintf(&b, "Recent performance (last %d days):\n", m.Config.WindowDays)
	fmt.Fprintf(&b, "  Total trades:  %d\n", metrics.TotalTrades)
	fmt.Fprintf(&b, "  Win rate:      %.1f%%\n", metrics.WinRate*100)
	fmt.Fprintf(&b, "  Profit factor: %s\n", formatPF(metrics.ProfitFactor))
	fmt.Fprintf(&b, "  Net profit:    $%s\n", metrics.NetProfit.StringFixed(2))
	fmt.Fprintf(&b, "  Avg win:       $%s\n", metrics.AvgWin.StringFixed(2))
	fmt.Fprintf(&b, "  Avg loss:      $%s\n\n", metrics.AvgLoss.StringFixed(2))
	fmt.Fprintf(&b, "Thresholds:\n")
	fmt.Fprintf(&b, "  Min win rate:      %.1f%%\n", m.Config.MinWinRate*100)
	fmt.Fprintf(&b, "  Min profit factor: %.2f\n", m.Config.MinProfitFactor)
	fmt.Fprintf(&b, "  Min trades:        %d\n", m.Config.MinTrades)
	return b.String(), nil
}

// thresholdFailure names the first live threshold the metrics miss, empty
// when all pass. The order matches the gate rule: win rate, profit factor,
// positive net profit.
func (m *Monitor) thresholdFailure(metrics *models.PerformanceMetrics) string {
	if metrics.WinRate < m.Config.MinWinRate {
		return fmt.Sprintf("win_rate %.3f below %.3f", metrics.WinRate, m.Config.MinWinRate)
	}
	if metrics.ProfitFactor < m.Config.MinProfitFactor {
		return fmt.Sprintf("profit_factor %.2f below %.2f", metrics.ProfitFactor, m.Config.MinProfitFactor)
	}
	if !metrics.NetProfit.GreaterThan(decimal.Zero) {
		return fmt.Sprintf("net_profit %s not positive", metrics.NetProfit.String())
	}
	return ""
}

func (m *Monitor) logAndNotifyTransition(from, to models.SignalStatus, reason string, metrics *models.PerformanceMetrics) {
	if m.Logger != nil {
		switch {
		case from == to:
			m.Logger.Debug("gate unchanged", zap.String("status", string(to)))
		case to == models.StatusActive:
			m.Logger.Info("signals activated",
				zap.String("from", string(from)),
				zap.String("reason", reason),
			)
		default:
			m.Logger.Warn("signals gated",
				zap.String("from", string(from)),
				zap.String("to", string(to)),
				zap.String("reason", reason),
			)
		}
	}

	if from == to {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if m.Notifier != nil {
		if err := m.Notifier.StatusChanged(ctx, from, to, reason, metrics); err != nil && m.Logger != nil {
			m.Logger.Warn("status change notification failed", zap.Error(err))
		}
	}
	if m.Archive != nil {
		if err := m.Archive.StatusChanged(ctx, from, to, reason); err != nil && m.Logger != nil {
			m.Logger.Warn("status change mirror failed", zap.Error(err))
		}
	}
}

func formatPF(pf float64) string {
	if math.IsInf(pf, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", pf)
}
