package backtest

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"goldsignal/internal/calculator"
	"goldsignal/internal/classifier"
	"goldsignal/internal/config"
	"goldsignal/internal/models"
	"goldsignal/internal/performance"
)

// BarSource supplies the hourly history the replay runs over.
type BarSource interface {
	HourlyBars(ctx context.Context, days int) ([]models.Bar, error)
}

// Validator replays the live classifier over recent hourly history and
// renders the pass/fail verdict the performance monitor consumes after a
// retrain. Windows are tried smallest first; the first one that produces
// enough synthetic trades decides.
type Validator struct {
	Bars       BarSource
	Classifier classifier.Classifier
	Config     config.BacktestConfig

	// Confidence is the live emission threshold, shared with the generator.
	Confidence float64
	// Thresholds are the pass thresholds, shared with live gating.
	Thresholds config.PerformanceConfig

	Logger *zap.Logger
}

// ValidateOnRecentHistory simulates trading the classifier's calls against
// what the market actually did next. Rows become synthetic trades when a
// directional class clears the confidence threshold and enough forward bars
// exist to score it; a forward move in the called direction is a win,
// anything else a loss.
func (v *Validator) ValidateOnRecentHistory(ctx context.Context) (bool, *models.PerformanceMetrics, error) {
	if v.Classifier == nil {
		return false, nil, fmt.Errorf("backtest: no classifier")
	}
	days := 0
	for _, d := range v.Config.WindowsDays {
		if d > days {
			days = d
		}
	}
	if days == 0 {
		return false, nil, fmt.Errorf("backtest: no windows configured")
	}

	bars, err := v.Bars.HourlyBars(ctx, days)
	if err != nil {
		return false, nil, fmt.Errorf("fetch history: %w", err)
	}
	feat := calculator.Compute(bars)

	for _, windowDays := range v.Config.WindowsDays {
		windowBars := windowDays * 24
		if windowBars > len(bars) {
			continue
		}
		trades, err := v.replay(feat, len(bars)-windowBars)
		if err != nil {
			return false, nil, err
		}
		if len(trades) < v.Config.MinTrades {
			v.Logger.Info("validation window too thin",
				zap.Int("window_days", windowDays),
				zap.Int("trades", len(trades)),
				zap.Int("min_trades", v.Config.MinTrades),
			)
			continue
		}
		passed, overall := v.decide(windowDays, trades)
		return passed, overall, nil
	}

	v.Logger.Warn("insufficient synthetic trades in every window, suspending")
	return false, nil, nil
}

func (v *Validator) replay(feat *calculator.Features, start int) ([]models.PerformanceRecord, error) {
	n := feat.Len()
	var trades []models.PerformanceRecord
	for i := start; i < n; i++ {
		class, conf, err := v.Classifier.Predict(feat.Vector(i))
		if err != nil {
			return nil, fmt.Errorf("replay inference: %w", err)
		}
		if class == models.ClassNeutral || conf < v.Confidence {
			continue
		}
		if i+v.Config.HorizonBars >= n {
			continue
		}

		entry := feat.Close(i)
		future := feat.Close(i + v.Config.HorizonBars)
		pl := future - entry
		if class == models.ClassSell {
			pl = entry - future
		}
		result := models.ResultLoss
		if pl > 0 {
			result = models.ResultWin
		}
		trades = append(trades, models.PerformanceRecord{
			Timestamp:  feat.Time(i),
			Class:      class,
			Confidence: conf,
			EntryPrice: decimal.NewFromFloat(entry),
			Result:     result,
			ProfitLoss: decimal.NewFromFloat(pl),
		})
	}
	return trades, nil
}

// decide weighs the whole window against its most recent third, with a
// small tolerance on the recent cohort so one bad week cannot sink an
// otherwise healthy model.
func (v *Validator) decide(windowDays int, trades []models.PerformanceRecord) (bool, *models.PerformanceMetrics) {
	overall := performance.ComputeMetrics(trades)

	recentCount := len(trades) / 3
	if recentCount < 5 {
		recentCount = 5
	}
	recent := performance.ComputeMetrics(trades[len(trades)-recentCount:])

	overallOK := overall.WinRate >= v.Thresholds.MinWinRate &&
		overall.ProfitFactor >= v.Thresholds.MinProfitFactor
	recentOK := recent.WinRate >= v.Thresholds.MinWinRate-0.05 &&
		recent.ProfitFactor >= v.Thresholds.MinProfitFactor-0.2
	passed := (overallOK && recentOK) || recent.WinRate >= v.Thresholds.MinWinRate

	v.Logger.Info("historical validation verdict",
		zap.Int("window_days", windowDays),
		zap.Int("trades", len(trades)),
		zap.Float64("overall_win_rate", overall.WinRate),
		zap.Float64("overall_profit_factor", overall.ProfitFactor),
		zap.Int("recent_trades", recentCount),
		zap.Float64("recent_win_rate", recent.WinRate),
		zap.Bool("passed", passed),
	)
	return passed, overall
}
