package generator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"goldsignal/internal/calculator"
	"goldsignal/internal/classifier"
	"goldsignal/internal/config"
	"goldsignal/internal/models"
)

// BarSource supplies the hourly candles the feature pipeline consumes.
type BarSource interface {
	HourlyBars(ctx context.Context, days int) ([]models.Bar, error)
}

// Generator turns recent market history into at most one signal per clock
// hour. When no classifier is available it degrades to the conservative
// rules fallback instead of going dark.
type Generator struct {
	Bars       BarSource
	Classifier classifier.Classifier
	Fallback   *Rules
	Config     config.SignalConfig
	Logger     *zap.Logger

	mu          sync.Mutex
	lastEmitted time.Time
}

// Generate classifies the latest bar. A directional class below the
// confidence threshold is returned as NEUTRAL with the confidence kept for
// display; callers never see a direction the threshold rejected.
func (g *Generator) Generate(ctx context.Context) (models.Signal, error) {
	bars, err := g.Bars.HourlyBars(ctx, g.Config.BarsDays)
	if err != nil {
		return models.Signal{}, fmt.Errorf("fetch bars: %w", err)
	}
	if len(bars) == 0 {
		return models.Signal{}, fmt.Errorf("generate: no bars in window")
	}

	if g.Classifier == nil {
		return g.fallbackSignal(bars)
	}

	feat := calculator.Compute(bars)
	last := feat.Len() - 1
	class, conf, err := g.Classifier.Predict(feat.Vector(last))
	if err != nil {
		return models.Signal{}, fmt.Errorf("classify: %w", err)
	}

	sig := models.Signal{
		Class:      models.ClassNeutral,
		Confidence: conf,
		EntryPrice: decimal.NewFromFloat(bars[last].Close),
		Timestamp:  bars[last].Time,
	}
	if conf < g.Config.ConfidenceThreshold {
		g.Logger.Debug("confidence below threshold",
			zap.String("class", string(class)),
			zap.Float64("confidence", conf),
		)
		return sig, nil
	}

	sig.Class = class
	slMult, tpMult := levelsForATR(feat.ATR[last])
	applyLevels(&sig, feat.ATR[last], slMult, tpMult)
	return sig, nil
}

func (g *Generator) fallbackSignal(bars []models.Bar) (models.Signal, error) {
	if g.Fallback == nil {
		return models.Signal{}, fmt.Errorf("generate: no classifier and no fallback configured")
	}
	last := len(bars) - 1
	sig := models.Signal{
		Class:      models.ClassNeutral,
		Confidence: 0.5,
		EntryPrice: decimal.NewFromFloat(bars[last].Close),
		Timestamp:  bars[last].Time,
	}
	class, conf, atr := g.Fallback.Evaluate(bars)
	sig.Confidence = conf
	if class == models.ClassNeutral {
		return sig, nil
	}
	sig.Class = class
	// Fixed tight stops in fallback mode regardless of the volatility regime.
	applyLevels(&sig, atr, 1.5, 3.0)
	return sig, nil
}

// EmittedThisHour reports whether a tradeable signal already went out in the
// clock hour containing t.
func (g *Generator) EmittedThisHour(t time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.lastEmitted.IsZero() && g.lastEmitted.Equal(t.UTC().Truncate(time.Hour))
}

// MarkEmitted records that a tradeable signal went out at t.
func (g *Generator) MarkEmitted(t time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastEmitted = t.UTC().Truncate(time.Hour)
}

// levelsForATR picks stop and take multipliers by volatility regime.
func levelsForATR(atr float64) (slMult, tpMult float64) {
	switch {
	case atr > 20:
		return 2.5, 5.0
	case atr > 15:
		return 2.0, 4.0
	default:
		return 1.5, 3.0
	}
}

func applyLevels(sig *models.Signal, atr, slMult, tpMult float64) {
	slDist := decimal.NewFromFloat(slMult * atr)
	tpDist := decimal.NewFromFloat(tpMult * atr)
	var sl, tp decimal.Decimal
	switch sig.Class {
	case models.ClassBuy:
		sl = sig.EntryPrice.Sub(slDist)
		tp = sig.EntryPrice.Add(tpDist)
	case models.ClassSell:
		sl = sig.EntryPrice.Add(slDist)
		tp = sig.EntryPrice.Sub(tpDist)
	default:
		return
	}
	sig.StopLoss = &sl
	sig.TakeProfit = &tp
}

// SessionName labels the trading session for an instant in GMT.
func SessionName(t time.Time) string {
	switch h := t.UTC().Hour(); {
	case h >= 13 && h < 16:
		return "London/NY Overlap"
	case h >= 8 && h < 16:
		return "London Session"
	case h >= 13 && h < 21:
		return "New York Session"
	default:
		return "Asian Session"
	}
}
