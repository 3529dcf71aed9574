package generator

import (
	"sync"

	"go.uber.org/zap"

	"goldsignal/internal/calculator"
	"goldsignal/internal/models"
)

const (
	// fallbackMinBars is the shortest history the rules evaluate against.
	fallbackMinBars = 50
	// fallbackConfidence caps rule-based calls below the model threshold.
	fallbackConfidence = 0.65
)

// Rules is the conservative technical fallback used when the model artifact
// cannot be loaded. A direction fires only when every trend, momentum and
// price-action condition holds at once.
type Rules struct {
	Logger *zap.Logger

	warn sync.Once
}

// Evaluate classifies the latest bar. The latest ATR is returned alongside
// so the caller can place stops without recomputing it.
func (r *Rules) Evaluate(bars []models.Bar) (models.SignalClass, float64, float64) {
	r.warn.Do(func() {
		if r.Logger != nil {
			r.Logger.Warn("classifier unavailable, generating rule-based fallback signals")
		}
	})

	if len(bars) < fallbackMinBars {
		return models.ClassNeutral, 0.5, 0
	}

	closes := calculator.Closes(bars)
	rsi := calculator.RSISeries(closes, 14)
	ema20 := calculator.EMASeries(closes, 20)
	ema50 := calculator.EMASeries(closes, 50)
	atr := calculator.ATRSeries(bars, 14)

	last := len(bars) - 1
	latest, prev := closes[last], closes[last-1]

	buy := latest > ema20[last] &&
		ema20[last] > ema50[last] &&
		rsi[last] > 55 && rsi[last] < 65 &&
		latest > prev*1.001
	sell := latest < ema20[last] &&
		ema20[last] < ema50[last] &&
		rsi[last] < 45 && rsi[last] > 35 &&
		latest < prev*0.999

	switch {
	case buy:
		return models.ClassBuy, fallbackConfidence, atr[last]
	case sell:
		return models.ClassSell, fallbackConfidence, atr[last]
	default:
		return models.ClassNeutral, 0.5, atr[last]
	}
}
