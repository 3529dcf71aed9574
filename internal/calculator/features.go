package calculator

import (
	"time"

	"goldsignal/internal/models"
)

// VectorSize is the width of the classifier input: nine indicators plus
// three session flags, in the order the model was trained with.
const VectorSize = 12

// Features holds per-bar indicator series computed once over a bar window,
// so replaying a backtest does not recompute indicators per position.
type Features struct {
	RSI        []float64
	MACD       []float64
	MACDSignal []float64
	MACDHist   []float64
	EMA20      []float64
	EMA200     []float64
	ATR        []float64
	ADX        []float64
	BBWidth    []float64

	bars []models.Bar
}

// Compute builds every indicator series for the bar window.
func Compute(bars []models.Bar) *Features {
	closes := Closes(bars)
	macd, signal, hist := MACDSeries(closes)
	return &Features{
		RSI:        RSISeries(closes, 14),
		MACD:       macd,
		MACDSignal: signal,
		MACDHist:   hist,
		EMA20:      EMASeries(closes, 20),
		EMA200:     EMASeries(closes, 200),
		ATR:        ATRSeries(bars, 14),
		ADX:        ADXSeries(bars, 14),
		BBWidth:    BBWidthSeries(closes, 20, 2),
		bars:       bars,
	}
}

func (f *Features) Len() int {
	return len(f.bars)
}

// Close returns the close price of bar i.
func (f *Features) Close(i int) float64 {
	return f.bars[i].Close
}

// Time returns the timestamp of bar i.
func (f *Features) Time(i int) time.Time {
	return f.bars[i].Time
}

// Vector assembles the classifier input for position i. Session flags come
// from the bar's GMT hour: London 08-16, New York 13-21, overlap 13-16.
func (f *Features) Vector(i int) []float32 {
	h := f.bars[i].Time.UTC().Hour()
	return []float32{
		float32(f.RSI[i]),
		float32(f.MACD[i]),
		float32(f.MACDSignal[i]),
		float32(f.MACDHist[i]),
		float32(f.EMA20[i]),
		float32(f.EMA200[i]),
		float32(f.ATR[i]),
		float32(f.ADX[i]),
		float32(f.BBWidth[i]),
		flag(h >= 8 && h < 16),
		flag(h >= 13 && h < 21),
		flag(h >= 13 && h < 16),
	}
}

func flag(b bool) float32 {
	if b {
		return 1
	}
	return 0
}
