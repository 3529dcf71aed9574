package calculator

import (
	"math"

	"goldsignal/internal/models"
)

// Closes extracts the close series from bars.
func Closes(bars []models.Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// SMA computes the simple moving average of the last period values.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period)
}

// EMASeries computes the exponential moving average per position, seeded
// with the simple average of the first period values. Positions before the
// seed, and every position when the series is shorter than period, carry
// the raw value itself.
func EMASeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	if period <= 0 || len(values) < period {
		return out
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	out[period-1] = sum / float64(period)

	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// RSISeries computes the Wilder-smoothed RSI per position. Positions
// without enough history carry the neutral 50.
func RSISeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = 50
	}
	if period <= 0 || len(values) < period+1 {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiFrom(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFrom(avgGain, avgLoss)
	}
	return out
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACDSeries computes the 12/26 MACD line, its 9-period signal line and the
// histogram. All three are zero until the slow EMA is warm.
func MACDSeries(closes []float64) (macd, signal, hist []float64) {
	n := len(closes)
	macd = make([]float64, n)
	signal = make([]float64, n)
	hist = make([]float64, n)
	const fast, slow, smooth = 12, 26, 9
	if n < slow {
		return
	}

	fastEMA := EMASeries(closes, fast)
	slowEMA := EMASeries(closes, slow)
	line := make([]float64, 0, n-slow+1)
	for i := slow - 1; i < n; i++ {
		line = append(line, fastEMA[i]-slowEMA[i])
	}
	sig := EMASeries(line, smooth)
	for i := slow - 1; i < n; i++ {
		macd[i] = line[i-slow+1]
		signal[i] = sig[i-slow+1]
		hist[i] = macd[i] - signal[i]
	}
	return
}

// ATRSeries computes the Wilder-smoothed average true range per position.
// Warmup positions carry the expanding mean of the true range so far.
func ATRSeries(bars []models.Bar, period int) []float64 {
	n := len(bars)
	out := make([]float64, n)
	if n == 0 || period <= 0 {
		return out
	}

	tr := make([]float64, n)
	tr[0] = bars[0].High - bars[0].Low
	for i := 1; i < n; i++ {
		hl := bars[i].High - bars[i].Low
		hc := math.Abs(bars[i].High - bars[i-1].Close)
		lc := math.Abs(bars[i].Low - bars[i-1].Close)
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	sum := 0.0
	for i := 0; i < n; i++ {
		if i < period {
			sum += tr[i]
			out[i] = sum / float64(i+1)
			continue
		}
		out[i] = (out[i-1]*float64(period-1) + tr[i]) / float64(period)
	}
	return out
}

// ADXSeries computes the average directional index per position. Positions
// without enough history carry the weak-trend default 15.
func ADXSeries(bars []models.Bar, period int) []float64 {
	n := len(bars)
	out := make([]float64, n)
	for i := range out {
		out[i] = 15
	}
	if period <= 0 || n < 2*period+1 {
		return out
	}

	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		hl := bars[i].High - bars[i].Low
		hc := math.Abs(bars[i].High - bars[i-1].Close)
		lc := math.Abs(bars[i].Low - bars[i-1].Close)
		tr[i] = math.Max(hl, math.Max(hc, lc))

		up := bars[i].High - bars[i-1].High
		down := bars[i-1].Low - bars[i].Low
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	// Wilder running totals seeded over the first period, then DX, then the
	// smoothed DX that is the ADX itself.
	var smTR, smPlus, smMinus float64
	for i := 1; i <= period; i++ {
		smTR += tr[i]
		smPlus += plusDM[i]
		smMinus += minusDM[i]
	}

	dx := make([]float64, n)
	dx[period] = dxFrom(smTR, smPlus, smMinus)
	for i := period + 1; i < n; i++ {
		smTR = smTR - smTR/float64(period) + tr[i]
		smPlus = smPlus - smPlus/float64(period) + plusDM[i]
		smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		dx[i] = dxFrom(smTR, smPlus, smMinus)
	}

	adxSum := 0.0
	for i := period; i < 2*period; i++ {
		adxSum += dx[i]
	}
	out[2*period-1] = adxSum / float64(period)
	for i := 2 * period; i < n; i++ {
		out[i] = (out[i-1]*float64(period-1) + dx[i]) / float64(period)
	}
	return out
}

func dxFrom(smTR, smPlus, smMinus float64) float64 {
	if smTR == 0 {
		return 0
	}
	plusDI := 100 * smPlus / smTR
	minusDI := 100 * smMinus / smTR
	if plusDI+minusDI == 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
}

// BBWidthSeries computes the Bollinger band width, upper minus lower over
// the middle band. Positions without a full window carry 0.1.
func BBWidthSeries(closes []float64, period int, mult float64) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = 0.1
	}
	if period <= 0 || len(closes) < period {
		return out
	}

	for i := period - 1; i < len(closes); i++ {
		window := closes[i-period+1 : i+1]
		mean := 0.0
		for _, v := range window {
			mean += v
		}
		mean /= float64(period)
		variance := 0.0
		for _, v := range window {
			d := v - mean
			variance += d * d
		}
		sigma := math.Sqrt(variance / float64(period))
		if mean == 0 {
			out[i] = 0
			continue
		}
		out[i] = 2 * mult * sigma / mean
	}
	return out
}
