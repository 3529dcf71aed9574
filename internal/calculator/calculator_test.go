package calculator

import (
	"math"
	"testing"
	"time"

	"goldsignal/internal/models"
)

func constBars(n int, price float64) []models.Bar {
	bars := make([]models.Bar, n)
	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = models.Bar{
			Time:  base.Add(time.Duration(i) * time.Hour),
			Open:  price,
			High:  price,
			Low:   price,
			Close: price,
		}
	}
	return bars
}

func TestSMA(t *testing.T) {
	got := SMA([]float64{1, 2, 3, 4}, 2)
	if got != 3.5 {
		t.Fatalf("sma=%v want 3.5", got)
	}
	if SMA([]float64{1}, 2) != 0 {
		t.Fatalf("short series must yield 0")
	}
}

func TestEMASeries_ConstantSeries(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = 7
	}
	out := EMASeries(values, 20)
	for i, v := range out {
		if v != 7 {
			t.Fatalf("ema[%d]=%v want 7", i, v)
		}
	}
}

func TestEMASeries_ShortSeriesIsIdentity(t *testing.T) {
	values := []float64{1, 2, 3}
	out := EMASeries(values, 20)
	for i := range values {
		if out[i] != values[i] {
			t.Fatalf("ema[%d]=%v want %v", i, out[i], values[i])
		}
	}
}

func TestRSISeries_AllGainsIsHundred(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = 100 + float64(i)
	}
	out := RSISeries(values, 14)
	for i := 0; i < 14; i++ {
		if out[i] != 50 {
			t.Fatalf("rsi[%d]=%v want neutral 50 during warmup", i, out[i])
		}
	}
	for i := 14; i < len(out); i++ {
		if out[i] != 100 {
			t.Fatalf("rsi[%d]=%v want 100 with no losses", i, out[i])
		}
	}
}

func TestRSISeries_BalancedMovesNearFifty(t *testing.T) {
	// Alternating +1/-1 moves: gains equal losses, RSI hovers at 50.
	values := make([]float64, 40)
	values[0] = 100
	for i := 1; i < len(values); i++ {
		if i%2 == 1 {
			values[i] = values[i-1] + 1
		} else {
			values[i] = values[i-1] - 1
		}
	}
	out := RSISeries(values, 14)
	last := out[len(out)-1]
	if math.Abs(last-50) > 5 {
		t.Fatalf("rsi=%v want near 50", last)
	}
}

func TestMACDSeries_ConstantSeriesIsZero(t *testing.T) {
	values := make([]float64, 60)
	for i := range values {
		values[i] = 2000
	}
	macd, signal, hist := MACDSeries(values)
	for i := range values {
		if macd[i] != 0 || signal[i] != 0 || hist[i] != 0 {
			t.Fatalf("macd[%d]=(%v,%v,%v) want zeros", i, macd[i], signal[i], hist[i])
		}
	}
}

func TestMACDSeries_ShortSeriesIsZero(t *testing.T) {
	macd, signal, hist := MACDSeries([]float64{1, 2, 3})
	if len(macd) != 3 || macd[2] != 0 || signal[2] != 0 || hist[2] != 0 {
		t.Fatalf("short series must yield zeros")
	}
}

func TestATRSeries_ConstantRange(t *testing.T) {
	bars := constBars(30, 2000)
	for i := range bars {
		bars[i].High = 2001
		bars[i].Low = 1999
		bars[i].Close = 2000
	}
	out := ATRSeries(bars, 14)
	for i, v := range out {
		if math.Abs(v-2) > 1e-9 {
			t.Fatalf("atr[%d]=%v want 2", i, v)
		}
	}
}

func TestADXSeries_SteadyTrendSaturates(t *testing.T) {
	bars := make([]models.Bar, 40)
	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = models.Bar{
			Time:  base.Add(time.Duration(i) * time.Hour),
			High:  10 + float64(i),
			Low:   9 + float64(i),
			Close: 9.5 + float64(i),
		}
	}
	out := ADXSeries(bars, 14)
	if out[0] != 15 || out[26] != 15 {
		t.Fatalf("warmup adx=%v,%v want 15", out[0], out[26])
	}
	if math.Abs(out[len(out)-1]-100) > 1e-9 {
		t.Fatalf("adx=%v want 100 for a one-way trend", out[len(out)-1])
	}
}

func TestBBWidthSeries(t *testing.T) {
	values := make([]float64, 25)
	for i := range values {
		values[i] = 2000
	}
	out := BBWidthSeries(values, 20, 2)
	if out[10] != 0.1 {
		t.Fatalf("warmup width=%v want 0.1", out[10])
	}
	if out[24] != 0 {
		t.Fatalf("width=%v want 0 for a flat series", out[24])
	}
}

func TestFeaturesVector(t *testing.T) {
	bars := constBars(250, 2000)
	f := Compute(bars)
	if f.Len() != 250 {
		t.Fatalf("len=%d want 250", f.Len())
	}

	i := f.Len() - 1
	vec := f.Vector(i)
	if len(vec) != VectorSize {
		t.Fatalf("vector size=%d want %d", len(vec), VectorSize)
	}
	if vec[4] != 2000 || vec[5] != 2000 {
		t.Fatalf("ema features=(%v,%v) want 2000", vec[4], vec[5])
	}

	// Session flags follow the bar's GMT hour.
	hour := bars[i].Time.UTC().Hour()
	wantLondon := flag(hour >= 8 && hour < 16)
	if vec[9] != wantLondon {
		t.Fatalf("london flag=%v want %v (hour %d)", vec[9], wantLondon, hour)
	}
}

func TestFeaturesSessionFlags(t *testing.T) {
	mk := func(hour int) models.Bar {
		return models.Bar{Time: time.Date(2026, 1, 5, hour, 0, 0, 0, time.UTC), Close: 2000, High: 2000, Low: 2000}
	}
	f := Compute([]models.Bar{mk(9), mk(14), mk(22)})

	v := f.Vector(0) // 09:00 GMT: London only
	if v[9] != 1 || v[10] != 0 || v[11] != 0 {
		t.Fatalf("09:00 flags=%v,%v,%v want 1,0,0", v[9], v[10], v[11])
	}
	v = f.Vector(1) // 14:00 GMT: London, New York and the overlap
	if v[9] != 1 || v[10] != 1 || v[11] != 1 {
		t.Fatalf("14:00 flags=%v,%v,%v want 1,1,1", v[9], v[10], v[11])
	}
	v = f.Vector(2) // 22:00 GMT: Asian session, no flags
	if v[9] != 0 || v[10] != 0 || v[11] != 0 {
		t.Fatalf("22:00 flags=%v,%v,%v want 0,0,0", v[9], v[10], v[11])
	}
}
