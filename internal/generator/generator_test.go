package generator

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"goldsignal/internal/calculator"
	"goldsignal/internal/config"
	"goldsignal/internal/models"
)

type stubBars struct {
	bars []models.Bar
	err  error
	days int
}

func (s *stubBars) HourlyBars(_ context.Context, days int) ([]models.Bar, error) {
	s.days = days
	if s.err != nil {
		return nil, s.err
	}
	return s.bars, nil
}

type stubClassifier struct {
	class models.SignalClass
	conf  float64
	err   error
	got   []float32
}

func (s *stubClassifier) Predict(features []float32) (models.SignalClass, float64, error) {
	s.got = append([]float32(nil), features...)
	if s.err != nil {
		return models.ClassNeutral, 0, s.err
	}
	return s.class, s.conf, nil
}

func (s *stubClassifier) Close() {}

// constBars yields identical candles: close 2005, range 2000-2010, so ATR
// settles at exactly 10.
func constBars(n int) []models.Bar {
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, n)
	for i := range bars {
		bars[i] = models.Bar{
			Time:   base.Add(time.Duration(i) * time.Hour),
			Open:   2005,
			High:   2010,
			Low:    2000,
			Close:  2005,
			Volume: 1000,
		}
	}
	return bars
}

// alternatingBars applies first then second as the bar-over-bar close change,
// starting from start. An even n ends on a first step.
func alternatingBars(start, first, second float64, n int) []models.Bar {
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, n)
	price := start
	for i := range bars {
		if i > 0 {
			if i%2 == 1 {
				price += first
			} else {
				price += second
			}
		}
		bars[i] = models.Bar{
			Time:   base.Add(time.Duration(i) * time.Hour),
			Open:   price,
			High:   price + 1,
			Low:    price - 1,
			Close:  price,
			Volume: 1000,
		}
	}
	return bars
}

func newTestGenerator(bars BarSource, cls *stubClassifier) *Generator {
	g := &Generator{
		Bars:   bars,
		Config: config.SignalConfig{ConfidenceThreshold: 0.70, BarsDays: 30},
		Logger: zap.NewNop(),
	}
	if cls != nil {
		g.Classifier = cls
	}
	return g
}

func TestGenerateBuySignalWithLevels(t *testing.T) {
	src := &stubBars{bars: constBars(60)}
	g := newTestGenerator(src, &stubClassifier{class: models.ClassBuy, conf: 0.85})

	sig, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if src.days != 30 {
		t.Fatalf("days=%d want=30", src.days)
	}
	if sig.Class != models.ClassBuy {
		t.Fatalf("class=%v want=BUY", sig.Class)
	}
	if sig.Confidence != 0.85 {
		t.Fatalf("confidence=%v want=0.85", sig.Confidence)
	}
	if got := sig.EntryPrice.String(); got != "2005" {
		t.Fatalf("entry=%s want=2005", got)
	}
	// ATR 10 sits in the low-volatility band: 1.5x stop, 3x take.
	if sig.StopLoss == nil || sig.StopLoss.String() != "1990" {
		t.Fatalf("stop_loss=%v want=1990", sig.StopLoss)
	}
	if sig.TakeProfit == nil || sig.TakeProfit.String() != "2035" {
		t.Fatalf("take_profit=%v want=2035", sig.TakeProfit)
	}
	if !sig.Timestamp.Equal(constBars(60)[59].Time) {
		t.Fatalf("timestamp=%v want latest bar time", sig.Timestamp)
	}
}

func TestGenerateSellLevelsMirrored(t *testing.T) {
	g := newTestGenerator(&stubBars{bars: constBars(60)}, &stubClassifier{class: models.ClassSell, conf: 0.8})

	sig, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if sig.Class != models.ClassSell {
		t.Fatalf("class=%v want=SELL", sig.Class)
	}
	if sig.StopLoss == nil || sig.StopLoss.String() != "2020" {
		t.Fatalf("stop_loss=%v want=2020", sig.StopLoss)
	}
	if sig.TakeProfit == nil || sig.TakeProfit.String() != "1975" {
		t.Fatalf("take_profit=%v want=1975", sig.TakeProfit)
	}
}

func TestGenerateLowConfidenceSuppressesDirection(t *testing.T) {
	g := newTestGenerator(&stubBars{bars: constBars(60)}, &stubClassifier{class: models.ClassBuy, conf: 0.6})

	sig, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if sig.Class != models.ClassNeutral {
		t.Fatalf("class=%v want=NEUTRAL", sig.Class)
	}
	if sig.Confidence != 0.6 {
		t.Fatalf("confidence=%v want=0.6", sig.Confidence)
	}
	if sig.StopLoss != nil || sig.TakeProfit != nil {
		t.Fatalf("suppressed signal carries levels: sl=%v tp=%v", sig.StopLoss, sig.TakeProfit)
	}
}

func TestGenerateNeutralClassHasNoLevels(t *testing.T) {
	g := newTestGenerator(&stubBars{bars: constBars(60)}, &stubClassifier{class: models.ClassNeutral, conf: 0.9})

	sig, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if sig.Class != models.ClassNeutral {
		t.Fatalf("class=%v want=NEUTRAL", sig.Class)
	}
	if sig.Confidence != 0.9 {
		t.Fatalf("confidence=%v want=0.9", sig.Confidence)
	}
	if sig.HasLevels() {
		t.Fatalf("neutral signal has levels")
	}
}

func TestGeneratePassesFullFeatureVector(t *testing.T) {
	cls := &stubClassifier{class: models.ClassNeutral, conf: 0.5}
	g := newTestGenerator(&stubBars{bars: constBars(60)}, cls)

	if _, err := g.Generate(context.Background()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(cls.got) != calculator.VectorSize {
		t.Fatalf("vector size=%d want=%d", len(cls.got), calculator.VectorSize)
	}
}

func TestGenerateErrorsPropagate(t *testing.T) {
	errBoom := errors.New("boom")

	g := newTestGenerator(&stubBars{err: errBoom}, &stubClassifier{})
	if _, err := g.Generate(context.Background()); !errors.Is(err, errBoom) {
		t.Fatalf("bars error not propagated: %v", err)
	}

	g = newTestGenerator(&stubBars{bars: constBars(60)}, &stubClassifier{err: errBoom})
	if _, err := g.Generate(context.Background()); !errors.Is(err, errBoom) {
		t.Fatalf("classifier error not propagated: %v", err)
	}

	g = newTestGenerator(&stubBars{}, &stubClassifier{})
	if _, err := g.Generate(context.Background()); err == nil {
		t.Fatalf("empty window accepted")
	}
}

func TestEmittedThisHour(t *testing.T) {
	g := newTestGenerator(&stubBars{}, nil)

	at := time.Date(2026, 3, 2, 12, 5, 0, 0, time.UTC)
	if g.EmittedThisHour(at) {
		t.Fatalf("fresh generator reports an emission")
	}
	g.MarkEmitted(at)
	if !g.EmittedThisHour(time.Date(2026, 3, 2, 12, 59, 0, 0, time.UTC)) {
		t.Fatalf("same hour not deduplicated")
	}
	if g.EmittedThisHour(time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)) {
		t.Fatalf("next hour blocked")
	}
	// Same clock hour on a later day is a different hour.
	if g.EmittedThisHour(time.Date(2026, 3, 3, 12, 10, 0, 0, time.UTC)) {
		t.Fatalf("next day blocked by stale hour")
	}
}

func TestRulesBuyNeedsEveryCondition(t *testing.T) {
	r := &Rules{Logger: zap.NewNop()}

	class, conf, atr := r.Evaluate(alternatingBars(2000, 3, -2, 80))
	if class != models.ClassBuy {
		t.Fatalf("class=%v want=BUY", class)
	}
	if conf != 0.65 {
		t.Fatalf("conf=%v want=0.65", conf)
	}
	if atr <= 0 {
		t.Fatalf("atr=%v want>0", atr)
	}
}

func TestRulesSellMirrored(t *testing.T) {
	r := &Rules{Logger: zap.NewNop()}

	class, conf, _ := r.Evaluate(alternatingBars(2200, -3, 2, 80))
	if class != models.ClassSell {
		t.Fatalf("class=%v want=SELL", class)
	}
	if conf != 0.65 {
		t.Fatalf("conf=%v want=0.65", conf)
	}
}

func TestRulesNeutralCases(t *testing.T) {
	r := &Rules{Logger: zap.NewNop()}

	if class, conf, _ := r.Evaluate(constBars(10)); class != models.ClassNeutral || conf != 0.5 {
		t.Fatalf("short history: class=%v conf=%v want NEUTRAL 0.5", class, conf)
	}
	if class, _, _ := r.Evaluate(constBars(60)); class != models.ClassNeutral {
		t.Fatalf("flat market: class=%v want NEUTRAL", class)
	}
}

func TestGenerateFallbackPath(t *testing.T) {
	g := &Generator{
		Bars:     &stubBars{bars: alternatingBars(2000, 3, -2, 80)},
		Fallback: &Rules{Logger: zap.NewNop()},
		Config:   config.SignalConfig{ConfidenceThreshold: 0.70, BarsDays: 30},
		Logger:   zap.NewNop(),
	}

	sig, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if sig.Class != models.ClassBuy {
		t.Fatalf("class=%v want=BUY", sig.Class)
	}
	if sig.Confidence != 0.65 {
		t.Fatalf("confidence=%v want=0.65", sig.Confidence)
	}
	if !sig.HasLevels() {
		t.Fatalf("fallback signal has no levels")
	}
	if !sig.StopLoss.LessThan(sig.EntryPrice) || !sig.TakeProfit.GreaterThan(sig.EntryPrice) {
		t.Fatalf("levels not oriented: sl=%s entry=%s tp=%s",
			sig.StopLoss, sig.EntryPrice, sig.TakeProfit)
	}
}

func TestLevelsForATR(t *testing.T) {
	cases := []struct {
		atr            float64
		slMult, tpMult float64
	}{
		{25, 2.5, 5.0},
		{20, 2.0, 4.0},
		{18, 2.0, 4.0},
		{15, 1.5, 3.0},
		{10, 1.5, 3.0},
	}
	for _, c := range cases {
		sl, tp := levelsForATR(c.atr)
		if sl != c.slMult || tp != c.tpMult {
			t.Fatalf("levelsForATR(%v)=%v/%v want=%v/%v", c.atr, sl, tp, c.slMult, c.tpMult)
		}
	}
}

func TestSessionName(t *testing.T) {
	cases := []struct {
		hour int
		want string
	}{
		{7, "Asian Session"},
		{8, "London Session"},
		{12, "London Session"},
		{13, "London/NY Overlap"},
		{15, "London/NY Overlap"},
		{16, "New York Session"},
		{20, "New York Session"},
		{21, "Asian Session"},
		{23, "Asian Session"},
	}
	for _, c := range cases {
		at := time.Date(2026, 3, 2, c.hour, 30, 0, 0, time.UTC)
		if got := SessionName(at); got != c.want {
			t.Fatalf("SessionName(hour=%d)=%q want=%q", c.hour, got, c.want)
		}
	}
}
