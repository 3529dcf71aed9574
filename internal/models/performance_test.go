package models

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestPerformanceMetrics_InfProfitFactorRoundTrip(t *testing.T) {
	m := PerformanceMetrics{
		TotalTrades:  3,
		WinRate:      1,
		ProfitFactor: math.Inf(1),
		NetProfit:    decimal.RequireFromString("30"),
		AvgWin:       decimal.RequireFromString("10"),
		AvgLoss:      decimal.RequireFromString("0"),
	}
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"profit_factor":"inf"`) {
		t.Fatalf("encoded=%s want profit_factor \"inf\"", b)
	}

	var got PerformanceMetrics
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !math.IsInf(got.ProfitFactor, 1) {
		t.Fatalf("profit_factor=%v want +Inf", got.ProfitFactor)
	}
	if got.TotalTrades != 3 || got.WinRate != 1 {
		t.Fatalf("got=%+v", got)
	}
}

func TestPerformanceMetrics_FiniteProfitFactor(t *testing.T) {
	m := PerformanceMetrics{TotalTrades: 2, WinRate: 0.5, ProfitFactor: 1.75}
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got PerformanceMetrics
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ProfitFactor != 1.75 {
		t.Fatalf("profit_factor=%v want 1.75", got.ProfitFactor)
	}
}

func TestPerformanceMetrics_AcceptsQuotedNumber(t *testing.T) {
	var got PerformanceMetrics
	if err := json.Unmarshal([]byte(`{"profit_factor":"2.5"}`), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ProfitFactor != 2.5 {
		t.Fatalf("profit_factor=%v want 2.5", got.ProfitFactor)
	}
	if err := json.Unmarshal([]byte(`{"profit_factor":"Infinity"}`), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !math.IsInf(got.ProfitFactor, 1) {
		t.Fatalf("profit_factor=%v want +Inf", got.ProfitFactor)
	}
}

func TestSignalValidate(t *testing.T) {
	sig := Signal{Class: "SIDEWAYS", Confidence: 0.5}
	if err := sig.Validate(); err == nil {
		t.Fatalf("expected unknown class error")
	}
	sig = Signal{Class: ClassBuy, Confidence: 1.2, EntryPrice: decimal.NewFromInt(100)}
	if err := sig.Validate(); err == nil {
		t.Fatalf("expected confidence range error")
	}
	sig = Signal{Class: ClassBuy, Confidence: 0.9}
	if err := sig.Validate(); err == nil {
		t.Fatalf("expected entry price error")
	}
	sig = Signal{Class: ClassNeutral, Confidence: 0.3}
	if err := sig.Validate(); err != nil {
		t.Fatalf("neutral without entry price: %v", err)
	}
}

func TestResultForPL(t *testing.T) {
	if r := ResultForPL(decimal.NewFromInt(3)); r != ResultWin {
		t.Fatalf("r=%s want WIN", r)
	}
	if r := ResultForPL(decimal.NewFromInt(-3)); r != ResultLoss {
		t.Fatalf("r=%s want LOSS", r)
	}
	if r := ResultForPL(decimal.Zero); r != ResultBreakeven {
		t.Fatalf("r=%s want BREAKEVEN", r)
	}
}

func TestPerformanceHistoryNormalize(t *testing.T) {
	h := &PerformanceHistory{SignalStatus: "???"}
	h.Normalize()
	if h.SignalStatus != StatusActive {
		t.Fatalf("status=%s want ACTIVE", h.SignalStatus)
	}
	if h.Trades == nil || h.ModelVersions == nil {
		t.Fatalf("collections still nil")
	}
}
