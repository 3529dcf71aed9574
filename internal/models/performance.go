package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SignalStatus is the emission gate state.
type SignalStatus string

const (
	StatusActive    SignalStatus = "ACTIVE"
	StatusSuspended SignalStatus = "SUSPENDED"
	StatusTesting   SignalStatus = "TESTING"
)

func (s SignalStatus) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusTesting:
		return true
	}
	return false
}

// PerformanceRecord is the flattened projection of one closed trade,
// appended to the history document when the trade closes.
type PerformanceRecord struct {
	Timestamp    time.Time       `json:"timestamp"`
	Class        SignalClass     `json:"class"`
	Confidence   float64         `json:"confidence"`
	EntryPrice   decimal.Decimal `json:"entry_price"`
	Result       TradeResult     `json:"result"`
	ProfitLoss   decimal.Decimal `json:"profit_loss"`
	ModelVersion string          `json:"model_version"`
}

// ModelVersionEntry records one model swap and why it happened.
type ModelVersionEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Reason    string    `json:"reason"`
}

// PerformanceMetrics are derived from a record set; AvgLoss is stored as a
// magnitude. ProfitFactor is +Inf when there are wins and no losses.
type PerformanceMetrics struct {
	TotalTrades  int             `json:"total_trades"`
	WinRate      float64         `json:"win_rate"`
	ProfitFactor float64         `json:"profit_factor"`
	NetProfit    decimal.Decimal `json:"net_profit"`
	AvgWin       decimal.Decimal `json:"avg_win"`
	AvgLoss      decimal.Decimal `json:"avg_loss"`
}

// encoding/json rejects infinities, so an infinite profit factor is encoded
// as the string "inf" and accepted back in either form.
func (m PerformanceMetrics) MarshalJSON() ([]byte, error) {
	type plain PerformanceMetrics
	if math.IsInf(m.ProfitFactor, 1) {
		return json.Marshal(struct {
			plain
			ProfitFactor string `json:"profit_factor"`
		}{plain(m), "inf"})
	}
	return json.Marshal(plain(m))
}

func (m *PerformanceMetrics) UnmarshalJSON(data []byte) error {
	type plain PerformanceMetrics
	aux := struct {
		*plain
		ProfitFactor json.RawMessage `json:"profit_factor"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.ProfitFactor) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(aux.ProfitFactor, &s); err == nil {
		switch strings.ToLower(strings.TrimPrefix(s, "+")) {
		case "inf", "infinity":
			m.ProfitFactor = math.Inf(1)
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("performance metrics: bad profit_factor %q", s)
		}
		m.ProfitFactor = f
		return nil
	}
	var f float64
	if err := json.Unmarshal(aux.ProfitFactor, &f); err != nil {
		return fmt.Errorf("performance metrics: bad profit_factor: %w", err)
	}
	m.ProfitFactor = f
	return nil
}

// PerformanceHistory is the whole persisted performance document. It is
// loaded fresh on every read and written whole on every mutation.
type PerformanceHistory struct {
	Trades             []PerformanceRecord `json:"trades"`
	ModelVersions      []ModelVersionEntry `json:"model_versions"`
	SignalStatus       SignalStatus        `json:"signal_status"`
	LastValidation     *time.Time          `json:"last_validation,omitempty"`
	PerformanceMetrics *PerformanceMetrics `json:"performance_metrics,omitempty"`
}

// NewPerformanceHistory is the zero state for a fresh system: no records
// and an open gate.
func NewPerformanceHistory() *PerformanceHistory {
	return &PerformanceHistory{
		Trades:        []PerformanceRecord{},
		ModelVersions: []ModelVersionEntry{},
		SignalStatus:  StatusActive,
	}
}

// Normalize repairs fields that may be absent in an older or hand-edited
// document so callers never see nil slices or an empty status.
func (h *PerformanceHistory) Normalize() {
	if h.Trades == nil {
		h.Trades = []PerformanceRecord{}
	}
	if h.ModelVersions == nil {
		h.ModelVersions = []ModelVersionEntry{}
	}
	if !h.SignalStatus.Valid() {
		h.SignalStatus = StatusActive
	}
}
