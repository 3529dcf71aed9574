package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TradeStatus string

const (
	TradeActive TradeStatus = "ACTIVE"
	TradeClosed TradeStatus = "CLOSED"
)

type TradeResult string

const (
	ResultWin       TradeResult = "WIN"
	ResultLoss      TradeResult = "LOSS"
	ResultBreakeven TradeResult = "BREAKEVEN"
)

type ExitReason string

const (
	ExitThresholdHit ExitReason = "THRESHOLD_HIT"
	ExitTimeLimit    ExitReason = "TIME_LIMIT"
)

// Trade is one tracked position opened from a gated signal. Closed trades
// are never deleted; the whole list is rewritten on every mutation.
type Trade struct {
	ID           string           `json:"id"`
	Signal       Signal           `json:"signal"`
	ModelVersion string           `json:"model_version"`
	Status       TradeStatus      `json:"status"`
	EntryTime    time.Time        `json:"entry_time"`
	ExitTime     *time.Time       `json:"exit_time,omitempty"`
	ExitPrice    *decimal.Decimal `json:"exit_price,omitempty"`
	Result       TradeResult      `json:"result,omitempty"`
	ProfitLoss   *decimal.Decimal `json:"profit_loss,omitempty"`
	ExitReason   ExitReason       `json:"exit_reason,omitempty"`
}

func (t *Trade) Active() bool {
	return t.Status == TradeActive
}

// Age is the wall-clock time the trade has been open.
func (t *Trade) Age(now time.Time) time.Duration {
	return now.Sub(t.EntryTime)
}

// ResultForPL maps a signed profit/loss to WIN/LOSS/BREAKEVEN.
func ResultForPL(pl decimal.Decimal) TradeResult {
	switch {
	case pl.GreaterThan(decimal.Zero):
		return ResultWin
	case pl.LessThan(decimal.Zero):
		return ResultLoss
	default:
		return ResultBreakeven
	}
}
