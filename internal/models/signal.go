package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SignalClass is the direction a classifier prediction recommends.
type SignalClass string

const (
	ClassNeutral SignalClass = "NEUTRAL"
	ClassBuy     SignalClass = "BUY"
	ClassSell    SignalClass = "SELL"
)

func (c SignalClass) Valid() bool {
	switch c {
	case ClassNeutral, ClassBuy, ClassSell:
		return true
	}
	return false
}

// Signal is one classifier recommendation. Immutable once built; the
// tracker embeds it into the Trade it opens.
type Signal struct {
	Class      SignalClass      `json:"class"`
	Confidence float64          `json:"confidence"`
	EntryPrice decimal.Decimal  `json:"entry_price"`
	StopLoss   *decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit *decimal.Decimal `json:"take_profit,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

func (s Signal) Validate() error {
	if !s.Class.Valid() {
		return fmt.Errorf("signal: unknown class %q", string(s.Class))
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("signal: confidence %v out of [0,1]", s.Confidence)
	}
	if s.Class != ClassNeutral && s.EntryPrice.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("signal: non-positive entry price %s", s.EntryPrice.String())
	}
	return nil
}

// HasLevels reports whether both stop-loss and take-profit are set.
func (s Signal) HasLevels() bool {
	return s.StopLoss != nil && s.TakeProfit != nil
}
