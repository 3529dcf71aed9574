package tracker

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"goldsignal/internal/artifact"
	"goldsignal/internal/config"
	"goldsignal/internal/models"
	"goldsignal/internal/store"
)

// ErrNeutralSignal is returned by AddTrade for NEUTRAL signals, which never
// open a position.
var ErrNeutralSignal = errors.New("tracker: neutral signal opens no trade")

// ResultRecorder receives each closed trade's outcome. The tracker reports a
// close to the recorder before it persists the updated trade list, so a
// recording failure leaves the trade open for the next pass.
type ResultRecorder interface {
	RecordTradeResult(sig models.Signal, result models.TradeResult, profitLoss decimal.Decimal) error
}

// Tracker owns the active-trade collection. Closed trades stay in the list as
// history; the whole list is rewritten on every mutation.
type Tracker struct {
	Store    *store.Store
	Binder   *artifact.Binder
	Recorder ResultRecorder
	Config   config.TrackerConfig
	Logger   *zap.Logger

	// Now is overridable in tests; defaults to time.Now.
	Now func() time.Time
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// AddTrade opens a trade for a gated BUY/SELL signal, stamped with the model
// version live at creation time.
func (t *Tracker) AddTrade(sig models.Signal) (models.Trade, error) {
	if err := sig.Validate(); err != nil {
		return models.Trade{}, err
	}
	if sig.Class == models.ClassNeutral {
		return models.Trade{}, ErrNeutralSignal
	}

	now := t.now().UTC()
	tr := models.Trade{
		ID:           "trade_" + now.Format("20060102_150405"),
		Signal:       sig,
		ModelVersion: t.Binder.Current(),
		Status:       models.TradeActive,
		EntryTime:    now,
	}
	if !sig.HasLevels() {
		t.Logger.Warn("trade opened without stop/take levels, only the time limit can close it",
			zap.String("trade_id", tr.ID))
	}

	err := t.Store.UpdateTrades(func(trades *[]models.Trade) error {
		*trades = append(*trades, tr)
		return nil
	})
	if err != nil {
		return models.Trade{}, err
	}

	t.Logger.Info("trade opened",
		zap.String("trade_id", tr.ID),
		zap.String("class", string(sig.Class)),
		zap.String("entry_price", sig.EntryPrice.String()),
		zap.String("model_version", tr.ModelVersion))
	return tr, nil
}

// CheckTradeOutcomes closes every active trade whose stop-loss or take-profit
// is crossed by price, reports each close to the recorder, then persists the
// list once. Returns the trades closed this pass.
func (t *Tracker) CheckTradeOutcomes(price decimal.Decimal) ([]models.Trade, error) {
	return t.sweep(func(tr *models.Trade, now time.Time) bool {
		if !tr.Signal.HasLevels() {
			return false
		}
		return closeAtThreshold(tr, price, now)
	})
}

// CheckTimeExits force-closes every active trade older than the configured
// maximum age at the current price, regardless of SL/TP state.
func (t *Tracker) CheckTimeExits(price decimal.Decimal) ([]models.Trade, error) {
	maxAge := t.Config.MaxTradeAge
	return t.sweep(func(tr *models.Trade, now time.Time) bool {
		if tr.Age(now) <= maxAge {
			return false
		}
		closeAtTime(tr, price, now)
		return true
	})
}

// sweep applies eval to a copy of each active trade. A trade's close is kept
// only after the recorder accepts it, so a recording failure cannot lose an
// outcome: the trade simply stays active and is retried next tick.
func (t *Tracker) sweep(eval func(*models.Trade, time.Time) bool) ([]models.Trade, error) {
	trades, err := t.Store.Trades()
	if err != nil {
		return nil, err
	}

	now := t.now().UTC()
	var closed []models.Trade
	var recordErr error
	for i := range trades {
		if !trades[i].Active() {
			continue
		}
		tr := trades[i]
		if !eval(&tr, now) {
			continue
		}
		if err := t.Recorder.RecordTradeResult(tr.Signal, tr.Result, *tr.ProfitLoss); err != nil {
			recordErr = fmt.Errorf("record outcome for %s: %w", tr.ID, err)
			break
		}
		trades[i] = tr
		closed = append(closed, tr)
		t.Logger.Info("trade closed",
			zap.String("trade_id", tr.ID),
			zap.String("result", string(tr.Result)),
			zap.String("profit_loss", tr.ProfitLoss.String()),
			zap.String("exit_reason", string(tr.ExitReason)))
	}

	if len(closed) > 0 {
		if err := t.Store.SaveTrades(trades); err != nil {
			return closed, err
		}
	}
	return closed, recordErr
}

// ActiveTrades returns the open subset of the trade list.
func (t *Tracker) ActiveTrades() ([]models.Trade, error) {
	trades, err := t.Store.Trades()
	if err != nil {
		return nil, err
	}
	active := make([]models.Trade, 0, len(trades))
	for _, tr := range trades {
		if tr.Active() {
			active = append(active, tr)
		}
	}
	return active, nil
}

// AllTrades returns the full trade list, closed history included.
func (t *Tracker) AllTrades() ([]models.Trade, error) {
	return t.Store.Trades()
}

// closeAtThreshold closes tr if price has crossed its stop or target. The
// stop-loss is checked first: on a gap tick that satisfies both levels the
// trade closes as a loss. Profit/loss is the signed distance from entry to
// the level that triggered, with the exit price recorded at that level.
func closeAtThreshold(tr *models.Trade, price decimal.Decimal, now time.Time) bool {
	sl := *tr.Signal.StopLoss
	tp := *tr.Signal.TakeProfit
	entry := tr.Signal.EntryPrice

	var (
		result models.TradeResult
		exit   decimal.Decimal
		pl     decimal.Decimal
	)
	switch tr.Signal.Class {
	case models.ClassBuy:
		switch {
		case price.LessThanOrEqual(sl):
			result, exit, pl = models.ResultLoss, sl, sl.Sub(entry)
		case price.GreaterThanOrEqual(tp):
			result, exit, pl = models.ResultWin, tp, tp.Sub(entry)
		default:
			return false
		}
	case models.ClassSell:
		switch {
		case price.GreaterThanOrEqual(sl):
			result, exit, pl = models.ResultLoss, sl, entry.Sub(sl)
		case price.LessThanOrEqual(tp):
			result, exit, pl = models.ResultWin, tp, entry.Sub(tp)
		default:
			return false
		}
	default:
		return false
	}

	finalize(tr, exit, result, pl, models.ExitThresholdHit, now)
	return true
}

// closeAtTime closes tr at the current price with profit/loss measured
// directly against entry, oriented by direction.
func closeAtTime(tr *models.Trade, price decimal.Decimal, now time.Time) {
	var pl decimal.Decimal
	if tr.Signal.Class == models.ClassSell {
		pl = tr.Signal.EntryPrice.Sub(price)
	} else {
		pl = price.Sub(tr.Signal.EntryPrice)
	}
	finalize(tr, price, models.ResultForPL(pl), pl, models.ExitTimeLimit, now)
}

func finalize(tr *models.Trade, exit decimal.Decimal, result models.TradeResult, pl decimal.Decimal, reason models.ExitReason, now time.Time) {
	tr.Status = models.TradeClosed
	tr.ExitTime = &now
	tr.ExitPrice = &exit
	tr.Result = result
	tr.ProfitLoss = &pl
	tr.ExitReason = reason
}
