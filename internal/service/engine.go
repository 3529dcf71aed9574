package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"goldsignal/internal/generator"
	"goldsignal/internal/marketdata"
	"goldsignal/internal/models"
	"goldsignal/internal/notifier"
	"goldsignal/internal/tracker"
)

// PriceSource is the market data slice the engine polls each tick.
type PriceSource interface {
	CurrentPrice(ctx context.Context) (decimal.Decimal, error)
}

// Gate is the emission gate consulted before a signal becomes a trade.
type Gate interface {
	IsSignalAllowed() (bool, error)
}

// Archiver mirrors events into the optional archive database.
type Archiver interface {
	SignalEmitted(ctx context.Context, sig models.Signal) error
	TradeClosed(ctx context.Context, trade models.Trade) error
}

// Broadcaster pushes events to live dashboard connections.
type Broadcaster interface {
	NewSignal(sig models.Signal)
	TradeClosed(trade models.Trade)
	StatusUpdate(update StatusUpdate)
}

// OrderPlacer forwards emitted signals to a broker.
type OrderPlacer interface {
	PlaceBracket(ctx context.Context, sig models.Signal) error
}

// StatusUpdate is the periodic dashboard heartbeat.
type StatusUpdate struct {
	Timestamp    time.Time      `json:"timestamp"`
	Running      bool           `json:"running"`
	ActiveTrades int            `json:"active_trades"`
	LastSignal   *models.Signal `json:"last_signal,omitempty"`
}

// Engine owns the live loop: sweep open trades against the current price,
// generate at most one gated signal per hour, fan out side effects. One
// tick runs at a time and always completes before the next is scheduled.
type Engine struct {
	Market    PriceSource
	Tracker   *tracker.Tracker
	Generator *generator.Generator
	Monitor   Gate
	Notifier  notifier.Notifier
	Archive   Archiver
	Hub       Broadcaster
	Broker    OrderPlacer

	// TickInterval is the normal pause between passes, ErrorDelay the
	// shortened one after a failed pass.
	TickInterval time.Duration
	ErrorDelay   time.Duration

	Logger *zap.Logger
	Now    func() time.Time

	running atomic.Bool

	mu         sync.Mutex
	wake       chan struct{}
	lastSignal *models.Signal
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Start opens the stop-flag. Safe to call before or while Run is looping.
func (e *Engine) Start() {
	if !e.running.CompareAndSwap(false, true) {
		return
	}
	e.Logger.Info("engine started")
	e.mu.Lock()
	wake := e.wake
	e.mu.Unlock()
	if wake != nil {
		select {
		case wake <- struct{}{}:
		default:
		}
	}
}

// Stop closes the stop-flag. The current tick, if any, finishes first.
func (e *Engine) Stop() {
	if e.running.CompareAndSwap(true, false) {
		e.Logger.Info("engine stopped")
	}
}

func (e *Engine) Running() bool {
	return e.running.Load()
}

// LastSignal returns the most recent evaluation, nil before the first.
func (e *Engine) LastSignal() *models.Signal {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastSignal == nil {
		return nil
	}
	sig := *e.lastSignal
	return &sig
}

func (e *Engine) setLastSignal(sig models.Signal) {
	e.mu.Lock()
	e.lastSignal = &sig
	e.mu.Unlock()
}

// Run drives the tick loop until ctx cancels. The stop-flag only gates the
// work; the loop stays alive so Start takes effect immediately via the wake
// channel instead of after a full interval.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.wake == nil {
		e.wake = make(chan struct{}, 1)
	}
	wake := e.wake
	e.mu.Unlock()

	for {
		delay := e.TickInterval
		if e.running.Load() {
			if err := e.tick(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.Logger.Error("tick failed", zap.Error(err))
				delay = e.ErrorDelay
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
		case <-time.After(delay):
		}
	}
}

func (e *Engine) tick(ctx context.Context) error {
	now := e.now()

	price, perr := e.Market.CurrentPrice(ctx)
	switch {
	case errors.Is(perr, marketdata.ErrUnavailable):
		e.Logger.Info("price unavailable, skipping trade checks", zap.Error(perr))
	case perr != nil:
		return fmt.Errorf("current price: %w", perr)
	default:
		closed, err := e.Tracker.CheckTradeOutcomes(price)
		e.afterClosures(ctx, closed)
		if err != nil {
			return fmt.Errorf("check trade outcomes: %w", err)
		}
		closed, err = e.Tracker.CheckTimeExits(price)
		e.afterClosures(ctx, closed)
		if err != nil {
			return fmt.Errorf("check time exits: %w", err)
		}
	}

	if err := e.generateAndEmit(ctx, now); err != nil {
		return err
	}

	e.broadcastStatus(now)
	return nil
}

// generateAndEmit consults the gate before any inference happens, so a
// suspended system does not spend API calls or model runs.
func (e *Engine) generateAndEmit(ctx context.Context, now time.Time) error {
	allowed, err := e.Monitor.IsSignalAllowed()
	if err != nil {
		return fmt.Errorf("consult gate: %w", err)
	}
	if !allowed {
		e.Logger.Debug("signals suspended, skipping generation")
		return nil
	}

	sig, err := e.Generator.Generate(ctx)
	if err != nil {
		if errors.Is(err, marketdata.ErrUnavailable) {
			e.Logger.Info("market data unavailable, skipping generation", zap.Error(err))
			return nil
		}
		return fmt.Errorf("generate signal: %w", err)
	}
	e.setLastSignal(sig)

	if sig.Class == models.ClassNeutral {
		return nil
	}
	if e.Generator.EmittedThisHour(now) {
		e.Logger.Debug("signal already emitted this hour")
		return nil
	}

	trade, err := e.Tracker.AddTrade(sig)
	if err != nil {
		return fmt.Errorf("open trade: %w", err)
	}
	e.Generator.MarkEmitted(now)
	e.Logger.Info("signal emitted",
		zap.String("class", string(sig.Class)),
		zap.Float64("confidence", sig.Confidence),
		zap.String("entry", sig.EntryPrice.String()),
		zap.String("trade_id", trade.ID),
	)

	if e.Notifier != nil {
		if nerr := e.Notifier.SignalEmitted(ctx, sig); nerr != nil {
			e.Logger.Warn("notify signal failed", zap.Error(nerr))
		}
	}
	if e.Archive != nil {
		if aerr := e.Archive.SignalEmitted(ctx, sig); aerr != nil {
			e.Logger.Warn("archive signal failed", zap.Error(aerr))
		}
	}
	if e.Hub != nil {
		e.Hub.NewSignal(sig)
	}
	if e.Broker != nil {
		if berr := e.Broker.PlaceBracket(ctx, sig); berr != nil {
			e.Logger.Warn("broker order failed", zap.Error(berr))
		}
	}
	return nil
}

func (e *Engine) afterClosures(ctx context.Context, closed []models.Trade) {
	for _, tr := range closed {
		e.Logger.Info("trade closed",
			zap.String("trade_id", tr.ID),
			zap.String("result", string(tr.Result)),
			zap.String("reason", string(tr.ExitReason)),
		)
		if e.Notifier != nil {
			if err := e.Notifier.TradeClosed(ctx, tr); err != nil {
				e.Logger.Warn("notify trade close failed", zap.String("trade_id", tr.ID), zap.Error(err))
			}
		}
		if e.Archive != nil {
			if err := e.Archive.TradeClosed(ctx, tr); err != nil {
				e.Logger.Warn("archive trade close failed", zap.String("trade_id", tr.ID), zap.Error(err))
			}
		}
		if e.Hub != nil {
			e.Hub.TradeClosed(tr)
		}
	}
}

func (e *Engine) broadcastStatus(now time.Time) {
	if e.Hub == nil {
		return
	}
	active, err := e.Tracker.ActiveTrades()
	if err != nil {
		e.Logger.Warn("load active trades for status", zap.Error(err))
	}
	e.Hub.StatusUpdate(StatusUpdate{
		Timestamp:    now,
		Running:      e.running.Load(),
		ActiveTrades: len(active),
		LastSignal:   e.LastSignal(),
	})
}
