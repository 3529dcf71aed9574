package archive

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm/clause"

	"goldsignal/internal/db"
	"goldsignal/internal/models"
)

// Archiver mirrors core events into the archive database. Every call is
// best-effort: callers log failures and move on, core state never depends
// on the mirror.
type Archiver interface {
	SignalEmitted(ctx context.Context, sig models.Signal) error
	TradeClosed(ctx context.Context, trade models.Trade) error
	StatusChanged(ctx context.Context, from, to models.SignalStatus, reason string) error
}

// Noop drops every event.
type Noop struct{}

func (Noop) SignalEmitted(context.Context, models.Signal) error { return nil }

func (Noop) TradeClosed(context.Context, models.Trade) error { return nil }

func (Noop) StatusChanged(context.Context, models.SignalStatus, models.SignalStatus, string) error {
	return nil
}

// Gorm writes events through the shared database handle.
type Gorm struct {
	DB *db.DB
}

func (g *Gorm) SignalEmitted(ctx context.Context, sig models.Signal) error {
	if g == nil || g.DB == nil || g.DB.Gorm == nil {
		return nil
	}
	payload, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	row := models.SignalEvent{
		Class:      string(sig.Class),
		Confidence: sig.Confidence,
		EntryPrice: sig.EntryPrice,
		Payload:    datatypes.JSON(payload),
		EmittedAt:  sig.Timestamp.UTC(),
	}
	return g.DB.Gorm.WithContext(ctx).Create(&row).Error
}

func (g *Gorm) TradeClosed(ctx context.Context, trade models.Trade) error {
	if g == nil || g.DB == nil || g.DB.Gorm == nil {
		return nil
	}
	payload, err := json.Marshal(trade)
	if err != nil {
		return err
	}
	row := models.TradeEvent{
		TradeID:      trade.ID,
		Class:        string(trade.Signal.Class),
		ModelVersion: trade.ModelVersion,
		Result:       string(trade.Result),
		ExitReason:   string(trade.ExitReason),
		EntryPrice:   trade.Signal.EntryPrice,
		ExitPrice:    trade.ExitPrice,
		ProfitLoss:   trade.ProfitLoss,
		Payload:      datatypes.JSON(payload),
		EntryTime:    trade.EntryTime.UTC(),
		ExitTime:     trade.ExitTime,
	}
	// A close retried after a persistence failure may archive twice.
	return g.DB.Gorm.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "trade_id"}},
		DoNothing: true,
	}).Create(&row).Error
}

func (g *Gorm) StatusChanged(ctx context.Context, from, to models.SignalStatus, reason string) error {
	if g == nil || g.DB == nil || g.DB.Gorm == nil {
		return nil
	}
	row := models.StatusEvent{
		From:   string(from),
		To:     string(to),
		Reason: reason,
	}
	return g.DB.Gorm.WithContext(ctx).Create(&row).Error
}
