package db

import (
	"goldsignal/internal/models"
)

// AutoMigrate creates the three mirror tables. The archive schema is
// append-only, so auto-migration on boot is safe.
func (d *DB) AutoMigrate() error {
	if d == nil || d.Gorm == nil {
		return nil
	}

	return d.Gorm.AutoMigrate(
		&models.SignalEvent{},
		&models.TradeEvent{},
		&models.StatusEvent{},
	)
}
