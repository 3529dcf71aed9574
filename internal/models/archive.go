package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// SignalEvent mirrors an emitted signal into the archive database.
type SignalEvent struct {
	ID         uint64          `gorm:"primaryKey;autoIncrement"`
	Class      string          `gorm:"type:varchar(10);not null;index"`
	Confidence float64         `gorm:"not null"`
	EntryPrice decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	Payload    datatypes.JSON  `gorm:"type:jsonb"`
	EmittedAt  time.Time       `gorm:"type:timestamptz;not null;index"`
	CreatedAt  time.Time       `gorm:"type:timestamptz;autoCreateTime"`
}

func (SignalEvent) TableName() string {
	return "signal_events"
}

// TradeEvent mirrors a closed trade into the archive database.
type TradeEvent struct {
	ID           uint64           `gorm:"primaryKey;autoIncrement"`
	TradeID      string           `gorm:"type:varchar(50);not null;uniqueIndex"`
	Class        string           `gorm:"type:varchar(10);not null;index"`
	ModelVersion string           `gorm:"type:varchar(50);not null;index"`
	Result       string           `gorm:"type:varchar(20);index"`
	ExitReason   string           `gorm:"type:varchar(20)"`
	EntryPrice   decimal.Decimal  `gorm:"type:numeric(20,8);not null"`
	ExitPrice    *decimal.Decimal `gorm:"type:numeric(20,8)"`
	ProfitLoss   *decimal.Decimal `gorm:"type:numeric(20,8)"`
	Payload      datatypes.JSON   `gorm:"type:jsonb"`
	EntryTime    time.Time        `gorm:"type:timestamptz;not null"`
	ExitTime     *time.Time       `gorm:"type:timestamptz;index"`
	CreatedAt    time.Time        `gorm:"type:timestamptz;autoCreateTime"`
}

func (TradeEvent) TableName() string {
	return "trade_events"
}

// StatusEvent mirrors a gate transition into the archive database.
type StatusEvent struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	From      string    `gorm:"column:from_status;type:varchar(20);not null"`
	To        string    `gorm:"column:to_status;type:varchar(20);not null;index"`
	Reason    string    `gorm:"type:varchar(200)"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (StatusEvent) TableName() string {
	return "status_events"
}
