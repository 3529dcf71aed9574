package repository

import (
	"context"
	"time"
)

// Repository is the read side of the archive mirror. The write side stays in
// the archive package; everything here serves dashboard queries over rows the
// mirror has already landed.
type Repository interface {
	ListSignalEvents(ctx context.Context, params ListSignalEventsParams) ([]SignalEventRow, error)
	CountSignalEvents(ctx context.Context, params ListSignalEventsParams) (int64, error)

	ListTradeEvents(ctx context.Context, params ListTradeEventsParams) ([]TradeEventRow, error)
	CountTradeEvents(ctx context.Context, params ListTradeEventsParams) (int64, error)

	ListStatusEvents(ctx context.Context, params ListStatusEventsParams) ([]StatusEventRow, error)
	CountStatusEvents(ctx context.Context, params ListStatusEventsParams) (int64, error)

	TradeSummary(ctx context.Context, params TradeSummaryParams) (TradeSummary, error)
	TradeSummaryByVersion(ctx context.Context, params TradeSummaryParams) ([]VersionSummaryRow, error)
}

type ListSignalEventsParams struct {
	Limit   int
	Offset  int
	Class   *string
	Since   *time.Time
	Until   *time.Time
	OrderBy string
	Asc     *bool
}

type ListTradeEventsParams struct {
	Limit        int
	Offset       int
	Class        *string
	Result       *string
	ModelVersion *string
	ExitReason   *string
	Since        *time.Time
	Until        *time.Time
	OrderBy      string
	Asc          *bool
}

type ListStatusEventsParams struct {
	Limit  int
	Offset int
	To     *string
	Since  *time.Time
	Asc    *bool
}

type TradeSummaryParams struct {
	ModelVersion *string
	Since        *time.Time
	Until        *time.Time
}

// SignalEventRow is the list projection of an archived signal. The raw
// payload column is deliberately dropped; the dashboard never needs it.
type SignalEventRow struct {
	ID         uint64    `json:"id"`
	Class      string    `json:"class"`
	Confidence float64   `json:"confidence"`
	EntryPrice string    `json:"entry_price"`
	EmittedAt  time.Time `json:"emitted_at"`
}

type TradeEventRow struct {
	ID           uint64     `json:"id"`
	TradeID      string     `json:"trade_id"`
	Class        string     `json:"class"`
	ModelVersion string     `json:"model_version"`
	Result       string     `json:"result"`
	ExitReason   string     `json:"exit_reason"`
	EntryPrice   string     `json:"entry_price"`
	ExitPrice    *string    `json:"exit_price,omitempty"`
	ProfitLoss   *string    `json:"profit_loss,omitempty"`
	EntryTime    time.Time  `json:"entry_time"`
	ExitTime     *time.Time `json:"exit_time,omitempty"`
}

type StatusEventRow struct {
	ID        uint64    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// TradeSummary aggregates closed trades in one pass so the dashboard does not
// recompute win rates client-side.
type TradeSummary struct {
	TotalTrades int64   `json:"total_trades"`
	Wins        int64   `json:"wins"`
	Losses      int64   `json:"losses"`
	Breakevens  int64   `json:"breakevens"`
	TimeExits   int64   `json:"time_exits"`
	WinRate     float64 `json:"win_rate"`
	GrossProfit float64 `json:"gross_profit"`
	GrossLoss   float64 `json:"gross_loss"`
	NetProfit   float64 `json:"net_profit"`
}

type VersionSummaryRow struct {
	ModelVersion string  `json:"model_version"`
	Trades       int64   `json:"trades"`
	Wins         int64   `json:"wins"`
	Losses       int64   `json:"losses"`
	WinRate      float64 `json:"win_rate"`
	NetProfit    float64 `json:"net_profit"`
}
