package gormrepository

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"goldsignal/internal/models"
	"goldsignal/internal/repository"
)

// Store answers archive queries over the mirror tables. Every method is safe
// on a nil store so the API can be wired whether or not the archive is
// enabled.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ListSignalEvents(ctx context.Context, params repository.ListSignalEventsParams) ([]repository.SignalEventRow, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.SignalEvent{})
	if params.Class != nil && strings.TrimSpace(*params.Class) != "" {
		query = query.Where("class = ?", strings.ToUpper(strings.TrimSpace(*params.Class)))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("emitted_at >= ?", *params.Since)
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("emitted_at < ?", *params.Until)
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "emitted_at")
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.SignalEvent
	if err := query.Select("id", "class", "confidence", "entry_price", "emitted_at").
		Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	rows := make([]repository.SignalEventRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, repository.SignalEventRow{
			ID:         item.ID,
			Class:      item.Class,
			Confidence: item.Confidence,
			EntryPrice: item.EntryPrice.String(),
			EmittedAt:  item.EmittedAt,
		})
	}
	return rows, nil
}

func (s *Store) CountSignalEvents(ctx context.Context, params repository.ListSignalEventsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := s.db.WithContext(ctx).Model(&models.SignalEvent{})
	if params.Class != nil && strings.TrimSpace(*params.Class) != "" {
		query = query.Where("class = ?", strings.ToUpper(strings.TrimSpace(*params.Class)))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("emitted_at >= ?", *params.Since)
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("emitted_at < ?", *params.Until)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListTradeEvents(ctx context.Context, params repository.ListTradeEventsParams) ([]repository.TradeEventRow, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyTradeEventFilters(s.db.WithContext(ctx).Model(&models.TradeEvent{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "exit_time")
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.TradeEvent
	if err := query.Select(
		"id", "trade_id", "class", "model_version", "result", "exit_reason",
		"entry_price", "exit_price", "profit_loss", "entry_time", "exit_time",
	).Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	rows := make([]repository.TradeEventRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, repository.TradeEventRow{
			ID:           item.ID,
			TradeID:      item.TradeID,
			Class:        item.Class,
			ModelVersion: item.ModelVersion,
			Result:       item.Result,
			ExitReason:   item.ExitReason,
			EntryPrice:   item.EntryPrice.String(),
			ExitPrice:    decimalPtrString(item.ExitPrice),
			ProfitLoss:   decimalPtrString(item.ProfitLoss),
			EntryTime:    item.EntryTime,
			ExitTime:     item.ExitTime,
		})
	}
	return rows, nil
}

func (s *Store) CountTradeEvents(ctx context.Context, params repository.ListTradeEventsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := applyTradeEventFilters(s.db.WithContext(ctx).Model(&models.TradeEvent{}), params)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListStatusEvents(ctx context.Context, params repository.ListStatusEventsParams) ([]repository.StatusEventRow, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.StatusEvent{})
	if params.To != nil && strings.TrimSpace(*params.To) != "" {
		query = query.Where("to_status = ?", strings.ToUpper(strings.TrimSpace(*params.To)))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("created_at >= ?", *params.Since)
	}
	query = applyOrder(query, "created_at", params.Asc, "created_at")
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.StatusEvent
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	rows := make([]repository.StatusEventRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, repository.StatusEventRow{
			ID:        item.ID,
			From:      item.From,
			To:        item.To,
			Reason:    item.Reason,
			CreatedAt: item.CreatedAt,
		})
	}
	return rows, nil
}

func (s *Store) CountStatusEvents(ctx context.Context, params repository.ListStatusEventsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := s.db.WithContext(ctx).Model(&models.StatusEvent{})
	if params.To != nil && strings.TrimSpace(*params.To) != "" {
		query = query.Where("to_status = ?", strings.ToUpper(strings.TrimSpace(*params.To)))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("created_at >= ?", *params.Since)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) TradeSummary(ctx context.Context, params repository.TradeSummaryParams) (repository.TradeSummary, error) {
	if s == nil || s.db == nil {
		return repository.TradeSummary{}, nil
	}
	var row struct {
		TotalTrades int64
		Wins        int64
		Losses      int64
		Breakevens  int64
		TimeExits   int64
		GrossProfit float64
		GrossLoss   float64
		NetProfit   float64
	}
	query := applySummaryFilters(s.db.WithContext(ctx).Table("trade_events"), params)
	err := query.Select(`
		COUNT(*) AS total_trades,
		COALESCE(SUM(CASE WHEN result = 'WIN' THEN 1 ELSE 0 END),0) AS wins,
		COALESCE(SUM(CASE WHEN result = 'LOSS' THEN 1 ELSE 0 END),0) AS losses,
		COALESCE(SUM(CASE WHEN result = 'BREAKEVEN' THEN 1 ELSE 0 END),0) AS breakevens,
		COALESCE(SUM(CASE WHEN exit_reason = 'TIME_LIMIT' THEN 1 ELSE 0 END),0) AS time_exits,
		COALESCE(SUM(CASE WHEN profit_loss > 0 THEN profit_loss ELSE 0 END),0) AS gross_profit,
		COALESCE(SUM(CASE WHEN profit_loss < 0 THEN -profit_loss ELSE 0 END),0) AS gross_loss,
		COALESCE(SUM(profit_loss),0) AS net_profit
	`).Scan(&row).Error
	if err != nil {
		return repository.TradeSummary{}, err
	}
	summary := repository.TradeSummary{
		TotalTrades: row.TotalTrades,
		Wins:        row.Wins,
		Losses:      row.Losses,
		Breakevens:  row.Breakevens,
		TimeExits:   row.TimeExits,
		GrossProfit: row.GrossProfit,
		GrossLoss:   row.GrossLoss,
		NetProfit:   row.NetProfit,
	}
	if row.TotalTrades > 0 {
		summary.WinRate = float64(row.Wins) / float64(row.TotalTrades)
	}
	return summary, nil
}

func (s *Store) TradeSummaryByVersion(ctx context.Context, params repository.TradeSummaryParams) ([]repository.VersionSummaryRow, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var rows []struct {
		ModelVersion string
		Trades       int64
		Wins         int64
		Losses       int64
		NetProfit    float64
	}
	query := applySummaryFilters(s.db.WithContext(ctx).Table("trade_events"), params)
	err := query.Select(`
		model_version,
		COUNT(*) AS trades,
		COALESCE(SUM(CASE WHEN result = 'WIN' THEN 1 ELSE 0 END),0) AS wins,
		COALESCE(SUM(CASE WHEN result = 'LOSS' THEN 1 ELSE 0 END),0) AS losses,
		COALESCE(SUM(profit_loss),0) AS net_profit
	`).Group("model_version").Order("model_version desc").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]repository.VersionSummaryRow, 0, len(rows))
	for _, row := range rows {
		item := repository.VersionSummaryRow{
			ModelVersion: row.ModelVersion,
			Trades:       row.Trades,
			Wins:         row.Wins,
			Losses:       row.Losses,
			NetProfit:    row.NetProfit,
		}
		if row.Trades > 0 {
			item.WinRate = float64(row.Wins) / float64(row.Trades)
		}
		out = append(out, item)
	}
	return out, nil
}

func applyTradeEventFilters(query *gorm.DB, params repository.ListTradeEventsParams) *gorm.DB {
	if params.Class != nil && strings.TrimSpace(*params.Class) != "" {
		query = query.Where("class = ?", strings.ToUpper(strings.TrimSpace(*params.Class)))
	}
	if params.Result != nil && strings.TrimSpace(*params.Result) != "" {
		query = query.Where("result = ?", strings.ToUpper(strings.TrimSpace(*params.Result)))
	}
	if params.ModelVersion != nil && strings.TrimSpace(*params.ModelVersion) != "" {
		query = query.Where("model_version = ?", strings.TrimSpace(*params.ModelVersion))
	}
	if params.ExitReason != nil && strings.TrimSpace(*params.ExitReason) != "" {
		query = query.Where("exit_reason = ?", strings.ToUpper(strings.TrimSpace(*params.ExitReason)))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("exit_time >= ?", *params.Since)
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("exit_time < ?", *params.Until)
	}
	return query
}

func applySummaryFilters(query *gorm.DB, params repository.TradeSummaryParams) *gorm.DB {
	if params.ModelVersion != nil && strings.TrimSpace(*params.ModelVersion) != "" {
		query = query.Where("model_version = ?", strings.TrimSpace(*params.ModelVersion))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("exit_time >= ?", *params.Since)
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("exit_time < ?", *params.Until)
	}
	return query
}

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func decimalPtrString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
