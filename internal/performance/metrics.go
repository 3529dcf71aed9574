package performance

import (
	"math"

	"github.com/shopspring/decimal"

	"goldsignal/internal/models"
)

// ComputeMetrics derives PerformanceMetrics from a record set. Returns nil
// for an empty set so callers never divide by zero. Breakeven trades count
// toward the total but neither gross sum. Profit factor is +Inf when there
// are wins and no losing amount, 0 when there is neither.
func ComputeMetrics(records []models.PerformanceRecord) *models.PerformanceMetrics {
	if len(records) == 0 {
		return nil
	}

	var wins, losses int
	grossWin := decimal.Zero
	grossLoss := decimal.Zero
	net := decimal.Zero

	for _, r := range records {
		net = net.Add(r.ProfitLoss)
		switch r.Result {
		case models.ResultWin:
			wins++
			grossWin = grossWin.Add(r.ProfitLoss)
		case models.ResultLoss:
			losses++
			grossLoss = grossLoss.Add(r.ProfitLoss)
		}
	}
	grossLoss = grossLoss.Abs()

	var profitFactor float64
	switch {
	case !grossLoss.IsZero():
		profitFactor = grossWin.Div(grossLoss).InexactFloat64()
	case wins > 0:
		profitFactor = math.Inf(1)
	}

	avgWin := decimal.Zero
	if wins > 0 {
		avgWin = grossWin.Div(decimal.NewFromInt(int64(wins)))
	}
	avgLoss := decimal.Zero
	if losses > 0 {
		avgLoss = grossLoss.Div(decimal.NewFromInt(int64(losses)))
	}

	return &models.PerformanceMetrics{
		TotalTrades:  len(records),
		WinRate:      float64(wins) / float64(len(records)),
		ProfitFactor: profitFactor,
		NetProfit:    net,
		AvgWin:       avgWin,
		AvgLoss:      avgLoss,
	}
}

// filterByVersion keeps only records produced by the given model version.
func filterByVersion(records []models.PerformanceRecord, version string) []models.PerformanceRecord {
	out := make([]models.PerformanceRecord, 0, len(records))
	for _, r := range records {
		if r.ModelVersion == version {
			out = append(out, r)
		}
	}
	return out
}
