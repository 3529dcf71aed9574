package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	cronrunner "goldsignal/internal/cron"
	"goldsignal/internal/models"
)

// ReportSource is the monitor slice the daily report reads.
type ReportSource interface {
	Report() (string, error)
}

// TradeSource supplies the open positions appended to the report.
type TradeSource interface {
	ActiveTrades() ([]models.Trade, error)
}

// ReportSender delivers a rendered report off-process. Nil means log-only.
type ReportSender interface {
	PerformanceReport(ctx context.Context, text string) error
}

// DailyReport pushes the performance report on a cron schedule so the gate
// state is visible without opening the dashboard.
type DailyReport struct {
	Monitor  ReportSource
	Trades   TradeSource
	Sender   ReportSender
	Schedule string
	Logger   *zap.Logger
}

func (s *DailyReport) Register(runner *cronrunner.Runner) error {
	_, err := runner.Add("daily-report", s.Schedule, s.push)
	return err
}

func (s *DailyReport) push(ctx context.Context) {
	if err := s.RunOnce(ctx); err != nil && s.Logger != nil {
		s.Logger.Warn("daily report push failed", zap.Error(err))
	}
}

func (s *DailyReport) RunOnce(ctx context.Context) error {
	if s == nil || s.Monitor == nil {
		return nil
	}
	report, err := s.Monitor.Report()
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	open := -1
	if s.Trades != nil {
		trades, terr := s.Trades.ActiveTrades()
		if terr != nil {
			// The report is still worth pushing without the open count.
			if s.Logger != nil {
				s.Logger.Warn("daily report: active trades unavailable", zap.Error(terr))
			}
		} else {
			open = len(trades)
		}
	}
	if open >= 0 {
		report = fmt.Sprintf("%s\nOpen trades: %d", report, open)
	}

	if s.Logger != nil {
		s.Logger.Info("daily report generated", zap.Int("open_trades", open))
	}
	if s.Sender == nil {
		return nil
	}
	return s.Sender.PerformanceReport(ctx, report)
}
