package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"goldsignal/internal/backtest"
	"goldsignal/internal/classifier"
	"goldsignal/internal/config"
	"goldsignal/internal/logger"
	"goldsignal/internal/marketdata"
)

// Validates the current model artifact against recent history, exactly the
// check a retrain runs, but on demand. Exit code 1 means the artifact would
// not pass the gate.
func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := os.Getenv("GS_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	envOnly := false
	if envOnlyRaw := os.Getenv("GS_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 2
	}
	logger, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		return 2
	}
	defer logger.Sync()

	cls, err := classifier.NewONNX(cfg.Model)
	if err != nil {
		logger.Error("load classifier", zap.String("path", cfg.Model.Path), zap.Error(err))
		return 2
	}
	defer cls.Close()

	validator := &backtest.Validator{
		Bars:       marketdata.NewClient(cfg.MarketData, logger),
		Classifier: cls,
		Config:     cfg.Backtest,
		Confidence: cfg.Signal.ConfidenceThreshold,
		Thresholds: cfg.Performance,
		Logger:     logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	passed, metrics, err := validator.ValidateOnRecentHistory(ctx)
	if err != nil {
		logger.Error("validation failed", zap.Error(err))
		return 2
	}

	if metrics == nil {
		fmt.Println("verdict: FAIL (insufficient synthetic trades in every window)")
		return 1
	}
	fmt.Printf("synthetic trades: %d\n", metrics.TotalTrades)
	fmt.Printf("win rate:         %.1f%%\n", metrics.WinRate*100)
	fmt.Printf("profit factor:    %.2f\n", metrics.ProfitFactor)
	fmt.Printf("net profit:       $%s\n", metrics.NetProfit.StringFixed(2))
	if passed {
		fmt.Println("verdict: PASS")
		return 0
	}
	fmt.Println("verdict: FAIL")
	return 1
}
