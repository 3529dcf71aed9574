package main

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"goldsignal/internal/artifact"
	"goldsignal/internal/config"
	"goldsignal/internal/logger"
	"goldsignal/internal/performance"
	"goldsignal/internal/store"
	"goldsignal/internal/tracker"
)

// Prints the performance report and the open positions from the local
// store. Read-only; safe to run next to a live server.
func main() {
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
		os.Exit(2)
	}
	logger, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	defer logger.Sync()

	docStore := &store.Store{Dir: cfg.Store.Dir, Logger: logger}
	monitor := &performance.Monitor{
		Store:  docStore,
		Binder: &artifact.Binder{Path: cfg.Model.Path, Logger: logger},
		Config: cfg.Performance,
		Logger: logger,
	}
	trades := &tracker.Tracker{Store: docStore, Logger: logger}

	report, err := monitor.Report()
	if err != nil {
		logger.Fatal("build report", zap.Error(err))
	}
	fmt.Println(report)

	active, err := trades.ActiveTrades()
	if err != nil {
		logger.Fatal("load trades", zap.Error(err))
	}
	fmt.Printf("\nACTIVE TRADES: %d\n", len(active))
	for _, tr := range active {
		line := fmt.Sprintf("  %s  %s @ $%s", tr.ID, tr.Signal.Class, tr.Signal.EntryPrice.StringFixed(2))
		if tr.Signal.HasLevels() {
			line += fmt.Sprintf("  SL $%s  TP $%s",
				tr.Signal.StopLoss.StringFixed(2), tr.Signal.TakeProfit.StringFixed(2))
		}
		fmt.Println(line)
	}
}
