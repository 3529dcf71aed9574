package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"goldsignal/internal/archive"
	"goldsignal/internal/artifact"
	"goldsignal/internal/backtest"
	"goldsignal/internal/broker"
	"goldsignal/internal/classifier"
	"goldsignal/internal/config"
	cronrunner "goldsignal/internal/cron"
	"goldsignal/internal/db"
	"goldsignal/internal/generator"
	"goldsignal/internal/handler"
	"goldsignal/internal/logger"
	"goldsignal/internal/marketdata"
	"goldsignal/internal/notifier"
	"goldsignal/internal/performance"
	"goldsignal/internal/repository"
	gormrepository "goldsignal/internal/repository/gorm"
	"goldsignal/internal/retrain"
	"goldsignal/internal/service"
	"goldsignal/internal/store"
	"goldsignal/internal/tracker"
	"goldsignal/internal/ws"

	_ "goldsignal/docs"
)

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
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	docStore := &store.Store{Dir: cfg.Store.Dir, Logger: logger}
	binder := &artifact.Binder{Path: cfg.Model.Path, Logger: logger}

	var cls classifier.Classifier
	onnx, err := classifier.NewONNX(cfg.Model)
	if err != nil {
		logger.Warn("classifier unavailable, running rule-based fallback",
			zap.String("path", cfg.Model.Path),
			zap.Error(err))
	} else {
		cls = onnx
		defer onnx.Close()
	}

	market := marketdata.NewClient(cfg.MarketData, logger)

	var dbConn *db.DB
	var mirror *archive.Gorm
	var archiver service.Archiver
	var archiveRepo repository.Repository
	if cfg.Archive.Enabled {
		dbConn, err = db.Open(cfg.DB)
		if err != nil {
			logger.Fatal("db open failed", zap.Error(err))
		}
		defer dbConn.Close()
		if err := dbConn.SetTimezone(cfg.DB.Timezone); err != nil {
			logger.Warn("failed to set timezone", zap.Error(err))
		}
		if err := dbConn.AutoMigrate(); err != nil {
			logger.Fatal("auto-migrate failed", zap.Error(err))
		}
		mirror = &archive.Gorm{DB: dbConn}
		archiver = mirror
		archiveRepo = gormrepository.New(dbConn.Gorm)
	}

	var notify notifier.Notifier = notifier.Noop{}
	var telegram *notifier.Telegram
	if cfg.Notify.Telegram.Enabled {
		telegram = &notifier.Telegram{
			Token:   cfg.Notify.Telegram.Token,
			ChatID:  cfg.Notify.Telegram.ChatID,
			Client:  &http.Client{Timeout: cfg.Notify.Telegram.Timeout},
			Logger:  logger,
			Retries: cfg.Notify.Telegram.Retries,
		}
		notify = telegram
	}

	validator := &backtest.Validator{
		Bars:       market,
		Classifier: cls,
		Config:     cfg.Backtest,
		Confidence: cfg.Signal.ConfidenceThreshold,
		Thresholds: cfg.Performance,
		Logger:     logger,
	}
	monitor := &performance.Monitor{
		Store:     docStore,
		Binder:    binder,
		Config:    cfg.Performance,
		Validator: validator,
		Notifier:  notify,
		Logger:    logger,
	}
	if mirror != nil {
		monitor.Archive = mirror
	}
	trades := &tracker.Tracker{
		Store:    docStore,
		Binder:   binder,
		Recorder: monitor,
		Config:   cfg.Tracker,
		Logger:   logger,
	}
	gen := &generator.Generator{
		Bars:       market,
		Classifier: cls,
		Fallback:   &generator.Rules{Logger: logger},
		Config:     cfg.Signal,
		Logger:     logger,
	}

	hub := &ws.Hub{Logger: logger}

	var orders service.OrderPlacer
	if cfg.Broker.Enabled {
		orders = broker.New(cfg.Broker, logger)
	}

	core := &service.Engine{
		Market:       market,
		Tracker:      trades,
		Generator:    gen,
		Monitor:      monitor,
		Notifier:     notify,
		Archive:      archiver,
		Hub:          hub,
		Broker:       orders,
		TickInterval: cfg.Engine.TickInterval,
		ErrorDelay:   cfg.Engine.ErrorDelay,
		Logger:       logger,
	}

	retrainSvc := &retrain.Service{
		Monitor: monitor,
		Config:  cfg.Retrain,
		Model:   cfg.Model,
		Logger:  logger,
	}
	if onnx != nil {
		retrainSvc.Classifier = onnx
	}
	var retrainAPI *retrain.Service
	if len(cfg.Retrain.Command) > 0 {
		retrainAPI = retrainSvc
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{Store: docStore, DB: dbConn}
	healthHandler.Register(router)
	systemHandler := &handler.SystemHandler{Engine: core, Monitor: monitor, Trades: trades}
	systemHandler.Register(router)
	signalHandler := &handler.SignalHandler{Engine: core}
	signalHandler.Register(router)
	tradeHandler := &handler.TradeHandler{Trades: trades}
	tradeHandler.Register(router)
	perfHandler := &handler.PerformanceHandler{Monitor: monitor}
	perfHandler.Register(router)
	retrainHandler := &handler.RetrainHandler{Retrain: retrainAPI, Logger: logger}
	retrainHandler.Register(router)
	archiveHandler := &handler.ArchiveHandler{Repo: archiveRepo}
	archiveHandler.Register(router)

	router.GET("/ws", gin.WrapH(hub))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Retrain.Enabled {
		if err := retrainSvc.Register(cronRunner); err != nil {
			logger.Warn("cron register retrain failed", zap.Error(err))
		}
	}
	if cfg.Report.Enabled {
		reportSvc := &service.DailyReport{
			Monitor:  monitor,
			Trades:   trades,
			Schedule: cfg.Report.Schedule,
			Logger:   logger,
		}
		if telegram != nil {
			reportSvc.Sender = telegram
		}
		if err := reportSvc.Register(cronRunner); err != nil {
			logger.Warn("cron register daily report failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	if cfg.Engine.Autostart {
		core.Start()
	}
	go func() {
		if err := core.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("engine stopped", zap.Error(err))
		}
	}()

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	hub.CloseAll()
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
