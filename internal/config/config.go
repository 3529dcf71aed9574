package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Store       StoreConfig       `mapstructure:"store"`
	Model       ModelConfig       `mapstructure:"model"`
	Market      MarketConfig      `mapstructure:"market"`
	MarketData  MarketDataConfig  `mapstructure:"marketdata"`
	Signal      SignalConfig      `mapstructure:"signal"`
	Performance PerformanceConfig `mapstructure:"performance"`
	Tracker     TrackerConfig     `mapstructure:"tracker"`
	Engine      EngineConfig      `mapstructure:"engine"`
	Backtest    BacktestConfig    `mapstructure:"backtest"`
	Retrain     RetrainConfig     `mapstructure:"retrain"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	Report      ReportConfig      `mapstructure:"report"`
	Broker      BrokerConfig      `mapstructure:"broker"`
	Archive     ArchiveConfig     `mapstructure:"archive"`
	DB          DBConfig          `mapstructure:"db"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type StoreConfig struct {
	Dir string `mapstructure:"dir"`
}

type ModelConfig struct {
	// Path is the ONNX artifact whose mtime doubles as the model version.
	Path string `mapstructure:"path"`
	// ORTLibrary overrides the onnxruntime shared library location.
	ORTLibrary string `mapstructure:"ort_library"`
}

type MarketConfig struct {
	Symbol string `mapstructure:"symbol"`
}

type MarketDataConfig struct {
	Polygon  PolygonConfig `mapstructure:"polygon"`
	Yahoo    YahooConfig   `mapstructure:"yahoo"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type PolygonConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Symbol  string `mapstructure:"symbol"`
}

type YahooConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Symbol  string `mapstructure:"symbol"`
}

type SignalConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	// BarsDays is how much hourly history the generator pulls for features.
	BarsDays int `mapstructure:"bars_days"`
}

type PerformanceConfig struct {
	MinWinRate      float64 `mapstructure:"min_win_rate"`
	MinProfitFactor float64 `mapstructure:"min_profit_factor"`
	MinTrades       int     `mapstructure:"min_trades"`
	WindowDays      int     `mapstructure:"window_days"`
}

type TrackerConfig struct {
	MaxTradeAge time.Duration `mapstructure:"max_trade_age"`
}

type EngineConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	ErrorDelay   time.Duration `mapstructure:"error_delay"`
	Autostart    bool          `mapstructure:"autostart"`
}

type BacktestConfig struct {
	WindowsDays []int `mapstructure:"windows_days"`
	HorizonBars int   `mapstructure:"horizon_bars"`
	MinTrades   int   `mapstructure:"min_trades"`
}

type RetrainConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Schedule  string        `mapstructure:"schedule"`
	Command   []string      `mapstructure:"command"`
	WorkDir   string        `mapstructure:"work_dir"`
	BackupDir string        `mapstructure:"backup_dir"`
	FlagDir   string        `mapstructure:"flag_dir"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Token   string        `mapstructure:"token"`
	ChatID  string        `mapstructure:"chat_id"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
}

type ReportConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

type BrokerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Symbol  string `mapstructure:"symbol"`
	Qty     int64  `mapstructure:"qty"`
}

type ArchiveConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

func Load(path string, envOnly bool) (Config, error) {
	// Local development reads secrets (API keys, bot tokens) from .env.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)

	v.SetDefault("store.dir", "data")
	v.SetDefault("model.path", "models/gold_v1.onnx")
	v.SetDefault("model.ort_library", "")

	v.SetDefault("market.symbol", "XAUUSD")
	v.SetDefault("marketdata.polygon.api_key", "")
	v.SetDefault("marketdata.polygon.base_url", "https://api.polygon.io")
	v.SetDefault("marketdata.polygon.symbol", "C:XAUUSD")
	v.SetDefault("marketdata.yahoo.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("marketdata.yahoo.symbol", "GC=F")
	v.SetDefault("marketdata.cache_ttl", "60s")
	v.SetDefault("marketdata.timeout", "15s")

	v.SetDefault("signal.confidence_threshold", 0.70)
	v.SetDefault("signal.bars_days", 30)

	v.SetDefault("performance.min_win_rate", 0.55)
	v.SetDefault("performance.min_profit_factor", 1.2)
	v.SetDefault("performance.min_trades", 20)
	v.SetDefault("performance.window_days", 30)

	v.SetDefault("tracker.max_trade_age", "24h")

	v.SetDefault("engine.tick_interval", "5m")
	v.SetDefault("engine.error_delay", "1m")
	v.SetDefault("engine.autostart", true)

	v.SetDefault("backtest.windows_days", []int{30, 60, 90})
	v.SetDefault("backtest.horizon_bars", 4)
	v.SetDefault("backtest.min_trades", 10)

	v.SetDefault("retrain.enabled", false)
	v.SetDefault("retrain.schedule", "5 0 * * *")
	v.SetDefault("retrain.command", []string{})
	v.SetDefault("retrain.work_dir", "")
	v.SetDefault("retrain.backup_dir", "models/backups")
	v.SetDefault("retrain.flag_dir", "data")
	v.SetDefault("retrain.timeout", "30m")

	v.SetDefault("notify.telegram.enabled", false)
	v.SetDefault("notify.telegram.token", "")
	v.SetDefault("notify.telegram.chat_id", "")
	v.SetDefault("notify.telegram.timeout", "10s")
	v.SetDefault("notify.telegram.retries", 2)

	// 07:00 UTC lands just before the London open.
	v.SetDefault("report.enabled", true)
	v.SetDefault("report.schedule", "0 7 * * *")

	v.SetDefault("broker.enabled", false)
	v.SetDefault("broker.symbol", "GLD")
	v.SetDefault("broker.qty", 1)

	v.SetDefault("archive.enabled", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
