package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"ta-snapshot/internal/indicator"
	"ta-snapshot/internal/model"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	App        AppConfig
	Source     SourceConfig
	OKX        OKXConfig
	SQLite     SQLiteConfig
	Redis      RedisConfig
	Webhook    WebhookConfig
	Indicators IndicatorConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"indengine"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":9095"`
}

// SourceConfig selects where bars come from and which series are evaluated.
type SourceConfig struct {
	Kind         string        `envconfig:"BAR_SOURCE" default:"okx"` // okx | sqlite
	Targets      string        `envconfig:"TARGETS" default:"BTC-USDT-SWAP:1H"`
	BarLimit     int           `envconfig:"BAR_LIMIT" default:"300"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"1m"`
}

type OKXConfig struct {
	BaseURL string        `envconfig:"OKX_BASE_URL" default:"https://www.okx.com"`
	Timeout time.Duration `envconfig:"OKX_TIMEOUT" default:"10s"`
}

type SQLiteConfig struct {
	Path string `envconfig:"SQLITE_PATH" default:"data/bars.db"`
}

type RedisConfig struct {
	Enabled   bool          `envconfig:"REDIS_ENABLED" default:"true"`
	Addr      string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password  string        `envconfig:"REDIS_PASSWORD"`
	DB        int           `envconfig:"REDIS_DB" default:"0"`
	LatestTTL time.Duration `envconfig:"REDIS_LATEST_TTL" default:"30m"`
}

// WebhookConfig enables POSTing every report to an HTTP endpoint.
type WebhookConfig struct {
	URL     string        `envconfig:"WEBHOOK_URL"`
	Timeout time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"10s"`
}

// IndicatorConfig overrides indicator periods. Defaults match
// indicator.DefaultParams.
type IndicatorConfig struct {
	SMAPeriod    int     `envconfig:"IND_SMA_PERIOD" default:"20"`
	EMAPeriod    int     `envconfig:"IND_EMA_PERIOD" default:"20"`
	RSIPeriod    int     `envconfig:"IND_RSI_PERIOD" default:"14"`
	MACDFast     int     `envconfig:"IND_MACD_FAST" default:"12"`
	MACDSlow     int     `envconfig:"IND_MACD_SLOW" default:"26"`
	MACDSignal   int     `envconfig:"IND_MACD_SIGNAL" default:"9"`
	BBPeriod     int     `envconfig:"IND_BB_PERIOD" default:"20"`
	BBK          float64 `envconfig:"IND_BB_K" default:"2.0"`
	ATRPeriod    int     `envconfig:"IND_ATR_PERIOD" default:"14"`
	StochK       int     `envconfig:"IND_STOCH_K" default:"14"`
	StochD       int     `envconfig:"IND_STOCH_D" default:"3"`
	TenkanPeriod int     `envconfig:"IND_TENKAN_PERIOD" default:"9"`
	KijunPeriod  int     `envconfig:"IND_KIJUN_PERIOD" default:"26"`
}

// Params converts the overrides to indicator.Params.
func (c IndicatorConfig) Params() indicator.Params {
	return indicator.Params{
		SMAPeriod:    c.SMAPeriod,
		EMAPeriod:    c.EMAPeriod,
		RSIPeriod:    c.RSIPeriod,
		MACDFast:     c.MACDFast,
		MACDSlow:     c.MACDSlow,
		MACDSignal:   c.MACDSignal,
		BBPeriod:     c.BBPeriod,
		BBK:          c.BBK,
		ATRPeriod:    c.ATRPeriod,
		StochK:       c.StochK,
		StochD:       c.StochD,
		TenkanPeriod: c.TenkanPeriod,
		KijunPeriod:  c.KijunPeriod,
	}
}

// Load reads configuration from environment variables with defaults.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case "okx", "sqlite":
	default:
		return fmt.Errorf("config: BAR_SOURCE=%q must be okx or sqlite", c.Source.Kind)
	}
	if c.Source.BarLimit <= 0 {
		return fmt.Errorf("config: BAR_LIMIT=%d must be positive", c.Source.BarLimit)
	}
	if c.Source.PollInterval <= 0 {
		return fmt.Errorf("config: POLL_INTERVAL=%s must be positive", c.Source.PollInterval)
	}
	if len(c.ParseTargets()) == 0 {
		return fmt.Errorf("config: TARGETS=%q has no valid instID:bar entries", c.Source.Targets)
	}
	if err := c.Indicators.Params().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ParseTargets parses TARGETS ("BTC-USDT-SWAP:1H,ETH-USDT:4H") into series
// keys, skipping malformed entries.
func (c *Config) ParseTargets() []model.SeriesKey {
	parts := strings.Split(c.Source.Targets, ",")
	keys := make([]model.SeriesKey, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		key, ok := model.ParseSeriesKey(p)
		if !ok {
			slog.Warn("config: skipping invalid target", slog.String("target", p))
			continue
		}
		keys = append(keys, key)
	}
	return keys
}
