package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"p2p-price-tracker/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Tracker   TrackerConfig   `mapstructure:"tracker"`
	Market    MarketConfig    `mapstructure:"market"`
	Filters   FiltersConfig   `mapstructure:"filters"`
	Reference ReferenceConfig `mapstructure:"reference"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// TrackerConfig governs the tracking loop.
type TrackerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	ThresholdPct float64       `mapstructure:"threshold_pct"`
	MaxHistory   int           `mapstructure:"max_history"`
	HistoryDir   string        `mapstructure:"history_dir"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// MarketConfig captures marketplace connectivity.
type MarketConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Asset          string        `mapstructure:"asset"`
	Fiat           string        `mapstructure:"fiat"`
	Rows           int           `mapstructure:"rows"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// FiltersConfig selects which offers are actionable.
type FiltersConfig struct {
	PaymentMethods []string `mapstructure:"payment_methods"`
	ExcludeMethods []string `mapstructure:"exclude_methods"`
	MinAmount      float64  `mapstructure:"min_amount"`
}

// ReferenceConfig covers the official reference rate source.
type ReferenceConfig struct {
	Endpoints      []string      `mapstructure:"endpoints"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// TelegramConfig describes the notifier credentials and routing.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// DatabaseConfig encapsulates optional PostgreSQL alert auditing.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("P2PTRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "p2ptracker")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("tracker.interval", "30s")
	v.SetDefault("tracker.threshold_pct", 5.0)
	v.SetDefault("tracker.max_history", 1000)
	v.SetDefault("tracker.history_dir", ".")
	v.SetDefault("tracker.startup_delay", "0s")

	v.SetDefault("market.base_url", "https://p2p.binance.com")
	v.SetDefault("market.asset", "USDT")
	v.SetDefault("market.fiat", "VES")
	v.SetDefault("market.rows", 10)
	v.SetDefault("market.max_retries", 3)
	v.SetDefault("market.request_timeout", "10s")

	v.SetDefault("filters.exclude_methods", []string{})
	v.SetDefault("filters.min_amount", 0.0)

	v.SetDefault("reference.cache_ttl", "1h")
	v.SetDefault("reference.request_timeout", "5s")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.api_base", "https://api.telegram.org")

	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs sanity checks on the configuration values. Invalid
// combinations fail here, before the loop starts.
func (c *Config) Validate() error {
	if c.Tracker.Interval < 10*time.Second {
		return fmt.Errorf("tracker.interval must be at least 10s to avoid rate limits")
	}
	if c.Tracker.Interval > time.Hour {
		return fmt.Errorf("tracker.interval must not exceed 1h")
	}
	if c.Tracker.ThresholdPct < 0 || c.Tracker.ThresholdPct > 100 {
		return fmt.Errorf("tracker.threshold_pct must be between 0 and 100")
	}
	if c.Tracker.MaxHistory <= 0 {
		return fmt.Errorf("tracker.max_history must be greater than zero")
	}
	if c.Filters.MinAmount < 0 {
		return fmt.Errorf("filters.min_amount must be non-negative")
	}
	if c.Market.Asset == "" || c.Market.Fiat == "" {
		return fmt.Errorf("market.asset and market.fiat are required")
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}
