package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Tracker: TrackerConfig{
			Interval:     30 * time.Second,
			ThresholdPct: 5.0,
			MaxHistory:   1000,
		},
		Market: MarketConfig{Asset: "USDT", Fiat: "VES"},
	}
}

func TestValidateAccepts(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateRejectsShortInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Tracker.Interval = 5 * time.Second
	err := cfg.Validate()
	if err == nil {
		t.Fatal("interval below 10s must be rejected")
	}
	if !strings.Contains(err.Error(), "interval") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsLongInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Tracker.Interval = 2 * time.Hour
	if cfg.Validate() == nil {
		t.Fatal("interval above 1h must be rejected")
	}
}

func TestValidateRejectsThresholdOutOfRange(t *testing.T) {
	for _, pct := range []float64{-1, 101} {
		cfg := validConfig()
		cfg.Tracker.ThresholdPct = pct
		if cfg.Validate() == nil {
			t.Fatalf("threshold %v must be rejected", pct)
		}
	}
}

func TestValidateRejectsNegativeMinAmount(t *testing.T) {
	cfg := validConfig()
	cfg.Filters.MinAmount = -1
	if cfg.Validate() == nil {
		t.Fatal("negative min_amount must be rejected")
	}
}

func TestValidateTelegramNeedsCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.Enabled = true
	if cfg.Validate() == nil {
		t.Fatal("telegram without credentials must be rejected")
	}

	cfg.Telegram.BotToken = "token"
	if cfg.Validate() == nil {
		t.Fatal("telegram without chat id must be rejected")
	}

	cfg.Telegram.ChatID = "chat"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("complete telegram config rejected: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load with defaults: %v", err)
	}
	if cfg.Tracker.Interval != 30*time.Second {
		t.Fatalf("unexpected default interval: %v", cfg.Tracker.Interval)
	}
	if cfg.Market.Asset != "USDT" || cfg.Market.Fiat != "VES" {
		t.Fatalf("unexpected default pair: %s/%s", cfg.Market.Fiat, cfg.Market.Asset)
	}
	if cfg.Telegram.Enabled {
		t.Fatal("telegram must default to disabled")
	}
}
