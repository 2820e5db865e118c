package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"ApexScreener/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_CHAT_ID", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Screener.ForwardHorizonDays != 20 || cfg.Screener.RecencyDays != 5 || cfg.Screener.MinPrice != 20 {
		t.Errorf("screener defaults = %+v", cfg.Screener)
	}
	if cfg.Screener.MaxAttempts != 3 || cfg.Screener.RetryBackoff != 10*time.Minute {
		t.Errorf("retry defaults = %d, %v", cfg.Screener.MaxAttempts, cfg.Screener.RetryBackoff)
	}
	kinds, _ := cfg.PatternKinds()
	if !reflect.DeepEqual(kinds, model.AllPatterns) {
		t.Errorf("patterns = %v", kinds)
	}
	start, _ := cfg.HistoryStart()
	if !start.Equal(model.Day(1950, 1, 1)) {
		t.Errorf("history start = %v", start)
	}
	if cfg.Cache.FreshAfterHour != 5 || cfg.Cache.Timezone != "Asia/Singapore" {
		t.Errorf("cache defaults = %+v", cfg.Cache)
	}
	if err := cfg.ValidateTelegram(); err == nil {
		t.Error("telegram should be required for the bot")
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
telegram:
  bot_token: file-token
  chat_id: "42"
screener:
  patterns: [apexBullAppear]
  retry_backoff: 90s
  min_price: 5
cache:
  timezone: UTC
`)
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("RECENCY_DAYS", "10")
	t.Setenv("SCREENER_TICKERS", "AAPL,MSFT")
	t.Setenv("COMPUTE_WIN_RATE", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if err := cfg.ValidateTelegram(); err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.BotToken != "env-token" || cfg.Telegram.ChatID != "42" {
		t.Errorf("telegram = %+v", cfg.Telegram)
	}
	if cfg.Screener.RecencyDays != 10 || !cfg.Screener.ComputeWinRate || cfg.Screener.MinPrice != 5 {
		t.Errorf("screener = %+v", cfg.Screener)
	}
	if cfg.Screener.RetryBackoff != 90*time.Second {
		t.Errorf("retry backoff = %v", cfg.Screener.RetryBackoff)
	}
	if !reflect.DeepEqual(cfg.Screener.Tickers, []string{"AAPL", "MSFT"}) {
		t.Errorf("tickers = %v", cfg.Screener.Tickers)
	}
	kinds, err := cfg.PatternKinds()
	if err != nil || !reflect.DeepEqual(kinds, []model.PatternKind{model.BullAppear}) {
		t.Errorf("patterns = %v, %v", kinds, err)
	}
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("FORWARD_HORIZON_DAYS", "twenty")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for non-numeric horizon")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown pattern", func(c *Config) { c.Screener.Patterns = []string{"cup_and_handle"} }},
		{"bad history date", func(c *Config) { c.DataSource.HistoryFrom = "1950/01/01" }},
		{"zero horizon", func(c *Config) { c.Screener.ForwardHorizonDays = -1 }},
		{"bad timezone", func(c *Config) { c.Cache.Timezone = "Mars/Olympus" }},
		{"bad hour", func(c *Config) { c.Cache.FreshAfterHour = 24 }},
		{"bad cron", func(c *Config) { c.Schedule.RefreshCron = "every day" }},
		{"bad provider", func(c *Config) { c.DataSource.Provider = "bloomberg" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
