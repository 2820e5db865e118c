package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"ApexScreener/internal/model"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	DataSource struct {
		Provider          string  `yaml:"provider"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		HistoryFrom       string  `yaml:"history_from"`
	} `yaml:"data_source"`
	Screener struct {
		Patterns           []string      `yaml:"patterns"`
		ComputeWinRate     bool          `yaml:"compute_win_rate"`
		ForwardHorizonDays int           `yaml:"forward_horizon_days"`
		UnresolvedAsLoss   bool          `yaml:"unresolved_as_loss"`
		RecencyDays        int           `yaml:"recency_days"`
		MinPrice           float64       `yaml:"min_price"`
		Concurrency        int           `yaml:"concurrency"`
		MaxAttempts        int           `yaml:"max_attempts"`
		RetryBackoff       time.Duration `yaml:"retry_backoff"`
		Tickers            []string      `yaml:"tickers"`
		TickerFallbackFile string        `yaml:"ticker_fallback_file"`
		SECUserAgent       string        `yaml:"sec_user_agent"`
	} `yaml:"screener"`
	Cache struct {
		SQLitePath     string `yaml:"sqlite_path"`
		Timezone       string `yaml:"timezone"`
		FreshAfterHour int    `yaml:"fresh_after_hour"`
	} `yaml:"cache"`
	Schedule struct {
		RefreshCron string `yaml:"refresh_cron"`
	} `yaml:"schedule"`
	Logging struct {
		Level         string `yaml:"level"`
		Format        string `yaml:"format"`
		FileEnabled   bool   `yaml:"file_enabled"`
		FilePath      string `yaml:"file_path"`
		RotationMB    int    `yaml:"rotation_mb"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"logging"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"TELEGRAM_BOT_TOKEN": &c.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":   &c.Telegram.ChatID,
		"HTTPS_PROXY":        &c.Proxy,
		"SQLITE_PATH":        &c.Cache.SQLitePath,
		"CACHE_TIMEZONE":     &c.Cache.Timezone,
		"CRON_REFRESH":       &c.Schedule.RefreshCron,
		"SEC_USER_AGENT":     &c.Screener.SECUserAgent,
		"LOG_LEVEL":          &c.Logging.Level,
		"LOG_FORMAT":         &c.Logging.Format,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"FORWARD_HORIZON_DAYS": &c.Screener.ForwardHorizonDays,
		"RECENCY_DAYS":         &c.Screener.RecencyDays,
		"SCREENER_CONCURRENCY": &c.Screener.Concurrency,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("env %s: %w", key, err)
			}
			*dst = n
		}
	}

	if v := os.Getenv("MIN_PRICE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("env MIN_PRICE: %w", err)
		}
		c.Screener.MinPrice = f
	}
	if v := os.Getenv("COMPUTE_WIN_RATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("env COMPUTE_WIN_RATE: %w", err)
		}
		c.Screener.ComputeWinRate = b
	}
	if v := os.Getenv("SCREENER_TICKERS"); v != "" {
		c.Screener.Tickers = strings.Split(v, ",")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.DataSource.Provider == "" {
		c.DataSource.Provider = "yahoo"
	}
	if c.DataSource.RequestsPerSecond == 0 {
		c.DataSource.RequestsPerSecond = 2
	}
	if c.DataSource.HistoryFrom == "" {
		c.DataSource.HistoryFrom = "1950-01-01"
	}
	if len(c.Screener.Patterns) == 0 {
		c.Screener.Patterns = []string{string(model.BullAppear), string(model.BullRaging)}
	}
	if c.Screener.ForwardHorizonDays == 0 {
		c.Screener.ForwardHorizonDays = 20
	}
	if c.Screener.RecencyDays == 0 {
		c.Screener.RecencyDays = 5
	}
	if c.Screener.MinPrice == 0 {
		c.Screener.MinPrice = 20
	}
	if c.Screener.Concurrency == 0 {
		c.Screener.Concurrency = 4
	}
	if c.Screener.MaxAttempts == 0 {
		c.Screener.MaxAttempts = 3
	}
	if c.Screener.RetryBackoff == 0 {
		c.Screener.RetryBackoff = 10 * time.Minute
	}
	if c.Screener.TickerFallbackFile == "" {
		c.Screener.TickerFallbackFile = "data/sec_company_tickers.json"
	}
	if c.Screener.SECUserAgent == "" {
		c.Screener.SECUserAgent = "ApexScreener admin@example.com"
	}
	if c.Cache.SQLitePath == "" {
		c.Cache.SQLitePath = "data/apex_screener.db"
	}
	if c.Cache.Timezone == "" {
		c.Cache.Timezone = "Asia/Singapore"
	}
	if c.Cache.FreshAfterHour == 0 {
		c.Cache.FreshAfterHour = 5
	}
	if c.Schedule.RefreshCron == "" {
		c.Schedule.RefreshCron = "0 0 6 * * 2-6"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "pretty"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs"
	}
	if c.Logging.RotationMB == 0 {
		c.Logging.RotationMB = 50
	}
	if c.Logging.RetentionDays == 0 {
		c.Logging.RetentionDays = 14
	}
}

// Validate checks that all required fields are set and parse.
func (c *Config) Validate() error {
	if c.DataSource.Provider != "yahoo" && c.DataSource.Provider != "mock" {
		return fmt.Errorf("data_source.provider %q is not supported", c.DataSource.Provider)
	}
	if _, err := c.HistoryStart(); err != nil {
		return err
	}
	if _, err := c.PatternKinds(); err != nil {
		return err
	}
	if c.Screener.ForwardHorizonDays < 1 {
		return fmt.Errorf("screener.forward_horizon_days must be positive")
	}
	if c.Screener.RecencyDays < 0 {
		return fmt.Errorf("screener.recency_days must not be negative")
	}
	if c.Screener.Concurrency < 1 {
		return fmt.Errorf("screener.concurrency must be positive")
	}
	if c.Screener.MaxAttempts < 1 {
		return fmt.Errorf("screener.max_attempts must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Cache.FreshAfterHour < 0 || c.Cache.FreshAfterHour > 23 {
		return fmt.Errorf("cache.fresh_after_hour must be within 0-23")
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.Schedule.RefreshCron); err != nil {
		return fmt.Errorf("schedule.refresh_cron: %w", err)
	}
	return nil
}

// ValidateTelegram checks the fields the long-running bot needs.
func (c *Config) ValidateTelegram() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	return nil
}

// PatternKinds parses screener.patterns.
func (c *Config) PatternKinds() ([]model.PatternKind, error) {
	out := make([]model.PatternKind, 0, len(c.Screener.Patterns))
	for _, p := range c.Screener.Patterns {
		k, err := model.ParsePatternKind(p)
		if err != nil {
			return nil, fmt.Errorf("screener.patterns: %w", err)
		}
		out = append(out, k)
	}
	return out, nil
}

// HistoryStart parses data_source.history_from.
func (c *Config) HistoryStart() (time.Time, error) {
	t, err := model.ParseDate(c.DataSource.HistoryFrom)
	if err != nil {
		return time.Time{}, fmt.Errorf("data_source.history_from: %w", err)
	}
	return t, nil
}

// Location loads cache.timezone, the zone freshness is judged in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Cache.Timezone)
	if err != nil {
		return nil, fmt.Errorf("cache.timezone: %w", err)
	}
	return loc, nil
}
