// Package config loads and validates the application configuration from a
// YAML file with environment variable overrides.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/models"
)

// Upstream selects which fetcher the monitor polls.
const (
	UpstreamDev        = "dev"
	UpstreamPolymarket = "polymarket"
	UpstreamPrice      = "price"
	UpstreamMulti      = "multi"
)

// Config represents the complete application configuration
type Config struct {
	Monitor    MonitorConfig      `mapstructure:"monitor"`
	Dev        DevConfig          `mapstructure:"dev"`
	HTTP       HTTPConfig         `mapstructure:"http"`
	Polymarket PolymarketConfig   `mapstructure:"polymarket"`
	Price      PriceConfig        `mapstructure:"price"`
	Webhook    WebhookConfig      `mapstructure:"webhook"`
	Telegram   TelegramConfig     `mapstructure:"telegram"`
	Logging    LoggingConfig      `mapstructure:"logging"`
	Rules      []models.AlertRule `mapstructure:"rules"`
}

// MonitorConfig holds poll loop configuration
type MonitorConfig struct {
	Upstream     string        `mapstructure:"upstream"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// DevConfig holds the development feed endpoint
type DevConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// HTTPConfig holds shared HTTP client behavior
type HTTPConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// PolymarketConfig holds Polymarket CLOB API configuration
type PolymarketConfig struct {
	CLOBAPIURL string            `mapstructure:"clob_api_url"`
	Markets    map[string]string `mapstructure:"markets"`
}

// PriceConfig holds the exchange candle feed configuration
type PriceConfig struct {
	Provider        string `mapstructure:"provider"`
	ExchangeAPIURL  string `mapstructure:"exchange_api_url"`
	Symbol          string `mapstructure:"symbol"`
	IntervalMinutes int    `mapstructure:"interval_minutes"`
}

// WebhookConfig holds alert delivery configuration
type WebhookConfig struct {
	URL string `mapstructure:"url"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	Enabled  bool   `mapstructure:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	setDefaults(v)

	// Enable environment variable override, e.g. CPM_TELEGRAM_BOT_TOKEN
	v.SetEnvPrefix("CPM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Rule IDs are positional so that per-rule state survives reloads with
	// unchanged rule order.
	for i := range cfg.Rules {
		cfg.Rules[i].ID = fmt.Sprintf("rule-%02d", i)
		cfg.Rules[i].ApplyDefaults()
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("monitor.upstream", UpstreamDev)
	v.SetDefault("monitor.poll_interval", "30s")

	v.SetDefault("http.timeout", "20s")
	v.SetDefault("http.max_retries", 5)

	v.SetDefault("polymarket.clob_api_url", "https://clob.polymarket.com")

	v.SetDefault("price.provider", "coinbase")
	v.SetDefault("price.exchange_api_url", "https://api.exchange.coinbase.com")
	v.SetDefault("price.symbol", "BTC-USD")
	v.SetDefault("price.interval_minutes", 15)

	v.SetDefault("telegram.enabled", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	switch c.Monitor.Upstream {
	case UpstreamDev:
		if c.Dev.BaseURL == "" {
			return fmt.Errorf("dev.base_url is required when monitor.upstream is %q", UpstreamDev)
		}
	case UpstreamPolymarket:
		if err := c.validatePolymarket(); err != nil {
			return err
		}
	case UpstreamPrice:
		if err := c.validatePrice(); err != nil {
			return err
		}
	case UpstreamMulti:
		if err := c.validatePolymarket(); err != nil {
			return err
		}
		if err := c.validatePrice(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("monitor.upstream must be one of: dev, polymarket, price, multi")
	}

	if c.Monitor.PollInterval <= 0 {
		return fmt.Errorf("monitor.poll_interval must be positive")
	}

	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive")
	}
	if c.HTTP.MaxRetries < 1 {
		return fmt.Errorf("http.max_retries must be at least 1")
	}

	if c.Webhook.URL != "" {
		u, err := url.Parse(c.Webhook.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("webhook.url must be a valid http(s) URL")
		}
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	for i, rule := range c.Rules {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("rules[%d]: %w", i, err)
		}
	}

	return nil
}

func (c *Config) validatePolymarket() error {
	if c.Polymarket.CLOBAPIURL == "" {
		return fmt.Errorf("polymarket.clob_api_url is required")
	}
	if len(c.Polymarket.Markets) == 0 {
		return fmt.Errorf("polymarket.markets must contain at least one market")
	}
	for id, tokenID := range c.Polymarket.Markets {
		if tokenID == "" {
			return fmt.Errorf("polymarket.markets[%s]: token ID is required", id)
		}
	}
	return nil
}

func (c *Config) validatePrice() error {
	if c.Price.Provider != "coinbase" {
		return fmt.Errorf("price.provider must be %q", "coinbase")
	}
	if c.Price.ExchangeAPIURL == "" {
		return fmt.Errorf("price.exchange_api_url is required")
	}
	if c.Price.Symbol == "" {
		return fmt.Errorf("price.symbol is required")
	}
	if c.Price.IntervalMinutes < 1 {
		return fmt.Errorf("price.interval_minutes must be at least 1")
	}
	return nil
}
