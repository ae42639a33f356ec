package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	HTTPPort         int    `envconfig:"HTTP_PORT" default:"8080"`
	APIKey           string `envconfig:"API_KEY"`
	DatabaseURL      string `envconfig:"DATABASE_URL"`
	RedisURL         string `envconfig:"REDIS_URL"`
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramRateMin  int    `envconfig:"TELEGRAM_RATE_LIMIT_PER_MIN" default:"20"`
	LogLevel         string `envconfig:"LOG_LEVEL" default:"info"`

	Rates   RatesConfig
	Live    LiveConfig
	Tracing TracingConfig
	MCP     MCPConfig

	// Warnings collects non-fatal problems found while loading, for the
	// caller to log once a logger exists.
	Warnings []string `ignored:"true"`
}

type RatesConfig struct {
	BaseCurrency string `envconfig:"BASE_CURRENCY" default:"DZD"`
	File         string `envconfig:"RATES_FILE"`
	Strict       bool   `envconfig:"STRICT_CONVERSION" default:"false"`
	ReloadSecs   int    `envconfig:"RATE_RELOAD_SECS" default:"300"`
}

type LiveConfig struct {
	Policy              string   `envconfig:"LIVE_POLICY" default:"multi"`
	MinIntervalMS       int      `envconfig:"LIVE_MIN_INTERVAL_MS"`
	MaxIntervalMS       int      `envconfig:"LIVE_MAX_INTERVAL_MS"`
	Assets              []string `envconfig:"LIVE_ASSETS"`
	PublishIntervalSecs int      `envconfig:"PUBLISH_INTERVAL_SECS" default:"2"`
	SnapshotTTLSecs     int      `envconfig:"SNAPSHOT_TTL_SECS" default:"30"`
}

type TracingConfig struct {
	Enabled     bool    `envconfig:"TRACING_ENABLED" default:"true"`
	Endpoint    string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
	SampleRatio float64 `envconfig:"TRACING_SAMPLE_RATIO" default:"1"`
}

type MCPConfig struct {
	Transport          string `envconfig:"MCP_TRANSPORT" default:"stdio"`
	HTTPBind           string `envconfig:"MCP_HTTP_BIND" default:"127.0.0.1"`
	HTTPPort           int    `envconfig:"MCP_HTTP_PORT" default:"8090"`
	AuthToken          string `envconfig:"MCP_AUTH_TOKEN"`
	RateLimitPerMin    int    `envconfig:"MCP_RATE_LIMIT_PER_MIN" default:"60"`
	RequestTimeoutSecs int    `envconfig:"MCP_REQUEST_TIMEOUT_SECS" default:"5"`
}

// Load reads the configuration from the environment. Call godotenv first to
// pick up a .env file.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.Rates.BaseCurrency = strings.ToUpper(strings.TrimSpace(c.Rates.BaseCurrency))
	if c.Rates.BaseCurrency == "" {
		return fmt.Errorf("BASE_CURRENCY must not be empty")
	}

	c.Live.Policy = strings.ToLower(strings.TrimSpace(c.Live.Policy))
	if c.Live.Policy != "single" && c.Live.Policy != "multi" {
		return fmt.Errorf("unsupported LIVE_POLICY=%q, expected single or multi", c.Live.Policy)
	}
	if c.Live.MinIntervalMS < 0 || c.Live.MaxIntervalMS < 0 {
		return fmt.Errorf("live intervals must not be negative")
	}
	if c.Live.MinIntervalMS > 0 && c.Live.MaxIntervalMS > 0 && c.Live.MinIntervalMS > c.Live.MaxIntervalMS {
		return fmt.Errorf("LIVE_MIN_INTERVAL_MS (%d) exceeds LIVE_MAX_INTERVAL_MS (%d)", c.Live.MinIntervalMS, c.Live.MaxIntervalMS)
	}
	if (c.Live.MinIntervalMS > 0) != (c.Live.MaxIntervalMS > 0) {
		c.warn("LIVE_MIN_INTERVAL_MS and LIVE_MAX_INTERVAL_MS must be set together, using policy defaults")
		c.Live.MinIntervalMS, c.Live.MaxIntervalMS = 0, 0
	}

	assets := c.Live.Assets[:0]
	for _, a := range c.Live.Assets {
		if a = strings.ToUpper(strings.TrimSpace(a)); a != "" {
			assets = append(assets, a)
		}
	}
	c.Live.Assets = assets

	c.MCP.Transport = strings.ToLower(strings.TrimSpace(c.MCP.Transport))
	if c.MCP.Transport != "stdio" && c.MCP.Transport != "http" {
		c.warn(fmt.Sprintf("unsupported MCP_TRANSPORT=%q, defaulting to stdio", c.MCP.Transport))
		c.MCP.Transport = "stdio"
	}

	positive(&c.HTTPPort, 8080)
	positive(&c.Rates.ReloadSecs, 300)
	positive(&c.Live.PublishIntervalSecs, 2)
	positive(&c.Live.SnapshotTTLSecs, 30)
	positive(&c.MCP.HTTPPort, 8090)
	positive(&c.MCP.RequestTimeoutSecs, 5)

	if !(c.Tracing.SampleRatio >= 0 && c.Tracing.SampleRatio <= 1) {
		c.warn(fmt.Sprintf("TRACING_SAMPLE_RATIO=%v out of range, using 1", c.Tracing.SampleRatio))
		c.Tracing.SampleRatio = 1
	}

	if c.TelegramBotToken == "" {
		c.warn("TELEGRAM_BOT_TOKEN not set")
	}
	if c.RedisURL == "" {
		c.warn("REDIS_URL not set, live snapshots will not be shared")
	}
	return nil
}

// LiveWindow returns the configured tick window, or zeros when the policy
// defaults apply.
func (c *Config) LiveWindow() (time.Duration, time.Duration) {
	return time.Duration(c.Live.MinIntervalMS) * time.Millisecond, time.Duration(c.Live.MaxIntervalMS) * time.Millisecond
}

func (c *Config) warn(msg string) {
	c.Warnings = append(c.Warnings, msg)
}

func positive(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}
