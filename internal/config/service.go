package config

import (
	"fmt"
	"strings"
	"time"
)

type ServerConfig struct {
	Addr string `json:"addr"`
	// MaxConcurrentRuns bounds searches executing at once; extra submissions
	// queue.
	MaxConcurrentRuns int `json:"max_concurrent_runs"`
	// RateLimit is the sustained run submissions per second; 0 disables it.
	RateLimit       float64       `json:"rate_limit"`
	Burst           int           `json:"burst"`
	MaxBodyBytes    int64         `json:"max_body_bytes"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.MaxConcurrentRuns == 0 {
		c.MaxConcurrentRuns = 2
	}
	if c.Burst == 0 {
		c.Burst = 5
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 4 << 20
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 15 * time.Second
	}
}

func (c ServerConfig) Validate() error {
	switch {
	case c.MaxConcurrentRuns < 1:
		return fmt.Errorf("max_concurrent_runs must be positive")
	case c.RateLimit < 0:
		return fmt.Errorf("rate_limit must not be negative")
	case c.Burst < 1:
		return fmt.Errorf("burst must be positive")
	case c.MaxBodyBytes < 1:
		return fmt.Errorf("max_body_bytes must be positive")
	}
	return nil
}

type StoreConfig struct {
	// Driver is "memory" or "postgres".
	Driver  string `json:"driver"`
	DSN     string `json:"dsn"`
	Migrate bool   `json:"migrate"`
}

func (c *StoreConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "memory"
	}
}

func (c StoreConfig) Validate() error {
	switch c.Driver {
	case "memory":
	case "postgres":
		if c.DSN == "" {
			return fmt.Errorf("dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown driver %s", c.Driver)
	}
	return nil
}

type BrokerConfig struct {
	// Driver is "memory" or "redis".
	Driver string `json:"driver"`
	URL    string `json:"url"`
	Prefix string `json:"prefix"`
}

func (c *BrokerConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "memory"
	}
	if c.Prefix == "" {
		c.Prefix = "lnskit"
	}
}

func (c BrokerConfig) Validate() error {
	switch c.Driver {
	case "memory":
	case "redis":
		if c.URL == "" {
			return fmt.Errorf("url is required for redis")
		}
	default:
		return fmt.Errorf("unknown driver %s", c.Driver)
	}
	return nil
}

type LoggingConfig struct {
	// Level is a zerolog level name.
	Level string `json:"level"`
	// Format is "json" or "console".
	Format string `json:"format"`
}

func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "json"
	}
}

func (c LoggingConfig) Validate() error {
	switch c.Level {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("unknown level %s", c.Level)
	}
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("unknown format %s", c.Format)
	}
	return nil
}

// WebhookConfig enables completion callbacks when URL is set.
type WebhookConfig struct {
	URL         string `json:"url"`
	Secret      string `json:"secret"`
	MaxAttempts int    `json:"max_attempts"`
}

func (c *WebhookConfig) SetDefaults() {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 5
	}
}

func (c WebhookConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be positive")
	}
	if c.URL != "" && !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return fmt.Errorf("url must be http or https")
	}
	return nil
}
