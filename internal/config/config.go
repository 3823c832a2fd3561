package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Proxy     ProxyConfig
	Reader    ReaderConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8090"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// ProxyConfig holds embedding proxy configuration.
type ProxyConfig struct {
	Prefix          string        `envconfig:"PROXY_PREFIX" default:"/proxy"`
	UpstreamTimeout time.Duration `envconfig:"PROXY_UPSTREAM_TIMEOUT" default:"30s"`
	MaxRewriteBytes int64         `envconfig:"PROXY_MAX_REWRITE_BYTES" default:"10485760"`
	SSRFGuard       bool          `envconfig:"PROXY_SSRF_GUARD" default:"false"`
	UserAgent       string        `envconfig:"PROXY_USER_AGENT" default:""`
}

// ReaderConfig holds article extraction configuration.
type ReaderConfig struct {
	Timeout      time.Duration `envconfig:"READER_TIMEOUT" default:"20s"`
	MaxBodyBytes int64         `envconfig:"READER_MAX_BODY_BYTES" default:"10485760"`
	RetryMax     int           `envconfig:"READER_RETRY_MAX" default:"2"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8090",
			Host: "0.0.0.0",
		},
		Proxy: ProxyConfig{
			Prefix:          "/proxy",
			UpstreamTimeout: 30 * time.Second,
			MaxRewriteBytes: 10 * 1024 * 1024,
		},
		Reader: ReaderConfig{
			Timeout:      20 * time.Second,
			MaxBodyBytes: 10 * 1024 * 1024,
			RetryMax:     2,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
