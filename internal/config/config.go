// Package config loads service configuration from defaults, an optional YAML
// file, a .env file and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Summary   SummaryConfig   `yaml:"summary"`
	Refresh   RefreshConfig   `yaml:"refresh"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port               int           `yaml:"port" env:"PORT"`
	ReadTimeout        time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout       time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout        time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT"`
	CORSAllowedOrigins string        `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
}

// DatabaseConfig selects the record store. An empty DSN selects the in-memory store.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" env:"DATABASE_URL"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
}

// UpstreamConfig points at the two data providers.
type UpstreamConfig struct {
	CountriesURL    string        `yaml:"countries_url" env:"COUNTRIES_API_URL"`
	ExchangeRateURL string        `yaml:"exchange_rate_url" env:"EXCHANGE_RATE_API_URL"`
	Timeout         time.Duration `yaml:"timeout" env:"UPSTREAM_TIMEOUT"`
}

// SummaryConfig controls summary image rendering.
type SummaryConfig struct {
	CacheDir      string        `yaml:"cache_dir" env:"CACHE_DIR"`
	ChromePath    string        `yaml:"chrome_path" env:"CHROME_PATH"`
	NoSandbox     bool          `yaml:"no_sandbox" env:"CHROME_NO_SANDBOX"`
	RenderTimeout time.Duration `yaml:"render_timeout" env:"RENDER_TIMEOUT"`
}

// RefreshConfig controls scheduled refreshes and the refresh lock.
type RefreshConfig struct {
	Schedule string        `yaml:"schedule" env:"REFRESH_SCHEDULE"`
	OnStart  bool          `yaml:"on_start" env:"REFRESH_ON_START"`
	LockTTL  time.Duration `yaml:"lock_ttl" env:"REFRESH_LOCK_TTL"`
}

// RedisConfig enables the shared refresh lock when Addr is set.
type RedisConfig struct {
	Addr      string `yaml:"addr" env:"REDIS_ADDR"`
	Password  string `yaml:"password" env:"REDIS_PASSWORD"`
	DB        int    `yaml:"db" env:"REDIS_DB"`
	Namespace string `yaml:"namespace" env:"REDIS_NAMESPACE"`
}

// RateLimitConfig throttles inbound requests per client. RPS 0 disables it.
type RateLimitConfig struct {
	RPS   int `yaml:"rps" env:"RATE_LIMIT_RPS"`
	Burst int `yaml:"burst" env:"RATE_LIMIT_BURST"`
}

// LoggingConfig selects log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               3000,
			ReadTimeout:        30 * time.Second,
			WriteTimeout:       120 * time.Second,
			IdleTimeout:        120 * time.Second,
			CORSAllowedOrigins: "*",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Upstream: UpstreamConfig{
			CountriesURL:    "https://restcountries.com/v2/all?fields=name,capital,region,population,flag,currencies",
			ExchangeRateURL: "https://open.er-api.com/v6/latest/USD",
			Timeout:         30 * time.Second,
		},
		Summary: SummaryConfig{
			CacheDir:      "cache",
			RenderTimeout: 30 * time.Second,
		},
		Refresh: RefreshConfig{
			LockTTL: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Namespace: "countries",
		},
		RateLimit: RateLimitConfig{
			Burst: 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration. CONFIG_FILE names an optional YAML file; a .env
// file in the working directory is loaded when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	for name, raw := range map[string]string{
		"countries_url":     c.Upstream.CountriesURL,
		"exchange_rate_url": c.Upstream.ExchangeRateURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("upstream %s must be an absolute http(s) URL, got %q", name, raw)
		}
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream timeout must be positive")
	}
	if c.Summary.RenderTimeout <= 0 {
		return fmt.Errorf("render timeout must be positive")
	}
	if strings.TrimSpace(c.Summary.CacheDir) == "" {
		return fmt.Errorf("cache dir is required")
	}
	if c.Refresh.LockTTL <= 0 {
		return fmt.Errorf("refresh lock ttl must be positive")
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit values must not be negative")
	}
	return nil
}

// refreshSlack covers store writes and response encoding on top of the
// upstream and render budgets.
const refreshSlack = 10 * time.Second

// RefreshBudget is the longest a synchronous refresh can run: both upstream
// fetches plus the summary render.
func (c *Config) RefreshBudget() time.Duration {
	return 2*c.Upstream.Timeout + c.Summary.RenderTimeout
}

// HTTPWriteTimeout returns the server write timeout, raised when needed so a
// refresh response is never cut off.
func (c *Config) HTTPWriteTimeout() time.Duration {
	if c.Server.WriteTimeout <= 0 {
		return 0
	}
	if floor := c.RefreshBudget() + refreshSlack; c.Server.WriteTimeout < floor {
		return floor
	}
	return c.Server.WriteTimeout
}

// AllowedOrigins splits the CORS origin list.
func (c *Config) AllowedOrigins() []string {
	return splitAndTrimCSV(c.Server.CORSAllowedOrigins)
}

func splitAndTrimCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
