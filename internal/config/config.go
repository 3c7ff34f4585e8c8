// Package config loads the gateway configuration and watches the
// credibility rules file for changes.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/epion-news/epion/internal/db"
	"github.com/epion-news/epion/internal/tracing"
)

// DefaultPath is used when EPION_CONFIG is not set.
const DefaultPath = "config/epion.yaml"

// Config is the full gateway configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Postgres    db.Config         `mapstructure:"postgres"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Tracing     tracing.Config    `mapstructure:"tracing"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Credibility CredibilityConfig `mapstructure:"credibility"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// AllowedOrigins feeds both CORS and the WebSocket origin check.
	// "*" allows any origin.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type CacheConfig struct {
	SourceTTL time.Duration `mapstructure:"source_ttl"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type CredibilityConfig struct {
	RulesPath string `mapstructure:"rules_path"`
	Watch     bool   `mapstructure:"watch"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	// TrustedProxies lists CIDRs or IPs whose X-Forwarded-For is honored.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "epion")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.database", "epion")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_connections", 25)
	v.SetDefault("postgres.idle_connections", 5)
	v.SetDefault("postgres.max_lifetime", 5*time.Minute)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("cache.source_ttl", 10*time.Minute)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "epion-citations")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")

	v.SetDefault("logging.level", "info")

	v.SetDefault("credibility.rules_path", "config/citation_credibility.yaml")
	v.SetDefault("credibility.watch", true)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_minute", 120)
	v.SetDefault("rate_limit.trusted_proxies", []string{})
}

// Load reads the file named by EPION_CONFIG, or DefaultPath. A missing
// default file is not an error; a missing explicit file is.
func Load() (*Config, error) {
	path := os.Getenv("EPION_CONFIG")
	if path == "" {
		return LoadFile(DefaultPath, true)
	}
	return LoadFile(path, false)
}

// LoadFile reads path on top of the defaults and applies EPION_* environment
// overrides (EPION_POSTGRES_HOST, EPION_RATE_LIMIT_ENABLED, ...).
func LoadFile(path string, optional bool) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("EPION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !optional || !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the gateway cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate_limit.requests_per_minute must be positive when enabled")
	}
	if c.Cache.SourceTTL < 0 {
		return fmt.Errorf("cache.source_ttl must not be negative")
	}
	return nil
}
