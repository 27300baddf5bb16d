// Package config loads the server configuration from a YAML file overlaid by
// BITESCOUT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when neither --config nor BITESCOUT_CONFIG is set.
const DefaultConfigPath = "config.yaml"

// ConfigPathEnv names the environment variable holding the config path.
const ConfigPathEnv = "BITESCOUT_CONFIG"

// AppConfig carries command-line inputs into the app package.
type AppConfig struct {
	ConfigPath string
}

// Config is the full server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	JWT       JWTConfig       `yaml:"jwt"`
	Realtime  RealtimeConfig  `yaml:"realtime"`
	Redis     RedisConfig     `yaml:"redis"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr              string        `yaml:"addr" env:"BITESCOUT_ADDR"`
	Mode              string        `yaml:"mode" env:"BITESCOUT_GIN_MODE"` // gin mode: debug, release or test
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	TrustedProxies    []string      `yaml:"trusted_proxies" env:"BITESCOUT_TRUSTED_PROXIES" envSeparator:","`
}

// DatabaseConfig selects the database and sizes its pool.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" env:"BITESCOUT_DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// JWTConfig holds signing settings for user tokens.
type JWTConfig struct {
	Secret string        `yaml:"secret" env:"BITESCOUT_JWT_SECRET"`
	Issuer string        `yaml:"issuer"`
	Expiry time.Duration `yaml:"expiry"`
}

// RealtimeConfig tunes the websocket channel.
type RealtimeConfig struct {
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	SendBuffer       int           `yaml:"send_buffer"`
	RequireToken     bool          `yaml:"require_token" env:"BITESCOUT_REALTIME_REQUIRE_TOKEN"`
	AllowedOrigins   []string      `yaml:"allowed_origins" env:"BITESCOUT_ALLOWED_ORIGINS" envSeparator:","`
}

// RedisConfig enables the cross-instance notification backplane when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"BITESCOUT_REDIS_ADDR"`
	Password string `yaml:"password" env:"BITESCOUT_REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// LoggingConfig controls logrus output and optional file rotation.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"BITESCOUT_LOG_LEVEL"`
	Format     string `yaml:"format" env:"BITESCOUT_LOG_FORMAT"` // text or json
	File       string `yaml:"file" env:"BITESCOUT_LOG_FILE"`     // empty logs to stderr only
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// RateLimitConfig bounds mutating access requests per client IP.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Defaults returns the configuration used for keys the file and environment leave unset.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8080",
			Mode:              "release",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		Database: DatabaseConfig{
			DSN: "file:data/bitescout.db",
		},
		JWT: JWTConfig{
			Issuer: "bitescout",
			Expiry: 24 * time.Hour,
		},
		Realtime: RealtimeConfig{
			HandshakeTimeout: 10 * time.Second,
			WriteTimeout:     10 * time.Second,
			PingInterval:     30 * time.Second,
			SendBuffer:       32,
			RequireToken:     true,
		},
		Redis: RedisConfig{
			Channel: "bitescout:notifications",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 5,
			Burst:             10,
		},
	}
}

// ResolveConfigPath picks the flag value, then BITESCOUT_CONFIG, then DefaultConfigPath.
func ResolveConfigPath(flagValue string) string {
	if p := strings.TrimSpace(flagValue); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(ConfigPathEnv)); p != "" {
		return p
	}
	return DefaultConfigPath
}

// ConfigExists reports whether a config file is present at path.
func ConfigExists(path string) bool {
	info, errStat := os.Stat(path)
	return errStat == nil && !info.IsDir()
}

// Load reads path (a missing file means defaults only), applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		raw, errRead := os.ReadFile(path)
		switch {
		case errRead == nil:
			if errUnmarshal := yaml.Unmarshal(raw, &cfg); errUnmarshal != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
			}
		case errors.Is(errRead, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("config: read %s: %w", path, errRead)
		}
	}
	if errEnv := env.Parse(&cfg); errEnv != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", errEnv)
	}
	if errValidate := cfg.Validate(); errValidate != nil {
		return Config{}, errValidate
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("config: database.dsn is required")
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("config: jwt.secret is required (or set BITESCOUT_JWT_SECRET)")
	}
	if c.JWT.Expiry <= 0 {
		return errors.New("config: jwt.expiry must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return errors.New("config: rate_limit requires positive requests_per_second and burst")
	}
	return nil
}
