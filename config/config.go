// Package config loads the admin console's process configuration from the
// environment. A .env file in the working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/wispberry-tech/wispy-admin/core"
)

// ErrInvalidBackend is returned when a backend selector names no known backend
var ErrInvalidBackend = errors.New("invalid backend")

// Entity data backends
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendREST     = "rest"
)

// Session slot backends
const (
	SessionMemory   = "memory"
	SessionSQLite   = "sqlite"
	SessionPostgres = "postgres"
	SessionRedis    = "redis"
)

// Config is the full process configuration
type Config struct {
	Server  ServerConfig
	Data    DataConfig
	Session SessionConfig
	Admin   AdminConfig
}

type ServerConfig struct {
	Addr         string `validate:"required"`
	LogLevel     slog.Level
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DataConfig selects where entity records live
type DataConfig struct {
	Backend     string
	DatabaseDSN string `validate:"required_unless=Backend rest"`
	RESTURL     string `validate:"required_if=Backend rest"`
	RESTAPIKey  string
	RESTSchema  string
}

// SessionConfig selects where the admin session slots live
type SessionConfig struct {
	Backend  string
	DSN      string `validate:"required_if=Backend sqlite,required_if=Backend postgres"`
	RedisURL string `validate:"required_if=Backend redis"`
	Timeout  time.Duration
}

// AdminConfig feeds the login policy
type AdminConfig struct {
	Identifier string
	Secret     string `validate:"required_with=Identifier"`
	Markers    []string
	Domains    []string
}

// Load reads the configuration from the environment and validates it
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Addr:         getEnv("HTTP_ADDR", ":8080"),
			LogLevel:     getLevelEnv("LOG_LEVEL", slog.LevelInfo),
			CORSOrigins:  getListEnv("CORS_ORIGINS", nil),
			ReadTimeout:  getDurationEnv("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDurationEnv("HTTP_WRITE_TIMEOUT", 15*time.Second),
		},
		Data: DataConfig{
			Backend:     strings.ToLower(getEnv("WISPY_BACKEND", BackendSQLite)),
			DatabaseDSN: getEnv("DATABASE_DSN", "wispy-admin.db"),
			RESTURL:     getEnv("REST_URL", ""),
			RESTAPIKey:  getEnv("REST_API_KEY", ""),
			RESTSchema:  getEnv("REST_SCHEMA", ""),
		},
		Session: SessionConfig{
			Backend:  strings.ToLower(getEnv("SESSION_BACKEND", SessionMemory)),
			DSN:      getEnv("SESSION_DSN", ""),
			RedisURL: getEnv("REDIS_URL", ""),
			Timeout:  getDurationEnv("SESSION_TIMEOUT", core.DefaultSessionTimeout),
		},
		Admin: AdminConfig{
			Identifier: getEnv("ADMIN_IDENTIFIER", ""),
			Secret:     getEnv("ADMIN_SECRET", ""),
			Markers:    getListEnv("ADMIN_MARKERS", []string{"admin"}),
			Domains:    getListEnv("ADMIN_DOMAINS", nil),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks backend selectors and the settings each backend requires
func (c *Config) Validate() error {
	switch c.Data.Backend {
	case BackendSQLite, BackendPostgres, BackendREST:
	default:
		return fmt.Errorf("%w: WISPY_BACKEND=%q", ErrInvalidBackend, c.Data.Backend)
	}
	switch c.Session.Backend {
	case SessionMemory, SessionSQLite, SessionPostgres, SessionRedis:
	default:
		return fmt.Errorf("%w: SESSION_BACKEND=%q", ErrInvalidBackend, c.Session.Backend)
	}

	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Session.Timeout <= 0 {
		return fmt.Errorf("invalid configuration: SESSION_TIMEOUT must be positive")
	}
	return nil
}

// AdminPolicy builds the login policy from the admin settings
func (c *Config) AdminPolicy() core.AdminPolicy {
	policy := core.DefaultAdminPolicy()
	policy.Markers = c.Admin.Markers
	policy.DomainSuffixes = c.Admin.Domains
	if c.Admin.Identifier != "" {
		policy.Pairs[c.Admin.Identifier] = c.Admin.Secret
	}
	return policy
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		slog.Warn("Ignoring unparsable duration", "key", key, "value", value)
	}
	return defaultValue
}

// getListEnv splits a comma-separated value. An explicitly empty value is not
// distinguishable from an unset one and yields the default.
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getLevelEnv(key string, defaultValue slog.Level) slog.Level {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		slog.Warn("Ignoring unknown log level", "key", key, "value", value)
		return defaultValue
	}
	return level
}
