package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"5000"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	StoreBackend         string `env:"STORE_BACKEND" default:"memory"`
	SQLitePath           string `env:"SQLITE_PATH" default:"database.db"`
	RedisURL             string `env:"REDIS_URL"`
	DatabaseURL          string `env:"DATABASE_URL"`
	StoreConnectAttempts int    `env:"STORE_CONNECT_ATTEMPTS" default:"5"`

	HostUsername   string `env:"HOST_USERNAME" default:"HostUser"`
	RawPollOptions string `env:"POLL_OPTIONS" default:"Song A,Song B"`

	StaticDir          string  `env:"STATIC_DIR" default:"static"`
	RawAllowedOrigins  string  `env:"CORS_ALLOWED_ORIGINS" default:"*"`
	RateLimitPerSecond float64 `env:"RATE_LIMIT_PER_SECOND" default:"10"`
	RateLimitBurst     int     `env:"RATE_LIMIT_BURST" default:"20"`

	HubBufferSize                int `env:"HUB_BUFFER_SIZE" default:"64"`
	MaxWebSocketConnections      int `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxWebSocketConnectionsPerIP int `env:"MAX_WEBSOCKET_CONNECTIONS_PER_IP" default:"50"`

	// Parsed from the raw comma-separated values by validate.
	PollOptions    []string
	AllowedOrigins []string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.StoreBackend {
	case BackendMemory:
	case BackendSQLite:
		if cfg.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite backend")
		}
	case BackendRedis:
		if cfg.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis backend")
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
		if cfg.AppEnv == "production" {
			if err := validateSSLMode(cfg.DatabaseURL); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of memory, sqlite, redis, postgres, got %q", cfg.StoreBackend)
	}

	if strings.TrimSpace(cfg.HostUsername) == "" {
		return errors.New("HOST_USERNAME must not be blank")
	}

	cfg.PollOptions = splitList(cfg.RawPollOptions)
	if len(cfg.PollOptions) == 0 {
		return errors.New("POLL_OPTIONS must name at least one option")
	}
	for i, opt := range cfg.PollOptions {
		if slices.Contains(cfg.PollOptions[:i], opt) {
			return fmt.Errorf("POLL_OPTIONS contains duplicate option %q", opt)
		}
	}

	cfg.AllowedOrigins = splitList(cfg.RawAllowedOrigins)

	if cfg.HubBufferSize < 1 {
		return errors.New("HUB_BUFFER_SIZE must be at least 1")
	}
	if cfg.MaxWebSocketConnections < 1 || cfg.MaxWebSocketConnectionsPerIP < 1 {
		return errors.New("websocket connection limits must be at least 1")
	}
	if cfg.StoreConnectAttempts < 1 {
		return errors.New("STORE_CONNECT_ATTEMPTS must be at least 1")
	}
	if cfg.RateLimitPerSecond <= 0 || cfg.RateLimitBurst < 1 {
		return errors.New("RATE_LIMIT_PER_SECOND and RATE_LIMIT_BURST must be positive")
	}

	return nil
}

func validateSSLMode(databaseURL string) error {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}
	mode := strings.ToLower(u.Query().Get("sslmode"))
	if mode == "disable" || mode == "allow" {
		return fmt.Errorf("DATABASE_URL uses sslmode=%s which is not allowed in production", mode)
	}
	return nil
}

// splitList splits a comma-separated value, trimming entries and dropping empty ones.
func splitList(raw string) []string {
	out := []string{}
	for part := range strings.SplitSeq(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
