package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/prnadmin/server/internal/db"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds the application configuration
type Config struct {
	DatabaseURL    string
	Port           string
	JWTSecret      string
	AccessTokenTTL time.Duration
	LogLevel       string
	DevMode        bool

	Pool db.PoolConfig

	// CacheTTL bounds how stale a cached report may be. Zero disables caching.
	CacheTTL         time.Duration
	QueryMaxAttempts int
	QueryBackoffBase time.Duration

	LoginRateLimit  int
	LoginRateWindow time.Duration
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("ACCESS_TOKEN_TTL", "24h")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DEV_MODE", false)

	v.SetDefault("DB_MAX_OPEN_CONNS", db.DefaultPool.MaxOpenConns)
	v.SetDefault("DB_MAX_IDLE_CONNS", db.DefaultPool.MaxIdleConns)
	v.SetDefault("DB_CONN_MAX_LIFETIME", db.DefaultPool.ConnMaxLifetime)
	v.SetDefault("DB_CONN_MAX_IDLE_TIME", db.DefaultPool.ConnMaxIdleTime)

	v.SetDefault("CACHE_TTL", "5s")
	v.SetDefault("QUERY_MAX_ATTEMPTS", 3)
	v.SetDefault("QUERY_BACKOFF_BASE", "100ms")

	v.SetDefault("LOGIN_RATE_LIMIT", 5)
	v.SetDefault("LOGIN_RATE_WINDOW", "1m")
	return v
}

// Load reads configuration from an optional config.yaml and environment variables.
// Environment variables win over the file.
func Load() (*Config, error) {
	return load(newViper())
}

func load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		DatabaseURL:    strings.TrimSpace(v.GetString("DATABASE_URL")),
		Port:           v.GetString("PORT"),
		JWTSecret:      v.GetString("JWT_SECRET"),
		AccessTokenTTL: v.GetDuration("ACCESS_TOKEN_TTL"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		DevMode:        v.GetBool("DEV_MODE"),
		Pool: db.PoolConfig{
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: v.GetDuration("DB_CONN_MAX_IDLE_TIME"),
		},
		CacheTTL:         v.GetDuration("CACHE_TTL"),
		QueryMaxAttempts: v.GetInt("QUERY_MAX_ATTEMPTS"),
		QueryBackoffBase: v.GetDuration("QUERY_BACKOFF_BASE"),
		LoginRateLimit:   v.GetInt("LOGIN_RATE_LIMIT"),
		LoginRateWindow:  v.GetDuration("LOGIN_RATE_WINDOW"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if cfg.AccessTokenTTL <= 0 {
		return nil, fmt.Errorf("ACCESS_TOKEN_TTL must be positive, got %s", cfg.AccessTokenTTL)
	}
	if cfg.QueryMaxAttempts < 1 {
		return nil, fmt.Errorf("QUERY_MAX_ATTEMPTS must be at least 1, got %d", cfg.QueryMaxAttempts)
	}
	if cfg.LoginRateLimit < 1 || cfg.LoginRateWindow <= 0 {
		return nil, fmt.Errorf("LOGIN_RATE_LIMIT and LOGIN_RATE_WINDOW must be positive")
	}

	// Log connection details (password masked)
	if u, err := url.Parse(cfg.DatabaseURL); err == nil {
		host := u.Hostname()
		if host == "" {
			host = "localhost"
		}
		port := u.Port()
		if port == "" {
			port = "5432"
		}
		user := u.User.Username()
		if user == "" {
			user = "(none)"
		}
		zap.L().Info("DB connect",
			zap.String("host", host),
			zap.String("port", port),
			zap.String("db", strings.TrimPrefix(u.Path, "/")),
			zap.String("user", user),
		)
	}

	return cfg, nil
}
