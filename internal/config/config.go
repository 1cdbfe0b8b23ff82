// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DevJWTSecret signs tokens when no JWT_SECRET is set outside production.
const DevJWTSecret = "fairshare-dev-secret"

var ErrMissingSecret = errors.New("JWT_SECRET is required in production")

// Config holds every setting the server reads at startup.
type Config struct {
	Env            string
	Port           int
	DBPath         string
	JWTSecret      string
	TokenTTL       time.Duration
	RedisAddr      string
	RedisPrefix    string
	LogLevel       string
	LogFormat      string
	RebuildOnStart bool
	// AdminIDs may call RebuildBalances.
	AdminIDs []string
}

// Load reads the environment, applying defaults for unset variables.
func Load() (*Config, error) {
	cfg := &Config{
		Env:         getEnv("APP_ENV", "development"),
		DBPath:      getEnv("DB_PATH", "./data/ledger.db"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		RedisPrefix: getEnv("REDIS_PREFIX", "fairshare"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.Port, err = strconv.Atoi(getEnv("PORT", "8080")); err != nil || cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid PORT %q", os.Getenv("PORT"))
	}
	if cfg.TokenTTL, err = time.ParseDuration(getEnv("TOKEN_TTL", "24h")); err != nil || cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("invalid TOKEN_TTL %q", os.Getenv("TOKEN_TTL"))
	}
	if cfg.RebuildOnStart, err = strconv.ParseBool(getEnv("REBUILD_ON_START", "true")); err != nil {
		return nil, fmt.Errorf("invalid REBUILD_ON_START: %w", err)
	}

	for _, id := range strings.Split(os.Getenv("ADMIN_USER_IDS"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			cfg.AdminIDs = append(cfg.AdminIDs, id)
		}
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, ErrMissingSecret
		}
		cfg.JWTSecret = DevJWTSecret
	}

	return cfg, nil
}

// IsProduction reports whether APP_ENV is "production".
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
