package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	GoEnv string `env:"GO_ENV" default:"development"`

	// Listeners
	OSCAddr  string `env:"OSC_ADDR" default:"127.0.0.1:9000"`
	TCPPort  int    `env:"TCP_PORT" default:"8081"`
	HTTPPort int    `env:"HTTP_PORT" default:"8080"`

	// Modules, e.g. "synth,lights:routed"
	Modules string `env:"MODULES" default:"synth"`

	// Authentication; empty disables participant auth
	JWTSecret string `env:"JWT_SECRET"`

	// Redis mirror; empty disables it
	RedisURL      string `env:"REDIS_URL"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	// Postgres journal; empty disables it
	DatabaseURL string `env:"DATABASE_URL"`

	// Storage sink batching
	SinkBatchSize     int           `env:"SINK_BATCH_SIZE" default:"100"`
	SinkFlushInterval time.Duration `env:"SINK_FLUSH_INTERVAL" default:"1s"`

	// Development
	LogLevel    string   `env:"LOG_LEVEL" default:"info"`
	LogFormat   string   `env:"LOG_FORMAT" default:"json"`
	CORSOrigins []string `env:"CORS_ORIGINS"`

	// Per-connection inbound rate limit
	RateLimitPerSec float64 `env:"RATE_LIMIT_PER_SEC" default:"20"`
	RateLimitBurst  int     `env:"RATE_LIMIT_BURST" default:"40"`
}

// LoadConfig loads configuration from environment variables, after merging
// a .env file from the working directory if there is one.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads the process environment only.
func FromEnv() (*Config, error) {
	config := &Config{}

	loadEnvString(&config.GoEnv, "GO_ENV", "development")

	loadEnvString(&config.OSCAddr, "OSC_ADDR", "127.0.0.1:9000")
	if err := loadEnvInt(&config.TCPPort, "TCP_PORT", 8081); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.HTTPPort, "HTTP_PORT", 8080); err != nil {
		return nil, err
	}

	loadEnvString(&config.Modules, "MODULES", "synth")

	loadEnvString(&config.JWTSecret, "JWT_SECRET", "")

	loadEnvString(&config.RedisURL, "REDIS_URL", "")
	loadEnvString(&config.RedisPassword, "REDIS_PASSWORD", "")
	loadEnvString(&config.DatabaseURL, "DATABASE_URL", "")

	if err := loadEnvInt(&config.SinkBatchSize, "SINK_BATCH_SIZE", 100); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.SinkFlushInterval, "SINK_FLUSH_INTERVAL", time.Second); err != nil {
		return nil, err
	}

	loadEnvString(&config.LogLevel, "LOG_LEVEL", "info")
	loadEnvString(&config.LogFormat, "LOG_FORMAT", "json")
	loadEnvStringSlice(&config.CORSOrigins, "CORS_ORIGINS", nil)

	if err := loadEnvFloat(&config.RateLimitPerSec, "RATE_LIMIT_PER_SEC", 20); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.RateLimitBurst, "RATE_LIMIT_BURST", 40); err != nil {
		return nil, err
	}
	return config, nil
}

// Helper functions for type conversion
func loadEnvString(target *string, key, defaultValue string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvFloat(target *float64, key string, defaultValue float64) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvStringSlice(target *[]string, key string, defaultValue []string) {
	if value := os.Getenv(key); value != "" {
		*target = nil
		for _, v := range strings.Split(value, ",") {
			if v = strings.TrimSpace(v); v != "" {
				*target = append(*target, v)
			}
		}
	} else {
		*target = defaultValue
	}
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var errors []string

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errors = append(errors, "HTTP_PORT must be between 1 and 65535")
	}
	if c.TCPPort < 1 || c.TCPPort > 65535 {
		errors = append(errors, "TCP_PORT must be between 1 and 65535")
	}
	if c.HTTPPort == c.TCPPort {
		errors = append(errors, "HTTP_PORT and TCP_PORT must differ")
	}
	if strings.TrimSpace(c.OSCAddr) == "" {
		errors = append(errors, "OSC_ADDR must not be empty")
	}
	if strings.TrimSpace(c.Modules) == "" {
		errors = append(errors, "MODULES must name at least one module")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}
	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	// a set secret must be long enough for HS256
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		errors = append(errors, "JWT_SECRET should be at least 32 characters long")
	}

	if c.SinkBatchSize < 1 {
		errors = append(errors, "SINK_BATCH_SIZE must be positive")
	}
	if c.SinkFlushInterval <= 0 {
		errors = append(errors, "SINK_FLUSH_INTERVAL must be positive")
	}
	if c.RateLimitPerSec <= 0 || c.RateLimitBurst < 1 {
		errors = append(errors, "RATE_LIMIT_PER_SEC and RATE_LIMIT_BURST must be positive")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}
	return nil
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// SlogLevel maps LOG_LEVEL onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger described by LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
