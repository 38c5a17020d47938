package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/growthops/sheetpulse/pkg/observability"
	"github.com/growthops/sheetpulse/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Auth configuration
	Auth AuthConfig

	// Sheets configuration
	Sheets SheetsConfig

	// Push configuration
	Push PushConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// AuthConfig holds token signing and session settings
type AuthConfig struct {
	// Secret signs bearer tokens and salts legacy password hashes. Rotating
	// it logs every user out and orphans un-migrated legacy hashes.
	Secret string

	// TokenTTL is the default session lifetime for non-remembered logins.
	TokenTTL time.Duration
}

// SheetsConfig holds Google Sheets API settings
type SheetsConfig struct {
	// CredentialsFile is the path to a service-account JSON key. When empty,
	// application default credentials are used.
	CredentialsFile string

	// RequestTimeout bounds a single Sheets API call.
	RequestTimeout time.Duration
}

// PushConfig holds batch push job settings
type PushConfig struct {
	// Schedule is a cron expression for the pusher binary.
	Schedule string

	// Concurrency caps how many sites are processed in parallel.
	Concurrency int

	// SlackTimeout bounds a single webhook delivery.
	SlackTimeout time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Auth:          loadAuthConfig(),
		Sheets:        loadSheetsConfig(),
		Push:          loadPushConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("SHEETPULSE_HOST", "0.0.0.0"),
		Port:            getEnv("SHEETPULSE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("SHEETPULSE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("SHEETPULSE_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("SHEETPULSE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SHEETPULSE_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if pgURL := getEnv("SHEETPULSE_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if maxConns := getEnvInt("SHEETPULSE_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxOpenConns = maxConns
	}
	if idleConns := getEnvInt("SHEETPULSE_POSTGRES_IDLE_CONNS", 0); idleConns > 0 {
		cfg.MaxIdleConns = idleConns
	}
	if lifetime := getEnvDuration("SHEETPULSE_POSTGRES_CONN_LIFETIME", 0); lifetime > 0 {
		cfg.ConnMaxLifetime = lifetime
	}

	return cfg
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		Secret:   getEnv("SHEETPULSE_SECRET", ""),
		TokenTTL: getEnvDuration("SHEETPULSE_TOKEN_TTL", time.Hour),
	}
}

func loadSheetsConfig() SheetsConfig {
	return SheetsConfig{
		CredentialsFile: getEnv("SHEETPULSE_GOOGLE_CREDENTIALS", "credentials.json"),
		RequestTimeout:  getEnvDuration("SHEETPULSE_SHEETS_TIMEOUT", 30*time.Second),
	}
}

func loadPushConfig() PushConfig {
	return PushConfig{
		Schedule:     getEnv("SHEETPULSE_PUSH_SCHEDULE", "0 9 * * *"),
		Concurrency:  getEnvInt("SHEETPULSE_PUSH_CONCURRENCY", 4),
		SlackTimeout: getEnvDuration("SHEETPULSE_SLACK_TIMEOUT", 10*time.Second),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("SHEETPULSE_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("SHEETPULSE_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("SHEETPULSE_SECRET is required; refusing to sign tokens with an empty secret")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	if c.Push.Concurrency <= 0 {
		return fmt.Errorf("push concurrency must be positive")
	}
	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
