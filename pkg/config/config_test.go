package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growthops/sheetpulse/pkg/observability"
)

func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SHEETPULSE_POSTGRES_URL", "postgres://localhost/sheetpulse?sslmode=disable")
	t.Setenv("SHEETPULSE_SECRET", "a-test-secret")
}

func TestLoadConfigDefaults(t *testing.T) {
	validEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "0 9 * * *", cfg.Push.Schedule)
	assert.Equal(t, 4, cfg.Push.Concurrency)
	assert.Equal(t, 10*time.Second, cfg.Push.SlackTimeout)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.MetricsEnabled)
}

func TestLoadConfigOverrides(t *testing.T) {
	validEnv(t)
	t.Setenv("SHEETPULSE_PORT", "9999")
	t.Setenv("SHEETPULSE_TOKEN_TTL", "2h")
	t.Setenv("SHEETPULSE_PUSH_CONCURRENCY", "8")
	t.Setenv("SHEETPULSE_LOG_LEVEL", "debug")
	t.Setenv("SHEETPULSE_METRICS_ENABLED", "false")
	t.Setenv("SHEETPULSE_POSTGRES_MAX_CONNS", "50")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 8, cfg.Push.Concurrency)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.False(t, cfg.Observability.MetricsEnabled)
	assert.Equal(t, 50, cfg.Storage.MaxOpenConns)
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("SHEETPULSE_POSTGRES_URL", "postgres://localhost/sheetpulse")
	t.Setenv("SHEETPULSE_SECRET", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHEETPULSE_SECRET")
}

func TestLoadConfigRequiresPostgresURL(t *testing.T) {
	t.Setenv("SHEETPULSE_POSTGRES_URL", "")
	t.Setenv("SHEETPULSE_SECRET", "a-test-secret")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres URL")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want observability.LogLevel
	}{
		{"debug", observability.DebugLevel},
		{"info", observability.InfoLevel},
		{"warn", observability.WarnLevel},
		{"warning", observability.WarnLevel},
		{"ERROR", observability.ErrorLevel},
		{"bogus", observability.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLogLevel(tt.in), tt.in)
	}
}

func TestGetEnvDurationInvalidFallsBack(t *testing.T) {
	t.Setenv("SHEETPULSE_TEST_DURATION", "not-a-duration")
	assert.Equal(t, time.Minute, getEnvDuration("SHEETPULSE_TEST_DURATION", time.Minute))
}
