package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastLogLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestLoggerEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("site", "acme").Info("processed")

	entry := lastLogLine(t, &buf)
	assert.Equal(t, "processed", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "acme", entry["site"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WarnLevel, &buf)

	logger.Info("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn("visible")
	assert.NotZero(t, buf.Len())
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithError(errors.New("boom")).Error("failed")

	entry := lastLogLine(t, &buf)
	assert.Equal(t, "boom", entry["error"])
}

func TestLoggerWithErrorNil(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithError(nil).Info("ok")

	entry := lastLogLine(t, &buf)
	_, hasError := entry["error"]
	assert.False(t, hasError)
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithFields(map[string]interface{}{
		"site":  "acme",
		"squad": "growth",
	}).Info("pushed")

	entry := lastLogLine(t, &buf)
	assert.Equal(t, "acme", entry["site"])
	assert.Equal(t, "growth", entry["squad"])
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), logger)
	FromContext(ctx).Info("from context")
	assert.NotZero(t, buf.Len())

	// Missing logger falls back to a usable default.
	assert.NotNil(t, FromContext(context.Background()))
}
