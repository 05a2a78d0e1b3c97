package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getLoggerOutput(logger ApplicationLogger) string {
	appLogger, ok := logger.(*applicationLoggerImpl)
	if !ok || appLogger.buffer == nil {
		return ""
	}
	lines := strings.Split(strings.TrimSpace(appLogger.buffer.String()), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func newBufferLogger(t *testing.T, level string) ApplicationLogger {
	t.Helper()
	logger, err := NewApplicationLogger(Config{Level: level, Format: "json", Output: "buffer"})
	require.NoError(t, err)
	return logger
}

// TestApplicationLogger_CreateStructuredLogger tests creation of structured logger.
func TestApplicationLogger_CreateStructuredLogger(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{name: "json to stdout", config: Config{Level: "INFO", Format: "json", Output: "stdout"}},
		{name: "text to stderr", config: Config{Level: "debug", Format: "text", Output: "stderr"}},
		{name: "defaults", config: DefaultConfig()},
		{name: "invalid level", config: Config{Level: "LOUD", Format: "json"}, wantErr: "invalid log level"},
		{name: "invalid format", config: Config{Level: "INFO", Format: "xml"}, wantErr: "invalid log format"},
		{name: "invalid output", config: Config{Level: "INFO", Format: "json", Output: "file"}, wantErr: "invalid log output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewApplicationLogger(tt.config)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Nil(t, logger)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Implements(t, (*ApplicationLogger)(nil), logger)
		})
	}
}

// TestApplicationLogger_LogLevels tests different log levels.
func TestApplicationLogger_LogLevels(t *testing.T) {
	logger := newBufferLogger(t, "DEBUG").WithComponent("search-session")
	ctx := WithCorrelationID(context.Background(), "test-correlation-123")

	tests := []struct {
		name    string
		logFunc func()
		level   string
		message string
	}{
		{
			name:    "debug log",
			logFunc: func() { logger.Debug(ctx, "debug message", Fields{"page": 1}) },
			level:   "DEBUG",
			message: "debug message",
		},
		{
			name:    "info log",
			logFunc: func() { logger.Info(ctx, "info message", Fields{"page": 2}) },
			level:   "INFO",
			message: "info message",
		},
		{
			name:    "warn log",
			logFunc: func() { logger.Warn(ctx, "warn message", Fields{"page": 3}) },
			level:   "WARN",
			message: "warn message",
		},
		{
			name:    "error log",
			logFunc: func() { logger.Error(ctx, "error message", Fields{"page": 4}) },
			level:   "ERROR",
			message: "error message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.logFunc()

			var entry LogEntry
			require.NoError(t, json.Unmarshal([]byte(getLoggerOutput(logger)), &entry))

			assert.Equal(t, tt.level, entry.Level)
			assert.Equal(t, tt.message, entry.Message)
			assert.Equal(t, "test-correlation-123", entry.CorrelationID)
			assert.Equal(t, "search-session", entry.Component)
			assert.NotEmpty(t, entry.Timestamp)
			assert.Contains(t, entry.Metadata, "page")
		})
	}
}

func TestApplicationLogger_ErrorWithError(t *testing.T) {
	logger := newBufferLogger(t, "INFO")

	logger.ErrorWithError(context.Background(), errors.New("boom"), "operation failed", Fields{"operation": "fetch"})

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(getLoggerOutput(logger)), &entry))
	assert.Equal(t, "boom", entry.Error)
	assert.Equal(t, "fetch", entry.Operation)
	assert.Empty(t, entry.CorrelationID, "no correlation ID is invented")
}

func TestApplicationLogger_LevelFiltering(t *testing.T) {
	logger := newBufferLogger(t, "WARN")
	ctx := context.Background()

	logger.Debug(ctx, "hidden", nil)
	logger.Info(ctx, "hidden", nil)
	assert.Empty(t, getLoggerOutput(logger))

	logger.Warn(ctx, "shown", nil)
	assert.Contains(t, getLoggerOutput(logger), `"msg":"shown"`)
}

func TestApplicationLogger_LogPerformance(t *testing.T) {
	logger := newBufferLogger(t, "DEBUG")

	logger.LogPerformance(context.Background(), "fetch_page", 1500*time.Millisecond, Fields{"page": 7})

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(getLoggerOutput(logger)), &entry))
	assert.Equal(t, "fetch_page", entry.Operation)
	assert.InDelta(t, 1500, entry.Metadata["duration_ms"], 0)
	assert.InDelta(t, 7, entry.Metadata["page"], 0)
}

func TestApplicationLogger_TextFormatToWriter(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewApplicationLogger(Config{Level: "INFO", Format: "text", Writer: &buf})
	require.NoError(t, err)

	logger.Warn(context.Background(), "snippet skipped", Fields{"repo": "a/b"})

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, `msg="snippet skipped"`)
	assert.Contains(t, out, "metadata.repo=a/b")
}

func TestCorrelationID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetCorrelationID(ctx))

	ensured := EnsureCorrelationID(ctx)
	id := GetCorrelationID(ensured)
	assert.Len(t, id, 36, "uuid string form")
	assert.Equal(t, id, GetCorrelationID(EnsureCorrelationID(ensured)), "existing IDs are kept")
	assert.NotEqual(t, NewCorrelationID(), NewCorrelationID())
}

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"debug", "INFO", "warn", "Warning", "error", ""} {
		_, err := ParseLevel(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}
