package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ApplicationLogger defines the interface for structured application logging
type ApplicationLogger interface {
	Debug(ctx context.Context, message string, fields Fields)
	Info(ctx context.Context, message string, fields Fields)
	Warn(ctx context.Context, message string, fields Fields)
	Error(ctx context.Context, message string, fields Fields)
	ErrorWithError(ctx context.Context, err error, message string, fields Fields)
	LogPerformance(ctx context.Context, operation string, duration time.Duration, fields Fields)
	WithComponent(component string) ApplicationLogger
}

// Fields represents structured logging fields
type Fields map[string]interface{}

// Config represents logger configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, text
	Output string // stdout, stderr, buffer (for testing)

	// Writer overrides Output when set.
	Writer io.Writer
}

// DefaultConfig logs warnings and errors as text on stderr, keeping stdout
// free for search output.
func DefaultConfig() Config {
	return Config{
		Level:  "WARN",
		Format: "text",
		Output: "stderr",
	}
}

// LogEntry is the JSON shape of one log line.
type LogEntry struct {
	Timestamp     string                 `json:"time"`
	Level         string                 `json:"level"`
	Message       string                 `json:"msg"`
	Component     string                 `json:"component,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Operation     string                 `json:"operation,omitempty"`
	Error         string                 `json:"error,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

type contextKey string

// CorrelationIDKey is the context key holding the correlation ID.
const CorrelationIDKey contextKey = "correlation_id"

type applicationLoggerImpl struct {
	logger    *slog.Logger
	component string
	buffer    *syncBuffer
}

// syncBuffer lets tests read what concurrent log calls wrote.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// NewApplicationLogger creates a new application logger.
func NewApplicationLogger(config Config) (ApplicationLogger, error) {
	level, err := ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}

	l := &applicationLoggerImpl{}

	var w io.Writer
	switch {
	case config.Writer != nil:
		w = config.Writer
	case config.Output == "buffer":
		l.buffer = &syncBuffer{}
		w = l.buffer
	case config.Output == "stdout":
		w = os.Stdout
	case config.Output == "stderr", config.Output == "":
		w = os.Stderr
	default:
		return nil, fmt.Errorf("invalid log output: %s", config.Output)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(config.Format) {
	case "json":
		l.logger = slog.New(slog.NewJSONHandler(w, opts))
	case "text", "":
		l.logger = slog.New(slog.NewTextHandler(w, opts))
	default:
		return nil, fmt.Errorf("invalid log format: %s", config.Format)
	}

	return l, nil
}

// ParseLevel converts a level name into a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", level)
	}
}

// Debug logs debug messages
func (l *applicationLoggerImpl) Debug(ctx context.Context, message string, fields Fields) {
	l.log(ctx, slog.LevelDebug, message, nil, fields)
}

// Info logs info messages
func (l *applicationLoggerImpl) Info(ctx context.Context, message string, fields Fields) {
	l.log(ctx, slog.LevelInfo, message, nil, fields)
}

// Warn logs warning messages
func (l *applicationLoggerImpl) Warn(ctx context.Context, message string, fields Fields) {
	l.log(ctx, slog.LevelWarn, message, nil, fields)
}

// Error logs error messages
func (l *applicationLoggerImpl) Error(ctx context.Context, message string, fields Fields) {
	l.log(ctx, slog.LevelError, message, nil, fields)
}

// ErrorWithError logs error messages with an error object
func (l *applicationLoggerImpl) ErrorWithError(ctx context.Context, err error, message string, fields Fields) {
	l.log(ctx, slog.LevelError, message, err, fields)
}

// LogPerformance logs how long an operation took at debug level.
func (l *applicationLoggerImpl) LogPerformance(
	ctx context.Context,
	operation string,
	duration time.Duration,
	fields Fields,
) {
	merged := make(Fields, len(fields)+2)
	for k, v := range fields {
		merged[k] = v
	}
	merged["operation"] = operation
	merged["duration_ms"] = duration.Milliseconds()
	l.log(ctx, slog.LevelDebug, "Operation completed", nil, merged)
}

// WithComponent returns a logger that tags every entry with component.
func (l *applicationLoggerImpl) WithComponent(component string) ApplicationLogger {
	return &applicationLoggerImpl{
		logger:    l.logger,
		component: component,
		buffer:    l.buffer,
	}
}

func (l *applicationLoggerImpl) log(ctx context.Context, level slog.Level, message string, err error, fields Fields) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.logger.Enabled(ctx, level) {
		return
	}

	attrs := make([]slog.Attr, 0, 5)
	if l.component != "" {
		attrs = append(attrs, slog.String("component", l.component))
	}
	if id := GetCorrelationID(ctx); id != "" {
		attrs = append(attrs, slog.String("correlation_id", id))
	}
	if op, ok := fields["operation"].(string); ok {
		attrs = append(attrs, slog.String("operation", op))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	if len(fields) > 0 {
		attrs = append(attrs, slog.Attr{Key: "metadata", Value: slog.GroupValue(fieldAttrs(fields)...)})
	}

	l.logger.LogAttrs(ctx, level, message, attrs...)
}

// fieldAttrs converts fields to attributes in key order so output is stable.
func fieldAttrs(fields Fields) []slog.Attr {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	return attrs
}

// NewCorrelationID returns a fresh random correlation ID.
func NewCorrelationID() string {
	return uuid.NewString()
}

// WithCorrelationID stores id in ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// EnsureCorrelationID returns ctx unchanged if it already carries a
// correlation ID, otherwise a child context with a new one.
func EnsureCorrelationID(ctx context.Context) context.Context {
	if GetCorrelationID(ctx) != "" {
		return ctx
	}
	return WithCorrelationID(ctx, NewCorrelationID())
}

// GetCorrelationID returns the correlation ID stored in ctx, if any.
func GetCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}
