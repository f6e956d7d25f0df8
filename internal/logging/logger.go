package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// LogLevel represents different log levels
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a level name ("debug", "info", ...) to a LogLevel.
// Unknown names fall back to LevelInfo.
func ParseLevel(name string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

func (l LogLevel) charm() log.Level {
	switch l {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	case LevelFatal:
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// Logger interface for structured logging
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...interface{})
	Info(ctx context.Context, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
	Error(ctx context.Context, err error, msg string, fields ...interface{})

	With(fields ...interface{}) Logger
	WithComponent(component string) Logger
}

// RemixureLogger implements Logger on top of charmbracelet/log.
type RemixureLogger struct {
	logger    *log.Logger
	component string
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      LogLevel
	Output     io.Writer
	TimeFormat string
	Timestamps bool
	AddSource  bool
	Component  string
}

// DefaultConfig returns default logger configuration
func DefaultConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:      LevelInfo,
		Output:     os.Stderr,
		TimeFormat: time.Kitchen,
	}
}

// NewLogger creates a new structured logger
func NewLogger(config *LoggerConfig) *RemixureLogger {
	if config == nil {
		config = DefaultConfig()
	}
	out := config.Output
	if out == nil {
		out = os.Stderr
	}

	logger := log.NewWithOptions(out, log.Options{
		Level:           config.Level.charm(),
		ReportTimestamp: config.Timestamps,
		ReportCaller:    config.AddSource,
		TimeFormat:      config.TimeFormat,
	})

	l := &RemixureLogger{logger: logger}
	if config.Component != "" {
		return l.WithComponent(config.Component).(*RemixureLogger)
	}
	return l
}

// Debug logs a debug message
func (l *RemixureLogger) Debug(_ context.Context, msg string, fields ...interface{}) {
	l.logger.Debug(msg, fields...)
}

// Info logs an info message
func (l *RemixureLogger) Info(_ context.Context, msg string, fields ...interface{}) {
	l.logger.Info(msg, fields...)
}

// Warn logs a warning message
func (l *RemixureLogger) Warn(_ context.Context, err error, msg string, fields ...interface{}) {
	l.logger.Warn(msg, withErr(err, fields)...)
}

// Error logs an error message
func (l *RemixureLogger) Error(_ context.Context, err error, msg string, fields ...interface{}) {
	l.logger.Error(msg, withErr(err, fields)...)
}

// With creates a new logger with additional fields
func (l *RemixureLogger) With(fields ...interface{}) Logger {
	return &RemixureLogger{
		logger:    l.logger.With(fields...),
		component: l.component,
	}
}

// WithComponent creates a new logger with component context
func (l *RemixureLogger) WithComponent(component string) Logger {
	return &RemixureLogger{
		logger:    l.logger.WithPrefix(component),
		component: component,
	}
}

// SetLevel changes the minimum level of this logger and every logger derived from it
// after the call.
func (l *RemixureLogger) SetLevel(level LogLevel) {
	l.logger.SetLevel(level.charm())
}

func withErr(err error, fields []interface{}) []interface{} {
	if err == nil {
		return fields
	}
	return append([]interface{}{"error", err}, fields...)
}

// NopLogger discards everything. Useful in tests and library callers that
// do not care about diagnostics.
type NopLogger struct{}

func (NopLogger) Debug(context.Context, string, ...interface{})        {}
func (NopLogger) Info(context.Context, string, ...interface{})         {}
func (NopLogger) Warn(context.Context, error, string, ...interface{})  {}
func (NopLogger) Error(context.Context, error, string, ...interface{}) {}
func (n NopLogger) With(...interface{}) Logger                         { return n }
func (n NopLogger) WithComponent(string) Logger                        { return n }

// PerfLogger tracks the duration of one operation.
type PerfLogger struct {
	Logger
	startTime time.Time
	operation string
}

// StartOperation begins performance tracking
func StartOperation(l Logger, operation string) *PerfLogger {
	return &PerfLogger{
		Logger:    l.With("operation", operation),
		startTime: time.Now(),
		operation: operation,
	}
}

// End completes performance tracking and logs the duration
func (p *PerfLogger) End(ctx context.Context) time.Duration {
	duration := time.Since(p.startTime)
	p.Debug(ctx, "Operation completed", "duration_ms", duration.Milliseconds())
	return duration
}

// EndWithError completes performance tracking and logs an error
func (p *PerfLogger) EndWithError(ctx context.Context, err error) time.Duration {
	duration := time.Since(p.startTime)
	p.Error(ctx, err, "Operation failed", "duration_ms", duration.Milliseconds())
	return duration
}
