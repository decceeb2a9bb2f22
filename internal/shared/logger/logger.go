package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	apperrors "github.com/burhanmukhtar/Molly-Pro/internal/shared/errors"
	"github.com/lmittmann/tint"
)

// Logger wraps slog.Logger with domain-specific helpers while staying thin
type Logger struct {
	*slog.Logger
	config LoggerConfig
}

// LogLevel represents the logging level
type LogLevel string

const (
	LevelTrace LogLevel = "trace"
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// OutputFormat represents the log output format
type OutputFormat string

const (
	FormatJSON OutputFormat = "json"
	FormatText OutputFormat = "text"
)

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	Level      LogLevel     `mapstructure:"level" yaml:"level" json:"level"`
	Format     OutputFormat `mapstructure:"format" yaml:"format" json:"format"`
	AddSource  bool         `mapstructure:"add_source" yaml:"add_source" json:"add_source"`
	Component  string       `mapstructure:"component" yaml:"component" json:"component"`
	Version    string       `mapstructure:"version" yaml:"version" json:"version"`
	TimeFormat string       `mapstructure:"time_format" yaml:"time_format" json:"time_format"`
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() LoggerConfig {
	return LoggerConfig{
		Level:      LevelInfo,
		Format:     FormatText,
		Component:  "mailer",
		Version:    "unknown",
		TimeFormat: time.RFC3339,
	}
}

// New creates a new logger writing to stdout
func New(config LoggerConfig) *Logger {
	return NewWithWriter(config, os.Stdout)
}

// NewWithWriter creates a logger writing to w
func NewWithWriter(config LoggerConfig, w io.Writer) *Logger {
	level := parseLogLevel(config.Level)
	return &Logger{
		Logger: slog.New(createHandler(config, level, w)),
		config: config,
	}
}

// NewDevelopment creates a logger optimized for development
func NewDevelopment(component string) *Logger {
	return New(LoggerConfig{
		Level:      LevelDebug,
		Format:     FormatText,
		AddSource:  true,
		Component:  component,
		Version:    "dev",
		TimeFormat: time.Kitchen,
	})
}

// NewProduction creates a logger optimized for production
func NewProduction(component, version string) *Logger {
	return New(LoggerConfig{
		Level:      LevelInfo,
		Format:     FormatJSON,
		Component:  component,
		Version:    version,
		TimeFormat: time.RFC3339,
	})
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	cfg := DefaultConfig()
	cfg.Format = FormatJSON
	return NewWithWriter(cfg, io.Discard)
}

type contextKey string

const (
	RequestIDKey   contextKey = "request_id"
	CorrelationKey contextKey = "correlation_id"
	UserIDKey      contextKey = "user_id"
	ServerIDKey    contextKey = "server_id"
	OperationKey   contextKey = "operation"
	TraceIDKey     contextKey = "trace_id"
)

// With returns a new logger with additional attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
		config: l.config,
	}
}

// WithComponent returns a logger scoped to a sub-component
func (l *Logger) WithComponent(name string) *Logger {
	cfg := l.config
	cfg.Component = name
	return &Logger{
		Logger: l.Logger,
		config: cfg,
	}
}

// WithContext extracts logging context and returns a scoped logger
func (l *Logger) WithContext(ctx context.Context) *Logger {
	attrs := extractContextAttrs(ctx)
	attrs = append(attrs,
		slog.String("component", l.config.Component),
		slog.String("version", l.config.Version),
	)

	return &Logger{
		Logger: l.Logger.With(attrsToAny(attrs)...),
		config: l.config,
	}
}

// Unwrap returns the underlying slog.Logger
func (l *Logger) Unwrap() *slog.Logger {
	return l.Logger
}

// ErrorCtx logs an error enriched with context values and DomainError details
func (l *Logger) ErrorCtx(ctx context.Context, msg string, err error, args ...any) {
	l.errorAt(ctx, slog.LevelError, msg, err, args...)
}

// WarnErr logs an error at warn level. Used on best-effort paths where the
// failure is tolerated.
func (l *Logger) WarnErr(ctx context.Context, msg string, err error, args ...any) {
	l.errorAt(ctx, slog.LevelWarn, msg, err, args...)
}

func (l *Logger) errorAt(ctx context.Context, level slog.Level, msg string, err error, args ...any) {
	if err == nil {
		l.WithContext(ctx).Log(ctx, level, msg, args...)
		return
	}

	attrs := []any{slog.String("error", err.Error())}

	if domainErr, ok := apperrors.AsDomainError(err); ok {
		attrs = append(attrs,
			slog.String("error_domain", domainErr.Domain()),
			slog.String("error_code", domainErr.Code()),
			slog.Bool("retryable", domainErr.Retryable()),
		)
		for k, v := range domainErr.Metadata() {
			attrs = append(attrs, slog.Any(k, v))
		}
	}

	attrs = append(attrs, args...)
	l.WithContext(ctx).Log(ctx, level, msg, attrs...)
}

// TraceCtx logs at trace level with context
func (l *Logger) TraceCtx(ctx context.Context, msg string, args ...any) {
	if l.config.Level == LevelTrace {
		l.WithContext(ctx).Debug(msg, args...)
	}
}

// HTTPRequest logs HTTP request/response with level chosen by status
func (l *Logger) HTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration, args ...any) {
	level := slog.LevelInfo
	if status >= 500 {
		level = slog.LevelError
	} else if status >= 400 {
		level = slog.LevelWarn
	}

	attrs := []any{
		slog.String("http_method", method),
		slog.String("http_path", path),
		slog.Int("http_status", status),
		slog.Duration("duration_ms", duration),
	}
	attrs = append(attrs, args...)

	msg := fmt.Sprintf("%s %s %d", method, path, status)
	l.WithContext(ctx).Log(ctx, level, msg, attrs...)
}

// DBQuery logs database operations with slow query detection
func (l *Logger) DBQuery(ctx context.Context, operation, table string, duration time.Duration, args ...any) {
	attrs := []any{
		slog.String("db_operation", operation),
		slog.String("db_table", table),
		slog.Duration("duration_ms", duration),
	}
	attrs = append(attrs, args...)

	msg := fmt.Sprintf("%s %s", operation, table)

	if duration > 100*time.Millisecond {
		l.WithContext(ctx).Warn(msg+" (slow)", attrs...)
	} else {
		l.WithContext(ctx).Debug(msg, attrs...)
	}
}

// ProviderCall logs a cloud provider API call outcome
func (l *Logger) ProviderCall(ctx context.Context, provider, call string, duration time.Duration, err error, args ...any) {
	attrs := []any{
		slog.String("provider", provider),
		slog.String("provider_call", call),
		slog.Duration("duration_ms", duration),
	}
	attrs = append(attrs, args...)

	if err != nil {
		l.WarnErr(ctx, "provider call failed", err, attrs...)
		return
	}
	l.WithContext(ctx).Debug("provider call", attrs...)
}

// StackTrace logs a stack trace for debugging (debug level only)
func (l *Logger) StackTrace(ctx context.Context, msg string) {
	if l.config.Level != LevelDebug && l.config.Level != LevelTrace {
		return
	}

	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)

	l.WithContext(ctx).Debug(msg, slog.String("stack", string(buf[:n])))
}

func parseLogLevel(level LogLevel) slog.Level {
	switch level {
	case LevelTrace, LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func createHandler(config LoggerConfig, level slog.Level, w io.Writer) slog.Handler {
	switch config.Format {
	case FormatText:
		timeFormat := config.TimeFormat
		if timeFormat == "" {
			timeFormat = time.RFC3339
		}
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: timeFormat,
			AddSource:  config.AddSource,
		})
	default:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: config.AddSource,
		})
	}
}

func extractContextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr

	contextKeys := []contextKey{
		RequestIDKey, CorrelationKey, UserIDKey, ServerIDKey, OperationKey, TraceIDKey,
	}

	for _, key := range contextKeys {
		if val := getFromContext[string](ctx, key); val != "" {
			attrs = append(attrs, slog.String(string(key), val))
		}
	}

	return attrs
}

func getFromContext[T any](ctx context.Context, key contextKey) T {
	if ctx != nil {
		if val, ok := ctx.Value(key).(T); ok {
			return val
		}
	}
	var zero T
	return zero
}

func attrsToAny(attrs []slog.Attr) []any {
	result := make([]any, len(attrs))
	for i, attr := range attrs {
		result[i] = attr
	}
	return result
}

// Context helper functions for adding IDs to context

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationKey, id)
}

func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

func WithServerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ServerIDKey, id)
}

func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, OperationKey, operation)
}

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}

// Getters for context values

func GetRequestID(ctx context.Context) string {
	return getFromContext[string](ctx, RequestIDKey)
}

func GetUserID(ctx context.Context) string {
	return getFromContext[string](ctx, UserIDKey)
}

func GetServerID(ctx context.Context) string {
	return getFromContext[string](ctx, ServerIDKey)
}

func GetOperation(ctx context.Context) string {
	return getFromContext[string](ctx, OperationKey)
}
