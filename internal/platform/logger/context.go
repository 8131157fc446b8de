package logger

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	loggerKey    contextKey = "logger"
	requestIDKey contextKey = "request_id"
)

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger stored in ctx, or nil when none is set.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(loggerKey).(*slog.Logger)
	return logger
}

// FromContextOrDefault returns the context logger or slog.Default.
// A request id in the context is attached as the "request_id" attribute.
func FromContextOrDefault(ctx context.Context, defaultLogger *slog.Logger) *slog.Logger {
	logger := FromContext(ctx)
	if logger == nil {
		logger = defaultLogger
	}
	if logger == nil {
		logger = slog.Default()
	}
	if id := RequestID(ctx); id != "" {
		logger = logger.With("request_id", id)
	}
	return logger
}

// WithRequestID tags the context with a correlation id, e.g. the queued page id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the correlation id stored in ctx.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
