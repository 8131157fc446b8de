// Package logger configures the process-wide slog JSON logger and carries
// request-scoped loggers and correlation ids through context.Context.
package logger
