package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/phrazzld/copyblocks/internal/config"
)

// Setup initializes the application's JSON logger at the configured level and
// installs it as the slog default. Unknown levels fall back to info with a warning.
func Setup(cfg config.ServerConfig) (*slog.Logger, error) {
	return setup(os.Stdout, cfg), nil
}

func setup(w io.Writer, cfg config.ServerConfig) *slog.Logger {
	level, ok := ParseLevel(cfg.LogLevel)
	if !ok {
		tmpLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmpLogger.Warn("invalid log level configured, using default level",
			"configured_level", cfg.LogLevel,
			"default_level", "info")
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a case-insensitive level name onto slog.Level.
// The second return is false when the name is not recognised.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
