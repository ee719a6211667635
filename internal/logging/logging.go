package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger: JSON when asJSON is set, text otherwise.
func Init(service string, asJSON bool, level string) *slog.Logger {
	return initTo(os.Stdout, service, asJSON, level)
}

func initTo(w io.Writer, service string, asJSON bool, level string) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: false, Level: ParseLevel(level)}
	var handler slog.Handler
	if asJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler).With("service", service)
	slog.SetDefault(logger)
	logger.Debug("logging initialized", "json", asJSON)
	return logger
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(lvl string) slog.Level {
	switch strings.ToLower(lvl) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
