package observability

import (
	"log/slog"
	"os"
)

// NewLogger builds the application logger from the verbosity and format
// settings. Verbosity maps onto slog levels: quiet suppresses everything
// below Error, normal logs warnings, verbose logs info, debug logs all.
func NewLogger(verbosity, format string) *slog.Logger {
	var level slog.Level
	switch verbosity {
	case "quiet":
		level = slog.LevelError
	case "verbose":
		level = slog.LevelInfo
	case "debug":
		level = slog.LevelDebug
	default:
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
