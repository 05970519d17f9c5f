package logger

import (
	"io"
	"log/slog"
	"strings"
)

// EnvFormat selects the log format: "text" (default) or "json"
const EnvFormat = "COMMITRON_LOG_FORMAT"

// Setup initializes the default logger. Debug output is enabled by ai.debug
// or --debug; otherwise only warnings and errors are written.
func Setup(w io.Writer, debug bool, format string) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}
	if debug {
		handlerOpts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		handler = slog.NewJSONHandler(w, handlerOpts)
	default: // "text" or empty
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	logger := slog.New(handler)

	// Set as default logger for the entire application
	slog.SetDefault(logger)

	return logger
}
