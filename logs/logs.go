// Package logs builds the process-wide slog logger from configuration.
package logs

import (
	"log/slog"
	"os"
	"strings"
)

// GetLoggerFromString parses a level name and returns a text logger on
// stdout. Unknown levels fall back to info.
func GetLoggerFromString(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: l})
	return slog.New(handler)
}
