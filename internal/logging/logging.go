// Package logging configures the process-wide slog.Logger at the CLI
// boundary. Nothing below cmd/ touches a global logger; every component
// that needs one takes a *slog.Logger as a constructor argument.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New builds a logger from the KEYHUNTER_LOG environment-style level name
// ("debug", "info", "warn", "error"; default "info"). Output is always
// text-formatted to stderr — this tool's stdout is reserved for nothing but
// exit status, and its real output goes to the --output file.
func New(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
}

// FromEnv reads KEYHUNTER_LOG and builds a logger accordingly.
func FromEnv() *slog.Logger {
	return New(os.Getenv("KEYHUNTER_LOG"))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
