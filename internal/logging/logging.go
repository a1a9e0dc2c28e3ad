package logging

import (
	"log/slog"
	"os"
)

// Init installs the process-wide slog logger. LOG_LEVEL overrides
// defaultLevel; the client runs at error so the call screen stays clean
// while the server runs at info.
func Init(defaultLevel slog.Level) {
	level := defaultLevel

	if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
		level = ParseLevel(l, defaultLevel)
	}

	logger := slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}),
	)
	slog.SetDefault(logger)
}

// ParseLevel maps a LOG_LEVEL value to a slog level, falling back to def
// for anything unrecognised.
func ParseLevel(s string, def slog.Level) slog.Level {
	switch s {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "production", "prod":
		return slog.LevelError
	}
	return def
}
