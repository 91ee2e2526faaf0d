// Package telemetry wires structured logging and Prometheus metrics for the
// broker binaries.
package telemetry

import (
	"log/slog"
	"os"
)

// LogLevel reads the logging level from the LOG_LEVEL environment variable.
// Accepted values: DEBUG, INFO, WARN, ERROR. Defaults to INFO.
func LogLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger initializes the process-wide logger.
//
// The output format comes from LOG_FORMAT:
//   - "json" (default) for production
//   - "text" for local development
func SetupLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     LogLevel(),
		AddSource: LogLevel() == slog.LevelDebug,
	}

	var handler slog.Handler
	if os.Getenv("LOG_FORMAT") == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
