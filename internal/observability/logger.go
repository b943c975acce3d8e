package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string
	Format string
	Output string
	// Environment picks the level and format when they are empty:
	// "dev" logs text at debug, everything else JSON at info.
	Environment string
}

// NewLogger creates a new structured logger based on configuration.
func NewLogger(config LoggingConfig) *slog.Logger {
	var output io.Writer
	switch strings.ToLower(config.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}
	return slog.New(newHandler(output, config))
}

func newHandler(output io.Writer, config LoggingConfig) slog.Handler {
	dev := strings.EqualFold(config.Environment, "dev")

	levelName := config.Level
	if levelName == "" && dev {
		levelName = "debug"
	}
	opts := &slog.HandlerOptions{
		Level: parseLevel(levelName),
	}

	format := strings.ToLower(config.Format)
	if format == "" && dev {
		format = "text"
	}

	switch format {
	case "text":
		return slog.NewTextHandler(output, opts)
	default:
		return slog.NewJSONHandler(output, opts)
	}
}

func parseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
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
