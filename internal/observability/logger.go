// Package observability provides logging for mtcmidi.
package observability

import (
	"io"
	"os"
	"strings"

	"github.com/jmacd/mtcmidi/internal/config"
	"github.com/rs/zerolog"
)

// NewLogger creates a logger writing to stderr.
func NewLogger(cfg config.LoggingConfig) zerolog.Logger {
	return NewLoggerWithWriter(cfg, os.Stderr)
}

// NewLoggerWithWriter creates a zerolog.Logger that writes to w.  The
// "text" format uses an uncolored console writer; anything else is JSON.
func NewLoggerWithWriter(cfg config.LoggingConfig, w io.Writer) zerolog.Logger {
	out := w
	if strings.ToLower(cfg.Format) == "text" {
		out = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    true,
			TimeFormat: cfg.TimeFormat,
		}
	}

	level := parseLevel(cfg.Level)
	if level < zerolog.GlobalLevel() {
		zerolog.SetGlobalLevel(level)
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// parseLevel converts a string log level to a zerolog.Level.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithApp adds the application name to the logger.
func WithApp(logger zerolog.Logger, app string) zerolog.Logger {
	return logger.With().Str("app", app).Logger()
}

// WithComponent adds a component name to the logger for identifying the source.
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}
