// Package logging builds the slog loggers used across hitfetch.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/abdul-hamid-achik/hitfetch/packages/http"
)

// NewLogger creates a new slog.Logger writing to stderr with the specified
// level and format.
func NewLogger(level, format string) *slog.Logger {
	return NewLoggerTo(os.Stderr, level, format)
}

// NewLoggerTo is NewLogger with an explicit destination.
func NewLoggerTo(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Monitor returns a monitor that logs every completed call: successes at
// info, failures at warn.
func Monitor(logger *slog.Logger) http.Monitor {
	return func(ctx context.Context, env *http.Envelope) error {
		attrs := []slog.Attr{
			slog.String("method", env.Method()),
			slog.String("url", env.URL),
			slog.Int("status", env.Status),
			slog.Int64("duration_ms", env.DurationMs()),
		}
		if env.OK {
			logger.LogAttrs(ctx, slog.LevelInfo, "request succeeded", attrs...)
			return nil
		}
		attrs = append(attrs,
			slog.String("problem", env.Problem.String()),
			slog.Any("error", env.OriginalError),
		)
		logger.LogAttrs(ctx, slog.LevelWarn, "request failed", attrs...)
		return nil
	}
}
