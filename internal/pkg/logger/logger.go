package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// AttrReplacer rewrites attributes before they are written, see slog.HandlerOptions.ReplaceAttr.
type AttrReplacer func(groups []string, a slog.Attr) slog.Attr

// New builds the JSON slog logger used by every service binary.
func New(level string, replacers ...AttrReplacer) *slog.Logger {
	return NewWithWriter(os.Stdout, level, replacers...)
}

// NewWithWriter is New writing to w.
func NewWithWriter(w io.Writer, level string, replacers ...AttrReplacer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if len(replacers) > 0 {
		opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			for _, r := range replacers {
				a = r(groups, a)
			}
			return a
		}
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// ParseLevel maps a LOG_LEVEL value to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
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
