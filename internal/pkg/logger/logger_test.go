package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWithWriter_AppliesReplacers(t *testing.T) {
	var buf bytes.Buffer
	mask := func(_ []string, a slog.Attr) slog.Attr {
		if a.Key == "secret" {
			return slog.String(a.Key, "***")
		}
		return a
	}

	l := NewWithWriter(&buf, "debug", mask)
	l.Debug("hello", "secret", "hunter2", "visible", "yes")

	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Errorf("replacer not applied: %s", out)
	}
	if !strings.Contains(out, `"visible":"yes"`) {
		t.Errorf("unrelated attribute missing: %s", out)
	}
}
