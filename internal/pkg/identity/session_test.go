package identity

import (
	"strings"
	"testing"
	"time"
)

func TestEnsureSessionID_ReusesClientID(t *testing.T) {
	first := EnsureSessionID("s1")
	second := EnsureSessionID("s1")
	if first != "s1" || second != "s1" {
		t.Errorf("EnsureSessionID(\"s1\") = %q, %q; want s1 both times", first, second)
	}
}

func TestEnsureSessionID_GeneratesDistinctIDs(t *testing.T) {
	a := EnsureSessionID("")
	b := EnsureSessionID("")
	if a == "" || b == "" {
		t.Fatal("expected non-empty generated ids")
	}
	if a == b {
		t.Errorf("expected distinct ids, got %q twice", a)
	}
}

func TestNewSessionIDFormat(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	id := newSessionIDAt(now)

	parts := strings.Split(id, "_")
	if len(parts) != 3 || parts[0] != "session" {
		t.Fatalf("unexpected id format %q", id)
	}
	if parts[1] != "1700000000123" {
		t.Errorf("timestamp part = %q, want 1700000000123", parts[1])
	}
	if len(parts[2]) != suffixLen {
		t.Errorf("suffix length = %d, want %d", len(parts[2]), suffixLen)
	}
}
