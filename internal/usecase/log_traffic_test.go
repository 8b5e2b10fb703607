package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/V4T54L/visitor-ingest/internal/domain"
	"github.com/V4T54L/visitor-ingest/internal/domain/mocks"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLogTrafficUseCase_Log(t *testing.T) {
	t.Run("Successful Logging", func(t *testing.T) {
		store := &mocks.MockLogStore{}
		uc := NewLogTrafficUseCase(store, &mocks.MockRateLimiter{}, testLogger())
		uc.now = func() time.Time { return fixedNow }

		record, decision, err := uc.Log(context.Background(), TrafficEvent{
			Page:       "/home",
			Action:     domain.ActionPageView,
			SessionID:  "session_1",
			DeviceType: domain.DeviceDesktop,
			Browser:    "Chrome",
			ClientAddr: "1.2.3.4",
			UserAgent:  "Mozilla/5.0",
			Referrer:   "https://example.com",
		})

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !decision.Allowed {
			t.Error("expected request to be admitted")
		}
		if store.Count(domain.CategoryTraffic) != 1 {
			t.Fatalf("expected 1 traffic record, got %d", store.Count(domain.CategoryTraffic))
		}
		if record.Page != "/home" || record.Action != "page_view" || record.SessionID != "session_1" {
			t.Errorf("unexpected record: %+v", record)
		}
		if !record.Timestamp.Equal(fixedNow.Truncate(time.Second)) {
			t.Errorf("timestamp not truncated to the second: %v", record.Timestamp)
		}

		var stored map[string]string
		if err := json.Unmarshal(store.Records[domain.CategoryTraffic][0], &stored); err != nil {
			t.Fatalf("stored record is not a JSON object: %v", err)
		}
		if stored["timestamp"] != "2026-03-14T09:26:53Z" {
			t.Errorf("stored timestamp = %q", stored["timestamp"])
		}
		if stored["ip"] != "1.2.3.4" || stored["browser"] != "Chrome" {
			t.Errorf("unexpected stored record: %v", stored)
		}
	})

	t.Run("Defaults For Missing Fields", func(t *testing.T) {
		store := &mocks.MockLogStore{}
		uc := NewLogTrafficUseCase(store, nil, testLogger())

		record, _, err := uc.Log(context.Background(), TrafficEvent{})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if record.Page != "unknown" || record.Action != "visit" || record.ClientAddr != "unknown" {
			t.Errorf("defaults not applied: %+v", record)
		}
		if record.Referrer != "direct" || record.UserAgent != "unknown" {
			t.Errorf("header placeholders not applied: %+v", record)
		}
		if !strings.HasPrefix(record.SessionID, "session_") {
			t.Errorf("expected generated session id, got %q", record.SessionID)
		}
	})

	t.Run("Rate Limited", func(t *testing.T) {
		store := &mocks.MockLogStore{}
		uc := NewLogTrafficUseCase(store, &mocks.MockRateLimiter{Deny: true}, testLogger())

		_, decision, err := uc.Log(context.Background(), TrafficEvent{ClientAddr: "1.2.3.4"})
		if !errors.Is(err, domain.ErrRateLimited) {
			t.Fatalf("expected ErrRateLimited, got %v", err)
		}
		if decision.RetryAfterSeconds() != 60 {
			t.Errorf("retry after = %d, want 60", decision.RetryAfterSeconds())
		}
		if store.Count(domain.CategoryTraffic) != 0 {
			t.Error("rejected request must not be stored")
		}
	})

	t.Run("Limiter Error Admits", func(t *testing.T) {
		store := &mocks.MockLogStore{}
		uc := NewLogTrafficUseCase(store, &mocks.MockRateLimiter{Err: errors.New("redis down")}, testLogger())

		if _, _, err := uc.Log(context.Background(), TrafficEvent{}); err != nil {
			t.Fatalf("expected limiter failure to admit, got %v", err)
		}
		if store.Count(domain.CategoryTraffic) != 1 {
			t.Error("expected record to be stored")
		}
	})

	t.Run("Store Error", func(t *testing.T) {
		storeErr := errors.Join(domain.ErrStoreUnavailable, errors.New("disk full"))
		uc := NewLogTrafficUseCase(&mocks.MockLogStore{AppendErr: storeErr}, nil, testLogger())

		_, _, err := uc.Log(context.Background(), TrafficEvent{})
		if !errors.Is(err, domain.ErrStoreUnavailable) {
			t.Fatalf("expected ErrStoreUnavailable, got %v", err)
		}
	})
}
