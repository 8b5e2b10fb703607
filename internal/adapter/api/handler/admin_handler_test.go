package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/V4T54L/visitor-ingest/internal/adapter/pii"
	"github.com/V4T54L/visitor-ingest/internal/domain"
	"github.com/V4T54L/visitor-ingest/internal/domain/mocks"
	"github.com/V4T54L/visitor-ingest/internal/usecase"
)

func newAdminMux(store domain.LogStore, streams domain.StreamAdminRepository) *http.ServeMux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	logs := usecase.NewAdminLogsUseCase(store, pii.NewRedactor([]string{"phone", "email"}, logger), nil, logger)
	var streamUC *usecase.AdminStreamUseCase
	if streams != nil {
		streamUC = usecase.NewAdminStreamUseCase(streams)
	}
	h := NewAdminHandler(logs, streamUC, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/logs/{category}", h.GetLogs)
	mux.HandleFunc("GET /admin/ratelimit", h.GetRateLimitWindows)
	mux.HandleFunc("GET /admin/streams/{streamName}/groups", h.GetGroupInfo)
	mux.HandleFunc("GET /admin/streams/{streamName}/groups/{groupName}/pending", h.GetPendingSummary)
	mux.HandleFunc("POST /admin/streams/{streamName}/trim", h.TrimStream)
	return mux
}

func TestAdminHandler_GetLogs(t *testing.T) {
	store := &mocks.MockLogStore{}
	for i := 0; i < 5; i++ {
		_ = store.Append(context.Background(), domain.CategoryVisitors, map[string]string{
			"session_id": fmt.Sprintf("s%d", i),
			"email":      "a@example.com",
		})
	}
	mux := newAdminMux(store, nil)

	tests := []struct {
		name           string
		target         string
		expectedStatus int
		expectedCount  int
		expectMasked   bool
	}{
		{name: "Limited And Masked", target: "/admin/logs/visitors?limit=2", expectedStatus: http.StatusOK, expectedCount: 2, expectMasked: true},
		{name: "Raw", target: "/admin/logs/visitors?raw=true", expectedStatus: http.StatusOK, expectedCount: 5},
		{name: "Unknown Category", target: "/admin/logs/passwords", expectedStatus: http.StatusNotFound},
		{name: "Invalid Limit", target: "/admin/logs/visitors?limit=x", expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.target, nil))

			if rr.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rr.Code)
			}
			if rr.Code != http.StatusOK {
				return
			}
			var body struct {
				Count   int               `json:"count"`
				Records []json.RawMessage `json:"records"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Count != tt.expectedCount || len(body.Records) != tt.expectedCount {
				t.Errorf("count = %d (%d records), want %d", body.Count, len(body.Records), tt.expectedCount)
			}
			masked := !strings.Contains(rr.Body.String(), "a@example.com")
			if masked != tt.expectMasked {
				t.Errorf("masked = %v, want %v", masked, tt.expectMasked)
			}
		})
	}
}

func TestAdminHandler_Streams(t *testing.T) {
	t.Run("Not Configured", func(t *testing.T) {
		mux := newAdminMux(&mocks.MockLogStore{}, nil)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/streams/lead_submissions/groups", nil))
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rr.Code)
		}
	})

	t.Run("Group Info", func(t *testing.T) {
		repo := &mocks.MockStreamAdminRepository{Groups: []domain.ConsumerGroupInfo{{Name: "lead-relays", Pending: 2}}}
		mux := newAdminMux(&mocks.MockLogStore{}, repo)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/streams/lead_submissions/groups", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		var groups []domain.ConsumerGroupInfo
		if err := json.Unmarshal(rr.Body.Bytes(), &groups); err != nil || len(groups) != 1 || groups[0].Pending != 2 {
			t.Errorf("unexpected groups %v (err %v)", groups, err)
		}
	})

	t.Run("Pending Not Found", func(t *testing.T) {
		repo := &mocks.MockStreamAdminRepository{Err: fmt.Errorf("wrapped: %w", domain.ErrNotFound)}
		mux := newAdminMux(&mocks.MockLogStore{}, repo)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/streams/s/groups/g/pending", nil))
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rr.Code)
		}
	})

	t.Run("Trim Validation", func(t *testing.T) {
		repo := &mocks.MockStreamAdminRepository{Trimmed: 3}
		mux := newAdminMux(&mocks.MockLogStore{}, repo)

		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/streams/s/trim", strings.NewReader(`{"maxlen":0}`)))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for zero maxlen, got %d", rr.Code)
		}

		rr = httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/streams/s/trim", strings.NewReader(`{"maxlen":10}`)))
		if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"trimmed":3`) {
			t.Errorf("unexpected trim response %d %s", rr.Code, rr.Body.String())
		}
	})
}
