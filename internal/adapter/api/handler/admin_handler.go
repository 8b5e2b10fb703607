package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/V4T54L/visitor-ingest/internal/domain"
	"github.com/V4T54L/visitor-ingest/internal/usecase"
)

// AdminHandler handles HTTP requests for log inspection and stream administration.
type AdminHandler struct {
	logs    *usecase.AdminLogsUseCase
	streams *usecase.AdminStreamUseCase
	logger  *slog.Logger
}

// NewAdminHandler creates a new AdminHandler. streams is nil when Redis is not configured.
func NewAdminHandler(logs *usecase.AdminLogsUseCase, streams *usecase.AdminStreamUseCase, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{logs: logs, streams: streams, logger: logger}
}

// HealthCheck is a simple health check endpoint.
func (h *AdminHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetLogs returns the newest records of a category.
// GET /admin/logs/{category}?limit={n}&raw={bool}
func (h *AdminHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = n
	}
	raw, _ := strconv.ParseBool(r.URL.Query().Get("raw"))

	records, err := h.logs.Recent(r.Context(), category, limit, raw)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownCategory) {
			http.Error(w, "unknown category", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to read log store", "category", category, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"category": category,
		"count":    len(records),
		"records":  records,
	})
}

// GetRateLimitWindows returns the live in-memory admission windows.
// GET /admin/ratelimit
func (h *AdminHandler) GetRateLimitWindows(w http.ResponseWriter, r *http.Request) {
	windows := h.logs.RateLimitWindows()
	if windows == nil {
		windows = []domain.WindowSnapshot{}
	}
	h.respondWithJSON(w, http.StatusOK, windows)
}

// GetGroupInfo handles requests to get consumer group info.
// GET /admin/streams/{streamName}/groups
func (h *AdminHandler) GetGroupInfo(w http.ResponseWriter, r *http.Request) {
	if !h.streamsAvailable(w) {
		return
	}
	streamName := r.PathValue("streamName")

	groups, err := h.streams.GetGroupInfo(r.Context(), streamName)
	if err != nil {
		h.respondWithError(w, "failed to get group info", err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, groups)
}

// GetPendingSummary handles requests to get a summary of pending messages.
// GET /admin/streams/{streamName}/groups/{groupName}/pending
func (h *AdminHandler) GetPendingSummary(w http.ResponseWriter, r *http.Request) {
	if !h.streamsAvailable(w) {
		return
	}
	streamName := r.PathValue("streamName")
	groupName := r.PathValue("groupName")

	summary, err := h.streams.GetPendingSummary(r.Context(), streamName, groupName)
	if err != nil {
		h.respondWithError(w, "failed to get pending summary", err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, summary)
}

// TrimStream handles requests to trim a stream.
// POST /admin/streams/{streamName}/trim
func (h *AdminHandler) TrimStream(w http.ResponseWriter, r *http.Request) {
	if !h.streamsAvailable(w) {
		return
	}
	streamName := r.PathValue("streamName")

	var payload struct {
		MaxLen int64 `json:"maxlen"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	trimmedCount, err := h.streams.TrimStream(r.Context(), streamName, payload.MaxLen)
	if err != nil {
		h.respondWithError(w, "failed to trim stream", err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]int64{"trimmed": trimmedCount})
}

func (h *AdminHandler) streamsAvailable(w http.ResponseWriter) bool {
	if h.streams == nil {
		http.Error(w, "lead stream is not configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (h *AdminHandler) respondWithError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, domain.ErrMalformedInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	default:
		h.logger.Error(msg, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *AdminHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	writeJSON(w, h.logger, code, payload)
}
