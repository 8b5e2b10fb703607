package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/V4T54L/visitor-ingest/internal/adapter/metrics"
	"github.com/V4T54L/visitor-ingest/internal/domain"
	"github.com/V4T54L/visitor-ingest/internal/usecase"
)

const endpointCollect = "collect"

// CollectHandler accepts JSON contact submissions from the client collector.
type CollectHandler struct {
	useCase     *usecase.CollectVisitorUseCase
	logger      *slog.Logger
	maxBodySize int64
	metrics     *metrics.IngestMetrics
	reporter    EventReporter
}

// NewCollectHandler creates a new CollectHandler. m and reporter may be nil.
func NewCollectHandler(uc *usecase.CollectVisitorUseCase, logger *slog.Logger, maxBodySize int64, m *metrics.IngestMetrics, reporter EventReporter) *CollectHandler {
	return &CollectHandler{
		useCase:     uc,
		logger:      logger,
		maxBodySize: maxBodySize,
		metrics:     m,
		reporter:    reporter,
	}
}

// ServeHTTP processes POST api/collect-data.
func (h *CollectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var sub usecase.ContactSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		code, status, err := bodyError(err)
		h.count(status)
		if code == http.StatusRequestEntityTooLarge {
			writeJSON(w, h.logger, code, envelope{Status: statusError, Message: "Payload too large"})
			return
		}
		h.logger.Warn("failed to decode contact submission", "error", err)
		writeJSON(w, h.logger, code, envelope{Status: statusError, Message: err.Error()})
		return
	}
	sub.ClientAddr = ClientIP(r)

	lead, decision, err := h.useCase.Collect(r.Context(), sub)
	writeDecision(w, decision)

	if errors.Is(err, domain.ErrRateLimited) {
		h.count("rate_limited")
		if h.metrics != nil {
			h.metrics.RateLimitRejections.WithLabelValues(endpointCollect).Inc()
		}
		writeJSON(w, h.logger, http.StatusTooManyRequests, envelope{
			Status:     statusError,
			Message:    "Rate limit exceeded",
			RetryAfter: decision.RetryAfterSeconds(),
		})
		return
	}

	h.count("accepted")
	if h.metrics != nil && r.ContentLength > 0 {
		h.metrics.BytesTotal.Add(float64(r.ContentLength))
	}
	writeJSON(w, h.logger, http.StatusOK, envelope{
		Status:    statusSuccess,
		Message:   "Data collected successfully",
		Timestamp: lead.Timestamp.Format(time.RFC3339),
	})
}

func (h *CollectHandler) count(status string) {
	if h.metrics != nil {
		h.metrics.EventsTotal.WithLabelValues(endpointCollect, status).Inc()
	}
	if h.reporter != nil {
		h.reporter.ReportOutcome(endpointCollect, status)
	}
}
