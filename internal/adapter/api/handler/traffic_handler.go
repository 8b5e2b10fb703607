package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/V4T54L/visitor-ingest/internal/adapter/metrics"
	"github.com/V4T54L/visitor-ingest/internal/domain"
	"github.com/V4T54L/visitor-ingest/internal/usecase"
)

const endpointTraffic = "traffic"

// TrafficHandler accepts form-encoded traffic beacons.
type TrafficHandler struct {
	useCase     *usecase.LogTrafficUseCase
	logger      *slog.Logger
	maxBodySize int64
	metrics     *metrics.IngestMetrics
	reporter    EventReporter
}

// NewTrafficHandler creates a new TrafficHandler. m and reporter may be nil.
func NewTrafficHandler(uc *usecase.LogTrafficUseCase, logger *slog.Logger, maxBodySize int64, m *metrics.IngestMetrics, reporter EventReporter) *TrafficHandler {
	return &TrafficHandler{
		useCase:     uc,
		logger:      logger,
		maxBodySize: maxBodySize,
		metrics:     m,
		reporter:    reporter,
	}
}

// ServeHTTP processes POST traffic_logger.php.
func (h *TrafficHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	if err := r.ParseForm(); err != nil {
		code, status, err := bodyError(err)
		h.count(status)
		if code == http.StatusRequestEntityTooLarge {
			writeJSON(w, h.logger, code, envelope{Status: statusError, Message: "Payload too large"})
			return
		}
		h.logger.Warn("failed to parse traffic form", "error", err)
		writeJSON(w, h.logger, code, envelope{Status: statusError, Message: err.Error()})
		return
	}

	record, decision, err := h.useCase.Log(r.Context(), usecase.TrafficEvent{
		Page:       r.Form.Get("page"),
		Action:     r.Form.Get("action"),
		SessionID:  r.Form.Get("session_id"),
		DeviceType: r.Form.Get("device_type"),
		Browser:    r.Form.Get("browser"),
		ClientAddr: ClientIP(r),
		UserAgent:  r.UserAgent(),
		Referrer:   r.Referer(),
	})
	writeDecision(w, decision)

	switch {
	case errors.Is(err, domain.ErrRateLimited):
		h.count("rate_limited")
		if h.metrics != nil {
			h.metrics.RateLimitRejections.WithLabelValues(endpointTraffic).Inc()
		}
		writeJSON(w, h.logger, http.StatusTooManyRequests, envelope{
			Status:     statusError,
			Message:    "Rate limit exceeded",
			RetryAfter: decision.RetryAfterSeconds(),
		})
		return
	case err != nil:
		h.count("error_store")
		writeJSON(w, h.logger, http.StatusServiceUnavailable, envelope{Status: statusError, Message: "Traffic log unavailable"})
		return
	}

	h.count("accepted")
	if h.metrics != nil && r.ContentLength > 0 {
		h.metrics.BytesTotal.Add(float64(r.ContentLength))
	}
	writeJSON(w, h.logger, http.StatusOK, envelope{
		Status:    statusSuccess,
		Message:   "Traffic logged successfully",
		Timestamp: record.Timestamp.Format(time.RFC3339),
	})
}

func (h *TrafficHandler) count(status string) {
	if h.metrics != nil {
		h.metrics.EventsTotal.WithLabelValues(endpointTraffic, status).Inc()
	}
	if h.reporter != nil {
		h.reporter.ReportOutcome(endpointTraffic, status)
	}
}
