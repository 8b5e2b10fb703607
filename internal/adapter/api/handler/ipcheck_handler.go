package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/V4T54L/visitor-ingest/internal/adapter/metrics"
	"github.com/V4T54L/visitor-ingest/internal/domain"
	"github.com/V4T54L/visitor-ingest/internal/usecase"
)

const endpointIPCheck = "ipcheck"

// IPCheckHandler echoes the caller's request metadata.
type IPCheckHandler struct {
	useCase  *usecase.IdentityCheckUseCase
	logger   *slog.Logger
	metrics  *metrics.IngestMetrics
	reporter EventReporter
}

// NewIPCheckHandler creates a new IPCheckHandler. m and reporter may be nil.
func NewIPCheckHandler(uc *usecase.IdentityCheckUseCase, logger *slog.Logger, m *metrics.IngestMetrics, reporter EventReporter) *IPCheckHandler {
	return &IPCheckHandler{useCase: uc, logger: logger, metrics: m, reporter: reporter}
}

type rateLimitedBody struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retry_after"`
}

type ipCheckBody struct {
	Status string             `json:"status"`
	Data   domain.RequestInfo `json:"data"`
}

// ServeHTTP processes GET and POST ipcheck.php.
func (h *IPCheckHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	info := domain.RequestInfo{
		ClientAddr:  ClientIP(r),
		UserAgent:   r.UserAgent(),
		Referrer:    r.Referer(),
		Language:    r.Header.Get("Accept-Language"),
		Method:      r.Method,
		Protocol:    r.Proto,
		Host:        r.Host,
		RequestURI:  r.RequestURI,
		ForwardedIP: ForwardedIP(r),
		RealIP:      r.Header.Get("X-Real-IP"),
	}

	info, decision, err := h.useCase.Check(r.Context(), info, r.URL.Path)
	writeDecision(w, decision)

	switch {
	case errors.Is(err, domain.ErrRateLimited):
		h.count("rate_limited")
		if h.metrics != nil {
			h.metrics.RateLimitRejections.WithLabelValues(endpointIPCheck).Inc()
		}
		writeJSON(w, h.logger, http.StatusTooManyRequests, rateLimitedBody{
			Error:      "Rate limit exceeded",
			RetryAfter: decision.RetryAfterSeconds(),
		})
		return
	case err != nil:
		h.logger.Error("identity check failed", "error", err)
		writeJSON(w, h.logger, http.StatusInternalServerError, envelope{Status: statusError, Message: "Internal server error", Timestamp: nowStamp()})
		return
	}

	h.count("accepted")
	body, err := json.MarshalIndent(ipCheckBody{Status: statusSuccess, Data: info}, "", "  ")
	if err != nil {
		h.logger.Error("failed to marshal identity check response", "error", err)
		writeJSON(w, h.logger, http.StatusInternalServerError, envelope{Status: statusError, Message: "Internal server error", Timestamp: nowStamp()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (h *IPCheckHandler) count(status string) {
	if h.metrics != nil {
		h.metrics.EventsTotal.WithLabelValues(endpointIPCheck, status).Inc()
	}
	if h.reporter != nil {
		h.reporter.ReportOutcome(endpointIPCheck, status)
	}
}
