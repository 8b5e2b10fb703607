package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/V4T54L/visitor-ingest/internal/domain"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// EventReporter receives the outcome of every ingest request, see SSEBroker.
type EventReporter interface {
	ReportOutcome(endpoint, outcome string)
}

type envelope struct {
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	Timestamp  string `json:"timestamp,omitempty"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// writeDecision sets rate limit headers from d.
func writeDecision(w http.ResponseWriter, d domain.Decision) {
	if d.Limit <= 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	if !d.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfterSeconds()))
	}
}

// isTooLarge reports whether err came from http.MaxBytesReader.
func isTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}

// bodyError classifies a request body parse failure. Oversized bodies map to
// 413; anything else wraps domain.ErrMalformedInput and maps to 500.
func bodyError(err error) (int, string, error) {
	if isTooLarge(err) {
		return http.StatusRequestEntityTooLarge, "error_size", err
	}
	return http.StatusInternalServerError, "error_parse", fmt.Errorf("%w: %v", domain.ErrMalformedInput, err)
}

func nowStamp() string {
	return domain.RecordTime(time.Now()).Format(time.RFC3339)
}

// ClientIP returns the peer address of r without the port. Forwarding
// headers are not trusted here.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ForwardedIP returns the first element of X-Forwarded-For, trimmed.
func ForwardedIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return ""
	}
	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}
