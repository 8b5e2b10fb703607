package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/V4T54L/visitor-ingest/internal/adapter/api/handler"
	"github.com/V4T54L/visitor-ingest/internal/adapter/api/middleware"
	"github.com/V4T54L/visitor-ingest/internal/domain"
)

// NewAdminRouter creates and configures the HTTP router for admin operations.
// Everything under /admin/ requires an API key. events may be nil.
func NewAdminRouter(adminHandler *handler.AdminHandler, apiKeys domain.APIKeyRepository, events http.Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	auth := middleware.Auth(apiKeys, logger)

	mux.HandleFunc("GET /health", adminHandler.HealthCheck)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Log store and limiter
	mux.Handle("GET /admin/logs/{category}", auth(http.HandlerFunc(adminHandler.GetLogs)))
	mux.Handle("GET /admin/ratelimit", auth(http.HandlerFunc(adminHandler.GetRateLimitWindows)))
	if events != nil {
		mux.Handle("GET /admin/events", auth(events))
	}

	// Lead stream
	mux.Handle("GET /admin/streams/{streamName}/groups", auth(http.HandlerFunc(adminHandler.GetGroupInfo)))
	mux.Handle("GET /admin/streams/{streamName}/groups/{groupName}/pending", auth(http.HandlerFunc(adminHandler.GetPendingSummary)))
	mux.Handle("POST /admin/streams/{streamName}/trim", auth(http.HandlerFunc(adminHandler.TrimStream)))

	return mux
}
