package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/V4T54L/visitor-ingest/internal/adapter/api/handler"
	"github.com/V4T54L/visitor-ingest/internal/adapter/api/middleware"
	"github.com/V4T54L/visitor-ingest/internal/adapter/metrics"
	"github.com/V4T54L/visitor-ingest/internal/pkg/config"
	"github.com/V4T54L/visitor-ingest/internal/usecase"
)

// IngestUseCases groups the use cases served by the ingest router.
type IngestUseCases struct {
	Traffic  *usecase.LogTrafficUseCase
	Collect  *usecase.CollectVisitorUseCase
	Identity *usecase.IdentityCheckUseCase
}

// NewRouter creates and configures the main HTTP router for the ingest service.
// m and reporter may be nil.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	uc IngestUseCases,
	m *metrics.IngestMetrics,
	reporter handler.EventReporter,
) http.Handler {
	mux := http.NewServeMux()
	prefix := strings.TrimRight(cfg.RoutePrefix, "/")

	// Handlers
	trafficHandler := handler.NewTrafficHandler(uc.Traffic, logger, cfg.MaxEventSize, m, reporter)
	collectHandler := handler.NewCollectHandler(uc.Collect, logger, cfg.MaxEventSize, m, reporter)
	ipCheckHandler := handler.NewIPCheckHandler(uc.Identity, logger, m, reporter)

	// Routes
	mux.Handle("POST "+prefix+"/traffic_logger.php", trafficHandler)
	mux.Handle("POST "+prefix+"/api/collect-data", collectHandler)
	mux.Handle("GET "+prefix+"/ipcheck.php", ipCheckHandler)
	mux.Handle("POST "+prefix+"/ipcheck.php", ipCheckHandler)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return middleware.CORS()(mux)
}
