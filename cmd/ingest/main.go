package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/visitor-ingest/internal/adapter/api"
	"github.com/V4T54L/visitor-ingest/internal/adapter/api/handler"
	"github.com/V4T54L/visitor-ingest/internal/adapter/api/middleware"
	"github.com/V4T54L/visitor-ingest/internal/adapter/metrics"
	"github.com/V4T54L/visitor-ingest/internal/adapter/pii"
	"github.com/V4T54L/visitor-ingest/internal/adapter/ratelimit"
	"github.com/V4T54L/visitor-ingest/internal/adapter/repository/logstore"
	"github.com/V4T54L/visitor-ingest/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/visitor-ingest/internal/adapter/repository/redis"
	"github.com/V4T54L/visitor-ingest/internal/domain"
	"github.com/V4T54L/visitor-ingest/internal/pkg/config"
	"github.com/V4T54L/visitor-ingest/internal/pkg/logger"
	"github.com/V4T54L/visitor-ingest/internal/usecase"

	_ "github.com/lib/pq" // Keep for postgres driver
)

const janitorInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	piiRedactor := pii.NewRedactor(strings.Split(cfg.PIIRedactionFields, ","), slog.Default())
	logger := logger.New(cfg.LogLevel, piiRedactor.ReplaceAttr)
	slog.SetDefault(logger)

	m := metrics.NewIngestMetrics()

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Optional Redis ---
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("failed to parse redis url", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(redisOpts)
		defer redisClient.Close()
	}

	// --- Log store ---
	store := logstore.NewFileStore(cfg.LogStoreDir, cfg.LogStoreMaxRecords, logger, m)

	// --- Rate limiters ---
	limiters, windows := buildLimiters(cfg, redisClient, logger)
	if windows != nil {
		if cfg.RateLimitStateFile != "" {
			if err := windows["ipcheck"].LoadState(cfg.RateLimitStateFile); err != nil {
				logger.Warn("failed to load rate limit state, starting empty", "error", err)
			}
		}
		go windows.Run(ctx, janitorInterval)
	}

	// --- Lead publisher ---
	var publisher domain.LeadPublisher
	var streamAdmin *usecase.AdminStreamUseCase
	if redisClient != nil {
		leadRepo := redisrepo.NewLeadRepository(redisClient, logger, redisrepo.LeadRepositoryOptions{
			StreamKey:    cfg.LeadStream,
			DLQStreamKey: cfg.RedisDLQStream,
			MaxLen:       cfg.LeadStreamMaxLen,
			Metrics:      m,
		})
		if !leadRepo.Available() {
			logger.Warn("collect will answer 503 until redis recovers", "stream", cfg.LeadStream)
		}
		go leadRepo.StartHealthCheck(ctx, 5*time.Second)
		publisher = leadRepo
		streamAdmin = usecase.NewAdminStreamUseCase(redisrepo.NewAdminRepository(redisClient, logger))
	}

	// --- Admin API keys ---
	var apiKeys domain.APIKeyRepository = middleware.StaticKeys(cfg.AdminAPIKeys)
	if cfg.PostgresURL != "" {
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		keyRepo := postgres.NewAPIKeyRepository(db, logger, cfg.APIKeyCacheTTL, m)
		if err := keyRepo.EnsureSchema(ctx); err != nil {
			logger.Warn("failed to ensure admin key schema", "error", err)
		}
		apiKeys = keyRepo
	}

	// --- Use cases ---
	uc := api.IngestUseCases{
		Traffic:  usecase.NewLogTrafficUseCase(store, limiters.traffic, logger.With("component", "traffic")),
		Collect:  usecase.NewCollectVisitorUseCase(store, limiters.collect, publisher, logger.With("component", "collect")),
		Identity: usecase.NewIdentityCheckUseCase(store, limiters.ipcheck, logger.With("component", "ipcheck")),
	}

	var snapshotter usecase.WindowSnapshotter
	if windows != nil {
		snapshotter = windows
	}
	adminLogs := usecase.NewAdminLogsUseCase(store, piiRedactor, snapshotter, logger)

	// --- SSE Broker ---
	sseBroker := handler.NewSSEBroker(ctx, logger)

	// --- Admin and Metrics Server ---
	adminHandler := handler.NewAdminHandler(adminLogs, streamAdmin, logger)
	adminServer := &http.Server{
		Addr:    cfg.AdminServerAddr,
		Handler: middleware.Logging(logger)(api.NewAdminRouter(adminHandler, apiKeys, sseBroker, logger)),
	}

	go func() {
		logger.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin & metrics server failed", "error", err)
		}
	}()

	// --- Ingest Server ---
	ingestRouter := api.NewRouter(cfg, logger, uc, m, sseBroker)
	ingestServer := &http.Server{
		Addr:         cfg.IngestServerAddr,
		Handler:      middleware.Logging(logger)(ingestRouter),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		logger.Info("starting ingest server", "addr", ingestServer.Addr, "prefix", cfg.RoutePrefix, "log_dir", cfg.LogStoreDir)
		if err := ingestServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ingest server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown failed", "error", err)
	}
	if err := ingestServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("ingest server shutdown failed", "error", err)
	}

	if windows != nil && cfg.RateLimitStateFile != "" {
		if err := windows["ipcheck"].SaveState(cfg.RateLimitStateFile); err != nil {
			logger.Error("failed to save rate limit state", "error", err)
		} else {
			logger.Info("saved rate limit state", "path", cfg.RateLimitStateFile)
		}
	}

	logger.Info("servers shut down gracefully")
}

type endpointLimiters struct {
	traffic domain.RateLimiter
	collect domain.RateLimiter
	ipcheck domain.RateLimiter
}

// buildLimiters creates one limiter per endpoint. windows is non-nil only
// for the in-memory backend. The collect limiter stays nil unless
// RATE_LIMIT_COLLECT is set.
func buildLimiters(cfg *config.Config, client *redis.Client, logger *slog.Logger) (endpointLimiters, ratelimit.Set) {
	var out endpointLimiters

	if cfg.RateLimitBackend == "redis" {
		if client != nil {
			out.traffic = redisrepo.NewRateLimiter(client, cfg.RateLimitMaxRequests, cfg.RateLimitWindow).WithPrefix("traffic")
			out.ipcheck = redisrepo.NewRateLimiter(client, cfg.RateLimitMaxRequests, cfg.RateLimitWindow).WithPrefix("ipcheck")
			if cfg.RateLimitCollect {
				out.collect = redisrepo.NewRateLimiter(client, cfg.RateLimitMaxRequests, cfg.RateLimitWindow).WithPrefix("collect")
			}
			return out, nil
		}
		logger.Warn("redis rate limit backend requested without REDIS_URL, falling back to memory")
	}

	windows := ratelimit.Set{
		"traffic": ratelimit.NewSlidingWindow(cfg.RateLimitMaxRequests, cfg.RateLimitWindow, logger),
		"ipcheck": ratelimit.NewSlidingWindow(cfg.RateLimitMaxRequests, cfg.RateLimitWindow, logger),
	}
	out.traffic = windows["traffic"]
	out.ipcheck = windows["ipcheck"]
	if cfg.RateLimitCollect {
		windows["collect"] = ratelimit.NewSlidingWindow(cfg.RateLimitMaxRequests, cfg.RateLimitWindow, logger)
		out.collect = windows["collect"]
	}
	return out, windows
}
