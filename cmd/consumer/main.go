package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/visitor-ingest/internal/adapter/metrics"
	"github.com/V4T54L/visitor-ingest/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/visitor-ingest/internal/adapter/repository/redis"
	"github.com/V4T54L/visitor-ingest/internal/pkg/config"
	"github.com/V4T54L/visitor-ingest/internal/pkg/logger"
	"github.com/V4T54L/visitor-ingest/internal/usecase"
)

const (
	consumerGroup      = "lead-relays"
	processingInterval = 1 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("starting lead relay")

	if cfg.RedisURL == "" || cfg.PostgresURL == "" {
		log.Error("lead relay requires REDIS_URL and POSTGRES_URL")
		os.Exit(1)
	}

	// Create a context that we can cancel on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stopChan
		log.Info("shutdown signal received, stopping relay...")
		cancel()
	}()

	// Connect to Redis
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to redis")

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		log.Error("failed to open postgres connection", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	log.Info("connected to postgres")

	// Create a unique consumer name for this instance
	consumerName, err := os.Hostname()
	if err != nil {
		log.Warn("could not get hostname for consumer name, using default", "error", err)
		consumerName = "relay-default"
	}

	// Metrics
	m := metrics.NewRelayMetrics(prometheus.DefaultRegisterer)
	metricsServer := &http.Server{Addr: cfg.RelayMetricsAddr, Handler: promhttp.Handler()}
	go func() {
		log.Info("starting relay metrics server", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("relay metrics server failed", "error", err)
		}
	}()

	// Instantiate repositories
	leadRepo := redisrepo.NewLeadRepository(redisClient, log, redisrepo.LeadRepositoryOptions{
		StreamKey:    cfg.LeadStream,
		DLQStreamKey: cfg.RedisDLQStream,
		Group:        consumerGroup,
	})
	profileRepo := postgres.NewProfileRepository(db, log)
	if err := profileRepo.EnsureSchema(ctx); err != nil {
		log.Error("failed to ensure visitor profile schema", "error", err)
		os.Exit(1)
	}

	// Instantiate the use case
	relay := usecase.NewRelayLeadsUseCase(leadRepo, profileRepo, log, consumerGroup, consumerName,
		cfg.RelayBatchSize, cfg.RelayMaxRetries, cfg.RelayRetryBackoff).
		WithMetrics(m).
		WithClaimMinIdle(cfg.RelayClaimMinIdle)

	// Start the relay loop
	ticker := time.NewTicker(processingInterval)
	defer ticker.Stop()

	log.Info("lead relay started", "stream", cfg.LeadStream, "group", consumerGroup, "consumer", consumerName)

Loop:
	for {
		select {
		case <-ticker.C:
			if _, err := relay.ProcessBatch(ctx); err != nil {
				log.Error("error processing lead batch", "error", err)
			}
		case <-ctx.Done():
			log.Info("context cancelled, shutting down relay loop")
			break Loop
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("relay metrics server shutdown failed", "error", err)
	}

	log.Info("lead relay shut down gracefully")
}
