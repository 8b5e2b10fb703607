package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/V4T54L/visitor-ingest/internal/domain"
)

// admit consults limiter for key. A nil limiter admits everything. Limiter
// errors are logged and the request is admitted.
func admit(ctx context.Context, limiter domain.RateLimiter, key string, now time.Time, logger *slog.Logger) domain.Decision {
	if limiter == nil {
		return domain.Decision{Allowed: true}
	}
	d, err := limiter.Admit(ctx, key, now)
	if err != nil {
		logger.Warn("rate limiter unavailable, admitting request", "client", key, "error", err)
		return domain.Decision{Allowed: true}
	}
	return d
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
