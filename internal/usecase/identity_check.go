package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/V4T54L/visitor-ingest/internal/domain"
)

// IdentityCheckUseCase echoes request metadata back to the client and keeps
// a diagnostic trail of who asked.
type IdentityCheckUseCase struct {
	store   domain.LogStore
	limiter domain.RateLimiter
	logger  *slog.Logger
	now     func() time.Time
}

// NewIdentityCheckUseCase creates a new IdentityCheckUseCase.
func NewIdentityCheckUseCase(store domain.LogStore, limiter domain.RateLimiter, logger *slog.Logger) *IdentityCheckUseCase {
	return &IdentityCheckUseCase{
		store:   store,
		limiter: limiter,
		logger:  logger,
		now:     time.Now,
	}
}

// Check admits the caller, fills placeholders into info and appends a
// diagnostic entry for endpoint. Append failures are logged only.
func (uc *IdentityCheckUseCase) Check(ctx context.Context, info domain.RequestInfo, endpoint string) (domain.RequestInfo, domain.Decision, error) {
	now := uc.now()
	info.ClientAddr = orDefault(info.ClientAddr, domain.Unknown)

	decision := admit(ctx, uc.limiter, info.ClientAddr, now, uc.logger)
	if !decision.Allowed {
		uc.logger.Warn("identity check rate limited", "client", info.ClientAddr)
		return domain.RequestInfo{}, decision, domain.ErrRateLimited
	}

	ts := domain.RecordTime(now)
	info.Timestamp = ts.Format(time.RFC3339)
	info.UserAgent = orDefault(info.UserAgent, domain.Unknown)
	info.Referrer = orDefault(info.Referrer, domain.DirectReferrer)
	info.Language = orDefault(info.Language, domain.Unknown)
	info.Method = orDefault(info.Method, domain.Unknown)
	info.Protocol = orDefault(info.Protocol, domain.Unknown)
	info.Host = orDefault(info.Host, domain.Unknown)
	info.RequestURI = orDefault(info.RequestURI, domain.Unknown)

	entry := domain.DiagnosticEntry{
		Timestamp:  ts,
		ClientAddr: info.ClientAddr,
		UserAgent:  info.UserAgent,
		Referrer:   info.Referrer,
		Endpoint:   endpoint,
	}
	if err := uc.store.Append(ctx, domain.CategoryIPCheck, entry); err != nil {
		uc.logger.Error("failed to append identity check entry", "error", err, "client", info.ClientAddr)
	}

	return info, decision, nil
}
