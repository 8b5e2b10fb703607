package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/V4T54L/visitor-ingest/internal/domain"
	"github.com/V4T54L/visitor-ingest/internal/pkg/identity"
)

// TrafficEvent is a decoded traffic beacon together with the request
// attributes the server observed.
type TrafficEvent struct {
	Page       string
	Action     string
	SessionID  string
	DeviceType string
	Browser    string

	ClientAddr string
	UserAgent  string
	Referrer   string
}

// LogTrafficUseCase admits and records traffic beacons.
type LogTrafficUseCase struct {
	store   domain.LogStore
	limiter domain.RateLimiter
	logger  *slog.Logger
	now     func() time.Time
}

// NewLogTrafficUseCase creates a new LogTrafficUseCase.
func NewLogTrafficUseCase(store domain.LogStore, limiter domain.RateLimiter, logger *slog.Logger) *LogTrafficUseCase {
	return &LogTrafficUseCase{
		store:   store,
		limiter: limiter,
		logger:  logger,
		now:     time.Now,
	}
}

// Log applies admission control, fills defaults and appends the record to
// the traffic log. A rejected request returns domain.ErrRateLimited and
// leaves no trace in the store.
func (uc *LogTrafficUseCase) Log(ctx context.Context, ev TrafficEvent) (domain.EventRecord, domain.Decision, error) {
	now := uc.now()
	clientAddr := orDefault(ev.ClientAddr, domain.Unknown)

	decision := admit(ctx, uc.limiter, clientAddr, now, uc.logger)
	if !decision.Allowed {
		uc.logger.Warn("traffic beacon rate limited", "client", clientAddr)
		return domain.EventRecord{}, decision, domain.ErrRateLimited
	}

	record := domain.EventRecord{
		Timestamp:  domain.RecordTime(now),
		ClientAddr: clientAddr,
		UserAgent:  orDefault(ev.UserAgent, domain.Unknown),
		Referrer:   orDefault(ev.Referrer, domain.DirectReferrer),
		Page:       orDefault(ev.Page, domain.Unknown),
		Action:     orDefault(ev.Action, domain.ActionVisit),
		SessionID:  identity.EnsureSessionID(ev.SessionID),
		DeviceType: orDefault(ev.DeviceType, domain.DeviceUnknown),
		Browser:    orDefault(ev.Browser, domain.Unknown),
	}
	if !domain.IsKnownAction(record.Action) {
		uc.logger.Debug("unrecognized traffic action", "action", record.Action)
	}

	if err := uc.store.Append(ctx, domain.CategoryTraffic, record); err != nil {
		uc.logger.Error("failed to append traffic record", "error", err, "session_id", record.SessionID)
		return record, decision, err
	}
	return record, decision, nil
}
