package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/V4T54L/visitor-ingest/internal/domain"
	"github.com/V4T54L/visitor-ingest/internal/pkg/identity"
)

// ContactSubmission is a decoded contact-collector payload. Empty strings
// mean the field was not supplied.
type ContactSubmission struct {
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	Email          string `json:"email"`
	SessionID      string `json:"sessionId"`
	CollectionType string `json:"collectionType"`
	DeviceType     string `json:"deviceType"`
	Location       string `json:"location"`

	ClientAddr string `json:"-"`
}

// CollectVisitorUseCase records contact updates and forwards them to the lead stream.
type CollectVisitorUseCase struct {
	store     domain.LogStore
	limiter   domain.RateLimiter
	publisher domain.LeadPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewCollectVisitorUseCase creates a new CollectVisitorUseCase. limiter and
// publisher are optional.
func NewCollectVisitorUseCase(store domain.LogStore, limiter domain.RateLimiter, publisher domain.LeadPublisher, logger *slog.Logger) *CollectVisitorUseCase {
	return &CollectVisitorUseCase{
		store:     store,
		limiter:   limiter,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Collect normalizes the submission and appends it to the visitors or
// form_submissions log. Store and publish failures are logged only; the
// only error returned is domain.ErrRateLimited.
func (uc *CollectVisitorUseCase) Collect(ctx context.Context, sub ContactSubmission) (domain.LeadSubmission, domain.Decision, error) {
	now := uc.now()
	clientAddr := orDefault(sub.ClientAddr, domain.Unknown)

	decision := admit(ctx, uc.limiter, clientAddr, now, uc.logger)
	if !decision.Allowed {
		uc.logger.Warn("contact submission rate limited", "client", clientAddr)
		return domain.LeadSubmission{}, decision, domain.ErrRateLimited
	}

	lead := domain.LeadSubmission{
		SessionID:      identity.EnsureSessionID(sub.SessionID),
		Name:           optional(sub.Name),
		Phone:          normalizedPhone(sub.Phone),
		Email:          optional(sub.Email),
		CollectionType: collectionFor(sub.CollectionType),
		DeviceType:     orDefault(sub.DeviceType, domain.DeviceUnknown),
		Location:       sub.Location,
		ClientAddr:     clientAddr,
		Timestamp:      domain.RecordTime(now),
	}

	uc.logger.Info("visitor data collected",
		"session_id", lead.SessionID,
		"collection", lead.CollectionType,
		"name", valueOr(lead.Name, "not provided"),
		"phone", valueOr(lead.Phone, ""),
		"email", valueOr(lead.Email, ""),
		"device", lead.DeviceType,
	)

	if err := uc.store.Append(ctx, domain.Category(lead.CollectionType), lead); err != nil {
		uc.logger.Error("failed to append contact submission, dropping", "error", err, "session_id", lead.SessionID)
	}

	if uc.publisher != nil && hasContact(lead) {
		if err := uc.publisher.PublishLead(ctx, lead); err != nil {
			uc.logger.Warn("failed to publish lead", "error", err, "session_id", lead.SessionID)
		}
	}

	return lead, decision, nil
}

func collectionFor(requested string) string {
	if requested == domain.CollectionFormSubmissions {
		return domain.CollectionFormSubmissions
	}
	return domain.CollectionVisitors
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

// normalizedPhone keeps the raw value when it holds no phone-like run.
func normalizedPhone(raw string) *string {
	p := optional(raw)
	if p == nil {
		return nil
	}
	if n, ok := domain.NormalizePhone(*p); ok {
		return &n
	}
	return p
}

func valueOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func hasContact(lead domain.LeadSubmission) bool {
	return lead.Name != nil || lead.Phone != nil || lead.Email != nil
}
