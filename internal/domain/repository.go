package domain

import (
	"context"
	"encoding/json"
	"time"
)

// Category names one bounded log owned by the LogStore.
type Category string

const (
	CategoryTraffic         Category = "traffic"
	CategoryIPCheck         Category = "ipcheck"
	CategoryVisitors        Category = CollectionVisitors
	CategoryFormSubmissions Category = CollectionFormSubmissions
)

// Categories lists every category in a stable order.
var Categories = []Category{CategoryTraffic, CategoryIPCheck, CategoryVisitors, CategoryFormSubmissions}

// ParseCategory maps a category name to its Category.
func ParseCategory(name string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == name {
			return c, true
		}
	}
	return "", false
}

// LogStore is the bounded, append-only record store.
type LogStore interface {
	// Append adds record to the end of the category's log, evicting the
	// oldest records beyond capacity.
	Append(ctx context.Context, category Category, record any) error

	// ReadAll returns every retained record, oldest first.
	ReadAll(ctx context.Context, category Category) ([]json.RawMessage, error)
}

// RateLimiter decides admission for a client key.
type RateLimiter interface {
	Admit(ctx context.Context, key string, now time.Time) (Decision, error)
}

// LeadPublisher forwards accepted contact submissions to the lead stream.
type LeadPublisher interface {
	PublishLead(ctx context.Context, lead LeadSubmission) error
}

// LeadStream is the consumer side of the lead stream.
type LeadStream interface {
	// ReadLeadBatch reads up to count submissions for a consumer of group.
	ReadLeadBatch(ctx context.Context, group, consumer string, count int) ([]LeadSubmission, error)

	// ClaimStaleLeads transfers to consumer up to count submissions that
	// were delivered but left unacknowledged for at least minIdle.
	ClaimStaleLeads(ctx context.Context, group, consumer string, minIdle time.Duration, count int) ([]LeadSubmission, error)

	// AcknowledgeLeads marks messages as processed for group.
	AcknowledgeLeads(ctx context.Context, group string, messageIDs ...string) error

	// MoveToDLQ parks submissions that could not be sunk.
	MoveToDLQ(ctx context.Context, leads []LeadSubmission) error
}

// ProfileRepository is the durable sink for merged visitor profiles.
type ProfileRepository interface {
	// UpsertProfiles inserts or merges profiles without clearing populated fields.
	UpsertProfiles(ctx context.Context, profiles []VisitorProfile) error
}

// APIKeyRepository validates admin API keys.
type APIKeyRepository interface {
	// IsValid checks if the provided API key is valid and active.
	// Implementations should handle caching to reduce database load.
	IsValid(ctx context.Context, key string) (bool, error)
}

// StreamAdminRepository exposes operational views of the lead stream.
type StreamAdminRepository interface {
	GetGroupInfo(ctx context.Context, stream string) ([]ConsumerGroupInfo, error)
	GetPendingSummary(ctx context.Context, stream, group string) (*PendingMessageSummary, error)
	TrimStream(ctx context.Context, stream string, maxLen int64) (int64, error)
}
