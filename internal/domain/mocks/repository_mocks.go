package mocks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/V4T54L/visitor-ingest/internal/domain"
)

// MockLogStore is an in-memory mock implementation of domain.LogStore.
type MockLogStore struct {
	mu        sync.Mutex
	Records   map[domain.Category][]json.RawMessage
	AppendErr error
	ReadErr   error
}

func (m *MockLogStore) Append(ctx context.Context, category domain.Category, record any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return m.AppendErr
	}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if m.Records == nil {
		m.Records = make(map[domain.Category][]json.RawMessage)
	}
	m.Records[category] = append(m.Records[category], data)
	return nil
}

func (m *MockLogStore) ReadAll(ctx context.Context, category domain.Category) ([]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return append([]json.RawMessage(nil), m.Records[category]...), nil
}

// Count returns the number of records appended to category.
func (m *MockLogStore) Count(category domain.Category) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Records[category])
}

// MockRateLimiter is a mock implementation of domain.RateLimiter.
// It admits every key until Deny is set.
type MockRateLimiter struct {
	mu    sync.Mutex
	Deny  bool
	Err   error
	Calls []string
}

func (m *MockRateLimiter) Admit(ctx context.Context, key string, now time.Time) (domain.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, key)
	if m.Err != nil {
		return domain.Decision{}, m.Err
	}
	if m.Deny {
		return domain.Decision{Allowed: false, Limit: 10, RetryAfter: 60 * time.Second}, nil
	}
	return domain.Decision{Allowed: true, Limit: 10, Remaining: 9}, nil
}

// MockLeadPublisher is a mock implementation of domain.LeadPublisher.
type MockLeadPublisher struct {
	mu         sync.Mutex
	Published  []domain.LeadSubmission
	PublishErr error
}

func (m *MockLeadPublisher) PublishLead(ctx context.Context, lead domain.LeadSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.Published = append(m.Published, lead)
	return nil
}

// MockLeadStream is a mock implementation of domain.LeadStream. It tracks a
// pending list like a consumer group: ReadLeadBatch delivers ReadBatchResult
// once and moves it to pending, acks remove entries, and ClaimStaleLeads
// returns whatever is still pending.
type MockLeadStream struct {
	mu              sync.Mutex
	ReadBatchResult []domain.LeadSubmission
	AckedMessageIDs []string
	DLQLeads        []domain.LeadSubmission
	ClaimMinIdle    time.Duration
	Claims          int
	pending         []domain.LeadSubmission
	ReadErr         error
	ClaimErr        error
	AckErr          error
	DLQErr          error
}

func (m *MockLeadStream) ReadLeadBatch(ctx context.Context, group, consumer string, count int) ([]domain.LeadSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	n := min(count, len(m.ReadBatchResult))
	batch := m.ReadBatchResult[:n]
	m.ReadBatchResult = m.ReadBatchResult[n:]
	m.pending = append(m.pending, batch...)
	return batch, nil
}

func (m *MockLeadStream) ClaimStaleLeads(ctx context.Context, group, consumer string, minIdle time.Duration, count int) ([]domain.LeadSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClaimMinIdle = minIdle
	if m.ClaimErr != nil {
		return nil, m.ClaimErr
	}
	n := min(count, len(m.pending))
	if n == 0 {
		return nil, nil
	}
	m.Claims++
	return append([]domain.LeadSubmission(nil), m.pending[:n]...), nil
}

func (m *MockLeadStream) AcknowledgeLeads(ctx context.Context, group string, messageIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AckErr != nil {
		return m.AckErr
	}
	m.AckedMessageIDs = append(m.AckedMessageIDs, messageIDs...)
	acked := make(map[string]bool, len(messageIDs))
	for _, id := range messageIDs {
		acked[id] = true
	}
	kept := m.pending[:0]
	for _, lead := range m.pending {
		if !acked[lead.StreamMessageID] {
			kept = append(kept, lead)
		}
	}
	m.pending = kept
	return nil
}

func (m *MockLeadStream) MoveToDLQ(ctx context.Context, leads []domain.LeadSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DLQErr != nil {
		return m.DLQErr
	}
	m.DLQLeads = append(m.DLQLeads, leads...)
	return nil
}

// Pending returns the delivered but unacknowledged message IDs.
func (m *MockLeadStream) Pending() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(m.pending))
	for i, lead := range m.pending {
		ids[i] = lead.StreamMessageID
	}
	return ids
}

// MockProfileRepository is a mock implementation of domain.ProfileRepository.
type MockProfileRepository struct {
	mu        sync.Mutex
	Upserted  []domain.VisitorProfile
	Attempts  int
	UpsertErr error
}

func (m *MockProfileRepository) UpsertProfiles(ctx context.Context, profiles []domain.VisitorProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Attempts++
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.Upserted = append(m.Upserted, profiles...)
	return nil
}

// MockAPIKeyRepository is a mock implementation of domain.APIKeyRepository.
type MockAPIKeyRepository struct {
	ValidKeys map[string]bool
	Err       error
}

func (m *MockAPIKeyRepository) IsValid(ctx context.Context, key string) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	return m.ValidKeys[key], nil
}

// MockStreamAdminRepository is a mock implementation of domain.StreamAdminRepository.
type MockStreamAdminRepository struct {
	Groups   []domain.ConsumerGroupInfo
	Pending  *domain.PendingMessageSummary
	Trimmed  int64
	TrimArgs []int64
	Err      error
}

func (m *MockStreamAdminRepository) GetGroupInfo(ctx context.Context, stream string) ([]domain.ConsumerGroupInfo, error) {
	return m.Groups, m.Err
}

func (m *MockStreamAdminRepository) GetPendingSummary(ctx context.Context, stream, group string) (*domain.PendingMessageSummary, error) {
	return m.Pending, m.Err
}

func (m *MockStreamAdminRepository) TrimStream(ctx context.Context, stream string, maxLen int64) (int64, error) {
	m.TrimArgs = append(m.TrimArgs, maxLen)
	return m.Trimmed, m.Err
}
