package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/V4T54L/visitor-ingest/internal/domain"
	"github.com/V4T54L/visitor-ingest/internal/domain/mocks"
)

func TestCollectVisitorUseCase_Collect(t *testing.T) {
	t.Run("Normalizes Phone And Stores Visitor", func(t *testing.T) {
		store := &mocks.MockLogStore{}
		publisher := &mocks.MockLeadPublisher{}
		uc := NewCollectVisitorUseCase(store, nil, publisher, testLogger())

		lead, _, err := uc.Collect(context.Background(), ContactSubmission{
			Name:      "Asha",
			Phone:     "Call me at +91 98765-43210 now",
			SessionID: "session_abc",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if lead.Phone == nil || *lead.Phone != "+919876543210" {
			t.Errorf("phone = %v, want +919876543210", lead.Phone)
		}
		if lead.Email != nil {
			t.Errorf("missing email should stay nil, got %q", *lead.Email)
		}
		if lead.CollectionType != domain.CollectionVisitors {
			t.Errorf("collection = %q, want visitors", lead.CollectionType)
		}
		if store.Count(domain.CategoryVisitors) != 1 {
			t.Fatalf("expected 1 visitors record, got %d", store.Count(domain.CategoryVisitors))
		}
		if len(publisher.Published) != 1 || publisher.Published[0].SessionID != "session_abc" {
			t.Errorf("expected lead to be published, got %+v", publisher.Published)
		}

		var stored map[string]any
		if err := json.Unmarshal(store.Records[domain.CategoryVisitors][0], &stored); err != nil {
			t.Fatal(err)
		}
		if v, ok := stored["email"]; !ok || v != nil {
			t.Errorf("stored email should be null, got %v", v)
		}
	})

	t.Run("Unmatched Phone Kept Raw", func(t *testing.T) {
		uc := NewCollectVisitorUseCase(&mocks.MockLogStore{}, nil, nil, testLogger())
		lead, _, _ := uc.Collect(context.Background(), ContactSubmission{Phone: "ext 42"})
		if lead.Phone == nil || *lead.Phone != "ext 42" {
			t.Errorf("phone = %v, want raw value", lead.Phone)
		}
	})

	t.Run("Form Submissions Collection", func(t *testing.T) {
		store := &mocks.MockLogStore{}
		uc := NewCollectVisitorUseCase(store, nil, nil, testLogger())
		if _, _, err := uc.Collect(context.Background(), ContactSubmission{Email: "a@b.co", CollectionType: "form_submissions"}); err != nil {
			t.Fatal(err)
		}
		if store.Count(domain.CategoryFormSubmissions) != 1 || store.Count(domain.CategoryVisitors) != 0 {
			t.Error("expected record in form_submissions only")
		}
	})

	t.Run("No Contact Fields Not Published", func(t *testing.T) {
		publisher := &mocks.MockLeadPublisher{}
		uc := NewCollectVisitorUseCase(&mocks.MockLogStore{}, nil, publisher, testLogger())
		lead, _, _ := uc.Collect(context.Background(), ContactSubmission{Name: "  "})
		if lead.Name != nil {
			t.Error("blank name should be treated as missing")
		}
		if len(publisher.Published) != 0 {
			t.Error("empty submission should not be published")
		}
	})

	t.Run("Store And Publish Failures Are Swallowed", func(t *testing.T) {
		uc := NewCollectVisitorUseCase(
			&mocks.MockLogStore{AppendErr: domain.ErrStoreUnavailable},
			nil,
			&mocks.MockLeadPublisher{PublishErr: domain.ErrRedisNotAvailable},
			testLogger(),
		)
		if _, _, err := uc.Collect(context.Background(), ContactSubmission{Name: "Asha"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("Rate Limited When Enabled", func(t *testing.T) {
		store := &mocks.MockLogStore{}
		uc := NewCollectVisitorUseCase(store, &mocks.MockRateLimiter{Deny: true}, nil, testLogger())
		_, _, err := uc.Collect(context.Background(), ContactSubmission{Name: "Asha"})
		if !errors.Is(err, domain.ErrRateLimited) {
			t.Fatalf("expected ErrRateLimited, got %v", err)
		}
		if store.Count(domain.CategoryVisitors) != 0 {
			t.Error("rejected submission must not be stored")
		}
	})
}
