package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/visitor-ingest/internal/domain"
)

// unreachableClient points at a port nothing listens on.
func unreachableClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestNewLeadRepository_UnreachableOnStartup(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := NewLeadRepository(unreachableClient(t), logger, LeadRepositoryOptions{StreamKey: "lead_submissions"})

	if repo.Available() {
		t.Fatal("expected repository to start unavailable when the ping fails")
	}

	start := time.Now()
	err := repo.PublishLead(context.Background(), domain.LeadSubmission{SessionID: "s1"})
	if !errors.Is(err, domain.ErrRedisNotAvailable) {
		t.Fatalf("PublishLead() error = %v, want ErrRedisNotAvailable", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("PublishLead() took %v, want fail fast without dialing", elapsed)
	}
}

func TestDecodeLead(t *testing.T) {
	tests := []struct {
		name    string
		msg     redis.XMessage
		wantErr bool
	}{
		{
			name: "valid payload",
			msg:  redis.XMessage{ID: "1-0", Values: map[string]interface{}{"payload": `{"session_id":"s1"}`}},
		},
		{
			name:    "missing payload",
			msg:     redis.XMessage{ID: "2-0", Values: map[string]interface{}{"session_id": "s1"}},
			wantErr: true,
		},
		{
			name:    "invalid json",
			msg:     redis.XMessage{ID: "3-0", Values: map[string]interface{}{"payload": "{"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lead, err := decodeLead(tt.msg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeLead() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && lead.StreamMessageID != tt.msg.ID {
				t.Errorf("StreamMessageID = %q, want %q", lead.StreamMessageID, tt.msg.ID)
			}
		})
	}
}
