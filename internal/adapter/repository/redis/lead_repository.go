package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/visitor-ingest/internal/adapter/metrics"
	"github.com/V4T54L/visitor-ingest/internal/domain"
)

const startupPingTimeout = 2 * time.Second

// LeadRepository implements domain.LeadPublisher and domain.LeadStream using
// a Redis Stream.
type LeadRepository struct {
	client       *redis.Client
	logger       *slog.Logger
	metrics      *metrics.IngestMetrics
	streamKey    string
	dlqStreamKey string
	maxLen       int64
	isAvailable  atomic.Bool
}

// LeadRepositoryOptions configures a LeadRepository.
type LeadRepositoryOptions struct {
	StreamKey    string
	DLQStreamKey string
	// MaxLen caps the stream approximately on every XADD. Zero disables trimming.
	MaxLen int64
	// Group is created with MKSTREAM when set; publishers leave it empty.
	Group   string
	Metrics *metrics.IngestMetrics
}

// NewLeadRepository creates a new Redis-backed LeadRepository.
func NewLeadRepository(client *redis.Client, logger *slog.Logger, opts LeadRepositoryOptions) *LeadRepository {
	repo := &LeadRepository{
		client:       client,
		logger:       logger.With("component", "lead_repository"),
		metrics:      opts.Metrics,
		streamKey:    opts.StreamKey,
		dlqStreamKey: opts.DLQStreamKey,
		maxLen:       opts.MaxLen,
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), startupPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		repo.setAvailable(false)
		repo.logger.Warn("redis unreachable on startup, lead publishing disabled until it recovers", "error", err)
		return repo
	}
	repo.setAvailable(true)

	if opts.Group != "" {
		if err := repo.setupConsumerGroup(context.Background(), opts.Group); err != nil {
			repo.setAvailable(false)
			repo.logger.Error("failed to setup consumer group, redis may be unavailable on startup", "error", err)
		}
	}

	return repo
}

func (r *LeadRepository) setAvailable(v bool) {
	r.isAvailable.Store(v)
	if r.metrics != nil {
		if v {
			r.metrics.RedisActive.Set(1)
		} else {
			r.metrics.RedisActive.Set(0)
		}
	}
}

// Available reports the last known connectivity state.
func (r *LeadRepository) Available() bool {
	return r.isAvailable.Load()
}

// StartHealthCheck pings Redis on every tick and flips the availability flag.
func (r *LeadRepository) StartHealthCheck(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("starting redis health check", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("stopping redis health check")
			return
		case <-ticker.C:
			err := r.client.Ping(ctx).Err()
			if err != nil {
				if r.isAvailable.CompareAndSwap(true, false) {
					r.setAvailable(false)
					r.logger.Error("redis connection lost", "error", err)
				}
			} else if r.isAvailable.CompareAndSwap(false, true) {
				r.setAvailable(true)
				r.logger.Info("redis connection recovered")
			}
		}
	}
}

func (r *LeadRepository) setupConsumerGroup(ctx context.Context, group string) error {
	err := r.client.XGroupCreateMkStream(ctx, r.streamKey, group, "0").Err()
	if err != nil && !isRedisBusyGroupError(err) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// PublishLead appends a lead to the stream. It fails fast with
// domain.ErrRedisNotAvailable while the connection is known to be down.
func (r *LeadRepository) PublishLead(ctx context.Context, lead domain.LeadSubmission) error {
	if !r.Available() {
		r.countPublish("unavailable")
		return domain.ErrRedisNotAvailable
	}

	payload, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("failed to marshal lead: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: r.streamKey,
		Values: map[string]interface{}{"payload": payload, "session_id": lead.SessionID},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}

	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		if isNetworkError(err) && r.isAvailable.CompareAndSwap(true, false) {
			r.setAvailable(false)
			r.logger.Error("redis connection lost during publish", "error", err)
		}
		r.countPublish("error")
		return fmt.Errorf("failed to XADD to redis stream: %w", err)
	}
	r.countPublish("published")
	return nil
}

func (r *LeadRepository) countPublish(status string) {
	if r.metrics != nil {
		r.metrics.LeadsPublished.WithLabelValues(status).Inc()
	}
}

// ReadLeadBatch reads a batch of leads from the stream for a consumer group.
func (r *LeadRepository) ReadLeadBatch(ctx context.Context, group, consumer string, count int) ([]domain.LeadSubmission, error) {
	args := &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{r.streamKey, ">"},
		Count:    int64(count),
		Block:    2 * time.Second,
	}

	streams, err := r.client.XReadGroup(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to XREADGROUP from redis: %w", err)
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	return r.decodeBatch(ctx, group, streams[0].Messages), nil
}

// ClaimStaleLeads takes over entries that were delivered to any consumer of
// group but stayed unacknowledged for at least minIdle.
func (r *LeadRepository) ClaimStaleLeads(ctx context.Context, group, consumer string, minIdle time.Duration, count int) ([]domain.LeadSubmission, error) {
	messages, _, err := r.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   r.streamKey,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    int64(count),
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to XAUTOCLAIM from redis: %w", err)
	}
	if len(messages) == 0 {
		return nil, nil
	}
	r.logger.Info("claimed stale leads", "count", len(messages), "consumer", consumer)
	return r.decodeBatch(ctx, group, messages), nil
}

func (r *LeadRepository) decodeBatch(ctx context.Context, group string, messages []redis.XMessage) []domain.LeadSubmission {
	leads := make([]domain.LeadSubmission, 0, len(messages))
	for _, msg := range messages {
		lead, err := decodeLead(msg)
		if err != nil {
			r.logger.Warn("skipping undecodable lead message", "message_id", msg.ID, "error", err)
			// Ack poison messages so they are not redelivered forever.
			if ackErr := r.client.XAck(ctx, r.streamKey, group, msg.ID).Err(); ackErr != nil {
				r.logger.Error("failed to ack undecodable message", "message_id", msg.ID, "error", ackErr)
			}
			continue
		}
		leads = append(leads, lead)
	}
	return leads
}

func decodeLead(msg redis.XMessage) (domain.LeadSubmission, error) {
	var lead domain.LeadSubmission
	payload, ok := msg.Values["payload"].(string)
	if !ok {
		return lead, errors.New("missing payload field")
	}
	if err := json.Unmarshal([]byte(payload), &lead); err != nil {
		return lead, err
	}
	lead.StreamMessageID = msg.ID
	return lead, nil
}

// AcknowledgeLeads acknowledges processed messages in the stream.
func (r *LeadRepository) AcknowledgeLeads(ctx context.Context, group string, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if err := r.client.XAck(ctx, r.streamKey, group, messageIDs...).Err(); err != nil {
		return fmt.Errorf("failed to XACK messages in redis: %w", err)
	}
	return nil
}

// MoveToDLQ copies a batch of leads to the dead-letter stream.
func (r *LeadRepository) MoveToDLQ(ctx context.Context, leads []domain.LeadSubmission) error {
	if len(leads) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for _, lead := range leads {
		payload, err := json.Marshal(lead)
		if err != nil {
			r.logger.Error("failed to marshal lead for DLQ", "session_id", lead.SessionID, "error", err)
			continue
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: r.dlqStreamKey,
			Values: map[string]interface{}{
				"payload":         payload,
				"original_stream": r.streamKey,
				"original_msg_id": lead.StreamMessageID,
				"failed_at":       time.Now().UTC().Format(time.RFC3339),
			},
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute DLQ pipeline: %w", err)
	}
	r.logger.Warn("moved leads to DLQ", "count", len(leads))
	return nil
}

func isRedisBusyGroupError(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
