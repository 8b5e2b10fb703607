package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/V4T54L/visitor-ingest/internal/adapter/metrics"
	"github.com/V4T54L/visitor-ingest/internal/domain"
)

const (
	defaultBatchSize    = 100
	defaultRetryCount   = 3
	defaultRetryBackoff = 1 * time.Second
	defaultClaimMinIdle = 30 * time.Second
)

// RelayLeadsUseCase moves lead submissions from the lead stream into the
// visitor profile sink.
type RelayLeadsUseCase struct {
	stream       domain.LeadStream
	sink         domain.ProfileRepository
	logger       *slog.Logger
	group        string
	consumer     string
	batchSize    int
	maxRetries   int
	retryBackoff time.Duration
	claimMinIdle time.Duration
	metrics      *metrics.RelayMetrics
}

// NewRelayLeadsUseCase creates a new use case for relaying leads.
// Non-positive tuning values fall back to defaults.
func NewRelayLeadsUseCase(stream domain.LeadStream, sink domain.ProfileRepository, logger *slog.Logger, group, consumer string, batchSize, maxRetries int, retryBackoff time.Duration) *RelayLeadsUseCase {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if maxRetries <= 0 {
		maxRetries = defaultRetryCount
	}
	if retryBackoff <= 0 {
		retryBackoff = defaultRetryBackoff
	}
	return &RelayLeadsUseCase{
		stream:       stream,
		sink:         sink,
		logger:       logger,
		group:        group,
		consumer:     consumer,
		batchSize:    batchSize,
		maxRetries:   maxRetries,
		retryBackoff: retryBackoff,
		claimMinIdle: defaultClaimMinIdle,
	}
}

// WithMetrics attaches relay metrics.
func (uc *RelayLeadsUseCase) WithMetrics(m *metrics.RelayMetrics) *RelayLeadsUseCase {
	uc.metrics = m
	return uc
}

// WithClaimMinIdle sets how long a delivered entry may stay unacknowledged
// before another ProcessBatch call takes it over.
func (uc *RelayLeadsUseCase) WithClaimMinIdle(d time.Duration) *RelayLeadsUseCase {
	if d > 0 {
		uc.claimMinIdle = d
	}
	return uc
}

// ProcessBatch takes over stale pending leads or, when there are none, reads
// new ones. The batch is merged per session, written to the sink and
// acknowledged. A batch the sink keeps rejecting is moved to the DLQ and
// acknowledged. Anything left unacknowledged is claimed again once it has
// been idle for claimMinIdle.
func (uc *RelayLeadsUseCase) ProcessBatch(ctx context.Context) (int, error) {
	leads, err := uc.nextBatch(ctx)
	if err != nil {
		uc.logger.Error("failed to read lead batch from stream", "error", err)
		return 0, err
	}

	if len(leads) == 0 {
		return 0, nil // No new leads, not an error
	}

	uc.logger.Debug("read batch of leads from stream", "count", len(leads))

	profiles := MergeProfiles(leads)
	messageIDs := make([]string, len(leads))
	for i, lead := range leads {
		messageIDs[i] = lead.StreamMessageID
	}

	// 2. Attempt to write the merged profiles to the sink (PostgreSQL) with retries
	if err := uc.writeWithRetry(ctx, profiles); err != nil {
		if ctx.Err() != nil {
			// Shutting down; the batch stays pending for the next claim.
			uc.countBatch("failed")
			return 0, err
		}
		uc.logger.Error("failed to write profiles to sink after retries, moving batch to DLQ", "error", err)
		if dlqErr := uc.stream.MoveToDLQ(ctx, leads); dlqErr != nil {
			// Still pending; claimed again after claimMinIdle.
			uc.logger.Error("failed to move leads to DLQ", "error", dlqErr)
			uc.countBatch("failed")
			return 0, dlqErr
		}
		if ackErr := uc.stream.AcknowledgeLeads(ctx, uc.group, messageIDs...); ackErr != nil {
			uc.logger.Error("failed to acknowledge dead-lettered leads", "error", ackErr)
		}
		uc.countBatch("dead_lettered")
		if uc.metrics != nil {
			uc.metrics.DeadLettered.Add(float64(len(leads)))
		}
		return 0, err
	}

	// 3. Acknowledge the messages in the stream (Redis)
	if err := uc.stream.AcknowledgeLeads(ctx, uc.group, messageIDs...); err != nil {
		// Profiles are stored; the reclaimed batch merges into the same rows.
		uc.logger.Error("failed to acknowledge leads in stream", "error", err)
		return 0, err
	}

	uc.countBatch("sunk")
	if uc.metrics != nil {
		uc.metrics.ProfilesUpserted.Add(float64(len(profiles)))
	}
	uc.logger.Info("successfully relayed lead batch", "leads", len(leads), "profiles", len(profiles))
	return len(leads), nil
}

func (uc *RelayLeadsUseCase) nextBatch(ctx context.Context) ([]domain.LeadSubmission, error) {
	claimed, err := uc.stream.ClaimStaleLeads(ctx, uc.group, uc.consumer, uc.claimMinIdle, uc.batchSize)
	if err != nil {
		uc.logger.Warn("failed to claim stale leads", "error", err)
	}
	if len(claimed) > 0 {
		if uc.metrics != nil {
			uc.metrics.Reclaimed.Add(float64(len(claimed)))
		}
		return claimed, nil
	}
	return uc.stream.ReadLeadBatch(ctx, uc.group, uc.consumer, uc.batchSize)
}

func (uc *RelayLeadsUseCase) countBatch(outcome string) {
	if uc.metrics != nil {
		uc.metrics.BatchesTotal.WithLabelValues(outcome).Inc()
	}
}

func (uc *RelayLeadsUseCase) writeWithRetry(ctx context.Context, profiles []domain.VisitorProfile) error {
	var lastErr error
	for i := 0; i < uc.maxRetries; i++ {
		err := uc.sink.UpsertProfiles(ctx, profiles)
		if err == nil {
			return nil // Success
		}
		lastErr = err
		uc.logger.Warn("failed to write profiles to sink, retrying...", "attempt", i+1, "error", err)
		select {
		case <-time.After(uc.retryBackoff):
			// continue
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// MergeProfiles folds leads into one profile per session, in order of first
// appearance. Later non-blank fields win; blanks never clear a field.
func MergeProfiles(leads []domain.LeadSubmission) []domain.VisitorProfile {
	index := make(map[string]int, len(leads))
	profiles := make([]domain.VisitorProfile, 0, len(leads))
	for _, lead := range leads {
		update := lead.Profile()
		if i, ok := index[lead.SessionID]; ok {
			profiles[i].Merge(update)
			continue
		}
		var p domain.VisitorProfile
		p.Merge(update)
		index[lead.SessionID] = len(profiles)
		profiles = append(profiles, p)
	}
	return profiles
}
