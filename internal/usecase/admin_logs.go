package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/V4T54L/visitor-ingest/internal/adapter/pii"
	"github.com/V4T54L/visitor-ingest/internal/domain"
)

// WindowSnapshotter exposes the live admission windows.
type WindowSnapshotter interface {
	Snapshot() []domain.WindowSnapshot
}

// AdminLogsUseCase serves read-only views of the log store and the
// in-memory rate limiter.
type AdminLogsUseCase struct {
	store    domain.LogStore
	redactor *pii.Redactor
	windows  WindowSnapshotter
	logger   *slog.Logger
}

// NewAdminLogsUseCase creates a new AdminLogsUseCase. redactor and windows may be nil.
func NewAdminLogsUseCase(store domain.LogStore, redactor *pii.Redactor, windows WindowSnapshotter, logger *slog.Logger) *AdminLogsUseCase {
	return &AdminLogsUseCase{store: store, redactor: redactor, windows: windows, logger: logger}
}

// Recent returns up to limit of the newest records of category, oldest
// first. limit <= 0 returns everything. Contact fields are masked unless raw.
func (uc *AdminLogsUseCase) Recent(ctx context.Context, category string, limit int, raw bool) ([]json.RawMessage, error) {
	c, ok := domain.ParseCategory(category)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, category)
	}

	records, err := uc.store.ReadAll(ctx, c)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}

	if raw || uc.redactor == nil {
		return records, nil
	}

	out := make([]json.RawMessage, 0, len(records))
	for _, rec := range records {
		masked, _, err := uc.redactor.Redact(rec)
		if err != nil {
			uc.logger.Warn("skipping record that could not be redacted", "category", category, "error", err)
			continue
		}
		out = append(out, masked)
	}
	return out, nil
}

// RateLimitWindows returns the live admission windows, or nil when the
// limiter keeps no local state.
func (uc *AdminLogsUseCase) RateLimitWindows() []domain.WindowSnapshot {
	if uc.windows == nil {
		return nil
	}
	return uc.windows.Snapshot()
}
