package usecase

import (
	"context"
	"fmt"

	"github.com/V4T54L/visitor-ingest/internal/domain"
)

// AdminStreamUseCase provides use cases for lead stream administration.
type AdminStreamUseCase struct {
	repo domain.StreamAdminRepository
}

// NewAdminStreamUseCase creates a new AdminStreamUseCase.
func NewAdminStreamUseCase(repo domain.StreamAdminRepository) *AdminStreamUseCase {
	return &AdminStreamUseCase{repo: repo}
}

func (uc *AdminStreamUseCase) GetGroupInfo(ctx context.Context, stream string) ([]domain.ConsumerGroupInfo, error) {
	return uc.repo.GetGroupInfo(ctx, stream)
}

func (uc *AdminStreamUseCase) GetPendingSummary(ctx context.Context, stream, group string) (*domain.PendingMessageSummary, error) {
	return uc.repo.GetPendingSummary(ctx, stream, group)
}

// TrimStream caps stream at maxLen entries. maxLen must be positive.
func (uc *AdminStreamUseCase) TrimStream(ctx context.Context, stream string, maxLen int64) (int64, error) {
	if maxLen <= 0 {
		return 0, fmt.Errorf("%w: maxLen must be positive", domain.ErrMalformedInput)
	}
	return uc.repo.TrimStream(ctx, stream, maxLen)
}
