package services

import (
	"context"
	"fmt"
	"time"

	"github.com/platewatch/platewatch-backend/internal/platform/logger"
	"github.com/platewatch/platewatch-backend/internal/repos"
)

// RetentionService prunes violation detail older than the retention window.
// Restaurant rows are kept: history stays searchable, only the per-violation
// detail ages out.
type RetentionService struct {
	log        *logger.Logger
	violations repos.ViolationRepo
}

func NewRetentionService(baseLog *logger.Logger, violations repos.ViolationRepo) *RetentionService {
	return &RetentionService{
		log:        baseLog.With("service", "RetentionService"),
		violations: violations,
	}
}

func (s *RetentionService) PruneViolations(ctx context.Context, years int) (int64, error) {
	if years <= 0 {
		return 0, fmt.Errorf("retention years must be positive, got %d", years)
	}
	cutoff := time.Now().AddDate(-years, 0, 0)

	count, err := s.violations.CountOlderThan(ctx, nil, cutoff)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		s.log.Info("No violations past retention", "cutoff", cutoff.Format("2006-01-02"))
		return 0, nil
	}

	deleted, err := s.violations.DeleteOlderThan(ctx, nil, cutoff)
	if err != nil {
		return 0, err
	}
	s.log.Info("Pruned violations past retention",
		"cutoff", cutoff.Format("2006-01-02"),
		"deleted", deleted,
	)
	return deleted, nil
}
