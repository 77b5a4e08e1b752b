package services

import (
	"context"

	rediscache "github.com/platewatch/platewatch-backend/internal/clients/redis"
	"github.com/platewatch/platewatch-backend/internal/normalize"
	"github.com/platewatch/platewatch-backend/internal/platform/logger"
	"github.com/platewatch/platewatch-backend/internal/repos"
)

// RenormalizeService rewrites the stored normalized name column from the
// raw names. Run after a normalization rule change; stale search cache
// entries keyed on the old normalization are flushed afterwards.
type RenormalizeService struct {
	log         *logger.Logger
	inspections repos.InspectionRepo
	cache       rediscache.Cache
}

func NewRenormalizeService(baseLog *logger.Logger, inspections repos.InspectionRepo, cache rediscache.Cache) *RenormalizeService {
	return &RenormalizeService{
		log:         baseLog.With("service", "RenormalizeService"),
		inspections: inspections,
		cache:       cache,
	}
}

func (s *RenormalizeService) Run(ctx context.Context) (int64, error) {
	changed, err := s.inspections.RenormalizeAll(ctx, nil, normalize.Name)
	if err != nil {
		return changed, err
	}
	s.log.Info("Re-normalized restaurant names", "rows_changed", changed)

	if s.cache != nil {
		if err := s.cache.Flush(ctx); err != nil {
			s.log.Warn("Cache flush after re-normalization failed", "error", err)
		}
	}
	return changed, nil
}
