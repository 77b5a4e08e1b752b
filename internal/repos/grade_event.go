package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/platewatch/platewatch-backend/internal/platform/logger"
	"github.com/platewatch/platewatch-backend/internal/types"
)

type GradeEventRepo interface {
	// Exists reports whether a transition event was already recorded for the
	// (camis, inspection_date) pair. Callers must check before Insert; the
	// log does not rely on a uniqueness constraint.
	Exists(ctx context.Context, tx *gorm.DB, camis string, inspectionDate time.Time) (bool, error)
	Insert(ctx context.Context, tx *gorm.DB, event *types.GradeEvent) error
	ListRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*types.GradeEvent, error)
}

type gradeEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGradeEventRepo(db *gorm.DB, baseLog *logger.Logger) GradeEventRepo {
	return &gradeEventRepo{db: db, log: baseLog.With("repo", "GradeEventRepo")}
}

func (r *gradeEventRepo) Exists(ctx context.Context, tx *gorm.DB, camis string, inspectionDate time.Time) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.GradeEvent{}).
		Where("restaurant_camis = ? AND inspection_date = ?", camis, inspectionDate).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *gradeEventRepo) Insert(ctx context.Context, tx *gorm.DB, event *types.GradeEvent) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.UpdateDate.IsZero() {
		event.UpdateDate = time.Now()
	}
	return transaction.WithContext(ctx).Create(event).Error
}

func (r *gradeEventRepo) ListRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*types.GradeEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}
	var out []*types.GradeEvent
	err := transaction.WithContext(ctx).
		Order("update_date DESC, created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
