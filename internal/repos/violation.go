package repos

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/platewatch/platewatch-backend/internal/platform/logger"
	"github.com/platewatch/platewatch-backend/internal/types"
)

type ViolationRepo interface {
	InsertIfAbsent(ctx context.Context, tx *gorm.DB, rows []*types.Violation) (int64, error)
	ListByCamis(ctx context.Context, tx *gorm.DB, camis []string) ([]*types.Violation, error)
	CountOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type violationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewViolationRepo(db *gorm.DB, baseLog *logger.Logger) ViolationRepo {
	return &violationRepo{db: db, log: baseLog.With("repo", "ViolationRepo")}
}

func (r *violationRepo) InsertIfAbsent(ctx context.Context, tx *gorm.DB, rows []*types.Violation) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return 0, nil
	}
	res := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *violationRepo) ListByCamis(ctx context.Context, tx *gorm.DB, camis []string) ([]*types.Violation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Violation
	if len(camis) == 0 {
		return out, nil
	}
	err := transaction.WithContext(ctx).
		Where("camis IN ?", camis).
		Order("camis, inspection_date DESC, violation_code").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *violationRepo) CountOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.Violation{}).
		Where("inspection_date < ?", cutoff).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *violationRepo) DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Where("inspection_date < ?", cutoff).
		Delete(&types.Violation{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
