package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/platewatch/platewatch-backend/internal/platform/logger"
	"github.com/platewatch/platewatch-backend/internal/platform/socrata"
	"github.com/platewatch/platewatch-backend/internal/repos"
	"github.com/platewatch/platewatch-backend/internal/types"
)

type GradeLogConfig struct {
	// ReconcileBatch bounds how many pending rows one reconciliation pass
	// re-queries against the feed.
	ReconcileBatch int
	// FeedDelay spaces the per-inspection feed lookups.
	FeedDelay time.Duration
}

type ReconcileStats struct {
	Checked   int
	Finalized int
	Events    int
}

// GradeLogService maintains the grade event log outside the ingest path: a
// window scan that backfills transitions already visible in stored history,
// and a reconciliation pass that re-queries the feed for rows stuck on a
// pending grade.
type GradeLogService struct {
	db          *gorm.DB
	log         *logger.Logger
	feed        socrata.Client
	inspections repos.InspectionRepo
	events      repos.GradeEventRepo
	cfg         GradeLogConfig
}

func NewGradeLogService(db *gorm.DB, baseLog *logger.Logger, feed socrata.Client, inspections repos.InspectionRepo, events repos.GradeEventRepo, cfg GradeLogConfig) *GradeLogService {
	if cfg.ReconcileBatch <= 0 {
		cfg.ReconcileBatch = 500
	}
	return &GradeLogService{
		db:          db,
		log:         baseLog.With("service", "GradeLogService"),
		feed:        feed,
		inspections: inspections,
		events:      events,
		cfg:         cfg,
	}
}

// DetectTransitions scans stored inspection history for pending-to-final
// grade changes with no event yet and records one backfill event each.
// The scan query excludes already-recorded pairs, so re-running after a
// complete pass inserts nothing.
func (s *GradeLogService) DetectTransitions(ctx context.Context) (int, error) {
	transitions, err := s.inspections.ListGradeTransitions(ctx, nil)
	if err != nil {
		return 0, err
	}
	if len(transitions) == 0 {
		s.log.Info("No unrecorded grade transitions")
		return 0, nil
	}

	inserted := 0
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range transitions {
			date := t.InspectionDate
			if err := s.events.Insert(ctx, tx, &types.GradeEvent{
				Camis:          t.Camis,
				PreviousGrade:  t.PreviousGrade,
				NewGrade:       t.NewGrade,
				UpdateType:     types.GradeUpdateBackfill,
				UpdateDate:     time.Now(),
				InspectionDate: &date,
			}); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		s.log.Error("Backfill transaction failed", "error", err)
		return 0, err
	}
	s.log.Info("Recorded backfilled grade transitions", "events", inserted)
	return inserted, nil
}

// ReconcilePending re-queries the feed for each row still holding a pending
// grade and finalizes the ones the feed has since graded. One feed call per
// inspection, spaced by FeedDelay; the stored row and its event commit
// together per inspection so a mid-pass failure loses only the tail.
func (s *GradeLogService) ReconcilePending(ctx context.Context) (ReconcileStats, error) {
	var stats ReconcileStats

	pending, err := s.inspections.ListPendingGrade(ctx, nil, s.cfg.ReconcileBatch, 0)
	if err != nil {
		return stats, err
	}
	if len(pending) == 0 {
		s.log.Info("No pending grades to reconcile")
		return stats, nil
	}
	s.log.Info("Reconciling pending grades", "pending", len(pending))

	for _, row := range pending {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		records := s.feed.FetchInspection(ctx, row.Camis, row.InspectionDate)
		stats.Checked++
		if len(records) == 0 {
			s.sleep(ctx)
			continue
		}

		feedGrade := records[0].Grade
		if !types.IsFinalGrade(feedGrade) {
			s.sleep(ctx)
			continue
		}

		updateDate := row.InspectionDate
		if gd, ok := parseFeedDate(records[0].GradeDate); ok {
			updateDate = gd
		}

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			updated, err := s.inspections.FinalizeGrade(ctx, tx, row.Camis, row.InspectionDate, feedGrade)
			if err != nil {
				return err
			}
			if !updated {
				return nil
			}
			stats.Finalized++

			exists, err := s.events.Exists(ctx, tx, row.Camis, row.InspectionDate)
			if err != nil {
				return err
			}
			if exists {
				return nil
			}
			date := row.InspectionDate
			if err := s.events.Insert(ctx, tx, &types.GradeEvent{
				Camis:          row.Camis,
				PreviousGrade:  row.Grade,
				NewGrade:       feedGrade,
				UpdateType:     types.GradeUpdateFinalized,
				UpdateDate:     updateDate,
				InspectionDate: &date,
			}); err != nil {
				return err
			}
			stats.Events++
			return nil
		})
		if err != nil {
			s.log.Error("Reconcile commit failed", "camis", row.Camis, "error", err)
			return stats, err
		}

		s.sleep(ctx)
	}

	s.log.Info("Reconciliation complete",
		"checked", stats.Checked,
		"finalized", stats.Finalized,
		"events", stats.Events,
	)
	return stats, nil
}

func (s *GradeLogService) sleep(ctx context.Context) {
	if s.cfg.FeedDelay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(s.cfg.FeedDelay):
	}
}
