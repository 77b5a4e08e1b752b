package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/platewatch/platewatch-backend/internal/normalize"
	"github.com/platewatch/platewatch-backend/internal/platform/logger"
	"github.com/platewatch/platewatch-backend/internal/platform/socrata"
	"github.com/platewatch/platewatch-backend/internal/repos"
	"github.com/platewatch/platewatch-backend/internal/types"
)

const (
	criticalFlag    = "Critical"
	notCriticalFlag = "Not Critical"
	notApplicable   = "N/A"
)

type IngestResult struct {
	Restaurants int
	Violations  int
	GradeEvents int
	Errors      int
}

// IngestService drives feed records into the canonical store. Core columns
// only: enrichment fields and their timestamps belong to the enrichment jobs.
type IngestService struct {
	db          *gorm.DB
	log         *logger.Logger
	feed        socrata.Client
	inspections repos.InspectionRepo
	violations  repos.ViolationRepo
	events      repos.GradeEventRepo
}

func NewIngestService(db *gorm.DB, baseLog *logger.Logger, feed socrata.Client, inspections repos.InspectionRepo, violations repos.ViolationRepo, events repos.GradeEventRepo) *IngestService {
	return &IngestService{
		db:          db,
		log:         baseLog.With("service", "IngestService"),
		feed:        feed,
		inspections: inspections,
		violations:  violations,
		events:      events,
	}
}

// RunUpdate fetches the feed window and ingests it. An empty feed result is
// "nothing to do", not an error.
func (s *IngestService) RunUpdate(ctx context.Context, daysBack int) (IngestResult, error) {
	if daysBack <= 0 {
		daysBack = 3
	}
	start := time.Now().AddDate(0, 0, -daysBack)
	end := time.Now().AddDate(0, 0, 1)
	s.log.Info("Starting database update", "days_back", daysBack)
	records := s.feed.FetchRange(ctx, start, end)
	if len(records) == 0 {
		s.log.Warn("No data from feed")
		return IngestResult{}, nil
	}
	return s.Ingest(ctx, records)
}

type inspectionKey struct {
	camis string
	date  time.Time
}

type aggregated struct {
	detail     socrata.InspectionRecord
	violations []socrata.InspectionRecord
}

// Ingest aggregates the flat feed rows per (camis, inspection_date), detects
// pending-to-final grade changes against the stored row, then upserts
// restaurants and inserts missing violations in a single transaction.
// Re-running the same record set is a no-op beyond timestamp churn.
func (s *IngestService) Ingest(ctx context.Context, records []socrata.InspectionRecord) (IngestResult, error) {
	var result IngestResult

	grouped := make(map[inspectionKey]*aggregated)
	var order []inspectionKey
	for _, rec := range records {
		date, ok := parseFeedDate(rec.InspectionDate)
		if rec.Camis == "" || !ok {
			result.Errors++
			continue
		}
		key := inspectionKey{camis: rec.Camis, date: date}
		agg, seen := grouped[key]
		if !seen {
			agg = &aggregated{detail: rec}
			grouped[key] = agg
			order = append(order, key)
		}
		if rec.ViolationCode != "" {
			agg.violations = append(agg.violations, rec)
		}
	}
	if len(order) == 0 {
		s.log.Warn("No ingestible records in batch", "errors", result.Errors)
		return result, nil
	}
	s.log.Info("Checking inspections against the database", "inspections", len(order))

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows := make([]*types.Inspection, 0, len(order))
		seenViolations := make(map[string]struct{})
		var violationRows []*types.Violation

		for _, key := range order {
			agg := grouped[key]
			newGrade := agg.detail.Grade

			previousGrade, found, err := s.inspections.GetGrade(ctx, tx, key.camis, key.date)
			if err != nil {
				return err
			}
			// A restaurant never seen before counts as pending: its first
			// stored grade can itself be a finalization.
			if types.IsFinalGrade(newGrade) && (!found || types.IsPendingGrade(previousGrade)) {
				inserted, err := s.recordTransition(ctx, tx, key.camis, key.date, previousGrade, newGrade, types.GradeUpdateFinalized, time.Now())
				if err != nil {
					return err
				}
				if inserted {
					s.log.Info("Grade finalized",
						"camis", key.camis,
						"inspection_date", key.date.Format("2006-01-02"),
						"previous_grade", previousGrade,
						"new_grade", newGrade,
					)
					result.GradeEvents++
				}
			}

			rows = append(rows, buildInspection(key, agg))

			for _, v := range agg.violations {
				dedupe := key.camis + "|" + key.date.Format("2006-01-02") + "|" + v.ViolationCode
				if _, dup := seenViolations[dedupe]; dup {
					continue
				}
				seenViolations[dedupe] = struct{}{}
				violationRows = append(violationRows, &types.Violation{
					Camis:                key.camis,
					InspectionDate:       key.date,
					ViolationCode:        v.ViolationCode,
					ViolationDescription: v.ViolationDescription,
				})
			}
		}

		if err := s.inspections.Upsert(ctx, tx, rows); err != nil {
			return err
		}
		result.Restaurants = len(rows)

		inserted, err := s.violations.InsertIfAbsent(ctx, tx, violationRows)
		if err != nil {
			return err
		}
		result.Violations = int(inserted)
		return nil
	})
	if err != nil {
		s.log.Error("Ingest transaction failed", "error", err)
		return result, err
	}

	s.log.Info("Update complete",
		"restaurants", result.Restaurants,
		"violations", result.Violations,
		"grade_events", result.GradeEvents,
		"errors", result.Errors,
	)
	return result, nil
}

func (s *IngestService) recordTransition(ctx context.Context, tx *gorm.DB, camis string, inspectionDate time.Time, previousGrade, newGrade, kind string, updateDate time.Time) (bool, error) {
	exists, err := s.events.Exists(ctx, tx, camis, inspectionDate)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	date := inspectionDate
	err = s.events.Insert(ctx, tx, &types.GradeEvent{
		Camis:          camis,
		PreviousGrade:  previousGrade,
		NewGrade:       newGrade,
		UpdateType:     kind,
		UpdateDate:     updateDate,
		InspectionDate: &date,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func buildInspection(key inspectionKey, agg *aggregated) *types.Inspection {
	detail := agg.detail
	critical := notCriticalFlag
	for _, v := range agg.violations {
		if v.CriticalFlag == criticalFlag {
			critical = criticalFlag
			break
		}
	}
	row := &types.Inspection{
		Camis:              key.camis,
		InspectionDate:     key.date,
		DBA:                detail.DBA,
		DBANormalized:      normalize.Name(detail.DBA),
		Boro:               detail.Boro,
		Building:           detail.Building,
		Street:             detail.Street,
		Zipcode:            detail.Zipcode,
		Phone:              detail.Phone,
		Latitude:           parseCoord(detail.Latitude),
		Longitude:          parseCoord(detail.Longitude),
		Grade:              detail.Grade,
		InspectionType:     detail.InspectionType,
		CuisineDescription: detail.CuisineDescription,
		CriticalFlag:       critical,
		Action:             detail.Action,
	}
	if gd, ok := parseFeedDate(detail.GradeDate); ok {
		row.GradeDate = &gd
	}
	return row
}

var feedDateLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseFeedDate soft-fails: an unparsable date makes the record unkeyable
// and it is counted as an error rather than aborting the batch.
func parseFeedDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range feedDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// parseCoord coerces the feed's string coordinates; empty and "N/A" become
// absent, as does anything unparsable.
func parseCoord(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == notApplicable {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
