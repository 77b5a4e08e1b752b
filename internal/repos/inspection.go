package repos

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/platewatch/platewatch-backend/internal/platform/logger"
	"github.com/platewatch/platewatch-backend/internal/types"
)

// UnmatchedRestaurant is one restaurant (latest inspection per camis) still
// missing an external place id and past its lookup cooldown.
type UnmatchedRestaurant struct {
	Camis          string     `gorm:"column:camis"`
	DBA            string     `gorm:"column:dba"`
	Building       string     `gorm:"column:building"`
	Street         string     `gorm:"column:street"`
	Latitude       *float64   `gorm:"column:latitude"`
	Longitude      *float64   `gorm:"column:longitude"`
	InspectionDate time.Time  `gorm:"column:inspection_date"`
}

// DetailCandidate is a restaurant with a matched place id whose derived
// details have not been fetched yet.
type DetailCandidate struct {
	Camis         string `gorm:"column:camis"`
	GooglePlaceID string `gorm:"column:google_place_id"`
}

// GradeTransition is one pending-to-final grade change found by the window
// scan, not yet recorded in the grade event log.
type GradeTransition struct {
	Camis          string    `gorm:"column:camis"`
	InspectionDate time.Time `gorm:"column:inspection_date"`
	PreviousGrade  string    `gorm:"column:previous_grade"`
	NewGrade       string    `gorm:"column:new_grade"`
}

// PendingInspection is a row whose grade never matured past a pending code.
type PendingInspection struct {
	Camis          string    `gorm:"column:camis"`
	InspectionDate time.Time `gorm:"column:inspection_date"`
	Grade          string    `gorm:"column:grade"`
}

// PlaceDetailsUpdate carries every enrichment field written after a
// successful details lookup.
type PlaceDetailsUpdate struct {
	Rating      *float64
	ReviewCount *int
	Website     *string
	Hours       datatypes.JSON
	MapsURL     *string
	PriceLevel  *string
	DineIn      *bool
	Takeout     *bool
	Delivery    *bool
}

// SearchFilter is the thin query surface for the name search endpoint.
// Normalized must already be the output of normalize.Name.
type SearchFilter struct {
	Normalized string
	Grade      string
	Boro       string
	Cuisine    string
	Sort       string
	Limit      int
	Offset     int
}

type InspectionRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, rows []*types.Inspection) error
	GetGrade(ctx context.Context, tx *gorm.DB, camis string, date time.Time) (string, bool, error)
	ListPendingGrade(ctx context.Context, tx *gorm.DB, limit, offset int) ([]PendingInspection, error)
	FinalizeGrade(ctx context.Context, tx *gorm.DB, camis string, date time.Time, grade string) (bool, error)
	ListGradeTransitions(ctx context.Context, tx *gorm.DB) ([]GradeTransition, error)
	ListUnmatched(ctx context.Context, tx *gorm.DB, checkedBefore time.Time, limit int) ([]UnmatchedRestaurant, error)
	ListNeedingDetails(ctx context.Context, tx *gorm.DB, attemptedBefore time.Time, limit int) ([]DetailCandidate, error)
	SetPlaceIDs(ctx context.Context, tx *gorm.DB, camis string, fsqID, googleID *string, checkedAt time.Time) error
	TouchExternalIDCheck(ctx context.Context, tx *gorm.DB, camis string, checkedAt time.Time) error
	SetPlaceDetails(ctx context.Context, tx *gorm.DB, camis string, d PlaceDetailsUpdate, attemptedAt time.Time) error
	TouchEnrichmentAttempt(ctx context.Context, tx *gorm.DB, camis string, attemptedAt time.Time) error
	RenormalizeAll(ctx context.Context, tx *gorm.DB, fn func(string) string) (int64, error)
	SearchCamis(ctx context.Context, tx *gorm.DB, f SearchFilter) ([]string, error)
	ListByCamis(ctx context.Context, tx *gorm.DB, camis []string) ([]*types.Inspection, error)
}

type inspectionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInspectionRepo(db *gorm.DB, baseLog *logger.Logger) InspectionRepo {
	return &inspectionRepo{db: db, log: baseLog.With("repo", "InspectionRepo")}
}

// eligibleBefore is the shared cooldown predicate applied by both enrichment
// eligibility queries: never attempted, or attempted before the cutoff.
func eligibleBefore(column string) string {
	return "(" + column + " IS NULL OR " + column + " < ?)"
}

// latestPerCamis collapses the inspection history to one row per restaurant,
// keeping the most recent inspection.
const latestPerCamis = `
	SELECT camis, dba, building, street, latitude, longitude, grade, boro,
	       cuisine_description, inspection_date, dba_normalized_search,
	       foursquare_fsq_id, google_place_id, google_rating,
	       external_id_last_checked, enrichment_last_attempted,
	       ROW_NUMBER() OVER (PARTITION BY camis ORDER BY inspection_date DESC) AS rn
	FROM restaurants`

func (r *inspectionRepo) Upsert(ctx context.Context, tx *gorm.DB, rows []*types.Inspection) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	for _, row := range rows {
		if row.Camis == "" || row.InspectionDate.IsZero() {
			return fmt.Errorf("upsert: row missing camis or inspection_date")
		}
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "camis"}, {Name: "inspection_date"}},
			DoUpdates: clause.AssignmentColumns(types.Inspection{}.CoreColumns()),
		}).
		Create(&rows).Error
}

func (r *inspectionRepo) GetGrade(ctx context.Context, tx *gorm.DB, camis string, date time.Time) (string, bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []types.Inspection
	err := transaction.WithContext(ctx).
		Select("grade").
		Where("camis = ? AND inspection_date = ?", camis, date).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return "", false, err
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].Grade, true, nil
}

func (r *inspectionRepo) ListPendingGrade(ctx context.Context, tx *gorm.DB, limit, offset int) ([]PendingInspection, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []PendingInspection
	err := transaction.WithContext(ctx).
		Model(&types.Inspection{}).
		Select("camis", "inspection_date", "grade").
		Where("grade IN ('P','Z','N','')").
		Order("camis, inspection_date").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FinalizeGrade promotes a still-pending row to a final letter grade. The
// pending condition is part of the WHERE so a concurrent ingestion that
// already finalized the row makes this a no-op.
func (r *inspectionRepo) FinalizeGrade(ctx context.Context, tx *gorm.DB, camis string, date time.Time, grade string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.Inspection{}).
		Where("camis = ? AND inspection_date = ? AND grade IN ('P','Z','N','')", camis, date).
		Updates(map[string]interface{}{"grade": grade, "updated_at": time.Now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *inspectionRepo) ListGradeTransitions(ctx context.Context, tx *gorm.DB) ([]GradeTransition, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []GradeTransition
	err := transaction.WithContext(ctx).Raw(`
		SELECT h.camis, h.inspection_date, h.prev_grade AS previous_grade, h.grade AS new_grade
		FROM (
			SELECT camis, inspection_date, grade,
			       LAG(grade) OVER (PARTITION BY camis ORDER BY inspection_date) AS prev_grade
			FROM restaurants
		) h
		WHERE h.prev_grade IN ('P','Z','N','')
		  AND h.grade IN ('A','B','C')
		  AND NOT EXISTS (
			SELECT 1 FROM grade_updates g
			WHERE g.restaurant_camis = h.camis AND g.inspection_date = h.inspection_date
		  )
		ORDER BY h.camis, h.inspection_date`).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *inspectionRepo) ListUnmatched(ctx context.Context, tx *gorm.DB, checkedBefore time.Time, limit int) ([]UnmatchedRestaurant, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []UnmatchedRestaurant
	err := transaction.WithContext(ctx).Raw(`
		SELECT camis, dba, building, street, latitude, longitude, inspection_date
		FROM (`+latestPerCamis+`
		) latest
		WHERE rn = 1
		  AND foursquare_fsq_id IS NULL
		  AND `+eligibleBefore("external_id_last_checked")+`
		ORDER BY (external_id_last_checked IS NULL) DESC, inspection_date DESC
		LIMIT ?`, checkedBefore, limit).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *inspectionRepo) ListNeedingDetails(ctx context.Context, tx *gorm.DB, attemptedBefore time.Time, limit int) ([]DetailCandidate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []DetailCandidate
	err := transaction.WithContext(ctx).Raw(`
		SELECT camis, google_place_id
		FROM (`+latestPerCamis+`
		) latest
		WHERE rn = 1
		  AND google_place_id IS NOT NULL
		  AND google_rating IS NULL
		  AND `+eligibleBefore("enrichment_last_attempted")+`
		ORDER BY (enrichment_last_attempted IS NULL) DESC, inspection_date DESC
		LIMIT ?`, attemptedBefore, limit).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetPlaceIDs writes whichever external ids the match run produced (partial
// success keeps the first-provider id with the second absent) and stamps the
// cooldown timestamp in the same statement. Applies to every inspection row
// of the restaurant.
func (r *inspectionRepo) SetPlaceIDs(ctx context.Context, tx *gorm.DB, camis string, fsqID, googleID *string, checkedAt time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	updates := map[string]interface{}{
		"external_id_last_checked": checkedAt,
		"updated_at":               time.Now(),
	}
	if fsqID != nil {
		updates["foursquare_fsq_id"] = *fsqID
	}
	if googleID != nil {
		updates["google_place_id"] = *googleID
	}
	return transaction.WithContext(ctx).
		Model(&types.Inspection{}).
		Where("camis = ?", camis).
		Updates(updates).Error
}

// TouchExternalIDCheck stamps the lookup timestamp after a failed or empty
// match so the restaurant is not retried before the cooldown elapses.
func (r *inspectionRepo) TouchExternalIDCheck(ctx context.Context, tx *gorm.DB, camis string, checkedAt time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Inspection{}).
		Where("camis = ?", camis).
		Updates(map[string]interface{}{
			"external_id_last_checked": checkedAt,
			"updated_at":               time.Now(),
		}).Error
}

func (r *inspectionRepo) SetPlaceDetails(ctx context.Context, tx *gorm.DB, camis string, d PlaceDetailsUpdate, attemptedAt time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Inspection{}).
		Where("camis = ?", camis).
		Updates(map[string]interface{}{
			"google_rating":             d.Rating,
			"google_review_count":       d.ReviewCount,
			"website":                   d.Website,
			"hours":                     d.Hours,
			"google_maps_url":           d.MapsURL,
			"price_level":               d.PriceLevel,
			"dine_in":                   d.DineIn,
			"takeout":                   d.Takeout,
			"delivery":                  d.Delivery,
			"enrichment_last_attempted": attemptedAt,
			"updated_at":                time.Now(),
		}).Error
}

func (r *inspectionRepo) TouchEnrichmentAttempt(ctx context.Context, tx *gorm.DB, camis string, attemptedAt time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Inspection{}).
		Where("camis = ?", camis).
		Updates(map[string]interface{}{
			"enrichment_last_attempted": attemptedAt,
			"updated_at":                time.Now(),
		}).Error
}

// RenormalizeAll re-derives the stored search key for every row using fn,
// updating only rows whose key changed. Maintenance path, not steady-state.
func (r *inspectionRepo) RenormalizeAll(ctx context.Context, tx *gorm.DB, fn func(string) string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	const batchSize = 500
	var changed int64
	for offset := 0; ; offset += batchSize {
		var rows []struct {
			Camis          string    `gorm:"column:camis"`
			InspectionDate time.Time `gorm:"column:inspection_date"`
			DBA            string    `gorm:"column:dba"`
			DBANormalized  string    `gorm:"column:dba_normalized_search"`
		}
		err := transaction.WithContext(ctx).
			Model(&types.Inspection{}).
			Select("camis", "inspection_date", "dba", "dba_normalized_search").
			Order("camis, inspection_date").
			Limit(batchSize).
			Offset(offset).
			Find(&rows).Error
		if err != nil {
			return changed, err
		}
		for _, row := range rows {
			want := fn(row.DBA)
			if want == row.DBANormalized {
				continue
			}
			err := transaction.WithContext(ctx).
				Model(&types.Inspection{}).
				Where("camis = ? AND inspection_date = ?", row.Camis, row.InspectionDate).
				Updates(map[string]interface{}{
					"dba_normalized_search": want,
					"updated_at":            time.Now(),
				}).Error
			if err != nil {
				return changed, err
			}
			changed++
		}
		if len(rows) < batchSize {
			return changed, nil
		}
	}
}

func (r *inspectionRepo) SearchCamis(ctx context.Context, tx *gorm.DB, f SearchFilter) ([]string, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	where := "rn = 1 AND dba_normalized_search LIKE ?"
	args := []interface{}{"%" + f.Normalized + "%"}
	if f.Grade != "" {
		where += " AND grade = ?"
		args = append(args, f.Grade)
	}
	if f.Boro != "" {
		where += " AND LOWER(boro) = LOWER(?)"
		args = append(args, f.Boro)
	}
	if f.Cuisine != "" {
		where += " AND LOWER(cuisine_description) LIKE LOWER(?)"
		args = append(args, "%"+f.Cuisine+"%")
	}

	var orderBy string
	switch f.Sort {
	case "name_asc":
		orderBy = "dba ASC"
	case "name_desc":
		orderBy = "dba DESC"
	case "date_desc":
		orderBy = "inspection_date DESC"
	case "grade_asc":
		orderBy = "CASE WHEN grade = 'A' THEN 1 WHEN grade = 'B' THEN 2 WHEN grade = 'C' THEN 3 ELSE 4 END, dba ASC"
	default:
		// relevance: exact match, then prefix, then substring; shorter names first
		orderBy = "CASE WHEN dba_normalized_search = ? THEN 0 WHEN dba_normalized_search LIKE ? THEN 1 ELSE 2 END, LENGTH(dba_normalized_search)"
		args = append(args, f.Normalized, f.Normalized+"%")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 25
	}
	args = append(args, limit, f.Offset)

	var camis []string
	err := transaction.WithContext(ctx).Raw(`
		SELECT camis
		FROM (`+latestPerCamis+`
		) latest
		WHERE `+where+`
		ORDER BY `+orderBy+`
		LIMIT ? OFFSET ?`, args...).
		Scan(&camis).Error
	if err != nil {
		return nil, err
	}
	return camis, nil
}

func (r *inspectionRepo) ListByCamis(ctx context.Context, tx *gorm.DB, camis []string) ([]*types.Inspection, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Inspection
	if len(camis) == 0 {
		return out, nil
	}
	err := transaction.WithContext(ctx).
		Where("camis IN ?", camis).
		Order("camis, inspection_date DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
