package services

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"

	rediscache "github.com/platewatch/platewatch-backend/internal/clients/redis"
	"github.com/platewatch/platewatch-backend/internal/normalize"
	"github.com/platewatch/platewatch-backend/internal/platform/logger"
	"github.com/platewatch/platewatch-backend/internal/repos"
	"github.com/platewatch/platewatch-backend/internal/types"
)

const (
	defaultPerPage = 25
	maxPerPage     = 100
)

type SearchQuery struct {
	Name    string
	Grade   string
	Boro    string
	Cuisine string
	Sort    string
	Page    int
	PerPage int
}

// ViolationSummary is one violation line within an inspection.
type ViolationSummary struct {
	ViolationCode        string `json:"violation_code"`
	ViolationDescription string `json:"violation_description"`
}

// InspectionSummary is one inspection visit within a restaurant group.
type InspectionSummary struct {
	InspectionDate string             `json:"inspection_date"`
	Grade          string             `json:"grade"`
	GradeDate      string             `json:"grade_date,omitempty"`
	InspectionType string             `json:"inspection_type"`
	CriticalFlag   string             `json:"critical_flag"`
	Action         string             `json:"action"`
	Violations     []ViolationSummary `json:"violations"`
}

// RestaurantResult groups every inspection of one restaurant, newest first,
// with identity and enrichment fields taken from the latest inspection row.
type RestaurantResult struct {
	Camis              string              `json:"camis"`
	DBA                string              `json:"dba"`
	Boro               string              `json:"boro"`
	Building           string              `json:"building"`
	Street             string              `json:"street"`
	Zipcode            string              `json:"zipcode"`
	Phone              string              `json:"phone"`
	Latitude           *float64            `json:"latitude,omitempty"`
	Longitude          *float64            `json:"longitude,omitempty"`
	CuisineDescription string              `json:"cuisine_description"`
	FoursquareFsqID    *string             `json:"foursquare_fsq_id,omitempty"`
	GooglePlaceID      *string             `json:"google_place_id,omitempty"`
	GoogleRating       *float64            `json:"google_rating,omitempty"`
	GoogleReviewCount  *int                `json:"google_review_count,omitempty"`
	Website            *string             `json:"website,omitempty"`
	Hours              datatypes.JSON      `json:"hours,omitempty"`
	GoogleMapsURL      *string             `json:"google_maps_url,omitempty"`
	PriceLevel         *string             `json:"price_level,omitempty"`
	DineIn             *bool               `json:"dine_in,omitempty"`
	Takeout            *bool               `json:"takeout,omitempty"`
	Delivery           *bool               `json:"delivery,omitempty"`
	Inspections        []InspectionSummary `json:"inspections"`
}

// SearchService answers name searches through a read-through cache. The
// query term is normalized with the same function ingestion uses, so a
// search matches exactly what was stored.
type SearchService struct {
	log         *logger.Logger
	inspections repos.InspectionRepo
	violations  repos.ViolationRepo
	cache       rediscache.Cache
	ttl         time.Duration
}

func NewSearchService(baseLog *logger.Logger, inspections repos.InspectionRepo, violations repos.ViolationRepo, cache rediscache.Cache, ttl time.Duration) *SearchService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SearchService{
		log:         baseLog.With("service", "SearchService"),
		inspections: inspections,
		violations:  violations,
		cache:       cache,
		ttl:         ttl,
	}
}

func (s *SearchService) Search(ctx context.Context, q SearchQuery) ([]RestaurantResult, error) {
	term := strings.TrimSpace(q.Name)
	if term == "" {
		return []RestaurantResult{}, nil
	}
	normalized := normalize.Name(term)
	if normalized == "" {
		return []RestaurantResult{}, nil
	}

	if q.PerPage <= 0 {
		q.PerPage = defaultPerPage
	}
	if q.PerPage > maxPerPage {
		q.PerPage = maxPerPage
	}
	if q.Page <= 0 {
		q.Page = 1
	}

	key := rediscache.Key(
		normalized,
		strings.ToUpper(q.Grade),
		q.Boro,
		q.Cuisine,
		q.Sort,
		strconv.Itoa(q.Page),
		strconv.Itoa(q.PerPage),
	)
	if s.cache != nil {
		if raw, hit := s.cache.Get(ctx, key); hit {
			var cached []RestaurantResult
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
			s.log.Warn("Discarding malformed cache entry", "key", key)
		}
	}

	filter := repos.SearchFilter{
		Normalized: normalized,
		Grade:      strings.ToUpper(strings.TrimSpace(q.Grade)),
		Boro:       strings.TrimSpace(q.Boro),
		Cuisine:    strings.TrimSpace(q.Cuisine),
		Sort:       q.Sort,
		Limit:      q.PerPage,
		Offset:     (q.Page - 1) * q.PerPage,
	}
	camis, err := s.inspections.SearchCamis(ctx, nil, filter)
	if err != nil {
		return nil, err
	}
	if len(camis) == 0 {
		return []RestaurantResult{}, nil
	}

	inspections, err := s.inspections.ListByCamis(ctx, nil, camis)
	if err != nil {
		return nil, err
	}
	violations, err := s.violations.ListByCamis(ctx, nil, camis)
	if err != nil {
		return nil, err
	}

	results := assembleResults(camis, inspections, violations)

	if s.cache != nil {
		if raw, err := json.Marshal(results); err == nil {
			s.cache.Set(ctx, key, raw, s.ttl)
		}
	}
	return results, nil
}

// FlushCache drops every cached search result. Used after bulk rewrites of
// the normalized name column.
func (s *SearchService) FlushCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Flush(ctx)
}

func assembleResults(orderedCamis []string, inspections []*types.Inspection, violations []*types.Violation) []RestaurantResult {
	violationsByKey := make(map[string][]ViolationSummary)
	for _, v := range violations {
		k := v.Camis + "|" + v.InspectionDate.Format("2006-01-02")
		violationsByKey[k] = append(violationsByKey[k], ViolationSummary{
			ViolationCode:        v.ViolationCode,
			ViolationDescription: v.ViolationDescription,
		})
	}

	byCamis := make(map[string]*RestaurantResult)
	for _, row := range inspections {
		res, ok := byCamis[row.Camis]
		if !ok {
			// ListByCamis returns rows newest first, so the first row seen
			// per camis carries the freshest identity and enrichment fields.
			res = &RestaurantResult{
				Camis:              row.Camis,
				DBA:                row.DBA,
				Boro:               row.Boro,
				Building:           row.Building,
				Street:             row.Street,
				Zipcode:            row.Zipcode,
				Phone:              row.Phone,
				Latitude:           row.Latitude,
				Longitude:          row.Longitude,
				CuisineDescription: row.CuisineDescription,
				FoursquareFsqID:    row.FoursquareFsqID,
				GooglePlaceID:      row.GooglePlaceID,
				GoogleRating:       row.GoogleRating,
				GoogleReviewCount:  row.GoogleReviewCount,
				Website:            row.Website,
				Hours:              row.Hours,
				GoogleMapsURL:      row.GoogleMapsURL,
				PriceLevel:         row.PriceLevel,
				DineIn:             row.DineIn,
				Takeout:            row.Takeout,
				Delivery:           row.Delivery,
				Inspections:        []InspectionSummary{},
			}
			byCamis[row.Camis] = res
		}

		dateKey := row.InspectionDate.Format("2006-01-02")
		summary := InspectionSummary{
			InspectionDate: dateKey,
			Grade:          row.Grade,
			InspectionType: row.InspectionType,
			CriticalFlag:   row.CriticalFlag,
			Action:         row.Action,
			Violations:     []ViolationSummary{},
		}
		if row.GradeDate != nil {
			summary.GradeDate = row.GradeDate.Format("2006-01-02")
		}
		if vs, ok := violationsByKey[row.Camis+"|"+dateKey]; ok {
			summary.Violations = vs
		}
		res.Inspections = append(res.Inspections, summary)
	}

	out := make([]RestaurantResult, 0, len(orderedCamis))
	for _, c := range orderedCamis {
		if res, ok := byCamis[c]; ok {
			out = append(out, *res)
		}
	}
	return out
}
