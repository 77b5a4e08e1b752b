package services

import (
	"context"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/platewatch/platewatch-backend/internal/platform/logger"
	"github.com/platewatch/platewatch-backend/internal/platform/places"
	"github.com/platewatch/platewatch-backend/internal/repos"
)

type EnrichConfig struct {
	// IDCooldown is how long a restaurant stays off the match queue after
	// any id-matching attempt, successful or not.
	IDCooldown time.Duration
	// DetailCooldown is the same for the detail-fetch track.
	DetailCooldown time.Duration
	// MatchBatch caps restaurants per id-matching run.
	MatchBatch int
	// DetailBudget caps provider requests per detail run; the row list is
	// bounded by it, so one run never exceeds it.
	DetailBudget int
	// Delay spaces provider calls.
	Delay time.Duration
}

type MatchStats struct {
	Checked     int
	Matched     int
	NoMatch     int
	MissingData int
	Failed      int
}

type DetailStats struct {
	Updated int
	Failed  int
}

// EnrichService runs the two enrichment tracks: external id matching
// (search provider, then an independent id from the details provider) and
// detail fetching for rows that already hold an id. Each restaurant commits
// on its own so a crash keeps everything finished so far, and every attempt
// stamps its cooldown timestamp whatever the outcome.
type EnrichService struct {
	log         *logger.Logger
	inspections repos.InspectionRepo
	search      places.SearchProvider
	details     places.DetailsProvider
	cfg         EnrichConfig
}

func NewEnrichService(baseLog *logger.Logger, inspections repos.InspectionRepo, search places.SearchProvider, details places.DetailsProvider, cfg EnrichConfig) *EnrichService {
	if cfg.IDCooldown <= 0 {
		cfg.IDCooldown = 90 * 24 * time.Hour
	}
	if cfg.DetailCooldown <= 0 {
		cfg.DetailCooldown = 30 * 24 * time.Hour
	}
	if cfg.MatchBatch <= 0 {
		cfg.MatchBatch = 1000
	}
	if cfg.DetailBudget <= 0 {
		cfg.DetailBudget = 300
	}
	return &EnrichService{
		log:         baseLog.With("service", "EnrichService"),
		inspections: inspections,
		search:      search,
		details:     details,
		cfg:         cfg,
	}
}

// MatchExternalIDs selects restaurants with no provider ids whose last check
// is older than the cooldown (never-checked rows first) and tries to match
// each one. A search match is kept even when the follow-up id lookup finds
// nothing: partial success still counts.
func (s *EnrichService) MatchExternalIDs(ctx context.Context) (MatchStats, error) {
	var stats MatchStats

	cutoff := time.Now().Add(-s.cfg.IDCooldown)
	rows, err := s.inspections.ListUnmatched(ctx, nil, cutoff, s.cfg.MatchBatch)
	if err != nil {
		return stats, err
	}
	if len(rows) == 0 {
		s.log.Info("No restaurants due for id matching")
		return stats, nil
	}
	s.log.Info("Matching external ids", "restaurants", len(rows))

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Checked++
		now := time.Now()

		status, match := s.search.Search(ctx, row.DBA, row.Latitude, row.Longitude)
		switch status {
		case places.StatusSuccess:
			fsqID := match.PlaceID
			var googleID *string
			gStatus, gid := s.details.FindPlaceID(ctx, row.DBA, streetAddress(row))
			if gStatus == places.StatusSuccess {
				googleID = &gid
			}
			if err := s.inspections.SetPlaceIDs(ctx, nil, row.Camis, &fsqID, googleID, now); err != nil {
				return stats, err
			}
			stats.Matched++
		case places.StatusNoMatch:
			if err := s.inspections.TouchExternalIDCheck(ctx, nil, row.Camis, now); err != nil {
				return stats, err
			}
			stats.NoMatch++
		case places.StatusMissingData:
			if err := s.inspections.TouchExternalIDCheck(ctx, nil, row.Camis, now); err != nil {
				return stats, err
			}
			stats.MissingData++
		default:
			if err := s.inspections.TouchExternalIDCheck(ctx, nil, row.Camis, now); err != nil {
				return stats, err
			}
			stats.Failed++
		}

		s.sleep(ctx)
	}

	s.log.Info("Id matching complete",
		"checked", stats.Checked,
		"matched", stats.Matched,
		"no_match", stats.NoMatch,
		"missing_data", stats.MissingData,
		"failed", stats.Failed,
	)
	return stats, nil
}

// EnrichDetails fetches derived details for restaurants that hold a place id
// but whose last detail attempt is older than the cooldown. A provider error
// on one restaurant stamps its attempt and moves on.
func (s *EnrichService) EnrichDetails(ctx context.Context) (DetailStats, error) {
	var stats DetailStats

	cutoff := time.Now().Add(-s.cfg.DetailCooldown)
	rows, err := s.inspections.ListNeedingDetails(ctx, nil, cutoff, s.cfg.DetailBudget)
	if err != nil {
		return stats, err
	}
	if len(rows) == 0 {
		s.log.Info("No restaurants due for detail enrichment")
		return stats, nil
	}
	s.log.Info("Fetching place details", "restaurants", len(rows))

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		now := time.Now()

		details, err := s.details.PlaceDetails(ctx, row.GooglePlaceID)
		if err != nil || details == nil {
			s.log.Warn("Place details fetch failed", "camis", row.Camis, "error", err)
			if err := s.inspections.TouchEnrichmentAttempt(ctx, nil, row.Camis, now); err != nil {
				return stats, err
			}
			stats.Failed++
			s.sleep(ctx)
			continue
		}

		update := repos.PlaceDetailsUpdate{
			Rating:      details.Rating,
			ReviewCount: details.ReviewCount,
			Website:     details.Website,
			MapsURL:     details.MapsURL,
			PriceLevel:  details.PriceLevel,
			DineIn:      details.DineIn,
			Takeout:     details.Takeout,
			Delivery:    details.Delivery,
		}
		if len(details.Hours) > 0 {
			update.Hours = datatypes.JSON(details.Hours)
		}
		if err := s.inspections.SetPlaceDetails(ctx, nil, row.Camis, update, now); err != nil {
			return stats, err
		}
		stats.Updated++

		s.sleep(ctx)
	}

	s.log.Info("Detail enrichment complete", "updated", stats.Updated, "failed", stats.Failed)
	return stats, nil
}

func (s *EnrichService) sleep(ctx context.Context) {
	if s.cfg.Delay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(s.cfg.Delay):
	}
}

func streetAddress(r repos.UnmatchedRestaurant) string {
	return strings.TrimSpace(strings.TrimSpace(r.Building) + " " + strings.TrimSpace(r.Street))
}
