package app

import (
	"fmt"

	rediscache "github.com/platewatch/platewatch-backend/internal/clients/redis"
	"github.com/platewatch/platewatch-backend/internal/platform/foursquare"
	"github.com/platewatch/platewatch-backend/internal/platform/googleplaces"
	"github.com/platewatch/platewatch-backend/internal/platform/logger"
	"github.com/platewatch/platewatch-backend/internal/platform/places"
	"github.com/platewatch/platewatch-backend/internal/platform/socrata"
)

type Clients struct {
	Feed    socrata.Client
	Search  places.SearchProvider
	Details places.DetailsProvider
	Cache   rediscache.Cache
}

// wireClients builds the outward-facing clients. The cache is optional:
// when Redis is unreachable the app serves uncached and logs once.
func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	feed, err := socrata.New(log, socrata.ConfigFromEnv())
	if err != nil {
		return Clients{}, fmt.Errorf("init feed client: %w", err)
	}
	search, err := foursquare.New(log, foursquare.ConfigFromEnv())
	if err != nil {
		return Clients{}, fmt.Errorf("init search provider: %w", err)
	}
	details, err := googleplaces.New(log, googleplaces.ConfigFromEnv())
	if err != nil {
		return Clients{}, fmt.Errorf("init details provider: %w", err)
	}

	cache, err := rediscache.NewCache(log)
	if err != nil {
		log.Warn("Redis unavailable, search runs uncached", "error", err)
		cache = nil
	}

	return Clients{
		Feed:    feed,
		Search:  search,
		Details: details,
		Cache:   cache,
	}, nil
}
