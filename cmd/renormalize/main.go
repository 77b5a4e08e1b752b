// One-off maintenance command: rewrite the stored normalized restaurant
// names with the current normalization rules and flush the search cache.
package main

import (
	"context"
	"fmt"
	"os"

	rediscache "github.com/platewatch/platewatch-backend/internal/clients/redis"
	"github.com/platewatch/platewatch-backend/internal/db"
	"github.com/platewatch/platewatch-backend/internal/platform/envutil"
	"github.com/platewatch/platewatch-backend/internal/platform/logger"
	"github.com/platewatch/platewatch-backend/internal/repos"
	"github.com/platewatch/platewatch-backend/internal/services"
)

func main() {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	defer pg.Close()

	cache, err := rediscache.NewCache(log)
	if err != nil {
		log.Warn("Redis unavailable, skipping cache flush", "error", err)
		cache = nil
	}

	inspections := repos.NewInspectionRepo(pg.DB(), log)
	svc := services.NewRenormalizeService(log, inspections, cache)

	changed, err := svc.Run(context.Background())
	if err != nil {
		log.Fatal("Re-normalization failed", "error", err)
	}
	log.Info("Done", "rows_changed", changed)
}
