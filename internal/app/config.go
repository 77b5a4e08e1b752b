package app

import (
	"strings"
	"time"

	"github.com/platewatch/platewatch-backend/internal/platform/envutil"
	"github.com/platewatch/platewatch-backend/internal/platform/logger"
)

type Config struct {
	ServiceName    string
	Environment    string
	Version        string
	Addr           string
	AllowedOrigins []string

	UpdateSecret string

	UpdateDaysBack  int
	RetentionYears  int
	SearchCacheTTL  time.Duration
	ReconcileBatch  int
	FeedDelay       time.Duration
	EnrichDelay     time.Duration
	IDCooldown      time.Duration
	DetailCooldown  time.Duration
	MatchBatch      int
	DetailBudget    int
	WorkerPoll      time.Duration
	WorkerSlots     int
	JobMaxAttempts  int
	JobRetryDelay   time.Duration
	JobStaleRunning time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		ServiceName:    "platewatch",
		Environment:    envutil.String("APP_ENV", "development"),
		Version:        envutil.String("APP_VERSION", "dev"),
		Addr:           envutil.String("HTTP_ADDR", ":8080"),
		AllowedOrigins: splitCSV(envutil.String("CORS_ALLOWED_ORIGINS", "")),

		UpdateSecret: envutil.String("UPDATE_SECRET", ""),

		UpdateDaysBack:  envutil.Int("UPDATE_DAYS_BACK", 3),
		RetentionYears:  envutil.Int("VIOLATION_RETENTION_YEARS", 4),
		SearchCacheTTL:  envutil.Duration("SEARCH_CACHE_TTL", time.Hour),
		ReconcileBatch:  envutil.Int("RECONCILE_BATCH", 500),
		FeedDelay:       envutil.Duration("FEED_DELAY", 250*time.Millisecond),
		EnrichDelay:     envutil.Duration("ENRICH_DELAY", 200*time.Millisecond),
		IDCooldown:      envutil.Duration("ID_MATCH_COOLDOWN", 90*24*time.Hour),
		DetailCooldown:  envutil.Duration("DETAIL_COOLDOWN", 30*24*time.Hour),
		MatchBatch:      envutil.Int("ID_MATCH_BATCH", 1000),
		DetailBudget:    envutil.Int("DETAIL_REQUEST_BUDGET", 300),
		WorkerPoll:      envutil.Duration("JOB_POLL_INTERVAL", time.Second),
		WorkerSlots:     envutil.Int("JOB_CONCURRENCY", 2),
		JobMaxAttempts:  envutil.Int("JOB_MAX_ATTEMPTS", 3),
		JobRetryDelay:   envutil.Duration("JOB_RETRY_DELAY", 30*time.Second),
		JobStaleRunning: envutil.Duration("JOB_STALE_RUNNING", 30*time.Minute),
	}
	if cfg.UpdateSecret == "" {
		log.Warn("UPDATE_SECRET not set, admin trigger endpoints disabled")
	}
	return cfg
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
