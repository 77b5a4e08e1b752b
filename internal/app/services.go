package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/platewatch/platewatch-backend/internal/jobs"
	"github.com/platewatch/platewatch-backend/internal/platform/logger"
	"github.com/platewatch/platewatch-backend/internal/services"
)

type Services struct {
	Ingest      *services.IngestService
	Grades      *services.GradeLogService
	Enrich      *services.EnrichService
	Search      *services.SearchService
	Renormalize *services.RenormalizeService
	Retention   *services.RetentionService

	JobRegistry *jobs.Registry
	JobWorker   *jobs.Worker
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, c Clients) (Services, error) {
	log.Info("Wiring services...")

	ingest := services.NewIngestService(db, log, c.Feed, r.Inspection, r.Violation, r.GradeEvent)
	grades := services.NewGradeLogService(db, log, c.Feed, r.Inspection, r.GradeEvent, services.GradeLogConfig{
		ReconcileBatch: cfg.ReconcileBatch,
		FeedDelay:      cfg.FeedDelay,
	})
	enrich := services.NewEnrichService(log, r.Inspection, c.Search, c.Details, services.EnrichConfig{
		IDCooldown:     cfg.IDCooldown,
		DetailCooldown: cfg.DetailCooldown,
		MatchBatch:     cfg.MatchBatch,
		DetailBudget:   cfg.DetailBudget,
		Delay:          cfg.EnrichDelay,
	})
	search := services.NewSearchService(log, r.Inspection, r.Violation, c.Cache, cfg.SearchCacheTTL)
	renormalize := services.NewRenormalizeService(log, r.Inspection, c.Cache)
	retention := services.NewRetentionService(log, r.Violation)

	registry := jobs.NewRegistry()
	handlers := []jobs.Handler{
		&jobs.IngestUpdateHandler{Ingest: ingest, DefaultDaysBack: cfg.UpdateDaysBack},
		&jobs.DetectTransitionsHandler{Grades: grades},
		&jobs.ReconcilePendingHandler{Grades: grades},
		&jobs.MatchExternalIDsHandler{Enrich: enrich},
		&jobs.EnrichDetailsHandler{Enrich: enrich},
		&jobs.RenormalizeHandler{Renormalize: renormalize},
		&jobs.PruneViolationsHandler{Retention: retention, DefaultYears: cfg.RetentionYears},
	}
	for _, h := range handlers {
		if err := registry.Register(h); err != nil {
			return Services{}, fmt.Errorf("register job handler: %w", err)
		}
	}

	worker := jobs.NewWorker(db, log, r.JobRun, registry, jobs.WorkerConfig{
		PollInterval: cfg.WorkerPoll,
		Concurrency:  cfg.WorkerSlots,
		MaxAttempts:  cfg.JobMaxAttempts,
		RetryDelay:   cfg.JobRetryDelay,
		StaleRunning: cfg.JobStaleRunning,
	})

	return Services{
		Ingest:      ingest,
		Grades:      grades,
		Enrich:      enrich,
		Search:      search,
		Renormalize: renormalize,
		Retention:   retention,
		JobRegistry: registry,
		JobWorker:   worker,
	}, nil
}
