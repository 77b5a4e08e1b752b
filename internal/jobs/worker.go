package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/platewatch/platewatch-backend/internal/platform/logger"
	"github.com/platewatch/platewatch-backend/internal/repos"
	"github.com/platewatch/platewatch-backend/internal/types"
)

type WorkerConfig struct {
	PollInterval time.Duration
	Concurrency  int
	MaxAttempts  int
	RetryDelay   time.Duration
	StaleRunning time.Duration
}

// Worker polls the job_run table and dispatches claimed runs to registered
// handlers. Claims use SKIP LOCKED on postgres so multiple workers never run
// the same row; concurrency within one worker is bounded by the errgroup
// limit, which also backpressures the claim loop when saturated.
type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *Registry
	cfg      WorkerConfig
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, registry *Registry, cfg WorkerConfig) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 30 * time.Second
	}
	if cfg.StaleRunning <= 0 {
		cfg.StaleRunning = 30 * time.Minute
	}
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		cfg:      cfg,
	}
}

func (w *Worker) Start(ctx context.Context) {
	go func() {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(w.cfg.Concurrency)

		ticker := time.NewTicker(w.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = g.Wait()
				return
			case <-ticker.C:
				job, err := w.repo.ClaimNextRunnable(ctx, w.db, w.cfg.MaxAttempts, w.cfg.RetryDelay, w.cfg.StaleRunning)
				if err != nil {
					w.log.Warn("ClaimNextRunnable failed", "error", err)
					continue
				}
				if job == nil {
					continue
				}
				g.Go(func() error {
					w.run(gctx, job)
					return nil
				})
			}
		}
	}()
}

func (w *Worker) run(ctx context.Context, job *types.JobRun) {
	h, ok := w.registry.Get(job.JobType)
	if !ok {
		w.log.Warn("No handler registered for job_type", "job_type", job.JobType, "job_id", job.ID)
		w.finish(ctx, job, fmt.Errorf("no handler registered for job_type=%s", job.JobType))
		return
	}

	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("Job handler panic", "job_id", job.ID, "job_type", job.JobType, "panic", r)
				runErr = fmt.Errorf("panic: %v", r)
			}
		}()
		runErr = h.Run(ctx, json.RawMessage(job.Payload))
	}()
	w.finish(ctx, job, runErr)
}

func (w *Worker) finish(ctx context.Context, job *types.JobRun, runErr error) {
	// Bookkeeping must land even when the run was cancelled.
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	if runErr == nil {
		if err := w.repo.MarkSucceeded(ctx, w.db, job.ID); err != nil {
			w.log.Error("MarkSucceeded failed", "job_id", job.ID, "error", err)
		}
		return
	}
	w.log.Warn("Job failed", "job_id", job.ID, "job_type", job.JobType, "error", runErr)
	if err := w.repo.MarkFailed(ctx, w.db, job.ID, runErr.Error()); err != nil {
		w.log.Error("MarkFailed failed", "job_id", job.ID, "error", err)
	}
}
