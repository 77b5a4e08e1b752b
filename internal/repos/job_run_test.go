package repos

import (
	"context"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/platewatch/platewatch-backend/internal/types"
)

func TestJobRunLifecycle(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRunRepo(db, nopLog())
	ctx := context.Background()

	queued, err := repo.Enqueue(ctx, nil, &types.JobRun{
		JobType: "ingest_update",
		Payload: datatypes.JSON(`{"days_back":7}`),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if queued.Status != types.JobStatusQueued {
		t.Fatalf("status after enqueue: want=%s got=%s", types.JobStatusQueued, queued.Status)
	}

	claimed, err := repo.ClaimNextRunnable(ctx, nil, 3, 30*time.Second, 30*time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed == nil || claimed.ID != queued.ID {
		t.Fatalf("claimed job: got=%+v", claimed)
	}

	// Running and not stale: nothing else to claim.
	second, err := repo.ClaimNextRunnable(ctx, nil, 3, 30*time.Second, 30*time.Minute)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if second != nil {
		t.Fatalf("second claim should find nothing, got=%+v", second)
	}

	if err := repo.MarkSucceeded(ctx, nil, claimed.ID); err != nil {
		t.Fatalf("MarkSucceeded: %v", err)
	}
	final, err := repo.GetByID(ctx, nil, claimed.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if final.Status != types.JobStatusSucceeded || final.FinishedAt == nil {
		t.Fatalf("final state: status=%s finished_at=%v", final.Status, final.FinishedAt)
	}
	if final.Attempts != 1 {
		t.Fatalf("attempts: want=1 got=%d", final.Attempts)
	}
}

func TestJobRunRetryAfterFailure(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRunRepo(db, nopLog())
	ctx := context.Background()

	queued, err := repo.Enqueue(ctx, nil, &types.JobRun{JobType: "reconcile_pending"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	claimed, err := repo.ClaimNextRunnable(ctx, nil, 2, time.Millisecond, 30*time.Minute)
	if err != nil || claimed == nil {
		t.Fatalf("claim: job=%v err=%v", claimed, err)
	}
	if err := repo.MarkFailed(ctx, nil, claimed.ID, "feed unavailable"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	retried, err := repo.ClaimNextRunnable(ctx, nil, 2, time.Millisecond, 30*time.Minute)
	if err != nil {
		t.Fatalf("retry claim: %v", err)
	}
	if retried == nil || retried.ID != queued.ID {
		t.Fatalf("failed job not retried: got=%+v", retried)
	}
	if err := repo.MarkFailed(ctx, nil, retried.ID, "feed unavailable"); err != nil {
		t.Fatalf("MarkFailed again: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	// Attempts exhausted.
	exhausted, err := repo.ClaimNextRunnable(ctx, nil, 2, time.Millisecond, 30*time.Minute)
	if err != nil {
		t.Fatalf("exhausted claim: %v", err)
	}
	if exhausted != nil {
		t.Fatalf("job past max attempts should stay failed, got=%+v", exhausted)
	}

	final, err := repo.GetByID(ctx, nil, queued.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if final.Attempts != 2 || final.Status != types.JobStatusFailed {
		t.Fatalf("final: attempts=%d status=%s", final.Attempts, final.Status)
	}
	if final.Error == "" {
		t.Fatalf("error message not recorded")
	}
}
