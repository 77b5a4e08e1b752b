package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/platewatch/platewatch-backend/internal/types"
)

func TestGradeEventExistsGuard(t *testing.T) {
	db := newTestDB(t)
	repo := NewGradeEventRepo(db, nopLog())
	ctx := context.Background()

	date := mustDay("2025-03-15")
	exists, err := repo.Exists(ctx, nil, "40000003", date)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Fatalf("empty log should report no event")
	}

	event := &types.GradeEvent{
		Camis:          "40000003",
		PreviousGrade:  "P",
		NewGrade:       "A",
		UpdateType:     types.GradeUpdateFinalized,
		InspectionDate: &date,
	}
	if err := repo.Insert(ctx, nil, event); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if event.ID == uuid.Nil {
		t.Fatalf("insert should assign an id")
	}
	if event.UpdateDate.IsZero() {
		t.Fatalf("insert should default the update date")
	}

	exists, err = repo.Exists(ctx, nil, "40000003", date)
	if err != nil {
		t.Fatalf("Exists after insert: %v", err)
	}
	if !exists {
		t.Fatalf("event for (camis, inspection_date) should be found")
	}

	// Same restaurant, different inspection: no event yet.
	other := mustDay("2025-06-01")
	exists, err = repo.Exists(ctx, nil, "40000003", other)
	if err != nil {
		t.Fatalf("Exists other date: %v", err)
	}
	if exists {
		t.Fatalf("different inspection date should have no event")
	}

	recent, err := repo.ListRecent(ctx, nil, 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 1 || recent[0].Camis != "40000003" {
		t.Fatalf("recent events: got=%+v", recent)
	}
}
