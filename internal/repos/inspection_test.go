package repos

import (
	"context"
	"testing"
	"time"

	"github.com/platewatch/platewatch-backend/internal/normalize"
	"github.com/platewatch/platewatch-backend/internal/types"
)

func TestUpsertIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewInspectionRepo(db, nopLog())
	ctx := context.Background()

	row := inspection("40000001", "2025-05-01", "Joe's Pizza", "P")
	row.DBANormalized = normalize.Name(row.DBA)
	if err := repo.Upsert(ctx, nil, []*types.Inspection{row}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	again := inspection("40000001", "2025-05-01", "Joe's Pizza", "A")
	again.DBANormalized = normalize.Name(again.DBA)
	if err := repo.Upsert(ctx, nil, []*types.Inspection{again}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	var count int64
	if err := db.Model(&types.Inspection{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("rows: want=1 got=%d", count)
	}

	grade, found, err := repo.GetGrade(ctx, nil, "40000001", mustDay("2025-05-01"))
	if err != nil || !found {
		t.Fatalf("GetGrade: found=%v err=%v", found, err)
	}
	if grade != "A" {
		t.Fatalf("grade after re-upsert: want=A got=%q", grade)
	}
}

func TestUpsertPreservesEnrichmentColumns(t *testing.T) {
	db := newTestDB(t)
	repo := NewInspectionRepo(db, nopLog())
	ctx := context.Background()

	row := inspection("40000002", "2025-05-01", "Casa Enrique", "A")
	if err := repo.Upsert(ctx, nil, []*types.Inspection{row}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	fsq := "fsq-abc"
	gid := "place-xyz"
	checked := time.Now().UTC()
	if err := repo.SetPlaceIDs(ctx, nil, "40000002", &fsq, &gid, checked); err != nil {
		t.Fatalf("SetPlaceIDs: %v", err)
	}

	// A later feed refresh of the same inspection must not clear the ids.
	if err := repo.Upsert(ctx, nil, []*types.Inspection{inspection("40000002", "2025-05-01", "Casa Enrique", "A")}); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	var got types.Inspection
	if err := db.Where("camis = ?", "40000002").First(&got).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.FoursquareFsqID == nil || *got.FoursquareFsqID != fsq {
		t.Fatalf("foursquare_fsq_id lost on re-upsert: got=%v", got.FoursquareFsqID)
	}
	if got.GooglePlaceID == nil || *got.GooglePlaceID != gid {
		t.Fatalf("google_place_id lost on re-upsert: got=%v", got.GooglePlaceID)
	}
	if got.ExternalIDLastChecked == nil {
		t.Fatalf("external_id_last_checked lost on re-upsert")
	}
}

func TestListGradeTransitionsRerunInsertsNothing(t *testing.T) {
	db := newTestDB(t)
	repo := NewInspectionRepo(db, nopLog())
	events := NewGradeEventRepo(db, nopLog())
	ctx := context.Background()

	rows := []*types.Inspection{
		inspection("40000003", "2025-01-10", "Taqueria Uno", "P"),
		inspection("40000003", "2025-03-15", "Taqueria Uno", "A"),
		inspection("40000004", "2025-02-01", "Steady Diner", "A"),
		inspection("40000004", "2025-04-01", "Steady Diner", "A"),
	}
	if err := repo.Upsert(ctx, nil, rows); err != nil {
		t.Fatalf("seed: %v", err)
	}

	transitions, err := repo.ListGradeTransitions(ctx, nil)
	if err != nil {
		t.Fatalf("ListGradeTransitions: %v", err)
	}
	if len(transitions) != 1 {
		t.Fatalf("transitions: want=1 got=%d", len(transitions))
	}
	tr := transitions[0]
	if tr.Camis != "40000003" || tr.PreviousGrade != "P" || tr.NewGrade != "A" {
		t.Fatalf("transition fields: got=%+v", tr)
	}
	if !tr.InspectionDate.Equal(mustDay("2025-03-15")) {
		t.Fatalf("transition date: want=2025-03-15 got=%v", tr.InspectionDate)
	}

	date := tr.InspectionDate
	if err := events.Insert(ctx, nil, &types.GradeEvent{
		Camis:          tr.Camis,
		PreviousGrade:  tr.PreviousGrade,
		NewGrade:       tr.NewGrade,
		UpdateType:     types.GradeUpdateBackfill,
		InspectionDate: &date,
	}); err != nil {
		t.Fatalf("insert event: %v", err)
	}

	again, err := repo.ListGradeTransitions(ctx, nil)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("rerun transitions: want=0 got=%d", len(again))
	}
}

func TestFinalizeGradeSkipsAlreadyFinal(t *testing.T) {
	db := newTestDB(t)
	repo := NewInspectionRepo(db, nopLog())
	ctx := context.Background()

	if err := repo.Upsert(ctx, nil, []*types.Inspection{
		inspection("40000005", "2025-05-01", "Corner Deli", "P"),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	updated, err := repo.FinalizeGrade(ctx, nil, "40000005", mustDay("2025-05-01"), "B")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if !updated {
		t.Fatalf("finalize pending row: want updated")
	}

	updated, err = repo.FinalizeGrade(ctx, nil, "40000005", mustDay("2025-05-01"), "A")
	if err != nil {
		t.Fatalf("second finalize: %v", err)
	}
	if updated {
		t.Fatalf("finalize already-final row: want no-op")
	}

	grade, _, err := repo.GetGrade(ctx, nil, "40000005", mustDay("2025-05-01"))
	if err != nil {
		t.Fatalf("GetGrade: %v", err)
	}
	if grade != "B" {
		t.Fatalf("grade: want=B got=%q", grade)
	}
}

func TestListUnmatchedCooldownAndOrdering(t *testing.T) {
	db := newTestDB(t)
	repo := NewInspectionRepo(db, nopLog())
	ctx := context.Background()

	never := inspection("50000001", "2025-04-01", "Never Checked", "A")
	stale := inspection("50000002", "2025-05-01", "Checked Long Ago", "A")
	fresh := inspection("50000003", "2025-06-01", "Checked Recently", "A")
	if err := repo.Upsert(ctx, nil, []*types.Inspection{never, stale, fresh}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	staleAt := time.Now().AddDate(0, 0, -100)
	freshAt := time.Now().AddDate(0, 0, -10)
	if err := repo.TouchExternalIDCheck(ctx, nil, "50000002", staleAt); err != nil {
		t.Fatalf("touch stale: %v", err)
	}
	if err := repo.TouchExternalIDCheck(ctx, nil, "50000003", freshAt); err != nil {
		t.Fatalf("touch fresh: %v", err)
	}

	cutoff := time.Now().AddDate(0, 0, -90)
	got, err := repo.ListUnmatched(ctx, nil, cutoff, 10)
	if err != nil {
		t.Fatalf("ListUnmatched: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("eligible restaurants: want=2 got=%d", len(got))
	}
	if got[0].Camis != "50000001" {
		t.Fatalf("never-checked should come first: got=%s", got[0].Camis)
	}
	if got[1].Camis != "50000002" {
		t.Fatalf("stale-checked second: got=%s", got[1].Camis)
	}
}

func TestListNeedingDetails(t *testing.T) {
	db := newTestDB(t)
	repo := NewInspectionRepo(db, nopLog())
	ctx := context.Background()

	matched := inspection("50000004", "2025-05-01", "Matched Place", "A")
	unmatched := inspection("50000005", "2025-05-01", "No Place ID", "A")
	enriched := inspection("50000006", "2025-05-01", "Already Enriched", "A")
	if err := repo.Upsert(ctx, nil, []*types.Inspection{matched, unmatched, enriched}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	gid1, gid2 := "place-1", "place-2"
	if err := repo.SetPlaceIDs(ctx, nil, "50000004", nil, &gid1, time.Now()); err != nil {
		t.Fatalf("SetPlaceIDs: %v", err)
	}
	if err := repo.SetPlaceIDs(ctx, nil, "50000006", nil, &gid2, time.Now()); err != nil {
		t.Fatalf("SetPlaceIDs: %v", err)
	}
	rating := 4.5
	if err := repo.SetPlaceDetails(ctx, nil, "50000006", PlaceDetailsUpdate{Rating: &rating}, time.Now()); err != nil {
		t.Fatalf("SetPlaceDetails: %v", err)
	}

	got, err := repo.ListNeedingDetails(ctx, nil, time.Now().AddDate(0, 0, -30), 10)
	if err != nil {
		t.Fatalf("ListNeedingDetails: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("candidates: want=1 got=%d", len(got))
	}
	if got[0].Camis != "50000004" || got[0].GooglePlaceID != "place-1" {
		t.Fatalf("candidate: got=%+v", got[0])
	}
}

func TestSearchCamisRelevanceAndFilters(t *testing.T) {
	db := newTestDB(t)
	repo := NewInspectionRepo(db, nopLog())
	ctx := context.Background()

	rows := []*types.Inspection{
		inspection("60000001", "2025-05-01", "Joe's Pizza", "A"),
		inspection("60000002", "2025-05-01", "Joe's Pizza & Pasta", "B"),
		inspection("60000003", "2025-05-01", "Uncle Joe's Pizza Palace", "A"),
		inspection("60000004", "2025-05-01", "Totally Different", "A"),
	}
	for _, r := range rows {
		r.DBANormalized = normalize.Name(r.DBA)
		r.Boro = "Brooklyn"
	}
	if err := repo.Upsert(ctx, nil, rows); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := repo.SearchCamis(ctx, nil, SearchFilter{Normalized: "joes pizza"})
	if err != nil {
		t.Fatalf("SearchCamis: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("matches: want=3 got=%d", len(got))
	}
	if got[0] != "60000001" {
		t.Fatalf("exact match first: got=%s", got[0])
	}
	if got[1] != "60000002" {
		t.Fatalf("prefix match second: got=%s", got[1])
	}

	graded, err := repo.SearchCamis(ctx, nil, SearchFilter{Normalized: "joes pizza", Grade: "B"})
	if err != nil {
		t.Fatalf("grade filter: %v", err)
	}
	if len(graded) != 1 || graded[0] != "60000002" {
		t.Fatalf("grade filter: want=[60000002] got=%v", graded)
	}
}

func TestRenormalizeAllUpdatesOnlyStaleRows(t *testing.T) {
	db := newTestDB(t)
	repo := NewInspectionRepo(db, nopLog())
	ctx := context.Background()

	current := inspection("70000001", "2025-05-01", "Cafe Habana", "A")
	current.DBANormalized = normalize.Name(current.DBA)
	stale := inspection("70000002", "2025-05-01", "Joe's Pizza & Pasta", "A")
	stale.DBANormalized = "joe s pizza pasta" // produced by an older rule set
	if err := repo.Upsert(ctx, nil, []*types.Inspection{current, stale}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	changed, err := repo.RenormalizeAll(ctx, nil, normalize.Name)
	if err != nil {
		t.Fatalf("RenormalizeAll: %v", err)
	}
	if changed != 1 {
		t.Fatalf("rows changed: want=1 got=%d", changed)
	}

	var got types.Inspection
	if err := db.Where("camis = ?", "70000002").First(&got).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if want := normalize.Name("Joe's Pizza & Pasta"); got.DBANormalized != want {
		t.Fatalf("normalized: want=%q got=%q", want, got.DBANormalized)
	}
}
