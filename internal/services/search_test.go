package services

import (
	"context"
	"testing"
	"time"

	"github.com/platewatch/platewatch-backend/internal/repos"
	"github.com/platewatch/platewatch-backend/internal/types"
)

type fakeCache struct {
	store   map[string][]byte
	hits    int
	misses  int
	sets    int
	flushes int
}

func newFakeCache() *fakeCache { return &fakeCache{store: map[string][]byte{}} }

func (f *fakeCache) Get(ctx context.Context, key string) ([]byte, bool) {
	v, ok := f.store[key]
	if ok {
		f.hits++
	} else {
		f.misses++
	}
	return v, ok
}

func (f *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	f.sets++
	f.store[key] = value
}

func (f *fakeCache) Flush(ctx context.Context) error {
	f.flushes++
	f.store = map[string][]byte{}
	return nil
}

func (f *fakeCache) Close() error { return nil }

func seedSearchData(t *testing.T, inspections repos.InspectionRepo, violations repos.ViolationRepo) {
	t.Helper()
	ctx := context.Background()

	older := &types.Inspection{
		Camis: "40000001", InspectionDate: mustDay("2024-11-01"),
		DBA: "Joe's Pizza", DBANormalized: "joes pizza",
		Boro: "Manhattan", Grade: "B", CuisineDescription: "Pizza",
	}
	newer := &types.Inspection{
		Camis: "40000001", InspectionDate: mustDay("2025-05-01"),
		DBA: "Joe's Pizza", DBANormalized: "joes pizza",
		Boro: "Manhattan", Grade: "A", CuisineDescription: "Pizza",
	}
	if err := inspections.Upsert(ctx, nil, []*types.Inspection{older, newer}); err != nil {
		t.Fatalf("seed inspections: %v", err)
	}
	if _, err := violations.InsertIfAbsent(ctx, nil, []*types.Violation{
		{Camis: "40000001", InspectionDate: mustDay("2024-11-01"), ViolationCode: "04L", ViolationDescription: "Evidence of mice"},
	}); err != nil {
		t.Fatalf("seed violations: %v", err)
	}
}

func TestSearchGroupsInspectionsPerRestaurant(t *testing.T) {
	db := newTestDB(t)
	log := nopLog()
	inspections := repos.NewInspectionRepo(db, log)
	violations := repos.NewViolationRepo(db, log)
	seedSearchData(t, inspections, violations)

	svc := NewSearchService(log, inspections, violations, nil, time.Hour)

	results, err := svc.Search(context.Background(), SearchQuery{Name: "Joe's Pizza"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("restaurants: want=1 got=%d", len(results))
	}
	r := results[0]
	if r.Camis != "40000001" || r.DBA != "Joe's Pizza" {
		t.Fatalf("restaurant identity: got=%+v", r)
	}
	if len(r.Inspections) != 2 {
		t.Fatalf("inspections: want=2 got=%d", len(r.Inspections))
	}
	if r.Inspections[0].InspectionDate != "2025-05-01" {
		t.Fatalf("newest inspection first: got=%s", r.Inspections[0].InspectionDate)
	}
	if len(r.Inspections[0].Violations) != 0 {
		t.Fatalf("clean visit should list no violations: got=%d", len(r.Inspections[0].Violations))
	}
	if len(r.Inspections[1].Violations) != 1 {
		t.Fatalf("older visit violations: want=1 got=%d", len(r.Inspections[1].Violations))
	}
}

func TestSearchReadsThroughCache(t *testing.T) {
	db := newTestDB(t)
	log := nopLog()
	inspections := repos.NewInspectionRepo(db, log)
	violations := repos.NewViolationRepo(db, log)
	seedSearchData(t, inspections, violations)

	cache := newFakeCache()
	svc := NewSearchService(log, inspections, violations, cache, time.Hour)
	ctx := context.Background()

	first, err := svc.Search(ctx, SearchQuery{Name: "joes pizza"})
	if err != nil {
		t.Fatalf("first search: %v", err)
	}
	if cache.misses != 1 || cache.sets != 1 {
		t.Fatalf("first search cache traffic: misses=%d sets=%d", cache.misses, cache.sets)
	}

	second, err := svc.Search(ctx, SearchQuery{Name: "joes pizza"})
	if err != nil {
		t.Fatalf("second search: %v", err)
	}
	if cache.hits != 1 {
		t.Fatalf("second search should hit the cache: hits=%d", cache.hits)
	}
	if len(first) != len(second) || first[0].Camis != second[0].Camis {
		t.Fatalf("cached result differs: first=%+v second=%+v", first, second)
	}

	// Different filters never share an entry.
	if _, err := svc.Search(ctx, SearchQuery{Name: "joes pizza", Grade: "A"}); err != nil {
		t.Fatalf("filtered search: %v", err)
	}
	if cache.misses != 2 {
		t.Fatalf("filtered search should miss: misses=%d", cache.misses)
	}
}

func TestSearchEmptyTermReturnsNothing(t *testing.T) {
	db := newTestDB(t)
	log := nopLog()
	svc := NewSearchService(log, repos.NewInspectionRepo(db, log), repos.NewViolationRepo(db, log), nil, time.Hour)

	results, err := svc.Search(context.Background(), SearchQuery{Name: "   "})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("blank term: want=0 got=%d", len(results))
	}
}
