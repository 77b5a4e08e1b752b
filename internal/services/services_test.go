package services

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/platewatch/platewatch-backend/internal/platform/logger"
	"github.com/platewatch/platewatch-backend/internal/platform/socrata"
	"github.com/platewatch/platewatch-backend/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&types.Inspection{}, &types.Violation{}, &types.GradeEvent{}, &types.JobRun{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func nopLog() *logger.Logger { return logger.NewNop() }

func mustDay(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d.UTC()
}

// fakeFeed serves canned records keyed by camis|date for FetchInspection and
// a flat slice for the range calls.
type fakeFeed struct {
	rangeRecords []socrata.InspectionRecord
	byInspection map[string][]socrata.InspectionRecord
	calls        int
}

func feedKey(camis string, date time.Time) string {
	return camis + "|" + date.Format("2006-01-02")
}

func (f *fakeFeed) FetchRange(ctx context.Context, start, end time.Time) []socrata.InspectionRecord {
	f.calls++
	return f.rangeRecords
}

func (f *fakeFeed) FetchAll(ctx context.Context) []socrata.InspectionRecord {
	f.calls++
	return f.rangeRecords
}

func (f *fakeFeed) FetchByCamis(ctx context.Context, camis string) []socrata.InspectionRecord {
	f.calls++
	var out []socrata.InspectionRecord
	for _, recs := range f.byInspection {
		for _, r := range recs {
			if r.Camis == camis {
				out = append(out, r)
			}
		}
	}
	return out
}

func (f *fakeFeed) FetchInspection(ctx context.Context, camis string, inspectionDate time.Time) []socrata.InspectionRecord {
	f.calls++
	if f.byInspection == nil {
		return nil
	}
	return f.byInspection[feedKey(camis, inspectionDate)]
}
