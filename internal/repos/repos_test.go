package repos

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/platewatch/platewatch-backend/internal/platform/logger"
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

func inspection(camis, date, dba, grade string) *types.Inspection {
	return &types.Inspection{
		Camis:          camis,
		InspectionDate: mustDay(date),
		DBA:            dba,
		Grade:          grade,
	}
}

func mustDay(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d.UTC()
}
