package app

import (
	"gorm.io/gorm"

	"github.com/platewatch/platewatch-backend/internal/platform/logger"
	"github.com/platewatch/platewatch-backend/internal/repos"
)

type Repos struct {
	Inspection repos.InspectionRepo
	Violation  repos.ViolationRepo
	GradeEvent repos.GradeEventRepo
	JobRun     repos.JobRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Inspection: repos.NewInspectionRepo(db, log),
		Violation:  repos.NewViolationRepo(db, log),
		GradeEvent: repos.NewGradeEventRepo(db, log),
		JobRun:     repos.NewJobRunRepo(db, log),
	}
}
