package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	GradeUpdateFinalized = "finalized"
	GradeUpdateBackfill  = "backfill"
)

// GradeEvent is the append-only log of pending-to-final grade transitions.
// At most one event exists per (camis, inspection_date); writers check
// existence before inserting rather than relying on a uniqueness constraint.
type GradeEvent struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Camis          string     `gorm:"column:restaurant_camis;size:16;not null;index" json:"restaurant_camis"`
	PreviousGrade  string     `gorm:"column:previous_grade" json:"previous_grade"`
	NewGrade       string     `gorm:"column:new_grade;not null" json:"new_grade"`
	UpdateType     string     `gorm:"column:update_type;not null" json:"update_type"`
	UpdateDate     time.Time  `gorm:"column:update_date;not null;index" json:"update_date"`
	InspectionDate *time.Time `gorm:"column:inspection_date;type:date;index" json:"inspection_date,omitempty"`
	CreatedAt      time.Time  `gorm:"not null" json:"created_at"`
}

func (GradeEvent) TableName() string { return "grade_updates" }
