package types

import "time"

// Violation rows are append-only: insert-if-absent on the full key, never
// updated. Deleted only by the retention job.
type Violation struct {
	Camis                string    `gorm:"column:camis;primaryKey;size:16" json:"camis"`
	InspectionDate       time.Time `gorm:"column:inspection_date;type:date;primaryKey" json:"inspection_date"`
	ViolationCode        string    `gorm:"column:violation_code;primaryKey;size:16" json:"violation_code"`
	ViolationDescription string    `gorm:"column:violation_description" json:"violation_description"`
	CreatedAt            time.Time `gorm:"not null" json:"created_at"`
}

func (Violation) TableName() string { return "violations" }
