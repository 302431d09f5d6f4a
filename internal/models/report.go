package models

import (
	"time"

	"gorm.io/datatypes"
)

// Report is an immutable, versioned snapshot of computed grades for one
// section and assignment. Regeneration appends a new version, never
// overwrites.
type Report struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	SectionID     uint           `gorm:"not null;index" json:"section_id"`
	AssignmentID  uint           `gorm:"not null;index" json:"assignment_id"`
	RubricID      uint           `gorm:"not null" json:"rubric_id"`
	ReportVersion int            `gorm:"not null" json:"report_version"`
	Report        datatypes.JSON `gorm:"type:json" json:"report"`
	CreatedAt     time.Time      `json:"created_at"`
}
