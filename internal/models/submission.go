package models

import "time"

// Submission holds the text a student turned in for an assignment.
// A student may submit at most once per assignment.
type Submission struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	AssignmentID uint       `gorm:"not null;uniqueIndex:idx_submission_student_assignment" json:"assignment_id"`
	StudentID    uint       `gorm:"not null;uniqueIndex:idx_submission_student_assignment" json:"student_id"`
	Value        string     `gorm:"type:text;not null" json:"value"`
	Student      User       `json:"student"`
	Assignment   Assignment `json:"assignment"`
	Scores       []Score    `json:"scores,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
