package models

import "time"

// Assignment is a writing prompt graded against a rubric.
type Assignment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	RubricID    uint      `gorm:"not null;index" json:"rubric_id"`
	Rubric      Rubric    `json:"rubric"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
