package models

import "time"

// Rubric is a grading template made of weighted criteria.
type Rubric struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	Name      string      `gorm:"size:255;not null" json:"name"`
	Criteria  []Criterion `json:"criteria,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Criterion carries a signed point value; negative points act as deductions
// and never contribute to the achievable maximum.
type Criterion struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RubricID    uint      `gorm:"not null;index" json:"rubric_id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Points      int       `gorm:"not null" json:"points"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
