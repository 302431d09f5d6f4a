package models

import "time"

// SectionStatus tracks which phase of the grading activity a section is in.
type SectionStatus string

// Activity lifecycle phases, in progression order.
const (
	StatusWaiting           SectionStatus = "waiting"
	StatusWriting           SectionStatus = "writing"
	StatusGradingIndividual SectionStatus = "grading_individual"
	StatusGradingGroups     SectionStatus = "grading_groups"
	StatusViewingResults    SectionStatus = "viewing_results"
)

// StatusOrder lists the lifecycle phases in progression order.
var StatusOrder = []SectionStatus{
	StatusWaiting,
	StatusWriting,
	StatusGradingIndividual,
	StatusGradingGroups,
	StatusViewingResults,
}

// Index returns the position of the status in the lifecycle order, or -1 for
// an unknown value.
func (s SectionStatus) Index() int {
	switch s {
	case StatusWaiting:
		return 0
	case StatusWriting:
		return 1
	case StatusGradingIndividual:
		return 2
	case StatusGradingGroups:
		return 3
	case StatusViewingResults:
		return 4
	default:
		return -1
	}
}

// Valid reports whether the value is a known lifecycle phase.
func (s SectionStatus) Valid() bool {
	return s.Index() >= 0
}

// CanTransitionTo reports whether moving to next is a legal single step.
// Transitions move exactly one position forward or backward; EndActivity is
// the only escape hatch that skips this rule.
func (s SectionStatus) CanTransitionTo(next SectionStatus) bool {
	from := s.Index()
	to := next.Index()
	if from < 0 || to < 0 {
		return false
	}
	diff := to - from
	return diff == 1 || diff == -1
}

// Next returns the following phase in the lifecycle, if any.
func (s SectionStatus) Next() (SectionStatus, bool) {
	idx := s.Index()
	if idx < 0 || idx >= len(StatusOrder)-1 {
		return "", false
	}
	return StatusOrder[idx+1], true
}

// Previous returns the preceding phase in the lifecycle, if any.
func (s SectionStatus) Previous() (SectionStatus, bool) {
	idx := s.Index()
	if idx <= 0 {
		return "", false
	}
	return StatusOrder[idx-1], true
}

// Section is a roster of enrolled students running one grading activity at a
// time. AssignmentID is set whenever the status has progressed past waiting
// and is cleared again when the activity ends.
type Section struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	Name         string        `gorm:"size:255;not null" json:"name"`
	Year         int           `gorm:"not null" json:"year"`
	Semester     string        `gorm:"size:32" json:"semester"`
	Status       SectionStatus `gorm:"size:32;not null;default:waiting" json:"status"`
	AssignmentID *uint         `json:"assignment_id"`
	Assignment   *Assignment   `json:"assignment,omitempty"`
	TeacherID    uint          `gorm:"not null;index" json:"teacher_id"`
	Teacher      User          `json:"teacher"`
	JoinableCode string        `gorm:"size:64;uniqueIndex;not null" json:"joinable_code"`
	LinkActive   bool          `gorm:"not null;default:false" json:"link_active"`
	Archived     bool          `gorm:"not null;default:false" json:"archived"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Memberships  []Membership  `json:"memberships,omitempty"`
}
