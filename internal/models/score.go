package models

import (
	"strconv"
	"time"

	"gorm.io/datatypes"
)

// Score records one grading of a submission. Exactly one of ScorerID and
// GroupID is set: ScorerID for individual scores, GroupID for group scores.
// Evaluation maps criterion IDs to checked state; Signed maps user IDs to
// their agreement with the current evaluation content. Once Done is set it is
// never reverted.
type Score struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	SubmissionID uint              `gorm:"not null;index" json:"submission_id"`
	AssignmentID uint              `gorm:"not null;index" json:"assignment_id"`
	RubricID     uint              `gorm:"not null" json:"rubric_id"`
	ScorerID     *uint             `gorm:"index" json:"scorer_id"`
	GroupID      *uint             `gorm:"index" json:"group_id"`
	Evaluation   datatypes.JSONMap `gorm:"type:json" json:"evaluation"`
	Signed       datatypes.JSONMap `gorm:"type:json" json:"signed"`
	Done         bool              `gorm:"not null;default:false" json:"done"`
	Scorer       *User             `json:"scorer,omitempty"`
	Group        *Group            `json:"group,omitempty"`
	Submission   Submission        `json:"submission"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// IsGroupScore reports whether the score is owned by a group rather than an
// individual scorer.
func (s Score) IsGroupScore() bool {
	return s.GroupID != nil
}

// SignedBy reports whether the given user has signed the current evaluation.
func (s Score) SignedBy(userID uint) bool {
	value, ok := s.Signed[strconv.FormatUint(uint64(userID), 10)]
	if !ok {
		return false
	}
	signed, ok := value.(bool)
	return ok && signed
}

// CriterionChecked reports whether the evaluation marks the criterion as met.
func (s Score) CriterionChecked(criterionID uint) bool {
	value, ok := s.Evaluation[strconv.FormatUint(uint64(criterionID), 10)]
	if !ok {
		return false
	}
	checked, ok := value.(bool)
	return ok && checked
}
