package dto

import (
	"strconv"
	"time"

	"gorm.io/datatypes"

	"github.com/classroomlabs/peergrade-api/internal/models"
)

// IndividualScoreCreateRequest records a finished individual grading.
type IndividualScoreCreateRequest struct {
	SubmissionID uint            `json:"submission_id" validate:"required,gt=0"`
	AssignmentID uint            `json:"assignment_id" validate:"required,gt=0"`
	RubricID     uint            `json:"rubric_id" validate:"required,gt=0"`
	Evaluation   map[string]bool `json:"evaluation" validate:"required"`
}

// GroupScoreRequest locates or creates the shared score for a group and
// submission pair.
type GroupScoreRequest struct {
	GroupID      uint `json:"group_id" validate:"required,gt=0"`
	SubmissionID uint `json:"submission_id" validate:"required,gt=0"`
	AssignmentID uint `json:"assignment_id" validate:"required,gt=0"`
	RubricID     uint `json:"rubric_id" validate:"required,gt=0"`
}

// EvaluationUpdateRequest replaces a score's evaluation wholesale.
type EvaluationUpdateRequest struct {
	Evaluation map[string]bool `json:"evaluation" validate:"required"`
}

// SignRequest registers the caller's agreement with the current evaluation.
type SignRequest struct {
	GroupID uint `json:"group_id" validate:"required,gt=0"`
}

// ScoreResponse is returned to API clients and broadcast over the realtime
// channel when a score changes.
type ScoreResponse struct {
	ID           uint            `json:"id"`
	SubmissionID uint            `json:"submission_id"`
	AssignmentID uint            `json:"assignment_id"`
	RubricID     uint            `json:"rubric_id"`
	ScorerID     *uint           `json:"scorer_id"`
	GroupID      *uint           `json:"group_id"`
	Evaluation   map[string]bool `json:"evaluation"`
	Signed       map[string]bool `json:"signed"`
	Done         bool            `json:"done"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// BoolMapFromJSON narrows a stored JSON map to its boolean entries.
func BoolMapFromJSON(stored datatypes.JSONMap) map[string]bool {
	result := make(map[string]bool, len(stored))
	for key, value := range stored {
		if flag, ok := value.(bool); ok {
			result[key] = flag
		}
	}

	return result
}

// JSONFromBoolMap widens a boolean map into the stored JSON representation.
func JSONFromBoolMap(values map[string]bool) datatypes.JSONMap {
	result := make(datatypes.JSONMap, len(values))
	for key, value := range values {
		result[key] = value
	}

	return result
}

// SignedSetFromJSON extracts the user IDs that have signed.
func SignedSetFromJSON(stored datatypes.JSONMap) map[uint]struct{} {
	result := make(map[uint]struct{}, len(stored))
	for key, value := range stored {
		flag, ok := value.(bool)
		if !ok || !flag {
			continue
		}
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			continue
		}
		result[uint(id)] = struct{}{}
	}

	return result
}

// NewScoreResponse converts a Score model into a DTO.
func NewScoreResponse(model models.Score) ScoreResponse {
	return ScoreResponse{
		ID:           model.ID,
		SubmissionID: model.SubmissionID,
		AssignmentID: model.AssignmentID,
		RubricID:     model.RubricID,
		ScorerID:     model.ScorerID,
		GroupID:      model.GroupID,
		Evaluation:   BoolMapFromJSON(model.Evaluation),
		Signed:       BoolMapFromJSON(model.Signed),
		Done:         model.Done,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

// NewScoreResponseSlice converts score models into DTOs.
func NewScoreResponseSlice(models []models.Score) []ScoreResponse {
	responses := make([]ScoreResponse, 0, len(models))
	for _, score := range models {
		responses = append(responses, NewScoreResponse(score))
	}

	return responses
}
