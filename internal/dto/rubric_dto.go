package dto

import (
	"time"

	"github.com/classroomlabs/peergrade-api/internal/models"
)

// RubricCreateRequest describes the payload for creating a rubric.
type RubricCreateRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
}

// RubricUpdateRequest describes the payload for renaming a rubric.
type RubricUpdateRequest struct {
	Name *string `json:"name" validate:"omitempty,min=1,max=255"`
}

// CriterionCreateRequest adds a criterion to a rubric. Points may be negative
// for deductions.
type CriterionCreateRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"max=2000"`
	Points      int    `json:"points" validate:"required"`
}

// CriterionUpdateRequest describes the payload for updating a criterion.
type CriterionUpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Points      *int    `json:"points"`
}

// RubricResponse is returned to API clients when viewing rubrics.
type RubricResponse struct {
	ID        uint                `json:"id"`
	Name      string              `json:"name"`
	Criteria  []CriterionResponse `json:"criteria"`
	CreatedAt time.Time           `json:"created_at"`
}

// CriterionResponse serializes a single rubric criterion.
type CriterionResponse struct {
	ID          uint   `json:"id"`
	RubricID    uint   `json:"rubric_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Points      int    `json:"points"`
}

// AssignmentResponse summarizes an assignment and its rubric.
type AssignmentResponse struct {
	ID          uint            `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	RubricID    uint            `json:"rubric_id"`
	Rubric      *RubricResponse `json:"rubric,omitempty"`
}

// AssignmentCreateRequest describes the payload for creating an assignment.
type AssignmentCreateRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"max=10000"`
	RubricID    uint   `json:"rubric_id" validate:"required,gt=0"`
}

// NewCriterionResponse converts a criterion model into a DTO.
func NewCriterionResponse(model models.Criterion) CriterionResponse {
	return CriterionResponse{
		ID:          model.ID,
		RubricID:    model.RubricID,
		Name:        model.Name,
		Description: model.Description,
		Points:      model.Points,
	}
}

// NewRubricResponse converts a rubric model into a DTO.
func NewRubricResponse(model models.Rubric) RubricResponse {
	criteria := make([]CriterionResponse, 0, len(model.Criteria))
	for _, criterion := range model.Criteria {
		criteria = append(criteria, NewCriterionResponse(criterion))
	}

	return RubricResponse{
		ID:        model.ID,
		Name:      model.Name,
		Criteria:  criteria,
		CreatedAt: model.CreatedAt,
	}
}

// NewRubricResponseSlice converts rubric models into DTOs.
func NewRubricResponseSlice(models []models.Rubric) []RubricResponse {
	responses := make([]RubricResponse, 0, len(models))
	for _, rubric := range models {
		responses = append(responses, NewRubricResponse(rubric))
	}

	return responses
}

// NewAssignmentResponse converts an assignment model into a DTO.
func NewAssignmentResponse(model models.Assignment) AssignmentResponse {
	response := AssignmentResponse{
		ID:          model.ID,
		Name:        model.Name,
		Description: model.Description,
		RubricID:    model.RubricID,
	}

	if model.Rubric.ID != 0 {
		rubric := NewRubricResponse(model.Rubric)
		response.Rubric = &rubric
	}

	return response
}
