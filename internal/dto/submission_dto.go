package dto

import (
	"time"

	"github.com/classroomlabs/peergrade-api/internal/models"
)

// SubmissionCreateRequest describes the payload for turning in work. The
// assignment is the section's active one, never chosen by the student.
type SubmissionCreateRequest struct {
	Value string `json:"value" validate:"required"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID           uint      `json:"id"`
	AssignmentID uint      `json:"assignment_id"`
	StudentID    uint      `json:"student_id"`
	Value        string    `json:"value"`
	Student      UserLite  `json:"student"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:           model.ID,
		AssignmentID: model.AssignmentID,
		StudentID:    model.StudentID,
		Value:        model.Value,
		CreatedAt:    model.CreatedAt,
	}

	if model.Student.ID != 0 {
		response.Student = NewUserLite(model.Student)
	}

	return response
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(models []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(models))
	for _, submission := range models {
		responses = append(responses, NewSubmissionResponse(submission))
	}

	return responses
}
