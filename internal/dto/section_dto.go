package dto

import (
	"time"

	"github.com/classroomlabs/peergrade-api/internal/models"
)

// SectionCreateRequest describes the payload for creating a section.
type SectionCreateRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=255"`
	Year     int    `json:"year" validate:"required,gte=2000,lte=2200"`
	Semester string `json:"semester" validate:"required,max=32"`
}

// SectionUpdateRequest describes the payload for updating section metadata.
type SectionUpdateRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=255"`
	Year     *int    `json:"year" validate:"omitempty,gte=2000,lte=2200"`
	Semester *string `json:"semester" validate:"omitempty,max=32"`
	Archived *bool   `json:"archived"`
}

// StatusUpdateRequest moves the section to a new lifecycle phase.
type StatusUpdateRequest struct {
	Status string `json:"status" validate:"required,oneof=waiting writing grading_individual grading_groups viewing_results"`
}

// SetAssignmentRequest binds or clears the section's active assignment.
type SetAssignmentRequest struct {
	AssignmentID *uint `json:"assignment_id"`
}

// SectionResponse is returned to API clients when viewing sections.
type SectionResponse struct {
	ID           uint                 `json:"id"`
	Name         string               `json:"name"`
	Year         int                  `json:"year"`
	Semester     string               `json:"semester"`
	Status       models.SectionStatus `json:"status"`
	AssignmentID *uint                `json:"assignment_id"`
	Assignment   *AssignmentResponse  `json:"assignment,omitempty"`
	TeacherID    uint                 `json:"teacher_id"`
	Teacher      UserLite             `json:"teacher"`
	JoinableCode string               `json:"joinable_code"`
	LinkActive   bool                 `json:"link_active"`
	Archived     bool                 `json:"archived"`
	CreatedAt    time.Time            `json:"created_at"`
}

// UserLite summarizes a user without exposing full profile data.
type UserLite struct {
	ID     uint   `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
}

// MemberResponse describes one section member and their group placement.
type MemberResponse struct {
	UserID  uint     `json:"user_id"`
	GroupID *uint    `json:"group_id"`
	User    UserLite `json:"user"`
}

// NewUserLite converts a user model into its summary DTO.
func NewUserLite(model models.User) UserLite {
	return UserLite{
		ID:     model.ID,
		Name:   model.Name,
		Email:  model.Email,
		Avatar: model.Avatar,
	}
}

// NewSectionResponse converts a Section model into a DTO.
func NewSectionResponse(model models.Section) SectionResponse {
	response := SectionResponse{
		ID:           model.ID,
		Name:         model.Name,
		Year:         model.Year,
		Semester:     model.Semester,
		Status:       model.Status,
		AssignmentID: model.AssignmentID,
		TeacherID:    model.TeacherID,
		JoinableCode: model.JoinableCode,
		LinkActive:   model.LinkActive,
		Archived:     model.Archived,
		CreatedAt:    model.CreatedAt,
	}

	if model.Teacher.ID != 0 {
		response.Teacher = NewUserLite(model.Teacher)
	}

	if model.Assignment != nil && model.Assignment.ID != 0 {
		assignment := NewAssignmentResponse(*model.Assignment)
		response.Assignment = &assignment
	}

	return response
}

// NewSectionResponseSlice converts section models into DTOs.
func NewSectionResponseSlice(models []models.Section) []SectionResponse {
	responses := make([]SectionResponse, 0, len(models))
	for _, section := range models {
		responses = append(responses, NewSectionResponse(section))
	}

	return responses
}

// NewMemberResponse converts a membership model into a DTO.
func NewMemberResponse(model models.Membership) MemberResponse {
	return MemberResponse{
		UserID:  model.UserID,
		GroupID: model.GroupID,
		User:    NewUserLite(model.User),
	}
}

// NewMemberResponseSlice converts membership models into DTOs.
func NewMemberResponseSlice(models []models.Membership) []MemberResponse {
	responses := make([]MemberResponse, 0, len(models))
	for _, membership := range models {
		responses = append(responses, NewMemberResponse(membership))
	}

	return responses
}
