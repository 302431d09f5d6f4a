package dto

import (
	"github.com/classroomlabs/peergrade-api/internal/models"
)

// GroupGenerateRequest configures random group generation for a section.
type GroupGenerateRequest struct {
	PerGroup int `json:"per_group" validate:"omitempty,gte=2,lte=50"`
}

// GroupResponse is returned to API clients when viewing grading groups.
type GroupResponse struct {
	ID        uint             `json:"id"`
	SectionID uint             `json:"section_id"`
	Members   []MemberResponse `json:"members"`
}

// NewGroupResponse converts a Group model into a DTO.
func NewGroupResponse(model models.Group) GroupResponse {
	return GroupResponse{
		ID:        model.ID,
		SectionID: model.SectionID,
		Members:   NewMemberResponseSlice(model.Memberships),
	}
}

// NewGroupResponseSlice converts group models into DTOs.
func NewGroupResponseSlice(models []models.Group) []GroupResponse {
	responses := make([]GroupResponse, 0, len(models))
	for _, group := range models {
		responses = append(responses, NewGroupResponse(group))
	}

	return responses
}
