package service

import (
	"github.com/classroomlabs/peergrade-api/internal/dto"
	"github.com/classroomlabs/peergrade-api/internal/models"
)

// Broadcaster pushes domain events to connected realtime clients. Emits are
// fire-and-forget: a missed event never fails the operation that caused it,
// the database remains the source of truth. A nil Broadcaster is valid and
// silently drops every emit.
type Broadcaster interface {
	EmitSectionUpdated(section models.Section)
	EmitStudentJoined(sectionID uint, user models.User)
	EmitSubmissionReceived(sectionID uint, submission models.Submission)
	EmitScoreUpdated(groupID uint, score dto.ScoreResponse, consensusReached bool)
	EmitReportGenerated(sectionID, reportID uint, version int)
	EmitLinkToggled(section models.Section)
}
