package dto

import "encoding/json"

// Realtime event names delivered to connected clients.
const (
	EventSectionUpdated     = "section:updated"
	EventStudentJoined      = "section:studentJoined"
	EventSubmissionReceived = "section:submissionReceived"
	EventScoreUpdated       = "score:updated"
	EventReportGenerated    = "report:generated"
	EventLinkToggled        = "joinLink:toggled"
	EventError              = "error"
)

// Realtime commands accepted from connected clients.
const (
	CommandSectionJoin      = "section:join"
	CommandSectionLeave     = "section:leave"
	CommandManagementJoin   = "management:join"
	CommandGroupJoin        = "group:join"
	CommandGroupLeave       = "group:leave"
	CommandEvaluationUpdate = "evaluation:update"
	CommandEvaluationAgree  = "evaluation:agree"
)

// RealtimeEnvelope frames every message in both directions on the websocket.
type RealtimeEnvelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RealtimeCommand is the decoded payload of a client command. Fields are
// populated according to the command's event name.
type RealtimeCommand struct {
	SectionID  uint            `json:"section_id,omitempty"`
	GroupID    uint            `json:"group_id,omitempty"`
	ScoreID    uint            `json:"score_id,omitempty"`
	Evaluation map[string]bool `json:"evaluation,omitempty"`
}

// SectionUpdatedEvent notifies section rooms of a status or assignment change.
type SectionUpdatedEvent struct {
	ID           uint   `json:"id"`
	Status       string `json:"status"`
	AssignmentID *uint  `json:"assignment_id"`
}

// StudentJoinedEvent notifies the management room that a student enrolled.
type StudentJoinedEvent struct {
	SectionID uint     `json:"section_id"`
	User      UserLite `json:"user"`
}

// SubmissionReceivedEvent notifies the management room of a new submission.
type SubmissionReceivedEvent struct {
	SectionID    uint `json:"section_id"`
	SubmissionID uint `json:"submission_id"`
	StudentID    uint `json:"student_id"`
}

// ScoreUpdatedEvent carries the authoritative score state to a group room
// after an evaluation edit or signature.
type ScoreUpdatedEvent struct {
	GroupID          uint          `json:"group_id"`
	Score            ScoreResponse `json:"score"`
	ConsensusReached bool          `json:"consensus_reached"`
}

// ReportGeneratedEvent notifies a section room that fresh results exist.
type ReportGeneratedEvent struct {
	SectionID uint `json:"section_id"`
	ReportID  uint `json:"report_id"`
	Version   int  `json:"version"`
}

// LinkToggledEvent notifies join pages that the invite link flipped.
type LinkToggledEvent struct {
	JoinableCode string `json:"joinable_code"`
	Active       bool   `json:"active"`
}

// ErrorEvent reports a rejected realtime command back to the caller.
type ErrorEvent struct {
	Message string `json:"message"`
}
