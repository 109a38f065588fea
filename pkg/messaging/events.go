package messaging

import (
	"time"

	"github.com/google/uuid"
)

// Subjects for lifecycle events.
const (
	SubjectIssueReported = "issues.reported"
	SubjectIssueAccepted = "issues.accepted"
	SubjectIssueRejected = "issues.rejected"
	SubjectIssueAssigned = "issues.assigned"
	SubjectIssueFailed   = "issues.failed"
	SubjectIssueDone     = "issues.done"
	SubjectIssueScored   = "issues.scored"

	SubjectMissionCreated  = "missions.created"
	SubjectMissionFinished = "missions.finished"
)

// IssueEvent is published on every issue state transition.
type IssueEvent struct {
	IssueID   uuid.UUID `json:"issue_id"`
	County    string    `json:"county"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// MissionEvent is published when a mission is created or finished.
type MissionEvent struct {
	MissionID uuid.UUID `json:"mission_id"`
	IssueID   uuid.UUID `json:"issue_id"`
	Type      string    `json:"type"`
	TeamCount int       `json:"team_count"`
	Score     int       `json:"score,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
