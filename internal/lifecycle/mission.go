package lifecycle

import (
	"time"

	"github.com/google/uuid"

	"roadassist/internal/region"
	"roadassist/internal/resources"
)

// Mission is the committed work order created when an accepted issue's
// resources are successfully reserved. Exactly one per issue.
type Mission struct {
	ID           uuid.UUID
	Issue        *Issue
	ServiceTeams []*resources.ServiceTeam
	Type         *resources.MissionType

	// Score is 1-5, set when the reporter rates the finished mission.
	Score  *int
	Report string
}

// MissionID satisfies resources.MissionRef.
func (m *Mission) MissionID() uuid.UUID { return m.ID }

// State delegates to the issue.
func (m *Mission) State() State { return m.Issue.State }

// County delegates to the issue.
func (m *Mission) County() *region.Region { return m.Issue.County }

// CreatedAtDate is the calendar day the underlying issue was reported.
func (m *Mission) CreatedAtDate() time.Time {
	return m.Issue.CreatedAt.Truncate(24 * time.Hour)
}

func (m *Mission) String() string {
	return m.Issue.String()
}
