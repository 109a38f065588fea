package resources

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"roadassist/internal/region"
	"roadassist/internal/roles"
	"roadassist/pkg/geo"
)

// MissionRef is the slice of a mission a team needs to know about. The full
// mission type lives in the lifecycle package.
type MissionRef interface {
	MissionID() uuid.UUID
}

// ServiceTeam is a group of servicemen sharing one speciality. A team is idle
// when ActiveMission is nil; a soft-deleted team keeps its history but is
// never selected again.
type ServiceTeam struct {
	ID         uuid.UUID
	County     *region.Region
	Speciality *Speciality
	CreatedAt  time.Time
	DeletedAt  *time.Time

	ActiveMission MissionRef
	members       []*Serviceman
}

// Idle reports whether the team can take a mission.
func (t *ServiceTeam) Idle() bool {
	return t.ActiveMission == nil
}

// Deleted reports whether the team has been soft-deleted.
func (t *ServiceTeam) Deleted() bool {
	return t.DeletedAt != nil
}

// Members returns the current members.
func (t *ServiceTeam) Members() []*Serviceman {
	out := make([]*Serviceman, len(t.members))
	copy(out, t.members)
	return out
}

// FarthestMemberDistance is the distance in miles from the point to the
// team's worst-placed member. Teams with a smaller value respond more
// compactly and win selection.
func (t *ServiceTeam) FarthestMemberDistance(point geo.Location) float64 {
	farthest := 0.0
	for _, m := range t.members {
		if d := m.Location().DistanceFrom(point); d > farthest {
			farthest = d
		}
	}
	return farthest
}

func (t *ServiceTeam) String() string {
	return fmt.Sprintf("%s - %s (%d members)", t.Speciality.Name, t.County.Name, len(t.members))
}

// Serviceman is the role of a team member. Location updates come in from the
// field and race with distance reads during assignment, so they take a lock.
type Serviceman struct {
	User *roles.User
	Team *ServiceTeam

	mu       sync.RWMutex
	location geo.Location
}

func (s *Serviceman) RoleKind() roles.RoleKind { return roles.RoleServiceman }

// UpdateLocation stores the last known coordinates.
func (s *Serviceman) UpdateLocation(loc geo.Location) {
	s.mu.Lock()
	s.location = loc
	s.mu.Unlock()
}

// Location returns the last known coordinates.
func (s *Serviceman) Location() geo.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.location
}

func (s *Serviceman) String() string {
	return s.User.Username
}
