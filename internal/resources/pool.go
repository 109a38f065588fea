// Package resources owns the per-county resource pool: service teams grouped
// by speciality and machinery inventory grouped by type. The pool's mutex is
// the county lock required around resource assignment — every read-then-
// reserve sequence and every release runs entirely under it, so two issues
// accepted concurrently in the same county can never double-book a team or
// lose a machinery update.
package resources

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"roadassist/internal/errs"
	"roadassist/internal/region"
	"roadassist/internal/roles"
	"roadassist/pkg/geo"
)

// Pool holds one county's teams and machinery.
type Pool struct {
	County *region.Region

	mu          sync.Mutex
	teams       []*ServiceTeam
	machineries []*Machinery
}

func NewPool(county *region.Region) (*Pool, error) {
	if county.Kind != region.KindCounty {
		return nil, fmt.Errorf("pool on %s %q: %w", county.Kind, county.Name, errs.ErrInvalidArgument)
	}
	return &Pool{County: county}, nil
}

// Teams returns every team of the county, soft-deleted ones included.
func (p *Pool) Teams() []*ServiceTeam {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*ServiceTeam, len(p.teams))
	copy(out, p.teams)
	return out
}

// Machineries returns the county's inventory records.
func (p *Pool) Machineries() []*Machinery {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Machinery, len(p.machineries))
	copy(out, p.machineries)
	return out
}

// RequiredTeams selects up to amount idle, non-deleted, non-empty teams of a
// speciality, nearest first by farthest-member distance. Ties break on team
// id so the order is reproducible.
func (p *Pool) RequiredTeams(spec *Speciality, amount int, point geo.Location) []*ServiceTeam {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requiredTeamsLocked(spec, amount, point)
}

func (p *Pool) requiredTeamsLocked(spec *Speciality, amount int, point geo.Location) []*ServiceTeam {
	var candidates []*ServiceTeam
	for _, t := range p.teams {
		if t.Speciality == spec && t.Idle() && !t.Deleted() && len(t.members) > 0 {
			candidates = append(candidates, t)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		di := candidates[i].FarthestMemberDistance(point)
		dj := candidates[j].FarthestMemberDistance(point)
		if di != dj {
			return di < dj
		}
		return candidates[i].ID.String() < candidates[j].ID.String()
	})
	if len(candidates) > amount {
		candidates = candidates[:amount]
	}
	return candidates
}

// RequiredMachinery returns the first record of the type with enough
// availability, nil if none.
func (p *Pool) RequiredMachinery(mt *MachineryType, amount int) *Machinery {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requiredMachineryLocked(mt, amount)
}

func (p *Pool) requiredMachineryLocked(mt *MachineryType, amount int) *Machinery {
	for _, m := range p.machineries {
		if m.Type == mt && m.AvailableCount >= amount {
			return m
		}
	}
	return nil
}

// Reserve attempts the all-or-nothing reservation for a mission: teams per
// speciality requirement in declared order, then machinery. On any shortfall
// it mutates nothing and reports false. On success every selected team is
// booked on the mission and every machinery need is decremented.
func (p *Pool) Reserve(specNeeds []SpecialityNeed, machNeeds []MachineryNeed, point geo.Location, mission MissionRef) ([]*ServiceTeam, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var requiredTeams []*ServiceTeam
	taken := make(map[uuid.UUID]bool)
	for _, need := range specNeeds {
		teams := p.requiredTeamsLocked(need.Speciality, need.Amount, point)
		// The same speciality never repeats across requirements, but a team
		// must not satisfy two of them either way.
		selected := make([]*ServiceTeam, 0, len(teams))
		for _, t := range teams {
			if !taken[t.ID] {
				selected = append(selected, t)
			}
		}
		if len(selected) < need.Amount {
			return nil, false
		}
		for _, t := range selected {
			taken[t.ID] = true
		}
		requiredTeams = append(requiredTeams, selected...)
	}

	var requiredMachineries []*Machinery
	for _, need := range machNeeds {
		m := p.requiredMachineryLocked(need.Type, need.Amount)
		if m == nil {
			return nil, false
		}
		requiredMachineries = append(requiredMachineries, m)
	}

	for _, t := range requiredTeams {
		t.ActiveMission = mission
	}
	for i, need := range machNeeds {
		requiredMachineries[i].AvailableCount -= need.Amount
	}
	return requiredTeams, true
}

// Release is the exact inverse of Reserve: frees every team booked on the
// mission and returns the reserved machinery amounts to the pool.
func (p *Pool) Release(mission MissionRef, machNeeds []MachineryNeed) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, t := range p.teams {
		if t.ActiveMission == mission {
			t.ActiveMission = nil
		}
	}
	for _, need := range machNeeds {
		for _, m := range p.machineries {
			if m.Type == need.Type {
				m.AvailableCount += need.Amount
				if m.AvailableCount > m.TotalCount {
					m.AvailableCount = m.TotalCount
				}
				break
			}
		}
	}
}

// AddServiceTeam creates a team and binds each member. Members must be
// role-free users.
func (p *Pool) AddServiceTeam(spec *Speciality, members []*roles.User) (*ServiceTeam, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	team := &ServiceTeam{
		ID:         uuid.New(),
		County:     p.County,
		Speciality: spec,
		CreatedAt:  time.Now(),
	}
	if err := p.enlistLocked(team, members); err != nil {
		return nil, err
	}
	p.teams = append(p.teams, team)
	return team, nil
}

// EditServiceTeam replaces a team's speciality and member list. Members
// leaving the team lose their serviceman role; joining users must be
// role-free.
func (p *Pool) EditServiceTeam(team *ServiceTeam, spec *Speciality, members []*roles.User) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	keep := make(map[uuid.UUID]bool, len(members))
	for _, u := range members {
		keep[u.ID] = true
	}
	var staying []*Serviceman
	var joining []*roles.User
	current := make(map[uuid.UUID]bool, len(team.members))
	for _, m := range team.members {
		current[m.User.ID] = true
		if keep[m.User.ID] {
			staying = append(staying, m)
		}
	}
	for _, u := range members {
		if !current[u.ID] {
			joining = append(joining, u)
		}
	}
	for _, u := range joining {
		if u.HasRole() {
			return fmt.Errorf("user %q: %w", u.Username, errs.ErrOccupiedUser)
		}
	}

	for _, m := range team.members {
		if !keep[m.User.ID] {
			m.User.Unbind()
			m.Team = nil
		}
	}
	team.members = staying
	team.Speciality = spec
	for _, u := range joining {
		sm := &Serviceman{User: u, Team: team}
		if err := u.Bind(sm); err != nil {
			return err
		}
		team.members = append(team.members, sm)
	}
	return nil
}

// DeleteServiceTeam soft-deletes an idle team and frees its members. The
// record stays behind for mission history.
func (p *Pool) DeleteServiceTeam(team *ServiceTeam) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !team.Idle() {
		return fmt.Errorf("team %s is on an active mission: %w", team.ID, errs.ErrBusyResource)
	}
	now := time.Now()
	team.DeletedAt = &now
	for _, m := range team.members {
		m.User.Unbind()
		m.Team = nil
	}
	team.members = nil
	return nil
}

func (p *Pool) enlistLocked(team *ServiceTeam, members []*roles.User) error {
	for _, u := range members {
		if u.HasRole() {
			return fmt.Errorf("user %q: %w", u.Username, errs.ErrOccupiedUser)
		}
	}
	for _, u := range members {
		sm := &Serviceman{User: u, Team: team}
		if err := u.Bind(sm); err != nil {
			return err
		}
		team.members = append(team.members, sm)
	}
	return nil
}

// IncreaseMachinery adds one unit of the type, creating the record on first
// provision.
func (p *Pool) IncreaseMachinery(mt *MachineryType) (*Machinery, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, m := range p.machineries {
		if m.Type == mt {
			m.TotalCount++
			m.AvailableCount++
			return m, nil
		}
	}
	m := &Machinery{ID: uuid.New(), Type: mt, County: p.County, TotalCount: 1, AvailableCount: 1}
	p.machineries = append(p.machineries, m)
	return m, nil
}

// DecreaseMachinery removes one available unit of the type. Removing the
// last unit un-provisions the record.
func (p *Pool) DecreaseMachinery(mt *MachineryType) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, m := range p.machineries {
		if m.Type != mt {
			continue
		}
		if m.AvailableCount == 0 {
			return fmt.Errorf("machinery %q has no available units: %w", mt.Name, errs.ErrBusyResource)
		}
		m.TotalCount--
		m.AvailableCount--
		if m.TotalCount == 0 {
			p.machineries = append(p.machineries[:i], p.machineries[i+1:]...)
		}
		return nil
	}
	return fmt.Errorf("machinery %q not provisioned in %s: %w", mt.Name, p.County.Name, errs.ErrResourceNotFound)
}

// ProvisionMachinery seeds an inventory record with the given counts. Used
// by bootstrap and tests; normal operation goes through IncreaseMachinery.
func (p *Pool) ProvisionMachinery(mt *MachineryType, total, available int) (*Machinery, error) {
	if total < 0 || available < 0 || available > total {
		return nil, fmt.Errorf("counts %d/%d: %w", available, total, errs.ErrInvalidArgument)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.machineries {
		if m.Type == mt {
			return nil, fmt.Errorf("machinery %q already provisioned: %w", mt.Name, errs.ErrDuplicatedInfo)
		}
	}
	m := &Machinery{ID: uuid.New(), Type: mt, County: p.County, TotalCount: total, AvailableCount: available}
	p.machineries = append(p.machineries, m)
	return m, nil
}
