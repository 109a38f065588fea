package resources

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"roadassist/internal/errs"
)

// Speciality is a named skill category a service team provides.
type Speciality struct {
	ID   uuid.UUID
	Name string
}

// MachineryType is a named equipment category.
type MachineryType struct {
	ID   uuid.UUID
	Name string
}

// MissionType is a named mission category curated by county experts.
type MissionType struct {
	ID   uuid.UUID
	Name string
}

// Catalog holds the shared name registries. Names are unique per kind.
type Catalog struct {
	mu             sync.RWMutex
	specialities   map[uuid.UUID]*Speciality
	machineryTypes map[uuid.UUID]*MachineryType
	missionTypes   map[uuid.UUID]*MissionType
}

func NewCatalog() *Catalog {
	return &Catalog{
		specialities:   make(map[uuid.UUID]*Speciality),
		machineryTypes: make(map[uuid.UUID]*MachineryType),
		missionTypes:   make(map[uuid.UUID]*MissionType),
	}
}

func (c *Catalog) AddSpeciality(name string) (*Speciality, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.specialities {
		if s.Name == name {
			return nil, fmt.Errorf("speciality %q: %w", name, errs.ErrDuplicatedInfo)
		}
	}
	s := &Speciality{ID: uuid.New(), Name: name}
	c.specialities[s.ID] = s
	return s, nil
}

func (c *Catalog) RenameSpeciality(s *Speciality, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, other := range c.specialities {
		if other != s && other.Name == name {
			return fmt.Errorf("speciality %q: %w", name, errs.ErrDuplicatedInfo)
		}
	}
	s.Name = name
	return nil
}

func (c *Catalog) DeleteSpeciality(s *Speciality) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.specialities[s.ID]; !ok {
		return fmt.Errorf("speciality %q: %w", s.Name, errs.ErrResourceNotFound)
	}
	delete(c.specialities, s.ID)
	return nil
}

func (c *Catalog) Specialities() []*Speciality {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Speciality, 0, len(c.specialities))
	for _, s := range c.specialities {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (c *Catalog) SpecialityByID(id uuid.UUID) (*Speciality, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.specialities[id]
	return s, ok
}

func (c *Catalog) AddMachineryType(name string) (*MachineryType, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.machineryTypes {
		if t.Name == name {
			return nil, fmt.Errorf("machinery type %q: %w", name, errs.ErrDuplicatedInfo)
		}
	}
	t := &MachineryType{ID: uuid.New(), Name: name}
	c.machineryTypes[t.ID] = t
	return t, nil
}

func (c *Catalog) RenameMachineryType(mt *MachineryType, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, other := range c.machineryTypes {
		if other != mt && other.Name == name {
			return fmt.Errorf("machinery type %q: %w", name, errs.ErrDuplicatedInfo)
		}
	}
	mt.Name = name
	return nil
}

func (c *Catalog) DeleteMachineryType(mt *MachineryType) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.machineryTypes[mt.ID]; !ok {
		return fmt.Errorf("machinery type %q: %w", mt.Name, errs.ErrResourceNotFound)
	}
	delete(c.machineryTypes, mt.ID)
	return nil
}

func (c *Catalog) MachineryTypes() []*MachineryType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*MachineryType, 0, len(c.machineryTypes))
	for _, t := range c.machineryTypes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (c *Catalog) MachineryTypeByID(id uuid.UUID) (*MachineryType, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.machineryTypes[id]
	return t, ok
}

func (c *Catalog) AddMissionType(name string) (*MissionType, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.missionTypes {
		if t.Name == name {
			return nil, fmt.Errorf("mission type %q: %w", name, errs.ErrDuplicatedInfo)
		}
	}
	t := &MissionType{ID: uuid.New(), Name: name}
	c.missionTypes[t.ID] = t
	return t, nil
}

func (c *Catalog) RenameMissionType(mt *MissionType, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, other := range c.missionTypes {
		if other != mt && other.Name == name {
			return fmt.Errorf("mission type %q: %w", name, errs.ErrDuplicatedInfo)
		}
	}
	mt.Name = name
	return nil
}

func (c *Catalog) DeleteMissionType(mt *MissionType) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.missionTypes[mt.ID]; !ok {
		return fmt.Errorf("mission type %q: %w", mt.Name, errs.ErrResourceNotFound)
	}
	delete(c.missionTypes, mt.ID)
	return nil
}

func (c *Catalog) MissionTypes() []*MissionType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*MissionType, 0, len(c.missionTypes))
	for _, t := range c.missionTypes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (c *Catalog) MissionTypeByID(id uuid.UUID) (*MissionType, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.missionTypes[id]
	return t, ok
}
