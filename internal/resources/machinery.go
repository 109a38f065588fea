package resources

import (
	"fmt"

	"github.com/google/uuid"

	"roadassist/internal/region"
)

// Machinery is a county's inventory record for one machinery type.
// Invariant: 0 <= AvailableCount <= TotalCount. A record decremented to zero
// total is removed entirely; "zero of a known type" is not a state.
type Machinery struct {
	ID             uuid.UUID
	Type           *MachineryType
	County         *region.Region
	TotalCount     int
	AvailableCount int
}

func (m *Machinery) String() string {
	return fmt.Sprintf("%s - %s: %d/%d", m.Type.Name, m.County.Name, m.AvailableCount, m.TotalCount)
}

// SpecialityNeed is one declared speciality requirement of an issue.
type SpecialityNeed struct {
	Speciality *Speciality
	Amount     int
}

// MachineryNeed is one declared machinery requirement of an issue.
type MachineryNeed struct {
	Type   *MachineryType
	Amount int
}
