// Package region models the Country -> Province -> County tree. Counties are
// the leaves that own service teams, machinery and issues; the upper levels
// exist for moderation scope and report aggregation.
package region

import (
	"fmt"

	"github.com/google/uuid"

	"roadassist/internal/errs"
)

// Kind tags a node in the region tree.
type Kind string

const (
	KindCountry  Kind = "country"
	KindProvince Kind = "province"
	KindCounty   Kind = "county"
)

// Region is a node of the tree. Country has no parent, a Province's parent is
// a Country and a County's parent is a Province; the constructors enforce it.
type Region struct {
	ID   uuid.UUID
	Name string
	Kind Kind

	parent *Region
	subs   []*Region
}

// NewCountry creates a root region.
func NewCountry(name string) *Region {
	return &Region{ID: uuid.New(), Name: name, Kind: KindCountry}
}

// AddProvince adds a province under a country.
func (r *Region) AddProvince(name string) (*Region, error) {
	if r.Kind != KindCountry {
		return nil, fmt.Errorf("add province under %s %q: %w", r.Kind, r.Name, errs.ErrInvalidArgument)
	}
	return r.addSub(name, KindProvince)
}

// AddCounty adds a county under a province.
func (r *Region) AddCounty(name string) (*Region, error) {
	if r.Kind != KindProvince {
		return nil, fmt.Errorf("add county under %s %q: %w", r.Kind, r.Name, errs.ErrInvalidArgument)
	}
	return r.addSub(name, KindCounty)
}

func (r *Region) addSub(name string, kind Kind) (*Region, error) {
	for _, s := range r.subs {
		if s.Name == name {
			return nil, fmt.Errorf("subregion %q of %q: %w", name, r.Name, errs.ErrDuplicatedInfo)
		}
	}
	sub := &Region{ID: uuid.New(), Name: name, Kind: kind, parent: r}
	r.subs = append(r.subs, sub)
	return sub, nil
}

// Parent returns the enclosing region, nil for a country.
func (r *Region) Parent() *Region {
	return r.parent
}

// Subregions returns the direct children in creation order.
func (r *Region) Subregions() []*Region {
	out := make([]*Region, len(r.subs))
	copy(out, r.subs)
	return out
}

// IncludingRegions returns the chain of regions containing r, root first,
// ending with r itself.
func (r *Region) IncludingRegions() []*Region {
	if r.parent == nil {
		return []*Region{r}
	}
	return append(r.parent.IncludingRegions(), r)
}

// Counties collects every county leaf under r; a county returns itself.
func (r *Region) Counties() []*Region {
	if r.Kind == KindCounty {
		return []*Region{r}
	}
	var out []*Region
	for _, s := range r.subs {
		out = append(out, s.Counties()...)
	}
	return out
}

// Contains reports whether other lies inside r's subtree (r included).
func (r *Region) Contains(other *Region) bool {
	for node := other; node != nil; node = node.parent {
		if node == r {
			return true
		}
	}
	return false
}

func (r *Region) String() string {
	return r.Name
}
