// Package roles holds users, the role variants bound to them and the
// moderator appointment chain. A user holds at most one role at a time;
// everything that hands out a role goes through User.Bind so OccupiedUser is
// enforced in one place.
package roles

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"unicode"

	"github.com/google/uuid"

	"roadassist/internal/errs"
	"roadassist/internal/region"
)

// RoleKind discriminates the role variants.
type RoleKind string

const (
	RoleCitizen           RoleKind = "citizen"
	RoleServiceman        RoleKind = "serviceman"
	RoleCountyExpert      RoleKind = "county_expert"
	RoleCountryModerator  RoleKind = "country_moderator"
	RoleProvinceModerator RoleKind = "province_moderator"
	RoleCountyModerator   RoleKind = "county_moderator"
)

// Role is implemented by every concrete role type, including the serviceman
// defined in the resources package.
type Role interface {
	RoleKind() RoleKind
}

// User is an account. Role bindings are guarded by the owning Directory's
// lock, not by the user itself.
type User struct {
	ID          uuid.UUID
	Username    string
	PhoneNumber string
	FirstName   string
	LastName    string

	passwordHash string
	role         Role
}

// HasRole reports whether any role is bound to the user.
func (u *User) HasRole() bool {
	return u.role != nil
}

// Role returns the bound role, nil if none.
func (u *User) Role() Role {
	return u.role
}

// Bind attaches a role to the user. A user already holding a role cannot take
// another one.
func (u *User) Bind(r Role) error {
	if u.role != nil {
		return fmt.Errorf("user %q: %w", u.Username, errs.ErrOccupiedUser)
	}
	u.role = r
	return nil
}

// Unbind releases the user's role.
func (u *User) Unbind() {
	u.role = nil
}

// ChangePassword validates the password against the policy and stores its hash.
func (u *User) ChangePassword(password string) error {
	if err := validatePassword(password); err != nil {
		return err
	}
	u.passwordHash = hashPassword(password)
	return nil
}

// CheckPassword reports whether the password matches the stored hash.
func (u *User) CheckPassword(password string) bool {
	return u.passwordHash != "" && u.passwordHash == hashPassword(password)
}

func (u *User) String() string {
	return u.Username
}

// validatePassword rejects short or all-numeric passwords.
func validatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password shorter than 8 characters: %w", errs.ErrWeakPassword)
	}
	allDigits := true
	for _, r := range password {
		if !unicode.IsDigit(r) {
			allDigits = false
			break
		}
	}
	if allDigits {
		return fmt.Errorf("password is entirely numeric: %w", errs.ErrWeakPassword)
	}
	return nil
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Citizen can submit issues and rate their own issues.
type Citizen struct {
	User *User
}

func (c *Citizen) RoleKind() RoleKind { return RoleCitizen }

// CountyExpert triages issues of exactly one county.
type CountyExpert struct {
	User   *User
	County *region.Region
}

func (e *CountyExpert) RoleKind() RoleKind { return RoleCountyExpert }

// Moderator administers one region. The variant (country, province, county)
// follows from the region's kind.
type Moderator struct {
	User   *User
	Region *region.Region
}

func (m *Moderator) RoleKind() RoleKind {
	switch m.Region.Kind {
	case region.KindCountry:
		return RoleCountryModerator
	case region.KindProvince:
		return RoleProvinceModerator
	default:
		return RoleCountyModerator
	}
}

// CanModerate reports whether the target region lies in the moderator's scope.
func (m *Moderator) CanModerate(target *region.Region) bool {
	return m.Region.Contains(target)
}

// Directory owns the user accounts and the moderator/expert bindings of the
// region tree.
type Directory struct {
	mu         sync.RWMutex
	byUsername map[string]*User
	byPhone    map[string]*User
	moderators map[uuid.UUID]*Moderator    // region ID -> moderator
	experts    map[uuid.UUID]*CountyExpert // county ID -> expert
}

func NewDirectory() *Directory {
	return &Directory{
		byUsername: make(map[string]*User),
		byPhone:    make(map[string]*User),
		moderators: make(map[uuid.UUID]*Moderator),
		experts:    make(map[uuid.UUID]*CountyExpert),
	}
}

// CreateUser registers an account. Usernames and phone numbers are unique.
func (d *Directory) CreateUser(username, password, phoneNumber, firstName, lastName string) (*User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.createUserLocked(username, password, phoneNumber, firstName, lastName)
}

func (d *Directory) createUserLocked(username, password, phoneNumber, firstName, lastName string) (*User, error) {
	if _, ok := d.byUsername[username]; ok {
		return nil, fmt.Errorf("username %q: %w", username, errs.ErrDuplicatedInfo)
	}
	if _, ok := d.byPhone[phoneNumber]; ok {
		return nil, fmt.Errorf("phone number %q: %w", phoneNumber, errs.ErrDuplicatedInfo)
	}
	user := &User{
		ID:          uuid.New(),
		Username:    username,
		PhoneNumber: phoneNumber,
		FirstName:   firstName,
		LastName:    lastName,
	}
	if err := user.ChangePassword(password); err != nil {
		return nil, err
	}
	d.byUsername[username] = user
	d.byPhone[phoneNumber] = user
	return user, nil
}

// SignUpCitizen creates an account and immediately binds a citizen role.
func (d *Directory) SignUpCitizen(username, password, phoneNumber, firstName, lastName string) (*Citizen, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, err := d.createUserLocked(username, password, phoneNumber, firstName, lastName)
	if err != nil {
		return nil, err
	}
	citizen := &Citizen{User: user}
	if err := user.Bind(citizen); err != nil {
		return nil, err
	}
	return citizen, nil
}

// UserByUsername looks up an account.
func (d *Directory) UserByUsername(username string) (*User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byUsername[username]
	return u, ok
}

// AppointCountryModerator bootstraps the chain: binds a moderator to a
// country without an appointing actor.
func (d *Directory) AppointCountryModerator(user *User, country *region.Region) (*Moderator, error) {
	if country.Kind != region.KindCountry {
		return nil, fmt.Errorf("appoint country moderator on %s: %w", country.Kind, errs.ErrInvalidArgument)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.installModeratorLocked(user, country)
}

// AssignModerator lets a moderator appoint a moderator for a region strictly
// inside their own scope. An existing moderator of that region is dismissed.
func (d *Directory) AssignModerator(actor *Moderator, user *User, target *region.Region) (*Moderator, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if target == actor.Region || !actor.CanModerate(target) {
		return nil, fmt.Errorf("moderator of %q cannot appoint for %q: %w",
			actor.Region.Name, target.Name, errs.ErrAccessDenied)
	}
	return d.installModeratorLocked(user, target)
}

func (d *Directory) installModeratorLocked(user *User, target *region.Region) (*Moderator, error) {
	if current := d.moderators[target.ID]; current != nil && current.User == user {
		return nil, fmt.Errorf("user %q already moderates %q: %w", user.Username, target.Name, errs.ErrOccupiedUser)
	}
	if user.HasRole() {
		return nil, fmt.Errorf("user %q: %w", user.Username, errs.ErrOccupiedUser)
	}
	if current := d.moderators[target.ID]; current != nil {
		current.User.Unbind()
		delete(d.moderators, target.ID)
	}
	mod := &Moderator{User: user, Region: target}
	if err := user.Bind(mod); err != nil {
		return nil, err
	}
	d.moderators[target.ID] = mod
	return mod, nil
}

// AssignExpert binds a county expert to the county of the acting county
// moderator, dismissing any current expert.
func (d *Directory) AssignExpert(actor *Moderator, user *User) (*CountyExpert, error) {
	if actor.Region.Kind != region.KindCounty {
		return nil, fmt.Errorf("only county moderators assign experts: %w", errs.ErrAccessDenied)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if user.HasRole() {
		return nil, fmt.Errorf("user %q: %w", user.Username, errs.ErrOccupiedUser)
	}
	if current := d.experts[actor.Region.ID]; current != nil {
		current.User.Unbind()
		delete(d.experts, actor.Region.ID)
	}
	expert := &CountyExpert{User: user, County: actor.Region}
	if err := user.Bind(expert); err != nil {
		return nil, err
	}
	d.experts[actor.Region.ID] = expert
	return expert, nil
}

// Dismiss removes a moderator binding and frees the user.
func (d *Directory) Dismiss(mod *Moderator) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.moderators[mod.Region.ID] == mod {
		delete(d.moderators, mod.Region.ID)
		mod.User.Unbind()
	}
}

// ModeratorOf returns the moderator bound to a region, nil if none.
func (d *Directory) ModeratorOf(r *region.Region) *Moderator {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.moderators[r.ID]
}

// ExpertOf returns the expert bound to a county, nil if none.
func (d *Directory) ExpertOf(county *region.Region) *CountyExpert {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.experts[county.ID]
}
