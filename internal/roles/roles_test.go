package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadassist/internal/errs"
	"roadassist/internal/region"
)

func testRegions(t *testing.T) (country, province, county *region.Region) {
	t.Helper()
	country = region.NewCountry("Iran")
	var err error
	province, err = country.AddProvince("Tehran")
	require.NoError(t, err)
	county, err = province.AddCounty("Shemiran")
	require.NoError(t, err)
	return country, province, county
}

func newUser(t *testing.T, d *Directory, name string) *User {
	t.Helper()
	u, err := d.CreateUser(name, "long-enough-pw", "0912-"+name, name, name)
	require.NoError(t, err)
	return u
}

func TestPasswordPolicy(t *testing.T) {
	d := NewDirectory()

	_, err := d.CreateUser("short", "abc", "0912", "a", "b")
	assert.ErrorIs(t, err, errs.ErrWeakPassword)

	_, err = d.CreateUser("digits", "12345678", "0912", "a", "b")
	assert.ErrorIs(t, err, errs.ErrWeakPassword)

	u, err := d.CreateUser("fine", "abc12345", "0912", "a", "b")
	require.NoError(t, err)
	assert.True(t, u.CheckPassword("abc12345"))
	assert.False(t, u.CheckPassword("abc12346"))

	assert.ErrorIs(t, u.ChangePassword("999999999"), errs.ErrWeakPassword)
	require.NoError(t, u.ChangePassword("another-pw"))
	assert.True(t, u.CheckPassword("another-pw"))
	assert.False(t, u.CheckPassword("abc12345"))
}

func TestCreateUserDuplicates(t *testing.T) {
	d := NewDirectory()
	newUser(t, d, "ali")

	_, err := d.CreateUser("ali", "long-enough-pw", "0912-x", "a", "b")
	assert.ErrorIs(t, err, errs.ErrDuplicatedInfo)

	_, err = d.CreateUser("other", "long-enough-pw", "0912-ali", "a", "b")
	assert.ErrorIs(t, err, errs.ErrDuplicatedInfo)
}

func TestSignUpCitizen(t *testing.T) {
	d := NewDirectory()
	c, err := d.SignUpCitizen("hassan", "long-enough-pw", "0912-h", "Hassan", "M")
	require.NoError(t, err)
	assert.Equal(t, RoleCitizen, c.RoleKind())
	assert.Same(t, Role(c), c.User.Role())

	u, ok := d.UserByUsername("hassan")
	require.True(t, ok)
	assert.Same(t, c.User, u)
}

func TestUserHoldsOneRole(t *testing.T) {
	u := &User{Username: "solo"}
	require.NoError(t, u.Bind(&Citizen{User: u}))
	err := u.Bind(&Citizen{User: u})
	assert.ErrorIs(t, err, errs.ErrOccupiedUser)

	u.Unbind()
	assert.False(t, u.HasRole())
	require.NoError(t, u.Bind(&Citizen{User: u}))
}

func TestModeratorKinds(t *testing.T) {
	country, province, county := testRegions(t)

	assert.Equal(t, RoleCountryModerator, (&Moderator{Region: country}).RoleKind())
	assert.Equal(t, RoleProvinceModerator, (&Moderator{Region: province}).RoleKind())
	assert.Equal(t, RoleCountyModerator, (&Moderator{Region: county}).RoleKind())
}

func TestAppointCountryModerator(t *testing.T) {
	country, province, _ := testRegions(t)
	d := NewDirectory()

	_, err := d.AppointCountryModerator(newUser(t, d, "p"), province)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	root := newUser(t, d, "root")
	mod, err := d.AppointCountryModerator(root, country)
	require.NoError(t, err)
	assert.Same(t, mod, d.ModeratorOf(country))

	// Re-appointing the sitting moderator is flagged, not silently redone.
	_, err = d.AppointCountryModerator(root, country)
	assert.ErrorIs(t, err, errs.ErrOccupiedUser)

	// A replacement dismisses the incumbent.
	next := newUser(t, d, "next")
	mod2, err := d.AppointCountryModerator(next, country)
	require.NoError(t, err)
	assert.Same(t, mod2, d.ModeratorOf(country))
	assert.False(t, root.HasRole())
}

func TestAssignModeratorScope(t *testing.T) {
	country, province, county := testRegions(t)
	d := NewDirectory()

	countryMod, err := d.AppointCountryModerator(newUser(t, d, "root"), country)
	require.NoError(t, err)

	// A moderator cannot re-appoint their own region.
	_, err = d.AssignModerator(countryMod, newUser(t, d, "u1"), country)
	assert.ErrorIs(t, err, errs.ErrAccessDenied)

	provinceMod, err := d.AssignModerator(countryMod, newUser(t, d, "u2"), province)
	require.NoError(t, err)

	countyMod, err := d.AssignModerator(provinceMod, newUser(t, d, "u3"), county)
	require.NoError(t, err)

	// Out-of-scope appointment is denied.
	otherProvince, err := country.AddProvince("Fars")
	require.NoError(t, err)
	_, err = d.AssignModerator(provinceMod, newUser(t, d, "u4"), otherProvince)
	assert.ErrorIs(t, err, errs.ErrAccessDenied)

	// A county moderator moderates only their own subtree.
	assert.True(t, countryMod.CanModerate(county))
	assert.True(t, provinceMod.CanModerate(county))
	assert.False(t, countyMod.CanModerate(otherProvince))

	// An occupied user cannot take a moderator seat.
	busy := newUser(t, d, "busy")
	require.NoError(t, busy.Bind(&Citizen{User: busy}))
	_, err = d.AssignModerator(countryMod, busy, otherProvince)
	assert.ErrorIs(t, err, errs.ErrOccupiedUser)
}

func TestAssignExpert(t *testing.T) {
	country, province, county := testRegions(t)
	d := NewDirectory()

	countryMod, err := d.AppointCountryModerator(newUser(t, d, "root"), country)
	require.NoError(t, err)
	provinceMod, err := d.AssignModerator(countryMod, newUser(t, d, "pmod"), province)
	require.NoError(t, err)
	countyMod, err := d.AssignModerator(provinceMod, newUser(t, d, "cmod"), county)
	require.NoError(t, err)

	// Only county moderators hand out the expert role.
	_, err = d.AssignExpert(provinceMod, newUser(t, d, "e0"))
	assert.ErrorIs(t, err, errs.ErrAccessDenied)

	first, err := d.AssignExpert(countyMod, newUser(t, d, "e1"))
	require.NoError(t, err)
	assert.Same(t, first, d.ExpertOf(county))
	assert.Same(t, county, first.County)

	// A replacement dismisses the sitting expert.
	second, err := d.AssignExpert(countyMod, newUser(t, d, "e2"))
	require.NoError(t, err)
	assert.Same(t, second, d.ExpertOf(county))
	assert.False(t, first.User.HasRole())
}

func TestDismissModerator(t *testing.T) {
	country, _, _ := testRegions(t)
	d := NewDirectory()

	root := newUser(t, d, "root")
	mod, err := d.AppointCountryModerator(root, country)
	require.NoError(t, err)

	d.Dismiss(mod)
	assert.Nil(t, d.ModeratorOf(country))
	assert.False(t, root.HasRole())
}
