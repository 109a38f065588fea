package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"roadassist/internal/errs"
	"roadassist/internal/region"
	"roadassist/internal/resources"
	"roadassist/internal/roles"
	"roadassist/pkg/geo"
)

type fixture struct {
	country *region.Region
	county  *region.Region
	engine  *Engine
	pool    *resources.Pool

	asphalt *resources.Speciality
	plumb   *resources.Speciality
	crane   *resources.MachineryType
	repair  *resources.MissionType

	citizen *roles.Citizen
	expert  *roles.CountyExpert
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	country := region.NewCountry("Iran")
	province, err := country.AddProvince("Tehran")
	require.NoError(t, err)
	county, err := province.AddCounty("Shemiran")
	require.NoError(t, err)

	directory := roles.NewDirectory()
	engine := NewEngine(directory, Config{}, nil, nil, nil)
	pool, err := engine.RegisterCounty(county)
	require.NoError(t, err)

	catalog := resources.NewCatalog()
	asphalt, err := catalog.AddSpeciality("Fixing Asphalt")
	require.NoError(t, err)
	plumb, err := catalog.AddSpeciality("Water Pipes")
	require.NoError(t, err)
	crane, err := catalog.AddMachineryType("Crane")
	require.NoError(t, err)
	repair, err := catalog.AddMissionType("Road Repair")
	require.NoError(t, err)

	citizen, err := directory.SignUpCitizen("hassan", "sturdy-pass-1", "09120000001", "Hassan", "Moradi")
	require.NoError(t, err)
	expertUser, err := directory.CreateUser("sara", "sturdy-pass-2", "09120000002", "Sara", "Karimi")
	require.NoError(t, err)
	expert := &roles.CountyExpert{User: expertUser, County: county}
	require.NoError(t, expertUser.Bind(expert))

	return &fixture{
		country: country,
		county:  county,
		engine:  engine,
		pool:    pool,
		asphalt: asphalt,
		plumb:   plumb,
		crane:   crane,
		repair:  repair,
		citizen: citizen,
		expert:  expert,
	}
}

// addTeam creates an idle one-member team whose member stands at the given
// location.
func (f *fixture) addTeam(t *testing.T, spec *resources.Speciality, name string, at geo.Location) *resources.ServiceTeam {
	t.Helper()
	member := &roles.User{Username: name, PhoneNumber: "0912" + name}
	team, err := f.pool.AddServiceTeam(spec, []*roles.User{member})
	require.NoError(t, err)
	team.Members()[0].UpdateLocation(at)
	return team
}

func (f *fixture) submit(t *testing.T, title string) *Issue {
	t.Helper()
	issue, err := f.engine.SubmitIssue(context.Background(), f.citizen, title, "pothole on the main road",
		f.county, geo.NewLocation(35.8, 51.4), "")
	require.NoError(t, err)
	require.Equal(t, StateReported, issue.State)
	return issue
}

func TestAcceptFailsWhenTeamsInsufficient(t *testing.T) {
	f := newFixture(t)
	f.addTeam(t, f.asphalt, "m1", geo.NewLocation(35.80, 51.40))
	_, err := f.pool.ProvisionMachinery(f.crane, 10, 10)
	require.NoError(t, err)

	issue := f.submit(t, "Collapsed asphalt")
	mission, err := f.engine.AcceptIssue(context.Background(), f.expert, issue, f.repair,
		[]resources.SpecialityNeed{{Speciality: f.asphalt, Amount: 2}}, nil)
	require.NoError(t, err)
	assert.Nil(t, mission)
	assert.Equal(t, StateFailed, issue.State)

	// Nothing was reserved on the failure path.
	for _, team := range f.pool.Teams() {
		assert.True(t, team.Idle())
	}
	assert.Equal(t, 10, f.pool.Machineries()[0].AvailableCount)
}

func TestAcceptFailsWhenMachineryInsufficient(t *testing.T) {
	f := newFixture(t)
	team := f.addTeam(t, f.asphalt, "m1", geo.NewLocation(35.80, 51.40))
	_, err := f.pool.ProvisionMachinery(f.crane, 2, 2)
	require.NoError(t, err)

	issue := f.submit(t, "Sinkhole")
	mission, err := f.engine.AcceptIssue(context.Background(), f.expert, issue, f.repair,
		[]resources.SpecialityNeed{{Speciality: f.asphalt, Amount: 1}},
		[]resources.MachineryNeed{{Type: f.crane, Amount: 3}})
	require.NoError(t, err)
	assert.Nil(t, mission)
	assert.Equal(t, StateFailed, issue.State)

	// The team selected before the machinery shortfall stays untouched.
	assert.True(t, team.Idle())
	assert.Equal(t, 2, f.pool.Machineries()[0].AvailableCount)
}

func TestAcceptRejectsDuplicateMachineryType(t *testing.T) {
	f := newFixture(t)
	f.addTeam(t, f.asphalt, "m1", geo.NewLocation(35.80, 51.40))
	_, err := f.pool.ProvisionMachinery(f.crane, 10, 10)
	require.NoError(t, err)

	// Two requirements for the same type would each pass the availability
	// check alone and together drive the count below zero.
	issue := f.submit(t, "Collapsed bridge")
	mission, err := f.engine.AcceptIssue(context.Background(), f.expert, issue, f.repair,
		[]resources.SpecialityNeed{{Speciality: f.asphalt, Amount: 1}},
		[]resources.MachineryNeed{{Type: f.crane, Amount: 6}, {Type: f.crane, Amount: 6}})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
	assert.Nil(t, mission)
	assert.Equal(t, StateReported, issue.State)
	assert.Equal(t, 10, f.pool.Machineries()[0].AvailableCount)
}

func TestAcceptAssignsTeamsAndMachinery(t *testing.T) {
	f := newFixture(t)
	team := f.addTeam(t, f.asphalt, "m1", geo.NewLocation(35.80, 51.40))
	_, err := f.pool.ProvisionMachinery(f.crane, 10, 10)
	require.NoError(t, err)

	issue := f.submit(t, "Collapsed asphalt")
	mission, err := f.engine.AcceptIssue(context.Background(), f.expert, issue, f.repair,
		[]resources.SpecialityNeed{{Speciality: f.asphalt, Amount: 1}},
		[]resources.MachineryNeed{{Type: f.crane, Amount: 3}})
	require.NoError(t, err)
	require.NotNil(t, mission)

	assert.Equal(t, StateAssigned, issue.State)
	assert.Same(t, mission, issue.Mission)
	require.Len(t, mission.ServiceTeams, 1)
	assert.Same(t, team, mission.ServiceTeams[0])
	assert.Equal(t, mission, team.ActiveMission)
	assert.False(t, team.Idle())
	assert.Equal(t, 7, f.pool.Machineries()[0].AvailableCount)
}

func TestFinishMissionReleasesResources(t *testing.T) {
	f := newFixture(t)
	team := f.addTeam(t, f.asphalt, "m1", geo.NewLocation(35.80, 51.40))
	_, err := f.pool.ProvisionMachinery(f.crane, 10, 10)
	require.NoError(t, err)

	issue := f.submit(t, "Collapsed asphalt")
	mission, err := f.engine.AcceptIssue(context.Background(), f.expert, issue, f.repair,
		[]resources.SpecialityNeed{{Speciality: f.asphalt, Amount: 1}},
		[]resources.MachineryNeed{{Type: f.crane, Amount: 3}})
	require.NoError(t, err)
	require.NotNil(t, mission)

	serviceman := team.Members()[0]
	require.NoError(t, f.engine.FinishMission(context.Background(), serviceman, "repaired"))

	assert.Equal(t, StateDone, issue.State)
	assert.Equal(t, "repaired", mission.Report)
	assert.Nil(t, team.ActiveMission)
	assert.True(t, team.Idle())
	assert.Equal(t, 10, f.pool.Machineries()[0].AvailableCount)

	// Finishing twice is illegal.
	err = f.engine.FinishMission(context.Background(), serviceman, "again")
	assert.ErrorIs(t, err, errs.ErrIllegalOperationInState)
}

func TestRateIssue(t *testing.T) {
	f := newFixture(t)
	team := f.addTeam(t, f.asphalt, "m1", geo.NewLocation(35.80, 51.40))

	issue := f.submit(t, "Collapsed asphalt")
	mission, err := f.engine.AcceptIssue(context.Background(), f.expert, issue, f.repair,
		[]resources.SpecialityNeed{{Speciality: f.asphalt, Amount: 1}}, nil)
	require.NoError(t, err)
	require.NotNil(t, mission)

	// Rating before the mission finished is illegal.
	err = f.engine.RateIssue(context.Background(), f.citizen, issue, 4)
	assert.ErrorIs(t, err, errs.ErrIllegalOperationInState)

	require.NoError(t, f.engine.FinishMission(context.Background(), team.Members()[0], "done"))

	stranger := &roles.Citizen{User: &roles.User{Username: "stranger"}}
	err = f.engine.RateIssue(context.Background(), stranger, issue, 4)
	assert.ErrorIs(t, err, errs.ErrAccessDenied)

	err = f.engine.RateIssue(context.Background(), f.citizen, issue, 0)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
	err = f.engine.RateIssue(context.Background(), f.citizen, issue, 6)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	require.NoError(t, f.engine.RateIssue(context.Background(), f.citizen, issue, 4))
	assert.Equal(t, StateScored, issue.State)
	require.NotNil(t, mission.Score)
	assert.Equal(t, 4, *mission.Score)

	// SCORED is terminal.
	err = f.engine.RateIssue(context.Background(), f.citizen, issue, 5)
	assert.ErrorIs(t, err, errs.ErrIllegalOperationInState)
}

func TestAcceptPicksNearestTeam(t *testing.T) {
	f := newFixture(t)
	// The issue lands at (35.8, 51.4); far puts its member roughly five
	// times the distance of near.
	far := f.addTeam(t, f.asphalt, "far", geo.NewLocation(35.87, 51.40))
	near := f.addTeam(t, f.asphalt, "near", geo.NewLocation(35.814, 51.40))

	issue := f.submit(t, "Cracked lane")
	mission, err := f.engine.AcceptIssue(context.Background(), f.expert, issue, f.repair,
		[]resources.SpecialityNeed{{Speciality: f.asphalt, Amount: 1}}, nil)
	require.NoError(t, err)
	require.NotNil(t, mission)

	require.Len(t, mission.ServiceTeams, 1)
	assert.Same(t, near, mission.ServiceTeams[0])
	assert.True(t, far.Idle())
}

func TestAcceptGuards(t *testing.T) {
	f := newFixture(t)
	f.addTeam(t, f.asphalt, "m1", geo.NewLocation(35.80, 51.40))

	issue := f.submit(t, "Collapsed asphalt")
	needs := []resources.SpecialityNeed{{Speciality: f.asphalt, Amount: 1}}

	t.Run("foreign expert", func(t *testing.T) {
		other, err := f.county.Parent().AddCounty("Damavand")
		require.NoError(t, err)
		outsider := &roles.CountyExpert{User: &roles.User{Username: "out"}, County: other}
		_, err = f.engine.AcceptIssue(context.Background(), outsider, issue, f.repair, needs, nil)
		assert.ErrorIs(t, err, errs.ErrAccessDenied)
		assert.Equal(t, StateReported, issue.State)
	})

	t.Run("machinery only", func(t *testing.T) {
		_, err := f.engine.AcceptIssue(context.Background(), f.expert, issue, f.repair, nil,
			[]resources.MachineryNeed{{Type: f.crane, Amount: 1}})
		assert.ErrorIs(t, err, errs.ErrInvalidArgument)
		assert.Equal(t, StateReported, issue.State)
	})

	t.Run("non-positive amounts dropped", func(t *testing.T) {
		_, err := f.engine.AcceptIssue(context.Background(), f.expert, issue, f.repair,
			[]resources.SpecialityNeed{{Speciality: f.asphalt, Amount: 0}, {Speciality: f.plumb, Amount: -1}}, nil)
		assert.ErrorIs(t, err, errs.ErrInvalidArgument)
	})

	t.Run("duplicate speciality", func(t *testing.T) {
		_, err := f.engine.AcceptIssue(context.Background(), f.expert, issue, f.repair,
			[]resources.SpecialityNeed{{Speciality: f.asphalt, Amount: 1}, {Speciality: f.asphalt, Amount: 1}}, nil)
		assert.ErrorIs(t, err, errs.ErrInvalidArgument)
		assert.Equal(t, StateReported, issue.State)
	})

	t.Run("already accepted", func(t *testing.T) {
		mission, err := f.engine.AcceptIssue(context.Background(), f.expert, issue, f.repair, needs, nil)
		require.NoError(t, err)
		require.NotNil(t, mission)
		_, err = f.engine.AcceptIssue(context.Background(), f.expert, issue, f.repair, needs, nil)
		assert.ErrorIs(t, err, errs.ErrIllegalOperationInState)
	})
}

func TestRejectIssue(t *testing.T) {
	f := newFixture(t)
	issue := f.submit(t, "Minor scratch")

	require.NoError(t, f.engine.RejectIssue(context.Background(), f.expert, issue))
	assert.Equal(t, StateRejected, issue.State)

	err := f.engine.RejectIssue(context.Background(), f.expert, issue)
	assert.ErrorIs(t, err, errs.ErrIllegalOperationInState)
}

func TestSubmitIssueValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.SubmitIssue(context.Background(), f.citizen, "t", "d",
		f.country, geo.NewLocation(35, 51), "")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = f.engine.SubmitIssue(context.Background(), f.citizen, "t", "d",
		f.county, geo.NewLocation(35, 51), "not!base64!!")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestFinishWithoutActiveMission(t *testing.T) {
	f := newFixture(t)
	team := f.addTeam(t, f.asphalt, "m1", geo.NewLocation(35.80, 51.40))

	err := f.engine.FinishMission(context.Background(), team.Members()[0], "nothing to do")
	assert.ErrorIs(t, err, errs.ErrIllegalOperationInState)
}

func TestExpertAndModeratorViews(t *testing.T) {
	f := newFixture(t)
	f.addTeam(t, f.asphalt, "m1", geo.NewLocation(35.80, 51.40))

	first := f.submit(t, "first")
	second := f.submit(t, "second")
	_, err := f.engine.AcceptIssue(context.Background(), f.expert, first, f.repair,
		[]resources.SpecialityNeed{{Speciality: f.asphalt, Amount: 1}}, nil)
	require.NoError(t, err)

	reported := f.engine.ReportedIssues(f.expert)
	require.Len(t, reported, 1)
	assert.Same(t, second, reported[0])
	assert.Len(t, f.engine.ExpertIssues(f.expert), 2)

	assert.Same(t, second, f.engine.LatestIssueOf(f.citizen))

	countryMod := &roles.Moderator{User: &roles.User{Username: "mod"}, Region: f.country}
	assert.True(t, f.engine.CanViewIssue(countryMod, first))
	issues := f.engine.ModeratorIssues(countryMod, []*region.Region{f.country})
	assert.Len(t, issues, 2)

	otherProvince, err := f.country.AddProvince("Fars")
	require.NoError(t, err)
	farsMod := &roles.Moderator{User: &roles.User{Username: "fmod"}, Region: otherProvince}
	assert.False(t, f.engine.CanViewIssue(farsMod, first))
	assert.Empty(t, f.engine.ModeratorIssues(farsMod, []*region.Region{f.country}))
}

// Two concurrent acceptances compete for the county's single team; exactly
// one must win it.
func TestConcurrentAcceptsNeverDoubleBook(t *testing.T) {
	f := newFixture(t)
	team := f.addTeam(t, f.asphalt, "m1", geo.NewLocation(35.80, 51.40))

	issues := []*Issue{f.submit(t, "one"), f.submit(t, "two")}
	missions := make([]*Mission, len(issues))

	var g errgroup.Group
	for i, issue := range issues {
		i, issue := i, issue
		g.Go(func() error {
			m, err := f.engine.AcceptIssue(context.Background(), f.expert, issue, f.repair,
				[]resources.SpecialityNeed{{Speciality: f.asphalt, Amount: 1}}, nil)
			missions[i] = m
			return err
		})
	}
	require.NoError(t, g.Wait())

	var assigned, failed int
	for i, issue := range issues {
		switch issue.State {
		case StateAssigned:
			assigned++
			require.NotNil(t, missions[i])
			assert.Equal(t, missions[i], team.ActiveMission)
		case StateFailed:
			failed++
			assert.Nil(t, missions[i])
		default:
			t.Fatalf("issue %d in unexpected state %s", i, issue.State)
		}
	}
	assert.Equal(t, 1, assigned)
	assert.Equal(t, 1, failed)
}

type recordingNotifier struct {
	phones   []string
	messages []string
	err      error
}

func (n *recordingNotifier) Notify(_ context.Context, phone, message string) error {
	n.phones = append(n.phones, phone)
	n.messages = append(n.messages, message)
	return n.err
}

func TestSubmitNotifiesCountyExpert(t *testing.T) {
	country := region.NewCountry("Iran")
	province, err := country.AddProvince("Tehran")
	require.NoError(t, err)
	county, err := province.AddCounty("Shemiran")
	require.NoError(t, err)

	directory := roles.NewDirectory()
	notifier := &recordingNotifier{}
	engine := NewEngine(directory, Config{}, notifier, nil, nil)
	_, err = engine.RegisterCounty(county)
	require.NoError(t, err)

	countryMod, err := directory.AppointCountryModerator(
		mustUser(t, directory, "root", "09120000010"), country)
	require.NoError(t, err)
	countyMod, err := directory.AssignModerator(countryMod,
		mustUser(t, directory, "cmod", "09120000011"), county)
	require.NoError(t, err)
	_, err = directory.AssignExpert(countyMod, mustUser(t, directory, "expert", "09120000012"))
	require.NoError(t, err)

	citizen, err := directory.SignUpCitizen("reporter", "sturdy-pass-3", "09120000013", "R", "R")
	require.NoError(t, err)

	_, err = engine.SubmitIssue(context.Background(), citizen, "Flood", "water everywhere",
		county, geo.NewLocation(35.8, 51.4), "")
	require.NoError(t, err)

	require.Len(t, notifier.phones, 1)
	assert.Equal(t, "09120000012", notifier.phones[0])
	assert.Contains(t, notifier.messages[0], "Shemiran")

	// Delivery failures never surface to the reporter.
	notifier.err = errors.New("gateway down")
	_, err = engine.SubmitIssue(context.Background(), citizen, "Flood 2", "more water",
		county, geo.NewLocation(35.8, 51.4), "")
	require.NoError(t, err)
}

func mustUser(t *testing.T, d *roles.Directory, name, phone string) *roles.User {
	t.Helper()
	u, err := d.CreateUser(name, fmt.Sprintf("pw-%s-long", name), phone, name, name)
	require.NoError(t, err)
	return u
}
