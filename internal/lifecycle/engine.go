// Package lifecycle implements the issue state machine and the resource
// assignment engine.
//
// States move REPORTED -> {ACCEPTED, REJECTED}, ACCEPTED -> {ASSIGNED,
// FAILED}, ASSIGNED -> DONE, DONE -> SCORED. Resource insufficiency is not
// an error: the issue transitions to FAILED and the caller gets a nil
// mission. Every guard violation is a sentinel error from internal/errs.
package lifecycle

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"roadassist/internal/errs"
	"roadassist/internal/region"
	"roadassist/internal/resources"
	"roadassist/internal/roles"
	"roadassist/pkg/geo"
	"roadassist/pkg/messaging"
)

// Notifier delivers a message to a phone number. Delivery is best-effort:
// failures are logged and never surface to the reporting citizen.
type Notifier interface {
	Notify(ctx context.Context, phoneNumber, message string) error
}

// Publisher fans lifecycle events out to interested consumers.
// *messaging.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
}

// Store is the write-behind audit copy of issues and missions. All methods
// are best-effort from the engine's point of view.
type Store interface {
	SaveIssue(ctx context.Context, issue *Issue) error
	UpdateIssueState(ctx context.Context, id uuid.UUID, state State) error
	SaveMission(ctx context.Context, mission *Mission) error
	UpdateMission(ctx context.Context, mission *Mission) error
}

// Config tunes the engine.
type Config struct {
	// MaxImageBytes bounds issue image attachments. Zero means the
	// default of 5MB.
	MaxImageBytes int64
}

const defaultMaxImageBytes = 5 << 20

// Engine owns the issues and drives their lifecycle. All transitions run
// under the engine lock with the county pool's lock nested inside, so a
// team release racing a team selection can never double-book.
type Engine struct {
	mu        sync.RWMutex
	directory *roles.Directory
	pools     map[uuid.UUID]*resources.Pool // county ID -> pool
	issues    map[uuid.UUID]*Issue
	byCounty  map[uuid.UUID][]*Issue

	notifier  Notifier
	publisher Publisher
	store     Store

	maxImageBytes int64
}

// NewEngine builds an engine. notifier, publisher and store may each be nil;
// the corresponding side effects are skipped.
func NewEngine(directory *roles.Directory, cfg Config, notifier Notifier, publisher Publisher, store Store) *Engine {
	maxImage := cfg.MaxImageBytes
	if maxImage <= 0 {
		maxImage = defaultMaxImageBytes
	}
	return &Engine{
		directory:     directory,
		pools:         make(map[uuid.UUID]*resources.Pool),
		issues:        make(map[uuid.UUID]*Issue),
		byCounty:      make(map[uuid.UUID][]*Issue),
		notifier:      notifier,
		publisher:     publisher,
		store:         store,
		maxImageBytes: maxImage,
	}
}

// RegisterCounty creates the resource pool for a county.
func (e *Engine) RegisterCounty(county *region.Region) (*resources.Pool, error) {
	pool, err := resources.NewPool(county)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.pools[county.ID]; ok {
		return existing, nil
	}
	e.pools[county.ID] = pool
	return pool, nil
}

// PoolOf returns the county's resource pool, nil if never registered.
func (e *Engine) PoolOf(county *region.Region) *resources.Pool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pools[county.ID]
}

// SubmitIssue creates an issue in REPORTED state and notifies the county's
// expert. base64Image may be empty.
func (e *Engine) SubmitIssue(ctx context.Context, citizen *roles.Citizen, title, description string, county *region.Region, location geo.Location, base64Image string) (*Issue, error) {
	if county.Kind != region.KindCounty {
		return nil, fmt.Errorf("issues are reported against counties, got %s: %w", county.Kind, errs.ErrInvalidArgument)
	}
	var img []byte
	if base64Image != "" {
		var err error
		img, err = decodeIssueImage(base64Image, e.maxImageBytes)
		if err != nil {
			return nil, err
		}
	}

	issue := &Issue{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		Reporter:    citizen,
		County:      county,
		Location:    location,
		CreatedAt:   time.Now(),
		State:       StateReported,
		Image:       img,
	}

	e.mu.Lock()
	e.issues[issue.ID] = issue
	e.byCounty[county.ID] = append(e.byCounty[county.ID], issue)
	e.mu.Unlock()

	if e.store != nil {
		if err := e.store.SaveIssue(ctx, issue); err != nil {
			log.Printf("lifecycle: persist issue %s: %v", issue.ID, err)
		}
	}
	e.publishIssue(ctx, messaging.SubjectIssueReported, issue)
	e.notifyExpert(ctx, issue)

	return issue, nil
}

// notifyExpert tells the county's expert about a fresh issue. Failures are
// logged only.
func (e *Engine) notifyExpert(ctx context.Context, issue *Issue) {
	if e.notifier == nil {
		return
	}
	expert := e.directory.ExpertOf(issue.County)
	if expert == nil {
		return
	}
	msg := fmt.Sprintf("New issue reported in %s: %s", issue.County.Name, issue.Title)
	if err := e.notifier.Notify(ctx, expert.User.PhoneNumber, msg); err != nil {
		log.Printf("lifecycle: notify expert for issue %s: %v", issue.ID, err)
	}
}

// AcceptIssue declares the issue's resource requirements and immediately
// attempts assignment. Requirements with non-positive amounts are dropped;
// at least one positive speciality requirement must remain (machinery-only
// acceptance is disallowed). Each speciality and machinery type may appear
// at most once; the reservation accounting relies on it. Returns the
// mission, or nil when assignment failed and the issue moved to FAILED.
func (e *Engine) AcceptIssue(ctx context.Context, expert *roles.CountyExpert, issue *Issue, missionType *resources.MissionType, specNeeds []resources.SpecialityNeed, machNeeds []resources.MachineryNeed) (*Mission, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if expert.County != issue.County {
		return nil, fmt.Errorf("issue %s is outside expert's county %s: %w", issue.ID, expert.County.Name, errs.ErrAccessDenied)
	}
	if issue.State != StateReported {
		return nil, fmt.Errorf("accept issue in state %s: %w", issue.State, errs.ErrIllegalOperationInState)
	}

	var specs []resources.SpecialityNeed
	seenSpecs := make(map[*resources.Speciality]bool)
	for _, need := range specNeeds {
		if need.Amount <= 0 {
			continue
		}
		if seenSpecs[need.Speciality] {
			return nil, fmt.Errorf("speciality %q required more than once: %w", need.Speciality.Name, errs.ErrInvalidArgument)
		}
		seenSpecs[need.Speciality] = true
		specs = append(specs, need)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("acceptance needs at least one positive speciality requirement: %w", errs.ErrInvalidArgument)
	}
	var machs []resources.MachineryNeed
	seenMachs := make(map[*resources.MachineryType]bool)
	for _, need := range machNeeds {
		if need.Amount <= 0 {
			continue
		}
		if seenMachs[need.Type] {
			return nil, fmt.Errorf("machinery type %q required more than once: %w", need.Type.Name, errs.ErrInvalidArgument)
		}
		seenMachs[need.Type] = true
		machs = append(machs, need)
	}

	issue.specNeeds = specs
	issue.machNeeds = machs
	e.setState(ctx, issue, StateAccepted, messaging.SubjectIssueAccepted)

	return e.assignResourcesLocked(ctx, issue, missionType)
}

// RejectIssue declines a reported issue.
func (e *Engine) RejectIssue(ctx context.Context, expert *roles.CountyExpert, issue *Issue) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if expert.County != issue.County {
		return fmt.Errorf("issue %s is outside expert's county %s: %w", issue.ID, expert.County.Name, errs.ErrAccessDenied)
	}
	if issue.State != StateReported {
		return fmt.Errorf("reject issue in state %s: %w", issue.State, errs.ErrIllegalOperationInState)
	}
	e.setState(ctx, issue, StateRejected, messaging.SubjectIssueRejected)
	return nil
}

// AssignResources runs the assignment algorithm for an accepted issue.
// Invoked internally right after acceptance; exposed for callers driving
// the lifecycle directly.
func (e *Engine) AssignResources(ctx context.Context, issue *Issue, missionType *resources.MissionType) (*Mission, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.assignResourcesLocked(ctx, issue, missionType)
}

func (e *Engine) assignResourcesLocked(ctx context.Context, issue *Issue, missionType *resources.MissionType) (*Mission, error) {
	if issue.State != StateAccepted {
		return nil, fmt.Errorf("assign resources in state %s: %w", issue.State, errs.ErrIllegalOperationInState)
	}
	pool := e.pools[issue.County.ID]
	if pool == nil {
		return nil, fmt.Errorf("county %s has no resource pool: %w", issue.County.Name, errs.ErrResourceNotFound)
	}

	mission := &Mission{ID: uuid.New(), Type: missionType}
	teams, ok := pool.Reserve(issue.specNeeds, issue.machNeeds, issue.Location, mission)
	if !ok {
		e.postponeAssignmentLocked(ctx, issue, missionType)
		return nil, nil
	}

	mission.Issue = issue
	mission.ServiceTeams = teams
	issue.Mission = mission
	e.setState(ctx, issue, StateAssigned, messaging.SubjectIssueAssigned)

	if e.store != nil {
		if err := e.store.SaveMission(ctx, mission); err != nil {
			log.Printf("lifecycle: persist mission %s: %v", mission.ID, err)
		}
	}
	e.publishMission(ctx, messaging.SubjectMissionCreated, mission)
	return mission, nil
}

// postponeAssignmentLocked is the resource-shortage path. There is no queue
// yet, so the issue fails outright.
func (e *Engine) postponeAssignmentLocked(ctx context.Context, issue *Issue, missionType *resources.MissionType) {
	// TODO: queue the issue for re-assignment once resources free up.
	e.setState(ctx, issue, StateFailed, messaging.SubjectIssueFailed)
}

// FinishMission completes the active mission of the serviceman's team:
// stores the report, releases every member team and returns the reserved
// machinery to the county pool.
func (e *Engine) FinishMission(ctx context.Context, serviceman *resources.Serviceman, report string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	team := serviceman.Team
	if team == nil || team.ActiveMission == nil {
		return fmt.Errorf("serviceman %s has no active mission: %w", serviceman.User.Username, errs.ErrIllegalOperationInState)
	}
	mission, ok := team.ActiveMission.(*Mission)
	if !ok {
		return fmt.Errorf("unexpected mission binding on team %s: %w", team.ID, errs.ErrIllegalOperationInState)
	}
	return e.finishMissionLocked(ctx, mission, report)
}

func (e *Engine) finishMissionLocked(ctx context.Context, mission *Mission, report string) error {
	issue := mission.Issue
	if issue.State != StateAssigned {
		return fmt.Errorf("finish mission in state %s: %w", issue.State, errs.ErrIllegalOperationInState)
	}
	mission.Report = report

	pool := e.pools[issue.County.ID]
	if pool != nil {
		pool.Release(mission, issue.machNeeds)
	}
	e.setState(ctx, issue, StateDone, messaging.SubjectIssueDone)

	if e.store != nil {
		if err := e.store.UpdateMission(ctx, mission); err != nil {
			log.Printf("lifecycle: persist mission %s: %v", mission.ID, err)
		}
	}
	e.publishMission(ctx, messaging.SubjectMissionFinished, mission)
	return nil
}

// RateIssue records the reporter's 1-5 rating for a finished issue.
func (e *Engine) RateIssue(ctx context.Context, citizen *roles.Citizen, issue *Issue, rating int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if issue.Reporter != citizen {
		return fmt.Errorf("only the reporter may rate issue %s: %w", issue.ID, errs.ErrAccessDenied)
	}
	if issue.State != StateDone {
		return fmt.Errorf("rate issue in state %s: %w", issue.State, errs.ErrIllegalOperationInState)
	}
	if rating < 1 || rating > 5 {
		return fmt.Errorf("rating %d outside 1-5: %w", rating, errs.ErrInvalidArgument)
	}

	issue.Mission.Score = &rating
	e.setState(ctx, issue, StateScored, messaging.SubjectIssueScored)

	if e.store != nil {
		if err := e.store.UpdateMission(ctx, issue.Mission); err != nil {
			log.Printf("lifecycle: persist mission %s: %v", issue.Mission.ID, err)
		}
	}
	return nil
}

// setState flips the issue's state and fires the side effects.
func (e *Engine) setState(ctx context.Context, issue *Issue, state State, subject string) {
	issue.State = state
	if e.store != nil {
		if err := e.store.UpdateIssueState(ctx, issue.ID, state); err != nil {
			log.Printf("lifecycle: persist issue %s state: %v", issue.ID, err)
		}
	}
	e.publishIssue(ctx, subject, issue)
}

func (e *Engine) publishIssue(ctx context.Context, subject string, issue *Issue) {
	if e.publisher == nil {
		return
	}
	ev := messaging.IssueEvent{
		IssueID:   issue.ID,
		County:    issue.County.Name,
		Title:     issue.Title,
		State:     string(issue.State),
		Timestamp: time.Now(),
	}
	if err := e.publisher.Publish(ctx, subject, ev); err != nil {
		log.Printf("lifecycle: publish %s: %v", subject, err)
	}
}

func (e *Engine) publishMission(ctx context.Context, subject string, mission *Mission) {
	if e.publisher == nil {
		return
	}
	ev := messaging.MissionEvent{
		MissionID: mission.ID,
		IssueID:   mission.Issue.ID,
		Type:      mission.Type.Name,
		TeamCount: len(mission.ServiceTeams),
		Timestamp: time.Now(),
	}
	if mission.Score != nil {
		ev.Score = *mission.Score
	}
	if err := e.publisher.Publish(ctx, subject, ev); err != nil {
		log.Printf("lifecycle: publish %s: %v", subject, err)
	}
}

// IssueByID looks up an issue.
func (e *Engine) IssueByID(id uuid.UUID) (*Issue, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	issue, ok := e.issues[id]
	return issue, ok
}

// IssuesOf returns a county's issues in submission order.
func (e *Engine) IssuesOf(county *region.Region) []*Issue {
	e.mu.RLock()
	defer e.mu.RUnlock()
	issues := e.byCounty[county.ID]
	out := make([]*Issue, len(issues))
	copy(out, issues)
	return out
}

// IssuesIn collects the issues of every county under a region.
func (e *Engine) IssuesIn(r *region.Region) []*Issue {
	var out []*Issue
	for _, county := range r.Counties() {
		out = append(out, e.IssuesOf(county)...)
	}
	return out
}

// MissionsIn collects the missions of every county under a region.
func (e *Engine) MissionsIn(r *region.Region) []*Mission {
	var out []*Mission
	for _, issue := range e.IssuesIn(r) {
		if issue.Mission != nil {
			out = append(out, issue.Mission)
		}
	}
	return out
}

// ExpertIssues returns every issue of the expert's county.
func (e *Engine) ExpertIssues(expert *roles.CountyExpert) []*Issue {
	return e.IssuesOf(expert.County)
}

// ReportedIssues returns the expert's county issues still awaiting triage.
func (e *Engine) ReportedIssues(expert *roles.CountyExpert) []*Issue {
	var out []*Issue
	for _, issue := range e.IssuesOf(expert.County) {
		if issue.State == StateReported {
			out = append(out, issue)
		}
	}
	return out
}

// LatestIssueOf returns the citizen's most recently submitted issue.
func (e *Engine) LatestIssueOf(citizen *roles.Citizen) *Issue {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var latest *Issue
	for _, issue := range e.issues {
		if issue.Reporter != citizen {
			continue
		}
		if latest == nil || issue.CreatedAt.After(latest.CreatedAt) {
			latest = issue
		}
	}
	return latest
}

// CanViewIssue reports whether the issue's county lies in the moderator's
// scope.
func (e *Engine) CanViewIssue(mod *roles.Moderator, issue *Issue) bool {
	return mod.CanModerate(issue.County)
}

// ModeratorIssues returns the issues inside the given regions, restricted to
// the moderator's scope.
func (e *Engine) ModeratorIssues(mod *roles.Moderator, regions []*region.Region) []*Issue {
	var out []*Issue
	seen := make(map[uuid.UUID]bool)
	for _, r := range regions {
		for _, issue := range e.IssuesIn(r) {
			if seen[issue.ID] || !mod.CanModerate(issue.County) {
				continue
			}
			seen[issue.ID] = true
			out = append(out, issue)
		}
	}
	return out
}
