// Package gateway exposes the HTTP API: citizen sign-up and issue reporting,
// expert triage, serviceman mission flow, catalogs, the region tree and the
// moderator reports.
package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"roadassist/internal/errs"
	"roadassist/internal/lifecycle"
	"roadassist/internal/region"
	"roadassist/internal/reporting"
	"roadassist/internal/resources"
	"roadassist/internal/roles"
	"roadassist/pkg/geo"
)

// Config holds gateway configuration.
type Config struct {
	Debug bool
}

// Gateway wires the HTTP surface over the engine.
type Gateway struct {
	router    *gin.Engine
	directory *roles.Directory
	engine    *lifecycle.Engine
	catalog   *resources.Catalog
	tokens    *roles.TokenService
	reports   *reporting.Generator

	country *region.Region
	regions map[uuid.UUID]*region.Region
}

// NewGateway builds the router. country is the root of the region tree.
func NewGateway(cfg Config, directory *roles.Directory, engine *lifecycle.Engine, catalog *resources.Catalog, tokens *roles.TokenService, reports *reporting.Generator, country *region.Region) *Gateway {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	g := &Gateway{
		router:    gin.Default(),
		directory: directory,
		engine:    engine,
		catalog:   catalog,
		tokens:    tokens,
		reports:   reports,
		country:   country,
		regions:   make(map[uuid.UUID]*region.Region),
	}
	g.indexRegions(country)
	g.setupRoutes()
	return g
}

func (g *Gateway) indexRegions(r *region.Region) {
	g.regions[r.ID] = r
	for _, sub := range r.Subregions() {
		g.indexRegions(sub)
	}
}

func (g *Gateway) setupRoutes() {
	g.router.GET("/health", g.healthCheck)

	v1 := g.router.Group("/api/v1")
	{
		v1.POST("/auth/signup", g.signUp)
		v1.POST("/auth/login", g.login)

		v1.GET("/regions", g.listRegions)
		v1.GET("/catalog/specialities", g.listSpecialities)
		v1.GET("/catalog/machinery-types", g.listMachineryTypes)
		v1.GET("/catalog/mission-types", g.listMissionTypes)

		auth := v1.Group("", g.authMiddleware())
		{
			auth.POST("/issues", g.submitIssue)
			auth.GET("/issues/current", g.currentIssue)
			auth.POST("/issues/:id/rating", g.rateIssue)

			auth.GET("/issues/reported", g.reportedIssues)
			auth.GET("/issues", g.countyIssues)
			auth.POST("/issues/:id/accept", g.acceptIssue)
			auth.POST("/issues/:id/reject", g.rejectIssue)

			auth.POST("/missions/finish", g.finishMission)
			auth.POST("/serviceman/location", g.updateLocation)

			auth.POST("/teams", g.addTeam)
			auth.PUT("/teams/:id", g.editTeam)
			auth.DELETE("/teams/:id", g.deleteTeam)
			auth.GET("/teams", g.listTeams)

			auth.GET("/machineries", g.listMachineries)
			auth.POST("/machineries/:typeID/increase", g.increaseMachinery)
			auth.POST("/machineries/:typeID/decrease", g.decreaseMachinery)

			auth.GET("/regions/:id/issues", g.regionIssues)
			auth.GET("/regions/:id/reports/interval", g.intervalReport)
			auth.GET("/regions/:id/reports/distribution", g.distributionReport)
			auth.GET("/regions/:id/reports/subregions", g.subregionsReport)
		}
	}
}

// Handler exposes the router for tests and the HTTP server.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now()})
}

// httpStatus maps the error taxonomy onto HTTP codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, errs.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrResourceNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrOccupiedUser),
		errors.Is(err, errs.ErrDuplicatedInfo),
		errors.Is(err, errs.ErrBusyResource),
		errors.Is(err, errs.ErrIllegalOperationInState):
		return http.StatusConflict
	case errors.Is(err, errs.ErrInvalidArgument), errors.Is(err, errs.ErrWeakPassword):
		return http.StatusBadRequest
	case errors.Is(err, roles.ErrInvalidToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(httpStatus(err), gin.H{"error": err.Error()})
}

// Middleware

const userKey = "user"

func (g *Gateway) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}
		claims, err := g.tokens.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		user, ok := g.directory.UserByUsername(claims.Username)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

func (g *Gateway) currentUser(c *gin.Context) *roles.User {
	return c.MustGet(userKey).(*roles.User)
}

func (g *Gateway) currentCitizen(c *gin.Context) (*roles.Citizen, bool) {
	citizen, ok := g.currentUser(c).Role().(*roles.Citizen)
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "citizen role required"})
	}
	return citizen, ok
}

func (g *Gateway) currentExpert(c *gin.Context) (*roles.CountyExpert, bool) {
	expert, ok := g.currentUser(c).Role().(*roles.CountyExpert)
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "county expert role required"})
	}
	return expert, ok
}

func (g *Gateway) currentServiceman(c *gin.Context) (*resources.Serviceman, bool) {
	serviceman, ok := g.currentUser(c).Role().(*resources.Serviceman)
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "serviceman role required"})
	}
	return serviceman, ok
}

func (g *Gateway) currentModerator(c *gin.Context) (*roles.Moderator, bool) {
	mod, ok := g.currentUser(c).Role().(*roles.Moderator)
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "moderator role required"})
	}
	return mod, ok
}

// Auth

type signUpRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	PhoneNumber string `json:"phone_number" binding:"required"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
}

func (g *Gateway) signUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	citizen, err := g.directory.SignUpCitizen(req.Username, req.Password, req.PhoneNumber, req.FirstName, req.LastName)
	if err != nil {
		fail(c, err)
		return
	}
	token, err := g.tokens.Issue(citizen.User)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token, "username": citizen.User.Username})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (g *Gateway) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, ok := g.directory.UserByUsername(req.Username)
	if !ok || !user.CheckPassword(req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	token, err := g.tokens.Issue(user)
	if err != nil {
		fail(c, err)
		return
	}
	role := ""
	if r := user.Role(); r != nil {
		role = string(r.RoleKind())
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "username": user.Username, "role": role})
}

// Issues

type submitIssueRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description"`
	CountyID    string  `json:"county_id" binding:"required"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Base64Image string  `json:"base64_image"`
}

type issueResponse struct {
	ID          uuid.UUID        `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	County      string           `json:"county"`
	State       string           `json:"state"`
	Latitude    string           `json:"latitude"`
	Longitude   string           `json:"longitude"`
	CreatedAt   time.Time        `json:"created_at"`
	Mission     *missionResponse `json:"mission,omitempty"`
}

type missionResponse struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	TeamCount int       `json:"team_count"`
	Report    string    `json:"report,omitempty"`
	Score     *int      `json:"score,omitempty"`
}

func toIssueResponse(issue *lifecycle.Issue) issueResponse {
	resp := issueResponse{
		ID:          issue.ID,
		Title:       issue.Title,
		Description: issue.Description,
		County:      issue.County.Name,
		State:       string(issue.State),
		Latitude:    issue.Location.Lat.String(),
		Longitude:   issue.Location.Long.String(),
		CreatedAt:   issue.CreatedAt,
	}
	if issue.Mission != nil {
		resp.Mission = &missionResponse{
			ID:        issue.Mission.ID,
			Type:      issue.Mission.Type.Name,
			TeamCount: len(issue.Mission.ServiceTeams),
			Report:    issue.Mission.Report,
			Score:     issue.Mission.Score,
		}
	}
	return resp
}

func toIssueResponses(issues []*lifecycle.Issue) []issueResponse {
	out := make([]issueResponse, 0, len(issues))
	for _, issue := range issues {
		out = append(out, toIssueResponse(issue))
	}
	return out
}

func (g *Gateway) regionByParam(c *gin.Context, param string) (*region.Region, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid region id"})
		return nil, false
	}
	r, ok := g.regions[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "region not found"})
		return nil, false
	}
	return r, true
}

func (g *Gateway) issueByParam(c *gin.Context) (*lifecycle.Issue, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid issue id"})
		return nil, false
	}
	issue, ok := g.engine.IssueByID(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "issue not found"})
		return nil, false
	}
	return issue, true
}

func (g *Gateway) submitIssue(c *gin.Context) {
	citizen, ok := g.currentCitizen(c)
	if !ok {
		return
	}
	var req submitIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	countyID, err := uuid.Parse(req.CountyID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid county id"})
		return
	}
	county, ok := g.regions[countyID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "county not found"})
		return
	}
	issue, err := g.engine.SubmitIssue(c.Request.Context(), citizen, req.Title, req.Description,
		county, geo.NewLocation(req.Latitude, req.Longitude), req.Base64Image)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toIssueResponse(issue))
}

func (g *Gateway) currentIssue(c *gin.Context) {
	citizen, ok := g.currentCitizen(c)
	if !ok {
		return
	}
	issue := g.engine.LatestIssueOf(citizen)
	if issue == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no issues reported"})
		return
	}
	c.JSON(http.StatusOK, toIssueResponse(issue))
}

type rateRequest struct {
	Rating int `json:"rating" binding:"required"`
}

func (g *Gateway) rateIssue(c *gin.Context) {
	citizen, ok := g.currentCitizen(c)
	if !ok {
		return
	}
	issue, ok := g.issueByParam(c)
	if !ok {
		return
	}
	var req rateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := g.engine.RateIssue(c.Request.Context(), citizen, issue, req.Rating); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toIssueResponse(issue))
}

func (g *Gateway) reportedIssues(c *gin.Context) {
	expert, ok := g.currentExpert(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"issues": toIssueResponses(g.engine.ReportedIssues(expert))})
}

func (g *Gateway) countyIssues(c *gin.Context) {
	expert, ok := g.currentExpert(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"issues": toIssueResponses(g.engine.ExpertIssues(expert))})
}

type requirementRequest struct {
	ID     string `json:"id" binding:"required"`
	Amount int    `json:"amount" binding:"required"`
}

type acceptRequest struct {
	MissionTypeID string               `json:"mission_type_id" binding:"required"`
	Specialities  []requirementRequest `json:"specialities" binding:"required"`
	Machineries   []requirementRequest `json:"machineries"`
}

func (g *Gateway) acceptIssue(c *gin.Context) {
	expert, ok := g.currentExpert(c)
	if !ok {
		return
	}
	issue, ok := g.issueByParam(c)
	if !ok {
		return
	}
	var req acceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	missionTypeID, err := uuid.Parse(req.MissionTypeID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mission type id"})
		return
	}
	missionType, ok := g.catalog.MissionTypeByID(missionTypeID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "mission type not found"})
		return
	}

	var specNeeds []resources.SpecialityNeed
	for _, r := range req.Specialities {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid speciality id"})
			return
		}
		spec, ok := g.catalog.SpecialityByID(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "speciality not found"})
			return
		}
		specNeeds = append(specNeeds, resources.SpecialityNeed{Speciality: spec, Amount: r.Amount})
	}
	var machNeeds []resources.MachineryNeed
	for _, r := range req.Machineries {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid machinery type id"})
			return
		}
		mt, ok := g.catalog.MachineryTypeByID(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "machinery type not found"})
			return
		}
		machNeeds = append(machNeeds, resources.MachineryNeed{Type: mt, Amount: r.Amount})
	}

	mission, err := g.engine.AcceptIssue(c.Request.Context(), expert, issue, missionType, specNeeds, machNeeds)
	if err != nil {
		fail(c, err)
		return
	}
	resp := gin.H{"issue": toIssueResponse(issue), "assigned": mission != nil}
	c.JSON(http.StatusOK, resp)
}

func (g *Gateway) rejectIssue(c *gin.Context) {
	expert, ok := g.currentExpert(c)
	if !ok {
		return
	}
	issue, ok := g.issueByParam(c)
	if !ok {
		return
	}
	if err := g.engine.RejectIssue(c.Request.Context(), expert, issue); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toIssueResponse(issue))
}

// Missions

type finishRequest struct {
	Report string `json:"report" binding:"required"`
}

func (g *Gateway) finishMission(c *gin.Context) {
	serviceman, ok := g.currentServiceman(c)
	if !ok {
		return
	}
	var req finishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := g.engine.FinishMission(c.Request.Context(), serviceman, req.Report); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "finished"})
}

type locationRequest struct {
	Latitude  float64 `json:"latitude" binding:"required"`
	Longitude float64 `json:"longitude" binding:"required"`
}

func (g *Gateway) updateLocation(c *gin.Context) {
	serviceman, ok := g.currentServiceman(c)
	if !ok {
		return
	}
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	serviceman.UpdateLocation(geo.NewLocation(req.Latitude, req.Longitude))
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// Teams and machinery

type teamRequest struct {
	SpecialityID string   `json:"speciality_id" binding:"required"`
	Members      []string `json:"members" binding:"required"`
}

func (g *Gateway) teamMembers(c *gin.Context, usernames []string) ([]*roles.User, bool) {
	members := make([]*roles.User, 0, len(usernames))
	for _, username := range usernames {
		user, ok := g.directory.UserByUsername(username)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found: " + username})
			return nil, false
		}
		members = append(members, user)
	}
	return members, true
}

type teamResponse struct {
	ID         uuid.UUID `json:"id"`
	Speciality string    `json:"speciality"`
	Members    []string  `json:"members"`
	Idle       bool      `json:"idle"`
	Deleted    bool      `json:"deleted"`
}

func toTeamResponse(team *resources.ServiceTeam) teamResponse {
	resp := teamResponse{
		ID:         team.ID,
		Speciality: team.Speciality.Name,
		Idle:       team.Idle(),
		Deleted:    team.Deleted(),
	}
	for _, m := range team.Members() {
		resp.Members = append(resp.Members, m.User.Username)
	}
	return resp
}

// countyPool resolves the resource pool of the caller's own county. County
// experts read it to plan requirements; county moderators read it for
// administration.
func (g *Gateway) countyPool(c *gin.Context) (*resources.Pool, bool) {
	var county *region.Region
	switch role := g.currentUser(c).Role().(type) {
	case *roles.CountyExpert:
		county = role.County
	case *roles.Moderator:
		if role.Region.Kind == region.KindCounty {
			county = role.Region
		}
	}
	if county == nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "county expert or county moderator role required"})
		return nil, false
	}
	return g.poolOf(c, county)
}

// moderatorPool restricts to the county moderator, who owns team and
// machinery administration.
func (g *Gateway) moderatorPool(c *gin.Context) (*resources.Pool, bool) {
	mod, ok := g.currentUser(c).Role().(*roles.Moderator)
	if !ok || mod.Region.Kind != region.KindCounty {
		c.JSON(http.StatusForbidden, gin.H{"error": "county moderator role required"})
		return nil, false
	}
	return g.poolOf(c, mod.Region)
}

func (g *Gateway) poolOf(c *gin.Context, county *region.Region) (*resources.Pool, bool) {
	pool := g.engine.PoolOf(county)
	if pool == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "county has no resource pool"})
		return nil, false
	}
	return pool, true
}

func (g *Gateway) addTeam(c *gin.Context) {
	pool, ok := g.moderatorPool(c)
	if !ok {
		return
	}
	var req teamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	specID, err := uuid.Parse(req.SpecialityID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid speciality id"})
		return
	}
	spec, ok := g.catalog.SpecialityByID(specID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "speciality not found"})
		return
	}
	members, ok := g.teamMembers(c, req.Members)
	if !ok {
		return
	}
	team, err := pool.AddServiceTeam(spec, members)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toTeamResponse(team))
}

func (g *Gateway) teamByParam(c *gin.Context, pool *resources.Pool) (*resources.ServiceTeam, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid team id"})
		return nil, false
	}
	for _, team := range pool.Teams() {
		if team.ID == id {
			return team, true
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "team not found"})
	return nil, false
}

func (g *Gateway) editTeam(c *gin.Context) {
	pool, ok := g.moderatorPool(c)
	if !ok {
		return
	}
	team, ok := g.teamByParam(c, pool)
	if !ok {
		return
	}
	var req teamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	specID, err := uuid.Parse(req.SpecialityID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid speciality id"})
		return
	}
	spec, ok := g.catalog.SpecialityByID(specID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "speciality not found"})
		return
	}
	members, ok := g.teamMembers(c, req.Members)
	if !ok {
		return
	}
	if err := pool.EditServiceTeam(team, spec, members); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toTeamResponse(team))
}

func (g *Gateway) deleteTeam(c *gin.Context) {
	pool, ok := g.moderatorPool(c)
	if !ok {
		return
	}
	team, ok := g.teamByParam(c, pool)
	if !ok {
		return
	}
	if err := pool.DeleteServiceTeam(team); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (g *Gateway) listTeams(c *gin.Context) {
	pool, ok := g.countyPool(c)
	if !ok {
		return
	}
	var out []teamResponse
	for _, team := range pool.Teams() {
		if !team.Deleted() {
			out = append(out, toTeamResponse(team))
		}
	}
	c.JSON(http.StatusOK, gin.H{"teams": out})
}

type machineryResponse struct {
	Type           string `json:"type"`
	TotalCount     int    `json:"total_count"`
	AvailableCount int    `json:"available_count"`
}

func (g *Gateway) listMachineries(c *gin.Context) {
	pool, ok := g.countyPool(c)
	if !ok {
		return
	}
	var out []machineryResponse
	for _, m := range pool.Machineries() {
		out = append(out, machineryResponse{
			Type:           m.Type.Name,
			TotalCount:     m.TotalCount,
			AvailableCount: m.AvailableCount,
		})
	}
	c.JSON(http.StatusOK, gin.H{"machineries": out})
}

func (g *Gateway) machineryTypeByParam(c *gin.Context) (*resources.MachineryType, bool) {
	id, err := uuid.Parse(c.Param("typeID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid machinery type id"})
		return nil, false
	}
	mt, ok := g.catalog.MachineryTypeByID(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "machinery type not found"})
		return nil, false
	}
	return mt, true
}

func (g *Gateway) increaseMachinery(c *gin.Context) {
	pool, ok := g.moderatorPool(c)
	if !ok {
		return
	}
	mt, ok := g.machineryTypeByParam(c)
	if !ok {
		return
	}
	m, err := pool.IncreaseMachinery(mt)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, machineryResponse{Type: m.Type.Name, TotalCount: m.TotalCount, AvailableCount: m.AvailableCount})
}

func (g *Gateway) decreaseMachinery(c *gin.Context) {
	pool, ok := g.moderatorPool(c)
	if !ok {
		return
	}
	mt, ok := g.machineryTypeByParam(c)
	if !ok {
		return
	}
	if err := pool.DecreaseMachinery(mt); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "decreased"})
}

// Catalogs and regions

func (g *Gateway) listSpecialities(c *gin.Context) {
	out := make([]gin.H, 0)
	for _, s := range g.catalog.Specialities() {
		out = append(out, gin.H{"id": s.ID, "name": s.Name})
	}
	c.JSON(http.StatusOK, gin.H{"specialities": out})
}

func (g *Gateway) listMachineryTypes(c *gin.Context) {
	out := make([]gin.H, 0)
	for _, mt := range g.catalog.MachineryTypes() {
		out = append(out, gin.H{"id": mt.ID, "name": mt.Name})
	}
	c.JSON(http.StatusOK, gin.H{"machinery_types": out})
}

func (g *Gateway) listMissionTypes(c *gin.Context) {
	out := make([]gin.H, 0)
	for _, mt := range g.catalog.MissionTypes() {
		out = append(out, gin.H{"id": mt.ID, "name": mt.Name})
	}
	c.JSON(http.StatusOK, gin.H{"mission_types": out})
}

type regionResponse struct {
	ID         uuid.UUID        `json:"id"`
	Name       string           `json:"name"`
	Kind       string           `json:"kind"`
	Subregions []regionResponse `json:"subregions,omitempty"`
}

func toRegionResponse(r *region.Region) regionResponse {
	resp := regionResponse{ID: r.ID, Name: r.Name, Kind: string(r.Kind)}
	for _, sub := range r.Subregions() {
		resp.Subregions = append(resp.Subregions, toRegionResponse(sub))
	}
	return resp
}

func (g *Gateway) listRegions(c *gin.Context) {
	c.JSON(http.StatusOK, toRegionResponse(g.country))
}

// Moderator views and reports

func (g *Gateway) moderatedRegion(c *gin.Context) (*roles.Moderator, *region.Region, bool) {
	mod, ok := g.currentModerator(c)
	if !ok {
		return nil, nil, false
	}
	r, ok := g.regionByParam(c, "id")
	if !ok {
		return nil, nil, false
	}
	if !mod.CanModerate(r) {
		c.JSON(http.StatusForbidden, gin.H{"error": "region outside moderator scope"})
		return nil, nil, false
	}
	return mod, r, true
}

func (g *Gateway) regionIssues(c *gin.Context) {
	mod, r, ok := g.moderatedRegion(c)
	if !ok {
		return
	}
	issues := g.engine.ModeratorIssues(mod, []*region.Region{r})
	c.JSON(http.StatusOK, gin.H{"issues": toIssueResponses(issues)})
}

func (g *Gateway) intervalReport(c *gin.Context) {
	_, r, ok := g.moderatedRegion(c)
	if !ok {
		return
	}
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start time"})
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end time"})
		return
	}
	report := g.reports.Interval(r, start, end)
	c.JSON(http.StatusOK, gin.H{
		"region":                  r.Name,
		"bin_starts":              report.BinStarts,
		"team_counts":             report.TeamCounts,
		"issue_counts":            report.IssueCounts,
		"failed_issue_counts":     report.FailedIssueCounts,
		"successful_issue_counts": report.SuccessfulIssueCounts,
		"score_averages":          report.ScoreAverages,
	})
}

func (g *Gateway) distributionReport(c *gin.Context) {
	_, r, ok := g.moderatedRegion(c)
	if !ok {
		return
	}
	report := g.reports.Distribution(r)
	c.JSON(http.StatusOK, gin.H{
		"region":          r.Name,
		"mission_types":   report.MissionTypes,
		"specialities":    report.Specialities,
		"machinery_types": report.MachineryTypes,
		"scores":          report.Scores,
	})
}

func (g *Gateway) subregionsReport(c *gin.Context) {
	_, r, ok := g.moderatedRegion(c)
	if !ok {
		return
	}
	report := g.reports.Subregions(r)
	rows := make([]gin.H, 0, len(report.Subregions))
	for _, info := range report.Subregions {
		rows = append(rows, gin.H{
			"subregion":     info.Subregion.Name,
			"kind":          string(info.Subregion.Kind),
			"mission_count": info.MissionCount,
			"issue_count":   info.IssueCount,
			"score_average": info.ScoreAverage,
			"success_rate":  info.SuccessRate,
			"team_count":    info.TeamCount,
		})
	}
	c.JSON(http.StatusOK, gin.H{"region": r.Name, "subregions": rows})
}
