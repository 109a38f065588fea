// Package reporting aggregates issues, missions and county resources into the
// three moderator-facing report shapes.
package reporting

import (
	"time"

	"roadassist/internal/lifecycle"
	"roadassist/internal/region"
	"roadassist/internal/resources"
)

// Kind tags a report shape.
type Kind string

const (
	KindInterval     Kind = "interval"
	KindDistribution Kind = "distribution"
	KindSubregions   Kind = "subregions"
)

const intervalBin = 7 * 24 * time.Hour

// IntervalReport slices a time range into weekly bins. All slices share the
// same length and index by bin.
type IntervalReport struct {
	Region    *region.Region
	StartTime time.Time
	EndTime   time.Time

	BinStarts             []time.Time
	TeamCounts            []int
	IssueCounts           []int
	FailedIssueCounts     []int
	SuccessfulIssueCounts []int
	// ScoreAverages holds nil for bins with no scored mission.
	ScoreAverages []*float64
}

func (r *IntervalReport) Kind() Kind { return KindInterval }

// DistributionReport counts missions by type, teams by speciality, machinery
// units by type and scores by value, across a region.
type DistributionReport struct {
	Region           *region.Region
	MissionTypes     map[string]int
	Specialities     map[string]int
	MachineryTypes   map[string]int
	Scores           map[int]int
}

func (r *DistributionReport) Kind() Kind { return KindDistribution }

// SubregionInfo is one row of a SubregionsReport.
type SubregionInfo struct {
	Subregion    *region.Region
	MissionCount int
	IssueCount   int
	// ScoreAverage is nil when no mission in the subregion was scored.
	ScoreAverage *float64
	// SuccessRate is successful over finished issues, nil when none finished.
	SuccessRate *float64
	TeamCount   int
}

// SubregionsReport summarizes each direct subregion of a region.
type SubregionsReport struct {
	Region     *region.Region
	Subregions []SubregionInfo
}

func (r *SubregionsReport) Kind() Kind { return KindSubregions }

// Generator builds reports from the live engine state.
type Generator struct {
	engine *lifecycle.Engine
}

func NewGenerator(engine *lifecycle.Engine) *Generator {
	return &Generator{engine: engine}
}

func (g *Generator) teamsIn(r *region.Region) []*resources.ServiceTeam {
	var out []*resources.ServiceTeam
	for _, county := range r.Counties() {
		if pool := g.engine.PoolOf(county); pool != nil {
			out = append(out, pool.Teams()...)
		}
	}
	return out
}

func (g *Generator) machineriesIn(r *region.Region) []*resources.Machinery {
	var out []*resources.Machinery
	for _, county := range r.Counties() {
		if pool := g.engine.PoolOf(county); pool != nil {
			out = append(out, pool.Machineries()...)
		}
	}
	return out
}

// Interval builds the weekly-binned report for [start, end).
func (g *Generator) Interval(r *region.Region, start, end time.Time) *IntervalReport {
	report := &IntervalReport{Region: r, StartTime: start, EndTime: end}
	teams := g.teamsIn(r)
	issues := g.engine.IssuesIn(r)
	missions := g.engine.MissionsIn(r)

	for binStart := start; binStart.Before(end); binStart = binStart.Add(intervalBin) {
		binEnd := binStart.Add(intervalBin)
		report.BinStarts = append(report.BinStarts, binStart)

		// A team counts while it exists during the bin: created before the
		// bin ends and not deleted before it starts.
		var teamCount int
		for _, t := range teams {
			if t.CreatedAt.Before(binEnd) && (t.DeletedAt == nil || t.DeletedAt.After(binStart)) {
				teamCount++
			}
		}
		report.TeamCounts = append(report.TeamCounts, teamCount)

		var issueCount, failed, successful int
		for _, issue := range issues {
			if issue.CreatedAt.Before(binStart) || !issue.CreatedAt.Before(binEnd) {
				continue
			}
			issueCount++
			switch issue.State {
			case lifecycle.StateFailed:
				failed++
			case lifecycle.StateDone, lifecycle.StateScored:
				successful++
			}
		}
		report.IssueCounts = append(report.IssueCounts, issueCount)
		report.FailedIssueCounts = append(report.FailedIssueCounts, failed)
		report.SuccessfulIssueCounts = append(report.SuccessfulIssueCounts, successful)

		var binMissions []*lifecycle.Mission
		for _, m := range missions {
			created := m.Issue.CreatedAt
			if !created.Before(binStart) && created.Before(binEnd) {
				binMissions = append(binMissions, m)
			}
		}
		report.ScoreAverages = append(report.ScoreAverages, scoreAverage(binMissions))
	}
	return report
}

// Distribution builds the region-wide distribution report.
func (g *Generator) Distribution(r *region.Region) *DistributionReport {
	report := &DistributionReport{
		Region:         r,
		MissionTypes:   make(map[string]int),
		Specialities:   make(map[string]int),
		MachineryTypes: make(map[string]int),
		Scores:         make(map[int]int),
	}
	for _, m := range g.engine.MissionsIn(r) {
		report.MissionTypes[m.Type.Name]++
		if m.Score != nil {
			report.Scores[*m.Score]++
		}
	}
	for _, t := range g.teamsIn(r) {
		report.Specialities[t.Speciality.Name]++
	}
	for _, m := range g.machineriesIn(r) {
		report.MachineryTypes[m.Type.Name] += m.TotalCount
	}
	return report
}

// Subregions builds the per-subregion summary report.
func (g *Generator) Subregions(r *region.Region) *SubregionsReport {
	report := &SubregionsReport{Region: r}
	for _, sub := range r.Subregions() {
		issues := g.engine.IssuesIn(sub)
		missions := g.engine.MissionsIn(sub)

		var successful, failed int
		for _, issue := range issues {
			switch issue.State {
			case lifecycle.StateFailed:
				failed++
			case lifecycle.StateDone, lifecycle.StateScored:
				successful++
			}
		}
		var successRate *float64
		if finished := successful + failed; finished > 0 {
			rate := float64(successful) / float64(finished)
			successRate = &rate
		}

		report.Subregions = append(report.Subregions, SubregionInfo{
			Subregion:    sub,
			MissionCount: len(missions),
			IssueCount:   len(issues),
			ScoreAverage: scoreAverage(missions),
			SuccessRate:  successRate,
			TeamCount:    len(g.teamsIn(sub)),
		})
	}
	return report
}

// scoreAverage averages non-nil scores, nil when there are none.
func scoreAverage(missions []*lifecycle.Mission) *float64 {
	var sum, n int
	for _, m := range missions {
		if m.Score != nil {
			sum += *m.Score
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := float64(sum) / float64(n)
	return &avg
}
