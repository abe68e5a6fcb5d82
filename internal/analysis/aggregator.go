package analysis

import (
	"sort"

	"github.com/teampulse/teampulse/internal/sprint"
	"github.com/teampulse/teampulse/internal/types"
)

// reworkPenalty is the half-weight applied per rework occurrence-rate when
// computing effective story points.
const reworkPenalty = 0.5

// groupByAssignee returns delivery tickets (everything except Feature
// containers) keyed by assignee, each group sorted by ticket id for
// deterministic downstream iteration.
func groupByAssignee(tickets []types.Ticket) map[string][]types.Ticket {
	grouped := make(map[string][]types.Ticket)
	for _, t := range tickets {
		if t.NormalizedType == types.TypeFeature || t.Assignee == "" {
			continue
		}
		grouped[t.Assignee] = append(grouped[t.Assignee], t)
	}
	for name, group := range grouped {
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
		grouped[name] = group
	}
	return grouped
}

// featureTitles maps Feature ticket ids to their titles. Duplicate Feature
// records sharing a title intentionally collapse onto that title.
func featureTitles(tickets []types.Ticket) map[string]string {
	titles := make(map[string]string)
	for _, t := range tickets {
		if t.NormalizedType == types.TypeFeature {
			titles[t.ID] = t.Title
		}
	}
	return titles
}

// aggregateContributor computes the full per-contributor rollup from an
// already filtered ticket set. Scoring fields are filled in later by the
// statistical scorer, which needs the whole population.
func aggregateContributor(name string, tickets []types.Ticket, features map[string]string) types.ContributorMetrics {
	m := types.ContributorMetrics{Name: name, Multiplier: 1}

	if len(tickets) > 0 {
		m.Role = tickets[0].Role
		m.Multiplier = tickets[0].Multiplier
	}

	sprints := make(map[string]bool)
	projects := make(map[string]bool)
	weeks := make(map[[2]int]bool)
	contributions := make(map[string]float64)

	defects, reworks := 0, 0
	cycleSum, cycleCount := 0.0, 0

	for _, t := range tickets {
		projects[t.Project] = true

		if t.CycleDays != nil {
			cycleSum += float64(*t.CycleDays)
			cycleCount++
		}

		if !t.IsClosed() {
			continue
		}

		m.TotalClosedTickets++
		m.TotalClosedStoryPoints += t.StoryPoints
		if t.IsDefect {
			defects++
		}
		if t.IsRework {
			reworks++
		}
		if t.SprintLabel != "" && t.SprintLabel != sprint.Unassigned {
			sprints[t.SprintLabel] = true
		}
		if !t.CreatedAt.IsZero() {
			y, w := t.CreatedAt.ISOWeek()
			weeks[[2]int{y, w}] = true
		}
		if t.ParentID != "" {
			if title, ok := features[t.ParentID]; ok {
				contributions[title] += t.StoryPoints
			}
		}
	}

	closed := float64(m.TotalClosedTickets)
	m.DefectRate = safeRatio(float64(defects), closed)
	m.ReworkRate = safeRatio(float64(reworks), closed)
	m.AvgCycleTimeDays = safeRatio(cycleSum, float64(cycleCount))
	m.SprintsParticipated = len(sprints)
	m.VelocityPerSprint = safeRatio(m.TotalClosedStoryPoints, float64(m.SprintsParticipated))
	m.ProjectVariety = len(projects)
	m.ActiveWeeks = len(weeks)
	m.EffectiveStoryPoints = m.TotalClosedStoryPoints * (1 - m.ReworkRate*reworkPenalty) * m.Multiplier
	if len(contributions) > 0 {
		m.FeatureContributions = contributions
	}

	return m
}

// sprintWorkloads groups a contributor's closed tickets by sprint label and
// computes the per-sprint workload under the given capacity basis. Only
// positive workloads participate in the utilization model.
func sprintWorkloads(tickets []types.Ticket, metric types.CapacityMetric) []float64 {
	bySprint := make(map[string]float64)
	for _, t := range tickets {
		if !t.IsClosed() || t.SprintLabel == "" || t.SprintLabel == sprint.Unassigned {
			continue
		}
		switch metric {
		case types.MetricTicketCount:
			bySprint[t.SprintLabel]++
		default:
			bySprint[t.SprintLabel] += t.StoryPoints
		}
	}

	labels := make([]string, 0, len(bySprint))
	for label := range bySprint {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	workloads := make([]float64, 0, len(labels))
	for _, label := range labels {
		if bySprint[label] > 0 {
			workloads = append(workloads, bySprint[label])
		}
	}
	return workloads
}
