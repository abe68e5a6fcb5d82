package analysis

import (
	"github.com/teampulse/teampulse/internal/config"
	"github.com/teampulse/teampulse/internal/types"
)

// penaltyFloor keeps quality penalties from zeroing out a performance score
// entirely.
const penaltyFloor = 0.1

// capacityLookup resolves a contributor's configured capacity entry, if
// any.
type capacityLookup func(name string) (types.RoleCapacityEntry, bool)

// scoreAll fills the statistical fields of every contributor: population
// z-scores, the weighted penalty-adjusted performance score, the
// capacity-based utilization index and the categorical flags. It must see
// the complete population; the mean, stddev and percentile computations are
// not meaningful on partial sets.
func scoreAll(contributors []types.ContributorMetrics, ticketsByName map[string][]types.Ticket, lookup capacityLookup, th config.Thresholds) {
	if len(contributors) == 0 {
		return
	}

	effSP := make([]float64, len(contributors))
	counts := make([]float64, len(contributors))
	variety := make([]float64, len(contributors))
	for i, c := range contributors {
		effSP[i] = c.EffectiveStoryPoints
		counts[i] = float64(c.TotalClosedTickets)
		variety[i] = float64(c.ProjectVariety)
	}

	effMean, effSD := mean(effSP), stdDev(effSP)
	cntMean, cntSD := mean(counts), stdDev(counts)
	varMean, varSD := mean(variety), stdDev(variety)

	for i := range contributors {
		c := &contributors[i]

		c.ZEffectiveStoryPoints = zScore(effSP[i], effMean, effSD)
		c.ZTicketCount = zScore(counts[i], cntMean, cntSD)
		c.ZProjectVariety = zScore(variety[i], varMean, varSD)

		score := th.WeightEffectiveStoryPoints*c.ZEffectiveStoryPoints +
			th.WeightTicketCount*c.ZTicketCount +
			th.WeightProjectVariety*c.ZProjectVariety
		reworkFactor := max(penaltyFloor, 1-c.ReworkRate*th.ReworkPenaltyWeight)
		defectFactor := max(penaltyFloor, 1-c.DefectRate*th.DefectPenaltyWeight)
		c.PerformanceScore = sanitize(score * reworkFactor * defectFactor)

		scoreUtilization(c, ticketsByName[c.Name], lookup, th)
	}

	flagPerformanceOutliers(contributors, th)

	for i := range contributors {
		flagQualityAndLoad(&contributors[i], th)
	}
}

// scoreUtilization computes the capacity-based utilization index for one
// contributor.
func scoreUtilization(c *types.ContributorMetrics, tickets []types.Ticket, lookup capacityLookup, th config.Thresholds) {
	metric := types.MetricStoryPoints
	configured := 0.0
	if entry, ok := lookup(c.Name); ok {
		if entry.CapacityMetric != "" {
			metric = entry.CapacityMetric
		}
		configured = entry.Capacity
	}
	c.CapacityMetric = metric

	workloads := sprintWorkloads(tickets, metric)
	if len(workloads) == 0 {
		c.UtilizationIndex = 0
		return
	}
	avg := mean(workloads)

	capacity := configured
	if capacity <= 0 {
		capacity = historicalCapacity(workloads, avg)
	}
	c.Capacity = capacity

	if capacity <= 0 {
		c.UtilizationIndex = 0
		return
	}
	c.UtilizationIndex = clamp(sanitize(avg/capacity), 0, th.UtilizationCap)
}

// historicalCapacity estimates a contributor's demonstrated peak from
// per-sprint workload history. Outliers are trimmed via IQR first so one
// anomalous sprint does not set the baseline. The estimate is never below
// the average workload itself.
func historicalCapacity(workloads []float64, avg float64) float64 {
	history := iqrFilter(workloads)

	var capacity float64
	switch {
	case len(history) >= 5:
		capacity = percentile(history, 95)
	case len(history) >= 3:
		capacity = history[0]
		for _, v := range history[1:] {
			if v > capacity {
				capacity = v
			}
		}
	default:
		capacity = avg * 1.3
	}

	if capacity < avg {
		capacity = avg
	}
	return capacity
}

// flagPerformanceOutliers assigns top/low performer flags from the
// role-relative z-score of the performance score.
func flagPerformanceOutliers(contributors []types.ContributorMetrics, th config.Thresholds) {
	byRole := make(map[string][]float64)
	for _, c := range contributors {
		byRole[c.Role] = append(byRole[c.Role], c.PerformanceScore)
	}

	roleMean := make(map[string]float64, len(byRole))
	roleSD := make(map[string]float64, len(byRole))
	for role, scores := range byRole {
		roleMean[role] = mean(scores)
		roleSD[role] = stdDev(scores)
	}

	for i := range contributors {
		c := &contributors[i]
		z := zScore(c.PerformanceScore, roleMean[c.Role], roleSD[c.Role])
		if z >= th.TopPerformerZ {
			c.Flags = append(c.Flags, types.FlagTopPerformer)
		}
		if z <= th.LowPerformerZ {
			c.Flags = append(c.Flags, types.FlagLowPerformer)
		}
	}
}

// flagQualityAndLoad assigns the rate and utilization flags. Flags are
// evaluated independently and may stack.
func flagQualityAndLoad(c *types.ContributorMetrics, th config.Thresholds) {
	if c.TotalClosedTickets > 0 {
		if c.DefectRate > th.HighDefectRate {
			c.Flags = append(c.Flags, types.FlagHighDefectRate)
		}
		if c.ReworkRate > th.HighReworkRate {
			c.Flags = append(c.Flags, types.FlagHighReworkRate)
		}
	}

	u := c.UtilizationIndex
	if u > 0 && u < th.UnderutilizedBelow {
		c.Flags = append(c.Flags, types.FlagUnderutilized)
	}

	overloaded := u > th.OverloadedAbove ||
		(u > th.OverloadedNearWithRisk && (c.DefectRate > th.RiskDefectRate || c.ReworkRate > th.RiskReworkRate))
	if overloaded {
		c.Flags = append(c.Flags, types.FlagOverloaded)
	}
}
