package analysis

import (
	"sort"

	"github.com/teampulse/teampulse/internal/types"
)

// aggregateFunctions rolls contributor metrics up by role. Defect and
// rework rates are weighted by each member's closed-ticket count so a
// one-ticket contributor does not skew the function average.
func aggregateFunctions(contributors []types.ContributorMetrics) []types.FunctionMetrics {
	byRole := make(map[string][]types.ContributorMetrics)
	for _, c := range contributors {
		byRole[c.Role] = append(byRole[c.Role], c)
	}

	functions := make([]types.FunctionMetrics, 0, len(byRole))
	for role, members := range byRole {
		fm := types.FunctionMetrics{Role: role, Headcount: len(members)}

		points := make([]float64, len(members))
		utilization := make([]float64, len(members))
		defects, reworks, closed := 0.0, 0.0, 0.0
		for i, m := range members {
			points[i] = m.TotalClosedStoryPoints
			utilization[i] = m.UtilizationIndex
			fm.TotalStoryPoints += m.TotalClosedStoryPoints
			n := float64(m.TotalClosedTickets)
			closed += n
			defects += m.DefectRate * n
			reworks += m.ReworkRate * n
		}

		fm.AvgStoryPoints = mean(points)
		fm.StdDevStoryPoints = stdDev(points)
		fm.DefectRate = safeRatio(defects, closed)
		fm.ReworkRate = safeRatio(reworks, closed)
		fm.AvgUtilizationIndex = mean(utilization)

		functions = append(functions, fm)
	}

	sort.Slice(functions, func(i, j int) bool { return functions[i].Role < functions[j].Role })
	return functions
}
