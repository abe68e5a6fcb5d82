package analysis

import (
	"fmt"
	"sort"

	"github.com/teampulse/teampulse/internal/config"
	"github.com/teampulse/teampulse/internal/types"
)

// Alert kinds, ordered by presentation severity. Risk findings sort before
// neutral and positive ones.
const (
	AlertQualityConcern    = "quality_concern"
	AlertOverutilized      = "overutilized"
	AlertWorkloadImbalance = "workload_imbalance"
	AlertUnderutilized     = "underutilized"
	AlertOptimal           = "optimal"
	AlertAchievement       = "achievement"
)

var severityRank = map[string]int{
	AlertQualityConcern:    0,
	AlertOverutilized:      1,
	AlertWorkloadImbalance: 2,
	AlertUnderutilized:     3,
	AlertOptimal:           4,
	AlertAchievement:       5,
}

// generateAlerts scans function-level metrics against thresholds and emits
// ranked findings. Per-function checks are independent; a role can carry a
// quality concern and an overutilization finding at once.
func generateAlerts(contributors []types.ContributorMetrics, functions []types.FunctionMetrics, th config.Thresholds) []types.Alert {
	var alerts []types.Alert

	topByRole := make(map[string][]string)
	for _, c := range contributors {
		for _, f := range c.Flags {
			if f == types.FlagTopPerformer {
				topByRole[c.Role] = append(topByRole[c.Role], c.Name)
			}
		}
	}

	for _, fm := range functions {
		alerts = append(alerts, functionAlerts(fm, topByRole[fm.Role], th)...)
	}

	if imbalance, ok := crossFunctionImbalance(functions, th); ok {
		alerts = append(alerts, imbalance)
	}

	sort.Slice(alerts, func(i, j int) bool {
		ri, rj := severityRank[alerts[i].Kind], severityRank[alerts[j].Kind]
		if ri != rj {
			return ri < rj
		}
		return alerts[i].Message < alerts[j].Message
	})
	return alerts
}

func functionAlerts(fm types.FunctionMetrics, topPerformers []string, th config.Thresholds) []types.Alert {
	var alerts []types.Alert
	healthyRates := true

	if fm.DefectRate > th.HighDefectRate {
		v := fm.DefectRate
		healthyRates = false
		alerts = append(alerts, types.Alert{
			Kind:           AlertQualityConcern,
			Category:       types.AlertCategoryFunction,
			Message:        fmt.Sprintf("%s: defect rate %.0f%% exceeds the %.0f%% threshold", fm.Role, v*100, th.HighDefectRate*100),
			Recommendation: "Review testing practices and defect root causes for this function",
			Value:          &v,
			Subjects:       []string{fm.Role},
		})
	}
	if fm.ReworkRate > th.HighReworkRate {
		v := fm.ReworkRate
		healthyRates = false
		alerts = append(alerts, types.Alert{
			Kind:           AlertQualityConcern,
			Category:       types.AlertCategoryFunction,
			Message:        fmt.Sprintf("%s: rework rate %.0f%% exceeds the %.0f%% threshold", fm.Role, v*100, th.HighReworkRate*100),
			Recommendation: "Clarify acceptance criteria before work starts to reduce rework",
			Value:          &v,
			Subjects:       []string{fm.Role},
		})
	}

	u := fm.AvgUtilizationIndex
	switch {
	case u > th.OverloadedAbove:
		v := u
		alerts = append(alerts, types.Alert{
			Kind:           AlertOverutilized,
			Category:       types.AlertCategoryFunction,
			Message:        fmt.Sprintf("%s: average utilization %.0f%% is above capacity", fm.Role, v*100),
			Recommendation: "Redistribute workload or grow the function before quality degrades",
			Value:          &v,
			Subjects:       []string{fm.Role},
		})
	case u > 0 && u < th.UnderutilizedBelow:
		v := u
		alerts = append(alerts, types.Alert{
			Kind:           AlertUnderutilized,
			Category:       types.AlertCategoryFunction,
			Message:        fmt.Sprintf("%s: average utilization %.0f%% is below the %.0f%% band", fm.Role, v*100, th.UnderutilizedBelow*100),
			Recommendation: "Check for blocked work or spare capacity that could absorb backlog",
			Value:          &v,
			Subjects:       []string{fm.Role},
		})
	case u > 0 && healthyRates:
		v := u
		alerts = append(alerts, types.Alert{
			Kind:     AlertOptimal,
			Category: types.AlertCategoryFunction,
			Message:  fmt.Sprintf("%s: utilization %.0f%% with healthy quality rates", fm.Role, v*100),
			Value:    &v,
			Subjects: []string{fm.Role},
		})
	}

	if len(topPerformers) > 0 {
		sort.Strings(topPerformers)
		alerts = append(alerts, types.Alert{
			Kind:     AlertAchievement,
			Category: types.AlertCategoryFunction,
			Message:  fmt.Sprintf("%s: %d top performer(s) this period", fm.Role, len(topPerformers)),
			Subjects: topPerformers,
		})
	}

	return alerts
}

// crossFunctionImbalance flags a utilization gap between the highest- and
// lowest-utilized roles. Only roles with at least two members participate;
// single-member functions are too noisy to compare.
func crossFunctionImbalance(functions []types.FunctionMetrics, th config.Thresholds) (types.Alert, bool) {
	var hi, lo *types.FunctionMetrics
	for i := range functions {
		fm := &functions[i]
		if fm.Headcount < 2 {
			continue
		}
		if hi == nil || fm.AvgUtilizationIndex > hi.AvgUtilizationIndex {
			hi = fm
		}
		if lo == nil || fm.AvgUtilizationIndex < lo.AvgUtilizationIndex {
			lo = fm
		}
	}
	if hi == nil || lo == nil || hi.Role == lo.Role {
		return types.Alert{}, false
	}

	gap := hi.AvgUtilizationIndex - lo.AvgUtilizationIndex
	if gap <= th.ImbalanceGap {
		return types.Alert{}, false
	}

	return types.Alert{
		Kind:           AlertWorkloadImbalance,
		Category:       types.AlertCategoryCrossFunction,
		Message:        fmt.Sprintf("utilization gap of %.0f points between %s and %s", gap*100, hi.Role, lo.Role),
		Recommendation: "Rebalance staffing or scope between the two functions",
		Value:          &gap,
		Subjects:       []string{hi.Role, lo.Role},
	}, true
}
