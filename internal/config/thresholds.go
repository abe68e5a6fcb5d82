package config

import (
	"os"
	"strconv"
)

// Thresholds holds every configurable scalar used by the scoring and alert
// formulas. Callers may supply a partial struct; Normalized fills any unset
// (zero) field with its documented default so no formula ever falls back to
// an ad hoc literal.
type Thresholds struct {
	// Z-score cutoffs for the role-relative performance flags.
	TopPerformerZ float64 `json:"top_performer_z"`
	LowPerformerZ float64 `json:"low_performer_z"`

	// Quality rate thresholds.
	HighDefectRate float64 `json:"high_defect_rate"`
	HighReworkRate float64 `json:"high_rework_rate"`

	// Weights of the composite performance score.
	WeightEffectiveStoryPoints float64 `json:"weight_effective_story_points"`
	WeightTicketCount          float64 `json:"weight_ticket_count"`
	WeightProjectVariety       float64 `json:"weight_project_variety"`

	// Penalty factors applied to the weighted score. Penalties floor at 0.1
	// so quality issues never zero out a score entirely.
	ReworkPenaltyWeight float64 `json:"rework_penalty_weight"`
	DefectPenaltyWeight float64 `json:"defect_penalty_weight"`

	// Utilization bands.
	UnderutilizedBelow float64 `json:"underutilized_below"`
	OverloadedAbove    float64 `json:"overloaded_above"`
	// A contributor above this utilization is overloaded when combined with
	// elevated defect or rework rates.
	OverloadedNearWithRisk float64 `json:"overloaded_near_with_risk"`
	RiskDefectRate         float64 `json:"risk_defect_rate"`
	RiskReworkRate         float64 `json:"risk_rework_rate"`
	UtilizationCap         float64 `json:"utilization_cap"`

	// Cross-function utilization gap (fraction, not percent) that triggers a
	// workload-imbalance alert.
	ImbalanceGap float64 `json:"imbalance_gap"`
}

// Default returns the documented default thresholds.
func Default() Thresholds {
	return Thresholds{
		TopPerformerZ:              1.5,
		LowPerformerZ:              -1.5,
		HighDefectRate:             0.3,
		HighReworkRate:             0.3,
		WeightEffectiveStoryPoints: 0.5,
		WeightTicketCount:          0.3,
		WeightProjectVariety:       0.2,
		ReworkPenaltyWeight:        1.0,
		DefectPenaltyWeight:        1.0,
		UnderutilizedBelow:         0.7,
		OverloadedAbove:            1.0,
		OverloadedNearWithRisk:     0.9,
		RiskDefectRate:             0.2,
		RiskReworkRate:             0.3,
		UtilizationCap:             2.0,
		ImbalanceGap:               0.4,
	}
}

// Normalized returns a copy of t with every unset field replaced by its
// default. A zero value means "not configured"; formulas that legitimately
// need zero (none today) would need a sentinel instead.
func (t Thresholds) Normalized() Thresholds {
	def := Default()
	fill := func(v *float64, d float64) {
		if *v == 0 {
			*v = d
		}
	}
	fill(&t.TopPerformerZ, def.TopPerformerZ)
	fill(&t.LowPerformerZ, def.LowPerformerZ)
	fill(&t.HighDefectRate, def.HighDefectRate)
	fill(&t.HighReworkRate, def.HighReworkRate)
	fill(&t.WeightEffectiveStoryPoints, def.WeightEffectiveStoryPoints)
	fill(&t.WeightTicketCount, def.WeightTicketCount)
	fill(&t.WeightProjectVariety, def.WeightProjectVariety)
	fill(&t.ReworkPenaltyWeight, def.ReworkPenaltyWeight)
	fill(&t.DefectPenaltyWeight, def.DefectPenaltyWeight)
	fill(&t.UnderutilizedBelow, def.UnderutilizedBelow)
	fill(&t.OverloadedAbove, def.OverloadedAbove)
	fill(&t.OverloadedNearWithRisk, def.OverloadedNearWithRisk)
	fill(&t.RiskDefectRate, def.RiskDefectRate)
	fill(&t.RiskReworkRate, def.RiskReworkRate)
	fill(&t.UtilizationCap, def.UtilizationCap)
	fill(&t.ImbalanceGap, def.ImbalanceGap)
	return t
}

// FromEnv returns the default thresholds with any THRESHOLD_* environment
// overrides applied. Unparseable values are ignored.
func FromEnv() Thresholds {
	t := Default()
	override := func(v *float64, key string) {
		raw := os.Getenv(key)
		if raw == "" {
			return
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			*v = f
		}
	}
	override(&t.TopPerformerZ, "THRESHOLD_TOP_PERFORMER_Z")
	override(&t.LowPerformerZ, "THRESHOLD_LOW_PERFORMER_Z")
	override(&t.HighDefectRate, "THRESHOLD_HIGH_DEFECT_RATE")
	override(&t.HighReworkRate, "THRESHOLD_HIGH_REWORK_RATE")
	override(&t.UnderutilizedBelow, "THRESHOLD_UNDERUTILIZED_BELOW")
	override(&t.OverloadedAbove, "THRESHOLD_OVERLOADED_ABOVE")
	override(&t.ImbalanceGap, "THRESHOLD_IMBALANCE_GAP")
	return t
}
