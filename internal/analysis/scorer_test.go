package analysis

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teampulse/teampulse/internal/config"
	"github.com/teampulse/teampulse/internal/types"
)

func noLookup(string) (types.RoleCapacityEntry, bool) {
	return types.RoleCapacityEntry{}, false
}

func TestScoreAllZScoresCenterOnZero(t *testing.T) {
	contributors := []types.ContributorMetrics{
		{Name: "A", Role: "Developer", EffectiveStoryPoints: 10, TotalClosedTickets: 5, ProjectVariety: 1, Multiplier: 1},
		{Name: "B", Role: "Developer", EffectiveStoryPoints: 20, TotalClosedTickets: 10, ProjectVariety: 2, Multiplier: 1},
		{Name: "C", Role: "Developer", EffectiveStoryPoints: 30, TotalClosedTickets: 15, ProjectVariety: 3, Multiplier: 1},
	}

	scoreAll(contributors, nil, noLookup, config.Default())

	sum := 0.0
	for _, c := range contributors {
		sum += c.ZEffectiveStoryPoints
	}
	assert.InDelta(t, 0.0, sum, 1e-9, "population z-scores sum to zero")
	assert.Less(t, contributors[0].ZEffectiveStoryPoints, contributors[2].ZEffectiveStoryPoints)
	assert.Less(t, contributors[0].PerformanceScore, contributors[2].PerformanceScore)
}

func TestScoreAllIdenticalPopulation(t *testing.T) {
	contributors := []types.ContributorMetrics{
		{Name: "A", Role: "Developer", EffectiveStoryPoints: 10, TotalClosedTickets: 5, ProjectVariety: 1},
		{Name: "B", Role: "Developer", EffectiveStoryPoints: 10, TotalClosedTickets: 5, ProjectVariety: 1},
	}

	scoreAll(contributors, nil, noLookup, config.Default())

	for _, c := range contributors {
		assert.Zero(t, c.ZEffectiveStoryPoints)
		assert.Zero(t, c.PerformanceScore)
		assert.NotContains(t, c.Flags, types.FlagTopPerformer)
		assert.NotContains(t, c.Flags, types.FlagLowPerformer)
	}
}

func TestPenaltiesFloorAtTenPercent(t *testing.T) {
	contributors := []types.ContributorMetrics{
		{Name: "A", Role: "Developer", EffectiveStoryPoints: 30, TotalClosedTickets: 10, ProjectVariety: 2, ReworkRate: 2.0, DefectRate: 2.0},
		{Name: "B", Role: "Developer", EffectiveStoryPoints: 10, TotalClosedTickets: 2, ProjectVariety: 1},
		{Name: "C", Role: "Developer", EffectiveStoryPoints: 20, TotalClosedTickets: 6, ProjectVariety: 1},
	}

	scoreAll(contributors, nil, noLookup, config.Default())

	// A's raw weighted score is positive; each penalty factor bottoms out at
	// 0.1 instead of going negative.
	raw := 0.5*contributors[0].ZEffectiveStoryPoints +
		0.3*contributors[0].ZTicketCount +
		0.2*contributors[0].ZProjectVariety
	assert.InDelta(t, raw*0.1*0.1, contributors[0].PerformanceScore, 1e-9)
}

func utilizationTickets(name string, workloads []float64) []types.Ticket {
	var tickets []types.Ticket
	for i, w := range workloads {
		t := closedTicket(fmt.Sprintf("T-%d", i), name, "Atlas", fmt.Sprintf("Sprint %d", i+1), w)
		tickets = append(tickets, t)
	}
	return tickets
}

func TestUtilizationConfiguredCapacity(t *testing.T) {
	c := types.ContributorMetrics{Name: "Alice", Role: "Developer"}
	tickets := utilizationTickets("Alice", []float64{20, 20, 20, 20, 20})
	lookup := func(string) (types.RoleCapacityEntry, bool) {
		return types.RoleCapacityEntry{Name: "Alice", Capacity: 20}, true
	}

	scoreUtilization(&c, tickets, lookup, config.Default())

	assert.Equal(t, 20.0, c.Capacity)
	assert.InDelta(t, 1.0, c.UtilizationIndex, 1e-9)
	assert.Equal(t, types.MetricStoryPoints, c.CapacityMetric)
}

func TestUtilizationHistoricalCapacityLadder(t *testing.T) {
	th := config.Default()

	t.Run("p95 with five or more sprints", func(t *testing.T) {
		c := types.ContributorMetrics{Name: "Alice"}
		scoreUtilization(&c, utilizationTickets("Alice", []float64{10, 12, 14, 16, 18}), noLookup, th)

		require.Greater(t, c.Capacity, 0.0)
		assert.InDelta(t, percentile([]float64{10, 12, 14, 16, 18}, 95), c.Capacity, 1e-9)
		assert.InDelta(t, 14.0/c.Capacity, c.UtilizationIndex, 1e-9)
	})

	t.Run("max with three or four sprints", func(t *testing.T) {
		c := types.ContributorMetrics{Name: "Alice"}
		scoreUtilization(&c, utilizationTickets("Alice", []float64{10, 12, 20}), noLookup, th)

		assert.Equal(t, 20.0, c.Capacity)
		assert.InDelta(t, 14.0/20.0, c.UtilizationIndex, 1e-9)
	})

	t.Run("scaled average with one or two sprints", func(t *testing.T) {
		c := types.ContributorMetrics{Name: "Alice"}
		scoreUtilization(&c, utilizationTickets("Alice", []float64{10}), noLookup, th)

		assert.InDelta(t, 13.0, c.Capacity, 1e-9)
		assert.InDelta(t, 10.0/13.0, c.UtilizationIndex, 1e-9)
	})

	t.Run("no sprint history", func(t *testing.T) {
		c := types.ContributorMetrics{Name: "Alice"}
		scoreUtilization(&c, nil, noLookup, th)

		assert.Zero(t, c.UtilizationIndex)
	})
}

func TestUtilizationClampedToCap(t *testing.T) {
	c := types.ContributorMetrics{Name: "Alice"}
	lookup := func(string) (types.RoleCapacityEntry, bool) {
		return types.RoleCapacityEntry{Name: "Alice", Capacity: 1}, true
	}

	scoreUtilization(&c, utilizationTickets("Alice", []float64{10, 10, 10}), lookup, config.Default())

	assert.Equal(t, 2.0, c.UtilizationIndex, "utilization clamps at the configured cap")
}

func TestUtilizationTicketCountMetric(t *testing.T) {
	c := types.ContributorMetrics{Name: "Alice"}
	lookup := func(string) (types.RoleCapacityEntry, bool) {
		return types.RoleCapacityEntry{Name: "Alice", Capacity: 4, CapacityMetric: types.MetricTicketCount}, true
	}

	tickets := []types.Ticket{
		closedTicket("T-1", "Alice", "Atlas", "Sprint 1", 5),
		closedTicket("T-2", "Alice", "Atlas", "Sprint 1", 50),
	}
	scoreUtilization(&c, tickets, lookup, config.Default())

	assert.Equal(t, types.MetricTicketCount, c.CapacityMetric)
	// Two tickets in one sprint against capacity 4, points ignored.
	assert.InDelta(t, 0.5, c.UtilizationIndex, 1e-9)
}

func TestPerformanceFlagsAreRoleRelative(t *testing.T) {
	contributors := []types.ContributorMetrics{
		{Name: "Dev1", Role: "Developer", EffectiveStoryPoints: 10, TotalClosedTickets: 5, ProjectVariety: 1},
		{Name: "Dev2", Role: "Developer", EffectiveStoryPoints: 10, TotalClosedTickets: 5, ProjectVariety: 1},
		{Name: "Dev3", Role: "Developer", EffectiveStoryPoints: 10, TotalClosedTickets: 5, ProjectVariety: 1},
		{Name: "Dev4", Role: "Developer", EffectiveStoryPoints: 10, TotalClosedTickets: 5, ProjectVariety: 1},
		{Name: "Star", Role: "Developer", EffectiveStoryPoints: 100, TotalClosedTickets: 40, ProjectVariety: 5},
	}

	scoreAll(contributors, nil, noLookup, config.Default())

	star := contributors[4]
	assert.Contains(t, star.Flags, types.FlagTopPerformer)
	for _, c := range contributors[:4] {
		assert.NotContains(t, c.Flags, types.FlagTopPerformer)
	}
}

func TestQualityAndLoadFlags(t *testing.T) {
	th := config.Default()

	t.Run("high rates", func(t *testing.T) {
		c := types.ContributorMetrics{TotalClosedTickets: 10, DefectRate: 0.4, ReworkRate: 0.35}
		flagQualityAndLoad(&c, th)
		assert.Contains(t, c.Flags, types.FlagHighDefectRate)
		assert.Contains(t, c.Flags, types.FlagHighReworkRate)
	})

	t.Run("no closed tickets means no rate flags", func(t *testing.T) {
		c := types.ContributorMetrics{DefectRate: 0.9, ReworkRate: 0.9}
		flagQualityAndLoad(&c, th)
		assert.Empty(t, c.Flags)
	})

	t.Run("underutilized band is exclusive of zero", func(t *testing.T) {
		c := types.ContributorMetrics{UtilizationIndex: 0.5}
		flagQualityAndLoad(&c, th)
		assert.Contains(t, c.Flags, types.FlagUnderutilized)

		idle := types.ContributorMetrics{UtilizationIndex: 0}
		flagQualityAndLoad(&idle, th)
		assert.NotContains(t, idle.Flags, types.FlagUnderutilized)
	})

	t.Run("overloaded above 1.0", func(t *testing.T) {
		c := types.ContributorMetrics{UtilizationIndex: 1.1}
		flagQualityAndLoad(&c, th)
		assert.Contains(t, c.Flags, types.FlagOverloaded)
	})

	t.Run("near capacity with risk rates", func(t *testing.T) {
		c := types.ContributorMetrics{TotalClosedTickets: 10, UtilizationIndex: 0.95, DefectRate: 0.25}
		flagQualityAndLoad(&c, th)
		assert.Contains(t, c.Flags, types.FlagOverloaded)
	})

	t.Run("near capacity without risk is not overloaded", func(t *testing.T) {
		c := types.ContributorMetrics{TotalClosedTickets: 10, UtilizationIndex: 0.95}
		flagQualityAndLoad(&c, th)
		assert.NotContains(t, c.Flags, types.FlagOverloaded)
	})
}
