package analysis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teampulse/teampulse/internal/types"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func engineInput() Input {
	records := []types.RawRecord{
		{ID: "T-1", Assignee: "Alice", Status: "Closed", StoryPoints: "5", Type: "Task", Project: "Atlas", CreatedAt: "2024-01-02", UpdatedAt: "2024-01-10", Subject: "Build ingest pipeline"},
		{ID: "T-2", Assignee: "Alice", Status: "Closed", StoryPoints: "3", Type: "Bug", Project: "Atlas", CreatedAt: "2024-01-16", UpdatedAt: "2024-01-20", Subject: "Fix pagination bug"},
		{ID: "T-3", Assignee: "Bob", Status: "Closed", StoryPoints: "8", Type: "Task", Project: "Atlas", CreatedAt: "2024-01-03", UpdatedAt: "2024-01-12", Subject: "Schema migration"},
		{ID: "T-4", Assignee: "Bob", Status: "In Progress", StoryPoints: "5", Type: "Task", Project: "Atlas", CreatedAt: "2024-01-17", Subject: "Retry logic"},
		{ID: "T-5", Assignee: "Carol", Status: "Closed", StoryPoints: "2", Type: "Improvement", Project: "Hermes", CreatedAt: "2024-01-04", UpdatedAt: "2024-01-09", Subject: "Tune cache TTLs"},
		{ID: "F-1", Status: "Open", Type: "Feature", Project: "Atlas", Subject: "Reporting revamp", CreatedAt: "2024-01-01"},
	}

	roleTable := []types.RoleCapacityEntry{
		{Name: "Alice", Role: "Developer", Multiplier: 1.2, Capacity: 10},
		{Name: "Bob", Role: "Developer", Multiplier: 1.0},
		{Name: "Carol", Role: "QA", Multiplier: 1.0},
	}

	calendar := []types.SprintCalendarEntry{
		{SprintNumber: 1, Project: "Atlas", StartDate: date(2024, 1, 1), EndDate: date(2024, 1, 14)},
		{SprintNumber: 2, Project: "Atlas", StartDate: date(2024, 1, 16), EndDate: date(2024, 1, 29)},
	}

	return Input{Records: records, Roles: roleTable, Calendar: calendar}
}

func TestEngineRunEndToEnd(t *testing.T) {
	eng := New(Config{DateDrivenProjects: []string{"Atlas"}})
	res, err := eng.Run(context.Background(), engineInput())
	require.NoError(t, err)

	require.Len(t, res.Contributors, 3)
	assert.Equal(t, "Alice", res.Contributors[0].Name, "contributors sorted by name")
	assert.Equal(t, "Bob", res.Contributors[1].Name)
	assert.Equal(t, "Carol", res.Contributors[2].Name)
	assert.Equal(t, 6, res.TicketCount)
	assert.Zero(t, res.DroppedRecords)

	alice := res.Contributors[0]
	assert.Equal(t, "Developer", alice.Role)
	assert.Equal(t, 1.2, alice.Multiplier)
	assert.Equal(t, 2, alice.TotalClosedTickets)
	assert.Equal(t, 8.0, alice.TotalClosedStoryPoints)
	assert.Equal(t, 2, alice.SprintsParticipated)
	assert.InDelta(t, 0.5, alice.DefectRate, 1e-9)
	assert.Greater(t, alice.UtilizationIndex, 0.0)

	require.Len(t, res.Functions, 2)
	assert.Equal(t, "Developer", res.Functions[0].Role)
	assert.Equal(t, 2, res.Functions[0].Headcount)
	assert.Equal(t, "QA", res.Functions[1].Role)

	assert.NotEmpty(t, res.Alerts)
}

func TestEngineRunLabelPassThroughIgnoresCalendar(t *testing.T) {
	// Without the date-driven opt-in the record's own sprint label is
	// authoritative, and these records carry none.
	res, err := New(Config{}).Run(context.Background(), engineInput())
	require.NoError(t, err)

	require.Len(t, res.Contributors, 3)
	for _, c := range res.Contributors {
		assert.Zero(t, c.SprintsParticipated, "%s must have no sprints without date-driven resolution", c.Name)
	}
}

func TestEngineRunDeterministic(t *testing.T) {
	eng := New(Config{Workers: 4})

	first, err := eng.Run(context.Background(), engineInput())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := eng.Run(context.Background(), engineInput())
		require.NoError(t, err)
		assert.Equal(t, first, again, "identical inputs must produce identical outputs")
	}
}

func TestEngineRunStrictModeDropsUnknownAssignees(t *testing.T) {
	in := engineInput()
	in.Records = append(in.Records, types.RawRecord{
		ID: "T-9", Assignee: "Mallory", Status: "Closed", StoryPoints: "3",
		Type: "Task", Project: "Atlas", CreatedAt: "2024-01-05", UpdatedAt: "2024-01-08",
		Subject: "Ghost work",
	})

	eng := New(Config{Strict: true})
	res, err := eng.Run(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 1, res.DroppedRecords)
	for _, c := range res.Contributors {
		assert.NotEqual(t, "Mallory", c.Name)
	}
}

func TestEngineRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := engineInput()
	// Enough contributors that at least one worker observes the cancelled
	// context before the group drains.
	for i := 0; i < 64; i++ {
		in.Records = append(in.Records, types.RawRecord{
			ID: fmt.Sprintf("X-%d", i), Assignee: fmt.Sprintf("Person %d", i),
			Status: "Closed", StoryPoints: "1", Type: "Task", Project: "Atlas",
			CreatedAt: "2024-01-05", UpdatedAt: "2024-01-08", Subject: "Filler",
		})
	}

	_, err := New(Config{Workers: 1}).Run(ctx, in)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngineRunEmptyInput(t *testing.T) {
	res, err := New(Config{}).Run(context.Background(), Input{})
	require.NoError(t, err)

	assert.Empty(t, res.Contributors)
	assert.Empty(t, res.Functions)
	assert.Empty(t, res.Alerts)
	assert.Zero(t, res.TicketCount)
}
