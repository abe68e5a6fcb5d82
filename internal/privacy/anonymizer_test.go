package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teampulse/teampulse/internal/types"
)

func TestPseudonymDeterministic(t *testing.T) {
	a := NewAnonymizer("salt")

	first := a.Pseudonym("Alice")
	second := a.Pseudonym("Alice")

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, a.Pseudonym("Bob"))
	assert.Contains(t, first, "contributor-")
	assert.NotContains(t, first, "Alice")
}

func TestPseudonymSaltChangesOutput(t *testing.T) {
	assert.NotEqual(t,
		NewAnonymizer("one").Pseudonym("Alice"),
		NewAnonymizer("two").Pseudonym("Alice"),
	)
}

func TestPseudonymPreservesEmpty(t *testing.T) {
	a := NewAnonymizer("salt")

	assert.Equal(t, "", a.Pseudonym(""))
	assert.Equal(t, "   ", a.Pseudonym("   "))
}

func TestAnonymizeRecordsAndRolesStayConsistent(t *testing.T) {
	a := NewAnonymizer("salt")

	records := a.AnonymizeRecords([]types.RawRecord{
		{ID: "T-1", Assignee: "Alice", Subject: "Build ingest pipeline"},
		{ID: "T-2", Assignee: "Alice"},
		{ID: "T-3"},
	})
	roles := a.AnonymizeRoles([]types.RoleCapacityEntry{
		{Name: "Alice", Role: "Developer", Multiplier: 1.2},
	})

	assert.Equal(t, records[0].Assignee, records[1].Assignee)
	assert.Equal(t, records[0].Assignee, roles[0].Name, "role lookups must survive anonymization")
	assert.Empty(t, records[2].Assignee)

	// Everything except the name is untouched.
	assert.Equal(t, "Build ingest pipeline", records[0].Subject)
	assert.Equal(t, "Developer", roles[0].Role)
	assert.Equal(t, 1.2, roles[0].Multiplier)
}
