// Package privacy anonymizes contributor identities before analysis.
// Pseudonyms are deterministic for a given salt, so anonymized runs stay
// reproducible and cacheable while the response carries no real names.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/teampulse/teampulse/internal/types"
)

// Anonymizer maps real contributor names onto stable pseudonyms.
type Anonymizer struct {
	salt string
}

func NewAnonymizer(salt string) *Anonymizer {
	return &Anonymizer{salt: salt}
}

// Pseudonym returns the stable pseudonym for a name. Empty names pass
// through untouched; unassigned records must stay unassigned.
func (a *Anonymizer) Pseudonym(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return name
	}

	sum := sha256.Sum256([]byte(a.salt + ":" + trimmed))
	return "contributor-" + hex.EncodeToString(sum[:])[:12]
}

// AnonymizeRecords returns a copy of the records with assignee names
// replaced by pseudonyms. All other fields are left as is.
func (a *Anonymizer) AnonymizeRecords(records []types.RawRecord) []types.RawRecord {
	out := make([]types.RawRecord, len(records))
	for i, rec := range records {
		rec.Assignee = a.Pseudonym(rec.Assignee)
		out[i] = rec
	}
	return out
}

// AnonymizeRoles returns a copy of the role table keyed by pseudonyms, so
// role and capacity lookups still match the anonymized records.
func (a *Anonymizer) AnonymizeRoles(entries []types.RoleCapacityEntry) []types.RoleCapacityEntry {
	out := make([]types.RoleCapacityEntry, len(entries))
	for i, entry := range entries {
		entry.Name = a.Pseudonym(entry.Name)
		out[i] = entry
	}
	return out
}
