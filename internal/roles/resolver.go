// Package roles resolves a contributor's functional role and seniority
// multiplier through an ordered fallback chain: role/capacity table, inline
// record hint, subject-line marker, hard default.
package roles

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/teampulse/teampulse/internal/types"
)

const (
	// DefaultRole labels contributors no resolver could place.
	DefaultRole = "Developer"

	// FeatureRole is the fixed role of Feature-typed records. Features are
	// aggregation containers, not individual delivery, so they skip
	// contributor validation entirely.
	FeatureRole = "Feature"

	defaultMultiplier = 1.0
)

// ErrUnresolved is returned in strict mode when the contributor has no
// exact role-capacity table match. The caller drops the record and counts
// it.
var ErrUnresolved = errors.New("contributor has no role-capacity entry")

// Resolution is the outcome of the fallback chain for one record.
type Resolution struct {
	Role           string
	Multiplier     float64
	Capacity       float64
	CapacityMetric types.CapacityMetric
	Source         string
}

// subjectMarker matches titles of the form "[PROJ-123] QA - fix login".
var subjectMarker = regexp.MustCompile(`^\[[^\]]*\]\s*([A-Za-z]{2,6})\s*-\s*`)

// markerRoles is the fixed set of bracket-delimited role markers recognized
// in free-text subjects.
var markerRoles = map[string]string{
	"DEV": "Developer",
	"QA":  "QA Engineer",
	"BA":  "Business Analyst",
	"SA":  "System Analyst",
	"PM":  "Project Manager",
	"UX":  "Designer",
	"OPS": "DevOps Engineer",
}

type resolverFunc func(rec types.RawRecord) (Resolution, bool)

// Resolver runs the priority chain against a loaded role/capacity table.
type Resolver struct {
	table  map[string]types.RoleCapacityEntry
	chain  []resolverFunc
	strict bool
}

// NewResolver indexes the role/capacity table by case-insensitive name.
// In strict mode only the table resolver participates; any miss is an
// ErrUnresolved instead of a labeling default.
func NewResolver(entries []types.RoleCapacityEntry, strict bool) *Resolver {
	r := &Resolver{
		table:  make(map[string]types.RoleCapacityEntry, len(entries)),
		strict: strict,
	}
	for _, e := range entries {
		key := nameKey(e.Name)
		if key == "" {
			continue
		}
		r.table[key] = e
	}

	r.chain = []resolverFunc{r.fromTable}
	if !strict {
		r.chain = append(r.chain, r.fromHint, r.fromSubject)
	}

	return r
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Lookup returns the raw table entry for a contributor name, if configured.
func (r *Resolver) Lookup(name string) (types.RoleCapacityEntry, bool) {
	e, ok := r.table[nameKey(name)]
	return e, ok
}

// Resolve runs the chain for one record; the first resolver that produces a
// result wins. isFeature records bypass the chain and receive the fixed
// container role. A non-nil warning marks an unconfigured contributor that
// fell through to the default.
func (r *Resolver) Resolve(rec types.RawRecord, isFeature bool) (Resolution, string, error) {
	if isFeature {
		return Resolution{Role: FeatureRole, Multiplier: defaultMultiplier, CapacityMetric: types.MetricStoryPoints, Source: "feature"}, "", nil
	}

	for _, resolve := range r.chain {
		if res, ok := resolve(rec); ok {
			return res, "", nil
		}
	}

	if r.strict {
		return Resolution{}, "", fmt.Errorf("%w: %q", ErrUnresolved, rec.Assignee)
	}

	warning := fmt.Sprintf("no role configured for contributor %q, defaulting to %s", rec.Assignee, DefaultRole)
	return Resolution{Role: DefaultRole, Multiplier: defaultMultiplier, CapacityMetric: types.MetricStoryPoints, Source: "default"}, warning, nil
}

// fromTable matches the assignee name against the role/capacity table.
func (r *Resolver) fromTable(rec types.RawRecord) (Resolution, bool) {
	e, ok := r.table[nameKey(rec.Assignee)]
	if !ok {
		return Resolution{}, false
	}

	mult := e.Multiplier
	if mult <= 0 {
		mult = defaultMultiplier
	}
	metric := e.CapacityMetric
	if metric == "" {
		metric = types.MetricStoryPoints
	}

	return Resolution{
		Role:           e.Role,
		Multiplier:     mult,
		Capacity:       e.Capacity,
		CapacityMetric: metric,
		Source:         "table",
	}, true
}

// fromHint uses the explicit role hint carried on the record. The
// multiplier comes from the hint field when parseable, else 1.0.
func (r *Resolver) fromHint(rec types.RawRecord) (Resolution, bool) {
	role := strings.TrimSpace(rec.Function)
	if role == "" {
		return Resolution{}, false
	}

	mult := defaultMultiplier
	if raw := strings.TrimSpace(rec.Multiplier); raw != "" {
		if f, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64); err == nil && f > 0 {
			mult = f
		}
	}

	return Resolution{Role: role, Multiplier: mult, CapacityMetric: types.MetricStoryPoints, Source: "hint"}, true
}

// fromSubject extracts a bracket-delimited role marker from the free-text
// subject.
func (r *Resolver) fromSubject(rec types.RawRecord) (Resolution, bool) {
	m := subjectMarker.FindStringSubmatch(rec.Subject)
	if m == nil {
		return Resolution{}, false
	}

	role, ok := markerRoles[strings.ToUpper(m[1])]
	if !ok {
		return Resolution{}, false
	}

	return Resolution{Role: role, Multiplier: defaultMultiplier, CapacityMetric: types.MetricStoryPoints, Source: "subject"}, true
}
