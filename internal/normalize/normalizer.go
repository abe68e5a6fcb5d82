// Package normalize converts raw exported records into canonical Tickets:
// story-point parsing, type taxonomy, defect/rework heuristics, cycle-time
// estimation and feature parenting.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teampulse/teampulse/internal/roles"
	"github.com/teampulse/teampulse/internal/sprint"
	"github.com/teampulse/teampulse/internal/types"
)

const (
	minCycleDays = 1
	maxCycleDays = 180
)

// Normalizer turns RawRecords into Tickets using the sprint and role
// resolvers.
type Normalizer struct {
	sprints *sprint.Resolver
	roles   *roles.Resolver
}

// New creates a Normalizer.
func New(sprints *sprint.Resolver, roleResolver *roles.Resolver) *Normalizer {
	return &Normalizer{sprints: sprints, roles: roleResolver}
}

// Result is the outcome of a normalization batch. Malformed or strict-mode
// records are skipped with warnings and counted, never aborting the batch.
type Result struct {
	Tickets  []types.Ticket
	Warnings []string
	Dropped  int
}

// NormalizeAll processes a batch of records. After individual conversion a
// linking pass clears any parent reference that does not point at a Feature
// ticket, preserving the Ticket parent invariant.
func (n *Normalizer) NormalizeAll(records []types.RawRecord) Result {
	var res Result

	for i, rec := range records {
		ticket, warnings, err := n.normalizeOne(rec)
		res.Warnings = append(res.Warnings, warnings...)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("record %d skipped: %v", i, err))
			res.Dropped++
			continue
		}
		res.Tickets = append(res.Tickets, ticket)
	}

	featureIDs := make(map[string]bool)
	for _, t := range res.Tickets {
		if t.NormalizedType == types.TypeFeature {
			featureIDs[t.ID] = true
		}
	}
	for i := range res.Tickets {
		t := &res.Tickets[i]
		if t.ParentID != "" && !featureIDs[t.ParentID] {
			res.Warnings = append(res.Warnings, fmt.Sprintf("ticket %q references parent %q which is not a Feature, link cleared", t.ID, t.ParentID))
			t.ParentID = ""
		}
	}

	return res
}

func (n *Normalizer) normalizeOne(rec types.RawRecord) (types.Ticket, []string, error) {
	title := strings.TrimSpace(rec.Subject)
	assignee := strings.TrimSpace(rec.Assignee)
	normalizedType := NormalizeType(rec.Type)
	isFeature := normalizedType == types.TypeFeature

	if !isFeature && assignee == "" && title == "" {
		return types.Ticket{}, nil, fmt.Errorf("no assignee and no subject")
	}

	resolution, warning, err := n.roles.Resolve(rec, isFeature)
	if err != nil {
		return types.Ticket{}, nil, err
	}
	var warnings []string
	if warning != "" {
		warnings = append(warnings, warning)
	}

	created := sprint.ParseDatePtr(rec.CreatedAt)
	start := sprint.ParseDatePtr(rec.StartDate)
	due := sprint.ParseDatePtr(rec.DueDate)
	updated := sprint.ParseDatePtr(rec.UpdatedAt)

	effStart := sprint.EffectiveStart(created, start)
	var closedAt *time.Time
	if types.IsClosedStatus(rec.Status) {
		closedAt = sprint.EffectiveClose(rec.Status, due, updated)
	}

	sprintClosed := n.sprints.SprintClosed(rec)
	sprintCreated := n.sprints.SprintCreated(rec)

	id := strings.TrimSpace(rec.ID)
	if id == "" {
		id = uuid.NewString()
	}
	parentID := ""
	if !isFeature {
		parentID = strings.TrimSpace(rec.Parent)
	}

	var createdAt time.Time
	if created != nil {
		createdAt = *created
	}

	rawType := strings.TrimSpace(rec.Type)

	return types.Ticket{
		ID:             id,
		Title:          title,
		Assignee:       assignee,
		Role:           resolution.Role,
		Status:         strings.TrimSpace(rec.Status),
		StoryPoints:    ParsePoints(rec.StoryPoints),
		RawType:        rawType,
		NormalizedType: normalizedType,
		Project:        strings.TrimSpace(rec.Project),
		SprintLabel:    sprintClosed,
		SprintCreated:  sprintCreated,
		CreatedAt:      createdAt,
		ClosedAt:       closedAt,
		IsDefect:       isDefect(normalizedType, rawType),
		IsRework:       isRework(title),
		CycleDays:      CycleTime(effStart, created, closedAt, sprintCreated, sprintClosed),
		ParentID:       parentID,
		Multiplier:     resolution.Multiplier,
	}, warnings, nil
}

// ParsePoints parses story points as an integer; non-numeric, missing or
// negative values become 0.
func ParsePoints(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return float64(n)
}

var typeVocabulary = map[string]types.TicketType{
	"feature":     types.TypeFeature,
	"epic":        types.TypeFeature,
	"bug":         types.TypeBug,
	"defect":      types.TypeBug,
	"regression":  types.TypeRegression,
	"improvement": types.TypeImprovement,
	"enhancement": types.TypeImprovement,
	"release":     types.TypeRelease,
	"task":        types.TypeTask,
}

// NormalizeType maps a raw work-item type onto the closed taxonomy.
// Anything containing "bug" becomes Bug; "Epic" folds into Feature;
// unmatched values become Other.
func NormalizeType(raw string) types.TicketType {
	key := strings.ToLower(strings.TrimSpace(raw))
	if t, ok := typeVocabulary[key]; ok {
		return t
	}
	if strings.Contains(key, "bug") {
		return types.TypeBug
	}
	return types.TypeOther
}

func isDefect(normalized types.TicketType, rawType string) bool {
	return normalized == types.TypeBug || strings.Contains(strings.ToLower(rawType), "bug")
}

func isRework(title string) bool {
	return strings.Contains(strings.ToLower(title), "revise")
}

var trailingNumber = regexp.MustCompile(`(\d+)\s*$`)

// CycleTime computes the ticket cycle time as the minimum of three
// independent candidate estimates, each valid only within [1,180] days:
// effective start to close, created to close, and the sprint-label span at
// fourteen days per sprint. The shortest estimate is treated as most
// representative since longer spans usually reflect idle or blocked time.
// With a close date but no surviving candidate the cycle defaults to one
// day; without a close date it is nil.
func CycleTime(start, created, close *time.Time, sprintCreated, sprintClosed string) *int {
	if close == nil {
		return nil
	}

	candidates := []int{}
	if start != nil {
		candidates = append(candidates, daysBetween(*start, *close))
	}
	if created != nil {
		candidates = append(candidates, daysBetween(*created, *close))
	}
	if span, ok := sprintSpanDays(sprintCreated, sprintClosed); ok {
		candidates = append(candidates, span)
	}

	best := 0
	found := false
	for _, c := range candidates {
		if c < minCycleDays || c > maxCycleDays {
			continue
		}
		if !found || c < best {
			best = c
			found = true
		}
	}
	if !found {
		best = minCycleDays
	}
	return &best
}

func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// sprintSpanDays derives a duration from the numeric suffixes of the
// sprint-created and sprint-closed labels: an inclusive sprint count times
// fourteen days.
func sprintSpanDays(createdLabel, closedLabel string) (int, bool) {
	c1, ok1 := trailingInt(createdLabel)
	c2, ok2 := trailingInt(closedLabel)
	if !ok1 || !ok2 || c2 < c1 {
		return 0, false
	}
	return (c2 - c1 + 1) * sprint.CycleDays, true
}

func trailingInt(label string) (int, bool) {
	m := trailingNumber.FindStringSubmatch(strings.TrimSpace(label))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
