// Package sprint assigns tickets to canonical sprint labels and owns the
// defensive date arithmetic shared with the record normalizer.
package sprint

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/teampulse/teampulse/internal/types"
)

const (
	// Unassigned labels records that fall before the first known sprint.
	Unassigned = "unassigned"

	// CycleDays is the assumed sprint length when no calendar overrides it.
	CycleDays = 14

	maxCyclesPerYear = 26
	toleranceDays    = 1
)

// ParseDate parses a raw date string defensively. The literal year, month
// and day components must round-trip through the constructed date; an
// overflow value like "2024-02-43" is rejected instead of silently becoming
// a March date. The time-of-day portion, if any, is discarded.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	// Keep only the date part of "2006-01-02 15:04:05" / RFC 3339 values.
	if i := strings.IndexAny(s, " T"); i > 0 {
		s = s[:i]
	}

	if parts := strings.Split(s, "-"); len(parts) == 3 {
		return buildDate(parts[0], parts[1], parts[2])
	}
	// Dotted day-first exports.
	if parts := strings.Split(s, "."); len(parts) == 3 {
		return buildDate(parts[2], parts[1], parts[0])
	}

	return time.Time{}, false
}

func buildDate(ys, ms, ds string) (time.Time, bool) {
	y, err1 := strconv.Atoi(strings.TrimSpace(ys))
	m, err2 := strconv.Atoi(strings.TrimSpace(ms))
	d, err3 := strconv.Atoi(strings.TrimSpace(ds))
	if err1 != nil || err2 != nil || err3 != nil || y < 1000 {
		return time.Time{}, false
	}

	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

// ParseDatePtr is ParseDate with a nil result for missing or invalid input.
func ParseDatePtr(raw string) *time.Time {
	t, ok := ParseDate(raw)
	if !ok {
		return nil
	}
	return &t
}

// EffectiveStart is the later of the created date and the explicit start
// date.
func EffectiveStart(created, start *time.Time) *time.Time {
	switch {
	case created == nil:
		return start
	case start == nil:
		return created
	case start.After(*created):
		return start
	default:
		return created
	}
}

// EffectiveClose is the completion reference for a record. For closed-status
// records it is the earlier of the due date and the updated timestamp; for
// open records only the due date counts, since an updated timestamp on an
// open ticket is not a completion signal.
func EffectiveClose(status string, due, updated *time.Time) *time.Time {
	if !types.IsClosedStatus(status) {
		return due
	}
	switch {
	case due == nil:
		return updated
	case updated == nil:
		return due
	case updated.Before(*due):
		return updated
	default:
		return due
	}
}

// Resolver assigns records to sprint labels using a configured calendar
// with a one-day tolerance window, or fixed fourteen-day cycles when no
// calendar exists for a date-driven project.
type Resolver struct {
	calendars  map[string][]types.SprintCalendarEntry
	dateDriven map[string]bool
}

// NewResolver builds a resolver from the sprint calendar and the list of
// projects whose sprints are derived from dates rather than record labels.
func NewResolver(calendar []types.SprintCalendarEntry, dateDrivenProjects []string) *Resolver {
	r := &Resolver{
		calendars:  make(map[string][]types.SprintCalendarEntry),
		dateDriven: make(map[string]bool),
	}

	for _, e := range calendar {
		key := projectKey(e.Project)
		r.calendars[key] = append(r.calendars[key], e)
	}
	for key, entries := range r.calendars {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].SprintNumber < entries[j].SprintNumber
		})
		r.calendars[key] = entries
	}

	for _, p := range dateDrivenProjects {
		r.dateDriven[projectKey(p)] = true
	}

	return r
}

func projectKey(project string) string {
	return strings.ToLower(strings.TrimSpace(project))
}

// DateDriven reports whether sprints for the project are resolved from
// dates instead of the labels carried on records.
func (r *Resolver) DateDriven(project string) bool {
	return r.dateDriven[projectKey(project)]
}

// SprintClosed resolves the sprint a record was completed in. The reference
// date priority is closed date, else due date, else effective start.
func (r *Resolver) SprintClosed(rec types.RawRecord) string {
	if !r.DateDriven(rec.Project) {
		return strings.TrimSpace(rec.SprintClosed)
	}

	created := ParseDatePtr(rec.CreatedAt)
	start := ParseDatePtr(rec.StartDate)
	due := ParseDatePtr(rec.DueDate)
	updated := ParseDatePtr(rec.UpdatedAt)

	ref := EffectiveClose(rec.Status, due, updated)
	if ref == nil {
		ref = due
	}
	if ref == nil {
		ref = EffectiveStart(created, start)
	}
	if ref == nil {
		return Unassigned
	}

	return r.assign(rec.Project, *ref)
}

// SprintCreated resolves the sprint a record was started in, using only the
// effective start date.
func (r *Resolver) SprintCreated(rec types.RawRecord) string {
	if !r.DateDriven(rec.Project) {
		return strings.TrimSpace(rec.SprintCreated)
	}

	ref := EffectiveStart(ParseDatePtr(rec.CreatedAt), ParseDatePtr(rec.StartDate))
	if ref == nil {
		return Unassigned
	}

	return r.assign(rec.Project, *ref)
}

// assign maps a reference date to a sprint label. A date after the last
// calendar entry pins to that entry, treating future or backlog work as part
// of the final known sprint. A date before the first entry is unassigned.
func (r *Resolver) assign(project string, ref time.Time) string {
	entries := r.calendars[projectKey(project)]
	if len(entries) == 0 {
		return cycleLabel(ref)
	}

	for _, e := range entries {
		end := e.EndDate.AddDate(0, 0, toleranceDays)
		if !ref.Before(e.StartDate) && !ref.After(end) {
			return sprintLabel(e.SprintNumber)
		}
	}

	last := entries[len(entries)-1]
	if ref.After(last.EndDate) {
		return sprintLabel(last.SprintNumber)
	}

	return Unassigned
}

func sprintLabel(n int) string {
	return fmt.Sprintf("Sprint %d", n)
}

// cycleLabel divides the calendar year into consecutive fourteen-day
// windows from January 1 and labels by window index, capped at 26 per year.
func cycleLabel(ref time.Time) string {
	idx := (ref.YearDay()-1)/CycleDays + 1
	if idx > maxCyclesPerYear {
		idx = maxCyclesPerYear
	}
	return fmt.Sprintf("%d-S%02d", ref.Year(), idx)
}
