// Package ingest parses tabular exports (tickets, role/capacity table,
// sprint calendar) into the engine's input types. Header matching is
// case-insensitive and alias-aware, including localized column names.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/teampulse/teampulse/internal/sprint"
	"github.com/teampulse/teampulse/internal/types"
)

// Canonical column keys after alias resolution.
const (
	colID            = "id"
	colAssignee      = "assignee"
	colStatus        = "status"
	colStoryPoints   = "story_points"
	colType          = "type"
	colProject       = "project"
	colSprintClosed  = "sprint_closed"
	colSprintCreated = "sprint_created"
	colCreatedAt     = "created_at"
	colUpdatedAt     = "updated_at"
	colSubject       = "subject"
	colStartDate     = "start_date"
	colDueDate       = "due_date"
	colParent        = "parent"
	colFunction      = "function"
	colMultiplier    = "multiplier"

	colName     = "name"
	colRole     = "role"
	colCapacity = "capacity"
	colMetric   = "metric"

	colSprint  = "sprint"
	colEndDate = "end_date"
)

var ticketAliases = map[string]string{
	"id":             colID,
	"assignee":       colAssignee,
	"исполнитель":    colAssignee,
	"status":         colStatus,
	"статус":         colStatus,
	"story points":   colStoryPoints,
	"points":         colStoryPoints,
	"sp":             colStoryPoints,
	"оценка":         colStoryPoints,
	"type":           colType,
	"тип":            colType,
	"project":        colProject,
	"проект":         colProject,
	"sprint closed":  colSprintClosed,
	"sprint created": colSprintCreated,
	"created at":     colCreatedAt,
	"created":        colCreatedAt,
	"создано":        colCreatedAt,
	"updated at":     colUpdatedAt,
	"updated":        colUpdatedAt,
	"обновлено":      colUpdatedAt,
	"subject":        colSubject,
	"тема":           colSubject,
	"start date":     colStartDate,
	"начало":         colStartDate,
	"due date":       colDueDate,
	"finish date":    colDueDate,
	"end date":       colDueDate,
	"срок":           colDueDate,
	"parent":         colParent,
	"родитель":       colParent,
	"function":       colFunction,
	"функция":        colFunction,
	"multiplier":     colMultiplier,
	"коэффициент":    colMultiplier,
}

var roleAliases = map[string]string{
	"name":        colName,
	"фио":         colName,
	"имя":         colName,
	"position":    colRole,
	"role":        colRole,
	"должность":   colRole,
	"роль":        colRole,
	"formula":     colMultiplier,
	"multiplier":  colMultiplier,
	"формула":     colMultiplier,
	"коэффициент": colMultiplier,
	"capacity":    colCapacity,
	"емкость":     colCapacity,
	"metric":      colMetric,
	"метрика":     colMetric,
}

var calendarAliases = map[string]string{
	"sprint":        colSprint,
	"sprint number": colSprint,
	"спринт":        colSprint,
	"project":       colProject,
	"проект":        colProject,
	"start date":    colStartDate,
	"начало":        colStartDate,
	"end date":      colEndDate,
	"конец":         colEndDate,
}

// normalizeHeader lowercases a header and collapses separators so "Story_Points"
// and "story points" resolve to the same alias.
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, "_", " ")
	h = strings.Join(strings.Fields(h), " ")
	return h
}

// readTable reads a CSV stream into rows of canonical-key maps. Rows with
// the wrong field count are skipped with a warning instead of aborting the
// batch.
func readTable(r io.Reader, aliases map[string]string) ([]map[string]string, []string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header row: %w", err)
	}

	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = aliases[normalizeHeader(h)]
	}

	var rows []map[string]string
	var warnings []string
	line := 1
	for {
		record, err := cr.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("line %d skipped: %v", line, err))
			continue
		}
		if len(record) > len(keys) {
			warnings = append(warnings, fmt.Sprintf("line %d skipped: %d fields, header has %d", line, len(record), len(keys)))
			continue
		}

		row := make(map[string]string, len(keys))
		for i, v := range record {
			if keys[i] == "" {
				continue
			}
			row[keys[i]] = strings.TrimSpace(v)
		}
		rows = append(rows, row)
	}

	return rows, warnings, nil
}

// Records parses a ticket export into RawRecords.
func Records(r io.Reader) ([]types.RawRecord, []string, error) {
	rows, warnings, err := readTable(r, ticketAliases)
	if err != nil {
		return nil, nil, err
	}

	records := make([]types.RawRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, types.RawRecord{
			ID:            row[colID],
			Assignee:      row[colAssignee],
			Status:        row[colStatus],
			StoryPoints:   row[colStoryPoints],
			Type:          row[colType],
			Project:       row[colProject],
			SprintClosed:  row[colSprintClosed],
			SprintCreated: row[colSprintCreated],
			CreatedAt:     row[colCreatedAt],
			UpdatedAt:     row[colUpdatedAt],
			Subject:       row[colSubject],
			StartDate:     row[colStartDate],
			DueDate:       row[colDueDate],
			Parent:        row[colParent],
			Function:      row[colFunction],
			Multiplier:    row[colMultiplier],
		})
	}

	return records, warnings, nil
}

// RoleTable parses a role/capacity export.
func RoleTable(r io.Reader) ([]types.RoleCapacityEntry, []string, error) {
	rows, warnings, err := readTable(r, roleAliases)
	if err != nil {
		return nil, nil, err
	}

	entries := make([]types.RoleCapacityEntry, 0, len(rows))
	for i, row := range rows {
		name := row[colName]
		if name == "" {
			warnings = append(warnings, fmt.Sprintf("role row %d skipped: empty name", i+1))
			continue
		}

		entries = append(entries, types.RoleCapacityEntry{
			Name:           name,
			Role:           row[colRole],
			Multiplier:     parseFloat(row[colMultiplier], 1.0),
			Capacity:       parseFloat(row[colCapacity], 0),
			CapacityMetric: parseMetric(row[colMetric]),
		})
	}

	return entries, warnings, nil
}

// Calendar parses a sprint calendar export.
func Calendar(r io.Reader) ([]types.SprintCalendarEntry, []string, error) {
	rows, warnings, err := readTable(r, calendarAliases)
	if err != nil {
		return nil, nil, err
	}

	entries := make([]types.SprintCalendarEntry, 0, len(rows))
	for i, row := range rows {
		num, err := strconv.Atoi(row[colSprint])
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("calendar row %d skipped: bad sprint number %q", i+1, row[colSprint]))
			continue
		}
		start, okStart := sprint.ParseDate(row[colStartDate])
		end, okEnd := sprint.ParseDate(row[colEndDate])
		if !okStart || !okEnd {
			warnings = append(warnings, fmt.Sprintf("calendar row %d skipped: unparseable dates", i+1))
			continue
		}

		entries = append(entries, types.SprintCalendarEntry{
			SprintNumber: num,
			Project:      row[colProject],
			StartDate:    start,
			EndDate:      end,
		})
	}

	return entries, warnings, nil
}

// parseFloat accepts both dot and comma decimal separators.
func parseFloat(raw string, def float64) float64 {
	s := strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}

func parseMetric(raw string) types.CapacityMetric {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ticket", "tickets", "ticket_count":
		return types.MetricTicketCount
	case "sp", "story_points", "storypoints":
		return types.MetricStoryPoints
	default:
		return types.MetricStoryPoints
	}
}
