package types

import (
	"strings"
	"time"
)

// RawRecord is one row as exported from the project-management tool.
// All fields are kept as text; normalization happens downstream and the
// record itself is never mutated.
type RawRecord struct {
	ID            string `json:"id,omitempty"`
	Assignee      string `json:"assignee"`
	Status        string `json:"status"`
	StoryPoints   string `json:"story_points"`
	Type          string `json:"type"`
	Project       string `json:"project"`
	SprintClosed  string `json:"sprint_closed,omitempty"`
	SprintCreated string `json:"sprint_created,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at,omitempty"`
	Subject       string `json:"subject"`
	StartDate     string `json:"start_date,omitempty"`
	DueDate       string `json:"due_date,omitempty"`
	Parent        string `json:"parent,omitempty"`
	Function      string `json:"function,omitempty"`
	Multiplier    string `json:"multiplier,omitempty"`
}

// TicketType is the closed work-item taxonomy.
type TicketType string

const (
	TypeFeature     TicketType = "Feature"
	TypeBug         TicketType = "Bug"
	TypeRegression  TicketType = "Regression"
	TypeImprovement TicketType = "Improvement"
	TypeRelease     TicketType = "Release"
	TypeTask        TicketType = "Task"
	TypeOther       TicketType = "Other"
)

// Ticket is the canonical, normalized work item. Immutable once created.
//
// Invariant: a Feature ticket never has a ParentID, and a non-empty ParentID
// always refers to a Feature ticket.
type Ticket struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Assignee       string     `json:"assignee"`
	Role           string     `json:"role"`
	Status         string     `json:"status"`
	StoryPoints    float64    `json:"story_points"`
	RawType        string     `json:"raw_type"`
	NormalizedType TicketType `json:"normalized_type"`
	Project        string     `json:"project"`
	SprintLabel    string     `json:"sprint_label"`
	SprintCreated  string     `json:"sprint_created"`
	CreatedAt      time.Time  `json:"created_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	IsDefect       bool       `json:"is_defect"`
	IsRework       bool       `json:"is_rework"`
	CycleDays      *int       `json:"cycle_days,omitempty"`
	ParentID       string     `json:"parent_id,omitempty"`
	Multiplier     float64    `json:"multiplier"`
}

// IsClosed reports whether the ticket reached a terminal status.
func (t Ticket) IsClosed() bool {
	return IsClosedStatus(t.Status)
}

var closedStatuses = map[string]bool{
	"closed":   true,
	"done":     true,
	"resolved": true,
	"released": true,
}

// IsClosedStatus reports whether a raw status string counts as closed.
func IsClosedStatus(status string) bool {
	return closedStatuses[strings.ToLower(strings.TrimSpace(status))]
}

// CapacityMetric selects the workload basis used for a contributor's
// capacity and utilization computations.
type CapacityMetric string

const (
	MetricStoryPoints CapacityMetric = "story_points"
	MetricTicketCount CapacityMetric = "ticket_count"
)

// RoleCapacityEntry is the source of truth for a contributor's role,
// seniority multiplier and optional per-sprint capacity. Loaded once per
// computation cycle and read-only during aggregation.
type RoleCapacityEntry struct {
	Name           string         `json:"name"`
	Role           string         `json:"role"`
	Multiplier     float64        `json:"multiplier"`
	Capacity       float64        `json:"capacity,omitempty"`
	CapacityMetric CapacityMetric `json:"capacity_metric,omitempty"`
}

// SprintCalendarEntry is one configured sprint period for a project.
type SprintCalendarEntry struct {
	SprintNumber int       `json:"sprint_number"`
	Project      string    `json:"project"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
}

// Contributor flag values assigned by the statistical scorer. Flags are
// evaluated independently and are not mutually exclusive.
const (
	FlagTopPerformer   = "top_performer"
	FlagLowPerformer   = "low_performer"
	FlagHighDefectRate = "high_defect_rate"
	FlagHighReworkRate = "high_rework_rate"
	FlagUnderutilized  = "underutilized"
	FlagOverloaded     = "overloaded"
)

// ContributorMetrics is the per-assignee rollup. Recomputed fully on every
// engine invocation, never incrementally patched.
type ContributorMetrics struct {
	Name                   string             `json:"name"`
	Role                   string             `json:"role"`
	Multiplier             float64            `json:"multiplier"`
	TotalClosedTickets     int                `json:"total_closed_tickets"`
	TotalClosedStoryPoints float64            `json:"total_closed_story_points"`
	DefectRate             float64            `json:"defect_rate"`
	ReworkRate             float64            `json:"rework_rate"`
	AvgCycleTimeDays       float64            `json:"avg_cycle_time_days"`
	SprintsParticipated    int                `json:"sprints_participated"`
	VelocityPerSprint      float64            `json:"velocity_per_sprint"`
	ProjectVariety         int                `json:"project_variety"`
	EffectiveStoryPoints   float64            `json:"effective_story_points"`
	ActiveWeeks            int                `json:"active_weeks"`
	FeatureContributions   map[string]float64 `json:"feature_contributions,omitempty"`

	ZEffectiveStoryPoints float64 `json:"z_effective_story_points"`
	ZTicketCount          float64 `json:"z_ticket_count"`
	ZProjectVariety       float64 `json:"z_project_variety"`
	PerformanceScore      float64 `json:"performance_score"`

	CapacityMetric   CapacityMetric `json:"capacity_metric"`
	Capacity         float64        `json:"capacity"`
	UtilizationIndex float64        `json:"utilization_index"`

	Flags []string `json:"flags,omitempty"`
}

// FunctionMetrics is the per-role rollup.
type FunctionMetrics struct {
	Role                string  `json:"role"`
	Headcount           int     `json:"headcount"`
	TotalStoryPoints    float64 `json:"total_story_points"`
	AvgStoryPoints      float64 `json:"avg_story_points"`
	StdDevStoryPoints   float64 `json:"std_dev_story_points"`
	DefectRate          float64 `json:"defect_rate"`
	ReworkRate          float64 `json:"rework_rate"`
	AvgUtilizationIndex float64 `json:"avg_utilization_index"`
}

// AlertCategory scopes an alert to a project, a function or the whole org.
type AlertCategory string

const (
	AlertCategoryProject       AlertCategory = "project"
	AlertCategoryFunction      AlertCategory = "function"
	AlertCategoryCrossFunction AlertCategory = "cross-function"
)

// Alert is one ranked, human-readable finding derived from aggregated
// metrics.
type Alert struct {
	Kind           string        `json:"kind"`
	Category       AlertCategory `json:"category"`
	Message        string        `json:"message"`
	Recommendation string        `json:"recommendation,omitempty"`
	Value          *float64      `json:"value,omitempty"`
	Subjects       []string      `json:"subjects,omitempty"`
}
