package database

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisRun is one persisted engine invocation. The full Result is kept
// as a JSON blob; the scalar columns exist for listing without unmarshal.
type AnalysisRun struct {
	ID               string    `json:"id" db:"id"`
	Source           string    `json:"source" db:"source"`
	RecordCount      int       `json:"record_count" db:"record_count"`
	TicketCount      int       `json:"ticket_count" db:"ticket_count"`
	ContributorCount int       `json:"contributor_count" db:"contributor_count"`
	AlertCount       int       `json:"alert_count" db:"alert_count"`
	DroppedRecords   int       `json:"dropped_records" db:"dropped_records"`
	DurationMs       int64     `json:"duration_ms" db:"duration_ms"`
	Result           []byte    `json:"result,omitempty" db:"result"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// Run sources.
const (
	SourceJSON = "json"
	SourceCSV  = "csv"
)

// NewAnalysisRun creates a run record with a generated id.
func NewAnalysisRun(source string, result []byte) *AnalysisRun {
	return &AnalysisRun{
		ID:        uuid.New().String(),
		Source:    source,
		Result:    result,
		CreatedAt: time.Now().UTC(),
	}
}
