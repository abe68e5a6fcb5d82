package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrRunNotFound is returned when a run id has no row.
var ErrRunNotFound = errors.New("analysis run not found")

// Repository handles run-history persistence.
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SaveRun persists a completed run.
func (r *Repository) SaveRun(ctx context.Context, run *AnalysisRun) error {
	stmt, err := r.db.GetPreparedStatement("insert_run")
	if err != nil {
		return err
	}

	_, err = stmt.ExecContext(ctx,
		run.ID, run.Source, run.RecordCount, run.TicketCount, run.ContributorCount,
		run.AlertCount, run.DroppedRecords, run.DurationMs, run.Result, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save analysis run: %w", err)
	}
	return nil
}

// GetRun loads one run including its full result blob.
func (r *Repository) GetRun(ctx context.Context, id string) (*AnalysisRun, error) {
	stmt, err := r.db.GetPreparedStatement("get_run")
	if err != nil {
		return nil, err
	}

	var run AnalysisRun
	err = stmt.QueryRowContext(ctx, id).Scan(
		&run.ID, &run.Source, &run.RecordCount, &run.TicketCount, &run.ContributorCount,
		&run.AlertCount, &run.DroppedRecords, &run.DurationMs, &run.Result, &run.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis run: %w", err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first, without the result
// blobs.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]AnalysisRun, error) {
	if limit <= 0 {
		limit = 20
	}

	stmt, err := r.db.GetPreparedStatement("list_runs")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis runs: %w", err)
	}
	defer rows.Close()

	var runs []AnalysisRun
	for rows.Next() {
		var run AnalysisRun
		if err := rows.Scan(
			&run.ID, &run.Source, &run.RecordCount, &run.TicketCount, &run.ContributorCount,
			&run.AlertCount, &run.DroppedRecords, &run.DurationMs, &run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan analysis run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
