package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/shelfwatch/shelfwatch/pkg/inventory"
)

// Run statuses.
const (
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Operations recorded on runs and used as metric labels.
const (
	OpIngest   = "ingest"
	OpRotate   = "rotate"
	OpBackfill = "backfill"
)

// Run is the audit record of one ingestion call.
type Run struct {
	ID           string     `db:"id" json:"id"`
	Operation    string     `db:"operation" json:"operation"`
	Date         string     `db:"snapshot_date" json:"date"`
	Status       string     `db:"status" json:"status"`
	Received     int        `db:"received" json:"received"`
	Inserted     int        `db:"inserted" json:"inserted"`
	Skipped      int        `db:"skipped" json:"skipped"`
	Duplicates   int        `db:"duplicates" json:"duplicates"`
	Dropped      int        `db:"dropped" json:"dropped"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	StartedAt    time.Time  `db:"started_at" json:"started_at"`
	FinishedAt   *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

// RunStore persists ingestion runs. Runs are written outside the ingestion
// transaction so failed runs stay visible.
type RunStore struct {
	db *sqlx.DB
}

// NewRunStore creates a RunStore over db.
func NewRunStore(db *sqlx.DB) *RunStore {
	return &RunStore{db: db}
}

// Start records a run as RUNNING.
func (s *RunStore) Start(ctx context.Context, operation string, report *inventory.IngestionReport) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO ingestion_runs (id, operation, snapshot_date, status, received, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		report.RunID, operation, report.Date, StatusRunning, report.Received, report.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// Finish stores the final counters and status of a run.
func (s *RunStore) Finish(ctx context.Context, report *inventory.IngestionReport, runErr error) error {
	status := StatusCompleted
	var errMsg *string
	if runErr != nil {
		status = StatusFailed
		msg := runErr.Error()
		errMsg = &msg
	}

	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE ingestion_runs
		 SET status = ?, received = ?, inserted = ?, skipped = ?, duplicates = ?, dropped = ?,
		     error_message = ?, finished_at = ?
		 WHERE id = ?`),
		status, report.Received, report.Inserted, report.Skipped, report.Duplicates, report.Dropped,
		errMsg, time.Now().UTC(), report.RunID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", report.RunID, err)
	}
	return nil
}

// List returns the most recent runs, newest first.
func (s *RunStore) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	runs := []Run{}
	err := s.db.SelectContext(ctx, &runs, s.db.Rebind(
		`SELECT id, operation, snapshot_date, status, received, inserted, skipped, duplicates, dropped,
		        error_message, started_at, finished_at
		 FROM ingestion_runs
		 ORDER BY started_at DESC, id
		 LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}
