package jobs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGLedger is the Postgres-backed ledger. It satisfies the Ledger
// interfaces declared by the sync and alerts packages.
type PGLedger struct {
	Pool *pgxpool.Pool
}

// NewPGLedger wraps a connection pool.
func NewPGLedger(pool *pgxpool.Pool) *PGLedger {
	return &PGLedger{Pool: pool}
}

// Start inserts a running job row and returns its id.
func (l *PGLedger) Start(ctx context.Context, jobType string, meta map[string]any) (int64, error) {
	var id int64
	if err := l.Pool.QueryRow(ctx, "job_start", jobType, meta).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert job: %w", err)
	}
	return id, nil
}

// Complete marks a running job completed with its item counts. Counts
// reflect only work actually finished; a gracefully truncated pass is
// still completed, with the early-termination flag in metadata.
func (l *PGLedger) Complete(ctx context.Context, id int64, processed, succeeded, failed int, meta map[string]any) error {
	tag, err := l.Pool.Exec(ctx, "job_complete", id, processed, succeeded, failed, meta)
	if err != nil {
		return fmt.Errorf("complete job %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %d is not running", id)
	}
	return nil
}

// Fail marks a running job failed with an error message.
func (l *PGLedger) Fail(ctx context.Context, id int64, errMsg string) error {
	tag, err := l.Pool.Exec(ctx, "job_fail", id, errMsg)
	if err != nil {
		return fmt.Errorf("fail job %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %d is not running", id)
	}
	return nil
}

// Recent returns the newest ledger rows for the ops API.
func (l *PGLedger) Recent(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.Pool.Query(ctx, `
		SELECT id, job_type, status, started_at, completed_at,
		       items_processed, items_succeeded, items_failed,
		       error_message, metadata
		FROM sync_jobs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(
			&j.ID, &j.JobType, &j.Status, &j.StartedAt, &j.CompletedAt,
			&j.ItemsProcessed, &j.ItemsSucceeded, &j.ItemsFailed,
			&j.ErrorMessage, &j.Metadata,
		); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
