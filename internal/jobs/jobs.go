// Package jobs records sync and detection pass outcomes in the sync_jobs
// ledger. A job row is created at pass start, transitions exactly once to
// completed or failed, and is immutable afterwards. External dashboards
// read the ledger for operational visibility.
package jobs

import (
	"time"
)

// Job statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Job types.
const (
	TypeCCUSync    = "ccu_sync"
	TypeReviewSync = "review_sync"
	TypeDetection  = "alert_detection"
)

// Job is one ledger row.
type Job struct {
	ID             int64          `json:"id"`
	JobType        string         `json:"job_type"`
	Status         string         `json:"status"`
	StartedAt      time.Time      `json:"started_at"`
	CompletedAt    *time.Time     `json:"completed_at"`
	ItemsProcessed int            `json:"items_processed"`
	ItemsSucceeded int            `json:"items_succeeded"`
	ItemsFailed    int            `json:"items_failed"`
	ErrorMessage   *string        `json:"error_message,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}
