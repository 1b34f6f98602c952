// Package sync implements the adaptive data-freshness scheduler: partitioned
// sync passes over tracked games, upstream fetch classification, invalid-id
// quarantine, monotonic daily-peak merging, and velocity-driven re-sync
// intervals.
//
// A pass is stateless at start; everything it needs crosses the typed store
// interfaces below, so the scheduler core runs against fakes in tests and
// against Postgres in production.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultBatchLimit = 2000
	defaultBatchSize  = 100
	defaultWorkers    = 8
	defaultPageSize   = 1000

	// DefaultSkipCooldown is the quarantine window for app ids the upstream
	// reports as invalid or delisted.
	DefaultSkipCooldown = 30 * 24 * time.Hour
)

// ErrEntityInvalid is returned by a Fetcher when the upstream reports the
// app id as unknown or permanently delisted. The runner quarantines such
// entities instead of retrying them.
var ErrEntityInvalid = errors.New("entity invalid upstream")

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Candidate is a tracked game eligible for a sync pass.
type Candidate struct {
	AppID           int64
	Tier            int
	LastSyncedAt    *time.Time // nil = never synced
	TotalReviews    int64
	PositiveReviews int64
	VelocityTier    string
}

// cursor returns the keyset cursor positioned at this candidate.
// Never-synced rows sort at the epoch, matching the storage ordering.
func (c Candidate) cursor() Cursor {
	cur := Cursor{AppID: c.AppID, LastSyncedAt: time.Unix(0, 0).UTC()}
	if c.LastSyncedAt != nil {
		cur.LastSyncedAt = *c.LastSyncedAt
	}
	return cur
}

// Cursor is a keyset pagination position over (last_synced_at, app_id).
// The zero value starts from the beginning.
type Cursor struct {
	LastSyncedAt time.Time
	AppID        int64
}

// Sample is one upstream observation for a game. A CCU pass fills the CCU
// fields; a review pass fills the review fields.
type Sample struct {
	CCU    int64
	HasCCU bool

	TotalReviews    int64
	PositiveReviews int64
	HasReviews      bool
}

// Fetcher is the upstream fetch capability. Implementations return
// ErrEntityInvalid for permanently-bad ids; any other error is transient
// and the entity is retried on a later pass.
type Fetcher interface {
	Fetch(ctx context.Context, c Candidate) (Sample, error)
}

// --------------------------------------------------------------------------
// Store interfaces
// --------------------------------------------------------------------------

// CandidateSource pages through sync candidates in stable
// (last_synced_at, app_id) ascending order. An empty page means exhausted.
type CandidateSource interface {
	Page(ctx context.Context, tier int, after Cursor, pageSize int) ([]Candidate, error)
}

// TierStore persists per-game tracking state transitions.
type TierStore interface {
	MarkValid(ctx context.Context, appID int64, syncedAt time.Time) error
	MarkInvalid(ctx context.Context, appID int64, skipUntil time.Time) error
	UpdateVelocity(ctx context.Context, appID int64, tier VelocityTier, nextSyncAfter time.Time, totalReviews, positiveReviews int64) error
}

// SnapshotStore persists per-game per-day peak values.
type SnapshotStore interface {
	Peak(ctx context.Context, appID int64, day time.Time) (int64, bool, error)
	SetPeak(ctx context.Context, appID int64, day time.Time, value int64) error
}

// Ledger records pass outcomes. Implemented by the jobs package.
type Ledger interface {
	Start(ctx context.Context, jobType string, meta map[string]any) (int64, error)
	Complete(ctx context.Context, id int64, processed, succeeded, failed int, meta map[string]any) error
	Fail(ctx context.Context, id int64, errMsg string) error
}

// --------------------------------------------------------------------------
// Pass result
// --------------------------------------------------------------------------

// PassResult tracks the outcome of a single sync pass.
type PassResult struct {
	JobID            int64
	Found            int
	Processed        int
	Succeeded        int
	Invalid          int
	Failed           int
	Batches          int
	EarlyTermination bool
	VelocityTiers    map[VelocityTier]int
	Duration         time.Duration
	Errors           []string
}

// AddErrorf records a formatted error message.
func (r *PassResult) AddErrorf(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Summary returns a human-readable summary.
func (r *PassResult) Summary() string {
	return fmt.Sprintf(
		"found=%d processed=%d succeeded=%d invalid=%d failed=%d batches=%d early_term=%v dur=%s",
		r.Found, r.Processed, r.Succeeded, r.Invalid, r.Failed,
		r.Batches, r.EarlyTermination, r.Duration.Round(time.Second))
}

// DateBucket returns the UTC calendar day a timestamp falls in.
func DateBucket(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
