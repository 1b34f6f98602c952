package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the Postgres implementation of CandidateSource, TierStore,
// and SnapshotStore, backed by the prepared statements registered in
// internal/db.
type PGStore struct {
	Pool *pgxpool.Pool
}

// NewPGStore wraps a connection pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{Pool: pool}
}

// Page returns one keyset page of eligible candidates for a tier.
// Rows under quarantine or not yet due by their adaptive interval are
// filtered by the statement itself.
func (s *PGStore) Page(ctx context.Context, tier int, after Cursor, pageSize int) ([]Candidate, error) {
	rows, err := s.Pool.Query(ctx, "sync_candidates_page", tier, after.LastSyncedAt, after.AppID, pageSize)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		var velocityTier *string
		if err := rows.Scan(
			&c.AppID, &c.Tier, &c.LastSyncedAt,
			&c.TotalReviews, &c.PositiveReviews, &velocityTier,
		); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		if velocityTier != nil {
			c.VelocityTier = *velocityTier
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkValid clears any skip window and records the sync time.
func (s *PGStore) MarkValid(ctx context.Context, appID int64, syncedAt time.Time) error {
	_, err := s.Pool.Exec(ctx, "tracking_mark_valid", appID, syncedAt)
	return err
}

// MarkInvalid quarantines the app id until skipUntil.
func (s *PGStore) MarkInvalid(ctx context.Context, appID int64, skipUntil time.Time) error {
	_, err := s.Pool.Exec(ctx, "tracking_mark_invalid", appID, skipUntil)
	return err
}

// UpdateVelocity persists the adaptive re-sync deadline and review counters.
func (s *PGStore) UpdateVelocity(ctx context.Context, appID int64, tier VelocityTier, nextSyncAfter time.Time, totalReviews, positiveReviews int64) error {
	_, err := s.Pool.Exec(ctx, "tracking_update_velocity",
		appID, string(tier), nextSyncAfter, totalReviews, positiveReviews)
	return err
}

// Peak reads the stored daily peak, reporting absence explicitly.
func (s *PGStore) Peak(ctx context.Context, appID int64, day time.Time) (int64, bool, error) {
	var peak int64
	err := s.Pool.QueryRow(ctx, "snapshot_peak", appID, day).Scan(&peak)
	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read peak: %w", err)
	}
	return peak, true, nil
}

// SetPeak upserts the daily peak. The statement uses GREATEST so a racing
// partition can never regress a higher value written in between.
func (s *PGStore) SetPeak(ctx context.Context, appID int64, day time.Time, value int64) error {
	_, err := s.Pool.Exec(ctx, "snapshot_upsert", appID, day, value)
	return err
}
