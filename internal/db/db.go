// Package db provides a pgxpool-based connection pool with prepared statement
// registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/playpulse/playpulse-data/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers all statements the sync, detection,
// and ops API layers use. Prepared statements eliminate parse overhead on
// the per-entity hot paths.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Sync: cursor-paginated candidate selection.
		// Keyset over (COALESCE(last_synced_at, epoch), app_id) so never-synced
		// rows sort first and ordering stays total. Quarantined rows and rows
		// not yet due by their adaptive interval are excluded here, not in Go.
		"sync_candidates_page": `
			SELECT app_id, tier, last_synced_at, total_reviews, positive_reviews, velocity_tier
			FROM game_tracking
			WHERE tier = $1
			  AND (skip_until IS NULL OR skip_until <= NOW())
			  AND (next_sync_after IS NULL OR next_sync_after <= NOW())
			  AND (COALESCE(last_synced_at, 'epoch'::timestamptz), app_id) > ($2::timestamptz, $3::bigint)
			ORDER BY COALESCE(last_synced_at, 'epoch'::timestamptz) ASC, app_id ASC
			LIMIT $4`,

		// Sync: tracking row transitions
		"tracking_mark_valid": `
			UPDATE game_tracking
			SET fetch_status = 'valid', skip_until = NULL, last_synced_at = $2, updated_at = NOW()
			WHERE app_id = $1`,
		"tracking_mark_invalid": `
			UPDATE game_tracking
			SET fetch_status = 'invalid', skip_until = $2, updated_at = NOW()
			WHERE app_id = $1`,
		"tracking_update_velocity": `
			UPDATE game_tracking
			SET velocity_tier = $2, next_sync_after = $3,
			    total_reviews = $4, positive_reviews = $5, updated_at = NOW()
			WHERE app_id = $1`,

		// Sync: daily peak snapshots
		"snapshot_peak": `
			SELECT peak_ccu FROM ccu_snapshots
			WHERE app_id = $1 AND snapshot_date = $2`,
		"snapshot_upsert": `
			INSERT INTO ccu_snapshots (app_id, snapshot_date, peak_ccu, samples)
			VALUES ($1, $2, $3, 1)
			ON CONFLICT (app_id, snapshot_date) DO UPDATE
			SET peak_ccu = GREATEST(ccu_snapshots.peak_ccu, EXCLUDED.peak_ccu),
			    samples  = ccu_snapshots.samples + 1`,

		// Job ledger
		"job_start": `
			INSERT INTO sync_jobs (job_type, status, started_at, metadata)
			VALUES ($1, 'running', NOW(), $2)
			RETURNING id`,
		"job_complete": `
			UPDATE sync_jobs
			SET status = 'completed', completed_at = NOW(),
			    items_processed = $2, items_succeeded = $3, items_failed = $4,
			    metadata = $5
			WHERE id = $1 AND status = 'running'`,
		"job_fail": `
			UPDATE sync_jobs
			SET status = 'failed', completed_at = NOW(), error_message = $2
			WHERE id = $1 AND status = 'running'`,

		// Detection: alert insertion (dedup_key carries the idempotence)
		"alert_insert": `
			INSERT INTO alerts (
				subscriber_id, app_id, alert_type, severity,
				title, description, previous_value, current_value,
				change_percent, dedup_key
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (dedup_key) DO NOTHING`,

		// Detection: baseline rewrite, once per game per pass
		"baseline_upsert": `
			INSERT INTO game_baselines (
				app_id, ccu_7d_avg, review_velocity_7d_avg,
				positive_ratio_prev, total_reviews_prev,
				trend_direction_prev, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, NOW())
			ON CONFLICT (app_id) DO UPDATE
			SET ccu_7d_avg = EXCLUDED.ccu_7d_avg,
			    review_velocity_7d_avg = EXCLUDED.review_velocity_7d_avg,
			    positive_ratio_prev = EXCLUDED.positive_ratio_prev,
			    total_reviews_prev = EXCLUDED.total_reviews_prev,
			    trend_direction_prev = EXCLUDED.trend_direction_prev,
			    updated_at = NOW()`,
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
