// Package maintenance runs periodic background retention tasks as Go
// tickers from the ops API process, which is already long-running.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	CleanupInterval time.Duration // old alerts + orphaned baselines
	AlertRetention  time.Duration // how long alert rows are kept
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig() Config {
	return Config{
		CleanupInterval: 1 * time.Hour,
		AlertRetention:  90 * 24 * time.Hour,
	}
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, pool *pgxpool.Pool, cfg Config, logger *slog.Logger) {
	logger.Info("Maintenance tickers started",
		"cleanup", cfg.CleanupInterval, "alert_retention", cfg.AlertRetention)

	if cfg.CleanupInterval <= 0 {
		<-ctx.Done()
		return
	}

	t := time.NewTicker(cfg.CleanupInterval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			cleanup(ctx, pool, cfg.AlertRetention, logger)
		case <-ctx.Done():
			logger.Info("Maintenance tickers stopped")
			return
		}
	}
}

// cleanup removes alerts past retention and baselines for games no longer
// tracked. Both deletes are safe to repeat; failures are logged and retried
// on the next tick.
func cleanup(ctx context.Context, pool *pgxpool.Pool, retention time.Duration, logger *slog.Logger) {
	tag, err := pool.Exec(ctx, `
		DELETE FROM alerts
		WHERE created_at < NOW() - $1::interval`, retention)
	if err != nil {
		logger.Warn("Cleanup: failed to purge old alerts", "error", err)
	} else if tag.RowsAffected() > 0 {
		logger.Info("Cleanup: purged old alerts", "count", tag.RowsAffected())
	}

	tag, err = pool.Exec(ctx, `
		DELETE FROM game_baselines b
		WHERE NOT EXISTS (
			SELECT 1 FROM game_tracking gt WHERE gt.app_id = b.app_id
		)`)
	if err != nil {
		logger.Warn("Cleanup: failed to purge orphaned baselines", "error", err)
	} else if tag.RowsAffected() > 0 {
		logger.Info("Cleanup: purged orphaned baselines", "count", tag.RowsAffected())
	}
}
