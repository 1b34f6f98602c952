package alerts

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the Postgres implementation of SubscriptionSource,
// BaselineStore, and AlertStore.
type PGStore struct {
	Pool *pgxpool.Pool
}

// NewPGStore wraps a connection pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{Pool: pool}
}

// Subscriptions returns every pin joined with its subscriber's global
// preferences. Subscribers without a preference row get the defaults.
func (s *PGStore) Subscriptions(ctx context.Context) ([]Subscription, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT p.subscriber_id, p.app_id,
		       ap.alerts_enabled, ap.sensitivity,
		       ap.ccu_alerts, ap.trend_alerts, ap.surge_alerts,
		       ap.sentiment_alerts, ap.milestone_alerts,
		       p.alerts_enabled, p.sensitivity,
		       p.ccu_alerts, p.trend_alerts, p.surge_alerts,
		       p.sentiment_alerts, p.milestone_alerts
		FROM pinned_games p
		LEFT JOIN alert_preferences ap ON ap.subscriber_id = p.subscriber_id
		ORDER BY p.app_id, p.subscriber_id`)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		var (
			sub    Subscription
			gEn    *bool
			gSens  *float64
			gFlags [5]*bool
		)
		if err := rows.Scan(
			&sub.SubscriberID, &sub.AppID,
			&gEn, &gSens, &gFlags[0], &gFlags[1], &gFlags[2], &gFlags[3], &gFlags[4],
			&sub.Pin.AlertsEnabled, &sub.Pin.Sensitivity,
			&sub.Pin.CCUAlerts, &sub.Pin.TrendAlerts, &sub.Pin.SurgeAlerts,
			&sub.Pin.SentimentAlerts, &sub.Pin.MilestoneAlerts,
		); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}

		// Absent preference row (NULLs from the left join) = defaults.
		sub.Prefs = DefaultPreferences(sub.SubscriberID)
		if gEn != nil {
			sub.Prefs.AlertsEnabled = *gEn
		}
		if gSens != nil {
			sub.Prefs.Sensitivity = *gSens
		}
		for i, dst := range []*bool{
			&sub.Prefs.CCUAlerts, &sub.Prefs.TrendAlerts, &sub.Prefs.SurgeAlerts,
			&sub.Prefs.SentimentAlerts, &sub.Prefs.MilestoneAlerts,
		} {
			if gFlags[i] != nil {
				*dst = *gFlags[i]
			}
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// Observations bulk-reads current snapshot state for the given games:
// tracked review counters plus today's CCU peak and the 30-day trend
// window averages. Trend classification happens in Go, not the database.
func (s *PGStore) Observations(ctx context.Context, appIDs []int64) (map[int64]Observation, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT gt.app_id, gt.total_reviews, gt.positive_reviews,
		       COALESCE(today.peak_ccu, 0),
		       COALESCE(recent.avg_ccu, 0), COALESCE(prior.avg_ccu, 0)
		FROM game_tracking gt
		LEFT JOIN ccu_snapshots today
		  ON today.app_id = gt.app_id AND today.snapshot_date = CURRENT_DATE
		LEFT JOIN LATERAL (
			SELECT AVG(peak_ccu) AS avg_ccu FROM ccu_snapshots
			WHERE app_id = gt.app_id AND snapshot_date >= CURRENT_DATE - 7
		) recent ON true
		LEFT JOIN LATERAL (
			SELECT AVG(peak_ccu) AS avg_ccu FROM ccu_snapshots
			WHERE app_id = gt.app_id
			  AND snapshot_date >= CURRENT_DATE - 30
			  AND snapshot_date < CURRENT_DATE - 23
		) prior ON true
		WHERE gt.app_id = ANY($1)`, appIDs)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]Observation, len(appIDs))
	for rows.Next() {
		var (
			obs                 Observation
			recentAvg, priorAvg float64
		)
		if err := rows.Scan(
			&obs.AppID, &obs.TotalReviews, &obs.PositiveReviews,
			&obs.CurrentCCU, &recentAvg, &priorAvg,
		); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		obs.TrendDirection = classifyTrend(recentAvg, priorAvg)
		out[obs.AppID] = obs
	}
	return out, rows.Err()
}

// Baselines bulk-reads the rolling baseline state for the given games.
// Games seen for the first time are simply absent from the result.
func (s *PGStore) Baselines(ctx context.Context, appIDs []int64) (map[int64]Baseline, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT app_id, ccu_7d_avg, review_velocity_7d_avg,
		       positive_ratio_prev, total_reviews_prev,
		       trend_direction_prev, updated_at
		FROM game_baselines
		WHERE app_id = ANY($1)`, appIDs)
	if err != nil {
		return nil, fmt.Errorf("query baselines: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]Baseline, len(appIDs))
	for rows.Next() {
		var b Baseline
		var trend string
		if err := rows.Scan(
			&b.AppID, &b.CCU7dAvg, &b.ReviewVelocity7dAvg,
			&b.PositiveRatioPrev, &b.TotalReviewsPrev,
			&trend, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan baseline: %w", err)
		}
		b.TrendDirectionPrev = TrendDirection(trend)
		out[b.AppID] = b
	}
	return out, rows.Err()
}

// Upsert rewrites a game's baseline.
func (s *PGStore) Upsert(ctx context.Context, b Baseline) error {
	_, err := s.Pool.Exec(ctx, "baseline_upsert",
		b.AppID, b.CCU7dAvg, b.ReviewVelocity7dAvg,
		b.PositiveRatioPrev, b.TotalReviewsPrev, string(b.TrendDirectionPrev))
	return err
}

// Insert persists an alert. Returns false when the dedup key already
// exists, so re-running detection in the same day is a no-op.
func (s *PGStore) Insert(ctx context.Context, a Alert) (bool, error) {
	tag, err := s.Pool.Exec(ctx, "alert_insert",
		a.SubscriberID, a.AppID, a.Type, a.Severity,
		a.Title, a.Description, a.PreviousValue, a.CurrentValue,
		a.ChangePercent, a.DedupKey)
	if err != nil {
		return false, fmt.Errorf("insert alert: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Recent returns the newest alerts for a subscriber, for the ops API.
func (s *PGStore) Recent(ctx context.Context, subscriberID string, limit int) ([]Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, subscriber_id, app_id, alert_type, severity,
		       title, description, previous_value, current_value,
		       change_percent, dedup_key, created_at
		FROM alerts
		WHERE subscriber_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, subscriberID, limit)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []Alert
	for rows.Next() {
		var a Alert
		if err := rows.Scan(
			&a.ID, &a.SubscriberID, &a.AppID, &a.Type, &a.Severity,
			&a.Title, &a.Description, &a.PreviousValue, &a.CurrentValue,
			&a.ChangePercent, &a.DedupKey, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
