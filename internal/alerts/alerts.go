// Package alerts implements the anomaly detection engine: one batch pass
// over all pinned games with alerts enabled, up to five independent
// detectors per subscription, deduplicated alert persistence, and rolling
// baseline rewrites.
//
// Thresholds and sensitivity are per-subscriber (global preferences with
// nullable per-pin overrides); the rolling baselines are entity-global
// shared state, rewritten exactly once per pass per game.
package alerts

import (
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Alert types.
const (
	TypeCCUSpike       = "ccu_spike"
	TypeCCUDrop        = "ccu_drop"
	TypeTrendReversal  = "trend_reversal"
	TypeReviewSurge    = "review_surge"
	TypeSentimentShift = "sentiment_shift"
	TypeMilestone      = "review_milestone"
)

// Severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// TrendDirection is the sign of a game's 30-day CCU trend.
type TrendDirection string

const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

// trendDeadbandPercent is the band around zero treated as stable when
// classifying the 30-day trend.
const trendDeadbandPercent = 5.0

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Baseline is the persisted rolling reference state for one game.
type Baseline struct {
	AppID               int64
	CCU7dAvg            float64
	ReviewVelocity7dAvg float64
	PositiveRatioPrev   float64
	TotalReviewsPrev    int64
	TrendDirectionPrev  TrendDirection
	UpdatedAt           time.Time
}

// Observation is the current snapshot state for one game, read at the top
// of a detection pass.
type Observation struct {
	AppID           int64
	CurrentCCU      int64
	TotalReviews    int64
	PositiveReviews int64
	TrendDirection  TrendDirection
}

// PositiveRatio returns the positive-review share in [0,1].
func (o Observation) PositiveRatio() float64 {
	if o.TotalReviews <= 0 {
		return 0
	}
	return float64(o.PositiveReviews) / float64(o.TotalReviews)
}

// Subscription is one subscriber's pin of one game, carrying the global
// preferences and the nullable per-pin overrides.
type Subscription struct {
	SubscriberID string
	AppID        int64
	Prefs        Preferences
	Pin          PinSettings
}

// Alert is one persisted anomaly notification row.
type Alert struct {
	ID            int64     `json:"id"`
	SubscriberID  string    `json:"subscriber_id"`
	AppID         int64     `json:"app_id"`
	Type          string    `json:"alert_type"`
	Severity      string    `json:"severity"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	PreviousValue float64   `json:"previous_value"`
	CurrentValue  float64   `json:"current_value"`
	ChangePercent float64   `json:"change_percent"`
	DedupKey      string    `json:"dedup_key"`
	CreatedAt     time.Time `json:"created_at"`
}

// DedupKey builds the deterministic unique key: at most one alert per
// subscriber, game, alert type, and calendar day.
func DedupKey(subscriberID string, appID int64, alertType string, day time.Time) string {
	return fmt.Sprintf("%s:game:%d:%s:%s", subscriberID, appID, alertType, day.UTC().Format("2006-01-02"))
}

// classifyTrend compares a recent average against a prior one, with a
// deadband so small wobbles read as stable.
func classifyTrend(recentAvg, priorAvg float64) TrendDirection {
	if priorAvg <= 0 {
		return TrendStable
	}
	change := (recentAvg - priorAvg) / priorAvg * 100
	switch {
	case change > trendDeadbandPercent:
		return TrendUp
	case change < -trendDeadbandPercent:
		return TrendDown
	default:
		return TrendStable
	}
}
