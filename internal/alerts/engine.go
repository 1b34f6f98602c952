package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// --------------------------------------------------------------------------
// Store interfaces
// --------------------------------------------------------------------------

// SubscriptionSource reads subscription and snapshot state for a pass.
type SubscriptionSource interface {
	Subscriptions(ctx context.Context) ([]Subscription, error)
	Observations(ctx context.Context, appIDs []int64) (map[int64]Observation, error)
}

// BaselineStore reads and rewrites the per-game rolling baselines.
type BaselineStore interface {
	Baselines(ctx context.Context, appIDs []int64) (map[int64]Baseline, error)
	Upsert(ctx context.Context, b Baseline) error
}

// AlertStore persists alerts. Insert reports false when the dedup key
// already exists, making re-runs within the same day no-ops.
type AlertStore interface {
	Insert(ctx context.Context, a Alert) (bool, error)
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

// PassResult tracks the outcome of one detection pass.
type PassResult struct {
	JobID            int64
	Subscriptions    int
	GamesEvaluated   int
	Detections       int
	AlertsCreated    int
	Duplicates       int
	BaselinesWritten int
	Failed           int
	Duration         time.Duration
	Errors           []string
}

// Summary returns a human-readable summary.
func (r *PassResult) Summary() string {
	return fmt.Sprintf(
		"subs=%d games=%d detections=%d created=%d dupes=%d baselines=%d failed=%d dur=%s",
		r.Subscriptions, r.GamesEvaluated, r.Detections, r.AlertsCreated,
		r.Duplicates, r.BaselinesWritten, r.Failed, r.Duration.Round(time.Second))
}

// --------------------------------------------------------------------------
// Engine
// --------------------------------------------------------------------------

// Engine runs detection passes. One pass = one run: bulk-read candidates,
// compute, bulk-write results. The scheduling layer guarantees a single
// concurrent pass; the engine holds no state between runs.
type Engine struct {
	Subs       SubscriptionSource
	Baselines  BaselineStore
	Alerts     AlertStore
	Ledger     Ledger
	Thresholds Thresholds

	JobType string // ledger job type; defaults to "alert_detection"
	Logger  *slog.Logger
	Now     func() time.Time
}

// Run executes one detection pass. Per-game failures are tallied and the
// pass continues; only a failure to read the inputs or write the ledger
// fails the pass.
func (e *Engine) Run(ctx context.Context) (PassResult, error) {
	start := e.now()
	var result PassResult

	jobType := e.JobType
	if jobType == "" {
		jobType = "alert_detection"
	}
	jobID, err := e.Ledger.Start(ctx, jobType, nil)
	if err != nil {
		return result, fmt.Errorf("start job: %w", err)
	}
	result.JobID = jobID

	subs, err := e.Subs.Subscriptions(ctx)
	if err != nil {
		_ = e.Ledger.Fail(ctx, jobID, err.Error())
		return result, fmt.Errorf("load subscriptions: %w", err)
	}
	result.Subscriptions = len(subs)

	// Group subscriptions by game: detectors run per subscription, but the
	// baseline rewrite happens once per game.
	byGame := make(map[int64][]Subscription)
	for _, s := range subs {
		byGame[s.AppID] = append(byGame[s.AppID], s)
	}
	appIDs := make([]int64, 0, len(byGame))
	for id := range byGame {
		appIDs = append(appIDs, id)
	}
	sort.Slice(appIDs, func(i, j int) bool { return appIDs[i] < appIDs[j] })

	observations, err := e.Subs.Observations(ctx, appIDs)
	if err != nil {
		_ = e.Ledger.Fail(ctx, jobID, err.Error())
		return result, fmt.Errorf("load observations: %w", err)
	}
	baselines, err := e.Baselines.Baselines(ctx, appIDs)
	if err != nil {
		_ = e.Ledger.Fail(ctx, jobID, err.Error())
		return result, fmt.Errorf("load baselines: %w", err)
	}

	now := e.now()
	day := now.UTC()

	for _, appID := range appIDs {
		obs, ok := observations[appID]
		if !ok {
			continue
		}
		var base *Baseline
		if b, ok := baselines[appID]; ok {
			b := b
			base = &b
		}
		velocity := currentVelocity(base, obs, now)
		result.GamesEvaluated++

		for _, sub := range byGame[appID] {
			eff := ResolveEffective(sub.Prefs, sub.Pin)
			if !eff.AlertsEnabled {
				continue
			}
			for _, d := range e.detect(obs, base, velocity, eff) {
				result.Detections++
				alert := Alert{
					SubscriberID:  sub.SubscriberID,
					AppID:         appID,
					Type:          d.Type,
					Severity:      d.Severity,
					Title:         d.Title,
					Description:   d.Description,
					PreviousValue: d.PreviousValue,
					CurrentValue:  d.CurrentValue,
					ChangePercent: d.ChangePercent,
					DedupKey:      DedupKey(sub.SubscriberID, appID, d.Type, day),
				}
				created, err := e.Alerts.Insert(ctx, alert)
				if err != nil {
					result.Failed++
					result.Errors = append(result.Errors,
						fmt.Sprintf("insert alert %s: %v", alert.DedupKey, err))
					continue
				}
				if created {
					result.AlertsCreated++
				} else {
					result.Duplicates++
				}
			}
		}

		next := nextBaseline(base, obs, velocity, now)
		if err := e.Baselines.Upsert(ctx, next); err != nil {
			result.Failed++
			result.Errors = append(result.Errors,
				fmt.Sprintf("upsert baseline %d: %v", appID, err))
		} else {
			result.BaselinesWritten++
		}
	}

	result.Duration = e.now().Sub(start)

	meta := map[string]any{
		"subscriptions": result.Subscriptions,
		"games":         result.GamesEvaluated,
		"detections":    result.Detections,
		"duplicates":    result.Duplicates,
		"baselines":     result.BaselinesWritten,
	}
	if err := e.Ledger.Complete(ctx, jobID, result.GamesEvaluated, result.AlertsCreated, result.Failed, meta); err != nil {
		return result, fmt.Errorf("complete job %d: %w", jobID, err)
	}

	e.logger().Info("Detection pass complete", "job_id", jobID, "summary", result.Summary())
	return result, nil
}

// detect runs the enabled detectors for one subscription against one game.
func (e *Engine) detect(obs Observation, base *Baseline, velocity float64, eff Effective) []Detection {
	var out []Detection
	if eff.CCUAlerts {
		if d := e.Thresholds.detectCCUChange(obs, base, eff.Sensitivity); d != nil {
			out = append(out, *d)
		}
	}
	if eff.TrendAlerts {
		if d := e.Thresholds.detectTrendReversal(obs, base); d != nil {
			out = append(out, *d)
		}
	}
	if eff.SurgeAlerts {
		if d := e.Thresholds.detectReviewSurge(velocity, base, eff.Sensitivity); d != nil {
			out = append(out, *d)
		}
	}
	if eff.SentimentAlerts {
		if d := e.Thresholds.detectSentimentShift(obs, base, eff.Sensitivity); d != nil {
			out = append(out, *d)
		}
	}
	if eff.MilestoneAlerts {
		if d := e.Thresholds.detectMilestone(obs, base); d != nil {
			out = append(out, *d)
		}
	}
	return out
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
