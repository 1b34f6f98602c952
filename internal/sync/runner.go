package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// PassOptions configures a single sync pass.
type PassOptions struct {
	JobType        string
	Tier           int
	Limit          int // max candidates for this partition; <=0 = defaultBatchLimit
	BatchSize      int // shutdown is checked between batches
	Workers        int
	PageSize       int
	PartitionCount int
	PartitionID    int

	// SoftDeadline is the graceful-shutdown cutoff (hard external timeout
	// minus a safety buffer). Zero disables the deadline.
	SoftDeadline time.Time
}

func (o *PassOptions) applyDefaults() {
	if o.Limit <= 0 {
		o.Limit = defaultBatchLimit
	}
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	if o.PageSize <= 0 {
		o.PageSize = defaultPageSize
	}
	if o.PartitionCount <= 0 {
		o.PartitionCount = 1
	}
}

// Runner executes sync passes: collect this partition's candidates, fetch
// each under bounded concurrency, classify valid/invalid/error, and persist
// outcomes. Upstream pacing lives in the Fetcher's rate limiter, not here.
type Runner struct {
	Source    CandidateSource
	Fetcher   Fetcher
	Tiers     TierStore
	Snapshots SnapshotStore
	Ledger    Ledger
	Policy    IntervalPolicy

	SkipCooldown time.Duration
	Logger       *slog.Logger
	Now          func() time.Time
}

// Run executes one pass. Per-entity failures are tallied and the pass
// continues; only a failure to collect candidates or to write the ledger
// fails the pass itself. A pass cut short by the soft deadline or an
// external stop still completes: everything already persisted is
// individually idempotent, so partial forward progress is success.
func (r *Runner) Run(ctx context.Context, opts PassOptions) (PassResult, error) {
	opts.applyDefaults()
	start := r.now()

	// Ledger writes must land even when ctx is already cancelled: an
	// externally stopped pass still reports completed with the
	// early-termination flag instead of leaving the job row running.
	finishCtx := context.WithoutCancel(ctx)

	result := PassResult{VelocityTiers: make(map[VelocityTier]int)}

	jobID, err := r.Ledger.Start(ctx, opts.JobType, map[string]any{
		"tier":            opts.Tier,
		"partition_id":    opts.PartitionID,
		"partition_count": opts.PartitionCount,
	})
	if err != nil {
		return result, fmt.Errorf("start job: %w", err)
	}
	result.JobID = jobID

	candidates, err := collectCandidates(ctx, r.Source, opts.Tier, opts.Limit,
		opts.PageSize, opts.PartitionCount, opts.PartitionID)
	if err != nil {
		_ = r.Ledger.Fail(finishCtx, jobID, err.Error())
		return result, fmt.Errorf("collect candidates: %w", err)
	}
	result.Found = len(candidates)

	tracker := NewSkipTracker(r.Tiers, r.SkipCooldown)
	tracker.Now = r.Now
	merger := &Merger{Store: r.Snapshots}

	for lo := 0; lo < len(candidates); lo += opts.BatchSize {
		if r.shouldStop(ctx, opts.SoftDeadline) {
			result.EarlyTermination = true
			break
		}
		hi := lo + opts.BatchSize
		if hi > len(candidates) {
			hi = len(candidates)
		}
		r.runBatch(ctx, candidates[lo:hi], opts.Workers, tracker, merger, &result)
		result.Batches++
	}

	result.Duration = r.now().Sub(start)

	meta := map[string]any{
		"tier":              opts.Tier,
		"partition_id":      opts.PartitionID,
		"partition_count":   opts.PartitionCount,
		"batches":           result.Batches,
		"found":             result.Found,
		"invalid":           result.Invalid,
		"early_termination": result.EarlyTermination,
	}
	for tier, n := range result.VelocityTiers {
		meta["velocity_"+string(tier)] = n
	}
	if err := r.Ledger.Complete(finishCtx, jobID, result.Processed, result.Succeeded, result.Failed, meta); err != nil {
		return result, fmt.Errorf("complete job %d: %w", jobID, err)
	}

	r.logger().Info("Sync pass complete",
		"job_type", opts.JobType, "job_id", jobID, "summary", result.Summary())
	return result, nil
}

// shouldStop is the cooperative cancellation check, evaluated only at
// batch boundaries. In-flight work from the previous batch has already
// finished and been persisted by the time this runs.
func (r *Runner) shouldStop(ctx context.Context, softDeadline time.Time) bool {
	if ctx.Err() != nil {
		return true
	}
	return !softDeadline.IsZero() && !r.now().Before(softDeadline)
}

// runBatch fans a batch out to a fixed worker count. One mutex guards the
// shared result; the upstream limiter inside the Fetcher governs pacing.
func (r *Runner) runBatch(ctx context.Context, batch []Candidate, workers int, tracker *SkipTracker, merger *Merger, result *PassResult) {
	if workers > len(batch) {
		workers = len(batch)
	}

	ch := make(chan Candidate, len(batch))
	for _, c := range batch {
		ch <- c
	}
	close(ch)

	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range ch {
				outcome, tier, err := r.processOne(ctx, c, tracker, merger)

				mu.Lock()
				result.Processed++
				switch outcome {
				case outcomeValid:
					result.Succeeded++
					if tier != "" {
						result.VelocityTiers[tier]++
					}
				case outcomeInvalid:
					result.Invalid++
				case outcomeFailed:
					result.Failed++
					result.AddErrorf("app %d: %v", c.AppID, err)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}

type outcome int

const (
	outcomeValid outcome = iota
	outcomeInvalid
	outcomeFailed
)

// processOne fetches one candidate and persists its classified outcome.
// Fetching respects ctx; the persists for an already-finished fetch run on
// a detached context so a cancellation arriving mid-batch never strands
// half-written state.
func (r *Runner) processOne(ctx context.Context, c Candidate, tracker *SkipTracker, merger *Merger) (outcome, VelocityTier, error) {
	sample, err := r.Fetcher.Fetch(ctx, c)
	persistCtx := context.WithoutCancel(ctx)
	if errors.Is(err, ErrEntityInvalid) {
		if qErr := tracker.MarkInvalid(persistCtx, c.AppID); qErr != nil {
			return outcomeFailed, "", fmt.Errorf("quarantine: %w", qErr)
		}
		return outcomeInvalid, "", nil
	}
	if err != nil {
		// Transient: no state change, retried by a later pass.
		return outcomeFailed, "", err
	}

	now := r.now()

	if sample.HasCCU {
		if err := merger.Merge(persistCtx, c.AppID, DateBucket(now), sample.CCU); err != nil {
			return outcomeFailed, "", fmt.Errorf("merge snapshot: %w", err)
		}
	}

	var velocityTier VelocityTier
	if sample.HasReviews {
		v := DailyVelocity(c.TotalReviews, sample.TotalReviews, HoursSince(c.LastSyncedAt, now))
		tier, interval := r.Policy.Classify(v)
		velocityTier = tier
		if err := r.Tiers.UpdateVelocity(persistCtx, c.AppID, tier, now.Add(interval),
			sample.TotalReviews, sample.PositiveReviews); err != nil {
			return outcomeFailed, "", fmt.Errorf("update velocity: %w", err)
		}
	}

	if err := tracker.MarkValid(persistCtx, c.AppID); err != nil {
		return outcomeFailed, "", fmt.Errorf("mark valid: %w", err)
	}
	return outcomeValid, velocityTier, nil
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
