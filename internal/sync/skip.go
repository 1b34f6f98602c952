package sync

import (
	"context"
	"time"
)

// SkipTracker quarantines app ids the upstream confirmed invalid so later
// passes stop spending rate-limited budget on them. Candidate selection
// excludes any row whose skip_until is still in the future.
type SkipTracker struct {
	Store    TierStore
	Cooldown time.Duration
	Now      func() time.Time
}

// NewSkipTracker creates a tracker with the given cooldown window.
// A zero cooldown falls back to the 30-day default.
func NewSkipTracker(store TierStore, cooldown time.Duration) *SkipTracker {
	if cooldown <= 0 {
		cooldown = DefaultSkipCooldown
	}
	return &SkipTracker{Store: store, Cooldown: cooldown, Now: time.Now}
}

// MarkInvalid sets skip_until = now + cooldown and fetch_status = invalid.
func (t *SkipTracker) MarkInvalid(ctx context.Context, appID int64) error {
	return t.Store.MarkInvalid(ctx, appID, t.now().Add(t.Cooldown))
}

// MarkValid clears any skip window, sets fetch_status = valid, and records
// last_synced_at = now.
func (t *SkipTracker) MarkValid(ctx context.Context, appID int64) error {
	return t.Store.MarkValid(ctx, appID, t.now())
}

func (t *SkipTracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}
