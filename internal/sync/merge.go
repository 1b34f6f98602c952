package sync

import (
	"context"
	"time"
)

// Merger idempotently folds a freshly observed value into the per-game
// per-day snapshot. The stored peak never regresses: replays and
// out-of-order delivery of the same day's fetches are no-ops unless they
// raise the peak.
type Merger struct {
	Store SnapshotStore
}

// Merge writes max(existing, value) for the game's bucket. When value is
// below the stored peak the call is a no-op.
func (m *Merger) Merge(ctx context.Context, appID int64, day time.Time, value int64) error {
	existing, ok, err := m.Store.Peak(ctx, appID, day)
	if err != nil {
		return err
	}
	if ok && value < existing {
		return nil
	}
	return m.Store.SetPeak(ctx, appID, day, value)
}
