package sync

import "time"

// VelocityTier labels how fast a game's review counter is moving. The label
// feeds prioritized candidate ordering for future passes.
type VelocityTier string

const (
	VelocityHigh    VelocityTier = "high"
	VelocityMedium  VelocityTier = "medium"
	VelocityLow     VelocityTier = "low"
	VelocityDormant VelocityTier = "dormant"
)

// IntervalPolicy maps an observed daily velocity onto a re-sync interval.
// Lower bounds are inclusive: a boundary value resolves to the higher tier.
type IntervalPolicy struct {
	HighMin   float64
	MediumMin float64
	LowMin    float64

	HighEvery    time.Duration
	MediumEvery  time.Duration
	LowEvery     time.Duration
	DormantEvery time.Duration
}

// DefaultIntervalPolicy returns the production thresholds: >=5 reviews/day
// resyncs in 4h, >=1 in 12h, >=0.1 in 24h, else 72h.
func DefaultIntervalPolicy() IntervalPolicy {
	return IntervalPolicy{
		HighMin:   5,
		MediumMin: 1,
		LowMin:    0.1,

		HighEvery:    4 * time.Hour,
		MediumEvery:  12 * time.Hour,
		LowEvery:     24 * time.Hour,
		DormantEvery: 72 * time.Hour,
	}
}

// Classify returns the velocity tier and re-sync interval for a daily rate.
func (p IntervalPolicy) Classify(dailyVelocity float64) (VelocityTier, time.Duration) {
	switch {
	case dailyVelocity >= p.HighMin:
		return VelocityHigh, p.HighEvery
	case dailyVelocity >= p.MediumMin:
		return VelocityMedium, p.MediumEvery
	case dailyVelocity >= p.LowMin:
		return VelocityLow, p.LowEvery
	default:
		return VelocityDormant, p.DormantEvery
	}
}

// DailyVelocity extrapolates the observed counter delta to a per-day rate.
// Negative deltas (upstream corrections) clamp to zero, and an unknown or
// zero elapsed window yields zero.
func DailyVelocity(previousTotal, currentTotal int64, hoursSinceLastSync float64) float64 {
	delta := currentTotal - previousTotal
	if delta < 0 {
		delta = 0
	}
	if hoursSinceLastSync <= 0 {
		return 0
	}
	return float64(delta) * 24 / hoursSinceLastSync
}

// HoursSince returns the elapsed hours between a previous sync and now,
// or 0 when the game was never synced.
func HoursSince(last *time.Time, now time.Time) float64 {
	if last == nil {
		return 0
	}
	return now.Sub(*last).Hours()
}
