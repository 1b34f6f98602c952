package alerts

import "time"

// baselineWindowDays is the span of the exponential moving averages held in
// a Baseline.
const baselineWindowDays = 7

// currentVelocity extrapolates the review delta since the baseline was last
// written to a per-day rate. Zero when there is no baseline yet or the
// counter regressed upstream.
func currentVelocity(base *Baseline, obs Observation, now time.Time) float64 {
	if base == nil {
		return 0
	}
	delta := obs.TotalReviews - base.TotalReviewsPrev
	if delta < 0 {
		return 0
	}
	hours := now.Sub(base.UpdatedAt).Hours()
	if hours <= 0 {
		return 0
	}
	return float64(delta) * 24 / hours
}

// nextBaseline folds the current observation into the rolling state. The
// first observation seeds the averages; later ones update a 7-day EMA. The
// prev fields store the observation verbatim for the next pass's
// comparisons.
func nextBaseline(base *Baseline, obs Observation, velocity float64, now time.Time) Baseline {
	next := Baseline{
		AppID:              obs.AppID,
		PositiveRatioPrev:  obs.PositiveRatio(),
		TotalReviewsPrev:   obs.TotalReviews,
		TrendDirectionPrev: obs.TrendDirection,
		UpdatedAt:          now,
	}
	if base == nil {
		next.CCU7dAvg = float64(obs.CurrentCCU)
		next.ReviewVelocity7dAvg = velocity
		return next
	}
	next.CCU7dAvg = ema(base.CCU7dAvg, float64(obs.CurrentCCU))
	next.ReviewVelocity7dAvg = ema(base.ReviewVelocity7dAvg, velocity)
	return next
}

func ema(avg, current float64) float64 {
	return avg + (current-avg)/baselineWindowDays
}
