package alerts

import (
	"fmt"
	"math"
)

// Thresholds are the engine-level base values the per-subscriber
// sensitivity scales against. All of them are configuration inputs.
type Thresholds struct {
	CCUBasePercent      float64 // base spike/drop threshold, percent
	CCUMinFloor         int64   // absolute CCU floor filtering noise
	SurgeBaseMultiplier float64
	SurgeHighMultiplier float64
	SurgeMinVelocity    float64 // reviews/day floor for surge checks
	SentimentBasePoints float64
	SentimentMinReviews int64 // statistical-significance floor
	Milestones          []int64
}

// dropHighCapPercent caps the high-severity drop boundary: doubling a large
// base threshold would push it past -100%, which no drop can reach.
const dropHighCapPercent = 85

// DefaultThresholds returns the production base values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CCUBasePercent:      50,
		CCUMinFloor:         100,
		SurgeBaseMultiplier: 3,
		SurgeHighMultiplier: 10,
		SurgeMinVelocity:    5,
		SentimentBasePoints: 5,
		SentimentMinReviews: 500,
		Milestones:          []int64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000, 1000000},
	}
}

// Detection is one non-null detector result, not yet bound to a subscriber.
type Detection struct {
	Type          string
	Severity      string
	Title         string
	Description   string
	PreviousValue float64
	CurrentValue  float64
	ChangePercent float64
}

// --------------------------------------------------------------------------
// Detectors. Each is independent and order-independent, returns nil when
// nothing fires, and never fires on the first observation (nil baseline).
// --------------------------------------------------------------------------

// detectCCUChange fires a spike or drop when current CCU deviates from the
// 7-day average by more than the sensitivity-scaled threshold.
func (t Thresholds) detectCCUChange(obs Observation, base *Baseline, sensitivity float64) *Detection {
	if base == nil || base.CCU7dAvg <= 0 {
		return nil
	}
	if obs.CurrentCCU < t.CCUMinFloor && base.CCU7dAvg < float64(t.CCUMinFloor) {
		return nil
	}

	changePercent := (float64(obs.CurrentCCU) - base.CCU7dAvg) / base.CCU7dAvg * 100
	threshold := t.CCUBasePercent / sensitivity

	switch {
	case changePercent > threshold:
		severity := SeverityMedium
		if changePercent > 2*threshold {
			severity = SeverityHigh
		}
		return &Detection{
			Type:     TypeCCUSpike,
			Severity: severity,
			Title:    "Player count spike",
			Description: fmt.Sprintf("Concurrent players jumped %.0f%% above the 7-day average (%.0f → %d)",
				changePercent, base.CCU7dAvg, obs.CurrentCCU),
			PreviousValue: base.CCU7dAvg,
			CurrentValue:  float64(obs.CurrentCCU),
			ChangePercent: changePercent,
		}
	case changePercent < -threshold:
		severity := SeverityMedium
		if changePercent < -math.Min(2*threshold, dropHighCapPercent) {
			severity = SeverityHigh
		}
		return &Detection{
			Type:     TypeCCUDrop,
			Severity: severity,
			Title:    "Player count drop",
			Description: fmt.Sprintf("Concurrent players fell %.0f%% below the 7-day average (%.0f → %d)",
				-changePercent, base.CCU7dAvg, obs.CurrentCCU),
			PreviousValue: base.CCU7dAvg,
			CurrentValue:  float64(obs.CurrentCCU),
			ChangePercent: changePercent,
		}
	}
	return nil
}

// detectTrendReversal fires only on a strict direction flip (up→down or
// down→up); transitions through stable never fire.
func (t Thresholds) detectTrendReversal(obs Observation, base *Baseline) *Detection {
	if base == nil {
		return nil
	}
	prev, cur := base.TrendDirectionPrev, obs.TrendDirection
	flipped := (prev == TrendUp && cur == TrendDown) || (prev == TrendDown && cur == TrendUp)
	if !flipped {
		return nil
	}
	return &Detection{
		Type:          TypeTrendReversal,
		Severity:      SeverityMedium,
		Title:         "Trend reversal",
		Description:   fmt.Sprintf("30-day player trend flipped from %s to %s", prev, cur),
		PreviousValue: trendValue(prev),
		CurrentValue:  trendValue(cur),
	}
}

// detectReviewSurge fires when the current review velocity is a
// sensitivity-scaled multiple of the 7-day average velocity.
func (t Thresholds) detectReviewSurge(currentVelocity float64, base *Baseline, sensitivity float64) *Detection {
	if base == nil || base.ReviewVelocity7dAvg <= 0 {
		return nil
	}
	if currentVelocity < t.SurgeMinVelocity {
		return nil
	}

	multiplier := currentVelocity / base.ReviewVelocity7dAvg
	if multiplier < t.SurgeBaseMultiplier/sensitivity {
		return nil
	}
	severity := SeverityMedium
	if multiplier >= t.SurgeHighMultiplier {
		severity = SeverityHigh
	}
	return &Detection{
		Type:     TypeReviewSurge,
		Severity: severity,
		Title:    "Review surge",
		Description: fmt.Sprintf("Reviews arriving at %.1f/day, %.1fx the 7-day average",
			currentVelocity, multiplier),
		PreviousValue: base.ReviewVelocity7dAvg,
		CurrentValue:  currentVelocity,
		ChangePercent: (multiplier - 1) * 100,
	}
}

// detectSentimentShift fires when the positive-review ratio moved by more
// than the sensitivity-scaled point threshold, gated on a minimum review
// count for statistical significance.
func (t Thresholds) detectSentimentShift(obs Observation, base *Baseline, sensitivity float64) *Detection {
	if base == nil {
		return nil
	}
	if obs.TotalReviews < t.SentimentMinReviews {
		return nil
	}

	changePoints := (obs.PositiveRatio() - base.PositiveRatioPrev) * 100
	threshold := t.SentimentBasePoints / sensitivity
	if math.Abs(changePoints) < threshold {
		return nil
	}

	direction := "improved"
	if changePoints < 0 {
		direction = "declined"
	}
	severity := SeverityMedium
	if math.Abs(changePoints) >= 2*threshold {
		severity = SeverityHigh
	}
	return &Detection{
		Type:     TypeSentimentShift,
		Severity: severity,
		Title:    "Sentiment shift",
		Description: fmt.Sprintf("Positive review ratio %s by %.1f points (%.1f%% → %.1f%%)",
			direction, math.Abs(changePoints), base.PositiveRatioPrev*100, obs.PositiveRatio()*100),
		PreviousValue: base.PositiveRatioPrev * 100,
		CurrentValue:  obs.PositiveRatio() * 100,
		ChangePercent: changePoints,
	}
}

// detectMilestone fires for the first threshold crossed since the previous
// observation, lowest first. At most one milestone alert per game per pass
// even when a bulk import crosses several thresholds at once.
func (t Thresholds) detectMilestone(obs Observation, base *Baseline) *Detection {
	if base == nil {
		return nil
	}
	for _, m := range t.Milestones {
		if base.TotalReviewsPrev < m && m <= obs.TotalReviews {
			return &Detection{
				Type:          TypeMilestone,
				Severity:      milestoneSeverity(m),
				Title:         fmt.Sprintf("%s reviews milestone", formatCount(m)),
				Description:   fmt.Sprintf("Total reviews crossed %s (%d → %d)", formatCount(m), base.TotalReviewsPrev, obs.TotalReviews),
				PreviousValue: float64(base.TotalReviewsPrev),
				CurrentValue:  float64(obs.TotalReviews),
			}
		}
	}
	return nil
}

func milestoneSeverity(m int64) string {
	switch {
	case m >= 100000:
		return SeverityHigh
	case m >= 10000:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func trendValue(d TrendDirection) float64 {
	switch d {
	case TrendUp:
		return 1
	case TrendDown:
		return -1
	default:
		return 0
	}
}

func formatCount(n int64) string {
	switch {
	case n >= 1000000 && n%1000000 == 0:
		return fmt.Sprintf("%dM", n/1000000)
	case n >= 1000 && n%1000 == 0:
		return fmt.Sprintf("%dK", n/1000)
	default:
		return fmt.Sprintf("%d", n)
	}
}
