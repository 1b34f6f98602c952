package alerts

import (
	"math"
	"testing"
)

func TestDetectCCUChange(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name         string
		obs          Observation
		base         *Baseline
		sensitivity  float64
		wantType     string
		wantSeverity string
	}{
		{
			name:         "spike past double threshold is high",
			obs:          Observation{CurrentCCU: 2200},
			base:         &Baseline{CCU7dAvg: 1000},
			sensitivity:  1,
			wantType:     TypeCCUSpike,
			wantSeverity: SeverityHigh, // +120% > 2*50%
		},
		{
			name:         "spike past threshold is medium",
			obs:          Observation{CurrentCCU: 1600},
			base:         &Baseline{CCU7dAvg: 1000},
			sensitivity:  1,
			wantType:     TypeCCUSpike,
			wantSeverity: SeverityMedium, // +60%
		},
		{
			name:        "within threshold is quiet",
			obs:         Observation{CurrentCCU: 1400},
			base:        &Baseline{CCU7dAvg: 1000},
			sensitivity: 1,
		},
		{
			name:         "drop past threshold is medium",
			obs:          Observation{CurrentCCU: 400},
			base:         &Baseline{CCU7dAvg: 1000},
			sensitivity:  1,
			wantType:     TypeCCUDrop,
			wantSeverity: SeverityMedium, // -60%
		},
		{
			name:         "drop past capped high boundary is high",
			obs:          Observation{CurrentCCU: 100},
			base:         &Baseline{CCU7dAvg: 1000},
			sensitivity:  1,
			wantType:     TypeCCUDrop,
			wantSeverity: SeverityHigh, // -90% < -min(100, 85)
		},
		{
			name:        "higher sensitivity lowers the threshold",
			obs:         Observation{CurrentCCU: 1300},
			base:        &Baseline{CCU7dAvg: 1000},
			sensitivity: 2, // threshold 25%, +30% fires
			wantType:    TypeCCUSpike,
		},
		{
			name:        "noise below the floor is ignored",
			obs:         Observation{CurrentCCU: 30},
			base:        &Baseline{CCU7dAvg: 10},
			sensitivity: 1, // +200% but both sides under the 100 floor
		},
		{
			name:         "crossing the floor still fires",
			obs:          Observation{CurrentCCU: 300},
			base:         &Baseline{CCU7dAvg: 90},
			sensitivity:  1,
			wantType:     TypeCCUSpike,
			wantSeverity: SeverityHigh,
		},
		{
			name:        "no baseline never fires",
			obs:         Observation{CurrentCCU: 5000},
			sensitivity: 1,
		},
		{
			name:        "zero average never fires",
			obs:         Observation{CurrentCCU: 5000},
			base:        &Baseline{CCU7dAvg: 0},
			sensitivity: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := th.detectCCUChange(tt.obs, tt.base, tt.sensitivity)
			if tt.wantType == "" {
				if got != nil {
					t.Fatalf("expected no detection, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatalf("expected %s, got nil", tt.wantType)
			}
			if got.Type != tt.wantType {
				t.Errorf("type = %s, want %s", got.Type, tt.wantType)
			}
			if tt.wantSeverity != "" && got.Severity != tt.wantSeverity {
				t.Errorf("severity = %s, want %s", got.Severity, tt.wantSeverity)
			}
		})
	}
}

func TestDetectCCUChangePercent(t *testing.T) {
	th := DefaultThresholds()
	got := th.detectCCUChange(Observation{CurrentCCU: 2200}, &Baseline{CCU7dAvg: 1000}, 1)
	if got == nil {
		t.Fatal("expected detection")
	}
	if math.Abs(got.ChangePercent-120) > 1e-9 {
		t.Errorf("change percent = %v, want 120", got.ChangePercent)
	}
	if got.PreviousValue != 1000 || got.CurrentValue != 2200 {
		t.Errorf("values = %v/%v, want 1000/2200", got.PreviousValue, got.CurrentValue)
	}
}

func TestDetectTrendReversal(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		prev, cur TrendDirection
		fires     bool
	}{
		{TrendUp, TrendDown, true},
		{TrendDown, TrendUp, true},
		{TrendUp, TrendStable, false},
		{TrendStable, TrendDown, false},
		{TrendStable, TrendUp, false},
		{TrendUp, TrendUp, false},
		{TrendDown, TrendDown, false},
	}
	for _, tt := range tests {
		got := th.detectTrendReversal(
			Observation{TrendDirection: tt.cur},
			&Baseline{TrendDirectionPrev: tt.prev})
		if (got != nil) != tt.fires {
			t.Errorf("%s -> %s: fired=%v, want %v", tt.prev, tt.cur, got != nil, tt.fires)
		}
	}

	if got := th.detectTrendReversal(Observation{TrendDirection: TrendDown}, nil); got != nil {
		t.Error("nil baseline must not fire")
	}
}

func TestDetectReviewSurge(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name         string
		velocity     float64
		base         *Baseline
		sensitivity  float64
		fires        bool
		wantSeverity string
	}{
		{
			name:         "triple the average fires medium",
			velocity:     30,
			base:         &Baseline{ReviewVelocity7dAvg: 10},
			sensitivity:  1,
			fires:        true,
			wantSeverity: SeverityMedium,
		},
		{
			name:         "ten times the average fires high",
			velocity:     100,
			base:         &Baseline{ReviewVelocity7dAvg: 10},
			sensitivity:  1,
			fires:        true,
			wantSeverity: SeverityHigh,
		},
		{
			name:        "below the multiplier is quiet",
			velocity:    25,
			base:        &Baseline{ReviewVelocity7dAvg: 10},
			sensitivity: 1,
		},
		{
			name:        "below the velocity floor is quiet",
			velocity:    4, // 4x the average but under 5/day
			base:        &Baseline{ReviewVelocity7dAvg: 1},
			sensitivity: 1,
		},
		{
			name:        "sensitivity scales the multiplier",
			velocity:    16,
			base:        &Baseline{ReviewVelocity7dAvg: 10},
			sensitivity: 2, // needed multiplier 1.5, actual 1.6
			fires:       true,
		},
		{
			name:        "zero average never fires",
			velocity:    100,
			base:        &Baseline{ReviewVelocity7dAvg: 0},
			sensitivity: 1,
		},
		{
			name:        "nil baseline never fires",
			velocity:    100,
			sensitivity: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := th.detectReviewSurge(tt.velocity, tt.base, tt.sensitivity)
			if (got != nil) != tt.fires {
				t.Fatalf("fired=%v, want %v (%+v)", got != nil, tt.fires, got)
			}
			if got != nil && tt.wantSeverity != "" && got.Severity != tt.wantSeverity {
				t.Errorf("severity = %s, want %s", got.Severity, tt.wantSeverity)
			}
		})
	}
}

func TestDetectSentimentShift(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name         string
		obs          Observation
		base         *Baseline
		sensitivity  float64
		fires        bool
		wantSeverity string
	}{
		{
			name:         "six point decline fires medium",
			obs:          Observation{TotalReviews: 1000, PositiveReviews: 740}, // 74%
			base:         &Baseline{PositiveRatioPrev: 0.80},
			sensitivity:  1,
			fires:        true,
			wantSeverity: SeverityMedium,
		},
		{
			name:         "twelve point swing fires high",
			obs:          Observation{TotalReviews: 1000, PositiveReviews: 920}, // 92%
			base:         &Baseline{PositiveRatioPrev: 0.80},
			sensitivity:  1,
			fires:        true,
			wantSeverity: SeverityHigh,
		},
		{
			name:        "four point shift is quiet",
			obs:         Observation{TotalReviews: 1000, PositiveReviews: 760},
			base:        &Baseline{PositiveRatioPrev: 0.80},
			sensitivity: 1,
		},
		{
			name:        "too few reviews is quiet",
			obs:         Observation{TotalReviews: 200, PositiveReviews: 100}, // 50% vs 80%
			base:        &Baseline{PositiveRatioPrev: 0.80},
			sensitivity: 1,
		},
		{
			name:        "low sensitivity raises the bar",
			obs:         Observation{TotalReviews: 1000, PositiveReviews: 740},
			base:        &Baseline{PositiveRatioPrev: 0.80},
			sensitivity: 0.5, // threshold 10 points, shift is 6
		},
		{
			name:        "nil baseline never fires",
			obs:         Observation{TotalReviews: 1000, PositiveReviews: 100},
			sensitivity: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := th.detectSentimentShift(tt.obs, tt.base, tt.sensitivity)
			if (got != nil) != tt.fires {
				t.Fatalf("fired=%v, want %v (%+v)", got != nil, tt.fires, got)
			}
			if got != nil && tt.wantSeverity != "" && got.Severity != tt.wantSeverity {
				t.Errorf("severity = %s, want %s", got.Severity, tt.wantSeverity)
			}
		})
	}
}

func TestDetectMilestone(t *testing.T) {
	th := DefaultThresholds()

	t.Run("fires lowest crossed threshold only", func(t *testing.T) {
		// 950 -> 1050 crosses exactly 1000.
		got := th.detectMilestone(
			Observation{TotalReviews: 1050},
			&Baseline{TotalReviewsPrev: 950})
		if got == nil {
			t.Fatal("expected milestone")
		}
		if got.Title != "1K reviews milestone" {
			t.Errorf("title = %q", got.Title)
		}
		if got.Severity != SeverityLow {
			t.Errorf("severity = %s, want low", got.Severity)
		}
	})

	t.Run("bulk import fires the lowest milestone", func(t *testing.T) {
		// 400 -> 12000 crosses 500, 1000, 5000, 10000; only 500 fires.
		got := th.detectMilestone(
			Observation{TotalReviews: 12000},
			&Baseline{TotalReviewsPrev: 400})
		if got == nil {
			t.Fatal("expected milestone")
		}
		if got.Title != "500 reviews milestone" {
			t.Errorf("title = %q", got.Title)
		}
	})

	t.Run("no crossing is quiet", func(t *testing.T) {
		if got := th.detectMilestone(Observation{TotalReviews: 999}, &Baseline{TotalReviewsPrev: 600}); got != nil {
			t.Fatalf("unexpected milestone %+v", got)
		}
	})

	t.Run("landing exactly on the threshold fires", func(t *testing.T) {
		got := th.detectMilestone(Observation{TotalReviews: 1000}, &Baseline{TotalReviewsPrev: 999})
		if got == nil {
			t.Fatal("expected milestone at exact boundary")
		}
	})

	t.Run("starting on the threshold does not refire", func(t *testing.T) {
		if got := th.detectMilestone(Observation{TotalReviews: 1001}, &Baseline{TotalReviewsPrev: 1000}); got != nil {
			t.Fatalf("unexpected milestone %+v", got)
		}
	})

	t.Run("severity scales with magnitude", func(t *testing.T) {
		if got := th.detectMilestone(Observation{TotalReviews: 10500}, &Baseline{TotalReviewsPrev: 9500}); got.Severity != SeverityMedium {
			t.Errorf("10K severity = %s, want medium", got.Severity)
		}
		if got := th.detectMilestone(Observation{TotalReviews: 100500}, &Baseline{TotalReviewsPrev: 99500}); got.Severity != SeverityHigh {
			t.Errorf("100K severity = %s, want high", got.Severity)
		}
	})
}

func TestClassifyTrend(t *testing.T) {
	tests := []struct {
		recent, prior float64
		want          TrendDirection
	}{
		{110, 100, TrendUp},      // +10%
		{104, 100, TrendStable},  // +4% inside deadband
		{96, 100, TrendStable},   // -4%
		{90, 100, TrendDown},     // -10%
		{105, 100, TrendStable},  // boundary is stable
		{100, 0, TrendStable},    // no prior data
		{0, 100, TrendDown},      // -100%
	}
	for _, tt := range tests {
		if got := classifyTrend(tt.recent, tt.prior); got != tt.want {
			t.Errorf("classifyTrend(%v, %v) = %s, want %s", tt.recent, tt.prior, got, tt.want)
		}
	}
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{100, "100"},
		{500, "500"},
		{1000, "1K"},
		{50000, "50K"},
		{1000000, "1M"},
	}
	for _, tt := range tests {
		if got := formatCount(tt.n); got != tt.want {
			t.Errorf("formatCount(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
