package alerts

import (
	"context"
	"testing"
	"time"
)

// --------------------------------------------------------------------------
// In-memory stores
// --------------------------------------------------------------------------

type memSubs struct {
	subs []Subscription
	obs  map[int64]Observation
}

func (s *memSubs) Subscriptions(context.Context) ([]Subscription, error) { return s.subs, nil }

func (s *memSubs) Observations(_ context.Context, appIDs []int64) (map[int64]Observation, error) {
	out := make(map[int64]Observation)
	for _, id := range appIDs {
		if o, ok := s.obs[id]; ok {
			out[id] = o
		}
	}
	return out, nil
}

type memBaselines struct {
	baselines map[int64]Baseline
	upserts   int
}

func (s *memBaselines) Baselines(_ context.Context, appIDs []int64) (map[int64]Baseline, error) {
	out := make(map[int64]Baseline)
	for _, id := range appIDs {
		if b, ok := s.baselines[id]; ok {
			out[id] = b
		}
	}
	return out, nil
}

func (s *memBaselines) Upsert(_ context.Context, b Baseline) error {
	if s.baselines == nil {
		s.baselines = make(map[int64]Baseline)
	}
	s.baselines[b.AppID] = b
	s.upserts++
	return nil
}

// memAlerts enforces dedup_key uniqueness the way the unique index does.
type memAlerts struct {
	byKey map[string]Alert
}

func (s *memAlerts) Insert(_ context.Context, a Alert) (bool, error) {
	if s.byKey == nil {
		s.byKey = make(map[string]Alert)
	}
	if _, exists := s.byKey[a.DedupKey]; exists {
		return false, nil
	}
	s.byKey[a.DedupKey] = a
	return true, nil
}

type memLedger struct {
	nextID    int64
	completed int
	failed    int
}

func (l *memLedger) Start(context.Context, string, map[string]any) (int64, error) {
	l.nextID++
	return l.nextID, nil
}

func (l *memLedger) Complete(_ context.Context, _ int64, _, _, _ int, _ map[string]any) error {
	l.completed++
	return nil
}

func (l *memLedger) Fail(_ context.Context, _ int64, _ string) error {
	l.failed++
	return nil
}

func newEngine(subs *memSubs, baselines *memBaselines, alerts *memAlerts, now time.Time) *Engine {
	return &Engine{
		Subs:       subs,
		Baselines:  baselines,
		Alerts:     alerts,
		Ledger:     &memLedger{},
		Thresholds: DefaultThresholds(),
		Now:        func() time.Time { return now },
	}
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestEngineCreatesAlertAndDedupsRerun(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	subs := &memSubs{
		subs: []Subscription{{SubscriberID: "sub-1", AppID: 10, Prefs: DefaultPreferences("sub-1")}},
		obs:  map[int64]Observation{10: {AppID: 10, CurrentCCU: 2200}},
	}
	baselines := &memBaselines{baselines: map[int64]Baseline{
		10: {AppID: 10, CCU7dAvg: 1000, UpdatedAt: now.Add(-time.Hour)},
	}}
	alerts := &memAlerts{}
	e := newEngine(subs, baselines, alerts, now)

	result, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.AlertsCreated != 1 {
		t.Fatalf("created = %d, want 1", result.AlertsCreated)
	}
	wantKey := "sub-1:game:10:ccu_spike:2026-08-29"
	if _, ok := alerts.byKey[wantKey]; !ok {
		t.Fatalf("alert keyed %q missing, have %v", wantKey, alerts.byKey)
	}
	// Duration comes from the injected clock, which is frozen here.
	if result.Duration != 0 {
		t.Errorf("duration = %s, want 0 under a frozen clock", result.Duration)
	}

	// Same day, second run: the baseline now reflects the spike but the
	// dedup key guards any repeat detection.
	result2, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result2.AlertsCreated != 0 {
		t.Errorf("second run created %d alerts, want 0", result2.AlertsCreated)
	}
	if len(alerts.byKey) != 1 {
		t.Errorf("stored alerts = %d, want 1", len(alerts.byKey))
	}
}

func TestEngineBaselineWrittenOncePerGame(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	subs := &memSubs{
		subs: []Subscription{
			{SubscriberID: "sub-1", AppID: 10, Prefs: DefaultPreferences("sub-1")},
			{SubscriberID: "sub-2", AppID: 10, Prefs: DefaultPreferences("sub-2")},
			{SubscriberID: "sub-2", AppID: 20, Prefs: DefaultPreferences("sub-2")},
		},
		obs: map[int64]Observation{
			10: {AppID: 10, CurrentCCU: 2200},
			20: {AppID: 20, CurrentCCU: 50},
		},
	}
	baselines := &memBaselines{baselines: map[int64]Baseline{
		10: {AppID: 10, CCU7dAvg: 1000, UpdatedAt: now.Add(-time.Hour)},
	}}
	alerts := &memAlerts{}
	e := newEngine(subs, baselines, alerts, now)

	result, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// Both subscribers of game 10 get their own alert row.
	if result.AlertsCreated != 2 {
		t.Errorf("created = %d, want 2 (one per subscriber)", result.AlertsCreated)
	}
	// Two games evaluated, each baseline written exactly once.
	if baselines.upserts != 2 {
		t.Errorf("baseline upserts = %d, want 2", baselines.upserts)
	}
	if result.GamesEvaluated != 2 {
		t.Errorf("games evaluated = %d, want 2", result.GamesEvaluated)
	}
}

func TestEngineFirstObservationSeedsBaselineQuietly(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	subs := &memSubs{
		subs: []Subscription{{SubscriberID: "sub-1", AppID: 10, Prefs: DefaultPreferences("sub-1")}},
		obs: map[int64]Observation{10: {
			AppID: 10, CurrentCCU: 5000, TotalReviews: 2000, PositiveReviews: 1800,
			TrendDirection: TrendUp,
		}},
	}
	baselines := &memBaselines{}
	e := newEngine(subs, baselines, &memAlerts{}, now)

	result, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.AlertsCreated != 0 || result.Detections != 0 {
		t.Errorf("first observation fired %d detections, want 0", result.Detections)
	}

	b, ok := baselines.baselines[10]
	if !ok {
		t.Fatal("baseline not seeded")
	}
	if b.CCU7dAvg != 5000 {
		t.Errorf("seeded CCU avg = %v, want 5000", b.CCU7dAvg)
	}
	if b.TotalReviewsPrev != 2000 || b.TrendDirectionPrev != TrendUp {
		t.Errorf("seeded prev fields wrong: %+v", b)
	}
	if b.PositiveRatioPrev != 0.9 {
		t.Errorf("seeded ratio = %v, want 0.9", b.PositiveRatioPrev)
	}
}

func TestEngineRespectsDisabledAlerts(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	off := DefaultPreferences("sub-1")
	off.AlertsEnabled = false
	subs := &memSubs{
		subs: []Subscription{{SubscriberID: "sub-1", AppID: 10, Prefs: off}},
		obs:  map[int64]Observation{10: {AppID: 10, CurrentCCU: 9000}},
	}
	baselines := &memBaselines{baselines: map[int64]Baseline{
		10: {AppID: 10, CCU7dAvg: 1000, UpdatedAt: now.Add(-time.Hour)},
	}}
	e := newEngine(subs, baselines, &memAlerts{}, now)

	result, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Detections != 0 {
		t.Errorf("disabled subscriber got %d detections, want 0", result.Detections)
	}
	// The game still gets its baseline refreshed.
	if baselines.upserts != 1 {
		t.Errorf("baseline upserts = %d, want 1", baselines.upserts)
	}
}

func TestEnginePerPinDetectorToggle(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	subs := &memSubs{
		subs: []Subscription{{
			SubscriberID: "sub-1",
			AppID:        10,
			Prefs:        DefaultPreferences("sub-1"),
			Pin:          PinSettings{CCUAlerts: boolPtr(false)},
		}},
		obs: map[int64]Observation{10: {AppID: 10, CurrentCCU: 9000}},
	}
	baselines := &memBaselines{baselines: map[int64]Baseline{
		10: {AppID: 10, CCU7dAvg: 1000, UpdatedAt: now.Add(-time.Hour)},
	}}
	e := newEngine(subs, baselines, &memAlerts{}, now)

	result, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Detections != 0 {
		t.Errorf("pin-disabled detector still fired %d detections", result.Detections)
	}
}

func TestEngineSkipsGamesWithoutObservations(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	subs := &memSubs{
		subs: []Subscription{{SubscriberID: "sub-1", AppID: 99, Prefs: DefaultPreferences("sub-1")}},
		obs:  map[int64]Observation{},
	}
	baselines := &memBaselines{}
	e := newEngine(subs, baselines, &memAlerts{}, now)

	result, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.GamesEvaluated != 0 || baselines.upserts != 0 {
		t.Errorf("game without observation evaluated: %+v", result)
	}
}

func TestNextBaselineEMA(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	base := &Baseline{
		AppID:               10,
		CCU7dAvg:            700,
		ReviewVelocity7dAvg: 7,
		UpdatedAt:           now.Add(-24 * time.Hour),
	}
	obs := Observation{AppID: 10, CurrentCCU: 1400, TotalReviews: 100, PositiveReviews: 80}

	next := nextBaseline(base, obs, 14, now)
	if next.CCU7dAvg != 800 { // 700 + (1400-700)/7
		t.Errorf("CCU avg = %v, want 800", next.CCU7dAvg)
	}
	if next.ReviewVelocity7dAvg != 8 { // 7 + (14-7)/7
		t.Errorf("velocity avg = %v, want 8", next.ReviewVelocity7dAvg)
	}
	if next.TotalReviewsPrev != 100 || next.PositiveRatioPrev != 0.8 {
		t.Errorf("prev fields = %+v", next)
	}
	if !next.UpdatedAt.Equal(now) {
		t.Errorf("updated_at = %v, want %v", next.UpdatedAt, now)
	}
}

func TestCurrentVelocity(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	base := &Baseline{TotalReviewsPrev: 100, UpdatedAt: now.Add(-12 * time.Hour)}
	obs := Observation{TotalReviews: 110}
	if got := currentVelocity(base, obs, now); got != 20 { // 10 * 24 / 12
		t.Errorf("velocity = %v, want 20", got)
	}

	if got := currentVelocity(nil, obs, now); got != 0 {
		t.Errorf("nil baseline velocity = %v, want 0", got)
	}

	regressed := &Baseline{TotalReviewsPrev: 200, UpdatedAt: now.Add(-12 * time.Hour)}
	if got := currentVelocity(regressed, obs, now); got != 0 {
		t.Errorf("regressed counter velocity = %v, want 0", got)
	}
}

func TestDedupKeyFormat(t *testing.T) {
	day := time.Date(2026, 8, 29, 23, 45, 0, 0, time.UTC)
	got := DedupKey("sub-1", 570, TypeReviewSurge, day)
	want := "sub-1:game:570:review_surge:2026-08-29"
	if got != want {
		t.Errorf("DedupKey = %q, want %q", got, want)
	}
}
