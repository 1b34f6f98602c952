package alerts

// Preferences are a subscriber's global alert settings.
type Preferences struct {
	SubscriberID    string
	AlertsEnabled   bool
	Sensitivity     float64 // higher = lower thresholds = more alerts
	CCUAlerts       bool
	TrendAlerts     bool
	SurgeAlerts     bool
	SentimentAlerts bool
	MilestoneAlerts bool
}

// DefaultPreferences returns the settings applied when a subscriber has no
// preference row.
func DefaultPreferences(subscriberID string) Preferences {
	return Preferences{
		SubscriberID:    subscriberID,
		AlertsEnabled:   true,
		Sensitivity:     1,
		CCUAlerts:       true,
		TrendAlerts:     true,
		SurgeAlerts:     true,
		SentimentAlerts: true,
		MilestoneAlerts: true,
	}
}

// PinSettings are per-subscription overrides. A nil field inherits the
// subscriber's global preference.
type PinSettings struct {
	AlertsEnabled   *bool
	Sensitivity     *float64
	CCUAlerts       *bool
	TrendAlerts     *bool
	SurgeAlerts     *bool
	SentimentAlerts *bool
	MilestoneAlerts *bool
}

// Effective is the resolved per-subscription configuration used by the
// detectors.
type Effective struct {
	AlertsEnabled   bool
	Sensitivity     float64
	CCUAlerts       bool
	TrendAlerts     bool
	SurgeAlerts     bool
	SentimentAlerts bool
	MilestoneAlerts bool
}

// ResolveEffective merges pin overrides over global preferences, field by
// field. Sensitivity is clamped to a sane positive range so a bad row can
// never zero out a divisor.
func ResolveEffective(global Preferences, pin PinSettings) Effective {
	eff := Effective{
		AlertsEnabled:   global.AlertsEnabled,
		Sensitivity:     global.Sensitivity,
		CCUAlerts:       global.CCUAlerts,
		TrendAlerts:     global.TrendAlerts,
		SurgeAlerts:     global.SurgeAlerts,
		SentimentAlerts: global.SentimentAlerts,
		MilestoneAlerts: global.MilestoneAlerts,
	}
	if pin.AlertsEnabled != nil {
		eff.AlertsEnabled = *pin.AlertsEnabled
	}
	if pin.Sensitivity != nil {
		eff.Sensitivity = *pin.Sensitivity
	}
	if pin.CCUAlerts != nil {
		eff.CCUAlerts = *pin.CCUAlerts
	}
	if pin.TrendAlerts != nil {
		eff.TrendAlerts = *pin.TrendAlerts
	}
	if pin.SurgeAlerts != nil {
		eff.SurgeAlerts = *pin.SurgeAlerts
	}
	if pin.SentimentAlerts != nil {
		eff.SentimentAlerts = *pin.SentimentAlerts
	}
	if pin.MilestoneAlerts != nil {
		eff.MilestoneAlerts = *pin.MilestoneAlerts
	}
	if eff.Sensitivity < 0.25 {
		eff.Sensitivity = 0.25
	}
	if eff.Sensitivity > 4 {
		eff.Sensitivity = 4
	}
	return eff
}
