package booking

import "flexify/models"

var durationMultipliers = map[models.Duration]float64{
	models.DurationHourly:  1,
	models.DurationDaily:   8,
	models.DurationWeekly:  40,
	models.DurationMonthly: 160,
}

var urgencyMultipliers = map[models.Urgency]float64{
	models.UrgencyNormal:    1,
	models.UrgencyUrgent:    1.5,
	models.UrgencyEmergency: 2,
}

// DurationMultiplier returns the hour multiplier for d. Empty means hourly.
func DurationMultiplier(d models.Duration) (float64, bool) {
	if d == "" {
		d = models.DurationHourly
	}
	m, ok := durationMultipliers[d]
	return m, ok
}

// UrgencyMultiplier returns the surcharge multiplier for u. Empty means normal.
func UrgencyMultiplier(u models.Urgency) (float64, bool) {
	if u == "" {
		u = models.UrgencyNormal
	}
	m, ok := urgencyMultipliers[u]
	return m, ok
}

// Price is a computed quote. Total is always Base + UrgencyExtra.
type Price struct {
	Base         float64 `json:"basePrice"`
	UrgencyExtra float64 `json:"urgencyExtra"`
	Total        float64 `json:"totalPrice"`
}

// Quote prices a booking:
//
//	base  = categoryRate × durationMultiplier × durationValue
//	extra = base × (urgencyMultiplier − 1)
//	total = base + extra
//
// A durationValue below 1 counts as 1. It reports false for an unknown
// category, duration or urgency.
func Quote(category string, d models.Duration, durationValue int, u models.Urgency) (Price, bool) {
	cat, ok := LookupCategory(category)
	if !ok {
		return Price{}, false
	}
	dm, ok := DurationMultiplier(d)
	if !ok {
		return Price{}, false
	}
	um, ok := UrgencyMultiplier(u)
	if !ok {
		return Price{}, false
	}
	if durationValue < 1 {
		durationValue = 1
	}
	base := cat.BasePrice * dm * float64(durationValue)
	extra := base * (um - 1)
	return Price{Base: base, UrgencyExtra: extra, Total: base + extra}, true
}

// DurationEstimate is the per-option price shown next to each duration
// choice: one unit of d at normal urgency.
func DurationEstimate(category string, d models.Duration) (float64, bool) {
	p, ok := Quote(category, d, 1, models.UrgencyNormal)
	return p.Base, ok
}
