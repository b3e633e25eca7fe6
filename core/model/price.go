package model

import "time"

// PricePoint is one known hourly price. HourStart is truncated to the hour
// in the location the source publishes for.
type PricePoint struct {
	HourStart time.Time `json:"hour_start"`
	Price     float64   `json:"price"`
}

// End returns the exclusive end of the hour slot.
func (p PricePoint) End() time.Time { return p.HourStart.Add(time.Hour) }

// PriceTimeline is an ordered sequence of known hourly prices from the
// current hour onward. Hours without a published price are simply absent:
// a gap between today's and tomorrow's series never reads as a zero price.
// Timelines are rebuilt from the raw sources on every evaluation and are
// never mutated in place.
type PriceTimeline struct {
	Points []PricePoint
}

// IsEmpty reports whether the timeline holds no known prices.
func (t PriceTimeline) IsEmpty() bool { return len(t.Points) == 0 }

// PriceAt returns the price of the slot covering the given instant.
func (t PriceTimeline) PriceAt(at time.Time) (float64, bool) {
	for _, p := range t.Points {
		if !at.Before(p.HourStart) && at.Before(p.End()) {
			return p.Price, true
		}
	}
	return 0, false
}

// Span returns the first and last known hour starts.
func (t PriceTimeline) Span() (time.Time, time.Time, bool) {
	if t.IsEmpty() {
		return time.Time{}, time.Time{}, false
	}
	return t.Points[0].HourStart, t.Points[len(t.Points)-1].HourStart, true
}
