package model

import "time"

// ScheduleConstraints bound a charge window. EarliestStart and LatestFinish
// are absolute instants resolved from the configured times of day (and the
// optional manual override) for the current cycle.
type ScheduleConstraints struct {
	RequiredHours float64
	EarliestStart time.Time
	LatestFinish  time.Time
}

// ChargeSchedule is the set of hour slots selected for charging, ordered by
// time, plus the projected cost. An infeasible schedule still carries every
// remaining eligible slot so the supervisor can fall back to continuous
// charging.
type ChargeSchedule struct {
	Slots []PricePoint
	// TotalCost is the sum of the selected slot prices.
	TotalCost float64
	// MeanEligiblePrice is the mean price over all eligible slots, used to
	// report the projected saving of the selection.
	MeanEligiblePrice float64
	// Feasible is false when fewer eligible known-price slots exist than the
	// required duration demands.
	Feasible bool
}

// IsEmpty reports whether no slots are selected.
func (s ChargeSchedule) IsEmpty() bool { return len(s.Slots) == 0 }

// SelectedAt reports whether the given instant falls inside a selected slot.
func (s ChargeSchedule) SelectedAt(at time.Time) bool {
	for _, p := range s.Slots {
		if !at.Before(p.HourStart) && at.Before(p.End()) {
			return true
		}
	}
	return false
}

// NextStart returns the start of the first selected slot.
func (s ChargeSchedule) NextStart() (time.Time, bool) {
	if s.IsEmpty() {
		return time.Time{}, false
	}
	return s.Slots[0].HourStart, true
}

// NextStop returns the end of the first contiguous run of selected slots.
func (s ChargeSchedule) NextStop() (time.Time, bool) {
	if s.IsEmpty() {
		return time.Time{}, false
	}
	stop := s.Slots[0].End()
	for _, p := range s.Slots[1:] {
		if !p.HourStart.Equal(stop) {
			break
		}
		stop = p.End()
	}
	return stop, true
}
