package schedule

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/magsand/smartcharge/core/model"
)

// Selector picks the cheapest hour slots that satisfy the timing constraints.
type Selector struct {
	cfg Config
}

// NewSelector creates a Selector with the given policy.
func NewSelector(cfg Config) (*Selector, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Selector{cfg: cfg}, nil
}

// SlotsNeeded converts a required duration in hours to whole slots according
// to the configured rounding policy.
func (s *Selector) SlotsNeeded(hours float64) int {
	if hours <= 0 {
		return 0
	}
	switch s.cfg.Rounding {
	case RoundNearest:
		return int(math.Round(hours))
	default:
		return int(math.Ceil(hours))
	}
}

// Select returns the schedule covering the required duration at minimal cost.
// Eligible slots are the known-price hours inside
// [max(now, EarliestStart), LatestFinish); ties on price resolve to the
// earlier hour. When fewer eligible slots exist than needed, the schedule is
// marked infeasible and carries every remaining eligible slot so the caller
// can charge continuously. A zero required duration yields an empty feasible
// schedule.
func (s *Selector) Select(tl model.PriceTimeline, c model.ScheduleConstraints, now time.Time) model.ChargeSchedule {
	needed := s.SlotsNeeded(c.RequiredHours)
	if needed == 0 {
		return model.ChargeSchedule{Feasible: true}
	}

	// A slot is eligible when it lies inside the window: it must end after
	// now, begin at or after the earliest start, and begin before the latest
	// finish. The only slot allowed to straddle the earliest start is the one
	// covering the current partial hour, which is already in effect.
	var eligible []model.PricePoint
	prices := make([]float64, 0, len(tl.Points))
	for _, p := range tl.Points {
		if !p.End().After(now) || !p.End().After(c.EarliestStart) || !p.HourStart.Before(c.LatestFinish) {
			continue
		}
		current := !now.Before(p.HourStart) && now.Before(p.End())
		if p.HourStart.Before(c.EarliestStart) && !current {
			continue
		}
		eligible = append(eligible, p)
		prices = append(prices, p.Price)
	}

	var mean float64
	if len(prices) > 0 {
		mean = stat.Mean(prices, nil)
	}

	// Stable sort over the time-ordered slice keeps the earlier hour first
	// among equally priced slots.
	sorted := make([]model.PricePoint, len(eligible))
	copy(sorted, eligible)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })

	feasible := len(sorted) >= needed
	if !feasible {
		needed = len(sorted)
	}
	selected := make([]model.PricePoint, needed)
	copy(selected, sorted[:needed])
	sort.Slice(selected, func(i, j int) bool {
		return selected[i].HourStart.Before(selected[j].HourStart)
	})

	total := 0.0
	for _, p := range selected {
		total += p.Price
	}
	return model.ChargeSchedule{
		Slots:             selected,
		TotalCost:         total,
		MeanEligiblePrice: mean,
		Feasible:          feasible,
	}
}
