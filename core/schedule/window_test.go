package schedule

import (
	"testing"
	"time"

	"github.com/magsand/smartcharge/core/model"
)

func TestParseClock(t *testing.T) {
	d, err := ParseClock("07:30")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d != 7*time.Hour+30*time.Minute {
		t.Fatalf("got %v", d)
	}
	for _, bad := range []string{"", "7", "25:00", "07:61", "ab:cd"} {
		if _, err := ParseClock(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestResolveWindowSameDay(t *testing.T) {
	now := time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC)
	start, finish := ResolveWindow(now, 3*time.Hour, 7*time.Hour+30*time.Minute)
	if !finish.Equal(time.Date(2025, 3, 10, 7, 30, 0, 0, time.UTC)) {
		t.Fatalf("finish %v", finish)
	}
	if !start.Equal(time.Date(2025, 3, 10, 3, 0, 0, 0, time.UTC)) {
		t.Fatalf("start %v", start)
	}
}

func TestResolveWindowEarliestAlreadyPassed(t *testing.T) {
	now := time.Date(2025, 3, 10, 4, 0, 0, 0, time.UTC)
	start, finish := ResolveWindow(now, 3*time.Hour, 7*time.Hour+30*time.Minute)
	if !finish.Equal(time.Date(2025, 3, 10, 7, 30, 0, 0, time.UTC)) {
		t.Fatalf("finish %v", finish)
	}
	if !start.Equal(now) {
		t.Fatalf("start %v, want now", start)
	}
}

func TestResolveWindowWrapsToTomorrow(t *testing.T) {
	now := time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC)
	start, finish := ResolveWindow(now, 0, 7*time.Hour)
	if !finish.Equal(time.Date(2025, 3, 11, 7, 0, 0, 0, time.UTC)) {
		t.Fatalf("finish %v", finish)
	}
	// The deadline wraps but the window opens now: tonight's hours stay in.
	if !start.Equal(now) {
		t.Fatalf("start %v, want now", start)
	}
}

func TestResolveWindowKeepsTonightCheapHours(t *testing.T) {
	now := time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC)
	var points []model.PricePoint
	for h := 20; h < 24; h++ {
		price := 50.0
		if h >= 22 {
			price = 1.0
		}
		points = append(points, model.PricePoint{
			HourStart: time.Date(2025, 3, 10, h, 0, 0, 0, time.UTC), Price: price,
		})
	}
	for h := 0; h < 7; h++ {
		points = append(points, model.PricePoint{
			HourStart: time.Date(2025, 3, 11, h, 0, 0, 0, time.UTC), Price: 50.0,
		})
	}

	start, finish := ResolveWindow(now, 0, 7*time.Hour)
	sel, _ := NewSelector(Config{})
	sch := sel.Select(model.PriceTimeline{Points: points}, model.ScheduleConstraints{
		RequiredHours: 2,
		EarliestStart: start,
		LatestFinish:  finish,
	}, now)
	if !sch.Feasible || len(sch.Slots) != 2 {
		t.Fatalf("schedule %+v", sch)
	}
	if !sch.Slots[0].HourStart.Equal(time.Date(2025, 3, 10, 22, 0, 0, 0, time.UTC)) {
		t.Errorf("first slot %v, want tonight 22:00", sch.Slots[0].HourStart)
	}
	if sch.TotalCost != 2 {
		t.Errorf("cost %v, want the two cheap night hours", sch.TotalCost)
	}
}
