package config

import (
	"fmt"
	"time"

	"github.com/magsand/smartcharge/core/price"
	"github.com/magsand/smartcharge/core/schedule"
)

// ScheduleConfig defines the charge window, price sources and loop cadence.
type ScheduleConfig struct {
	// LatestFinish is the time of day ("HH:MM") charging must be done by.
	LatestFinish string `json:"latest_finish"`
	// EarliestStart is the time of day charging may begin.
	EarliestStart string `json:"earliest_start"`
	// Sources is the ordered list of raw price sources.
	Sources []price.Source `json:"price_sources"`
	// PollIntervalSeconds is the coarse safety-net re-evaluation interval.
	PollIntervalSeconds int `json:"poll_interval_seconds"`
	// RemainingToleranceMinutes is the change in the time-to-full estimate
	// that forces a re-evaluation.
	RemainingToleranceMinutes int `json:"remaining_tolerance_minutes"`
	// Selection holds the slot selection policy.
	Selection schedule.Config `json:"selection"`

	earliest time.Duration
	latest   time.Duration
}

// SetDefaults applies sane defaults.
func (c *ScheduleConfig) SetDefaults() {
	if c.EarliestStart == "" {
		c.EarliestStart = "00:00"
	}
	if c.PollIntervalSeconds == 0 {
		c.PollIntervalSeconds = 300
	}
	if c.RemainingToleranceMinutes == 0 {
		c.RemainingToleranceMinutes = 5
	}
	c.Selection.SetDefaults()
}

// Validate checks the window and sources. An inverted window is a fatal
// configuration error: the scheduler must not start with an undefined window.
func (c *ScheduleConfig) Validate() error {
	if c.LatestFinish == "" {
		return fmt.Errorf("latest_finish is required")
	}
	latest, err := schedule.ParseClock(c.LatestFinish)
	if err != nil {
		return fmt.Errorf("latest_finish: %w", err)
	}
	earliest, err := schedule.ParseClock(c.EarliestStart)
	if err != nil {
		return fmt.Errorf("earliest_start: %w", err)
	}
	if earliest >= latest {
		return fmt.Errorf("earliest_start %s must be before latest_finish %s", c.EarliestStart, c.LatestFinish)
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one price source is required")
	}
	for _, s := range c.Sources {
		if s.ID == "" {
			return fmt.Errorf("price source without id")
		}
	}
	if err := c.Selection.Validate(); err != nil {
		return err
	}
	c.earliest = earliest
	c.latest = latest
	return nil
}

// Window returns the validated times of day as offsets from midnight.
func (c *ScheduleConfig) Window() (earliest, latest time.Duration) {
	return c.earliest, c.latest
}

// PollInterval returns the safety-net interval as a duration.
func (c *ScheduleConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// RemainingTolerance returns the tolerance as a duration.
func (c *ScheduleConfig) RemainingTolerance() time.Duration {
	return time.Duration(c.RemainingToleranceMinutes) * time.Minute
}
