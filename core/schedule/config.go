package schedule

import "fmt"

// Rounding selects how fractional required hours map to whole slots.
type Rounding string

const (
	// RoundUp always books a full slot for a partial hour.
	RoundUp Rounding = "up"
	// RoundNearest books a slot only when more than half an hour remains.
	RoundNearest Rounding = "nearest"
)

// Config defines selection policy parameters loaded from configuration.
type Config struct {
	Rounding Rounding `json:"rounding"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Rounding == "" {
		c.Rounding = RoundUp
	}
}

// Validate checks the rounding policy.
func (c Config) Validate() error {
	if c.Rounding != RoundUp && c.Rounding != RoundNearest {
		return fmt.Errorf("unknown rounding %q", c.Rounding)
	}
	return nil
}
