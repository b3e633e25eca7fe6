package events

import (
	"time"

	"github.com/magsand/smartcharge/core/model"
)

// TickEvent marks an hour boundary or a polling interval firing.
type TickEvent struct {
	Time time.Time
}

// PriceUpdateEvent signals that a raw price source published new data.
type PriceUpdateEvent struct {
	Source string
}

// ReadbackEvent signals a change in the charger's reported state.
type ReadbackEvent struct {
	Readback model.Readback
}

// PresenceEvent signals a change in the vehicle's location reading.
type PresenceEvent struct {
	Present bool
}

// RemainingEvent signals a new time-to-full-charge estimate.
type RemainingEvent struct {
	Hours float64
}

// OverrideEvent signals a change of the manual latest-finish override.
type OverrideEvent struct {
	Value string
}

// ActiveEvent signals the operator kill-switch flipping.
type ActiveEvent struct {
	Active bool
}

// CommandEvent is published around every start/stop command issued to the
// charger, the only writes the core performs against the outside world.
type CommandEvent struct {
	Command string
	Reason  string
	Err     error
	Time    time.Time
}

// StateChangeEvent records a supervisor transition.
type StateChangeEvent struct {
	From   model.ChargerState
	To     model.ChargerState
	Reason string
	Time   time.Time
}

// EvaluationEvent summarizes one full control-loop pass.
type EvaluationEvent struct {
	Result    string
	Slots     int
	TotalCost float64
	MeanPrice float64
	Feasible  bool
	State     model.ChargerState
	Time      time.Time
}
