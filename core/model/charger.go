package model

// ChargerState is the supervisor's authoritative notion of where the charge
// cycle stands. It is owned exclusively by the supervisor and reset on
// restart; it is never persisted.
type ChargerState int

const (
	StateIdle ChargerState = iota
	StateScheduled
	StateCharging
	StateStopped
	StateComplete
	StateUnknown
)

// String returns a human-readable representation of the state.
func (s ChargerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScheduled:
		return "scheduled"
	case StateCharging:
		return "charging"
	case StateStopped:
		return "stopped"
	case StateComplete:
		return "complete"
	case StateUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Readback is the charger hardware's reported state, as opposed to the
// supervisor's commanded intent.
type Readback int

const (
	ReadbackUnknown Readback = iota
	ReadbackStopped
	ReadbackCharging
	ReadbackComplete
)

// String returns a human-readable representation of the readback.
func (r Readback) String() string {
	switch r {
	case ReadbackStopped:
		return "stopped"
	case ReadbackCharging:
		return "charging"
	case ReadbackComplete:
		return "complete"
	default:
		return "unknown"
	}
}
