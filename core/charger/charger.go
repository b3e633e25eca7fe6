package charger

import (
	"context"
	"errors"

	"github.com/magsand/smartcharge/core/model"
)

// ErrReadbackTimeout is returned when a live hardware or sensor read does not
// answer in time. The supervisor treats it as grounds for the Unknown state.
var ErrReadbackTimeout = errors.New("charger: readback timeout")

// Charger is the capability set one vehicle brand integration must provide.
// There is one implementation per brand, not an inheritance hierarchy.
type Charger interface {
	// ChargingState reads the charger's reported state.
	ChargingState(ctx context.Context) (model.Readback, error)
	// Presence reports whether the vehicle is at the charging location.
	Presence(ctx context.Context) (bool, error)
	// RemainingHours reads the live time-to-full-charge estimate in hours.
	RemainingHours(ctx context.Context) (float64, error)
	// StartCharging and StopCharging are idempotent and safe to repeat.
	StartCharging(ctx context.Context) error
	StopCharging(ctx context.Context) error
}
