package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/magsand/smartcharge/core/events"
	"github.com/magsand/smartcharge/core/logger"
	"github.com/magsand/smartcharge/core/model"
	"github.com/magsand/smartcharge/internal/eventbus"
)

// Commander issues start/stop commands to the charger hardware. Commands are
// idempotent and safe to repeat.
type Commander interface {
	StartCharging(ctx context.Context) error
	StopCharging(ctx context.Context) error
}

// Input carries everything one reconciliation pass needs. The supervisor
// never reads the outside world itself; the control loop hands it fresh
// readbacks so that recovery from Unknown is stateless.
type Input struct {
	Now      time.Time
	Schedule model.ChargeSchedule
	// Readback is the charger's reported state. ReadbackUnknown means the
	// read failed or timed out.
	Readback model.Readback
	// Present reports whether the vehicle is at the charging location.
	Present bool
	// Continuous forces charging regardless of slot selection. Deadline
	// rescue and the initial time-needed measurement both use it.
	Continuous bool
	// Reason documents why Continuous is set.
	Reason string
}

// Supervisor owns the authoritative charger state and maps schedule decisions
// onto start/stop commands. Command emission is the only point where the core
// writes to the outside world.
type Supervisor struct {
	commander Commander
	bus       eventbus.EventBus
	log       logger.Logger

	mu    sync.Mutex
	state model.ChargerState
}

// New creates a Supervisor in the Idle state.
func New(commander Commander, bus eventbus.EventBus, log logger.Logger) (*Supervisor, error) {
	if commander == nil {
		return nil, fmt.Errorf("supervisor: nil commander")
	}
	return &Supervisor{commander: commander, bus: bus, log: log, state: model.StateIdle}, nil
}

// State returns the current charger state.
func (s *Supervisor) State() model.ChargerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reconcile runs one transition against fresh readbacks and the current
// schedule, issuing at most one command. With an unavailable readback it
// moves to Unknown and suppresses commands; on recovery the next state is
// derived purely from the fresh readback plus the schedule, never from the
// pre-Unknown state.
func (s *Supervisor) Reconcile(ctx context.Context, in Input) model.ChargerState {
	s.mu.Lock()
	prev := s.state
	s.mu.Unlock()

	var next model.ChargerState
	wantCharging := (in.Continuous || in.Schedule.SelectedAt(in.Now)) && in.Present

	switch {
	case in.Readback == model.ReadbackUnknown:
		next = model.StateUnknown
		if prev != model.StateUnknown {
			s.log.Warnf("readback unavailable, suppressing commands")
		}
	case in.Readback == model.ReadbackComplete:
		next = model.StateComplete
		if prev != model.StateComplete {
			s.command(ctx, in.Now, "stop", "charging complete")
		}
	case wantCharging:
		next = model.StateCharging
		if in.Readback != model.ReadbackCharging {
			reason := "inside selected slot"
			if in.Continuous {
				reason = in.Reason
			}
			s.command(ctx, in.Now, "start", reason)
		}
	case in.Readback == model.ReadbackCharging:
		next = model.StateStopped
		reason := "outside selected slots"
		if !in.Present {
			reason = "vehicle not at charging location"
		}
		s.command(ctx, in.Now, "stop", reason)
	case !in.Schedule.IsEmpty():
		next = model.StateScheduled
	default:
		next = model.StateIdle
	}

	if next != prev {
		s.log.Infof("state %s -> %s", prev, next)
		if s.bus != nil {
			s.bus.Publish(events.StateChangeEvent{From: prev, To: next, Time: in.Now})
		}
	}
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
	return next
}

func (s *Supervisor) command(ctx context.Context, now time.Time, cmd, reason string) {
	var err error
	switch cmd {
	case "start":
		err = s.commander.StartCharging(ctx)
	case "stop":
		err = s.commander.StopCharging(ctx)
	}
	if err != nil {
		s.log.Errorf("%s command failed: %v", cmd, err)
	} else {
		s.log.Infof("issued %s: %s", cmd, reason)
	}
	if s.bus != nil {
		s.bus.Publish(events.CommandEvent{Command: cmd, Reason: reason, Err: err, Time: now})
	}
}
