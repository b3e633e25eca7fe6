package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/magsand/smartcharge/config"
	"github.com/magsand/smartcharge/core/events"
	coremetrics "github.com/magsand/smartcharge/core/metrics"
	"github.com/magsand/smartcharge/core/model"
	corenotify "github.com/magsand/smartcharge/core/notify"
	"github.com/magsand/smartcharge/core/price"
	"github.com/magsand/smartcharge/core/schedule"
	"github.com/magsand/smartcharge/core/supervisor"
	"github.com/magsand/smartcharge/infra/logger"
	"github.com/magsand/smartcharge/infra/metrics"
	"github.com/magsand/smartcharge/infra/mqtt"
	"github.com/magsand/smartcharge/infra/notify"
	"github.com/magsand/smartcharge/internal/eventbus"
)

// chargerBridge is the slice of the MQTT bridge the control loop reads and
// writes. Kept narrow so the loop can run against a fake in tests.
type chargerBridge interface {
	Active() bool
	ChargingState(ctx context.Context) (model.Readback, error)
	Presence(ctx context.Context) (bool, error)
	RemainingHours(ctx context.Context) (float64, error)
	OverrideFinish() (string, bool)
	PublishStatus(st mqtt.Status)
	Disconnect()
}

// Service wires the bridge, normalizer, selector and supervisor together and
// drives the re-evaluation loop.
type Service struct {
	cfg        *config.Config
	bridge     chargerBridge
	normalizer *price.Normalizer
	selector   *schedule.Selector
	sup        *supervisor.Supervisor
	bus        *eventbus.Bus
	log        logger.Logger
	notifier   corenotify.Notifier
	sink       coremetrics.Sink

	// Evaluation state. Touched only by the single evaluation pass, so no
	// locking is needed.
	lastRemaining float64
	hasRemaining  bool
	rescue        bool
	dataLost      bool
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	bus := eventbus.New()
	bridge, err := mqtt.NewBridge(cfg.MQTT, bus)
	if err != nil {
		return nil, fmt.Errorf("mqtt bridge: %w", err)
	}

	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink()
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}
	var sink coremetrics.Sink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	notifier, err := notify.New(cfg.Pushover)
	if err != nil {
		return nil, fmt.Errorf("pushover: %w", err)
	}
	normalizer, err := price.NewNormalizer(bridge, cfg.Schedule.Sources, logger.New("normalizer"))
	if err != nil {
		return nil, err
	}
	selector, err := schedule.NewSelector(cfg.Schedule.Selection)
	if err != nil {
		return nil, err
	}
	sup, err := supervisor.New(bridge, bus, logger.New("supervisor"))
	if err != nil {
		return nil, err
	}

	return &Service{
		cfg:        cfg,
		bridge:     bridge,
		normalizer: normalizer,
		selector:   selector,
		sup:        sup,
		bus:        bus,
		log:        logg,
		notifier:   notifier,
		sink:       sink,
	}, nil
}

// Run starts the control loop and blocks until the context is cancelled.
// Every trigger performs one full synchronous pass; triggers arriving while
// a pass runs are coalesced into a single subsequent pass.
func (s *Service) Run(ctx context.Context) error {
	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	metrics.StartEventCollector(ctx, s.bus, s.sink)

	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)
	ticker := time.NewTicker(s.cfg.Schedule.PollInterval())
	defer ticker.Stop()
	hourTick := time.NewTimer(untilNextHour(time.Now()))
	defer hourTick.Stop()

	s.evaluate(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-hourTick.C:
			hourTick.Reset(untilNextHour(time.Now()))
		case ev, ok := <-sub:
			if !ok {
				return nil
			}
			if !s.shouldTrigger(ev) {
				continue
			}
		}
		s.drain(sub)
		s.evaluate(ctx, time.Now())
	}
}

// shouldTrigger filters bus events down to the ones that warrant a new pass.
// The supervisor's own command/state/evaluation events never re-trigger the
// loop, and remaining-time updates only count when they move by more than
// the configured tolerance.
func (s *Service) shouldTrigger(ev eventbus.Event) bool {
	switch e := ev.(type) {
	case events.CommandEvent, events.StateChangeEvent, events.EvaluationEvent:
		return false
	case events.RemainingEvent:
		if !s.hasRemaining {
			return true
		}
		return math.Abs(e.Hours-s.lastRemaining) > s.cfg.Schedule.RemainingTolerance().Hours()
	default:
		return true
	}
}

func (s *Service) drain(sub <-chan eventbus.Event) {
	for {
		select {
		case _, ok := <-sub:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// evaluate runs one normalize, select, reconcile pass and emits at most one
// charger command.
func (s *Service) evaluate(ctx context.Context, now time.Time) {
	if !s.bridge.Active() {
		s.log.Debugf("scheduling inactive via kill switch")
		s.bridge.PublishStatus(mqtt.Status{State: "inactive", Reason: "deactivated by operator"})
		return
	}

	readback, rbErr := s.bridge.ChargingState(ctx)
	present, presErr := s.bridge.Presence(ctx)
	remaining, remErr := s.bridge.RemainingHours(ctx)

	// The time-to-full estimate free-runs while the charger is off, so it is
	// trusted only when the readback confirms charging. A completed cycle
	// keeps the last positive estimate: the supervisor gates on the live
	// Complete readback, and the stale estimate lets a returning vehicle
	// reschedule instead of idling on a latched zero.
	if rbErr == nil && remErr == nil && readback == model.ReadbackCharging && remaining > 0 {
		s.lastRemaining = remaining
		s.hasRemaining = true
	}

	earliest, latest := s.cfg.Schedule.Window()
	if ov, ok := s.bridge.OverrideFinish(); ok {
		if d, err := schedule.ParseClock(ov); err == nil {
			latest = d
		} else {
			s.log.Warnf("ignoring bad override %q: %v", ov, err)
		}
	}
	start, finish := schedule.ResolveWindow(now, earliest, latest)

	tl, err := s.normalizer.Normalize(ctx, now)
	if err != nil {
		s.log.Warnf("evaluation skipped: %v", err)
		s.emitEvaluation("data_unavailable", model.ChargeSchedule{}, s.sup.State(), now)
		s.bridge.PublishStatus(mqtt.Status{
			State:       s.sup.State().String(),
			Reason:      "price data unavailable",
			HoursNeeded: s.lastRemaining,
		})
		if !s.dataLost {
			s.dataLost = true
			s.notify("Price data unavailable", err.Error())
		}
		return
	}
	s.dataLost = false

	required := s.lastRemaining
	if !s.hasRemaining {
		required = 0
	}
	sch := s.selector.Select(tl, model.ScheduleConstraints{
		RequiredHours: required,
		EarliestStart: start,
		LatestFinish:  finish,
	}, now)

	continuous := false
	reason := ""
	if !s.hasRemaining && rbErr == nil && readback != model.ReadbackComplete {
		// No estimate yet: charge until the vehicle starts reporting one.
		continuous = true
		reason = "measuring time needed"
	}
	if !sch.Feasible {
		continuous = true
		reason = "deadline cannot be met cost-optimally"
		if !s.rescue {
			s.rescue = true
			s.log.Warnf("only %d eligible hours for %.1fh of charging, charging continuously until %s",
				len(sch.Slots), required, finish.Format(time.RFC3339))
			s.notify("Deadline rescue", fmt.Sprintf(
				"Not enough cheap hours before %s, charging continuously.", finish.Format("15:04")))
		}
	} else if s.rescue {
		s.rescue = false
		s.log.Infof("schedule feasible again, leaving rescue mode")
	}

	in := supervisor.Input{
		Now:        now,
		Schedule:   sch,
		Readback:   readback,
		Present:    present,
		Continuous: continuous,
		Reason:     reason,
	}
	if rbErr != nil || presErr != nil {
		in.Readback = model.ReadbackUnknown
	}
	state := s.sup.Reconcile(ctx, in)

	result := "ok"
	if !sch.Feasible {
		result = "infeasible"
	}
	s.emitEvaluation(result, sch, state, now)
	s.publishStatus(state, sch, reason)
}

func (s *Service) emitEvaluation(result string, sch model.ChargeSchedule, state model.ChargerState, now time.Time) {
	s.bus.Publish(events.EvaluationEvent{
		Result:    result,
		Slots:     len(sch.Slots),
		TotalCost: sch.TotalCost,
		MeanPrice: sch.MeanEligiblePrice,
		Feasible:  sch.Feasible,
		State:     state,
		Time:      now,
	})
}

func (s *Service) publishStatus(state model.ChargerState, sch model.ChargeSchedule, reason string) {
	st := mqtt.Status{
		State:         state.String(),
		Reason:        reason,
		HoursNeeded:   s.lastRemaining,
		Slots:         sch.Slots,
		ProjectedCost: sch.TotalCost,
		Feasible:      sch.Feasible,
	}
	if t, ok := sch.NextStart(); ok {
		st.NextStart = t.Format(time.RFC3339)
	}
	if t, ok := sch.NextStop(); ok {
		st.NextStop = t.Format(time.RFC3339)
	}
	s.bridge.PublishStatus(st)
}

func (s *Service) notify(title, message string) {
	go func() {
		if err := s.notifier.Notify(title, message); err != nil {
			s.log.Errorf("notify: %v", err)
		}
	}()
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bridge.Disconnect()
	s.bus.Close()
	return nil
}

func untilNextHour(now time.Time) time.Duration {
	next := now.Truncate(time.Hour).Add(time.Hour)
	return next.Sub(now)
}
