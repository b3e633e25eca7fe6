package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/magsand/smartcharge/core/metrics"
	"github.com/magsand/smartcharge/core/model"
)

// PromSink records scheduler activity in Prometheus metrics.
type PromSink struct {
	evaluations *prometheus.CounterVec
	commands    *prometheus.CounterVec
	cost        prometheus.Gauge
	slots       prometheus.Gauge
	state       prometheus.Gauge
	feasible    prometheus.Gauge
}

// NewPromSink registers scheduler metrics on the default Prometheus
// registerer. The metrics server is started separately.
func NewPromSink() (coremetrics.Sink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	evaluations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "charge_evaluations_total",
		Help: "Total number of control-loop evaluation passes",
	}, []string{"result"})
	commands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "charger_commands_total",
		Help: "Total number of start/stop commands issued to the charger",
	}, []string{"command", "outcome"})
	cost := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "charge_schedule_cost",
		Help: "Projected total cost of the current schedule",
	})
	slots := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "charge_schedule_slots",
		Help: "Number of selected hour slots in the current schedule",
	})
	state := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "charger_state",
		Help: "Supervisor state (0 idle, 1 scheduled, 2 charging, 3 stopped, 4 complete, 5 unknown)",
	})
	feasible := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "charge_schedule_feasible",
		Help: "Whether the current schedule meets the deadline cost-optimally (1) or rescue mode is active (0)",
	})

	collectors := []prometheus.Collector{evaluations, commands, cost, slots, state, feasible}
	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				collectors[i] = are.ExistingCollector
				continue
			}
			return nil, err
		}
	}
	evaluations = collectors[0].(*prometheus.CounterVec)
	commands = collectors[1].(*prometheus.CounterVec)
	cost = collectors[2].(prometheus.Gauge)
	slots = collectors[3].(prometheus.Gauge)
	state = collectors[4].(prometheus.Gauge)
	feasible = collectors[5].(prometheus.Gauge)

	return &PromSink{
		evaluations: evaluations,
		commands:    commands,
		cost:        cost,
		slots:       slots,
		state:       state,
		feasible:    feasible,
	}, nil
}

// RecordEvaluation updates the pass counter and schedule gauges.
func (s *PromSink) RecordEvaluation(rec coremetrics.EvaluationRecord) error {
	s.evaluations.WithLabelValues(rec.Result).Inc()
	s.cost.Set(rec.TotalCost)
	s.slots.Set(float64(rec.Slots))
	if rec.Feasible {
		s.feasible.Set(1)
	} else {
		s.feasible.Set(0)
	}
	return nil
}

// RecordCommand increments the command counter.
func (s *PromSink) RecordCommand(rec coremetrics.CommandRecord) error {
	outcome := "ok"
	if rec.Error != "" {
		outcome = "error"
	}
	s.commands.WithLabelValues(rec.Command, outcome).Inc()
	return nil
}

// RecordState sets the state gauge.
func (s *PromSink) RecordState(state model.ChargerState) error {
	s.state.Set(float64(state))
	return nil
}
