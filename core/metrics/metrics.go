package metrics

import (
	"time"

	"github.com/magsand/smartcharge/core/model"
)

// EvaluationRecord summarizes one control-loop pass for observability.
type EvaluationRecord struct {
	Result    string
	Slots     int
	TotalCost float64
	MeanPrice float64
	Feasible  bool
	State     model.ChargerState
	Time      time.Time
}

// CommandRecord captures a start/stop command issued to the charger.
type CommandRecord struct {
	Command string
	Reason  string
	Error   string
	Time    time.Time
}

// Sink records scheduler activity for observability purposes.
type Sink interface {
	RecordEvaluation(rec EvaluationRecord) error
	RecordCommand(rec CommandRecord) error
	RecordState(state model.ChargerState) error
}

// NopSink discards all records.
type NopSink struct{}

func (NopSink) RecordEvaluation(EvaluationRecord) error { return nil }
func (NopSink) RecordCommand(CommandRecord) error       { return nil }
func (NopSink) RecordState(model.ChargerState) error    { return nil }
