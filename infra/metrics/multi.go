package metrics

import (
	"errors"

	coremetrics "github.com/magsand/smartcharge/core/metrics"
	"github.com/magsand/smartcharge/core/model"
)

// MultiSink fans records out to several sinks.
type MultiSink struct {
	sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) RecordEvaluation(rec coremetrics.EvaluationRecord) error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.RecordEvaluation(rec))
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordCommand(rec coremetrics.CommandRecord) error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.RecordCommand(rec))
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordState(state model.ChargerState) error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.RecordState(state))
	}
	return errors.Join(errs...)
}
