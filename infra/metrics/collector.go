package metrics

import (
	"context"

	"github.com/magsand/smartcharge/core/events"
	coremetrics "github.com/magsand/smartcharge/core/metrics"
	"github.com/magsand/smartcharge/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records supervisor and
// evaluation events on the sink. It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.Sink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				switch e := ev.(type) {
				case events.CommandEvent:
					errStr := ""
					if e.Err != nil {
						errStr = e.Err.Error()
					}
					_ = sink.RecordCommand(coremetrics.CommandRecord{
						Command: e.Command,
						Reason:  e.Reason,
						Error:   errStr,
						Time:    e.Time,
					})
				case events.StateChangeEvent:
					_ = sink.RecordState(e.To)
				case events.EvaluationEvent:
					_ = sink.RecordEvaluation(coremetrics.EvaluationRecord{
						Result:    e.Result,
						Slots:     e.Slots,
						TotalCost: e.TotalCost,
						MeanPrice: e.MeanPrice,
						Feasible:  e.Feasible,
						State:     e.State,
						Time:      e.Time,
					})
				}
			}
		}
	}()
}
