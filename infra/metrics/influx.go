package metrics

import (
	"context"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/magsand/smartcharge/core/metrics"
	"github.com/magsand/smartcharge/core/model"
	"github.com/magsand/smartcharge/infra/logger"
)

// InfluxSink writes scheduler activity to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given InfluxDB endpoint.
func NewInfluxSink(cfg coremetrics.Config) *InfluxSink {
	client := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails, so a broken database never blocks the
// control loop.
func NewInfluxSinkWithFallback(cfg coremetrics.Config) coremetrics.Sink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordEvaluation writes one evaluation pass as a point.
func (s *InfluxSink) RecordEvaluation(rec coremetrics.EvaluationRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("charge_evaluation").
		AddTag("result", rec.Result).
		AddTag("state", rec.State.String()).
		AddTag("feasible", strconv.FormatBool(rec.Feasible)).
		AddField("slots", rec.Slots).
		AddField("total_cost", rec.TotalCost).
		AddField("mean_price", rec.MeanPrice).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordCommand writes one issued charger command.
func (s *InfluxSink) RecordCommand(rec coremetrics.CommandRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("charger_command").
		AddTag("command", rec.Command).
		AddTag("reason", rec.Reason).
		AddField("error", rec.Error).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordState writes the supervisor state.
func (s *InfluxSink) RecordState(state model.ChargerState) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("charger_state").
		AddTag("state", state.String()).
		AddField("value", int(state)).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}
