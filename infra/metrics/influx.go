package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/connecteddrive/core/metrics"
	"github.com/kilianp07/connecteddrive/infra/logger"
)

// InfluxSink writes sensor states to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
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

// RecordSensorState writes the state as a sensor_state point. Numeric values
// go to the "value" field, everything else to "state".
func (s *InfluxSink) RecordSensorState(ev coremetrics.SensorStateEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, sensorPoint(ev))
}

func sensorPoint(ev coremetrics.SensorStateEvent) *write.Point {
	p := write.NewPointWithMeasurement("sensor_state").
		AddTag("unique_id", ev.UniqueID).
		AddTag("vin", ev.VIN).
		AddTag("attribute", ev.Attribute).
		AddTag("account", ev.Account)
	if ev.Unit != "" {
		p = p.AddTag("unit", ev.Unit)
	}
	if v, ok := ev.Numeric(); ok {
		p = p.AddField("value", round3(v))
	} else if ev.Value != nil {
		p = p.AddField("state", ev.Text())
	} else {
		p = p.AddField("unknown", true)
	}
	return p.SetTime(ev.Time)
}

// RecordSensorError writes a refresh failure.
func (s *InfluxSink) RecordSensorError(ev coremetrics.SensorErrorEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("sensor_error").
		AddTag("unique_id", ev.UniqueID).
		AddTag("attribute", ev.Attribute).
		AddField("error", ev.Err).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordPoll writes the result of a telemetry poll cycle.
func (s *InfluxSink) RecordPoll(ev coremetrics.PollEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("telemetry_poll").
		AddTag("component", "telemetry").
		AddField("requested", ev.Requested).
		AddField("responses", ev.Responses).
		AddField("timeouts", ev.Timeouts).
		AddField("latency_ms", round3(ev.Latency.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
