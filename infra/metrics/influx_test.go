package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/connecteddrive/core/metrics"
)

func captureServer(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()
	var (
		mu     sync.Mutex
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, strings.TrimSpace(string(b)))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), bodies...)
	}
}

func TestInfluxSink_RecordSensorState(t *testing.T) {
	srv, bodies := captureServer(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer func() { _ = sink.Close() }()
	now := time.Now()

	require.NoError(t, sink.RecordSensorState(coremetrics.SensorStateEvent{
		UniqueID: "WBA1-remaining_fuel", VIN: "WBA1", Attribute: "remaining_fuel",
		Account: "home", Unit: "l", Value: 20.5, Time: now,
	}))
	require.NoError(t, sink.RecordSensorState(coremetrics.SensorStateEvent{
		UniqueID: "WBA1-charging_status", VIN: "WBA1", Attribute: "charging_status",
		Account: "home", Value: "CHARGING", Time: now,
	}))

	p1 := write.NewPointWithMeasurement("sensor_state").
		AddTag("unique_id", "WBA1-remaining_fuel").
		AddTag("vin", "WBA1").
		AddTag("attribute", "remaining_fuel").
		AddTag("account", "home").
		AddTag("unit", "l").
		AddField("value", 20.5).
		SetTime(now)
	p2 := write.NewPointWithMeasurement("sensor_state").
		AddTag("unique_id", "WBA1-charging_status").
		AddTag("vin", "WBA1").
		AddTag("attribute", "charging_status").
		AddTag("account", "home").
		AddField("state", "CHARGING").
		SetTime(now)
	got := bodies()
	require.Len(t, got, 2)
	assert.Equal(t, strings.TrimSpace(write.PointToLineProtocol(p1, time.Nanosecond)), got[0])
	assert.Equal(t, strings.TrimSpace(write.PointToLineProtocol(p2, time.Nanosecond)), got[1])
}

func TestInfluxSink_RecordPoll(t *testing.T) {
	srv, bodies := captureServer(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	now := time.Now()
	require.NoError(t, sink.RecordPoll(coremetrics.PollEvent{Requested: 2, Responses: 1, Timeouts: 1, Latency: time.Second, Time: now}))
	p := write.NewPointWithMeasurement("telemetry_poll").
		AddTag("component", "telemetry").
		AddField("requested", 2).
		AddField("responses", 1).
		AddField("timeouts", 1).
		AddField("latency_ms", 1000.0).
		SetTime(now)
	got := bodies()
	require.Len(t, got, 1)
	assert.Equal(t, strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond)), got[0])
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
