package main

import (
	"context"
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/connecteddrive/core/model"
	"github.com/kilianp07/connecteddrive/infra/logger"
	infmqtt "github.com/kilianp07/connecteddrive/infra/mqtt"
	"github.com/kilianp07/connecteddrive/infra/telemetry"
)

func newTestSim(t *testing.T, cfg Config, strategy ResponseStrategy) (*Simulator, *infmqtt.MemoryBroker, *clock.Mock, context.CancelFunc) {
	t.Helper()
	broker := infmqtt.NewMemoryBroker()
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	vehicles := []*SimulatedVehicle{
		NewSimulatedVehicle("WBA1", "i3", model.DriveTrainBEV, 1000, 60, 0),
		NewSimulatedVehicle("WBA2", "x5", model.DriveTrainConventional, 5000, 0, 40),
	}
	sim := NewSimulator(broker, cfg, vehicles, strategy, clk, logger.NopLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = sim.Run(ctx) }()
	require.Eventually(t, func() bool { return broker.Subscriptions() == 2 }, time.Second, 5*time.Millisecond)
	return sim, broker, clk, cancel
}

func TestSimulatorAnswersDiscovery(t *testing.T) {
	_, broker, _, cancel := newTestSim(t, Config{}, nil)
	defer cancel()

	d := infmqtt.NewDiscovery(broker, "connecteddrive/fleet/discovery", "connecteddrive/fleet/response/+", "hello", 50*time.Millisecond, logger.NopLogger{})
	vs, err := d.Vehicles(context.Background())
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, "i3", vs[0].Name)
	assert.Equal(t, model.DriveTrainConventional, vs[1].DriveTrain)
}

func TestSimulatorAnswersPoll(t *testing.T) {
	_, broker, _, cancel := newTestSim(t, Config{}, nil)
	defer cancel()

	req, _ := json.Marshal(telemetry.PollRequest{RequestID: "r1", VINs: []string{"WBA1", "UNKNOWN"}})
	require.NoError(t, broker.Publish("connecteddrive/vehicle/poll", 0, false, req))

	require.Eventually(t, func() bool {
		return len(broker.Published("connecteddrive/vehicle/response/WBA1")) == 1
	}, time.Second, 5*time.Millisecond)
	msg := broker.Published("connecteddrive/vehicle/response/WBA1")[0]
	u, err := telemetry.Decode(msg.Payload, msg.Topic, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "WBA1", u.VIN)
	assert.Equal(t, 60, *u.State.ChargingLevelHV)
	assert.Equal(t, 1000, *u.State.Mileage)
	var st telemetry.VehicleStatus
	require.NoError(t, json.Unmarshal(msg.Payload, &st))
	assert.Equal(t, "r1", st.RequestID)
	assert.Empty(t, broker.Published("connecteddrive/vehicle/response/WBA2"))
}

func TestSimulatorPushesOnTick(t *testing.T) {
	_, broker, clk, cancel := newTestSim(t, Config{Push: true, Interval: time.Minute}, nil)
	defer cancel()

	require.Eventually(t, func() bool {
		clk.Add(time.Minute)
		return len(broker.Published("connecteddrive/vehicle/state/WBA2")) > 0
	}, time.Second, 5*time.Millisecond)
	var st telemetry.VehicleStatus
	require.NoError(t, json.Unmarshal(broker.Published("connecteddrive/vehicle/state/WBA2")[0].Payload, &st))
	assert.Equal(t, "WBA2", st.VIN)
	assert.Empty(t, st.RequestID)
	assert.NotNil(t, st.RemainingFuel)
}

func TestRandomResponseDrop(t *testing.T) {
	r := NewRandomResponse(0, 1, 1, clock.NewMock())
	sent := false
	r.Respond(context.Background(), func() { sent = true })
	assert.False(t, sent)

	r = NewRandomResponse(0, 0, 1, clock.NewMock())
	r.Respond(context.Background(), func() { sent = true })
	assert.True(t, sent)
}

func TestRandomResponseDelayCancelled(t *testing.T) {
	r := NewRandomResponse(time.Hour, 0, 1, clock.NewMock())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sent := false
	r.Respond(ctx, func() { sent = true })
	assert.False(t, sent)
}

func TestVehicleChargesWhenLow(t *testing.T) {
	v := NewSimulatedVehicle("WBA1", "i3", model.DriveTrainBEV, 0, 26, 0)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500 && *v.State(time.Time{}).ChargingStatus != model.ChargingStateCharging; i++ {
		v.Step(10*time.Minute, rng)
	}
	s := v.State(time.Time{})
	require.Equal(t, model.ChargingStateCharging, *s.ChargingStatus)
	require.NotNil(t, s.ChargingTimeRemaining)
	assert.Greater(t, *s.ChargingTimeRemaining, 0.0)
	assert.Greater(t, *s.Mileage, 0)

	for i := 0; i < 100 && *v.State(time.Time{}).ChargingStatus != model.ChargingStateFinishedFullyCharged; i++ {
		v.Step(time.Hour, rng)
	}
	s = v.State(time.Time{})
	assert.Equal(t, model.ChargingStateFinishedFullyCharged, *s.ChargingStatus)
	assert.Equal(t, 100, *s.ChargingLevelHV)
}

func TestVehicleOnline(t *testing.T) {
	v := NewSimulatedVehicle("WBA1", "i3", model.DriveTrainBEV, 0, 50, 0)
	rng := rand.New(rand.NewSource(1))
	assert.True(t, v.Online(3, rng))
	v.Availability = [24]float64{}
	assert.False(t, v.Online(3, rng))
}
