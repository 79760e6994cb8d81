package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/connecteddrive/config"
	"github.com/kilianp07/connecteddrive/core/account"
	"github.com/kilianp07/connecteddrive/core/entitystatus"
	coremetrics "github.com/kilianp07/connecteddrive/core/metrics"
	"github.com/kilianp07/connecteddrive/core/model"
	"github.com/kilianp07/connecteddrive/core/sensor"
	"github.com/kilianp07/connecteddrive/infra/hass"
	"github.com/kilianp07/connecteddrive/infra/logger"
	infmqtt "github.com/kilianp07/connecteddrive/infra/mqtt"
)

type recordSink struct {
	mu     sync.Mutex
	states []coremetrics.SensorStateEvent
	errs   []coremetrics.SensorErrorEvent
}

func (r *recordSink) RecordSensorState(ev coremetrics.SensorStateEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, ev)
	return nil
}

func (r *recordSink) RecordSensorError(ev coremetrics.SensorErrorEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, ev)
	return nil
}

func newHostFixture(t *testing.T) (*Host, *recordSink, *infmqtt.MemoryBroker, *entitystatus.MemoryStore, *account.Account) {
	t.Helper()
	v := model.NewVehicle("WBA1", "i3", model.DriveTrainBEV)
	v.SetState(&model.State{Mileage: model.Int(100), ChargingLevelHV: model.Int(50), ChargingStatus: model.Charge(model.ChargingStateCharging)})
	acc := account.New("home", account.StaticProvider{List: []*model.Vehicle{v}}, logger.NopLogger{})
	require.NoError(t, acc.LoadVehicles(context.Background()))

	sink := &recordSink{}
	broker := infmqtt.NewMemoryBroker()
	store := entitystatus.NewMemoryStore()
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	pub := hass.NewPublisher(broker, config.HassConfig{}, logger.NopLogger{})
	return NewHost(store, sink, pub, clk, logger.NopLogger{}), sink, broker, store, acc
}

func TestHostAddPublishesInitialState(t *testing.T) {
	h, sink, broker, store, acc := newHostFixture(t)
	v, _ := acc.Vehicle("WBA1")
	mileage := sensor.NewAdapter(acc, v, sensor.Mileage)
	level := sensor.NewAdapter(acc, v, sensor.ChargingLevelHV)
	require.NoError(t, mileage.Refresh())
	require.NoError(t, level.Refresh())

	require.NoError(t, h.Add([]*sensor.Adapter{mileage, level}))

	st, ok := store.Get("WBA1-mileage")
	require.True(t, ok)
	assert.Equal(t, 100, st.Value)
	require.Len(t, sink.states, 2)
	assert.Equal(t, "km", sink.states[0].Unit)

	msg, ok := broker.Retained("homeassistant/sensor/connecteddrive/WBA1-charging_level_hv/config")
	require.True(t, ok)
	assert.Contains(t, string(msg.Payload), "mdi:battery-charging-40")
	assert.Len(t, broker.Published("connecteddrive/WBA1/mileage/state"), 1)

	assert.Equal(t, []*sensor.Adapter{level, mileage}, h.Adapters())
}

func TestHostAddRejectsDuplicates(t *testing.T) {
	h, _, _, _, acc := newHostFixture(t)
	v, _ := acc.Vehicle("WBA1")
	require.NoError(t, h.Add([]*sensor.Adapter{sensor.NewAdapter(acc, v, sensor.Mileage)}))

	err := h.Add([]*sensor.Adapter{
		sensor.NewAdapter(acc, v, sensor.ChargingLevelHV),
		sensor.NewAdapter(acc, v, sensor.Mileage),
	})
	assert.ErrorContains(t, err, "duplicate sensor WBA1-mileage")
	assert.Len(t, h.Adapters(), 1)
}

func TestHostHandleError(t *testing.T) {
	h, sink, _, store, acc := newHostFixture(t)
	v, _ := acc.Vehicle("WBA1")
	a := sensor.NewAdapter(acc, v, sensor.Mileage)
	require.NoError(t, a.Refresh())
	require.NoError(t, h.Add([]*sensor.Adapter{a}))

	h.HandleError(a, errors.New("boom"))
	st, ok := store.Get("WBA1-mileage")
	require.True(t, ok)
	assert.Equal(t, "boom", st.LastError)
	assert.Equal(t, 100, st.Value)
	require.Len(t, sink.errs, 1)
	assert.Equal(t, "mileage", sink.errs[0].Attribute)
}

func TestHostPushUpdate(t *testing.T) {
	h, _, broker, _, acc := newHostFixture(t)
	_, err := sensor.Setup([]*account.Account{acc}, h, logger.NopLogger{})
	require.NoError(t, err)

	require.NoError(t, acc.Apply(account.StateUpdate{VIN: "WBA1", State: &model.State{Mileage: model.Int(120), ChargingLevelHV: model.Int(55)}}))
	acc.Notify()

	msg, ok := broker.Retained("homeassistant/sensor/connecteddrive/WBA1-charging_level_hv/config")
	require.True(t, ok)
	assert.Contains(t, string(msg.Payload), "mdi:battery-50")
	states := broker.Published("connecteddrive/WBA1/mileage/state")
	require.Len(t, states, 2)
	assert.Equal(t, "120", string(states[1].Payload))
	charging := broker.Published("connecteddrive/WBA1/charging_status/state")
	require.Len(t, charging, 2)
	assert.Equal(t, "unknown", string(charging[1].Payload))

	h.RemoveAll()
	assert.Equal(t, 0, acc.Listeners())
}
