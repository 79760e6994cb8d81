package telemetry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/connecteddrive/core/model"
)

func TestDecodeFullStatus(t *testing.T) {
	payload := []byte(`{"vin":"WBA12345","updateTime":"2018-03-10T11:39:41+0100","mileage":12345,
 "remainingRangeElectric":120,"remainingRangeFuel":300,"maxRangeElectric":150,
 "remainingFuel":20.5,"chargingStatus":"CHARGING","chargingLevelHv":80,
 "chargingTimeRemaining":90}`)
	u, err := Decode(payload, "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "WBA12345", u.VIN)
	s := u.State
	assert.Equal(t, 12345, *s.Mileage)
	assert.Equal(t, 420, *s.RemainingRangeTotal)
	assert.Equal(t, 120, *s.RemainingRangeElectric)
	assert.Equal(t, 300, *s.RemainingRangeFuel)
	assert.Equal(t, 150, *s.MaxRangeElectric)
	assert.Equal(t, 20.5, *s.RemainingFuel)
	assert.Equal(t, 80, *s.ChargingLevelHV)
	assert.Equal(t, 1.5, *s.ChargingTimeRemaining)
	assert.True(t, s.Charging())
	_, offset := s.Timestamp.Zone()
	assert.Equal(t, 3600, offset)
	assert.Equal(t, "2018-03-10T11:39:41", s.Timestamp.Format("2006-01-02T15:04:05"))
}

func TestDecodeFallbacks(t *testing.T) {
	arrived := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	u, err := Decode([]byte(`{"remainingRangeTotal":99,"remainingRangeFuel":10,"chargingStatus":"SOMETHING_NEW"}`), "connecteddrive/vehicle/state/WBA9", arrived)
	require.NoError(t, err)
	assert.Equal(t, "WBA9", u.VIN)
	assert.Equal(t, 99, *u.State.RemainingRangeTotal)
	assert.Equal(t, arrived, u.State.Timestamp)
	assert.Equal(t, model.ChargingStateInvalid, *u.State.ChargingStatus)
	assert.Nil(t, u.State.Mileage)
	assert.Nil(t, u.State.ChargingLevelHV)

	u, err = Decode([]byte(`{"vin":"W","updateTime":"2024-05-01T10:00:00Z"}`), "", arrived)
	require.NoError(t, err)
	assert.Nil(t, u.State.RemainingRangeTotal)
	assert.Nil(t, u.State.ChargingStatus)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), u.State.Timestamp.UTC())

	u, err = Decode([]byte(`{"vin":"W","updateTime":"yesterday"}`), "", arrived)
	require.NoError(t, err)
	assert.Equal(t, arrived, u.State.Timestamp)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte(`{"mileage":1}`), "", time.Now())
	assert.ErrorIs(t, err, ErrMissingVIN)
	_, err = Decode([]byte(`nope`), "a/b", time.Now())
	assert.Error(t, err)
}

func TestEncodeInverse(t *testing.T) {
	ts := time.Date(2018, 3, 10, 11, 39, 41, 0, time.FixedZone("", 3600))
	s := &model.State{
		Mileage:               model.Int(12345),
		RemainingRangeTotal:   model.Int(420),
		RemainingFuel:         model.Float(20.5),
		ChargingTimeRemaining: model.Float(1.5),
		ChargingStatus:        model.Charge(model.ChargingStateWaitingForCharging),
		Timestamp:             ts,
	}
	b, err := json.Marshal(Encode("WBA1", s))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"updateTime":"2018-03-10T11:39:41+0100"`)
	assert.Contains(t, string(b), `"chargingTimeRemaining":90`)

	u, err := Decode(b, "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "WBA1", u.VIN)
	assert.Equal(t, *s.Mileage, *u.State.Mileage)
	assert.Equal(t, *s.ChargingTimeRemaining, *u.State.ChargingTimeRemaining)
	assert.Equal(t, *s.ChargingStatus, *u.State.ChargingStatus)
	assert.True(t, ts.Equal(u.State.Timestamp))
}
