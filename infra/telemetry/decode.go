package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/connecteddrive/core/account"
	"github.com/kilianp07/connecteddrive/core/model"
	coremqtt "github.com/kilianp07/connecteddrive/core/mqtt"
)

// UpdateTimeLayout is the timestamp layout used by the vehicle status service.
const UpdateTimeLayout = "2006-01-02T15:04:05-0700"

// ErrMissingVIN is returned when neither the payload nor the topic identify the vehicle.
var ErrMissingVIN = errors.New("missing vin")

// VehicleStatus is the vehicle status document published by vehicles.
type VehicleStatus struct {
	// RequestID echoes the poll request a response answers. Pushed
	// documents leave it empty.
	RequestID              string   `json:"request_id,omitempty"`
	VIN                    string   `json:"vin,omitempty"`
	UpdateTime             string   `json:"updateTime,omitempty"`
	Mileage                *float64 `json:"mileage,omitempty"`
	RemainingRangeTotal    *float64 `json:"remainingRangeTotal,omitempty"`
	RemainingRangeElectric *float64 `json:"remainingRangeElectric,omitempty"`
	RemainingRangeFuel     *float64 `json:"remainingRangeFuel,omitempty"`
	MaxRangeElectric       *float64 `json:"maxRangeElectric,omitempty"`
	RemainingFuel          *float64 `json:"remainingFuel,omitempty"`
	ChargingStatus         string   `json:"chargingStatus,omitempty"`
	ChargingLevelHV        *float64 `json:"chargingLevelHv,omitempty"`
	// ChargingTimeRemaining is in minutes.
	ChargingTimeRemaining *float64 `json:"chargingTimeRemaining,omitempty"`
}

// Decode parses a vehicle status document. The VIN falls back to the last
// topic level and the timestamp to arrived.
func Decode(payload []byte, topic string, arrived time.Time) (account.StateUpdate, error) {
	var msg VehicleStatus
	if err := json.Unmarshal(payload, &msg); err != nil {
		return account.StateUpdate{}, fmt.Errorf("decode status: %w", err)
	}
	if msg.VIN == "" && topic != "" {
		msg.VIN = coremqtt.LastSegment(topic)
	}
	if msg.VIN == "" {
		return account.StateUpdate{}, ErrMissingVIN
	}
	return account.StateUpdate{VIN: msg.VIN, State: msg.State(arrived)}, nil
}

// responseID returns the request id echoed by a poll response, or "" when
// the document carries none or cannot be parsed.
func responseID(payload []byte) string {
	var r struct {
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(payload, &r); err != nil {
		return ""
	}
	return r.RequestID
}

// State converts the document into a model snapshot.
func (m VehicleStatus) State(arrived time.Time) *model.State {
	s := &model.State{
		Mileage:                toInt(m.Mileage),
		RemainingRangeElectric: toInt(m.RemainingRangeElectric),
		RemainingRangeFuel:     toInt(m.RemainingRangeFuel),
		MaxRangeElectric:       toInt(m.MaxRangeElectric),
		RemainingFuel:          m.RemainingFuel,
		ChargingLevelHV:        toInt(m.ChargingLevelHV),
		Timestamp:              parseUpdateTime(m.UpdateTime, arrived),
	}
	switch {
	case m.RemainingRangeTotal != nil:
		s.RemainingRangeTotal = toInt(m.RemainingRangeTotal)
	case s.RemainingRangeElectric != nil || s.RemainingRangeFuel != nil:
		total := 0
		if s.RemainingRangeElectric != nil {
			total += *s.RemainingRangeElectric
		}
		if s.RemainingRangeFuel != nil {
			total += *s.RemainingRangeFuel
		}
		s.RemainingRangeTotal = &total
	}
	if m.ChargingTimeRemaining != nil {
		h := math.Round(*m.ChargingTimeRemaining/60*100) / 100
		s.ChargingTimeRemaining = &h
	}
	if m.ChargingStatus != "" {
		cs, err := model.ParseChargingState(m.ChargingStatus)
		if err != nil {
			cs = model.ChargingStateInvalid
		}
		s.ChargingStatus = &cs
	}
	return s
}

// Encode builds a status document from a snapshot, the inverse of State.
func Encode(vin string, s *model.State) VehicleStatus {
	m := VehicleStatus{
		VIN:                    vin,
		Mileage:                fromInt(s.Mileage),
		RemainingRangeTotal:    fromInt(s.RemainingRangeTotal),
		RemainingRangeElectric: fromInt(s.RemainingRangeElectric),
		RemainingRangeFuel:     fromInt(s.RemainingRangeFuel),
		MaxRangeElectric:       fromInt(s.MaxRangeElectric),
		RemainingFuel:          s.RemainingFuel,
		ChargingLevelHV:        fromInt(s.ChargingLevelHV),
	}
	if !s.Timestamp.IsZero() {
		m.UpdateTime = s.Timestamp.Format(UpdateTimeLayout)
	}
	if s.ChargingTimeRemaining != nil {
		minutes := math.Round(*s.ChargingTimeRemaining * 60)
		m.ChargingTimeRemaining = &minutes
	}
	if s.ChargingStatus != nil {
		m.ChargingStatus = s.ChargingStatus.Value()
	}
	return m
}

func parseUpdateTime(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	if t, err := time.Parse(UpdateTimeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return fallback
}

func toInt(f *float64) *int {
	if f == nil {
		return nil
	}
	v := int(math.Round(*f))
	return &v
}

func fromInt(i *int) *float64 {
	if i == nil {
		return nil
	}
	v := float64(*i)
	return &v
}
