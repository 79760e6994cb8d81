package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownChargingState is returned when a charging state name is not recognised.
var ErrUnknownChargingState = errors.New("unknown charging state")

// ChargingState is the charging status reported for the high voltage battery.
type ChargingState int

const (
	ChargingStateInvalid ChargingState = iota
	ChargingStateCharging
	ChargingStateError
	ChargingStateFinishedFullyCharged
	ChargingStateFinishedNotFull
	ChargingStateNotCharging
	ChargingStateWaitingForCharging
)

var chargingStateNames = map[ChargingState]string{
	ChargingStateInvalid:              "INVALID",
	ChargingStateCharging:             "CHARGING",
	ChargingStateError:                "ERROR",
	ChargingStateFinishedFullyCharged: "FINISHED_FULLY_CHARGED",
	ChargingStateFinishedNotFull:      "FINISHED_NOT_FULL",
	ChargingStateNotCharging:          "NOT_CHARGING",
	ChargingStateWaitingForCharging:   "WAITING_FOR_CHARGING",
}

// Value unwraps the state to the scalar reported by the vehicle service.
func (c ChargingState) Value() string {
	if s, ok := chargingStateNames[c]; ok {
		return s
	}
	return "INVALID"
}

func (c ChargingState) String() string { return c.Value() }

// ParseChargingState converts the scalar reported by the vehicle service.
func ParseChargingState(s string) (ChargingState, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for k, v := range chargingStateNames {
		if v == want {
			return k, nil
		}
	}
	return ChargingStateInvalid, fmt.Errorf("%w: %q", ErrUnknownChargingState, s)
}

// State is a snapshot of a vehicle's status. A snapshot is never modified
// after it has been handed to a Vehicle; pointer fields are nil when the
// vehicle did not report them.
type State struct {
	Mileage                *int
	RemainingRangeTotal    *int
	RemainingRangeElectric *int
	RemainingRangeFuel     *int
	MaxRangeElectric       *int
	RemainingFuel          *float64
	ChargingTimeRemaining  *float64 // hours
	ChargingLevelHV        *int     // percent
	ChargingStatus         *ChargingState
	Timestamp              time.Time
}

// Charging reports whether the high voltage battery is currently charging.
func (s *State) Charging() bool {
	return s != nil && s.ChargingStatus != nil && *s.ChargingStatus == ChargingStateCharging
}

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Charge returns a pointer to c.
func Charge(c ChargingState) *ChargingState { return &c }
