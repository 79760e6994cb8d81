package model

import "sync/atomic"

// Attribute names exposed by the vehicle state.
const (
	AttrMileage                = "mileage"
	AttrRemainingRangeTotal    = "remaining_range_total"
	AttrRemainingRangeElectric = "remaining_range_electric"
	AttrRemainingRangeFuel     = "remaining_range_fuel"
	AttrMaxRangeElectric       = "max_range_electric"
	AttrRemainingFuel          = "remaining_fuel"
	AttrChargingTimeRemaining  = "charging_time_remaining"
	AttrChargingStatus         = "charging_status"
	AttrChargingLevelHV        = "charging_level_hv"
)

// Vehicle is a car registered on an account. Its state is replaced
// wholesale on every update.
type Vehicle struct {
	VIN        string
	Name       string
	DriveTrain DriveTrain

	state atomic.Pointer[State]
}

// NewVehicle creates a vehicle without state.
func NewVehicle(vin, name string, dt DriveTrain) *Vehicle {
	return &Vehicle{VIN: vin, Name: name, DriveTrain: dt}
}

// State returns the current snapshot. It is never nil.
func (v *Vehicle) State() *State {
	if s := v.state.Load(); s != nil {
		return s
	}
	return &State{}
}

// SetState replaces the snapshot.
func (v *Vehicle) SetState(s *State) {
	v.state.Store(s)
}

// DriveTrainAttributes lists the state attributes supported by the drive
// train, mileage excluded.
func (v *Vehicle) DriveTrainAttributes() []string {
	attrs := []string{AttrRemainingRangeTotal}
	if v.DriveTrain.HasHVBattery() {
		attrs = append(attrs,
			AttrChargingTimeRemaining,
			AttrChargingStatus,
			AttrChargingLevelHV,
			AttrMaxRangeElectric,
			AttrRemainingRangeElectric,
		)
	}
	if v.DriveTrain.HasCombustionEngine() {
		attrs = append(attrs, AttrRemainingFuel, AttrRemainingRangeFuel)
	}
	return attrs
}
