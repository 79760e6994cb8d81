package main

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/kilianp07/connecteddrive/core/model"
)

const (
	speedKmh         = 50.0
	driveProbability = 0.3
	plugInLevel      = 25
)

// SimulatedVehicle is one car of the simulated fleet.
type SimulatedVehicle struct {
	VIN        string
	Name       string
	DriveTrain model.DriveTrain
	// Availability holds the hourly probability of the car being online.
	Availability [24]float64

	mu           sync.Mutex
	mileage      float64
	battery      *Battery
	tankL        float64
	fuelL        float64
	fuelPer100km float64
	status       model.ChargingState
}

// NewSimulatedVehicle creates a parked vehicle with the given readings.
// Battery and tank are only modelled when the drive train has them.
func NewSimulatedVehicle(vin, name string, dt model.DriveTrain, mileage float64, level int, fuelL float64) *SimulatedVehicle {
	v := &SimulatedVehicle{VIN: vin, Name: name, DriveTrain: dt, mileage: mileage, status: model.ChargingStateNotCharging}
	for i := range v.Availability {
		v.Availability[i] = 1
	}
	if dt.HasHVBattery() {
		capacity, consumption := 42.2, 16.0
		if dt == model.DriveTrainPHEV {
			capacity, consumption = 12.0, 20.0
		}
		v.battery = &Battery{CapacityKWh: capacity, Soc: float64(level) / 100, ChargeRateKW: 7.4, ConsumptionKWh: consumption}
	}
	if dt.HasCombustionEngine() {
		v.tankL = 60
		v.fuelPer100km = 7
		if dt == model.DriveTrainBEVRex {
			v.tankL = 9
			v.fuelPer100km = 6
		}
		v.fuelL = math.Min(fuelL, v.tankL)
	}
	return v
}

// Online reports whether the vehicle answers at hour according to its
// availability profile.
func (v *SimulatedVehicle) Online(hour int, rng *rand.Rand) bool {
	p := v.Availability[hour%24]
	return p >= 1 || rng.Float64() < p
}

// Step advances the simulation by dt. A parked car either keeps charging
// or starts a trip; cars below the plug-in level are connected.
func (v *SimulatedVehicle) Step(dt time.Duration, rng *rand.Rand) {
	v.mu.Lock()
	defer v.mu.Unlock()
	hours := dt.Hours()
	if v.status == model.ChargingStateCharging {
		if v.battery.Charge(hours) {
			v.status = model.ChargingStateFinishedFullyCharged
		}
		return
	}
	if rng.Float64() >= driveProbability {
		return
	}
	km := speedKmh * hours
	driven := 0.0
	if v.battery != nil {
		driven = v.battery.Drive(km)
	}
	if rest := km - driven; rest > 0 && v.fuelPer100km > 0 {
		fuelKm := math.Min(rest, v.fuelL/v.fuelPer100km*100)
		v.fuelL = math.Max(0, v.fuelL-fuelKm*v.fuelPer100km/100)
		driven += fuelKm
	}
	v.mileage += driven
	if v.fuelPer100km > 0 && v.fuelL < v.tankL/5 {
		v.fuelL = v.tankL
	}
	if v.battery != nil {
		v.status = model.ChargingStateNotCharging
		if v.battery.Level() < plugInLevel {
			v.status = model.ChargingStateCharging
		}
	}
}

// State returns the vehicle readings at now.
func (v *SimulatedVehicle) State(now time.Time) *model.State {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := &model.State{
		Mileage:   model.Int(int(v.mileage)),
		Timestamp: now,
	}
	total := 0
	if v.battery != nil {
		rng := int(v.battery.Range())
		total += rng
		s.RemainingRangeElectric = model.Int(rng)
		s.MaxRangeElectric = model.Int(int(v.battery.MaxRange()))
		s.ChargingLevelHV = model.Int(v.battery.Level())
		s.ChargingStatus = model.Charge(v.status)
		if v.status == model.ChargingStateCharging {
			s.ChargingTimeRemaining = model.Float(v.battery.TimeToFull())
		}
	}
	if v.fuelPer100km > 0 {
		fuelRange := int(v.fuelL / v.fuelPer100km * 100)
		total += fuelRange
		s.RemainingFuel = model.Float(math.Round(v.fuelL*10) / 10)
		s.RemainingRangeFuel = model.Int(fuelRange)
	}
	s.RemainingRangeTotal = model.Int(total)
	return s
}
