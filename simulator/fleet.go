package main

import (
	"fmt"
	"math/rand"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/connecteddrive/core/model"
)

// FleetConfig holds parameters for bulk fleet generation.
type FleetConfig struct {
	Size         int
	Availability [24]float64
}

// VehicleTemplate describes a vehicle of a fleet file.
type VehicleTemplate struct {
	VIN        string  `yaml:"vin"`
	Name       string  `yaml:"name"`
	DriveTrain string  `yaml:"drive_train"`
	Mileage    float64 `yaml:"mileage"`
	Level      int     `yaml:"charging_level_hv"`
	FuelL      float64 `yaml:"remaining_fuel"`
}

var driveTrains = []model.DriveTrain{
	model.DriveTrainConventional, model.DriveTrainPHEV, model.DriveTrainBEV, model.DriveTrainBEVRex,
}

// GenerateFleet creates Size vehicles with VINs SIMVIN0000001.. and a
// random drive train.
func GenerateFleet(cfg FleetConfig, rng *rand.Rand) []*SimulatedVehicle {
	if cfg.Size <= 0 {
		return nil
	}
	vs := make([]*SimulatedVehicle, cfg.Size)
	for i := range vs {
		vin := fmt.Sprintf("SIMVIN%07d", i+1)
		dt := driveTrains[rng.Intn(len(driveTrains))]
		v := NewSimulatedVehicle(vin, fmt.Sprintf("sim %d", i+1), dt,
			float64(rng.Intn(100000)), 30+rng.Intn(70), float64(10+rng.Intn(40)))
		v.Availability = cfg.Availability
		vs[i] = v
	}
	return vs
}

// LoadFleet parses a YAML (or JSON) list of vehicle templates.
func LoadFleet(data []byte, availability [24]float64) ([]*SimulatedVehicle, error) {
	var tmpl []VehicleTemplate
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, err
	}
	vs := make([]*SimulatedVehicle, 0, len(tmpl))
	for _, t := range tmpl {
		if t.VIN == "" {
			return nil, fmt.Errorf("fleet: vehicle without vin")
		}
		dt, err := model.ParseDriveTrain(t.DriveTrain)
		if err != nil {
			return nil, fmt.Errorf("fleet: %s: %w", t.VIN, err)
		}
		name := t.Name
		if name == "" {
			name = t.VIN
		}
		v := NewSimulatedVehicle(t.VIN, name, dt, t.Mileage, t.Level, t.FuelL)
		v.Availability = availability
		vs = append(vs, v)
	}
	return vs, nil
}

// AlwaysOnline is the availability profile of a car that never drops off.
func AlwaysOnline() [24]float64 {
	var prof [24]float64
	for i := range prof {
		prof[i] = 1
	}
	return prof
}

// LoadAvailabilityProfile reads an hourly availability profile from JSON or
// YAML. Hours missing from the document are offline.
func LoadAvailabilityProfile(data []byte) ([24]float64, error) {
	var m map[string]float64
	var prof [24]float64
	if err := yaml.Unmarshal(data, &m); err != nil {
		return prof, err
	}
	for h, v := range m {
		hour, err := strconv.Atoi(h)
		if err != nil {
			continue
		}
		if hour >= 0 && hour < 24 {
			prof[hour] = v
		}
	}
	return prof, nil
}
