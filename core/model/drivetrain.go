package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownDriveTrain is returned when a drive train name is not recognised.
var ErrUnknownDriveTrain = errors.New("unknown drive train")

// DriveTrain describes how a vehicle is propelled.
type DriveTrain int

const (
	DriveTrainConventional DriveTrain = iota
	DriveTrainPHEV
	DriveTrainBEV
	DriveTrainBEVRex
)

// String returns the name used by the vehicle service.
func (d DriveTrain) String() string {
	switch d {
	case DriveTrainConventional:
		return "CONVENTIONAL"
	case DriveTrainPHEV:
		return "PHEV"
	case DriveTrainBEV:
		return "BEV"
	case DriveTrainBEVRex:
		return "BEV_REX"
	default:
		return "unknown"
	}
}

// ParseDriveTrain converts a drive train name, ignoring case.
func ParseDriveTrain(s string) (DriveTrain, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CONVENTIONAL":
		return DriveTrainConventional, nil
	case "PHEV":
		return DriveTrainPHEV, nil
	case "BEV":
		return DriveTrainBEV, nil
	case "BEV_REX":
		return DriveTrainBEVRex, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDriveTrain, s)
}

// HasHVBattery reports whether the drive train carries a high voltage battery.
func (d DriveTrain) HasHVBattery() bool {
	return d == DriveTrainPHEV || d == DriveTrainBEV || d == DriveTrainBEVRex
}

// HasCombustionEngine reports whether the drive train carries a fuel engine.
func (d DriveTrain) HasCombustionEngine() bool {
	return d == DriveTrainConventional || d == DriveTrainPHEV || d == DriveTrainBEVRex
}
