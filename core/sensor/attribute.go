package sensor

import (
	"errors"
	"fmt"

	"github.com/kilianp07/connecteddrive/core/model"
)

// ErrUnknownAttribute is returned for attribute names outside the table.
var ErrUnknownAttribute = errors.New("unknown attribute")

// Attribute identifies a vehicle state field exposed as a sensor.
type Attribute int

const (
	attributeInvalid Attribute = iota
	Mileage
	RemainingRangeTotal
	RemainingRangeElectric
	RemainingRangeFuel
	MaxRangeElectric
	RemainingFuel
	ChargingTimeRemaining
	ChargingStatus
	ChargingLevelHV
)

const (
	iconSpeedometer     = "mdi:speedometer"
	iconRuler           = "mdi:ruler"
	iconGasStation      = "mdi:gas-station"
	iconUpdate          = "mdi:update"
	iconBatteryCharging = "mdi:battery-charging"

	unitKilometers = "km"
	unitLiters     = "l"
	unitHours      = "h"
	unitPercent    = "%"
)

type definition struct {
	name    string
	unit    string
	icon    func(*model.State) string
	extract func(*model.State) any
}

func staticIcon(icon string) func(*model.State) string {
	return func(*model.State) string { return icon }
}

var definitions = map[Attribute]definition{
	Mileage: {
		name:    model.AttrMileage,
		unit:    unitKilometers,
		icon:    staticIcon(iconSpeedometer),
		extract: func(s *model.State) any { return intValue(s.Mileage) },
	},
	RemainingRangeTotal: {
		name:    model.AttrRemainingRangeTotal,
		unit:    unitKilometers,
		icon:    staticIcon(iconRuler),
		extract: func(s *model.State) any { return intValue(s.RemainingRangeTotal) },
	},
	RemainingRangeElectric: {
		name:    model.AttrRemainingRangeElectric,
		unit:    unitKilometers,
		icon:    staticIcon(iconRuler),
		extract: func(s *model.State) any { return intValue(s.RemainingRangeElectric) },
	},
	RemainingRangeFuel: {
		name:    model.AttrRemainingRangeFuel,
		unit:    unitKilometers,
		icon:    staticIcon(iconRuler),
		extract: func(s *model.State) any { return intValue(s.RemainingRangeFuel) },
	},
	MaxRangeElectric: {
		name:    model.AttrMaxRangeElectric,
		unit:    unitKilometers,
		icon:    staticIcon(iconRuler),
		extract: func(s *model.State) any { return intValue(s.MaxRangeElectric) },
	},
	RemainingFuel: {
		name:    model.AttrRemainingFuel,
		unit:    unitLiters,
		icon:    staticIcon(iconGasStation),
		extract: func(s *model.State) any { return floatValue(s.RemainingFuel) },
	},
	ChargingTimeRemaining: {
		name:    model.AttrChargingTimeRemaining,
		unit:    unitHours,
		icon:    staticIcon(iconUpdate),
		extract: func(s *model.State) any { return floatValue(s.ChargingTimeRemaining) },
	},
	ChargingStatus: {
		name: model.AttrChargingStatus,
		icon: staticIcon(iconBatteryCharging),
		extract: func(s *model.State) any {
			if s.ChargingStatus == nil {
				return nil
			}
			return s.ChargingStatus.Value()
		},
	},
	ChargingLevelHV: {
		name: model.AttrChargingLevelHV,
		unit: unitPercent,
		icon: func(s *model.State) string {
			return BatteryIcon(s.ChargingLevelHV, s.Charging())
		},
		extract: func(s *model.State) any { return intValue(s.ChargingLevelHV) },
	},
}

// Attributes lists every supported attribute.
func Attributes() []Attribute {
	return []Attribute{
		Mileage, RemainingRangeTotal, RemainingRangeElectric, RemainingRangeFuel,
		MaxRangeElectric, RemainingFuel, ChargingTimeRemaining, ChargingStatus, ChargingLevelHV,
	}
}

// ParseAttribute resolves a state field name.
func ParseAttribute(name string) (Attribute, error) {
	for a, d := range definitions {
		if d.name == name {
			return a, nil
		}
	}
	return attributeInvalid, fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
}

// Valid reports whether a is part of the attribute table.
func (a Attribute) Valid() bool {
	_, ok := definitions[a]
	return ok
}

// String returns the state field name.
func (a Attribute) String() string {
	if d, ok := definitions[a]; ok {
		return d.name
	}
	return "unknown"
}

// Unit returns the unit of measurement, empty when the attribute has none.
func (a Attribute) Unit() string {
	return definitions[a].unit
}

// Icon returns the icon for the attribute given the current state.
func (a Attribute) Icon(s *model.State) string {
	d, ok := definitions[a]
	if !ok {
		return ""
	}
	return d.icon(s)
}

// Extract reads the attribute from s. Missing fields yield a nil value.
func (a Attribute) Extract(s *model.State) (any, error) {
	d, ok := definitions[a]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAttribute, int(a))
	}
	return d.extract(s), nil
}

func intValue(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func floatValue(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
