package main

import "math"

// Battery models the high voltage battery of an electrified vehicle.
type Battery struct {
	CapacityKWh float64
	// Soc is the state of charge in [0,1].
	Soc          float64
	ChargeRateKW float64
	// ConsumptionKWh is the energy used per 100 km.
	ConsumptionKWh float64
}

// Charge adds the energy delivered during hours and reports whether the
// battery is full.
func (b *Battery) Charge(hours float64) bool {
	if hours <= 0 || b.CapacityKWh <= 0 {
		return b.Soc >= 1
	}
	b.Soc = math.Min(1, b.Soc+b.ChargeRateKW*hours/b.CapacityKWh)
	return b.Soc >= 1
}

// Drive consumes energy for km kilometres and returns the distance that
// could be covered electrically.
func (b *Battery) Drive(km float64) float64 {
	if km <= 0 || b.ConsumptionKWh <= 0 {
		return 0
	}
	avail := b.Range()
	if km > avail {
		km = avail
	}
	b.Soc = math.Max(0, b.Soc-km*b.ConsumptionKWh/100/b.CapacityKWh)
	return km
}

// Range is the remaining electric range in km.
func (b *Battery) Range() float64 {
	if b.ConsumptionKWh <= 0 {
		return 0
	}
	return b.Soc * b.CapacityKWh / b.ConsumptionKWh * 100
}

// MaxRange is the electric range of a full battery in km.
func (b *Battery) MaxRange() float64 {
	if b.ConsumptionKWh <= 0 {
		return 0
	}
	return b.CapacityKWh / b.ConsumptionKWh * 100
}

// Level returns the state of charge in percent.
func (b *Battery) Level() int {
	return int(math.Round(b.Soc * 100))
}

// TimeToFull returns the charging time left in hours.
func (b *Battery) TimeToFull() float64 {
	if b.ChargeRateKW <= 0 {
		return 0
	}
	return (1 - b.Soc) * b.CapacityKWh / b.ChargeRateKW
}
