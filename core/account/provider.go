package account

import (
	"context"

	"github.com/kilianp07/connecteddrive/core/model"
)

// StaticProvider returns a fixed vehicle list, typically read from the
// configuration file.
type StaticProvider struct {
	List []*model.Vehicle
}

// Vehicles returns the configured vehicles.
func (p StaticProvider) Vehicles(context.Context) ([]*model.Vehicle, error) {
	return p.List, nil
}
