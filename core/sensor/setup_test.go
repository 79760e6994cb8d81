package sensor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/connecteddrive/core/account"
	"github.com/kilianp07/connecteddrive/core/model"
	"github.com/kilianp07/connecteddrive/infra/logger"
)

func TestBuildEnumeratesAccounts(t *testing.T) {
	bev := model.NewVehicle("WBA1", "i3", model.DriveTrainBEV)
	ice := model.NewVehicle("WBA2", "x5", model.DriveTrainConventional)
	phev := model.NewVehicle("WBA3", "330e", model.DriveTrainPHEV)
	a1 := newAccount(t, bev, ice)
	a2 := account.New("work", account.StaticProvider{List: []*model.Vehicle{phev}}, logger.NopLogger{})
	require.NoError(t, a2.LoadVehicles(context.Background()))

	adapters, err := Build([]*account.Account{a1, a2})
	require.NoError(t, err)
	// BEV 6+1, conventional 3+1, PHEV 8+1
	assert.Len(t, adapters, 20)

	var mileage int
	for _, a := range adapters {
		if a.Attribute() == Mileage {
			mileage++
		}
		assert.False(t, a.ShouldPoll())
	}
	assert.Equal(t, 3, mileage)
	assert.Equal(t, "work", adapters[len(adapters)-1].Account().Name())
}

func TestSetupRefreshesAndSubscribes(t *testing.T) {
	v := model.NewVehicle("WBA1", "x5", model.DriveTrainConventional)
	v.SetState(&model.State{Mileage: model.Int(10), RemainingFuel: model.Float(30)})
	acc := newAccount(t, v)
	host := &mockHost{}
	host.On("Add", 4).Return(nil).Once()

	adapters, err := Setup([]*account.Account{acc}, host, logger.NopLogger{})
	require.NoError(t, err)
	require.Len(t, adapters, 4)
	assert.Equal(t, 4, acc.Listeners())
	for _, a := range adapters {
		if a.Attribute() == Mileage {
			assert.Equal(t, 10, a.Value())
		}
	}

	host.On("ScheduleUpdate", mock.Anything, mock.Anything).Times(4)
	acc.Notify()
	host.AssertExpectations(t)
}

func TestSetupAddFailure(t *testing.T) {
	v := model.NewVehicle("WBA1", "x5", model.DriveTrainConventional)
	acc := newAccount(t, v)
	host := &mockHost{}
	host.On("Add", 4).Return(errors.New("full")).Once()
	_, err := Setup([]*account.Account{acc}, host, logger.NopLogger{})
	assert.Error(t, err)
	assert.Equal(t, 0, acc.Listeners())
}

func TestBuildWithAttributes(t *testing.T) {
	bev := model.NewVehicle("WBA1", "i3", model.DriveTrainBEV)
	acc := newAccount(t, bev)
	other := account.New("work", account.StaticProvider{List: []*model.Vehicle{model.NewVehicle("WBA2", "x5", model.DriveTrainConventional)}}, logger.NopLogger{})
	require.NoError(t, other.LoadVehicles(context.Background()))

	adapters, err := Build([]*account.Account{acc, other}, WithAttributes(acc.Name(), ChargingLevelHV, RemainingFuel))
	require.NoError(t, err)

	var restricted []Attribute
	for _, a := range adapters {
		if a.Account() == acc {
			restricted = append(restricted, a.Attribute())
		}
	}
	// RemainingFuel is not a BEV attribute, mileage is filtered out.
	assert.Equal(t, []Attribute{ChargingLevelHV}, restricted)
	assert.Len(t, adapters, 1+4)
}

func TestWithAttributesEmptyIsUnrestricted(t *testing.T) {
	acc := newAccount(t, model.NewVehicle("WBA1", "x5", model.DriveTrainConventional))
	adapters, err := Build([]*account.Account{acc}, WithAttributes(acc.Name()))
	require.NoError(t, err)
	assert.Len(t, adapters, 4)
}
