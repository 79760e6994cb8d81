package plugins

import (
	"fmt"
	"time"

	"github.com/kilianp07/connecteddrive/config"
	"github.com/kilianp07/connecteddrive/core/account"
	"github.com/kilianp07/connecteddrive/infra/fleetapi"
	infmqtt "github.com/kilianp07/connecteddrive/infra/mqtt"
)

func init() {
	RegisterProvider(config.ProviderStatic, func(cfg config.AccountConfig, _ Deps) (account.VehicleProvider, error) {
		vehicles, err := cfg.StaticVehicles()
		if err != nil {
			return nil, err
		}
		return account.StaticProvider{List: vehicles}, nil
	})
	RegisterProvider(config.ProviderMQTT, func(cfg config.AccountConfig, deps Deps) (account.VehicleProvider, error) {
		if deps.MQTT == nil {
			return nil, fmt.Errorf("account %s: mqtt provider requires a broker", cfg.Name)
		}
		d := cfg.Discovery
		return infmqtt.NewDiscovery(deps.MQTT, d.BroadcastTopic, d.ResponseTopic, d.MagicWord,
			time.Duration(d.TimeoutSeconds)*time.Second, deps.Logger), nil
	})
	RegisterProvider(config.ProviderREST, func(cfg config.AccountConfig, deps Deps) (account.VehicleProvider, error) {
		return fleetapi.NewProvider(cfg.REST, deps.Logger), nil
	})
}
