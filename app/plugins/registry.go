package plugins

import (
	"fmt"

	"github.com/kilianp07/connecteddrive/config"
	"github.com/kilianp07/connecteddrive/core/account"
	"github.com/kilianp07/connecteddrive/core/logger"
	coremqtt "github.com/kilianp07/connecteddrive/core/mqtt"
)

// Deps are the shared resources handed to provider factories.
type Deps struct {
	// MQTT is nil when no broker is configured.
	MQTT   coremqtt.Client
	Logger logger.Logger
}

// ProviderFactory builds the vehicle provider of an account.
type ProviderFactory func(cfg config.AccountConfig, deps Deps) (account.VehicleProvider, error)

var Providers = map[string]ProviderFactory{}

func RegisterProvider(name string, f ProviderFactory) { Providers[name] = f }

// NewProvider looks up the factory named by cfg.Provider.
func NewProvider(cfg config.AccountConfig, deps Deps) (account.VehicleProvider, error) {
	f, ok := Providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("account %s: unknown provider %s", cfg.Name, cfg.Provider)
	}
	return f(cfg, deps)
}
