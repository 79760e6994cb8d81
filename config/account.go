package config

import (
	"fmt"

	"github.com/kilianp07/connecteddrive/core/model"
	"github.com/kilianp07/connecteddrive/core/sensor"
)

// Vehicle list providers.
const (
	ProviderStatic = "static"
	ProviderMQTT   = "mqtt"
	ProviderREST   = "rest"
)

// AccountConfig describes one remote vehicle account.
type AccountConfig struct {
	Name      string          `json:"name"`
	Provider  string          `json:"provider"`
	Vehicles  []VehicleConfig `json:"vehicles"`
	Discovery DiscoveryConfig `json:"discovery"`
	REST      RESTConfig      `json:"rest"`
	// Attributes restricts the sensors created for the account. Empty means all.
	Attributes []string `json:"attributes"`
}

// VehicleConfig is a statically configured vehicle.
type VehicleConfig struct {
	VIN        string `json:"vin"`
	Name       string `json:"name"`
	DriveTrain string `json:"drive_train"`
}

// DiscoveryConfig configures the MQTT broadcast vehicle discovery.
type DiscoveryConfig struct {
	BroadcastTopic string `json:"broadcast_topic"`
	ResponseTopic  string `json:"response_topic"`
	MagicWord      string `json:"magic_word"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// RESTConfig configures the OAuth2 protected vehicle list endpoint.
type RESTConfig struct {
	URL            string   `json:"url"`
	TokenURL       string   `json:"token_url"`
	ClientID       string   `json:"client_id"`
	ClientSecret   string   `json:"client_secret"`
	Scopes         []string `json:"scopes"`
	TimeoutSeconds int      `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *AccountConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderStatic
	}
	for i := range c.Vehicles {
		if c.Vehicles[i].Name == "" {
			c.Vehicles[i].Name = c.Vehicles[i].VIN
		}
	}
	if c.Discovery.BroadcastTopic == "" {
		c.Discovery.BroadcastTopic = "connecteddrive/fleet/discovery"
	}
	if c.Discovery.ResponseTopic == "" {
		c.Discovery.ResponseTopic = "connecteddrive/fleet/response/+"
	}
	if c.Discovery.MagicWord == "" {
		c.Discovery.MagicWord = "hello"
	}
	if c.Discovery.TimeoutSeconds <= 0 {
		c.Discovery.TimeoutSeconds = 2
	}
	if c.REST.TimeoutSeconds <= 0 {
		c.REST.TimeoutSeconds = 10
	}
}

// Validate checks the provider specific settings.
func (c AccountConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("account name is required")
	}
	switch c.Provider {
	case ProviderStatic:
		if len(c.Vehicles) == 0 {
			return fmt.Errorf("account %s: static provider requires vehicles", c.Name)
		}
		seen := map[string]bool{}
		for _, v := range c.Vehicles {
			if v.VIN == "" {
				return fmt.Errorf("account %s: vehicle vin is required", c.Name)
			}
			if seen[v.VIN] {
				return fmt.Errorf("account %s: duplicate vin %s", c.Name, v.VIN)
			}
			seen[v.VIN] = true
			if _, err := model.ParseDriveTrain(v.DriveTrain); err != nil {
				return fmt.Errorf("account %s: vehicle %s: %w", c.Name, v.VIN, err)
			}
		}
	case ProviderMQTT:
	case ProviderREST:
		if c.REST.URL == "" || c.REST.TokenURL == "" {
			return fmt.Errorf("account %s: rest provider requires url and token_url", c.Name)
		}
	default:
		return fmt.Errorf("account %s: unknown provider %s", c.Name, c.Provider)
	}
	for _, a := range c.Attributes {
		if _, err := sensor.ParseAttribute(a); err != nil {
			return fmt.Errorf("account %s: %w", c.Name, err)
		}
	}
	return nil
}

// SensorAttributes returns the parsed attribute allow list.
func (c AccountConfig) SensorAttributes() ([]sensor.Attribute, error) {
	out := make([]sensor.Attribute, 0, len(c.Attributes))
	for _, a := range c.Attributes {
		attr, err := sensor.ParseAttribute(a)
		if err != nil {
			return nil, err
		}
		out = append(out, attr)
	}
	return out, nil
}

// StaticVehicles converts the configured vehicles.
func (c AccountConfig) StaticVehicles() ([]*model.Vehicle, error) {
	out := make([]*model.Vehicle, 0, len(c.Vehicles))
	for _, v := range c.Vehicles {
		dt, err := model.ParseDriveTrain(v.DriveTrain)
		if err != nil {
			return nil, fmt.Errorf("vehicle %s: %w", v.VIN, err)
		}
		out = append(out, model.NewVehicle(v.VIN, v.Name, dt))
	}
	return out, nil
}
