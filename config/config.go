package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/connecteddrive/core/metrics"
	"github.com/kilianp07/connecteddrive/infra/mqtt"
)

type Config struct {
	MQTT      mqtt.Config     `json:"mqtt"`
	Accounts  []AccountConfig `json:"accounts"`
	Telemetry TelemetryConfig `json:"telemetry"`
	Hass      HassConfig      `json:"hass"`
	Metrics   metrics.Config  `json:"metrics"`
	HTTP      HTTPConfig      `json:"http"`
	Logging   LoggingConfig   `json:"logging"`
	Sentry    SentryConfig    `json:"sentry"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "connecteddrive"
	}
	for i := range c.Accounts {
		c.Accounts[i].SetDefaults()
	}
	c.Telemetry.SetDefaults()
	c.Hass.SetDefaults()
	c.HTTP.SetDefaults()
	c.Logging.SetDefaults()
	c.Sentry.SetDefaults()
	if c.Hass.Enabled && c.MQTT.LWTTopic == "" {
		c.MQTT.LWTTopic = c.Hass.AvailabilityTopic()
		c.MQTT.LWTPayload = "offline"
		c.MQTT.LWTRetain = true
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if c.MQTT.Broker == "" && (c.Telemetry.Enabled || c.Hass.Enabled) {
		return fmt.Errorf("mqtt: broker is required")
	}
	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one account is required")
	}
	names := map[string]bool{}
	for _, a := range c.Accounts {
		if err := a.Validate(); err != nil {
			return err
		}
		if names[a.Name] {
			return fmt.Errorf("duplicate account %s", a.Name)
		}
		names[a.Name] = true
	}
	if err := c.Telemetry.Validate(); err != nil {
		return err
	}
	if err := c.Hass.Validate(); err != nil {
		return err
	}
	return c.Logging.Validate()
}
