package hass

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/kilianp07/connecteddrive/config"
	"github.com/kilianp07/connecteddrive/core/logger"
	coremqtt "github.com/kilianp07/connecteddrive/core/mqtt"
	"github.com/kilianp07/connecteddrive/core/sensor"
)

const (
	// StateUnknown is published for sensors without a value.
	StateUnknown = "unknown"
	online       = "online"
	offline      = "offline"
)

// Device groups all sensors of a vehicle.
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
}

// SensorConfig is the retained discovery document of one sensor.
type SensorConfig struct {
	Name                string `json:"name"`
	UniqueID            string `json:"unique_id"`
	ObjectID            string `json:"object_id,omitempty"`
	StateTopic          string `json:"state_topic"`
	AttributesTopic     string `json:"json_attributes_topic"`
	AvailabilityTopic   string `json:"availability_topic"`
	UnitOfMeasurement   string `json:"unit_of_measurement,omitempty"`
	Icon                string `json:"icon,omitempty"`
	PayloadAvailable    string `json:"payload_available"`
	PayloadNotAvailable string `json:"payload_not_available"`
	Device              Device `json:"device"`
}

// Publisher writes discovery, state and availability messages.
type Publisher struct {
	cli coremqtt.Client
	cfg config.HassConfig
	log logger.Logger

	mu    sync.Mutex
	icons map[string]string
}

// NewPublisher returns a publisher using cfg's topic layout.
func NewPublisher(cli coremqtt.Client, cfg config.HassConfig, log logger.Logger) *Publisher {
	cfg.SetDefaults()
	return &Publisher{cli: cli, cfg: cfg, log: log, icons: make(map[string]string)}
}

// ConfigTopic returns the discovery topic of the sensor.
func (p *Publisher) ConfigTopic(uniqueID string) string {
	return coremqtt.Join(p.cfg.DiscoveryPrefix, "sensor", p.cfg.NodeID, uniqueID, "config")
}

// StateTopic returns the topic carrying the sensor value.
func (p *Publisher) StateTopic(s sensor.Snapshot) string {
	return coremqtt.Join(p.cfg.BaseTopic, s.VIN, s.Attribute, "state")
}

// AttributesTopic returns the topic carrying the extra attributes.
func (p *Publisher) AttributesTopic(s sensor.Snapshot) string {
	return coremqtt.Join(p.cfg.BaseTopic, s.VIN, s.Attribute, "attributes")
}

func (p *Publisher) config(s sensor.Snapshot) SensorConfig {
	car, _ := s.Attributes["car"].(string)
	if car == "" {
		car = s.VIN
	}
	return SensorConfig{
		Name:                s.Name,
		UniqueID:            s.UniqueID,
		ObjectID:            strings.ToLower(strings.ReplaceAll(s.UniqueID, "-", "_")),
		StateTopic:          p.StateTopic(s),
		AttributesTopic:     p.AttributesTopic(s),
		AvailabilityTopic:   p.cfg.AvailabilityTopic(),
		UnitOfMeasurement:   s.Unit,
		Icon:                s.Icon,
		PayloadAvailable:    online,
		PayloadNotAvailable: offline,
		Device: Device{
			Identifiers:  []string{s.VIN},
			Name:         car,
			Manufacturer: p.cfg.Manufacturer,
		},
	}
}

// Announce publishes the retained discovery document.
func (p *Publisher) Announce(s sensor.Snapshot) error {
	payload, err := json.Marshal(p.config(s))
	if err != nil {
		return err
	}
	if err := p.cli.Publish(p.ConfigTopic(s.UniqueID), 1, true, payload); err != nil {
		return fmt.Errorf("announce %s: %w", s.UniqueID, err)
	}
	p.mu.Lock()
	p.icons[s.UniqueID] = s.Icon
	p.mu.Unlock()
	return nil
}

// Remove clears the retained discovery document so the entity disappears.
func (p *Publisher) Remove(uniqueID string) error {
	p.mu.Lock()
	delete(p.icons, uniqueID)
	p.mu.Unlock()
	return p.cli.Publish(p.ConfigTopic(uniqueID), 1, true, nil)
}

// PublishState writes the value and attributes of s. The discovery
// document is republished first when the icon changed.
func (p *Publisher) PublishState(s sensor.Snapshot) error {
	p.mu.Lock()
	icon, known := p.icons[s.UniqueID]
	p.mu.Unlock()
	if !known || icon != s.Icon {
		p.log.Debugf("icon of %s is now %s", s.UniqueID, s.Icon)
		if err := p.Announce(s); err != nil {
			return err
		}
	}

	if err := p.cli.Publish(p.StateTopic(s), 0, p.cfg.StateRetain, []byte(FormatState(s.Value))); err != nil {
		return fmt.Errorf("state %s: %w", s.UniqueID, err)
	}
	attrs, err := json.Marshal(s.Attributes)
	if err != nil {
		return err
	}
	if err := p.cli.Publish(p.AttributesTopic(s), 0, p.cfg.StateRetain, attrs); err != nil {
		return fmt.Errorf("attributes %s: %w", s.UniqueID, err)
	}
	return nil
}

// Online marks every sensor available.
func (p *Publisher) Online() error {
	return p.cli.Publish(p.cfg.AvailabilityTopic(), 1, true, []byte(online))
}

// Offline marks every sensor unavailable.
func (p *Publisher) Offline() error {
	return p.cli.Publish(p.cfg.AvailabilityTopic(), 1, true, []byte(offline))
}

// FormatState renders a sensor value as an MQTT payload.
func FormatState(v any) string {
	switch x := v.(type) {
	case nil:
		return StateUnknown
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
