package config

import (
	"fmt"
	"strings"
)

// HassConfig configures the Home Assistant MQTT surface.
type HassConfig struct {
	Enabled         bool   `json:"enabled"`
	DiscoveryPrefix string `json:"discovery_prefix"`
	BaseTopic       string `json:"base_topic"`
	NodeID          string `json:"node_id"`
	Manufacturer    string `json:"manufacturer"`
	StateRetain     bool   `json:"state_retain"`
}

// SetDefaults applies sane defaults.
func (c *HassConfig) SetDefaults() {
	if c.DiscoveryPrefix == "" {
		c.DiscoveryPrefix = "homeassistant"
	}
	if c.BaseTopic == "" {
		c.BaseTopic = "connecteddrive"
	}
	if c.NodeID == "" {
		c.NodeID = "connecteddrive"
	}
	if c.Manufacturer == "" {
		c.Manufacturer = "BMW"
	}
}

// Validate rejects wildcards in topics.
func (c HassConfig) Validate() error {
	for _, t := range []string{c.DiscoveryPrefix, c.BaseTopic, c.NodeID} {
		if strings.ContainsAny(t, "+#") {
			return fmt.Errorf("hass: topic %q must not contain wildcards", t)
		}
	}
	return nil
}

// AvailabilityTopic is where online/offline is published.
func (c HassConfig) AvailabilityTopic() string {
	return strings.TrimSuffix(c.BaseTopic, "/") + "/status"
}

// HTTPConfig configures the HTTP API.
type HTTPConfig struct {
	Enabled      bool   `json:"enabled"`
	Address      string `json:"address"`
	HistoryToken string `json:"history_token"`
}

// SetDefaults applies sane defaults.
func (c *HTTPConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
}
