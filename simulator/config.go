package main

import (
	"fmt"
	"time"
)

// Config holds parameters for the simulator.
type Config struct {
	Broker           string
	ClientID         string
	FleetSize        int
	FleetFile        string
	AvailabilityFile string
	Interval         time.Duration
	Push             bool
	ResponseLatency  time.Duration
	DropRate         float64
	Seed             int64
	Verbose          bool

	StatePrefix       string
	RequestTopic      string
	ResponsePrefix    string
	DiscoveryTopic    string
	DiscoveryResponse string
	MagicWord         string
}

// SetDefaults fills the topic layout expected by the service defaults.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "connecteddrive-sim"
	}
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.StatePrefix == "" {
		c.StatePrefix = "connecteddrive/vehicle/state"
	}
	if c.RequestTopic == "" {
		c.RequestTopic = "connecteddrive/vehicle/poll"
	}
	if c.ResponsePrefix == "" {
		c.ResponsePrefix = "connecteddrive/vehicle/response"
	}
	if c.DiscoveryTopic == "" {
		c.DiscoveryTopic = "connecteddrive/fleet/discovery"
	}
	if c.DiscoveryResponse == "" {
		c.DiscoveryResponse = "connecteddrive/fleet/response"
	}
	if c.MagicWord == "" {
		c.MagicWord = "hello"
	}
}

// Validate checks the simulator parameters.
func (c *Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("broker is required")
	}
	if c.FleetSize <= 0 && c.FleetFile == "" {
		return fmt.Errorf("fleet-size or fleet-file is required")
	}
	if c.DropRate < 0 || c.DropRate > 1 {
		return fmt.Errorf("drop-rate must be within [0,1]")
	}
	return nil
}
