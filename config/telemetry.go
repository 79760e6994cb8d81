package config

import "fmt"

// TelemetryConfig holds configuration for the telemetry manager.
type TelemetryConfig struct {
	Enabled         bool   `json:"enabled"`
	Mode            string `json:"mode"`
	IntervalSeconds int    `json:"interval_seconds"`
	RequestTopic    string `json:"request_topic"`
	ResponsePrefix  string `json:"response_topic_prefix"`
	StatePrefix     string `json:"state_topic_prefix"`
	TimeoutSeconds  int    `json:"timeout_seconds"`
}

// SetDefaults fills the topic layout used by the simulator.
func (c *TelemetryConfig) SetDefaults() {
	if c.Mode == "" {
		c.Mode = "push"
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
}

// Validate checks the collection mode.
func (c TelemetryConfig) Validate() error {
	switch c.Mode {
	case "push", "pull", "hybrid":
		return nil
	}
	return fmt.Errorf("telemetry: unknown mode %s", c.Mode)
}

func (c TelemetryConfig) Interval() int {
	if c.IntervalSeconds <= 0 {
		return 300
	}
	return c.IntervalSeconds
}

func (c TelemetryConfig) Timeout() int {
	if c.TimeoutSeconds <= 0 {
		return 3
	}
	return c.TimeoutSeconds
}
