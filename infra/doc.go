// Package infra groups the adapters between the core packages and the
// outside world: the paho MQTT client and in-memory broker, the Home
// Assistant publisher, the telemetry collector, the OAuth2 fleet API, the
// metrics sinks, Sentry and zerolog. Core packages only see their
// interfaces.
package infra
