// Package hass publishes sensors to Home Assistant through MQTT discovery.
package hass
