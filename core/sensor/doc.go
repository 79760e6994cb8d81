// Package sensor maps vehicle state attributes onto home-automation sensor
// entities. One Adapter exists per (vehicle, attribute) pair; it caches the
// attribute value and derives its name, icon and unit from a static
// attribute table. Adapters are push driven: they refresh when their
// account reports new vehicle data and then ask the Host to publish them.
package sensor
