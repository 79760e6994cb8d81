// Package fleetapi lists the vehicles of an account from an OAuth2
// protected REST endpoint.
package fleetapi
