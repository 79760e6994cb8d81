// Package logger defines the logging contract shared by the core packages.
// Implementations live in infra/logger.
package logger

// Logger is a leveled, printf style logger. Implementations tag every entry
// with the component they were created for.
type Logger interface {
	Debugf(format string, args ...any)
	// Debugw logs msg with structured fields such as a VIN or unique id.
	Debugw(msg string, fields map[string]any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}
