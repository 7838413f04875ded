package logger

import corelogger "github.com/kilianp07/parcelmas/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger = corelogger.Nop

// New returns a Logger for the given component. The output format is
// selected with the APP_ENV variable and the level with LOG_LEVEL.
func New(component string) Logger {
	return NewZerologLogger(component)
}

// ForAgent returns a component logger tagged with the vehicle it serves.
func ForAgent(component, vehicleID string) Logger {
	return newZerolog(component, map[string]string{"vehicle_id": vehicleID})
}
