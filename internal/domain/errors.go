package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency.

var (
	// Sensor errors
	ErrSensorUnavailable = errors.New("sensor unavailable")

	// Mode errors
	ErrUnknownMode = errors.New("unknown mode")

	// Engine errors
	ErrEngineFailed    = errors.New("inference engine call failed")
	ErrNoEngineCommand = errors.New("exec engine requires a command")
	ErrUnknownBackend  = errors.New("unknown engine backend")

	// IPC errors
	ErrMalformedReply = errors.New("malformed governor reply")
)
