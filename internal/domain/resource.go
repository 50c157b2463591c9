// Package domain holds the governor's pure types: operating modes, policy
// decisions, state snapshots and per-cycle records. No infrastructure
// dependency lives here.
package domain

import (
	"fmt"
	"time"
)

// Mode is the operator- or policy-selected operating regime. The numeric
// values are part of the STATUS wire reply and must not be reordered.
type Mode int

const (
	ModeAuto    Mode = iota // derived each cycle from sensor readings
	ModeFull                // forced full inference
	ModeLimited             // forced throttled inference
	ModeOff                 // inference disabled
)

// String returns the protocol spelling of the mode.
func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "AUTO"
	case ModeFull:
		return "FULL"
	case ModeLimited:
		return "LIMITED"
	case ModeOff:
		return "OFF"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Valid reports whether m is one of the four defined modes.
func (m Mode) Valid() bool {
	return m >= ModeAuto && m <= ModeOff
}

// ParseMode is the inverse of String. Matching is case-sensitive.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "AUTO":
		return ModeAuto, nil
	case "FULL":
		return ModeFull, nil
	case "LIMITED":
		return ModeLimited, nil
	case "OFF":
		return ModeOff, nil
	}
	return ModeOff, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Band names the policy row that produced a decision.
type Band string

const (
	BandFull     Band = "full"
	BandLimited  Band = "limited"
	BandSurvival Band = "survival"
)

// PolicyDecision is the execution policy for one control cycle.
type PolicyDecision struct {
	ThreadBudget int           `json:"thread_budget"`
	PollInterval time.Duration `json:"poll_interval"`
	Admitted     bool          `json:"admitted"`
	Band         Band          `json:"band"`
}

// Snapshot is a consistent view of the governor state, taken under the
// same lock the control loop writes with.
type Snapshot struct {
	Mode           Mode    `json:"mode"`
	TemperatureC   float64 `json:"temperature_c"`
	CPULoadPercent float64 `json:"cpu_load_percent"`
	PendingTrigger bool    `json:"pending_trigger"`
}

// InferenceOutcome is the verdict of one admitted inference attempt.
// A late outcome means the result was dropped, not that the call failed.
type InferenceOutcome struct {
	Elapsed        time.Duration `json:"-"`
	ElapsedMillis  int64         `json:"elapsed_ms"`
	WithinDeadline bool          `json:"within_deadline"`
	Err            error         `json:"-"`
}

// Cycle records what a single control-loop iteration observed and did.
type Cycle struct {
	ID             string            `json:"id"`
	At             time.Time         `json:"at"`
	TemperatureC   float64           `json:"temperature_c"`
	CPULoadPercent float64           `json:"cpu_load_percent"`
	Mode           Mode              `json:"mode"`
	Decision       PolicyDecision    `json:"decision"`
	Outcome        *InferenceOutcome `json:"outcome,omitempty"`
	ManualTrigger  bool              `json:"manual_trigger"`
	SensorFault    bool              `json:"sensor_fault"`
}

// Journal event kinds.
const (
	EventModeChange       = "mode_change"
	EventTriggerRequested = "trigger_requested"
	EventTriggerHonored   = "trigger_honored"
	EventDeadlineMiss     = "deadline_miss"
	EventSensorFault      = "sensor_fault"
)

// Event is a journal entry for something notable outside the regular
// cycle record.
type Event struct {
	ID     string    `json:"id"`
	At     time.Time `json:"at"`
	Kind   string    `json:"kind"`
	Detail string    `json:"detail"`
}
