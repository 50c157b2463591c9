package resource

import (
	"math"
	"time"

	"github.com/tutu-network/aigov/internal/domain"
)

// Band thresholds. Lower bounds are exclusive of the next band: 60.0°C is
// already limited, 70.0°C is already survival.
const (
	CoolTemperatureC = 60.0
	HotTemperatureC  = 70.0
	BusyLoadPercent  = 60.0
)

// Plausible SoC temperature range. Readings at or below the floor, or above
// the ceiling, come from a broken or erroring thermal driver.
const (
	MinTemperatureC = -40.0
	MaxTemperatureC = 150.0
)

var (
	fullDecision = domain.PolicyDecision{
		ThreadBudget: 4, PollInterval: 1000 * time.Millisecond, Admitted: true, Band: domain.BandFull,
	}
	limitedDecision = domain.PolicyDecision{
		ThreadBudget: 2, PollInterval: 2000 * time.Millisecond, Admitted: true, Band: domain.BandLimited,
	}
	survivalDecision = domain.PolicyDecision{
		ThreadBudget: 0, PollInterval: 3000 * time.Millisecond, Admitted: false, Band: domain.BandSurvival,
	}
)

// Decide maps sensor readings to a policy for AUTO mode. Readings that are
// NaN, infinite or out of range land in the survival band.
func Decide(temperatureC, cpuLoadPercent float64) domain.PolicyDecision {
	if !validReading(temperatureC, cpuLoadPercent) {
		return survivalDecision
	}
	switch {
	case temperatureC < CoolTemperatureC && cpuLoadPercent < BusyLoadPercent:
		return fullDecision
	case temperatureC < HotTemperatureC:
		return limitedDecision
	default:
		return survivalDecision
	}
}

// ForMode resolves the effective policy. Forced modes ignore the readings;
// AUTO goes through Decide. Unknown modes are treated as OFF.
func ForMode(mode domain.Mode, temperatureC, cpuLoadPercent float64) domain.PolicyDecision {
	switch mode {
	case domain.ModeAuto:
		return Decide(temperatureC, cpuLoadPercent)
	case domain.ModeFull:
		return fullDecision
	case domain.ModeLimited:
		return limitedDecision
	default:
		return survivalDecision
	}
}

func validReading(temperatureC, cpuLoadPercent float64) bool {
	if math.IsNaN(temperatureC) || temperatureC <= MinTemperatureC || temperatureC > MaxTemperatureC {
		return false
	}
	if math.IsNaN(cpuLoadPercent) || cpuLoadPercent < 0 || cpuLoadPercent > 100 {
		return false
	}
	return true
}
