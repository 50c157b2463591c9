//go:build !linux

package resource

import (
	"fmt"
	"runtime"

	"github.com/tutu-network/aigov/internal/domain"
)

// SysfsSensors is only functional on Linux. Elsewhere every read fails as
// a transient sensor fault, which the governor logs and rides through.
type SysfsSensors struct{}

// NewSysfsSensors returns a sensor reader that always reports unavailable.
func NewSysfsSensors(_, _ string, _ []string) (*SysfsSensors, error) {
	return &SysfsSensors{}, nil
}

func (s *SysfsSensors) ReadTemperature() (float64, error) {
	return 0, fmt.Errorf("%w: thermal zones not supported on %s", domain.ErrSensorUnavailable, runtime.GOOS)
}

func (s *SysfsSensors) ReadCPULoad() (float64, error) {
	return 0, fmt.Errorf("%w: /proc/stat not supported on %s", domain.ErrSensorUnavailable, runtime.GOOS)
}
