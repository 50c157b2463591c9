//go:build linux

package resource

import (
	"fmt"
	"strings"

	"github.com/prometheus/procfs"
	"github.com/prometheus/procfs/sysfs"

	"github.com/tutu-network/aigov/internal/domain"
)

// SysfsSensors reads temperature from /sys/class/thermal and CPU counters
// from /proc/stat.
type SysfsSensors struct {
	proc  procfs.FS
	sys   sysfs.FS
	zones map[string]bool
	load  loadTracker
}

// NewSysfsSensors opens the proc and sys mounts. zones selects which
// thermal zones count ("thermal_zone0" or "0"); the hottest one wins. An
// empty list means every zone.
func NewSysfsSensors(procPath, sysPath string, zones []string) (*SysfsSensors, error) {
	p, err := procfs.NewFS(procPath)
	if err != nil {
		return nil, fmt.Errorf("open procfs %s: %w", procPath, err)
	}
	s, err := sysfs.NewFS(sysPath)
	if err != nil {
		return nil, fmt.Errorf("open sysfs %s: %w", sysPath, err)
	}

	want := make(map[string]bool, len(zones))
	for _, z := range zones {
		want[strings.TrimPrefix(z, "thermal_zone")] = true
	}
	return &SysfsSensors{proc: p, sys: s, zones: want}, nil
}

// ReadTemperature returns the highest selected zone temperature in °C.
func (s *SysfsSensors) ReadTemperature() (float64, error) {
	stats, err := s.sys.ClassThermalZoneStats()
	if err != nil {
		return 0, fmt.Errorf("%w: thermal zones: %v", domain.ErrSensorUnavailable, err)
	}

	found := false
	var hottest int64
	for _, z := range stats {
		if len(s.zones) > 0 && !s.zones[z.Name] {
			continue
		}
		if !found || z.Temp > hottest {
			hottest = z.Temp
			found = true
		}
	}
	if !found {
		return 0, fmt.Errorf("%w: no readable thermal zone", domain.ErrSensorUnavailable)
	}
	return float64(hottest) / 1000, nil
}

// ReadCPULoad samples the aggregate cpu line of /proc/stat and diffs it
// against the previous sample.
func (s *SysfsSensors) ReadCPULoad() (float64, error) {
	stat, err := s.proc.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: /proc/stat: %v", domain.ErrSensorUnavailable, err)
	}
	c := stat.CPUTotal
	idle := c.Idle + c.Iowait
	return s.load.observe(cpuTimes{
		Idle:  idle,
		Total: c.User + c.Nice + c.System + idle + c.IRQ + c.SoftIRQ,
	}), nil
}
