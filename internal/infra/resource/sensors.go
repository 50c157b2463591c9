package resource

import (
	"math"
	"sync"
)

// Sensors reads the two signals the governor acts on.
type Sensors interface {
	// ReadTemperature returns the instantaneous chip temperature in °C.
	ReadTemperature() (float64, error)

	// ReadCPULoad returns the busy fraction (0–100) since the previous
	// call. The first call has nothing to diff against and returns 0.
	ReadCPULoad() (float64, error)
}

// cpuTimes is one sample of the cumulative CPU counters. Units do not
// matter as long as both samples share them.
type cpuTimes struct {
	Idle  float64 // idle + iowait
	Total float64 // user + nice + system + idle + iowait + irq + softirq
}

// loadTracker turns cumulative counters into a load percentage by
// diffing against the previous sample.
type loadTracker struct {
	mu   sync.Mutex
	prev *cpuTimes
}

// observe records cur and returns the busy percentage since the last
// sample. Cold start, a zero or negative total delta (counter reset) all
// report 0.
func (t *loadTracker) observe(cur cpuTimes) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.prev
	t.prev = &cur
	if prev == nil {
		return 0
	}
	return cpuLoad(*prev, cur)
}

func cpuLoad(prev, cur cpuTimes) float64 {
	totalDelta := cur.Total - prev.Total
	idleDelta := cur.Idle - prev.Idle
	if totalDelta <= 0 || math.IsNaN(totalDelta) {
		return 0
	}
	pct := 100 * (1 - idleDelta/totalDelta)
	switch {
	case math.IsNaN(pct) || pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}
