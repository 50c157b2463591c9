package resource

import (
	"sync"

	"github.com/tutu-network/aigov/internal/domain"
)

// State is the governor's shared record. One mutex guards every field so
// a reader never sees a new temperature paired with an old mode, and the
// manual trigger is set and consumed exactly once.
type State struct {
	mu             sync.Mutex
	mode           domain.Mode
	temperatureC   float64
	cpuLoadPercent float64
	pendingTrigger bool
}

// NewState returns a state in AUTO mode with zeroed readings.
func NewState() *State {
	return &State{mode: domain.ModeAuto}
}

// Record stores a new sample and returns the mode in force at the same
// instant. Only the control loop calls this.
func (s *State) Record(temperatureC, cpuLoadPercent float64) domain.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temperatureC = temperatureC
	s.cpuLoadPercent = cpuLoadPercent
	return s.mode
}

// SetMode switches the operating mode and returns the previous one.
func (s *State) SetMode(m domain.Mode) domain.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.mode
	s.mode = m
	return prev
}

// Mode returns the current mode.
func (s *State) Mode() domain.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Snapshot returns all fields read under a single lock.
func (s *State) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Snapshot{
		Mode:           s.mode,
		TemperatureC:   s.temperatureC,
		CPULoadPercent: s.cpuLoadPercent,
		PendingTrigger: s.pendingTrigger,
	}
}

// RequestTrigger arms the one-shot manual trigger. It returns false when a
// trigger was already pending; repeated requests collapse into one.
func (s *State) RequestTrigger() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingTrigger {
		return false
	}
	s.pendingTrigger = true
	return true
}

// ConsumeTrigger reads and clears the manual trigger.
func (s *State) ConsumeTrigger() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := s.pendingTrigger
	s.pendingTrigger = false
	return pending
}
