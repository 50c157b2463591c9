// Package resource governs inference against the device's thermal and CPU
// headroom: sensor reading, the policy table, shared governor state and the
// control loop.
package resource

import (
	"context"
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tutu-network/aigov/internal/domain"
	"github.com/tutu-network/aigov/internal/infra/clock"
	"github.com/tutu-network/aigov/internal/infra/engine"
)

// CycleObserver receives every completed cycle. Observers run on the
// control loop goroutine and must return quickly.
type CycleObserver interface {
	ObserveCycle(c domain.Cycle)
}

// Governor is the control loop. Each cycle it samples the sensors,
// resolves the policy for the current mode, applies the thread budget,
// runs one gated inference if admitted, consumes the manual trigger and
// sleeps for the poll interval.
type Governor struct {
	state     *State
	sensors   Sensors
	engine    engine.Engine
	gate      *engine.Gate
	clock     clock.Clock
	logger    zerolog.Logger
	observers []CycleObserver

	// last known readings, substituted on sensor failure; loop-local
	lastTemp float64
	lastLoad float64
	haveTemp bool
	haveLoad bool
}

// NewGovernor wires the loop. The gate must wrap eng.
func NewGovernor(state *State, sensors Sensors, eng engine.Engine, gate *engine.Gate, clk clock.Clock, logger zerolog.Logger) *Governor {
	if clk == nil {
		clk = clock.Real()
	}
	return &Governor{
		state:   state,
		sensors: sensors,
		engine:  eng,
		gate:    gate,
		clock:   clk,
		logger:  logger,
	}
}

// AddObserver registers an observer. Call before Run.
func (g *Governor) AddObserver(o CycleObserver) {
	g.observers = append(g.observers, o)
}

// Run drives cycles until ctx is cancelled. Cancellation is honored
// between cycles and during the sleep, never in the middle of an
// inference pass.
func (g *Governor) Run(ctx context.Context) error {
	g.logger.Info().Msg("governor started")
	defer g.logger.Info().Msg("governor stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}
		c := g.tick(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-g.clock.After(c.Decision.PollInterval):
		}
	}
}

// tick runs one cycle and returns its record.
func (g *Governor) tick(ctx context.Context) domain.Cycle {
	c := domain.Cycle{
		ID: uuid.NewString(),
		At: g.clock.Now(),
	}

	c.TemperatureC, c.CPULoadPercent, c.SensorFault = g.sample()

	c.Mode = g.state.Record(c.TemperatureC, c.CPULoadPercent)
	temp, load := g.policyInputs(c.TemperatureC, c.CPULoadPercent)
	c.Decision = ForMode(c.Mode, temp, load)

	g.engine.ConfigureConcurrency(c.Decision.ThreadBudget)

	if c.Decision.Admitted {
		// The pass runs to completion even if shutdown starts meanwhile.
		out := g.gate.Run(context.WithoutCancel(ctx))
		c.Outcome = &out
	}

	c.ManualTrigger = g.state.ConsumeTrigger()

	g.logCycle(c)
	for _, o := range g.observers {
		o.ObserveCycle(c)
	}
	return c
}

// sample reads both sensors, falling back to the last known value on
// failure.
func (g *Governor) sample() (temp, load float64, fault bool) {
	temp, err := g.sensors.ReadTemperature()
	if err != nil {
		g.logger.Warn().Err(err).Float64("substitute", g.lastTemp).Msg("temperature read failed")
		temp = g.lastTemp
		fault = true
	} else {
		g.lastTemp, g.haveTemp = temp, true
	}

	load, err = g.sensors.ReadCPULoad()
	if err != nil {
		g.logger.Warn().Err(err).Float64("substitute", g.lastLoad).Msg("cpu load read failed")
		load = g.lastLoad
		fault = true
	} else {
		g.lastLoad, g.haveLoad = load, true
	}
	return temp, load, fault
}

// policyInputs replaces a reading that has never succeeded with NaN so AUTO
// stays in survival until the sensor first reports.
func (g *Governor) policyInputs(temp, load float64) (float64, float64) {
	if !g.haveTemp {
		temp = math.NaN()
	}
	if !g.haveLoad {
		load = math.NaN()
	}
	return temp, load
}

func (g *Governor) logCycle(c domain.Cycle) {
	ev := g.logger.Info().
		Float64("temp_c", c.TemperatureC).
		Float64("cpu_pct", c.CPULoadPercent).
		Stringer("mode", c.Mode).
		Str("band", string(c.Decision.Band)).
		Int("threads", c.Decision.ThreadBudget)

	switch {
	case c.Outcome == nil:
		ev.Msg("inference paused")
	case c.Outcome.Err != nil:
		ev.Err(c.Outcome.Err).Int64("elapsed_ms", c.Outcome.ElapsedMillis).Msg("inference failed")
	case !c.Outcome.WithinDeadline:
		ev.Int64("elapsed_ms", c.Outcome.ElapsedMillis).Dur("deadline", g.gate.Deadline()).Msg("inference late, result dropped")
	default:
		ev.Int64("elapsed_ms", c.Outcome.ElapsedMillis).Msg("inference executed")
	}

	if c.ManualTrigger {
		g.logger.Info().Bool("admitted", c.Decision.Admitted).Msg("manual trigger honored")
	}
}
