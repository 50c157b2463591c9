// Package metrics provides Prometheus metrics for the governor: sensor
// readings, mode and budget, cycle and inference outcomes, and IPC traffic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tutu-network/aigov/internal/domain"
)

// ─── Sensors ────────────────────────────────────────────────────────────────

// Temperature tracks the last SoC temperature used by the policy.
var Temperature = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "aigov",
	Name:      "temperature_celsius",
	Help:      "SoC temperature in Celsius as seen by the last cycle.",
})

// CPULoad tracks the last CPU load used by the policy.
var CPULoad = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "aigov",
	Name:      "cpu_load_percent",
	Help:      "Aggregate CPU load percentage as seen by the last cycle.",
})

// SensorFaults counts cycles that substituted a last known reading.
var SensorFaults = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "aigov",
	Name:      "sensor_faults_total",
	Help:      "Cycles that fell back to a last known sensor reading.",
})

// ─── Governor ───────────────────────────────────────────────────────────────

// Mode tracks the operating mode (0=AUTO, 1=FULL, 2=LIMITED, 3=OFF).
var Mode = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "aigov",
	Name:      "mode",
	Help:      "Operating mode (0=AUTO, 1=FULL, 2=LIMITED, 3=OFF).",
})

// ThreadBudget tracks the thread budget applied to the engine.
var ThreadBudget = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "aigov",
	Name:      "thread_budget",
	Help:      "Worker threads granted to the inference engine.",
})

// Cycles counts control cycles by policy band.
var Cycles = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "aigov",
	Name:      "cycles_total",
	Help:      "Total control cycles by policy band.",
}, []string{"band"})

// ManualTriggers counts consumed manual triggers.
var ManualTriggers = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "aigov",
	Name:      "manual_triggers_total",
	Help:      "Manual inference triggers consumed by the control loop.",
})

// ─── Inference ──────────────────────────────────────────────────────────────

// InferenceLatency tracks measured inference duration in seconds.
var InferenceLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "aigov",
	Name:      "inference_latency_seconds",
	Help:      "Measured inference pass duration in seconds.",
	Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 1},
})

// InferenceOutcomes counts passes by result (on_time, late, error).
var InferenceOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "aigov",
	Name:      "inference_outcomes_total",
	Help:      "Inference passes by result.",
}, []string{"result"})

// ─── IPC ────────────────────────────────────────────────────────────────────

// IPCCommands counts handled control-socket commands.
var IPCCommands = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "aigov",
	Name:      "ipc_commands_total",
	Help:      "Control socket commands handled, by command.",
}, []string{"command"})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "aigov",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})

// Outcome labels.
const (
	ResultOnTime = "on_time"
	ResultLate   = "late"
	ResultError  = "error"
)

// Recorder feeds the package metrics from the governor and the IPC server.
type Recorder struct{}

// ObserveCycle updates gauges and counters for one completed cycle.
func (Recorder) ObserveCycle(c domain.Cycle) {
	Temperature.Set(c.TemperatureC)
	CPULoad.Set(c.CPULoadPercent)
	Mode.Set(float64(c.Mode))
	ThreadBudget.Set(float64(c.Decision.ThreadBudget))
	Cycles.WithLabelValues(string(c.Decision.Band)).Inc()

	if c.SensorFault {
		SensorFaults.Inc()
	}
	if c.ManualTrigger {
		ManualTriggers.Inc()
	}

	if o := c.Outcome; o != nil {
		InferenceLatency.Observe(o.Elapsed.Seconds())
		InferenceOutcomes.WithLabelValues(OutcomeResult(*o)).Inc()
	}
}

// ObserveCommand counts one handled IPC command.
func (Recorder) ObserveCommand(name, _ string) {
	IPCCommands.WithLabelValues(name).Inc()
}

// ObserveHealth records a health check result.
func (Recorder) ObserveHealth(check string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1
	}
	HealthCheckStatus.WithLabelValues(check).Set(v)
}

// OutcomeResult classifies an inference outcome for the outcomes counter.
func OutcomeResult(o domain.InferenceOutcome) string {
	switch {
	case o.Err != nil:
		return ResultError
	case !o.WithinDeadline:
		return ResultLate
	default:
		return ResultOnTime
	}
}
