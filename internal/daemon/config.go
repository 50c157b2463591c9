// Package daemon manages the aigov daemon lifecycle and configuration.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tutu-network/aigov/internal/infra/engine"
	"github.com/tutu-network/aigov/internal/infra/indicator"
	"github.com/tutu-network/aigov/internal/infra/sqlite"
	"github.com/tutu-network/aigov/internal/ipc"
)

// Config holds all daemon configuration.
type Config struct {
	Governor  GovernorConfig  `toml:"governor"`
	Sensors   SensorsConfig   `toml:"sensors"`
	IPC       IPCConfig       `toml:"ipc"`
	Engine    EngineConfig    `toml:"engine"`
	Indicator IndicatorConfig `toml:"indicator"`
	API       APIConfig       `toml:"api"`
	Journal   JournalConfig   `toml:"journal"`
	Health    HealthConfig    `toml:"health"`
	Logging   LoggingConfig   `toml:"logging"`
}

// GovernorConfig tunes the control loop.
type GovernorConfig struct {
	DeadlineMS int `toml:"deadline_ms"`
}

// SensorsConfig locates the kernel interfaces.
type SensorsConfig struct {
	ProcPath     string   `toml:"proc_path"`
	SysPath      string   `toml:"sys_path"`
	ThermalZones []string `toml:"thermal_zones"`
}

// IPCConfig controls the control socket.
type IPCConfig struct {
	SocketPath    string `toml:"socket_path"`
	MaxConcurrent int    `toml:"max_concurrent"`
	ReadTimeout   string `toml:"read_timeout"`
}

// EngineConfig selects the inference backend.
type EngineConfig struct {
	Backend            string   `toml:"backend"`
	Command            string   `toml:"command"`
	Args               []string `toml:"args"`
	SimulatedLatencyMS int      `toml:"simulated_latency_ms"`
}

// IndicatorConfig controls the thermal LED.
type IndicatorConfig struct {
	Enabled        bool    `toml:"enabled"`
	BrightnessPath string  `toml:"brightness_path"`
	ActiveLow      bool    `toml:"active_low"`
	ThresholdC     float64 `toml:"threshold_c"`
	IntervalMS     int     `toml:"interval_ms"`
}

// APIConfig controls the HTTP status API.
type APIConfig struct {
	Enabled bool   `toml:"enabled"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Metrics bool   `toml:"metrics"`
}

// JournalConfig controls the in-memory event journal.
type JournalConfig struct {
	Enabled bool `toml:"enabled"`
	MaxRows int  `toml:"max_rows"`
}

// HealthConfig controls the periodic health checks.
type HealthConfig struct {
	Interval string `toml:"interval"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Governor: GovernorConfig{
			DeadlineMS: int(engine.DefaultDeadline.Milliseconds()),
		},
		Sensors: SensorsConfig{
			ProcPath:     "/proc",
			SysPath:      "/sys",
			ThermalZones: []string{"thermal_zone0"},
		},
		IPC: IPCConfig{
			SocketPath:    ipc.DefaultSocketPath,
			MaxConcurrent: 4,
			ReadTimeout:   "5s",
		},
		Engine: EngineConfig{
			Backend:            "mock",
			SimulatedLatencyMS: 20,
		},
		Indicator: IndicatorConfig{
			Enabled:        false,
			BrightnessPath: indicator.DefaultBrightnessPath,
			ActiveLow:      true,
			ThresholdC:     indicator.DefaultThresholdC,
			IntervalMS:     int(indicator.DefaultInterval.Milliseconds()),
		},
		API: APIConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    9464,
			Metrics: true,
		},
		Journal: JournalConfig{
			Enabled: true,
			MaxRows: sqlite.DefaultMaxRows,
		},
		Health: HealthConfig{
			Interval: "30s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultConfigPath is config.toml under the aigov home directory.
func DefaultConfigPath() string {
	return filepath.Join(aigovHome(), "config.toml")
}

// LoadConfig reads config from path (DefaultConfigPath if empty), falling
// back to defaults for a missing file or missing keys.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // No config file yet, use defaults
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes the config to path (DefaultConfigPath if empty).
func SaveConfig(cfg Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// Validate rejects values the daemon cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Governor.DeadlineMS <= 0 {
		errs = append(errs, fmt.Errorf("governor.deadline_ms must be positive, got %d", c.Governor.DeadlineMS))
	}
	if c.IPC.SocketPath == "" {
		errs = append(errs, errors.New("ipc.socket_path is empty"))
	}
	if c.IPC.MaxConcurrent < 0 {
		errs = append(errs, fmt.Errorf("ipc.max_concurrent must not be negative, got %d", c.IPC.MaxConcurrent))
	}
	if _, err := time.ParseDuration(c.IPC.ReadTimeout); c.IPC.ReadTimeout != "" && err != nil {
		errs = append(errs, fmt.Errorf("ipc.read_timeout: %w", err))
	}
	switch c.Engine.Backend {
	case "", "mock":
	case "exec":
		if c.Engine.Command == "" {
			errs = append(errs, errors.New("engine.command is required for the exec backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("engine.backend %q is not one of mock, exec", c.Engine.Backend))
	}
	if c.Engine.SimulatedLatencyMS < 0 {
		errs = append(errs, errors.New("engine.simulated_latency_ms must not be negative"))
	}
	if c.Indicator.Enabled && c.Indicator.BrightnessPath == "" {
		errs = append(errs, errors.New("indicator.brightness_path is empty"))
	}
	if c.API.Enabled && (c.API.Port < 0 || c.API.Port > 65535) {
		errs = append(errs, fmt.Errorf("api.port %d out of range", c.API.Port))
	}
	if c.Journal.MaxRows < 0 {
		errs = append(errs, errors.New("journal.max_rows must not be negative"))
	}
	if _, err := time.ParseDuration(c.Health.Interval); c.Health.Interval != "" && err != nil {
		errs = append(errs, fmt.Errorf("health.interval: %w", err))
	}
	return errors.Join(errs...)
}

// aigovHome returns the aigov data directory.
func aigovHome() string {
	if env := os.Getenv("AIGOV_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".aigov")
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
