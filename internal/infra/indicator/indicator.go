// Package indicator drives a status LED from the SoC temperature.
package indicator

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/tutu-network/aigov/internal/infra/clock"
)

// Defaults for the watcher.
const (
	DefaultBrightnessPath = "/sys/class/leds/green/brightness"
	DefaultThresholdC     = 65.0
	DefaultInterval       = 500 * time.Millisecond
)

// LED writes a sysfs brightness file.
type LED struct {
	path      string
	activeLow bool
}

// NewLED returns an LED at path. With activeLow, "0" lights it.
func NewLED(path string, activeLow bool) *LED {
	return &LED{path: path, activeLow: activeLow}
}

// Path returns the brightness file.
func (l *LED) Path() string { return l.path }

// SetActive lights or clears the LED.
func (l *LED) SetActive(on bool) error {
	value := "0"
	if on != l.activeLow {
		value = "1"
	}
	if err := os.WriteFile(l.path, []byte(value), 0o644); err != nil {
		return fmt.Errorf("write led %s: %w", l.path, err)
	}
	return nil
}

// TemperatureReader supplies the watched temperature.
type TemperatureReader interface {
	ReadTemperature() (float64, error)
}

// Watcher lights the LED while the temperature is above a threshold.
type Watcher struct {
	led       *LED
	sensor    TemperatureReader
	threshold float64
	interval  time.Duration
	clock     clock.Clock
	logger    zerolog.Logger

	lit   bool
	known bool
}

// NewWatcher creates a watcher. Zero threshold or interval take the
// defaults.
func NewWatcher(led *LED, sensor TemperatureReader, threshold float64, interval time.Duration, clk clock.Clock, logger zerolog.Logger) *Watcher {
	if threshold == 0 {
		threshold = DefaultThresholdC
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Watcher{
		led:       led,
		sensor:    sensor,
		threshold: threshold,
		interval:  interval,
		clock:     clk,
		logger:    logger,
	}
}

// Run polls until ctx is cancelled, then clears the LED if it was lit.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info().Str("path", w.led.Path()).Float64("threshold_c", w.threshold).Msg("indicator started")
	defer func() {
		if w.lit {
			if err := w.led.SetActive(false); err != nil {
				w.logger.Warn().Err(err).Msg("clear indicator")
			}
		}
		w.logger.Info().Msg("indicator stopped")
	}()

	for {
		w.Step()
		select {
		case <-ctx.Done():
			return nil
		case <-w.clock.After(w.interval):
		}
	}
}

// Step samples once and updates the LED if the desired state changed.
// A failed read leaves the LED as it is.
func (w *Watcher) Step() {
	temp, err := w.sensor.ReadTemperature()
	if err != nil {
		w.logger.Debug().Err(err).Msg("indicator read failed")
		return
	}

	want := temp > w.threshold
	if w.known && want == w.lit {
		return
	}
	if err := w.led.SetActive(want); err != nil {
		w.logger.Warn().Err(err).Msg("set indicator")
		return
	}
	w.lit, w.known = want, true
	w.logger.Debug().Float64("temp_c", temp).Bool("lit", want).Msg("indicator changed")
}
