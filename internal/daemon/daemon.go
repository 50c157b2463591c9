package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tutu-network/aigov/internal/api"
	"github.com/tutu-network/aigov/internal/domain"
	"github.com/tutu-network/aigov/internal/health"
	"github.com/tutu-network/aigov/internal/infra/clock"
	"github.com/tutu-network/aigov/internal/infra/engine"
	"github.com/tutu-network/aigov/internal/infra/indicator"
	"github.com/tutu-network/aigov/internal/infra/metrics"
	"github.com/tutu-network/aigov/internal/infra/resource"
	"github.com/tutu-network/aigov/internal/infra/sqlite"
	"github.com/tutu-network/aigov/internal/ipc"
	"github.com/tutu-network/aigov/internal/logging"
)

// Daemon is the aigov runtime. It wires together all services.
type Daemon struct {
	Config   Config
	State    *resource.State
	Sensors  resource.Sensors
	Engine   engine.Engine
	Governor *resource.Governor
	IPC      *ipc.Server
	Journal  *sqlite.DB // nil when disabled
	Health   *health.Checker
	API      *api.Server // nil when disabled
	LED      *indicator.Watcher

	logger zerolog.Logger
}

// Option overrides a collaborator, mainly for tests.
type Option func(*options)

type options struct {
	sensors resource.Sensors
	engine  engine.Engine
	clock   clock.Clock
}

// WithSensors replaces the sysfs/procfs sensor reader.
func WithSensors(s resource.Sensors) Option { return func(o *options) { o.sensors = s } }

// WithEngine replaces the configured inference backend.
func WithEngine(e engine.Engine) Option { return func(o *options) { o.engine = e } }

// WithClock replaces the wall clock used by the loop and the gate.
func WithClock(c clock.Clock) Option { return func(o *options) { o.clock = c } }

// New creates a Daemon with all services wired. Nothing is started and no
// socket is bound until Serve.
func New(cfg Config, logger zerolog.Logger, opts ...Option) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clock.Real()
	}

	// Sensors
	sensors := o.sensors
	if sensors == nil {
		s, err := resource.NewSysfsSensors(cfg.Sensors.ProcPath, cfg.Sensors.SysPath, cfg.Sensors.ThermalZones)
		if err != nil {
			return nil, fmt.Errorf("open sensors: %w", err)
		}
		sensors = s
	}

	// Inference engine
	eng := o.engine
	if eng == nil {
		e, err := engine.New(engine.Options{
			Backend:          cfg.Engine.Backend,
			Command:          cfg.Engine.Command,
			Args:             cfg.Engine.Args,
			SimulatedLatency: time.Duration(cfg.Engine.SimulatedLatencyMS) * time.Millisecond,
		})
		if err != nil {
			return nil, fmt.Errorf("create engine: %w", err)
		}
		eng = e
	}

	d := &Daemon{
		Config:  cfg,
		State:   resource.NewState(),
		Sensors: sensors,
		Engine:  eng,
		logger:  logger,
	}

	// Event journal (in-memory, per process)
	if cfg.Journal.Enabled {
		db, err := sqlite.Open(cfg.Journal.MaxRows)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		db.SetLogger(logging.Component(logger, "journal"))
		d.Journal = db
	}

	var recorder metrics.Recorder
	ctrl := &control{state: d.State, journal: d.Journal, logger: logging.Component(logger, "control")}

	// Control loop
	gate := engine.NewGate(eng, time.Duration(cfg.Governor.DeadlineMS)*time.Millisecond, o.clock)
	d.Governor = resource.NewGovernor(d.State, sensors, eng, gate, o.clock, logging.Component(logger, "governor"))
	d.Governor.AddObserver(recorder)
	if d.Journal != nil {
		d.Governor.AddObserver(d.Journal)
	}

	// Control socket
	d.IPC = ipc.NewServer(ipc.Config{
		SocketPath:    cfg.IPC.SocketPath,
		MaxConcurrent: cfg.IPC.MaxConcurrent,
		ReadTimeout:   parseDuration(cfg.IPC.ReadTimeout, 5*time.Second),
	}, ctrl, logging.Component(logger, "ipc"))
	d.IPC.SetObserver(recorder.ObserveCommand)

	// Health
	var pinger health.Pinger
	if d.Journal != nil {
		pinger = d.Journal
	}
	d.Health = health.NewChecker(parseDuration(cfg.Health.Interval, health.DefaultInterval), sensors, cfg.IPC.SocketPath, pinger)
	d.Health.SetObserver(recorder.ObserveHealth)

	// HTTP status API
	if cfg.API.Enabled {
		var journal api.Journal
		if d.Journal != nil {
			journal = d.Journal
		}
		d.API = api.NewServer(ctrl, journal, d.Health)
		if cfg.API.Metrics {
			d.API.EnableMetrics()
		}
	}

	// Thermal LED
	if cfg.Indicator.Enabled {
		led := indicator.NewLED(cfg.Indicator.BrightnessPath, cfg.Indicator.ActiveLow)
		d.LED = indicator.NewWatcher(led, sensors, cfg.Indicator.ThresholdC,
			time.Duration(cfg.Indicator.IntervalMS)*time.Millisecond, o.clock, logging.Component(logger, "indicator"))
	}

	return d, nil
}

// Serve binds the control socket, runs every service until ctx is
// cancelled or SIGINT/SIGTERM arrives, then joins them. A bind failure is
// returned before anything starts.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := d.IPC.Listen()
	if err != nil {
		return err
	}

	var httpServer *http.Server
	var httpLn net.Listener
	if d.API != nil {
		addr := net.JoinHostPort(d.Config.API.Host, strconv.Itoa(d.Config.API.Port))
		httpLn, err = net.Listen("tcp", addr)
		if err != nil {
			ln.Close()
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		httpServer = &http.Server{
			Handler:      d.API.Handler(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  2 * time.Minute,
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return d.IPC.Serve(gctx, ln) })
	g.Go(func() error { return d.Governor.Run(gctx) })
	g.Go(func() error {
		d.Health.Run(gctx)
		return nil
	})

	if d.LED != nil {
		g.Go(func() error { return d.LED.Run(gctx) })
	}

	if httpServer != nil {
		g.Go(func() error {
			d.logger.Info().Str("addr", httpLn.Addr().String()).Msg("HTTP API serving")
			if err := httpServer.Serve(httpLn); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http api: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	d.logger.Info().
		Str("socket", d.IPC.SocketPath()).
		Int("deadline_ms", d.Config.Governor.DeadlineMS).
		Bool("api", d.API != nil).
		Bool("indicator", d.LED != nil).
		Msg("aigov started")

	err = g.Wait()
	d.logger.Info().Msg("aigov stopped")
	return err
}

// Close releases daemon resources. Call after Serve returns.
func (d *Daemon) Close() {
	if d.Journal != nil {
		_ = d.Journal.Close()
	}
}

// ─── Control ────────────────────────────────────────────────────────────────

// control is the Controller handed to the IPC server and HTTP API. It
// forwards to the shared state and journals operator actions.
type control struct {
	state   *resource.State
	journal *sqlite.DB
	logger  zerolog.Logger
}

func (c *control) Snapshot() domain.Snapshot { return c.state.Snapshot() }

func (c *control) SetMode(m domain.Mode) domain.Mode {
	prev := c.state.SetMode(m)
	c.logger.Info().Stringer("from", prev).Stringer("to", m).Msg("mode set")
	c.record(domain.EventModeChange, prev.String()+" -> "+m.String())
	return prev
}

func (c *control) RequestTrigger() bool {
	queued := c.state.RequestTrigger()
	c.logger.Info().Bool("already_pending", !queued).Msg("manual trigger requested")
	c.record(domain.EventTriggerRequested, fmt.Sprintf("already_pending=%t", !queued))
	return queued
}

func (c *control) record(kind, detail string) {
	if c.journal == nil {
		return
	}
	if err := c.journal.RecordEvent(kind, detail); err != nil {
		c.logger.Warn().Err(err).Str("kind", kind).Msg("journal event")
	}
}
