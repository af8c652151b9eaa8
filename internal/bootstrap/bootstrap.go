// Package bootstrap wires every subsystem into one Daemon value and owns the
// process's startup/shutdown sequence. No package-level state anywhere in
// the daemon; a Daemon carries every registry, proxy, and manager it needs.
// Composed with a functional-options New(opts...) constructor.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/R3E-Network/pixeldaemon/domain/device"
	"github.com/R3E-Network/pixeldaemon/domain/device/mockdriver"
	"github.com/R3E-Network/pixeldaemon/domain/device/realdriver"
	"github.com/R3E-Network/pixeldaemon/domain/scene"
	"github.com/R3E-Network/pixeldaemon/domain/scene/builtin"
	"github.com/R3E-Network/pixeldaemon/internal/bus"
	"github.com/R3E-Network/pixeldaemon/internal/config"
	"github.com/R3E-Network/pixeldaemon/internal/healthsweep"
	pixelmetrics "github.com/R3E-Network/pixeldaemon/internal/metrics"
	"github.com/R3E-Network/pixeldaemon/internal/observability"
	"github.com/R3E-Network/pixeldaemon/internal/pixelerr"
	"github.com/R3E-Network/pixeldaemon/internal/pixellog"
	"github.com/R3E-Network/pixeldaemon/internal/ratelimit"
	"github.com/R3E-Network/pixeldaemon/internal/router"
	"github.com/R3E-Network/pixeldaemon/internal/scenemgr"
	"github.com/R3E-Network/pixeldaemon/internal/statestore"
)

// Option customizes a Daemon during construction, following a standard
// functional-options Engine pattern.
type Option func(*Daemon)

// WithBusClient overrides the bus.Client the daemon subscribes/publishes on;
// tests use this to inject the in-process memory.Bus fake.
func WithBusClient(c bus.Client) Option {
	return func(d *Daemon) { d.bus = c }
}

// WithPrometheusRegisterer overrides the Prometheus registerer metrics are
// registered against; tests use this to avoid colliding with the default
// global registry across repeated test runs.
func WithPrometheusRegisterer(r prometheus.Registerer) Option {
	return func(d *Daemon) { d.registerer = r }
}

// Daemon owns every subsystem instance for one process lifetime.
type Daemon struct {
	cfg *config.Config
	log *pixellog.Logger

	registerer prometheus.Registerer
	metrics    *pixelmetrics.Metrics

	registry *scene.Registry
	store    *statestore.Store
	sink     *observability.Sink
	manager  *scenemgr.Manager
	limiter  *ratelimit.Limiter
	router   *router.Router
	sweeper  *healthsweep.Sweeper

	bus bus.Client

	proxies map[string]*device.Proxy
}

// New builds a Daemon from cfg. It does not start anything — call Run to
// connect the bus and begin scheduling.
func New(cfg *config.Config, opts ...Option) (*Daemon, error) {
	d := &Daemon{
		cfg:        cfg,
		log:        pixellog.New(pixellog.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format}),
		registerer: prometheus.DefaultRegisterer,
		proxies:    make(map[string]*device.Proxy),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.metrics = pixelmetrics.NewWithRegistry(d.registerer)
	d.registry = scene.NewRegistry()
	scene.RegisterAll(d.registry, builtin.Providers(), d.log)

	d.store = statestore.New()

	if d.bus == nil {
		return nil, pixelerr.ConfigError("no bus.Client configured", nil)
	}

	d.sink = observability.New(observability.Config{
		Client:         d.bus,
		StateTopicBase: cfg.Bus.StateTopicBase,
		CmdPrefix:      cfg.Bus.CmdPrefix,
		Logger:         d.log,
		Metrics:        d.metrics,
	})

	d.manager = scenemgr.New(scenemgr.Config{
		Registry:      d.registry,
		Store:         d.store,
		Sink:          d.sink,
		Log:           d.log,
		MinIntervalMs: cfg.Scheduler.MinIntervalMs,
		MaxIntervalMs: cfg.Scheduler.MaxIntervalMs,
	})

	d.limiter = ratelimit.New(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)

	d.router = router.New(router.Config{
		CmdPrefix: cfg.Bus.CmdPrefix,
		Manager:   d.manager,
		Store:     d.store,
		Limiter:   d.limiter,
		Sink:      d.sink,
		Log:       d.log,
	})

	if err := d.buildDevices(); err != nil {
		return nil, err
	}

	if cfg.HealthSweep.Enabled {
		devices := make([]healthsweep.Device, 0, len(d.proxies))
		for host, p := range d.proxies {
			devices = append(devices, healthsweep.Device{Host: host, Proxy: p})
		}
		d.sweeper = healthsweep.New(healthsweep.Config{
			Devices: devices,
			Store:   d.store,
			Sink:    d.sink,
			Log:     d.log,
			Stale:   time.Duration(cfg.HealthSweep.StaleAfter) * time.Millisecond,
		})
	}

	return d, nil
}

// buildDevices constructs a real driver, a mock driver, and a Proxy for
// every configured device, and registers each with the Scene Manager and
// Router.
func (d *Daemon) buildDevices() error {
	for _, dc := range d.cfg.Devices {
		var real device.Driver
		switch dc.Kind {
		case "http64x64":
			real = realdriver.New(realdriver.Config{
				Endpoint:   dc.Endpoint,
				Width:      dc.Width,
				Height:     dc.Height,
				Timeout:    time.Duration(dc.TimeoutMs) * time.Millisecond,
				MaxRetries: dc.MaxRetries,
			})
		case "push32x8":
			real = realdriver.NewPush32x8(dc.Endpoint, time.Duration(dc.TimeoutMs)*time.Millisecond)
		default:
			return pixelerr.ConfigError(fmt.Sprintf("unknown device kind %q for host %q", dc.Kind, dc.Host), nil)
		}

		mock := mockdriver.New(dc.Width, dc.Height, d.log)

		proxy := device.NewProxy(dc.Host, real)
		d.proxies[dc.Host] = proxy

		d.manager.AddDevice(dc.Host, proxy, scene.Env{Width: dc.Width, Height: dc.Height, Host: dc.Host})
		d.router.RegisterDevice(dc.Host, proxy, real, mock)

		d.store.Mutate(dc.Host, func(rs *statestore.RuntimeState) {
			rs.DefaultScene = dc.DefaultScene
			if dc.LoggingLevel != "" {
				rs.LoggingLevel = statestore.LoggingLevel(dc.LoggingLevel)
			} else {
				rs.LoggingLevel = statestore.LogInfo
			}
		})
	}
	return nil
}

// Run connects the bus, subscribes the router, switches every device to its
// startup scene (falling back to its default scene), starts the health
// sweep, and blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	d.bus.OnMessage(d.router.HandleMessage)
	d.bus.OnError(func(err error) {
		d.log.WithField("error", err).Error("bus transport error")
	})
	d.bus.OnConnect(func() {
		if err := d.bus.Subscribe(d.router.SubscribePatterns()); err != nil {
			d.log.WithField("error", err).Error("failed to subscribe to command topics")
		}
	})

	for _, dc := range d.cfg.Devices {
		startScene := dc.StartupScene
		if startScene == "" {
			startScene = dc.DefaultScene
		}
		if startScene == "" {
			continue
		}
		if err := d.manager.SwitchScene(ctx, dc.Host, startScene, nil); err != nil {
			d.log.WithField("host", dc.Host).WithField("scene", startScene).WithField("error", err).
				Error("failed to start device on its startup scene")
		}
	}

	if d.sweeper != nil {
		if err := d.sweeper.Start(d.cfg.HealthSweep.CronSpec); err != nil {
			return pixelerr.ConfigError("failed to start health sweep", err)
		}
	}

	<-ctx.Done()
	return d.Shutdown()
}

// Shutdown stops every device's scheduler loop and the health sweep.
func (d *Daemon) Shutdown() error {
	if d.sweeper != nil {
		d.sweeper.Stop()
	}
	for host := range d.proxies {
		d.manager.StopScene(host)
	}
	return nil
}

// Registry exposes the scene registry, e.g. for an optional UI channel
// listing available scenes.
func (d *Daemon) Registry() *scene.Registry { return d.registry }
