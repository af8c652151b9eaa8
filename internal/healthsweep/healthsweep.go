// Package healthsweep periodically checks every device's liveness — real
// drivers only, since a mock driver's Push never updates LastSeenTs by
// design — and marks a device unreachable in the runtime store when its
// last successful push is older than a configured staleness window.
// Scheduled with robfig/cron/v3, following a standard cron-driven
// background job wiring.
package healthsweep

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/pixeldaemon/domain/device"
	"github.com/R3E-Network/pixeldaemon/internal/observability"
	"github.com/R3E-Network/pixeldaemon/internal/pixellog"
	"github.com/R3E-Network/pixeldaemon/internal/statestore"
)

// Device pairs a host with the proxy the sweep should check.
type Device struct {
	Host  string
	Proxy *device.Proxy
}

// Sweeper runs the periodic liveness check.
type Sweeper struct {
	devices []Device
	store   *statestore.Store
	sink    observability.EventSink
	log     *pixellog.Logger
	stale   time.Duration
	now     func() time.Time

	cron *cron.Cron
}

// Config configures a Sweeper.
type Config struct {
	Devices []Device
	Store   *statestore.Store
	Sink    observability.EventSink
	Log     *pixellog.Logger
	// Stale is how long since the last successful real-driver push before a
	// device is considered unreachable.
	Stale time.Duration
}

// New builds a Sweeper; call Start to schedule it.
func New(cfg Config) *Sweeper {
	stale := cfg.Stale
	if stale <= 0 {
		stale = 30 * time.Second
	}
	return &Sweeper{
		devices: cfg.Devices,
		store:   cfg.Store,
		sink:    cfg.Sink,
		log:     cfg.Log,
		stale:   stale,
		now:     time.Now,
		cron:    cron.New(),
	}
}

// Start schedules the sweep on spec, a standard 5-field cron expression
// (e.g. "*/10 * * * * *" is not standard 5-field; use "@every 10s" for
// sub-minute cadences, which robfig/cron supports directly).
func (s *Sweeper) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, s.sweepOnce)
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule, waiting for any in-flight sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) sweepOnce() {
	now := s.now()
	for _, d := range s.devices {
		if d.Proxy.CurrentKind() != device.KindReal {
			continue // mock drivers never report liveness
		}
		metrics := d.Proxy.Metrics()
		if metrics.LastSeenTs == nil {
			continue // never pushed yet; nothing to judge staleness against
		}
		age := now.Sub(*metrics.LastSeenTs)
		if age <= s.stale {
			continue
		}
		if s.log != nil {
			s.log.WithField("host", d.Host).WithField("ageMs", age.Milliseconds()).
				Warn("device has not acknowledged a push recently; marking unreachable")
		}
		rs := s.store.Mutate(d.Host, func(rs *statestore.RuntimeState) {
			if rs.Status == statestore.StatusRunning {
				rs.Status = statestore.StatusError
			}
		})
		if s.sink != nil {
			s.sink.PublishTransition(d.Host, rs.CurrentScene, rs.TargetScene, rs.Status, rs.GenerationID)
		}
	}
}
