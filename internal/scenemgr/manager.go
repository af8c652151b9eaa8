// Package scenemgr implements the authoritative scene-switch sequence and
// owns each device's scheduler goroutine lifecycle. Grounded on the
// scenes.Manager ActivateScene shape, composed facade-style.
package scenemgr

import (
	"context"
	"sync"
	"time"

	"github.com/R3E-Network/pixeldaemon/domain/device"
	"github.com/R3E-Network/pixeldaemon/domain/scene"
	"github.com/R3E-Network/pixeldaemon/internal/observability"
	"github.com/R3E-Network/pixeldaemon/internal/pixelerr"
	"github.com/R3E-Network/pixeldaemon/internal/pixellog"
	"github.com/R3E-Network/pixeldaemon/internal/scheduler"
	"github.com/R3E-Network/pixeldaemon/internal/statestore"
)

// running tracks the goroutine currently serving a host, so a subsequent
// switch can cancel it and wait for it to exit before starting the next one.
type running struct {
	cancel   context.CancelFunc
	done     chan struct{}
	rerender chan struct{}
}

// Manager owns the registry lookup, device proxies, and the single running
// scheduler loop per host. All exported methods are safe for concurrent use
// across different hosts; a given host's switches are serialized internally.
type Manager struct {
	registry *scene.Registry
	store    *statestore.Store
	sink     observability.EventSink
	log      *pixellog.Logger

	minIntervalMs int
	maxIntervalMs int
	// stopTimeout bounds how long SwitchScene waits for the outgoing loop's
	// goroutine to exit before giving up: 2x the adaptive interval,
	// floored at 200ms.
	stopTimeout func(intervalMs int) time.Duration

	mu       sync.Mutex
	proxies  map[string]*device.Proxy
	envs     map[string]scene.Env
	runLoops map[string]*running
}

// Config configures a Manager.
type Config struct {
	Registry      *scene.Registry
	Store         *statestore.Store
	Sink          observability.EventSink
	Log           *pixellog.Logger
	MinIntervalMs int
	MaxIntervalMs int
}

// New builds a Manager with no devices registered yet; call AddDevice for
// each configured host before switching scenes on it.
func New(cfg Config) *Manager {
	return &Manager{
		registry:      cfg.Registry,
		store:         cfg.Store,
		sink:          cfg.Sink,
		log:           cfg.Log,
		minIntervalMs: cfg.MinIntervalMs,
		maxIntervalMs: cfg.MaxIntervalMs,
		stopTimeout:   defaultStopTimeout,
		proxies:       make(map[string]*device.Proxy),
		envs:          make(map[string]scene.Env),
		runLoops:      make(map[string]*running),
	}
}

func defaultStopTimeout(intervalMs int) time.Duration {
	d := time.Duration(intervalMs) * 2 * time.Millisecond
	if d < 200*time.Millisecond {
		d = 200 * time.Millisecond
	}
	return d
}

// AddDevice registers a host's driver proxy and fixed environment.
func (m *Manager) AddDevice(host string, proxy *device.Proxy, env scene.Env) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proxies[host] = proxy
	m.envs[host] = env
}

// SwitchScene runs the 8-step authoritative switch:
//  1. validate the target scene exists
//  2. bump the device's generation, invalidating the outgoing loop
//  3. mark status switching
//  4. stop the outgoing loop and wait for it to exit (bounded by stopTimeout)
//  5. run the outgoing scene's Cleanup, if any
//  6. reset the target scene's scratchpad
//  7. run the target scene's Init, if any, before any Render
//  8. start the new loop and mark status running
//
// Every update re-runs this sequence and bumps the generation even if
// target == current: every update bumps generation and re-inits.
func (m *Manager) SwitchScene(ctx context.Context, host, target string, payload any) error {
	if !m.registry.Has(target) {
		return pixelerr.UnknownScene(target).ForHost(host)
	}
	sc, err := m.registry.Get(target)
	if err != nil {
		return err
	}
	if err := sc.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	proxy, ok := m.proxies[host]
	env := m.envs[host]
	prevLoop := m.runLoops[host]
	m.mu.Unlock()
	if !ok {
		return pixelerr.New(pixelerr.CodeInvalidPayload, "unknown device host").ForHost(host).WithDetails("host", host)
	}

	prevState := m.store.Snapshot(host)
	generation := prevState.GenerationID + 1

	m.store.Mutate(host, func(rs *statestore.RuntimeState) {
		rs.GenerationID = generation
		rs.TargetScene = target
		rs.Status = statestore.StatusSwitching
	})
	if m.sink != nil {
		m.sink.PublishTransition(host, prevState.CurrentScene, target, statestore.StatusSwitching, generation)
	}

	if prevLoop != nil {
		m.stopAndWait(host, prevLoop, prevState)
	}

	if prevState.CurrentScene != "" {
		if prevSc, lookupErr := m.registry.Get(prevState.CurrentScene); lookupErr == nil && prevSc.Cleanup != nil {
			scratch := m.store.Scratchpad(host, prevState.CurrentScene)
			cctx := scene.NewFrameContext(noopDevice{}, env, scratch, string(prevState.LoggingLevel), nil)
			prevSc.Cleanup(cctx)
		}
	}

	m.store.ResetScratchpad(host, target)

	if sc.Init != nil {
		scratch := m.store.Scratchpad(host, target)
		ictx := scene.NewFrameContext(noopDevice{}, env, scratch, string(prevState.LoggingLevel), nil)
		ictx.Payload = payload
		if err := sc.Init(ictx); err != nil {
			m.store.Mutate(host, func(rs *statestore.RuntimeState) {
				rs.Status = statestore.StatusError
			})
			return pixelerr.RenderError(target, err).ForHost(host)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r := &running{cancel: cancel, done: make(chan struct{}), rerender: make(chan struct{}, 1)}
	m.mu.Lock()
	m.runLoops[host] = r
	m.mu.Unlock()

	m.store.Mutate(host, func(rs *statestore.RuntimeState) {
		rs.CurrentScene = target
		rs.TargetScene = target
		rs.Status = statestore.StatusRunning
		rs.PlayState = statestore.PlayPlaying
		rs.StartedAtMs = time.Now().UnixMilli()
	})
	if m.sink != nil {
		m.sink.PublishTransition(host, target, target, statestore.StatusRunning, generation)
	}

	go func() {
		defer close(r.done)
		scheduler.Run(runCtx, scheduler.Params{
			Host:          host,
			Scene:         sc,
			Generation:    generation,
			Env:           env,
			Proxy:         proxy,
			Store:         m.store,
			Sink:          m.sink,
			Log:           m.log,
			MinIntervalMs: m.minIntervalMs,
			MaxIntervalMs: m.maxIntervalMs,
			Rerender:      r.rerender,
		})
	}()

	return nil
}

// stopAndWait cancels the outgoing loop and waits up to stopTimeout for it
// to exit. A timeout is logged and the switch proceeds regardless — the
// switch must not hang forever on a misbehaving scene — but a
// SwitchTimeout error is published for observability.
func (m *Manager) stopAndWait(host string, r *running, prevState statestore.RuntimeState) {
	r.cancel()
	timeout := m.stopTimeout(defaultIntervalHint(prevState))
	select {
	case <-r.done:
	case <-time.After(timeout):
		if m.log != nil {
			m.log.WithField("host", host).WithField("scene", prevState.CurrentScene).
				Warn("timed out waiting for outgoing scene to stop")
		}
		if m.sink != nil {
			m.sink.PublishError(host, pixelerr.SwitchTimeout(host, prevState.CurrentScene), prevState.GenerationID)
		}
	}
}

func defaultIntervalHint(rs statestore.RuntimeState) int {
	if rs.Status == statestore.StatusRunning {
		return 100
	}
	return 50
}

// RerenderCurrentScene wakes host's running loop for one extra render+push
// cycle ahead of its normal pacing, without bumping the generation or
// re-running Init/Cleanup. Used after a driver/set hot-swap: if the device
// has a scene actually running (a last-known frame exists for it), the
// newly active driver gets the current frame right away instead of waiting
// for the next scheduled tick. A host with nothing running is a no-op.
func (m *Manager) RerenderCurrentScene(host string) error {
	m.mu.Lock()
	r, ok := m.runLoops[host]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case r.rerender <- struct{}{}:
	default:
		// a rerender is already pending; the loop will pick up the current
		// driver on that cycle regardless.
	}
	return nil
}

// PauseScene stops the scheduler from pushing frames without tearing the
// loop down; Render keeps running so scratchpad-driven animation state is
// preserved, but Frame.Push is skipped.
func (m *Manager) PauseScene(host string) {
	m.store.Mutate(host, func(rs *statestore.RuntimeState) {
		if rs.Status == statestore.StatusRunning {
			rs.PlayState = statestore.PlayPaused
		}
	})
}

// ResumeScene resumes pushing frames for a paused device.
func (m *Manager) ResumeScene(host string) {
	m.store.Mutate(host, func(rs *statestore.RuntimeState) {
		if rs.Status == statestore.StatusRunning {
			rs.PlayState = statestore.PlayPlaying
		}
	})
}

// StopScene tears the running loop down entirely, running the current
// scene's Cleanup and marking the device stopped.
func (m *Manager) StopScene(host string) {
	prevState := m.store.Snapshot(host)

	m.mu.Lock()
	r := m.runLoops[host]
	env := m.envs[host]
	delete(m.runLoops, host)
	m.mu.Unlock()

	m.store.Mutate(host, func(rs *statestore.RuntimeState) {
		rs.GenerationID++
		rs.Status = statestore.StatusStopping
		rs.PlayState = statestore.PlayStopped
	})

	if r != nil {
		m.stopAndWait(host, r, prevState)
	}

	if prevState.CurrentScene != "" {
		if sc, lookupErr := m.registry.Get(prevState.CurrentScene); lookupErr == nil && sc.Cleanup != nil {
			scratch := m.store.Scratchpad(host, prevState.CurrentScene)
			cctx := scene.NewFrameContext(noopDevice{}, env, scratch, string(prevState.LoggingLevel), nil)
			sc.Cleanup(cctx)
		}
	}

	m.store.Mutate(host, func(rs *statestore.RuntimeState) {
		rs.Status = statestore.StatusStopped
		rs.CurrentScene = ""
	})
}

// noopDevice satisfies scene.Device for Init/Cleanup calls, which run
// outside the scheduler's frame lock and must not draw — drawing is
// scoped to Render only.
type noopDevice struct{}

func (noopDevice) Clear() error                                                      { return nil }
func (noopDevice) DrawPixel(x, y int, rgba [4]uint8) error                           { return nil }
func (noopDevice) DrawLine(ax, ay, bx, by int, rgba [4]uint8) error                  { return nil }
func (noopDevice) DrawRect(x, y, w, h int, rgba [4]uint8) error                      { return nil }
func (noopDevice) FillRect(x, y, w, h int, rgba [4]uint8) error                      { return nil }
func (noopDevice) DrawText(text string, x, y int, rgba [4]uint8, align string) error { return nil }
func (noopDevice) DrawNumber(value, x, y int, rgba [4]uint8, align string, maxDigits int) error {
	return nil
}
func (noopDevice) DrawImage(path string, x, y, w, h int, alpha uint8) error { return nil }
func (noopDevice) SetBrightness(level int) bool                            { return false }
