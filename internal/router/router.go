// Package router parses inbound bus messages against the daemon's fixed
// topic grammar and dispatches them to the Scene Manager and device
// proxies, following a RequestRouter-style dispatch shape and
// corresponding bus wiring.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/R3E-Network/pixeldaemon/domain/device"
	"github.com/R3E-Network/pixeldaemon/internal/observability"
	"github.com/R3E-Network/pixeldaemon/internal/pixelerr"
	"github.com/R3E-Network/pixeldaemon/internal/pixellog"
	"github.com/R3E-Network/pixeldaemon/internal/ratelimit"
	"github.com/R3E-Network/pixeldaemon/internal/scenemgr"
	"github.com/R3E-Network/pixeldaemon/internal/statestore"
)

// Topic sections the router recognizes, under the fixed grammar
// "<cmdPrefix>/<host>/<section>/<action>".
const (
	sectionScene    = "scene"
	sectionState    = "state"
	sectionDriver   = "driver"
	sectionReset    = "reset"
	sectionPlayback = "playback"
	sectionFrame    = "frame"
)

// emptySceneName is the last-resort target when state/upd omits a scene and
// the host has no default scene configured either.
const emptySceneName = "empty"

// errDropped marks a command that was deliberately ignored rather than
// acted on or errored: the dispatch loop skips publishing both an ack and
// an error event for it.
var errDropped = errors.New("command dropped")

// SceneSwitcher is the narrow surface the router needs from the Scene
// Manager, kept separate so router tests can fake it without a real Manager.
type SceneSwitcher interface {
	SwitchScene(ctx context.Context, host, target string, payload any) error
	RerenderCurrentScene(host string) error
	PauseScene(host string)
	ResumeScene(host string)
	StopScene(host string)
}

var _ SceneSwitcher = (*scenemgr.Manager)(nil)

// DriverSwitcher exposes the hot-swap surface of a device proxy.
type DriverSwitcher interface {
	SwitchDriver(impl device.Driver)
	Reset() error
}

// Router parses and dispatches inbound commands.
type Router struct {
	cmdPrefix string
	manager   SceneSwitcher
	proxies   map[string]DriverSwitcher
	mockBy    map[string]device.Driver // host -> mock driver, for driver/set to "mock"
	realBy    map[string]device.Driver // host -> real driver, for driver/set to "real"
	store     *statestore.Store
	limiter   *ratelimit.Limiter
	sink      observability.EventSink
	log       *pixellog.Logger
}

// Config configures a Router.
type Config struct {
	CmdPrefix string
	Manager   SceneSwitcher
	Store     *statestore.Store
	Limiter   *ratelimit.Limiter
	Sink      observability.EventSink
	Log       *pixellog.Logger
}

// New builds a Router. Register device drivers with RegisterDevice before
// routing traffic for that host.
func New(cfg Config) *Router {
	return &Router{
		cmdPrefix: cfg.CmdPrefix,
		manager:   cfg.Manager,
		proxies:   make(map[string]DriverSwitcher),
		mockBy:    make(map[string]device.Driver),
		realBy:    make(map[string]device.Driver),
		store:     cfg.Store,
		limiter:   cfg.Limiter,
		sink:      cfg.Sink,
		log:       cfg.Log,
	}
}

// RegisterDevice wires host's proxy and its two hot-swappable driver
// instances so driver/set commands can flip between them.
func (r *Router) RegisterDevice(host string, proxy DriverSwitcher, real, mock device.Driver) {
	r.proxies[host] = proxy
	r.realBy[host] = real
	r.mockBy[host] = mock
}

// SubscribePatterns returns the wildcard patterns the Router needs
// subscribed on the bus.
func (r *Router) SubscribePatterns() []string {
	return []string{r.cmdPrefix + "/*"}
}

// HandleMessage is the bus.Client.OnMessage callback. It never returns an
// error: a topic that does not parse is logged and dropped, a legacy
// _isAnimationFrame update is dropped with a debug log, and every other
// failure is reported on the error topic.
func (r *Router) HandleMessage(topic string, payload []byte) {
	ctx := context.Background()
	host, section, action, err := parseTopic(r.cmdPrefix, topic)
	if err != nil {
		if r.log != nil {
			r.log.WithField("topic", topic).WithField("error", err).Warn("dropping unparseable command topic")
		}
		return
	}

	if r.limiter != nil && !r.limiter.Allow(host) {
		r.reportError(host, pixelerr.InvalidPayload(topic, "rate limit exceeded"))
		return
	}

	requestID := uuid.NewString()

	var dispatchErr error
	switch section {
	case sectionScene:
		dispatchErr = r.handleSceneSet(host, action, payload)
	case sectionState:
		dispatchErr = r.handleState(ctx, host, action, payload)
	case sectionDriver:
		dispatchErr = r.handleDriver(host, action, payload)
	case sectionReset:
		dispatchErr = r.handleReset(host, action)
	case sectionPlayback:
		dispatchErr = r.handlePlayback(host, action)
	case sectionFrame:
		// Only the scheduler may push frames. A direct frame/* command is
		// rejected, not silently dropped, so a misconfigured publisher
		// finds out.
		dispatchErr = pixelerr.InvalidPayload(topic, "direct frame commands are not supported; scenes render only").ForHost(host)
	default:
		dispatchErr = pixelerr.InvalidPayload(topic, "unknown command section: "+section).ForHost(host)
	}

	if dispatchErr == errDropped {
		return
	}
	if dispatchErr != nil {
		r.reportError(host, dispatchErr)
		return
	}
	if r.sink != nil {
		r.sink.PublishAck(host, requestID, section+"/"+action)
	}
}

// handleSceneSet updates host's default scene, consulted by state/upd
// whenever its payload omits an explicit scene.
func (r *Router) handleSceneSet(host, action string, payload []byte) error {
	if action != "set" {
		return pixelerr.InvalidPayload(host+"/"+sectionScene+"/"+action, "unknown scene action").ForHost(host)
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return pixelerr.InvalidPayload("scene/set", err.Error()).ForHost(host)
	}
	if strings.TrimSpace(body.Name) == "" {
		return pixelerr.InvalidPayload("scene/set", "name is required").ForHost(host)
	}
	if r.store != nil {
		r.store.Mutate(host, func(rs *statestore.RuntimeState) {
			rs.DefaultScene = body.Name
		})
	}
	return nil
}

func (r *Router) handleState(ctx context.Context, host, action string, payload []byte) error {
	if action != "upd" {
		return pixelerr.InvalidPayload(host+"/"+sectionState+"/"+action, "unknown state action").ForHost(host)
	}
	var body struct {
		Scene            string `json:"scene"`
		Payload          any    `json:"payload"`
		IsAnimationFrame bool   `json:"_isAnimationFrame"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return pixelerr.InvalidPayload("state/upd", err.Error()).ForHost(host)
	}
	if body.IsAnimationFrame {
		// Legacy input-gating artifact: dropped without side effects other
		// than a debug log. The scheduler is the sole source of frame
		// cadence, never an externally injected "continue animation" flag.
		if r.log != nil {
			r.log.WithField("host", host).Debug("dropping legacy _isAnimationFrame command")
		}
		return errDropped
	}

	target := strings.TrimSpace(body.Scene)
	if target == "" && r.store != nil {
		target = r.store.Snapshot(host).DefaultScene
	}
	if target == "" {
		target = emptySceneName
	}

	// Authoritative semantics: every update bumps generation and re-inits,
	// even when the target equals the current scene.
	return r.manager.SwitchScene(ctx, host, target, body.Payload)
}

func (r *Router) handleDriver(host, action string, payload []byte) error {
	if action != "set" {
		return pixelerr.InvalidPayload(host+"/"+sectionDriver+"/"+action, "unknown driver action").ForHost(host)
	}
	var body struct {
		Driver string `json:"driver"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return pixelerr.InvalidPayload("driver/set", err.Error()).ForHost(host)
	}
	proxy, ok := r.proxies[host]
	if !ok {
		return pixelerr.InvalidPayload("driver/set", "unknown device host").ForHost(host)
	}
	switch device.Kind(body.Driver) {
	case device.KindReal:
		impl, ok := r.realBy[host]
		if !ok {
			return pixelerr.InvalidPayload("driver/set", "no real driver configured for host").ForHost(host)
		}
		proxy.SwitchDriver(impl)
	case device.KindMock:
		impl, ok := r.mockBy[host]
		if !ok {
			return pixelerr.InvalidPayload("driver/set", "no mock driver configured for host").ForHost(host)
		}
		proxy.SwitchDriver(impl)
	default:
		return pixelerr.InvalidPayload("driver/set", "driver must be \"real\" or \"mock\"").ForHost(host)
	}
	// If a scene is already running for this device, re-render its current
	// frame against the newly active driver rather than waiting for the
	// next scheduled tick; this is a re-render, not a switch, so the
	// generation does not change.
	if r.manager != nil {
		return r.manager.RerenderCurrentScene(host)
	}
	return nil
}

// handleReset invokes the device's best-effort driver reset.
func (r *Router) handleReset(host, action string) error {
	if action != "set" {
		return pixelerr.InvalidPayload(host+"/"+sectionReset+"/"+action, "unknown reset action").ForHost(host)
	}
	proxy, ok := r.proxies[host]
	if !ok {
		return pixelerr.InvalidPayload("reset/set", "unknown device host").ForHost(host)
	}
	return proxy.Reset()
}

func (r *Router) handlePlayback(host, action string) error {
	switch action {
	case "pause":
		r.manager.PauseScene(host)
	case "resume":
		r.manager.ResumeScene(host)
	case "stop":
		r.manager.StopScene(host)
	default:
		return pixelerr.InvalidPayload(host+"/"+sectionPlayback+"/"+action, "unknown playback action").ForHost(host)
	}
	return nil
}

func (r *Router) reportError(host string, err error) {
	if r.log != nil {
		r.log.WithField("host", host).WithField("error", err).Warn("command rejected")
	}
	if r.sink != nil {
		generation := uint64(0)
		if r.store != nil {
			generation = r.store.Snapshot(host).GenerationID
		}
		r.sink.PublishError(host, err, generation)
	}
}

// parseTopic splits "<cmdPrefix>/<host>/<section>/<action>" into its parts.
func parseTopic(cmdPrefix, topic string) (host, section, action string, err error) {
	prefix := cmdPrefix + "/"
	if !strings.HasPrefix(topic, prefix) {
		return "", "", "", pixelerr.InvalidPayload(topic, "topic does not match command prefix")
	}
	rest := strings.TrimPrefix(topic, prefix)
	parts := strings.Split(rest, "/")
	if len(parts) != 3 {
		return "", "", "", pixelerr.InvalidPayload(topic, "expected <host>/<section>/<action>")
	}
	return parts[0], parts[1], parts[2], nil
}
