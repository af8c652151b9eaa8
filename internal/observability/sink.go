// Package observability publishes three event families: per-frame OK,
// metrics snapshots, and scene-state transitions. Build/version stamping
// (the version/buildNumber/gitCommit fields in each payload) is an external
// collaborator concern; Sink accepts a BuildInfo value supplied at
// construction and stamps every payload with it.
package observability

import (
	"encoding/json"
	"time"

	"github.com/R3E-Network/pixeldaemon/domain/device"
	"github.com/R3E-Network/pixeldaemon/internal/bus"
	pixelmetrics "github.com/R3E-Network/pixeldaemon/internal/metrics"
	"github.com/R3E-Network/pixeldaemon/internal/pixelerr"
	"github.com/R3E-Network/pixeldaemon/internal/pixellog"
	"github.com/R3E-Network/pixeldaemon/internal/statestore"
)

// BuildInfo stamps outgoing events with process version metadata. Populated
// by the external build/version-stamping collaborator, out of scope here;
// zero values are valid and simply stamp empty fields.
type BuildInfo struct {
	Version     string
	BuildNumber string
	GitCommit   string
}

// EventSink is the single injection point scenes and the scheduler use to
// report observable events, injected at construction rather than reached
// through a package-level global.
type EventSink interface {
	PublishOk(host, scene string, frametimeMs int64, diffPixels int, metrics device.Metrics, generationID uint64)
	PublishMetrics(host string, metrics device.Metrics, generationID uint64)
	PublishTransition(host string, current, target string, status statestore.Status, generationID uint64)
	PublishError(host string, err error, generationID uint64)
	// PublishAck acknowledges a successfully processed inbound command,
	// correlated back to it by requestID.
	PublishAck(host, requestID, action string)
	// PublishSkipped records a frame discarded for stale generation or a
	// paused play state.
	PublishSkipped(host string)
}

// Sink publishes events onto the bus under the configured topic prefixes.
type Sink struct {
	client        bus.Client
	stateTopicBase string
	cmdPrefix     string
	build         BuildInfo
	log           *pixellog.Logger
	metrics       *pixelmetrics.Metrics
	now           func() time.Time
}

// Config configures a Sink.
type Config struct {
	Client         bus.Client
	StateTopicBase string
	CmdPrefix      string
	Build          BuildInfo
	Logger         *pixellog.Logger
	// Metrics is optional; when set, every publish also updates the
	// corresponding Prometheus collector.
	Metrics *pixelmetrics.Metrics
}

// New builds a Sink.
func New(cfg Config) *Sink {
	return &Sink{
		client:         cfg.Client,
		stateTopicBase: cfg.StateTopicBase,
		cmdPrefix:      cfg.CmdPrefix,
		build:          cfg.Build,
		metrics:        cfg.Metrics,
		log:            cfg.Logger,
		now:            time.Now,
	}
}

type okEvent struct {
	Scene       string `json:"scene"`
	Frametime   int64  `json:"frametime"`
	DiffPixels  int    `json:"diffPixels"`
	Pushes      int64  `json:"pushes"`
	Skipped     int64  `json:"skipped"`
	Errors      int64  `json:"errors"`
	Generation  uint64 `json:"generationId"`
	Version     string `json:"version"`
	BuildNumber string `json:"buildNumber"`
	GitCommit   string `json:"gitCommit"`
	Ts          int64  `json:"ts"`
}

// PublishOk emits the per-frame OK event after a successful push.
func (s *Sink) PublishOk(host, scene string, frametimeMs int64, diffPixels int, metrics device.Metrics, generationID uint64) {
	ev := okEvent{
		Scene:       scene,
		Frametime:   frametimeMs,
		DiffPixels:  diffPixels,
		Pushes:      metrics.Pushes,
		Skipped:     metrics.Skipped,
		Errors:      metrics.Errors,
		Generation:  generationID,
		Version:     s.build.Version,
		BuildNumber: s.build.BuildNumber,
		GitCommit:   s.build.GitCommit,
		Ts:          s.now().UnixMilli(),
	}
	if s.metrics != nil {
		s.metrics.PushesTotal.WithLabelValues(host, scene).Inc()
		s.metrics.FrametimeSecs.WithLabelValues(host).Observe(float64(frametimeMs) / 1000)
		s.metrics.GenerationID.WithLabelValues(host).Set(float64(generationID))
		if metrics.LastSeenTs != nil {
			s.metrics.LastSeenUnix.WithLabelValues(host).Set(float64(metrics.LastSeenTs.Unix()))
		}
	}
	s.publish(s.cmdPrefix+"/"+host+"/frame/ok", ev)
}

type metricsEvent struct {
	Pushes        int64  `json:"pushes"`
	Skipped       int64  `json:"skipped"`
	Errors        int64  `json:"errors"`
	LastFrametime int64  `json:"lastFrametime"`
	LastSeenTs    *int64 `json:"lastSeenTs,omitempty"`
	Ts            int64  `json:"ts"`
}

// PublishMetrics emits a metrics snapshot after push or on demand.
func (s *Sink) PublishMetrics(host string, metrics device.Metrics, generationID uint64) {
	ev := metricsEvent{
		Pushes:        metrics.Pushes,
		Skipped:       metrics.Skipped,
		Errors:        metrics.Errors,
		LastFrametime: metrics.LastFrametimeMs,
		Ts:            s.now().UnixMilli(),
	}
	if metrics.LastSeenTs != nil {
		ms := metrics.LastSeenTs.UnixMilli()
		ev.LastSeenTs = &ms
	}
	s.publish(s.cmdPrefix+"/"+host+"/metrics", ev)
}

type transitionEvent struct {
	CurrentScene string `json:"currentScene"`
	TargetScene  string `json:"targetScene,omitempty"`
	Status       string `json:"status"`
	Generation   uint64 `json:"generationId"`
	Version      string `json:"version"`
	BuildNumber  string `json:"buildNumber"`
	GitCommit    string `json:"gitCommit"`
	Ts           int64  `json:"ts"`
}

// PublishTransition emits an authoritative scene-state transition on
// `<stateTopicBase>/<host>/scene/state`. Ordering guarantees (switching
// before running, running before first publishOk) are the caller's
// (Scene Manager's) responsibility.
func (s *Sink) PublishTransition(host string, current, target string, status statestore.Status, generationID uint64) {
	ev := transitionEvent{
		CurrentScene: current,
		TargetScene:  target,
		Status:       string(status),
		Generation:   generationID,
		Version:      s.build.Version,
		BuildNumber:  s.build.BuildNumber,
		GitCommit:    s.build.GitCommit,
		Ts:           s.now().UnixMilli(),
	}
	if s.metrics != nil && status == statestore.StatusRunning && current == target {
		s.metrics.SwitchesTotal.WithLabelValues(host).Inc()
	}
	s.publish(s.stateTopicBase+"/"+host+"/scene/state", ev)
}

type errorEvent struct {
	Error      string `json:"error"`
	Generation uint64 `json:"generationId"`
	Ts         int64  `json:"ts"`
}

// PublishError emits a non-fatal error event on `<cmdPrefix>/<host>/error`.
func (s *Sink) PublishError(host string, err error, generationID uint64) {
	ev := errorEvent{Error: err.Error(), Generation: generationID, Ts: s.now().UnixMilli()}
	if s.metrics != nil {
		kind := "generic"
		if pe, ok := pixelerr.As(err); ok {
			kind = string(pe.Code)
		}
		s.metrics.ErrorsTotal.WithLabelValues(host, kind).Inc()
		if kind == string(pixelerr.CodeSwitchTimeout) {
			s.metrics.SwitchTimeoutsTotal.WithLabelValues(host).Inc()
		}
	}
	s.publish(s.cmdPrefix+"/"+host+"/error", ev)
}

type ackEvent struct {
	RequestID string `json:"requestId"`
	Action    string `json:"action"`
	Ts        int64  `json:"ts"`
}

// PublishAck emits a command acknowledgement on `<cmdPrefix>/<host>/ack`.
func (s *Sink) PublishAck(host, requestID, action string) {
	ev := ackEvent{RequestID: requestID, Action: action, Ts: s.now().UnixMilli()}
	s.publish(s.cmdPrefix+"/"+host+"/ack", ev)
}

// PublishSkipped increments the skipped-frame counter. It has no bus-visible
// event of its own — skips are frequent and routine, not worth a message per
// occurrence — so it only touches Prometheus.
func (s *Sink) PublishSkipped(host string) {
	if s.metrics != nil {
		s.metrics.SkippedTotal.WithLabelValues(host).Inc()
	}
}

func (s *Sink) publish(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		if s.log != nil {
			s.log.WithField("topic", topic).WithField("error", err).Error("failed to marshal event payload")
		}
		return
	}
	if s.client == nil {
		return
	}
	if err := s.client.Publish(topic, data); err != nil && s.log != nil {
		s.log.WithField("topic", topic).WithField("error", err).Warn("failed to publish event")
	}
}
