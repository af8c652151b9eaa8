// Package metrics provides Prometheus metrics collection for the scheduler,
// device proxies, and command router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors registered by the daemon.
type Metrics struct {
	PushesTotal   *prometheus.CounterVec
	SkippedTotal  *prometheus.CounterVec
	ErrorsTotal   *prometheus.CounterVec
	FrametimeSecs *prometheus.HistogramVec

	GenerationID  *prometheus.GaugeVec
	LastSeenUnix  *prometheus.GaugeVec

	SwitchesTotal *prometheus.CounterVec
	SwitchTimeoutsTotal *prometheus.CounterVec
}

// New creates a Metrics instance registered on the default registerer.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered on a custom registerer,
// primarily for test isolation.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		PushesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pixel_pushes_total",
				Help: "Total number of successful frame pushes per device.",
			},
			[]string{"host", "scene"},
		),
		SkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pixel_frames_skipped_total",
				Help: "Total number of rendered frames not pushed, due to paused playback or a stale generation.",
			},
			[]string{"host"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pixel_frame_errors_total",
				Help: "Total number of render/draw/push errors per device.",
			},
			[]string{"host", "kind"},
		),
		FrametimeSecs: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pixel_frametime_seconds",
				Help:    "Wall-clock duration of a successful push, per device.",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"host"},
		),
		GenerationID: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pixel_generation_id",
				Help: "Current scheduling generation for a device.",
			},
			[]string{"host"},
		),
		LastSeenUnix: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pixel_last_seen_timestamp",
				Help: "Unix timestamp of the last ACKed push to real hardware.",
			},
			[]string{"host"},
		),
		SwitchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pixel_scene_switches_total",
				Help: "Total number of authoritative scene switches per device.",
			},
			[]string{"host"},
		),
		SwitchTimeoutsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pixel_switch_timeouts_total",
				Help: "Total number of scene switches that abandoned the outgoing frame on timeout.",
			},
			[]string{"host"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.PushesTotal,
			m.SkippedTotal,
			m.ErrorsTotal,
			m.FrametimeSecs,
			m.GenerationID,
			m.LastSeenUnix,
			m.SwitchesTotal,
			m.SwitchTimeoutsTotal,
		)
	}

	return m
}
