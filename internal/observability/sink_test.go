package observability

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/R3E-Network/pixeldaemon/domain/device"
	"github.com/R3E-Network/pixeldaemon/internal/bus/memory"
	pixelmetrics "github.com/R3E-Network/pixeldaemon/internal/metrics"
	"github.com/R3E-Network/pixeldaemon/internal/pixelerr"
	"github.com/R3E-Network/pixeldaemon/internal/statestore"
)

func newTestSink(t *testing.T) (*Sink, *memory.Bus, *prometheus.Registry) {
	t.Helper()
	transport := memory.New()
	if err := transport.Subscribe([]string{"pixel/cmd/*"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	reg := prometheus.NewRegistry()
	m := pixelmetrics.NewWithRegistry(reg)
	s := New(Config{
		Client:         transport,
		StateTopicBase: "pixel/state",
		CmdPrefix:      "pixel/cmd",
		Build:          BuildInfo{Version: "test"},
		Metrics:        m,
	})
	return s, transport, reg
}

func TestPublishOkEmitsFrameEventAndUpdatesMetrics(t *testing.T) {
	s, transport, reg := newTestSink(t)

	var gotTopic string
	var gotPayload []byte
	transport.OnMessage(func(topic string, payload []byte) {
		gotTopic = topic
		gotPayload = payload
	})

	s.PublishOk("panel-a", "blank", 12, 0, device.Metrics{Pushes: 5}, 3)

	if gotTopic != "pixel/cmd/panel-a/frame/ok" {
		t.Fatalf("unexpected topic: %s", gotTopic)
	}
	var ev okEvent
	if err := json.Unmarshal(gotPayload, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Scene != "blank" || ev.Generation != 3 || ev.Version != "test" {
		t.Fatalf("unexpected event contents: %+v", ev)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected metrics to be populated by PublishOk")
	}
}

func TestPublishTransitionEmitsOnStateTopicAndCountsSwitches(t *testing.T) {
	s, transport, _ := newTestSink(t)
	transport.Subscribe([]string{"pixel/state/*"})

	var gotTopic string
	transport.OnMessage(func(topic string, payload []byte) {
		gotTopic = topic
	})

	s.PublishTransition("panel-a", "blank", "blank", statestore.StatusRunning, 4)

	if gotTopic != "pixel/state/panel-a/scene/state" {
		t.Fatalf("unexpected topic: %s", gotTopic)
	}
}

func TestPublishErrorTagsPixelErrorCode(t *testing.T) {
	s, transport, _ := newTestSink(t)

	var gotPayload []byte
	transport.OnMessage(func(topic string, payload []byte) { gotPayload = payload })

	s.PublishError("panel-a", pixelerr.ConfigError("boom", errors.New("cause")), 1)

	var ev errorEvent
	if err := json.Unmarshal(gotPayload, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Error == "" {
		t.Fatal("expected a non-empty error message")
	}
}

func TestPublishAckEmitsOnAckTopic(t *testing.T) {
	s, transport, _ := newTestSink(t)

	var gotTopic string
	var gotPayload []byte
	transport.OnMessage(func(topic string, payload []byte) {
		gotTopic = topic
		gotPayload = payload
	})

	s.PublishAck("panel-a", "req-123", "state/upd")

	if gotTopic != "pixel/cmd/panel-a/ack" {
		t.Fatalf("unexpected topic: %s", gotTopic)
	}
	var ev ackEvent
	if err := json.Unmarshal(gotPayload, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.RequestID != "req-123" || ev.Action != "state/upd" {
		t.Fatalf("unexpected ack contents: %+v", ev)
	}
}

func TestPublishSkippedHasNoBusEventOnlyMetrics(t *testing.T) {
	s, transport, _ := newTestSink(t)

	fired := false
	transport.OnMessage(func(topic string, payload []byte) { fired = true })

	s.PublishSkipped("panel-a")

	if fired {
		t.Fatal("expected PublishSkipped not to emit a bus event")
	}
}

func TestNewToleratesNilMetrics(t *testing.T) {
	transport := memory.New()
	s := New(Config{Client: transport, StateTopicBase: "pixel/state", CmdPrefix: "pixel/cmd"})
	s.PublishOk("panel-a", "blank", 1, 0, device.Metrics{}, 1)
}
