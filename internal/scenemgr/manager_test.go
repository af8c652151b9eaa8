package scenemgr

import (
	"context"
	"testing"
	"time"

	"github.com/R3E-Network/pixeldaemon/domain/device"
	"github.com/R3E-Network/pixeldaemon/domain/device/mockdriver"
	"github.com/R3E-Network/pixeldaemon/domain/scene"
	"github.com/R3E-Network/pixeldaemon/internal/statestore"
)

func newTestManager(t *testing.T) (*Manager, *statestore.Store) {
	t.Helper()
	reg := scene.NewRegistry()
	store := statestore.New()
	m := New(Config{
		Registry:      reg,
		Store:         store,
		MinIntervalMs: 5,
		MaxIntervalMs: 1000,
	})
	return m, store
}

func registerCountingScene(t *testing.T, m *Manager, name string, cleanupCalls *int, initCalls *int) {
	t.Helper()
	s := scene.Scene{
		Name: name,
		Init: func(ctx *scene.FrameContext) error {
			if initCalls != nil {
				*initCalls++
			}
			return nil
		},
		Render: func(ctx *scene.FrameContext) scene.RenderResult { return scene.Continue(1000) },
		Cleanup: func(ctx *scene.FrameContext) {
			if cleanupCalls != nil {
				*cleanupCalls++
			}
		},
	}
	if err := m.registry.Register(s); err != nil {
		t.Fatalf("register scene %q: %v", name, err)
	}
}

func TestSwitchSceneUnknownTargetErrors(t *testing.T) {
	m, _ := newTestManager(t)
	proxy := device.NewProxy("panel-a", mockdriver.New(8, 8, nil))
	m.AddDevice("panel-a", proxy, scene.Env{Width: 8, Height: 8, Host: "panel-a"})

	err := m.SwitchScene(context.Background(), "panel-a", "does-not-exist", nil)
	if err == nil {
		t.Fatal("expected an error switching to an unregistered scene")
	}
}

func TestSwitchSceneUnknownHostErrors(t *testing.T) {
	m, _ := newTestManager(t)
	var initCalls, cleanupCalls int
	registerCountingScene(t, m, "blank", &cleanupCalls, &initCalls)

	err := m.SwitchScene(context.Background(), "ghost-panel", "blank", nil)
	if err == nil {
		t.Fatal("expected an error switching scenes on an unregistered device host")
	}
}

func TestSwitchSceneRunsInitAndBumpsGeneration(t *testing.T) {
	m, store := newTestManager(t)
	proxy := device.NewProxy("panel-a", mockdriver.New(8, 8, nil))
	m.AddDevice("panel-a", proxy, scene.Env{Width: 8, Height: 8, Host: "panel-a"})
	var initCalls, cleanupCalls int
	registerCountingScene(t, m, "blank", &cleanupCalls, &initCalls)

	if err := m.SwitchScene(context.Background(), "panel-a", "blank", nil); err != nil {
		t.Fatalf("switch: %v", err)
	}

	snap := store.Snapshot("panel-a")
	if snap.CurrentScene != "blank" || snap.Status != statestore.StatusRunning {
		t.Fatalf("expected scene running after switch, got %+v", snap)
	}
	if snap.GenerationID != 1 {
		t.Fatalf("expected generation bumped to 1, got %d", snap.GenerationID)
	}
	if initCalls != 1 {
		t.Fatalf("expected Init called once, got %d", initCalls)
	}

	m.StopScene("panel-a")
}

func TestSwitchSceneReInitsEvenWhenTargetEqualsCurrent(t *testing.T) {
	m, store := newTestManager(t)
	proxy := device.NewProxy("panel-a", mockdriver.New(8, 8, nil))
	m.AddDevice("panel-a", proxy, scene.Env{Width: 8, Height: 8, Host: "panel-a"})
	var initCalls, cleanupCalls int
	registerCountingScene(t, m, "blank", &cleanupCalls, &initCalls)

	if err := m.SwitchScene(context.Background(), "panel-a", "blank", nil); err != nil {
		t.Fatalf("first switch: %v", err)
	}
	if err := m.SwitchScene(context.Background(), "panel-a", "blank", nil); err != nil {
		t.Fatalf("second switch: %v", err)
	}

	if initCalls != 2 {
		t.Fatalf("expected Init to run on every update even when target==current, got %d calls", initCalls)
	}
	snap := store.Snapshot("panel-a")
	if snap.GenerationID != 2 {
		t.Fatalf("expected generation bumped on every update, got %d", snap.GenerationID)
	}

	m.StopScene("panel-a")
}

func TestSwitchSceneRunsCleanupBeforeNextInit(t *testing.T) {
	m, _ := newTestManager(t)
	proxy := device.NewProxy("panel-a", mockdriver.New(8, 8, nil))
	m.AddDevice("panel-a", proxy, scene.Env{Width: 8, Height: 8, Host: "panel-a"})

	var aInit, aCleanup, bInit, bCleanup int
	registerCountingScene(t, m, "scene-a", &aCleanup, &aInit)
	registerCountingScene(t, m, "scene-b", &bCleanup, &bInit)

	if err := m.SwitchScene(context.Background(), "panel-a", "scene-a", nil); err != nil {
		t.Fatalf("switch to scene-a: %v", err)
	}
	if err := m.SwitchScene(context.Background(), "panel-a", "scene-b", nil); err != nil {
		t.Fatalf("switch to scene-b: %v", err)
	}

	if aCleanup != 1 {
		t.Fatalf("expected scene-a Cleanup called once when switching away, got %d", aCleanup)
	}
	if bInit != 1 {
		t.Fatalf("expected scene-b Init called once on entry, got %d", bInit)
	}

	m.StopScene("panel-a")
}

func TestStopSceneRunsCleanupAndMarksStopped(t *testing.T) {
	m, store := newTestManager(t)
	proxy := device.NewProxy("panel-a", mockdriver.New(8, 8, nil))
	m.AddDevice("panel-a", proxy, scene.Env{Width: 8, Height: 8, Host: "panel-a"})
	var initCalls, cleanupCalls int
	registerCountingScene(t, m, "blank", &cleanupCalls, &initCalls)

	if err := m.SwitchScene(context.Background(), "panel-a", "blank", nil); err != nil {
		t.Fatalf("switch: %v", err)
	}
	m.StopScene("panel-a")

	if cleanupCalls != 1 {
		t.Fatalf("expected Cleanup called once on stop, got %d", cleanupCalls)
	}
	snap := store.Snapshot("panel-a")
	if snap.Status != statestore.StatusStopped || snap.CurrentScene != "" {
		t.Fatalf("expected stopped status and cleared current scene, got %+v", snap)
	}
}

func TestPauseAndResumeScene(t *testing.T) {
	m, store := newTestManager(t)
	proxy := device.NewProxy("panel-a", mockdriver.New(8, 8, nil))
	m.AddDevice("panel-a", proxy, scene.Env{Width: 8, Height: 8, Host: "panel-a"})
	var initCalls, cleanupCalls int
	registerCountingScene(t, m, "blank", &cleanupCalls, &initCalls)

	if err := m.SwitchScene(context.Background(), "panel-a", "blank", nil); err != nil {
		t.Fatalf("switch: %v", err)
	}

	m.PauseScene("panel-a")
	if store.Snapshot("panel-a").PlayState != statestore.PlayPaused {
		t.Fatal("expected play state paused")
	}

	m.ResumeScene("panel-a")
	if store.Snapshot("panel-a").PlayState != statestore.PlayPlaying {
		t.Fatal("expected play state playing after resume")
	}

	m.StopScene("panel-a")
}

func TestSwitchSceneResetsScratchpad(t *testing.T) {
	m, store := newTestManager(t)
	proxy := device.NewProxy("panel-a", mockdriver.New(8, 8, nil))
	m.AddDevice("panel-a", proxy, scene.Env{Width: 8, Height: 8, Host: "panel-a"})

	store.Scratchpad("panel-a", "blank")["stale"] = true

	s := scene.Scene{
		Name:   "blank",
		Render: func(ctx *scene.FrameContext) scene.RenderResult { return scene.Continue(1000) },
	}
	m.registry.Register(s)

	if err := m.SwitchScene(context.Background(), "panel-a", "blank", nil); err != nil {
		t.Fatalf("switch: %v", err)
	}

	sp := store.Scratchpad("panel-a", "blank")
	if _, ok := sp["stale"]; ok {
		t.Fatal("expected scratchpad reset before Init on scene entry")
	}

	m.StopScene("panel-a")
}

func TestStopAndWaitTimesOutAndPublishesError(t *testing.T) {
	m, store := newTestManager(t)
	m.stopTimeout = func(intervalMs int) time.Duration { return 10 * time.Millisecond }

	published := make(chan struct{}, 1)
	m.sink = recordingSink{onError: func() { published <- struct{}{} }}

	blocked := make(chan struct{})
	r := &running{cancel: func() {}, done: make(chan struct{})}
	go func() {
		<-blocked // never closes within the timeout window
		close(r.done)
	}()

	store.Mutate("panel-a", func(rs *statestore.RuntimeState) { rs.CurrentScene = "stuck"; rs.Status = statestore.StatusRunning })
	m.stopAndWait("panel-a", r, store.Snapshot("panel-a"))

	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("expected a SwitchTimeout error to be published when the outgoing loop never exits")
	}
	close(blocked)
}

type recordingSink struct {
	onError func()
}

func (recordingSink) PublishOk(host, scene string, frametimeMs int64, diffPixels int, m device.Metrics, generationID uint64) {
}
func (recordingSink) PublishMetrics(host string, m device.Metrics, generationID uint64) {}
func (recordingSink) PublishTransition(host string, current, target string, status statestore.Status, generationID uint64) {
}
func (r recordingSink) PublishError(host string, err error, generationID uint64) {
	if r.onError != nil {
		r.onError()
	}
}
func (recordingSink) PublishAck(host, requestID, action string) {}
func (recordingSink) PublishSkipped(host string)                {}
