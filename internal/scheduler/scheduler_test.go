package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/R3E-Network/pixeldaemon/domain/device"
	"github.com/R3E-Network/pixeldaemon/domain/scene"
	"github.com/R3E-Network/pixeldaemon/internal/statestore"
)

type countingDriver struct {
	mu        sync.Mutex
	pushCount int
	pushErr   error
	kind      device.Kind
}

func (d *countingDriver) Clear() error                                      { return nil }
func (d *countingDriver) DrawPixel(x, y int, c device.RGBA) error           { return nil }
func (d *countingDriver) DrawLine(ax, ay, bx, by int, c device.RGBA) error  { return nil }
func (d *countingDriver) DrawRect(x, y, w, h int, c device.RGBA) error      { return nil }
func (d *countingDriver) FillRect(x, y, w, h int, c device.RGBA) error      { return nil }
func (d *countingDriver) DrawText(text string, x, y int, c device.RGBA, align device.Align) error {
	return nil
}
func (d *countingDriver) DrawNumber(value, x, y int, c device.RGBA, align device.Align, maxDigits int) error {
	return nil
}
func (d *countingDriver) DrawImage(path string, x, y, w, h int, alpha uint8) error { return nil }
func (d *countingDriver) Push() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pushCount++
	return d.pushErr
}
func (d *countingDriver) IsReady() bool               { return true }
func (d *countingDriver) GetMetrics() device.Metrics  { return device.Metrics{} }
func (d *countingDriver) SetBrightness(level int) bool { return true }
func (d *countingDriver) Reset() error                 { return nil }
func (d *countingDriver) Kind() device.Kind {
	if d.kind == "" {
		return device.KindMock
	}
	return d.kind
}
func (d *countingDriver) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pushCount
}

type fakeSink struct {
	mu         sync.Mutex
	oks        int
	errs       int
	skips      int
	transitions int
}

func (f *fakeSink) PublishOk(host, scene string, frametimeMs int64, diffPixels int, m device.Metrics, generationID uint64) {
	f.mu.Lock()
	f.oks++
	f.mu.Unlock()
}
func (f *fakeSink) PublishMetrics(host string, m device.Metrics, generationID uint64) {}
func (f *fakeSink) PublishTransition(host string, current, target string, status statestore.Status, generationID uint64) {
	f.mu.Lock()
	f.transitions++
	f.mu.Unlock()
}
func (f *fakeSink) PublishError(host string, err error, generationID uint64) {
	f.mu.Lock()
	f.errs++
	f.mu.Unlock()
}
func (f *fakeSink) PublishAck(host, requestID, action string) {}
func (f *fakeSink) PublishSkipped(host string) {
	f.mu.Lock()
	f.skips++
	f.mu.Unlock()
}

func (f *fakeSink) counts() (oks, errs, skips int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.oks, f.errs, f.skips
}

func countingScene(name string, delayMs int, stopAfter int) scene.Scene {
	count := 0
	return scene.Scene{
		Name: name,
		Render: func(ctx *scene.FrameContext) scene.RenderResult {
			count++
			if stopAfter > 0 && count >= stopAfter {
				return scene.Done()
			}
			return scene.Continue(delayMs)
		},
	}
}

func TestRunStopsWhenSceneSignalsDone(t *testing.T) {
	store := statestore.New()
	store.Mutate("panel-a", func(rs *statestore.RuntimeState) { rs.PlayState = statestore.PlayPlaying })

	driver := &countingDriver{}
	proxy := device.NewProxy("panel-a", driver)
	sink := &fakeSink{}

	done := make(chan struct{})
	go func() {
		Run(context.Background(), Params{
			Host:          "panel-a",
			Scene:         countingScene("blank", 1, 3),
			Generation:    0,
			Proxy:         proxy,
			Store:         store,
			Sink:          sink,
			MinIntervalMs: 1,
			MaxIntervalMs: 100,
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected Run to return once the scene signals Stop")
	}

	snap := store.Snapshot("panel-a")
	if snap.Status != statestore.StatusStopped {
		t.Fatalf("expected status stopped, got %v", snap.Status)
	}
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	store := statestore.New()
	store.Mutate("panel-a", func(rs *statestore.RuntimeState) { rs.PlayState = statestore.PlayPlaying })
	proxy := device.NewProxy("panel-a", &countingDriver{})
	sink := &fakeSink{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Run(ctx, Params{
			Host:          "panel-a",
			Scene:         countingScene("blank", 50, 0),
			Proxy:         proxy,
			Store:         store,
			Sink:          sink,
			MinIntervalMs: 1,
			MaxIntervalMs: 100,
		})
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected Run to return promptly after context cancellation")
	}
}

func TestRunSkipsPushWhenPaused(t *testing.T) {
	store := statestore.New()
	store.Mutate("panel-a", func(rs *statestore.RuntimeState) { rs.PlayState = statestore.PlayPaused })
	driver := &countingDriver{}
	proxy := device.NewProxy("panel-a", driver)
	sink := &fakeSink{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Run(ctx, Params{
			Host:          "panel-a",
			Scene:         countingScene("blank", 1, 4),
			Proxy:         proxy,
			Store:         store,
			Sink:          sink,
			MinIntervalMs: 1,
			MaxIntervalMs: 100,
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected Run to finish via Stop sentinel even while paused")
	}
	cancel()

	if driver.count() != 0 {
		t.Fatalf("expected no pushes while paused, got %d", driver.count())
	}
	_, _, skips := sink.counts()
	if skips == 0 {
		t.Fatal("expected skipped-frame events while paused")
	}
}

func TestRunStopsWhenGenerationSuperseded(t *testing.T) {
	store := statestore.New()
	store.Mutate("panel-a", func(rs *statestore.RuntimeState) { rs.PlayState = statestore.PlayPlaying; rs.GenerationID = 1 })
	proxy := device.NewProxy("panel-a", &countingDriver{})
	sink := &fakeSink{}

	done := make(chan struct{})
	go func() {
		Run(context.Background(), Params{
			Host:          "panel-a",
			Scene:         countingScene("blank", 50, 0),
			Generation:    1,
			Proxy:         proxy,
			Store:         store,
			Sink:          sink,
			MinIntervalMs: 1,
			MaxIntervalMs: 100,
		})
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	store.Mutate("panel-a", func(rs *statestore.RuntimeState) { rs.GenerationID = 2 })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected Run to return once its generation is superseded")
	}
}

func TestRunTransitionsToErrorAfterErrorBudgetExhausted(t *testing.T) {
	store := statestore.New()
	store.Mutate("panel-a", func(rs *statestore.RuntimeState) { rs.PlayState = statestore.PlayPlaying })
	proxy := device.NewProxy("panel-a", &countingDriver{})
	sink := &fakeSink{}

	failingScene := scene.Scene{
		Name: "broken",
		Render: func(ctx *scene.FrameContext) scene.RenderResult {
			panic("render always fails")
		},
	}

	done := make(chan struct{})
	go func() {
		Run(context.Background(), Params{
			Host:          "panel-a",
			Scene:         failingScene,
			Proxy:         proxy,
			Store:         store,
			Sink:          sink,
			MinIntervalMs: 1,
			MaxIntervalMs: 10,
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("expected Run to give up after exhausting the error budget")
	}

	snap := store.Snapshot("panel-a")
	if snap.Status != statestore.StatusError {
		t.Fatalf("expected status error after repeated render panics, got %v", snap.Status)
	}
	_, errs, _ := sink.counts()
	if errs == 0 {
		t.Fatal("expected at least one error event published")
	}
}

func TestClamp(t *testing.T) {
	if got := clamp(5, 10, 100); got != 10 {
		t.Fatalf("expected clamp to raise to floor, got %d", got)
	}
	if got := clamp(500, 10, 100); got != 100 {
		t.Fatalf("expected clamp to lower to ceiling, got %d", got)
	}
	if got := clamp(50, 10, 100); got != 50 {
		t.Fatalf("expected clamp to pass through in-range values, got %d", got)
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	if got := backoff(1, 10, 1000); got != 20 {
		t.Fatalf("expected backoff(1) = 20, got %d", got)
	}
	if got := backoff(10, 10, 1000); got != 1000 {
		t.Fatalf("expected backoff to cap at max, got %d", got)
	}
}

func TestAsErrorWrapsNonErrorPanic(t *testing.T) {
	err := asError("a string panic")
	if err == nil {
		t.Fatal("expected a non-nil error for a non-error panic value")
	}
}

func TestAsErrorPassesThroughErrorPanic(t *testing.T) {
	cause := errors.New("boom")
	if got := asError(cause); got != cause {
		t.Fatalf("expected the original error to pass through unchanged, got %v", got)
	}
}
