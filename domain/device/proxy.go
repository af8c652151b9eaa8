package device

import (
	"sync"
	"time"
)

// Proxy is a per-host facade owning a current driver instance. It
// supports hot-swap, serializes calls so the scheduler's in-flight
// render sees either the old driver for its entire frame or the new driver
// for its entire frame (never a mix), and tracks per-device metrics and
// last-ACK timestamp.
//
// Atomicity is implemented with a RWMutex: a Frame holds the read lock for
// its entire drawing+push sequence; SwitchDriver takes the write lock to
// replace impl, swapping under a per-device lock. metrics has its own
// mutex: a Frame updates metrics while still holding the frame's read
// lock, and RWMutex does not allow upgrading a held read lock to a write
// lock in the same goroutine.
type Proxy struct {
	Host string

	mu   sync.RWMutex
	impl Driver

	metricsMu sync.Mutex
	metrics   Metrics

	now func() time.Time
}

// NewProxy builds a Proxy around an initial driver implementation.
func NewProxy(host string, impl Driver) *Proxy {
	return &Proxy{Host: host, impl: impl, now: time.Now}
}

// SwitchDriver atomically replaces impl. It blocks until any in-flight
// Frame releases its read lock, guaranteeing the outgoing frame completed
// against the old driver in its entirety.
func (p *Proxy) SwitchDriver(impl Driver) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.impl = impl
}

// CurrentKind reports the active driver's Kind.
func (p *Proxy) CurrentKind() Kind {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.impl.Kind()
}

// Frame is a handle on the driver selected for one render+push cycle. It
// must be released exactly once, after the cycle's Push call returns (or is
// abandoned), to let a pending SwitchDriver proceed.
type Frame struct {
	p      *Proxy
	driver Driver
}

// BeginFrame acquires the read lock and captures the current driver for the
// caller's exclusive use until Release. Drawing calls during this frame MUST
// go through Frame.Driver(), not directly through Proxy, so a swap cannot
// land mid-frame.
func (p *Proxy) BeginFrame() *Frame {
	p.mu.RLock()
	return &Frame{p: p, driver: p.impl}
}

// Driver returns the driver captured for this frame.
func (f *Frame) Driver() Driver { return f.driver }

// Release ends the frame, allowing a pending SwitchDriver to proceed.
func (f *Frame) Release() {
	f.p.mu.RUnlock()
}

// Push times f's driver Push call, updates the owning Proxy's metrics, and
// invokes publishOk on success. diffPixels is not tracked — framebuffer
// diffing is content semantics, out of scope here — so the callback
// always receives 0.
func (f *Frame) Push(sceneName string, publishOk func(host, scene string, frametimeMs int64, diffPixels int, metrics Metrics)) error {
	p := f.p
	start := p.now()
	err := f.driver.Push()
	elapsed := p.now().Sub(start)

	p.metricsMu.Lock()
	if err != nil {
		p.metrics.Errors++
	} else {
		p.metrics.Pushes++
		p.metrics.LastFrametimeMs = elapsed.Milliseconds()
		if f.driver.Kind() == KindReal {
			now := p.now()
			p.metrics.LastSeenTs = &now
		}
	}
	snapshot := p.metrics
	p.metricsMu.Unlock()

	if err == nil && publishOk != nil {
		publishOk(p.Host, sceneName, elapsed.Milliseconds(), 0, snapshot)
	}
	return err
}

// RecordSkipped increments the skipped-frame counter, used by the
// scheduler when a rendered frame is not pushed: the play state is paused,
// or the generation went stale while the frame was rendering.
func (p *Proxy) RecordSkipped() {
	p.metricsMu.Lock()
	defer p.metricsMu.Unlock()
	p.metrics.Skipped++
}

// Reset invokes the current driver's best-effort Reset through a regular
// frame acquisition, so it serializes against any in-flight Push the same
// way a normal drawing cycle would.
func (p *Proxy) Reset() error {
	f := p.BeginFrame()
	defer f.Release()
	return f.Driver().Reset()
}

// IsReady returns true for mock drivers and delegates to the real driver
// otherwise.
func (p *Proxy) IsReady() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.impl.Kind() == KindMock {
		return true
	}
	return p.impl.IsReady()
}

// Metrics returns a value-copy snapshot; no references escape.
func (p *Proxy) Metrics() Metrics {
	p.metricsMu.Lock()
	defer p.metricsMu.Unlock()
	return p.metrics
}
