// Package scene defines the Scene contract and the per-frame context handed
// to a scene's render call.
package scene

import (
	"github.com/R3E-Network/pixeldaemon/internal/pixellog"
	"github.com/R3E-Network/pixeldaemon/internal/pixelerr"
)

// RenderFunc is a scene's per-frame render call. Go has no untyped
// numeric/non-numeric union, so instead of a delay or a non-numeric
// "I am done" sentinel, Render returns a RenderResult whose Stop field
// stands in for the sentinel.
type RenderFunc func(ctx *FrameContext) RenderResult

// RenderResult is what a scene's Render call reports back to the scheduler.
type RenderResult struct {
	// DelayMs is the requested delay in milliseconds until the next frame.
	// Ignored when Stop is true.
	DelayMs int
	// Stop, when true, is the "I am done" sentinel: the scheduler
	// transitions the device to stopped and calls Cleanup.
	Stop bool
}

// Continue builds a RenderResult requesting another frame after delayMs.
func Continue(delayMs int) RenderResult { return RenderResult{DelayMs: delayMs} }

// Done builds the stop-sentinel RenderResult.
func Done() RenderResult { return RenderResult{Stop: true} }

// InitFunc runs once when a scene becomes active on a device, after its
// scratchpad has been reset and before the first Render.
type InitFunc func(ctx *FrameContext) error

// CleanupFunc runs once when a scene stops being active on a device, always
// before the incoming scene's Init.
type CleanupFunc func(ctx *FrameContext)

// Scene is an immutable, named unit of rendering logic. Render is
// required; Init and Cleanup are optional capabilities.
type Scene struct {
	Name        string
	Description string
	Category    string
	// WantsLoop hints that the scene drives its own animation cadence via
	// Render's returned delay rather than relying on a single static frame.
	WantsLoop bool
	// IsExample flags dev/example scenes for registry listings.
	IsExample bool

	Init    InitFunc // optional
	Render  RenderFunc
	Cleanup CleanupFunc // optional
}

// Validate checks the minimal contract: Render must be set.
func (s Scene) Validate() error {
	if s.Render == nil {
		return pixelerr.InvalidScene(s.Name, "render is required")
	}
	return nil
}

// Env describes the fixed per-device environment a scene renders into.
type Env struct {
	Width  int
	Height int
	Host   string
}

// Device is the narrow drawing surface exposed to a scene under the
// push-after-render contract: scenes draw only, the scheduler pushes
// after Render returns.
type Device interface {
	Clear() error
	DrawPixel(x, y int, rgba [4]uint8) error
	DrawLine(ax, ay, bx, by int, rgba [4]uint8) error
	DrawRect(x, y, w, h int, rgba [4]uint8) error
	FillRect(x, y, w, h int, rgba [4]uint8) error
	DrawText(text string, x, y int, rgba [4]uint8, align string) error
	DrawNumber(value int, x, y int, rgba [4]uint8, align string, maxDigits int) error
	DrawImage(path string, x, y, w, h int, alpha uint8) error
	SetBrightness(level int) bool
}

// FrameContext is created fresh per Render/Init/Cleanup call.
type FrameContext struct {
	Device Device
	Env    Env

	// Payload carries the parameters from the state/upd command that
	// triggered (or re-triggered) this scene, or nil for a driven frame.
	Payload any

	// LoopDriven is true for frames triggered by the scheduler's own pacing
	// loop rather than by scene entry.
	LoopDriven bool
	FrameCount int
	ElapsedMs  int64
	Frametime  int64

	state       map[string]any
	logMinLevel string
	logSink     func(host, msg, level string, meta map[string]any)
	publishOk   func()
}

// NewFrameContext constructs a FrameContext. state must be the scratchpad
// owned by (host, sceneName); callers are responsible for resetting it on
// scene entry, not FrameContext itself.
func NewFrameContext(device Device, env Env, state map[string]any, logMinLevel string, logSink func(host, msg, level string, meta map[string]any)) *FrameContext {
	if state == nil {
		state = make(map[string]any)
	}
	return &FrameContext{
		Device:      device,
		Env:         env,
		state:       state,
		logMinLevel: logMinLevel,
		logSink:     logSink,
	}
}

// GetState returns the scratchpad value for key, or dflt when absent.
func (c *FrameContext) GetState(key string, dflt any) any {
	if v, ok := c.state[key]; ok {
		return v
	}
	return dflt
}

// SetState stores a scratchpad value for key.
func (c *FrameContext) SetState(key string, value any) {
	c.state[key] = value
}

// Log emits a scene log line, filtered against the device's configured
// minimum logging level.
func (c *FrameContext) Log(msg, level string, meta map[string]any) {
	if !pixellog.Allowed(c.logMinLevel, level) {
		return
	}
	if c.logSink != nil {
		c.logSink(c.Env.Host, msg, level, meta)
	}
}
