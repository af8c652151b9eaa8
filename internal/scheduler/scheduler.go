// Package scheduler runs the per-device render loop: it calls a scene's
// Render repeatedly at the cadence the scene itself requests, gates every
// render and push against the device's current generation, and pushes the
// frame to the hardware only after Render returns — scenes never push for
// themselves. Follows a worker-pool dispatch shape with
// semaphore-gated slot acquisition, adapted here to one slot per device.
package scheduler

import (
	"context"
	"time"

	"github.com/R3E-Network/pixeldaemon/domain/device"
	"github.com/R3E-Network/pixeldaemon/domain/scene"
	"github.com/R3E-Network/pixeldaemon/internal/observability"
	"github.com/R3E-Network/pixeldaemon/internal/pixelerr"
	"github.com/R3E-Network/pixeldaemon/internal/pixellog"
	"github.com/R3E-Network/pixeldaemon/internal/statestore"
)

// defaultMinIntervalMs is the pacing floor: a scene requesting a shorter
// delay is clamped to this value so a runaway scene cannot busy-loop and to
// bound CPU and network load.
const defaultMinIntervalMs = 50

// defaultMaxIntervalMs is the pacing ceiling: up to 60s between frames.
const defaultMaxIntervalMs = 60_000

// maxConsecutiveErrors caps non-fatal render/push errors before the loop
// gives up and transitions the device to the error status.
const maxConsecutiveErrors = 5

// slowFrameFactor warns when a cycle takes longer than this multiple of the
// scene's requested interval.
const slowFrameFactor = 2

// Params configures one run of the device loop.
type Params struct {
	Host          string
	Scene         scene.Scene
	Generation    uint64
	Env           scene.Env
	Proxy         *device.Proxy
	Store         *statestore.Store
	Sink          observability.EventSink
	Log           *pixellog.Logger
	MinIntervalMs int
	MaxIntervalMs int
	Now           func() time.Time

	// Rerender, when signaled, wakes the loop for one extra render+push
	// cycle ahead of its normal pacing — used after a driver hot-swap so the
	// newly active driver reflects the latest frame immediately. The
	// generation and cadence are unaffected; it is the same goroutine doing
	// the extra cycle, so no additional synchronization is needed against
	// the regular loop. A nil channel (the common case) simply never fires.
	Rerender <-chan struct{}
}

// Run executes Host's render loop until ctx is cancelled, the scene signals
// Done(), the generation is superseded by a newer switch, or consecutive
// errors exceed the error budget. It is the caller's (Scene Manager's)
// responsibility to run this in its own goroutine and to cancel ctx when
// switching away.
func Run(ctx context.Context, p Params) {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	minInterval := p.MinIntervalMs
	if minInterval <= 0 {
		minInterval = defaultMinIntervalMs
	}
	maxInterval := p.MaxIntervalMs
	if maxInterval <= 0 {
		maxInterval = defaultMaxIntervalMs
	}

	log := p.Log
	sceneName := p.Scene.Name
	scratch := p.Store.Scratchpad(p.Host, sceneName)

	consecutiveErrors := 0
	frameCount := 0
	startedAt := now()
	var lastCycle time.Duration

	delayMs := 0 // first frame fires immediately
	for {
		if !currentGeneration(p.Store, p.Host, p.Generation) {
			return // superseded; a newer switch owns this device now
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(delayMs) * time.Millisecond):
		case <-p.Rerender:
		}

		if !currentGeneration(p.Store, p.Host, p.Generation) {
			return
		}

		cycleStart := now()
		frame := p.Proxy.BeginFrame()
		result, err := renderOnDriver(p, frame.Driver(), scratch, frameCount, now().Sub(startedAt).Milliseconds(), lastCycle)
		if err != nil {
			frame.Release()
			consecutiveErrors++
			if log != nil {
				log.WithField("host", p.Host).WithField("scene", sceneName).WithField("error", err).
					Warn("scene render failed")
			}
			if p.Sink != nil {
				p.Sink.PublishError(p.Host, err, p.Generation)
			}
			if pixelerr.IsFatalRender(err) || consecutiveErrors >= maxConsecutiveErrors {
				p.Store.Mutate(p.Host, func(rs *statestore.RuntimeState) {
					rs.Status = statestore.StatusError
					rs.PlayState = statestore.PlayStopped
				})
				return
			}
			delayMs = backoff(consecutiveErrors, minInterval, maxInterval)
			continue
		}
		consecutiveErrors = 0

		if !currentGeneration(p.Store, p.Host, p.Generation) {
			frame.Release()
			p.Proxy.RecordSkipped()
			if p.Sink != nil {
				p.Sink.PublishSkipped(p.Host)
			}
			return // render completed against a stale generation; drop the frame
		}

		if result.Stop {
			frame.Release()
			p.Store.Mutate(p.Host, func(rs *statestore.RuntimeState) {
				rs.Status = statestore.StatusStopped
				rs.PlayState = statestore.PlayStopped
			})
			return
		}

		rs := p.Store.Snapshot(p.Host)
		if rs.PlayState == statestore.PlayPlaying {
			pushErr := frame.Push(sceneName, func(host, scn string, frametimeMs int64, diffPixels int, metrics device.Metrics) {
				if p.Sink != nil {
					p.Sink.PublishOk(host, scn, frametimeMs, diffPixels, metrics, p.Generation)
				}
			})
			frame.Release()
			if pushErr != nil {
				pushErr = pixelerr.PushError(pushErr).ForHost(p.Host)
				consecutiveErrors++
				if log != nil {
					log.WithField("host", p.Host).WithField("scene", sceneName).WithField("error", pushErr).
						Warn("frame push failed")
				}
				if p.Sink != nil {
					p.Sink.PublishError(p.Host, pushErr, p.Generation)
				}
				if consecutiveErrors >= maxConsecutiveErrors {
					p.Store.Mutate(p.Host, func(rs *statestore.RuntimeState) {
						rs.Status = statestore.StatusError
					})
					return
				}
			} else {
				consecutiveErrors = 0
				p.Store.Mutate(p.Host, func(rs *statestore.RuntimeState) {
					rs.FramesPushed++
				})
			}
		} else {
			frame.Release()
			p.Proxy.RecordSkipped()
			if p.Sink != nil {
				p.Sink.PublishSkipped(p.Host)
			}
		}

		lastCycle = now().Sub(cycleStart)
		requested := clamp(result.DelayMs, minInterval, maxInterval)
		if lastCycle > time.Duration(requested*slowFrameFactor)*time.Millisecond && log != nil {
			log.WithField("host", p.Host).WithField("scene", sceneName).
				WithField("cycleMs", lastCycle.Milliseconds()).WithField("requestedMs", requested).
				Warn("render cycle exceeded requested interval")
		}
		delayMs = requested
		frameCount++
	}
}

func currentGeneration(store *statestore.Store, host string, generation uint64) bool {
	return store.Snapshot(host).GenerationID == generation
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// backoff grows the retry delay with each consecutive error, capped at max.
func backoff(consecutiveErrors, min, max int) int {
	d := min * (1 << consecutiveErrors)
	return clamp(d, min, max)
}

// renderOnDriver invokes the scene's Render against driver, recovering from
// a panic as a render error: fatal when the panic value is itself a
// FatalRenderError, non-fatal (counted against the error budget) for any
// other value. The caller owns the Frame (and its lock)
// across both this call and the subsequent Push, so the same driver
// instance that was drawn to is the one that gets pushed.
func renderOnDriver(p Params, driver device.Driver, scratch map[string]any, frameCount int, elapsedMs int64, lastCycle time.Duration) (res scene.RenderResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			cause := asError(r)
			if pixelerr.IsFatalRender(cause) {
				err = pixelerr.FatalRenderError(p.Scene.Name, cause).ForHost(p.Host)
				return
			}
			err = pixelerr.RenderError(p.Scene.Name, cause).ForHost(p.Host)
		}
	}()

	rs := p.Store.Snapshot(p.Host)
	ctx := scene.NewFrameContext(&deviceAdapter{d: driver}, p.Env, scratch, string(rs.LoggingLevel), nil)
	ctx.LoopDriven = frameCount > 0
	ctx.FrameCount = frameCount
	ctx.ElapsedMs = elapsedMs
	ctx.Frametime = lastCycle.Milliseconds()

	res = p.Scene.Render(ctx)
	return res, nil
}

func asError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return pixelerr.New(pixelerr.CodeRenderError, "panic in scene render").WithDetails("recovered", r)
}

// deviceAdapter narrows a device.Driver down to the scene.Device drawing
// surface, converting the plain [4]uint8/string types a scene uses into the
// device package's named RGBA/Align types.
type deviceAdapter struct{ d device.Driver }

func (a *deviceAdapter) Clear() error { return a.d.Clear() }

func (a *deviceAdapter) DrawPixel(x, y int, rgba [4]uint8) error {
	return a.d.DrawPixel(x, y, device.RGBA(rgba))
}

func (a *deviceAdapter) DrawLine(ax, ay, bx, by int, rgba [4]uint8) error {
	return a.d.DrawLine(ax, ay, bx, by, device.RGBA(rgba))
}

func (a *deviceAdapter) DrawRect(x, y, w, h int, rgba [4]uint8) error {
	return a.d.DrawRect(x, y, w, h, device.RGBA(rgba))
}

func (a *deviceAdapter) FillRect(x, y, w, h int, rgba [4]uint8) error {
	return a.d.FillRect(x, y, w, h, device.RGBA(rgba))
}

func (a *deviceAdapter) DrawText(text string, x, y int, rgba [4]uint8, align string) error {
	return a.d.DrawText(text, x, y, device.RGBA(rgba), device.Align(align))
}

func (a *deviceAdapter) DrawNumber(value, x, y int, rgba [4]uint8, align string, maxDigits int) error {
	return a.d.DrawNumber(value, x, y, device.RGBA(rgba), device.Align(align), maxDigits)
}

func (a *deviceAdapter) DrawImage(path string, x, y, w, h int, alpha uint8) error {
	return a.d.DrawImage(path, x, y, w, h, alpha)
}

func (a *deviceAdapter) SetBrightness(level int) bool { return a.d.SetBrightness(level) }
