// Package device defines the hardware driver interface, the device proxy
// that hot-swaps between driver implementations, and the two concrete
// driver families.
package device

import "time"

// RGBA is a 4-channel pixel color.
type RGBA [4]uint8

// Align controls text/number drawing anchor point.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Metrics is a plain value snapshot of a device's drawing/push counters.
// No references escape: callers always get a copy.
type Metrics struct {
	Pushes          int64
	Skipped         int64
	Errors          int64
	LastFrametimeMs int64
	LastSeenTs      *time.Time // nil until a real driver's push succeeds; mock pushes never update it
}

// Driver is the hardware abstraction every backend (real or mock) must
// satisfy. Unsupported optional operations return a benign
// "not supported" result rather than failing — implementations express this
// by returning ErrNotSupported, which callers must not treat as DrawError.
type Driver interface {
	Clear() error
	DrawPixel(x, y int, c RGBA) error
	DrawLine(ax, ay, bx, by int, c RGBA) error
	DrawRect(x, y, w, h int, c RGBA) error
	FillRect(x, y, w, h int, c RGBA) error
	DrawText(text string, x, y int, c RGBA, align Align) error
	DrawNumber(value, x, y int, c RGBA, align Align, maxDigits int) error
	DrawImage(path string, x, y, w, h int, alpha uint8) error

	// Push flushes the current frame to the display. For real drivers this
	// is the only observable liveness signal: its completion is the
	// definitive ACK. For mock drivers it drains the in-memory op log and
	// never updates liveness.
	Push() error

	// IsReady reports readiness; mock drivers are always ready.
	IsReady() bool

	// GetMetrics returns a point-in-time copy of the driver's counters.
	GetMetrics() Metrics

	// SetBrightness attempts to set panel brightness; returns false (not an
	// error) when unsupported.
	SetBrightness(level int) bool

	// Reset performs a driver-specific, best-effort device reset. Concrete
	// wire behavior (if any) is up to the implementation; a driver with no
	// reset operation of its own clears local state and returns nil.
	Reset() error

	// Kind identifies the driver family ("real" or "mock") for observability
	// and tagged-variant dispatch over string-typed driver kinds.
	Kind() Kind
}

// Kind discriminates driver families.
type Kind string

const (
	KindReal Kind = "real"
	KindMock Kind = "mock"
)

// ErrNotSupported is returned by optional drawing operations a given driver
// does not implement.
type ErrNotSupported struct{ Op string }

func (e ErrNotSupported) Error() string { return "operation not supported: " + e.Op }
