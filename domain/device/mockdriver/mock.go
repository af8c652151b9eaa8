// Package mockdriver provides the in-memory Driver implementation used for
// development, tests, and as the driver each configured device switches to
// on driver/set "mock". Devices not listed in configuration are not created,
// so no driver of any kind serves them.
package mockdriver

import (
	"fmt"
	"sync"

	"github.com/R3E-Network/pixeldaemon/domain/device"
	"github.com/R3E-Network/pixeldaemon/internal/pixellog"
)

// Op records one drawing call for the in-memory op log.
type Op struct {
	Name string
	Args []any
}

// Mock buffers drawing operations into an in-memory log; Push drains the
// log, emits a debug summary, and clears it. Mock drivers never update
// liveness timestamps — Proxy enforces that by checking Kind.
type Mock struct {
	mu     sync.Mutex
	canvas *device.Canvas
	ops    []Op
	metrics device.Metrics
	log    *pixellog.Logger
}

// New builds a Mock driver for a width x height panel.
func New(width, height int, log *pixellog.Logger) *Mock {
	return &Mock{canvas: device.NewCanvas(width, height), log: log}
}

func (m *Mock) Kind() device.Kind { return device.KindMock }

func (m *Mock) record(name string, args ...any) {
	m.ops = append(m.ops, Op{Name: name, Args: args})
}

func (m *Mock) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canvas.Clear()
	m.record("clear")
	return nil
}

func (m *Mock) DrawPixel(x, y int, c device.RGBA) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canvas.SetPixel(x, y, c)
	m.record("drawPixel", x, y, c)
	return nil
}

func (m *Mock) DrawLine(ax, ay, bx, by int, c device.RGBA) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canvas.DrawLine(ax, ay, bx, by, c)
	m.record("drawLine", ax, ay, bx, by, c)
	return nil
}

func (m *Mock) DrawRect(x, y, w, h int, c device.RGBA) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canvas.DrawRect(x, y, w, h, c)
	m.record("drawRect", x, y, w, h, c)
	return nil
}

func (m *Mock) FillRect(x, y, w, h int, c device.RGBA) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canvas.FillRect(x, y, w, h, c)
	m.record("fillRect", x, y, w, h, c)
	return nil
}

func (m *Mock) DrawText(text string, x, y int, c device.RGBA, align device.Align) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canvas.DrawText(text, x, y, c, align)
	m.record("drawText", text, x, y, c, align)
	return nil
}

func (m *Mock) DrawNumber(value, x, y int, c device.RGBA, align device.Align, maxDigits int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canvas.DrawNumber(value, x, y, c, align, maxDigits)
	m.record("drawNumber", value, x, y, c, align, maxDigits)
	return nil
}

func (m *Mock) DrawImage(path string, x, y, w, h int, alpha uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("drawImage", path, x, y, w, h, alpha)
	return nil
}

// Push drains the op log, emits a debug summary, and clears it. It never
// fails and never touches liveness.
func (m *Mock) Push() error {
	m.mu.Lock()
	count := len(m.ops)
	m.ops = m.ops[:0]
	m.metrics.Pushes++
	m.mu.Unlock()

	if m.log != nil {
		m.log.WithField("ops", count).Debug("mock driver push")
	}
	return nil
}

// IsReady is always true for mock drivers.
func (m *Mock) IsReady() bool { return true }

func (m *Mock) GetMetrics() device.Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metrics
}

func (m *Mock) SetBrightness(level int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("setBrightness", level)
	return true
}

// Reset clears the canvas and op log; mock drivers have nothing else to
// reset.
func (m *Mock) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canvas.Clear()
	m.ops = m.ops[:0]
	m.record("reset")
	return nil
}

// Ops returns a copy of the current pending op log, for test assertions.
func (m *Mock) Ops() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Op, len(m.ops))
	copy(out, m.ops)
	return out
}

// String renders a short human summary, useful in debug logs.
func (o Op) String() string {
	return fmt.Sprintf("%s(%v)", o.Name, o.Args)
}
