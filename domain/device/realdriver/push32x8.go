package realdriver

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/R3E-Network/pixeldaemon/domain/device"
	"github.com/R3E-Network/pixeldaemon/internal/pixelerr"
)

// Push32x8 drives the smaller 32x8 panel family, which is reached over a
// simple push protocol distinct from the 64x64 HTTP panel's JSON encoding:
// a raw big-endian RGBA byte stream in the request body. It satisfies the
// same device.Driver contract as HTTP.
type Push32x8 struct {
	endpoint   string
	httpClient *http.Client

	mu      sync.Mutex
	canvas  *device.Canvas
	metrics device.Metrics
}

// NewPush32x8 builds a Push32x8 driver targeting endpoint.
func NewPush32x8(endpoint string, timeout time.Duration) *Push32x8 {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Push32x8{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		canvas:     device.NewCanvas(32, 8),
	}
}

func (p *Push32x8) Kind() device.Kind { return device.KindReal }

func (p *Push32x8) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.canvas.Clear()
	return nil
}

func (p *Push32x8) DrawPixel(x, y int, c device.RGBA) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.canvas.SetPixel(x, y, c)
	return nil
}

func (p *Push32x8) DrawLine(ax, ay, bx, by int, c device.RGBA) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.canvas.DrawLine(ax, ay, bx, by, c)
	return nil
}

func (p *Push32x8) DrawRect(x, y, w, h int, c device.RGBA) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.canvas.DrawRect(x, y, w, h, c)
	return nil
}

func (p *Push32x8) FillRect(x, y, w, h int, c device.RGBA) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.canvas.FillRect(x, y, w, h, c)
	return nil
}

func (p *Push32x8) DrawText(text string, x, y int, c device.RGBA, align device.Align) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.canvas.DrawText(text, x, y, c, align)
	return nil
}

func (p *Push32x8) DrawNumber(value, x, y int, c device.RGBA, align device.Align, maxDigits int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.canvas.DrawNumber(value, x, y, c, align, maxDigits)
	return nil
}

func (p *Push32x8) DrawImage(path string, x, y, w, h int, alpha uint8) error {
	return device.ErrNotSupported{Op: "DrawImage"}
}

// Push streams the canvas as a raw RGBA byte buffer. A single attempt, no
// retry: the 32x8 panel family drops frames on transient failure rather
// than re-sending stale pixel data (distinct failure behavior from the
// JSON/HTTP 64x64 driver, kept intentionally simple).
func (p *Push32x8) Push() error {
	p.mu.Lock()
	buf := encodeRaw(p.canvas)
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), p.httpClient.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, p.endpoint, bytes.NewReader(buf))
	if err != nil {
		p.recordError()
		return pixelerr.PushError(err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.recordError()
		return pixelerr.PushError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		p.recordError()
		return pixelerr.PushError(&httpStatusError{status: resp.StatusCode})
	}

	p.mu.Lock()
	p.metrics.Pushes++
	p.mu.Unlock()
	return nil
}

func (p *Push32x8) recordError() {
	p.mu.Lock()
	p.metrics.Errors++
	p.mu.Unlock()
}

func encodeRaw(c *device.Canvas) []byte {
	buf := make([]byte, 0, c.Width*c.Height*4)
	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			px := c.Pixel(x, y)
			buf = append(buf, px[0], px[1], px[2], px[3])
		}
	}
	return buf
}

func (p *Push32x8) IsReady() bool {
	return p.endpoint != ""
}

func (p *Push32x8) GetMetrics() device.Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics
}

func (p *Push32x8) SetBrightness(level int) bool {
	return false
}

// Reset clears the locally held canvas; the push-protocol panel has no
// separate reset wire command, so this is the best-effort fallback.
func (p *Push32x8) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.canvas.Clear()
	return nil
}
