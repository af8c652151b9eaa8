// Package realdriver provides hardware-backed Driver implementations that
// perform network I/O, following an HTTPDriver-style contract
// (Do/Get/Post/SetTimeout/SetRetry).
package realdriver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/R3E-Network/pixeldaemon/domain/device"
	"github.com/R3E-Network/pixeldaemon/internal/pixelerr"
)

// HTTP drives a 64x64-style panel reached over HTTP. Push is the only
// observable liveness operation: its completion is the definitive ACK,
// recorded by the owning Proxy.
type HTTP struct {
	endpoint   string
	httpClient *http.Client
	maxRetries int
	retryWait  time.Duration

	mu      sync.Mutex
	canvas  *device.Canvas
	metrics device.Metrics
}

// Config configures an HTTP driver instance.
type Config struct {
	Endpoint   string
	Width      int
	Height     int
	Timeout    time.Duration
	MaxRetries int
	RetryWait  time.Duration
}

// New builds an HTTP driver targeting Config.Endpoint.
func New(cfg Config) *HTTP {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	retryWait := cfg.RetryWait
	if retryWait <= 0 {
		retryWait = 100 * time.Millisecond
	}
	return &HTTP{
		endpoint:   cfg.Endpoint,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: cfg.MaxRetries,
		retryWait:  retryWait,
		canvas:     device.NewCanvas(cfg.Width, cfg.Height),
	}
}

func (h *HTTP) Kind() device.Kind { return device.KindReal }

func (h *HTTP) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.canvas.Clear()
	return nil
}

func (h *HTTP) DrawPixel(x, y int, c device.RGBA) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.canvas.SetPixel(x, y, c)
	return nil
}

func (h *HTTP) DrawLine(ax, ay, bx, by int, c device.RGBA) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.canvas.DrawLine(ax, ay, bx, by, c)
	return nil
}

func (h *HTTP) DrawRect(x, y, w, hgt int, c device.RGBA) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.canvas.DrawRect(x, y, w, hgt, c)
	return nil
}

func (h *HTTP) FillRect(x, y, w, hgt int, c device.RGBA) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.canvas.FillRect(x, y, w, hgt, c)
	return nil
}

func (h *HTTP) DrawText(text string, x, y int, c device.RGBA, align device.Align) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.canvas.DrawText(text, x, y, c, align)
	return nil
}

func (h *HTTP) DrawNumber(value, x, y int, c device.RGBA, align device.Align, maxDigits int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.canvas.DrawNumber(value, x, y, c, align, maxDigits)
	return nil
}

// DrawImage is not supported by the HTTP panel driver: image decoding is
// out of scope, so this always reports ErrNotSupported rather than failing
// the frame.
func (h *HTTP) DrawImage(path string, x, y, w, hgt int, alpha uint8) error {
	return device.ErrNotSupported{Op: "DrawImage"}
}

type pushPayload struct {
	Width  int        `json:"width"`
	Height int        `json:"height"`
	Pixels []uint8Tup `json:"pixels"`
}

type uint8Tup [4]uint8

// Push POSTs the current canvas to the panel endpoint, retrying transient
// failures up to maxRetries times (SetRetry semantics of an
// HTTPDriver-style contract). The request carries no generation tag:
// gating is the scheduler's responsibility, not the driver's.
func (h *HTTP) Push() error {
	h.mu.Lock()
	body := encodeCanvas(h.canvas)
	h.mu.Unlock()

	var lastErr error
	attempts := h.maxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			time.Sleep(h.retryWait)
		}
		if err := h.doPush(body); err != nil {
			lastErr = err
			continue
		}
		h.mu.Lock()
		h.metrics.Pushes++
		h.mu.Unlock()
		return nil
	}
	h.mu.Lock()
	h.metrics.Errors++
	h.mu.Unlock()
	return pixelerr.PushError(lastErr)
}

func (h *HTTP) doPush(body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.httpClient.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &httpStatusError{status: resp.StatusCode}
	}
	return nil
}

func encodeCanvas(c *device.Canvas) []byte {
	payload := pushPayload{Width: c.Width, Height: c.Height}
	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			p := c.Pixel(x, y)
			payload.Pixels = append(payload.Pixels, uint8Tup(p))
		}
	}
	data, _ := json.Marshal(payload)
	return data
}

// IsReady delegates to whether the endpoint is configured; real readiness
// (network reachability) is only definitively known via Push's ACK.
func (h *HTTP) IsReady() bool {
	return h.endpoint != ""
}

func (h *HTTP) GetMetrics() device.Metrics {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.metrics
}

func (h *HTTP) SetBrightness(level int) bool {
	// Brightness is panel-firmware specific wire behavior and out of scope
	// here; report unsupported rather than guessing a protocol.
	return false
}

// Reset clears the locally held canvas. The panel's own reset behavior (if
// any) is firmware-specific and not modeled here; this is the best-effort
// fallback every driver must provide.
func (h *HTTP) Reset() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.canvas.Clear()
	return nil
}

type httpStatusError struct{ status int }

func (e *httpStatusError) Error() string {
	return "panel endpoint returned non-2xx status"
}
