package device

import "fmt"

// Canvas is a simple RGBA framebuffer shared by every driver family. Drivers
// differ only in how they flush a canvas (push) and report liveness; the
// drawing primitives themselves are identical across backends.
type Canvas struct {
	Width, Height int
	pixels        []RGBA
}

// NewCanvas allocates a cleared width x height canvas.
func NewCanvas(width, height int) *Canvas {
	return &Canvas{Width: width, Height: height, pixels: make([]RGBA, width*height)}
}

// Clear resets every pixel to transparent black.
func (c *Canvas) Clear() {
	for i := range c.pixels {
		c.pixels[i] = RGBA{}
	}
}

func (c *Canvas) inBounds(x, y int) bool {
	return x >= 0 && x < c.Width && y >= 0 && y < c.Height
}

// SetPixel writes one pixel, silently clipping out-of-bounds writes.
func (c *Canvas) SetPixel(x, y int, col RGBA) {
	if !c.inBounds(x, y) {
		return
	}
	c.pixels[y*c.Width+x] = col
}

// Pixel reads one pixel; returns zero value out-of-bounds.
func (c *Canvas) Pixel(x, y int) RGBA {
	if !c.inBounds(x, y) {
		return RGBA{}
	}
	return c.pixels[y*c.Width+x]
}

// DrawLine draws a line with Bresenham's algorithm.
func (c *Canvas) DrawLine(ax, ay, bx, by int, col RGBA) {
	dx := abs(bx - ax)
	dy := -abs(by - ay)
	sx, sy := sign(bx-ax), sign(by-ay)
	err := dx + dy
	x, y := ax, ay
	for {
		c.SetPixel(x, y, col)
		if x == bx && y == by {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

// DrawRect draws an unfilled rectangle outline.
func (c *Canvas) DrawRect(x, y, w, h int, col RGBA) {
	c.DrawLine(x, y, x+w-1, y, col)
	c.DrawLine(x, y+h-1, x+w-1, y+h-1, col)
	c.DrawLine(x, y, x, y+h-1, col)
	c.DrawLine(x+w-1, y, x+w-1, y+h-1, col)
}

// FillRect draws a solid rectangle.
func (c *Canvas) FillRect(x, y, w, h int, col RGBA) {
	for row := y; row < y+h; row++ {
		for col2 := x; col2 < x+w; col2++ {
			c.SetPixel(col2, row, col)
		}
	}
}

// glyphWidth is the fixed advance width of one character cell: a filled 3x5
// block plus one column of spacing.
const glyphWidth = 4

// DrawText draws text left/center/right-aligned using a minimal blocky font:
// every printable character renders as a single filled cell, which is
// sufficient for the small panels this daemon targets and keeps the driver
// free of font-file dependencies.
func (c *Canvas) DrawText(text string, x, y int, col RGBA, align Align) {
	width := len(text) * glyphWidth
	x = alignedX(x, width, align)
	for i, ch := range text {
		if ch == ' ' {
			continue
		}
		c.FillRect(x+i*glyphWidth, y, glyphWidth-1, 5, col)
	}
}

// DrawNumber formats value with optional left-padding to maxDigits and draws
// it as text.
func (c *Canvas) DrawNumber(value, x, y int, col RGBA, align Align, maxDigits int) {
	text := fmt.Sprintf("%d", value)
	if maxDigits > 0 && len(text) < maxDigits {
		text = fmt.Sprintf("%0*d", maxDigits, value)
	}
	c.DrawText(text, x, y, col, align)
}

func alignedX(x, width int, align Align) int {
	switch align {
	case AlignCenter:
		return x - width/2
	case AlignRight:
		return x - width
	default:
		return x
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
