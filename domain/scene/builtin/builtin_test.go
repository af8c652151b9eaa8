package builtin

import (
	"testing"

	"github.com/R3E-Network/pixeldaemon/domain/scene"
)

// fakeDevice records drawing calls without touching any real hardware.
type fakeDevice struct {
	cleared    bool
	filled     []int
	numbers    []int
	brightness int
}

func (d *fakeDevice) Clear() error { d.cleared = true; return nil }
func (d *fakeDevice) DrawPixel(x, y int, rgba [4]uint8) error { return nil }
func (d *fakeDevice) DrawLine(ax, ay, bx, by int, rgba [4]uint8) error { return nil }
func (d *fakeDevice) DrawRect(x, y, w, h int, rgba [4]uint8) error { return nil }
func (d *fakeDevice) FillRect(x, y, w, h int, rgba [4]uint8) error {
	d.filled = append(d.filled, x, y, w, h)
	return nil
}
func (d *fakeDevice) DrawText(text string, x, y int, rgba [4]uint8, align string) error { return nil }
func (d *fakeDevice) DrawNumber(value, x, y int, rgba [4]uint8, align string, maxDigits int) error {
	d.numbers = append(d.numbers, value)
	return nil
}
func (d *fakeDevice) DrawImage(path string, x, y, w, h int, alpha uint8) error { return nil }
func (d *fakeDevice) SetBrightness(level int) bool { d.brightness = level; return true }

func TestProvidersRegisterCleanly(t *testing.T) {
	r := scene.NewRegistry()
	scene.RegisterAll(r, Providers(), nil)
	for _, name := range []string{"blank", "solid-color", "counter"} {
		if !r.Has(name) {
			t.Fatalf("expected builtin scene %q to register, got %v", name, r.Names())
		}
	}
}

func TestBlankClearsOnRender(t *testing.T) {
	s := newBlank()
	dev := &fakeDevice{}
	ctx := scene.NewFrameContext(dev, scene.Env{Width: 64, Height: 64}, nil, "info", nil)
	res := s.Render(ctx)
	if !dev.cleared {
		t.Fatal("expected blank scene to clear the device")
	}
	if res.Stop {
		t.Fatal("blank scene should never signal stop")
	}
	if res.DelayMs != 1000 {
		t.Fatalf("expected 1000ms delay, got %d", res.DelayMs)
	}
}

func TestSolidColorUsesPayloadOnInit(t *testing.T) {
	s := newSolidColor()
	dev := &fakeDevice{}
	scratch := make(map[string]any)
	ctx := scene.NewFrameContext(dev, scene.Env{Width: 64, Height: 64}, scratch, "info", nil)
	ctx.Payload = map[string]any{"r": float64(10), "g": float64(20), "b": float64(30)}

	if err := s.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	s.Render(ctx)

	if len(dev.filled) != 4 {
		t.Fatalf("expected one FillRect call recording 4 ints, got %v", dev.filled)
	}
	if dev.filled[2] != 64 || dev.filled[3] != 64 {
		t.Fatalf("expected full-panel fill, got %v", dev.filled)
	}
}

func TestSolidColorDefaultsWithoutPayload(t *testing.T) {
	s := newSolidColor()
	dev := &fakeDevice{}
	scratch := make(map[string]any)
	ctx := scene.NewFrameContext(dev, scene.Env{Width: 8, Height: 8}, scratch, "info", nil)

	if err := s.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	s.Render(ctx)
	if len(dev.filled) != 4 {
		t.Fatalf("expected a fill even without a payload, got %v", dev.filled)
	}
}

func TestCounterIncrementsAcrossRenders(t *testing.T) {
	s := newCounter()
	dev := &fakeDevice{}
	scratch := make(map[string]any)
	ctx := scene.NewFrameContext(dev, scene.Env{Width: 32, Height: 8}, scratch, "info", nil)

	if err := s.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	s.Render(ctx)
	s.Render(ctx)
	s.Render(ctx)

	if len(dev.numbers) != 3 {
		t.Fatalf("expected 3 DrawNumber calls, got %d", len(dev.numbers))
	}
	if dev.numbers[0] != 1 || dev.numbers[1] != 2 || dev.numbers[2] != 3 {
		t.Fatalf("expected counter to increment 1,2,3 got %v", dev.numbers)
	}
}

func TestCounterWantsLoop(t *testing.T) {
	if !newCounter().WantsLoop {
		t.Fatal("counter scene should set WantsLoop")
	}
}
