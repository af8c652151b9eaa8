// Package builtin ships the daemon's example/dev scenes, flagged via
// IsExample in registry listings: a handful of trivial scenes that exercise
// the Scene contract end to end without depending on external asset files.
package builtin

import (
	"github.com/R3E-Network/pixeldaemon/domain/scene"
)

// Providers returns every built-in scene's Provider, ready to hand to
// scene.RegisterAll.
func Providers() []scene.Provider {
	return []scene.Provider{
		{SourceHint: "blank.go", Build: newBlank},
		{SourceHint: "empty.go", Build: newEmpty},
		{SourceHint: "solid_color.go", Build: newSolidColor},
		{SourceHint: "counter.go", Build: newCounter},
	}
}

// newBlank clears the panel and holds, a minimal smoke-test scene.
func newBlank() scene.Scene {
	return scene.Scene{
		Name:        "blank",
		Description: "clears the panel and holds",
		Category:    "example",
		IsExample:   true,
		Render: func(ctx *scene.FrameContext) scene.RenderResult {
			if err := ctx.Device.Clear(); err != nil {
				ctx.Log(err.Error(), "error", nil)
			}
			return scene.Continue(1000)
		},
	}
}

// newEmpty is the router's fallback target when a state/upd carries no
// scene and the host has no default scene configured either.
func newEmpty() scene.Scene {
	return scene.Scene{
		Name:        "empty",
		Description: "fallback scene when no scene or default is resolved",
		Category:    "example",
		IsExample:   true,
		Render: func(ctx *scene.FrameContext) scene.RenderResult {
			if err := ctx.Device.Clear(); err != nil {
				ctx.Log(err.Error(), "error", nil)
			}
			return scene.Continue(1000)
		},
	}
}

// newSolidColor fills the panel with a fixed color read from Payload, or red
// by default, demonstrating Init-time payload handling.
func newSolidColor() scene.Scene {
	type state struct{ r, g, b uint8 }

	return scene.Scene{
		Name:        "solid-color",
		Description: "fills the panel with a single color",
		Category:    "example",
		IsExample:   true,
		Init: func(ctx *scene.FrameContext) error {
			st := state{r: 255}
			if m, ok := ctx.Payload.(map[string]any); ok {
				if r, ok := m["r"].(float64); ok {
					st.r = uint8(r)
				}
				if g, ok := m["g"].(float64); ok {
					st.g = uint8(g)
				}
				if b, ok := m["b"].(float64); ok {
					st.b = uint8(b)
				}
			}
			ctx.SetState("color", st)
			return nil
		},
		Render: func(ctx *scene.FrameContext) scene.RenderResult {
			st, _ := ctx.GetState("color", state{r: 255}).(state)
			c := [4]uint8{st.r, st.g, st.b, 255}
			if err := ctx.Device.FillRect(0, 0, ctx.Env.Width, ctx.Env.Height, c); err != nil {
				ctx.Log(err.Error(), "error", nil)
			}
			return scene.Continue(5000)
		},
	}
}

// newCounter draws an incrementing frame counter, exercising WantsLoop and
// scratchpad persistence across Render calls.
func newCounter() scene.Scene {
	return scene.Scene{
		Name:        "counter",
		Description: "draws an incrementing frame counter",
		Category:    "example",
		WantsLoop:   true,
		IsExample:   true,
		Init: func(ctx *scene.FrameContext) error {
			ctx.SetState("n", 0)
			return nil
		},
		Render: func(ctx *scene.FrameContext) scene.RenderResult {
			n, _ := ctx.GetState("n", 0).(int)
			n++
			ctx.SetState("n", n)

			if err := ctx.Device.Clear(); err != nil {
				ctx.Log(err.Error(), "error", nil)
				return scene.Continue(200)
			}
			white := [4]uint8{255, 255, 255, 255}
			if err := ctx.Device.DrawNumber(n, ctx.Env.Width/2, ctx.Env.Height/2, white, "center", 5); err != nil {
				ctx.Log(err.Error(), "error", nil)
			}
			return scene.Continue(200)
		},
	}
}
