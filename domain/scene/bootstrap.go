package scene

import (
	"path/filepath"
	"strings"

	"github.com/R3E-Network/pixeldaemon/internal/pixellog"
)

// Provider produces a Scene at registration time. Concrete scene packages
// expose a Provider instead of a duck-typed export; this is the compile-time
// stand-in for the source project's dynamic directory walk: explicit
// registration via a Scene interface plus an explicit registry-population
// step, rather than scanning a directory at runtime.
type Provider struct {
	// SourceHint is typically the scene's source file basename; used to
	// derive a default Name when the Scene itself declares none.
	SourceHint string
	Build      func() Scene
}

// RegisterAll populates a Registry from a fixed list of Providers. Failures
// (a Build panic recovered, an invalid Scene, or a duplicate name) are
// logged and skipped — never fatal, matching the source project's
// directory-walk bootstrap.
func RegisterAll(r *Registry, providers []Provider, log *pixellog.Logger) {
	for _, p := range providers {
		s, ok := buildSafely(p, log)
		if !ok {
			continue
		}
		if s.Name == "" {
			s.Name = defaultName(p.SourceHint)
		}
		if err := r.Register(s); err != nil {
			if log != nil {
				log.WithField("scene", s.Name).WithField("error", err).Warn("skipping scene registration")
			}
			continue
		}
	}
}

func buildSafely(p Provider, log *pixellog.Logger) (s Scene, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			if log != nil {
				log.WithField("source", p.SourceHint).WithField("panic", r).Error("scene provider panicked")
			}
		}
	}()
	if p.Build == nil {
		return Scene{}, false
	}
	return p.Build(), true
}

// defaultName derives a registry key from a file basename, mirroring the
// source project's basename-derived fallback when a scene declares no name.
func defaultName(sourceHint string) string {
	base := filepath.Base(sourceHint)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ReplaceAll(base, "_", "-")
	return strings.ToLower(base)
}
