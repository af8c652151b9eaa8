package scene

import (
	"sort"
	"sync"

	"github.com/R3E-Network/pixeldaemon/internal/pixelerr"
)

// Registry holds loaded scenes keyed by name. It is safe for concurrent
// use; no entries are removed at runtime — scene reloading is out of
// scope.
type Registry struct {
	mu     sync.RWMutex
	scenes map[string]Scene
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{scenes: make(map[string]Scene)}
}

// Register adds a scene under its Name. Fails with DuplicateName if the
// name is already registered, or InvalidScene if Render is missing.
func (r *Registry) Register(s Scene) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.scenes[s.Name]; exists {
		return pixelerr.DuplicateName(s.Name)
	}
	r.scenes[s.Name] = s
	return nil
}

// Get looks up a scene by name.
func (r *Registry) Get(name string) (Scene, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scenes[name]
	if !ok {
		return Scene{}, pixelerr.UnknownScene(name)
	}
	return s, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.scenes[name]
	return ok
}

// Metadata is the listing shape returned by List.
type Metadata struct {
	Name        string
	Description string
	Category    string
	IsExample   bool
}

// List returns scene metadata sorted by name.
func (r *Registry) List() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Metadata, 0, len(r.scenes))
	for _, s := range r.scenes {
		out = append(out, Metadata{
			Name:        s.Name,
			Description: s.Description,
			Category:    s.Category,
			IsExample:   s.IsExample,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the registered scene names, sorted.
func (r *Registry) Names() []string {
	meta := r.List()
	names := make([]string, len(meta))
	for i, m := range meta {
		names[i] = m.Name
	}
	return names
}
