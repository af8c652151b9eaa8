// Package statestore holds the scratchpad (keyed by host+scene) and the
// per-device runtime state (keyed by host).
package statestore

import "sync"

// Status is a device's lifecycle status in the device state machine.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusSwitching Status = "switching"
	StatusRunning   Status = "running"
	StatusStopping  Status = "stopping"
	StatusStopped   Status = "stopped"
	StatusError     Status = "error"
)

// PlayState controls whether the scheduler pushes the frames it renders:
// Render is still called while paused, and only the push is skipped.
type PlayState string

const (
	PlayPlaying PlayState = "playing"
	PlayPaused  PlayState = "paused"
	PlayStopped PlayState = "stopped"
)

// LoggingLevel filters scene ctx.Log() calls.
type LoggingLevel string

const (
	LogDebug   LoggingLevel = "debug"
	LogInfo    LoggingLevel = "info"
	LogWarning LoggingLevel = "warning"
	LogError   LoggingLevel = "error"
	LogSilent  LoggingLevel = "silent"
)

// RuntimeState is the per-device state machine value owned by the Scene
// Manager / Scheduler.
type RuntimeState struct {
	Host          string
	CurrentScene  string
	TargetScene   string
	Status        Status
	PlayState     PlayState
	GenerationID  uint64
	StartedAtMs   int64
	FramesPushed  int64
	LoggingLevel  LoggingLevel
	DefaultScene  string
}

// Store owns both scratchpads (per host+scene) and runtime state (per host).
// One coarse sync.Mutex guards every host's entries, since device counts
// are small and updates infrequent relative to per-frame drawing (which
// never touches the store).
type Store struct {
	mu          sync.Mutex
	scratchpads map[scratchKey]map[string]any
	runtime     map[string]*RuntimeState
}

type scratchKey struct {
	host  string
	scene string
}

// New builds an empty Store.
func New() *Store {
	return &Store{
		scratchpads: make(map[scratchKey]map[string]any),
		runtime:     make(map[string]*RuntimeState),
	}
}

// Scratchpad returns the live scratchpad map for (host, scene), creating it
// if absent. Callers must not retain it across a ResetScratchpad call.
func (s *Store) Scratchpad(host, scene string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scratchpadLocked(host, scene)
}

func (s *Store) scratchpadLocked(host, scene string) map[string]any {
	key := scratchKey{host: host, scene: scene}
	sp, ok := s.scratchpads[key]
	if !ok {
		sp = make(map[string]any)
		s.scratchpads[key] = sp
	}
	return sp
}

// ResetScratchpad clears (host, scene)'s scratchpad to empty: entering a
// scene resets that scene's scratchpad before init runs.
func (s *Store) ResetScratchpad(host, scene string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scratchpads[scratchKey{host: host, scene: scene}] = make(map[string]any)
}

// RuntimeFor returns the RuntimeState for host, creating a default idle
// entry if absent. The returned pointer is only safe to read/mutate while
// holding no other Store call concurrently for the same host — callers
// (Scheduler, Scene Manager) are each the sole writer for their host.
func (s *Store) RuntimeFor(host string) *RuntimeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runtimeLocked(host)
}

func (s *Store) runtimeLocked(host string) *RuntimeState {
	rs, ok := s.runtime[host]
	if !ok {
		rs = &RuntimeState{
			Host:      host,
			Status:    StatusIdle,
			PlayState: PlayStopped,
		}
		s.runtime[host] = rs
	}
	return rs
}

// Snapshot returns a value-copy of host's runtime state.
func (s *Store) Snapshot(host string) RuntimeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.runtimeLocked(host)
}

// Mutate applies fn to host's RuntimeState under the store lock and returns
// the resulting value-copy. This is the only way callers should update
// runtime state, so reads and writes never interleave torn fields.
func (s *Store) Mutate(host string, fn func(rs *RuntimeState)) RuntimeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs := s.runtimeLocked(host)
	fn(rs)
	return *rs
}

// Hosts returns all hosts with an initialized runtime entry.
func (s *Store) Hosts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	hosts := make([]string, 0, len(s.runtime))
	for h := range s.runtime {
		hosts = append(hosts, h)
	}
	return hosts
}
