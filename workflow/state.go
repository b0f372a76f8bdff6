package workflow

import "sync"

// View is read access to workflow state. The orchestrator reads the
// authoritative *State directly; bungee workers read a *Telescope, a
// private view of shared state with per-worker overrides layered on
// top. Writes always go through Actions.UpdateState so that merges
// stay atomic.
type View interface {
	// Get retrieves a value.
	Get(key string) (any, bool)

	// GetString retrieves a string value. Returns "" if not found or
	// not a string.
	GetString(key string) string

	// Snapshot returns a copy of all visible keys.
	Snapshot() map[string]any
}

// State is the single shared mutable map passed through a workflow
// run. It is safe for concurrent use; each merge is one atomic
// operation. Two workers writing the same key race, and the merge is
// last-write-wins: the state ends up holding exactly one of the
// written values, never a mix.
type State struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewState creates a new empty state.
func NewState() *State {
	return &State{data: make(map[string]any)}
}

// NewStateFrom creates state from an existing map.
func NewStateFrom(data map[string]any) *State {
	s := NewState()
	for k, v := range data {
		s.data[k] = v
	}
	return s
}

// Get retrieves a value from state.
func (s *State) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// GetString retrieves a string value. Returns empty string if not found or not a string.
func (s *State) GetString(key string) string {
	v, ok := s.Get(key)
	if !ok {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return ""
}

// GetInt retrieves an int value. Returns 0 if not found or not an int.
func (s *State) GetInt(key string) int {
	v, ok := s.Get(key)
	if !ok {
		return 0
	}
	if i, ok := v.(int); ok {
		return i
	}
	return 0
}

// Set stores a value in state.
func (s *State) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Delete removes a key from state.
func (s *State) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Has returns true if the key exists in state.
func (s *State) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok
}

// Keys returns all state keys.
func (s *State) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// Merge shallow-merges values into state as one atomic operation.
// Later merges overwrite earlier ones for the same key.
func (s *State) Merge(values map[string]any) {
	if len(values) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.data[k] = v
	}
}

// Snapshot returns a shallow copy of the state map.
func (s *State) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Len returns the number of keys in state.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Telescope returns a worker's private view: shared state with the
// given overrides layered on top. Reads check overrides first; the
// overrides never propagate back to the shared state by themselves.
func (s *State) Telescope(overrides map[string]any) *Telescope {
	return &Telescope{base: s, overrides: overrides}
}

// Telescope is a read-only override view of shared state handed to
// bungee workers.
type Telescope struct {
	base      *State
	overrides map[string]any
}

// Get retrieves a value, checking overrides before shared state.
func (t *Telescope) Get(key string) (any, bool) {
	if v, ok := t.overrides[key]; ok {
		return v, true
	}
	return t.base.Get(key)
}

// GetString retrieves a string value. Returns empty string if not found or not a string.
func (t *Telescope) GetString(key string) string {
	v, ok := t.Get(key)
	if !ok {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return ""
}

// Snapshot returns shared state with overrides applied.
func (t *Telescope) Snapshot() map[string]any {
	out := t.base.Snapshot()
	for k, v := range t.overrides {
		out[k] = v
	}
	return out
}

var (
	_ View = (*State)(nil)
	_ View = (*Telescope)(nil)
)

// errorKey is the side-channel state key recording a step's last error.
func errorKey(stepID string) string { return stepID + "_error" }

// retryKey is the side-channel state key counting a step's attempts.
func retryKey(stepID string) string { return stepID + "_retryCount" }
