package fswatch

import (
	"sync"
)

// IgnoreState is the suppression state of a single path.
type IgnoreState int

const (
	// Normal paths have their events delivered.
	Normal IgnoreState = iota

	// ActiveIgnore paths are being written by the sync engine right now.
	ActiveIgnore

	// InactiveIgnore paths were written recently. The OS may still deliver
	// events for the finished write, so they stay suppressed until the end of
	// the next batch.
	InactiveIgnore
)

func (s IgnoreState) String() string {
	switch s {
	case Normal:
		return "normal"
	case ActiveIgnore:
		return "active"
	case InactiveIgnore:
		return "inactive"
	default:
		return "unknown"
	}
}

// IgnoreSet tracks the paths whose filesystem events must not be re-broadcast.
// It's written by the network handlers and drained by the watcher, so all
// methods are safe for concurrent use.
type IgnoreSet struct {
	lock    sync.Mutex
	entries map[string]IgnoreState
}

// NewIgnoreSet returns an empty IgnoreSet.
func NewIgnoreSet() *IgnoreSet {
	return &IgnoreSet{entries: map[string]IgnoreState{}}
}

// Add marks `path` as actively ignored. It should be called before the
// engine modifies the path.
func (s *IgnoreSet) Add(path string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.entries[path] = ActiveIgnore
}

// Remove moves `path` to the inactive state. It never goes straight back to
// Normal.
func (s *IgnoreSet) Remove(path string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.entries[path] = InactiveIgnore
}

// State returns the current state of `path`.
func (s *IgnoreSet) State(path string) IgnoreState {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.entries[path]
}

// Suppressed returns whether events for `path` should be dropped.
func (s *IgnoreSet) Suppressed(path string) bool {
	return s.State(path) != Normal
}

// ResetInactive returns every inactive path to Normal. Actively ignored paths
// are untouched.
func (s *IgnoreSet) ResetInactive() {
	s.lock.Lock()
	defer s.lock.Unlock()
	for path, state := range s.entries {
		if state == InactiveIgnore {
			delete(s.entries, path)
		}
	}
}
