package state

import (
	"sync"

	"github.com/thinhng24/CollabSphere-sub001/internal/bus"
)

// Store serializes reducer dispatch over the current snapshot. One action is
// fully applied before the next is considered, so readers never observe a
// torn state. Each applied action publishes "state.changed" on the bus with
// the action name as payload.
type Store struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewStore creates a store holding the initial snapshot. The bus may be nil
// in tests.
func NewStore(b *bus.Bus) *Store {
	return &Store{
		current: NewState(),
		bus:     b,
	}
}

// Snapshot returns the current immutable snapshot.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Dispatch applies an action through the reducer.
func (s *Store) Dispatch(a Action) {
	s.mu.Lock()
	s.current = Reduce(s.current, a)
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(bus.Event{
			Kind:    "state.changed",
			Payload: a.actionName(),
		})
	}
}

// Reset discards everything and returns to the initial snapshot (logout).
func (s *Store) Reset() {
	s.mu.Lock()
	s.current = NewState()
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(bus.Event{Kind: "state.changed", Payload: "reset"})
	}
}
