package store

import (
	"context"
	"sync"

	"facecards/internal/audit"
)

// InMemoryStore keeps events in append order.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Clone copies the store for a memory transaction.
func (s *InMemoryStore) Clone() *InMemoryStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &InMemoryStore{events: append([]audit.Event(nil), s.events...)}
}

// ReplaceWith adopts the state of a committed clone.
func (s *InMemoryStore) ReplaceWith(other *InMemoryStore) {
	other.mu.RLock()
	events := other.events
	other.mu.RUnlock()

	s.mu.Lock()
	s.events = events
	s.mu.Unlock()
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ListAll returns every event in append order.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events...), nil
}
