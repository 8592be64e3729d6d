package store

import (
	"context"
	"sync"
	"time"

	"facecards/internal/refresh/preview/models"
	"facecards/pkg/platform/sentinel"
)

// InMemoryStore keeps pending previews in a map.
type InMemoryStore struct {
	mu       sync.RWMutex
	previews map[string]*models.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{previews: make(map[string]*models.Record)}
}

// Clone deep-copies the store for a memory transaction.
func (s *InMemoryStore) Clone() *InMemoryStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := &InMemoryStore{previews: make(map[string]*models.Record, len(s.previews))}
	for id, r := range s.previews {
		c.previews[id] = r.Clone()
	}
	return c
}

// ReplaceWith adopts the state of a committed clone.
func (s *InMemoryStore) ReplaceWith(other *InMemoryStore) {
	other.mu.RLock()
	previews := other.previews
	other.mu.RUnlock()

	s.mu.Lock()
	s.previews = previews
	s.mu.Unlock()
}

func (s *InMemoryStore) Save(_ context.Context, r *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.previews[r.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.previews[r.ID] = r.Clone()
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.previews[id]; ok {
		return r.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

// Take removes and returns the record; a second Take of the same id fails.
func (s *InMemoryStore) Take(_ context.Context, id string) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.previews[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	delete(s.previews, id)
	return r, nil
}

func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.previews, id)
	return nil
}

func (s *InMemoryStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for id, r := range s.previews {
		if r.IsExpired(now) {
			delete(s.previews, id)
			purged++
		}
	}
	return purged, nil
}
