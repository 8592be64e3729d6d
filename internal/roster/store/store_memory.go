package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"facecards/internal/roster/models"
	"facecards/pkg/platform/sentinel"
)

// InMemoryStore keeps leaders in a map. Records are copied on the way in and
// out so callers never alias stored state.
type InMemoryStore struct {
	mu      sync.RWMutex
	leaders map[string]*models.Leader
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{leaders: make(map[string]*models.Leader)}
}

// Clone deep-copies the store for a memory transaction.
func (s *InMemoryStore) Clone() *InMemoryStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := &InMemoryStore{leaders: make(map[string]*models.Leader, len(s.leaders))}
	for id, l := range s.leaders {
		c.leaders[id] = l.Clone()
	}
	return c
}

// ReplaceWith adopts the state of a committed clone.
func (s *InMemoryStore) ReplaceWith(other *InMemoryStore) {
	other.mu.RLock()
	leaders := other.leaders
	other.mu.RUnlock()

	s.mu.Lock()
	s.leaders = leaders
	s.mu.Unlock()
}

func (s *InMemoryStore) ListActive(ctx context.Context) ([]*models.Leader, error) {
	return s.List(ctx, models.ListFilter{})
}

func (s *InMemoryStore) List(_ context.Context, filter models.ListFilter) ([]*models.Leader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Leader, 0, len(s.leaders))
	for _, l := range s.leaders {
		if filter.Matches(l) {
			out = append(out, l.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return models.Less(out[i], out[j]) })
	return out, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (*models.Leader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.leaders[id]; ok {
		return l.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindActiveByTitle(_ context.Context, title string) (*models.Leader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *models.Leader
	for _, l := range s.leaders {
		if !l.IsActive() || !strings.EqualFold(strings.TrimSpace(l.Title), strings.TrimSpace(title)) {
			continue
		}
		if found == nil || l.CreatedAt.Before(found.CreatedAt) || (l.CreatedAt.Equal(found.CreatedAt) && l.ID < found.ID) {
			found = l
		}
	}
	if found == nil {
		return nil, sentinel.ErrNotFound
	}
	return found.Clone(), nil
}

func (s *InMemoryStore) Create(_ context.Context, leader *models.Leader) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.leaders[leader.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.leaders[leader.ID] = leader.Clone()
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, leader *models.Leader) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.leaders[leader.ID]; !exists {
		return sentinel.ErrNotFound
	}
	s.leaders[leader.ID] = leader.Clone()
	return nil
}

func (s *InMemoryStore) TouchVerified(_ context.Context, ids []string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	touched := 0
	for _, id := range ids {
		if l, ok := s.leaders[id]; ok {
			l.Touch(at)
			touched++
		}
	}
	return touched, nil
}
