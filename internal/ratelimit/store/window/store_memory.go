// Package window stores fixed-window attempt counters.
package window

import (
	"context"
	"sync"
	"time"

	"facecards/internal/ratelimit/models"
)

// InMemoryStore keeps counters in a map. It is per-process and suits a
// single instance or tests; use RedisStore when instances share limits.
type InMemoryStore struct {
	mu      sync.Mutex
	windows map[string]models.Window
	clock   func() time.Time
}

// Option configures an InMemoryStore.
type Option func(*InMemoryStore)

// WithClock sets the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *InMemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewInMemoryStore(opts ...Option) *InMemoryStore {
	s := &InMemoryStore{
		windows: make(map[string]models.Window),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Increment counts one attempt for key. A missing or lapsed window starts a
// new one at the current time.
func (s *InMemoryStore) Increment(_ context.Context, key string, window time.Duration) (models.Window, error) {
	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || !now.Before(w.WindowStart.Add(window)) {
		w = models.Window{WindowStart: now}
	}
	w.Count++
	s.windows[key] = w
	return w, nil
}

// Reset forgets the counter for key.
func (s *InMemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}
