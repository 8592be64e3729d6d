// Package revocation records admin sessions ended by logout until their
// tokens would have expired anyway.
package revocation

import (
	"context"
	"sync"
	"time"
)

// InMemoryList keeps revoked jtis in a map. Entries past their expiry are
// pruned on write.
type InMemoryList struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
	clock   Clock
}

// InMemoryOption configures an InMemoryList.
type InMemoryOption func(*InMemoryList)

// WithMemoryClock sets the clock used for expiry checks.
func WithMemoryClock(clock Clock) InMemoryOption {
	return func(l *InMemoryList) {
		if clock != nil {
			l.clock = clock
		}
	}
}

func NewInMemoryList(opts ...InMemoryOption) *InMemoryList {
	l := &InMemoryList{
		revoked: make(map[string]time.Time),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RevokeToken marks jti revoked for ttl.
func (l *InMemoryList) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, exp := range l.revoked {
		if now.After(exp) {
			delete(l.revoked, k)
		}
	}
	l.revoked[jti] = now.Add(ttl)
	return nil
}

// IsTokenRevoked reports whether jti is revoked and not yet expired.
func (l *InMemoryList) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	l.mu.RLock()
	exp, ok := l.revoked[jti]
	l.mu.RUnlock()
	return ok && !l.clock().After(exp), nil
}
