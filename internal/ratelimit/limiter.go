// Package ratelimit caps attempts per key in fixed windows.
package ratelimit

import (
	"context"
	"time"

	"facecards/internal/ratelimit/models"

	dErrors "facecards/pkg/domain-errors"
)

// Store holds one counter per key.
type Store interface {
	Increment(ctx context.Context, key string, window time.Duration) (models.Window, error)
	Reset(ctx context.Context, key string) error
}

// Limiter allows limit attempts per key within each window.
type Limiter struct {
	store  Store
	limit  int
	window time.Duration
}

func New(store Store, limit int, window time.Duration) (*Limiter, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "rate limit store is required")
	}
	if limit < 1 || window <= 0 {
		return nil, dErrors.New(dErrors.CodeConfiguration, "rate limit must be positive")
	}
	return &Limiter{store: store, limit: limit, window: window}, nil
}

// Allow counts one attempt for key. Attempts past the limit are counted too,
// so hammering a blocked key does not shorten the wait.
func (l *Limiter) Allow(ctx context.Context, key string) (*models.Result, error) {
	w, err := l.store.Increment(ctx, key, l.window)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check rate limit")
	}
	remaining := l.limit - w.Count
	if remaining < 0 {
		remaining = 0
	}
	return &models.Result{
		Allowed:   w.Count <= l.limit,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   w.WindowStart.Add(l.window),
	}, nil
}

// Reset clears key, e.g. after a successful login.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if err := l.store.Reset(ctx, key); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset rate limit")
	}
	return nil
}
