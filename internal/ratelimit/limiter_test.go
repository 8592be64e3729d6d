package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facecards/internal/ratelimit/models"
	"facecards/internal/ratelimit/store/window"

	dErrors "facecards/pkg/domain-errors"
)

type failingStore struct{}

func (failingStore) Increment(context.Context, string, time.Duration) (models.Window, error) {
	return models.Window{}, errors.New("connection refused")
}

func (failingStore) Reset(context.Context, string) error { return errors.New("connection refused") }

func TestLimiterAllowsFiveAttemptsPerWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter, err := New(window.NewInMemoryStore(window.WithClock(func() time.Time { return now })), 5, 15*time.Minute)
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		res, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "attempt %d", i)
		assert.Equal(t, 5-i, res.Remaining)
	}

	res, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, now.Add(15*time.Minute), res.ResetAt)
	assert.Equal(t, 15*time.Minute, res.RetryAfter(now))

	now = now.Add(15 * time.Minute)
	res, err = limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed, "a new window starts after the old one lapses")
}

func TestLimiterReset(t *testing.T) {
	ctx := context.Background()
	limiter, err := New(window.NewInMemoryStore(), 1, time.Minute)
	require.NoError(t, err)

	res, err := limiter.Allow(ctx, "k")
	require.NoError(t, err)
	require.True(t, res.Allowed)
	res, err = limiter.Allow(ctx, "k")
	require.NoError(t, err)
	require.False(t, res.Allowed)

	require.NoError(t, limiter.Reset(ctx, "k"))
	res, err = limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLimiterStoreFailure(t *testing.T) {
	limiter, err := New(failingStore{}, 5, time.Minute)
	require.NoError(t, err)

	_, err = limiter.Allow(context.Background(), "k")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	assert.True(t, dErrors.HasCode(limiter.Reset(context.Background(), "k"), dErrors.CodeInternal))
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, 5, time.Minute)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
	_, err = New(window.NewInMemoryStore(), 0, time.Minute)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
}
