package revocation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facecards/pkg/platform/sentinel"
)

func TestInMemoryList(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	list := NewInMemoryList(WithMemoryClock(func() time.Time { return now }))

	revoked, err := list.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, list.RevokeToken(ctx, "jti-1", time.Hour))
	revoked, err = list.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	now = now.Add(2 * time.Hour)
	revoked, err = list.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked, "revocation lapses with the session")

	require.NoError(t, list.RevokeToken(ctx, "jti-2", time.Hour))
	list.mu.RLock()
	_, stale := list.revoked["jti-1"]
	list.mu.RUnlock()
	assert.False(t, stale, "expired entries are pruned on write")
}

func TestInMemoryListRejectsNonPositiveTTL(t *testing.T) {
	err := NewInMemoryList().RevokeToken(context.Background(), "jti", 0)
	assert.True(t, errors.Is(err, sentinel.ErrInvalidState))
}

func TestEmptyJTIIsNeverRevoked(t *testing.T) {
	ctx := context.Background()
	list := NewInMemoryList()
	require.NoError(t, list.RevokeToken(ctx, "", time.Hour))
	revoked, err := list.IsTokenRevoked(ctx, "")
	require.NoError(t, err)
	assert.False(t, revoked)
}
