package window

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewInMemoryStore(WithClock(func() time.Time { return now }))

	t.Run("counts within the window", func(t *testing.T) {
		for i := 1; i <= 3; i++ {
			w, err := store.Increment(ctx, "ip:10.0.0.1", 15*time.Minute)
			require.NoError(t, err)
			assert.Equal(t, i, w.Count)
			assert.Equal(t, now, w.WindowStart)
		}
	})

	t.Run("keys are independent", func(t *testing.T) {
		w, err := store.Increment(ctx, "ip:10.0.0.2", 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 1, w.Count)
	})

	t.Run("a lapsed window restarts", func(t *testing.T) {
		start := now
		now = now.Add(15 * time.Minute)
		w, err := store.Increment(ctx, "ip:10.0.0.1", 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 1, w.Count)
		assert.True(t, w.WindowStart.After(start))
	})

	t.Run("reset forgets the key", func(t *testing.T) {
		require.NoError(t, store.Reset(ctx, "ip:10.0.0.1"))
		w, err := store.Increment(ctx, "ip:10.0.0.1", 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 1, w.Count)
	})
}
