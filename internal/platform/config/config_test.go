package config

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "facecards/pkg/domain-errors"
)

const testSecret = "0123456789abcdef0123"

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("ADMIN_SECRET", testSecret)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Server.Addr)
		assert.Equal(t, 10*time.Minute, cfg.Preview.TTL)
		assert.Equal(t, "roster.audit", cfg.Kafka.Topic)
		assert.Equal(t, "gpt-4o", cfg.Fetch.Model)
		assert.Equal(t, uint64(3), cfg.Fetch.MaxAttempts)
		assert.Equal(t, 5, cfg.Admin.LoginLimit)
		assert.Equal(t, 15*time.Minute, cfg.Admin.LoginWindow)
		assert.True(t, cfg.Database.URL.Empty())
	})

	t.Run("missing admin secret is a configuration error", func(t *testing.T) {
		t.Setenv("ADMIN_SECRET", "")

		_, err := Load()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
	})

	t.Run("short admin secret is rejected", func(t *testing.T) {
		t.Setenv("ADMIN_SECRET", "short")

		_, err := Load()
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
	})

	t.Run("preview ttl is capped", func(t *testing.T) {
		t.Setenv("ADMIN_SECRET", testSecret)
		t.Setenv("PREVIEW_TTL", "2h")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, MaxPreviewTTL, cfg.Preview.TTL)
	})

	t.Run("nested values read unprefixed names", func(t *testing.T) {
		t.Setenv("ADMIN_SECRET", testSecret)
		t.Setenv("DATABASE_URL", "postgres://localhost/facecards")
		t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "postgres://localhost/facecards", cfg.Database.URL.Value())
		assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	})

	t.Run("unknown log format", func(t *testing.T) {
		t.Setenv("ADMIN_SECRET", testSecret)
		t.Setenv("LOG_FORMAT", "xml")

		_, err := Load()
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
	})
}

func TestSecretRedacts(t *testing.T) {
	s := Secret("hunter2")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%#v", s))
	assert.Equal(t, "hunter2", s.Value())
}
