//go:build integration

package revocation_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"facecards/internal/auth/store/revocation"
	"facecards/pkg/testutil/containers"
)

type RevocationSuite struct {
	suite.Suite
	redis    *containers.RedisContainer
	postgres *containers.PostgresContainer
}

func TestRevocationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RevocationSuite))
}

func (s *RevocationSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.postgres = mgr.GetPostgres(s.T())
}

func (s *RevocationSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	_, err := s.postgres.DB.Exec(`DELETE FROM session_revocations`)
	s.Require().NoError(err)
}

func (s *RevocationSuite) TestRedisMarkerExpires() {
	ctx := context.Background()
	list := revocation.NewRedisList(s.redis.Client)
	jti := uuid.NewString()

	s.Require().NoError(list.RevokeToken(ctx, jti, 500*time.Millisecond))
	revoked, err := list.IsTokenRevoked(ctx, jti)
	s.Require().NoError(err)
	s.True(revoked)

	s.Eventually(func() bool {
		revoked, err := list.IsTokenRevoked(ctx, jti)
		return err == nil && !revoked
	}, 5*time.Second, 100*time.Millisecond)
}

func (s *RevocationSuite) TestPostgresHonoursExpiry() {
	ctx := context.Background()
	now := time.Now()
	list := revocation.NewPostgresList(s.postgres.DB, revocation.WithPostgresClock(func() time.Time { return now }))
	jti := uuid.NewString()

	s.Require().NoError(list.RevokeToken(ctx, jti, time.Hour))
	revoked, err := list.IsTokenRevoked(ctx, jti)
	s.Require().NoError(err)
	s.True(revoked)

	now = now.Add(2 * time.Hour)
	revoked, err = list.IsTokenRevoked(ctx, jti)
	s.Require().NoError(err)
	s.False(revoked)
}
