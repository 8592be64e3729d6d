package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"facecards/internal/audit"
	auditstore "facecards/internal/audit/store"
	"facecards/internal/auth/store/revocation"
	jwttoken "facecards/internal/jwt_token"
	"facecards/internal/ratelimit"
	"facecards/internal/ratelimit/store/window"
	"facecards/pkg/requestcontext"

	dErrors "facecards/pkg/domain-errors"
)

// =============================================================================
// Auth Service Test Suite
// =============================================================================
// Exercises login against a real signer, limiter and revocation list on a
// fixed clock.

const (
	chromeUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	signKey  = "test-signing-key-0123456789"
)

type ServiceSuite struct {
	suite.Suite
	now         time.Time
	signer      *jwttoken.JWTService
	revocations *revocation.InMemoryList
	audit       *auditstore.InMemoryStore
	service     *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return s.now }

	var err error
	s.signer, err = jwttoken.NewJWTService(signKey, "facecards", jwttoken.WithClock(clock))
	s.Require().NoError(err)
	s.revocations = revocation.NewInMemoryList(revocation.WithMemoryClock(clock))
	s.audit = auditstore.NewInMemoryStore()
	s.service = s.newService(Credentials{Username: "admin", Password: "hunter2"})
}

func (s *ServiceSuite) newService(creds Credentials) *Service {
	limiter, err := ratelimit.New(window.NewInMemoryStore(window.WithClock(func() time.Time { return s.now })), 5, 15*time.Minute)
	s.Require().NoError(err)
	svc, err := New(creds, s.signer, s.revocations, limiter, s.audit,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)
	return svc
}

func (s *ServiceSuite) ctx(ip string) context.Context {
	ctx := requestcontext.WithClientMetadata(context.Background(), ip, chromeUA)
	return requestcontext.WithTime(ctx, s.now)
}

func (s *ServiceSuite) actions() []audit.Action {
	events, err := s.audit.ListAll(context.Background())
	s.Require().NoError(err)
	var out []audit.Action
	for _, e := range events {
		out = append(out, e.Action)
	}
	return out
}

func (s *ServiceSuite) TestLoginIssuesVerifiableSession() {
	session, err := s.service.Login(s.ctx("10.0.0.1"), "admin", "hunter2")
	s.Require().NoError(err)

	s.Equal("admin", session.Subject)
	s.Equal(s.now.Add(24*time.Hour), session.ExpiresAt)
	claims, err := s.signer.Verify(session.Token, jwttoken.TypeSession)
	s.Require().NoError(err)
	s.Equal(session.JTI, claims.ID)

	s.Equal([]audit.Action{audit.ActionAdminLogin}, s.actions())
	events, err := s.audit.ListAll(context.Background())
	s.Require().NoError(err)
	s.Contains(events[0].Details["device"], "Chrome")
	s.Equal("10.0.0.1", events[0].Details["ip"])
}

func (s *ServiceSuite) TestBadCredentials() {
	for name, creds := range map[string][2]string{
		"wrong password": {"admin", "nope"},
		"wrong username": {"root", "hunter2"},
	} {
		s.Run(name, func() {
			_, err := s.service.Login(s.ctx("10.0.0."+name[:1]), creds[0], creds[1])
			s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		})
	}
	s.Equal([]audit.Action{audit.ActionAdminLoginFailed, audit.ActionAdminLoginFailed}, s.actions())
}

func (s *ServiceSuite) TestBcryptHash() {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	s.Require().NoError(err)
	svc := s.newService(Credentials{Username: "admin", Password: "ignored", PasswordHash: string(hash)})

	_, err = svc.Login(s.ctx("10.0.0.1"), "admin", "correct horse")
	s.NoError(err)
	_, err = svc.Login(s.ctx("10.0.0.1"), "admin", "ignored")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized), "the hash wins over the plain password")
}

func (s *ServiceSuite) TestSixthAttemptIsRateLimited() {
	ctx := s.ctx("10.0.0.9")
	for range 5 {
		_, err := s.service.Login(ctx, "admin", "nope")
		s.Require().True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	}

	_, err := s.service.Login(ctx, "admin", "hunter2")
	s.True(dErrors.HasCode(err, dErrors.CodeTooManyRequests), "even correct credentials wait out the window")
	var limited *RateLimitedError
	s.Require().ErrorAs(err, &limited)
	s.Equal(15*time.Minute, limited.RetryAfter)

	_, err = s.service.Login(s.ctx("10.0.0.10"), "admin", "hunter2")
	s.NoError(err, "other clients are unaffected")
}

func (s *ServiceSuite) TestSuccessResetsCounter() {
	ctx := s.ctx("10.0.0.1")
	for range 4 {
		_, _ = s.service.Login(ctx, "admin", "nope")
	}
	_, err := s.service.Login(ctx, "admin", "hunter2")
	s.Require().NoError(err)

	for range 5 {
		_, err := s.service.Login(ctx, "admin", "nope")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	}
}

func (s *ServiceSuite) TestLogoutRevokesUntilExpiry() {
	session, err := s.service.Login(s.ctx("10.0.0.1"), "admin", "hunter2")
	s.Require().NoError(err)

	s.now = s.now.Add(time.Hour)
	s.Require().NoError(s.service.Logout(s.ctx("10.0.0.1"), session.Token))

	revoked, err := s.revocations.IsTokenRevoked(context.Background(), session.JTI)
	s.Require().NoError(err)
	s.True(revoked)
	s.Equal(audit.ActionAdminLogout, s.actions()[len(s.actions())-1])

	s.now = s.now.Add(23*time.Hour + time.Second)
	revoked, err = s.revocations.IsTokenRevoked(context.Background(), session.JTI)
	s.Require().NoError(err)
	s.False(revoked, "the entry lapses once the token could no longer verify")
}

func (s *ServiceSuite) TestLogoutWithUnusableTokenIsNoop() {
	s.NoError(s.service.Logout(s.ctx("10.0.0.1"), ""))
	s.NoError(s.service.Logout(s.ctx("10.0.0.1"), "garbage"))
	s.Empty(s.actions())
}

func (s *ServiceSuite) TestNewRequiresCredentials() {
	limiter, err := ratelimit.New(window.NewInMemoryStore(), 5, time.Minute)
	s.Require().NoError(err)
	_, err = New(Credentials{Username: "admin"}, s.signer, s.revocations, limiter, s.audit)
	s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
}
