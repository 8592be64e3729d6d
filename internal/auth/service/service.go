// Package service authenticates the single admin account and manages its
// sessions.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"facecards/internal/audit"
	"facecards/internal/auth/device"
	"facecards/internal/auth/models"
	jwttoken "facecards/internal/jwt_token"
	ratelimitmodels "facecards/internal/ratelimit/models"
	"facecards/pkg/requestcontext"

	dErrors "facecards/pkg/domain-errors"
)

// TokenSigner signs and verifies session tokens.
type TokenSigner interface {
	Issue(tokenType, subject, ref string, ttl time.Duration) (string, *jwttoken.Claims, error)
	Verify(token, expectedType string) (*jwttoken.Claims, error)
}

// RevocationList records sessions ended by logout.
type RevocationList interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
}

// Limiter caps login attempts per client.
type Limiter interface {
	Allow(ctx context.Context, key string) (*ratelimitmodels.Result, error)
	Reset(ctx context.Context, key string) error
}

// Credentials identify the admin. PasswordHash is a bcrypt hash and wins
// over Password when both are set.
type Credentials struct {
	Username     string
	Password     string
	PasswordHash string
}

// RateLimitedError is returned with the wait until the client may retry.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string { return "too many login attempts" }

type Service struct {
	creds       Credentials
	signer      TokenSigner
	revocations RevocationList
	limiter     Limiter
	audit       *audit.Publisher
	logger      *slog.Logger
	sessionTTL  time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

func New(creds Credentials, signer TokenSigner, revocations RevocationList, limiter Limiter, auditStore audit.Store, opts ...Option) (*Service, error) {
	if creds.Username == "" || (creds.Password == "" && creds.PasswordHash == "") {
		return nil, dErrors.New(dErrors.CodeConfiguration, "admin credentials are not configured")
	}
	if signer == nil || revocations == nil || limiter == nil || auditStore == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "auth service dependencies are required")
	}
	s := &Service{
		creds:       creds,
		signer:      signer,
		revocations: revocations,
		limiter:     limiter,
		logger:      slog.Default(),
		sessionTTL:  24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.audit = audit.NewPublisher(auditStore, s.logger)
	return s, nil
}

// SessionTTL is the lifetime of issued sessions.
func (s *Service) SessionTTL() time.Duration {
	return s.sessionTTL
}

// Login checks the rate limit for the caller's IP, then the credentials.
// A success clears the IP's counter.
func (s *Service) Login(ctx context.Context, username, password string) (*models.Session, error) {
	ip := requestcontext.ClientIP(ctx)
	key := "login:" + ip

	res, err := s.limiter.Allow(ctx, key)
	if err != nil {
		return nil, err
	}
	if !res.Allowed {
		s.logger.WarnContext(ctx, "login rate limited",
			"request_id", requestcontext.RequestID(ctx),
			"ip", ip,
		)
		return nil, dErrors.Wrap(&RateLimitedError{RetryAfter: res.RetryAfter(requestcontext.Now(ctx))},
			dErrors.CodeTooManyRequests, "too many login attempts, try again later")
	}

	details := map[string]string{
		"ip":       ip,
		"device":   device.ParseUserAgent(requestcontext.UserAgent(ctx)),
		"username": username,
	}
	if !s.checkCredentials(username, password) {
		s.audit.Emit(ctx, audit.Event{Action: audit.ActionAdminLoginFailed, Subject: username, ActorID: "anonymous", Details: details})
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	if err := s.limiter.Reset(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "failed to reset login rate limit",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}

	token, claims, err := s.signer.Issue(jwttoken.TypeSession, s.creds.Username, "", s.sessionTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue session")
	}
	s.audit.Emit(ctx, audit.Event{Action: audit.ActionAdminLogin, Subject: claims.ID, ActorID: s.creds.Username, Details: details})
	s.logger.InfoContext(ctx, "admin logged in",
		"request_id", requestcontext.RequestID(ctx),
		"jti", claims.ID,
	)
	return &models.Session{
		Token:     token,
		Subject:   claims.Subject,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Logout revokes the session until it would have expired. Tokens that no
// longer verify have nothing left to revoke.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := s.signer.Verify(token, jwttoken.TypeSession)
	if err != nil {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(requestcontext.Now(ctx))
	if ttl <= 0 {
		return nil
	}
	if err := s.revocations.RevokeToken(ctx, claims.ID, ttl); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke session")
	}
	s.audit.Emit(ctx, audit.Event{Action: audit.ActionAdminLogout, Subject: claims.ID, ActorID: claims.Subject})
	return nil
}

func (s *Service) checkCredentials(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.creds.Username)) == 1
	var passOK bool
	if s.creds.PasswordHash != "" {
		err := bcrypt.CompareHashAndPassword([]byte(s.creds.PasswordHash), []byte(password))
		passOK = err == nil
		if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			s.logger.Error("admin password hash is unusable", "error", err)
		}
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(s.creds.Password)) == 1
	}
	return userOK && passOK
}
