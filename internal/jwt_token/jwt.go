package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "facecards/pkg/domain-errors"
)

// Token types carried in the "typ" claim. A token is only accepted where its
// type is expected, so a session cookie can never be replayed as a preview.
const (
	TypePreview = "preview"
	TypeSession = "admin_session"
)

// Claims are the claims of every token this service signs.
type Claims struct {
	Type string `json:"typ"`
	Ref  string `json:"ref,omitempty"`
	jwt.RegisteredClaims
}

// Option configures a JWTService.
type Option func(*JWTService)

// WithClock overrides the time source used for issuing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *JWTService) { s.now = now }
}

// JWTService signs and verifies HS256 tokens with the server-held secret.
type JWTService struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
}

// NewJWTService fails with a configuration error when the secret is missing.
func NewJWTService(signingKey, issuer string, opts ...Option) (*JWTService, error) {
	if signingKey == "" {
		return nil, dErrors.New(dErrors.CodeConfiguration, "token signing secret is not configured")
	}
	s := &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a token of tokenType that expires after ttl.
func (s *JWTService) Issue(tokenType, subject, ref string, ttl time.Duration) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		Type: tokenType,
		Ref:  ref,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Verify checks signature, issuer, expiry and the typ claim.
func (s *JWTService) Verify(tokenString, expectedType string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.Type != expectedType {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "unexpected token type")
	}
	if claims.ID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has no id")
	}
	return claims, nil
}
