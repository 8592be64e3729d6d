// Package auth authenticates admin requests from the session cookie.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"facecards/pkg/platform/httputil"
	"facecards/pkg/requestcontext"

	dErrors "facecards/pkg/domain-errors"
)

// SessionCookieName carries the signed admin session token.
const SessionCookieName = "admin_session"

// SessionClaims are the verified facts about an admin session.
type SessionClaims struct {
	Subject string
	JTI     string
}

// SessionVerifier checks a session token's signature, type and expiry.
type SessionVerifier interface {
	VerifySession(token string) (*SessionClaims, error)
}

// RevocationChecker reports whether a session was ended by logout.
type RevocationChecker interface {
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// SessionToken reads the token from the cookie, falling back to a bearer header
// for API clients.
func SessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return token
	}
	return ""
}

// RequireAdmin rejects requests without a valid, unrevoked admin session.
// revocation may be nil.
func RequireAdmin(verifier SessionVerifier, revocation RevocationChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token := SessionToken(r)
			if token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing session",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin session required"))
				return
			}

			claims, err := verifier.VerifySession(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid session",
					"request_id", requestID,
					"error", err,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired session"))
				return
			}

			if revocation != nil {
				revoked, err := revocation.IsTokenRevoked(ctx, claims.JTI)
				if err != nil {
					logger.ErrorContext(ctx, "failed to check session revocation",
						"request_id", requestID,
						"error", err,
					)
					httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to validate session"))
					return
				}
				if revoked {
					logger.WarnContext(ctx, "unauthorized access - session revoked",
						"request_id", requestID,
						"jti", claims.JTI,
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "session has been revoked"))
					return
				}
			}

			ctx = requestcontext.WithAdmin(ctx, claims.Subject)
			ctx = requestcontext.WithSessionID(ctx, claims.JTI)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
