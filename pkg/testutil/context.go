package testutil

import (
	"context"
	"net/http"

	"facecards/pkg/requestcontext"
)

// WithAdmin marks the request as coming from an authenticated admin session.
// This simulates what the session middleware does after verifying the cookie.
func WithAdmin(req *http.Request, username, sessionID string) *http.Request {
	ctx := requestcontext.WithAdmin(req.Context(), username)
	if sessionID != "" {
		ctx = requestcontext.WithSessionID(ctx, sessionID)
	}
	return req.WithContext(ctx)
}

// WithRequestID attaches a request ID the way the request ID middleware would.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
