// Package cron guards scheduler-triggered endpoints with a shared bearer secret.
package cron

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"facecards/pkg/platform/httputil"
	"facecards/pkg/requestcontext"

	dErrors "facecards/pkg/domain-errors"
)

// RequireBearer rejects requests whose Authorization header is not "Bearer <secret>".
// An empty secret rejects everything.
func RequireBearer(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "cron secret mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
