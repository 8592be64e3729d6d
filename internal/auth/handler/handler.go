package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"facecards/internal/auth/models"
	authservice "facecards/internal/auth/service"
	"facecards/pkg/platform/httputil"
	authmw "facecards/pkg/platform/middleware/auth"
	"facecards/pkg/platform/middleware/request"
)

// Service is the admin login flow.
type Service interface {
	Login(ctx context.Context, username, password string) (*models.Session, error)
	Logout(ctx context.Context, token string) error
	SessionTTL() time.Duration
}

// Handler serves POST and DELETE /api/admin/auth.
type Handler struct {
	auth         Service
	logger       *slog.Logger
	secureCookie bool
}

// New builds the handler. secureCookie marks the session cookie Secure and
// is set in production.
func New(auth Service, logger *slog.Logger, secureCookie bool) *Handler {
	return &Handler{auth: auth, logger: logger, secureCookie: secureCookie}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/api/admin/auth", h.handleLogin)
	r.Delete("/api/admin/auth", h.handleLogout)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	session, err := h.auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		var limited *authservice.RateLimitedError
		if errors.As(err, &limited) {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(limited.RetryAfter.Seconds()))))
		}
		h.logger.WarnContext(ctx, "admin login failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authmw.SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		MaxAge:   int(h.auth.SessionTTL().Seconds()),
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.auth.Logout(ctx, authmw.SessionToken(r)); err != nil {
		h.logger.ErrorContext(ctx, "failed to revoke admin session",
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authmw.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
