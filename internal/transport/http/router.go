// Package httptransport composes the feature handlers into one chi router
// with the shared middleware stack.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"facecards/internal/platform/metrics"
	"facecards/pkg/platform/httputil"
	authmw "facecards/pkg/platform/middleware/auth"
	"facecards/pkg/platform/middleware/cron"
	"facecards/pkg/platform/middleware/metadata"
	"facecards/pkg/platform/middleware/request"
	"facecards/pkg/platform/middleware/requesttime"
)

// AuthRoutes registers the login and logout endpoints.
type AuthRoutes interface {
	Register(r chi.Router)
}

// AdminRoutes registers routes that require an admin session.
type AdminRoutes interface {
	Register(r chi.Router)
}

// RosterRoutes registers the admin CMS, the public roster and the cron triggers.
type RosterRoutes interface {
	RegisterAdmin(r chi.Router)
	RegisterPublic(r chi.Router)
	RegisterCron(r chi.Router)
}

// HealthCheck pings one backing service.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps are everything the router mounts.
type Deps struct {
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Sessions    authmw.SessionVerifier
	Revocations authmw.RevocationChecker
	CronSecret  string
	Auth        AuthRoutes
	Refresh     AdminRoutes
	Roster      RosterRoutes
	Health      []HealthCheck

	// RequestTimeout bounds every request's context. Zero leaves it unbounded.
	RequestTimeout time.Duration
}

// NewRouter builds the HTTP handler.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(d.Logger, d.Metrics))
	r.Use(request.Logger(d.Logger, d.Metrics))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	if d.RequestTimeout > 0 {
		r.Use(chimw.Timeout(d.RequestTimeout))
	}

	r.Get("/healthz", healthHandler(d.Health, d.Logger))
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	d.Auth.Register(r)
	d.Roster.RegisterPublic(r)

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAdmin(d.Sessions, d.Revocations, d.Logger))
		d.Refresh.Register(r)
		d.Roster.RegisterAdmin(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(cron.RequireBearer(d.CronSecret, d.Logger))
		d.Roster.RegisterCron(r)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: "not_found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, httputil.ErrorResponse{Error: "method_not_allowed"})
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks []HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed",
					"request_id", request.GetRequestID(ctx),
					"dependency", c.Name,
					"error", err,
				)
				resp.Checks[c.Name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[c.Name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
