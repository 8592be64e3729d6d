package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service Verifier

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"facecards/internal/refresh/changeset"
	"facecards/internal/roster/models"
	rosterservice "facecards/internal/roster/service"
	"facecards/pkg/platform/httputil"
	"facecards/pkg/platform/middleware/request"

	dErrors "facecards/pkg/domain-errors"
)

// Service is the roster CMS.
type Service interface {
	List(ctx context.Context, filter models.ListFilter) ([]*models.Leader, error)
	ListPublic(ctx context.Context, filter models.ListFilter) ([]*models.Leader, error)
	Get(ctx context.Context, id string) (*models.Leader, error)
	Create(ctx context.Context, cand models.CandidateLeader, active bool) (*models.Leader, error)
	Update(ctx context.Context, id string, changes []changeset.FieldChange) (*models.Leader, error)
	Deactivate(ctx context.Context, id string) error
}

// Verifier runs verification sweeps.
type Verifier interface {
	Sweep(ctx context.Context, kind rosterservice.SweepKind) (*rosterservice.SweepResult, error)
}

// Handler serves the roster endpoints. Admin, public and cron routes are
// registered separately so the router can put each behind its own guard.
type Handler struct {
	roster   Service
	verifier Verifier
	logger   *slog.Logger
}

func New(roster Service, verifier Verifier, logger *slog.Logger) *Handler {
	return &Handler{roster: roster, verifier: verifier, logger: logger}
}

// RegisterAdmin registers the CMS routes.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/api/admin/leaders", h.handleList)
	r.Post("/api/admin/leaders", h.handleCreate)
	r.Get("/api/admin/leaders/{id}", h.handleGet)
	r.Put("/api/admin/leaders/{id}", h.handleUpdate)
	r.Delete("/api/admin/leaders/{id}", h.handleDelete)
}

// RegisterPublic registers the study client's read-only roster.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/api/leaders", h.handlePublicList)
}

// RegisterCron registers the verification sweep triggers.
func (h *Handler) RegisterCron(r chi.Router) {
	r.Get("/api/cron/daily", h.handleSweep(rosterservice.SweepDaily))
	r.Get("/api/cron/weekly", h.handleSweep(rosterservice.SweepWeekly))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	filter.Search = strings.TrimSpace(r.URL.Query().Get("search"))
	filter.IncludeInactive = r.URL.Query().Get("includeInactive") == "true"

	leaders, err := h.roster.List(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list leaders",
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponses(leaders))
}

func (h *Handler) handlePublicList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	filter.Organization = strings.TrimSpace(r.URL.Query().Get("organization"))

	leaders, err := h.roster.ListPublic(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list public roster",
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponses(leaders))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateLeaderRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	leader, err := h.roster.Create(ctx, req.Candidate(), req.Active())
	if err != nil {
		h.logger.WarnContext(ctx, "failed to create leader",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(leader))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	leader, err := h.roster.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(leader))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[UpdateLeaderRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	leader, err := h.roster.Update(ctx, chi.URLParam(r, "id"), req.Changes())
	if err != nil {
		h.logger.WarnContext(ctx, "failed to update leader",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(leader))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.roster.Deactivate(ctx, chi.URLParam(r, "id")); err != nil {
		h.logger.WarnContext(ctx, "failed to delete leader",
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) handleSweep(kind rosterservice.SweepKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		res, err := h.verifier.Sweep(ctx, kind)
		if err != nil {
			h.logger.ErrorContext(ctx, "verification sweep failed",
				"request_id", request.GetRequestID(ctx),
				"kind", string(kind),
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, res)
	}
}

func parseFilter(q url.Values) (models.ListFilter, error) {
	var filter models.ListFilter
	if c := strings.ToUpper(strings.TrimSpace(q.Get("category"))); c != "" {
		filter.Category = models.Category(c)
		if !filter.Category.IsValid() {
			return filter, dErrors.New(dErrors.CodeBadRequest, "invalid category")
		}
	}
	if b := strings.ToUpper(strings.TrimSpace(q.Get("branch"))); b != "" {
		filter.Branch = models.Branch(b)
		if !filter.Branch.IsValid() {
			return filter, dErrors.New(dErrors.CodeBadRequest, "invalid branch")
		}
	}
	return filter, nil
}
