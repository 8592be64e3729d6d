package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"facecards/internal/refresh/changeset"
	refreshservice "facecards/internal/refresh/service"
	"facecards/pkg/platform/httputil"
	"facecards/pkg/platform/middleware/request"

	dErrors "facecards/pkg/domain-errors"
)

// Service is the refresh workflow as the admin API sees it.
type Service interface {
	Preview(ctx context.Context) (*refreshservice.PreviewResult, error)
	Inspect(ctx context.Context, token string) (*refreshservice.PreviewResult, error)
	Apply(ctx context.Context, token string) (changeset.Counts, error)
}

// Handler serves the admin refresh endpoints. Callers mount it behind admin
// authentication.
type Handler struct {
	refresh Service
	logger  *slog.Logger
}

func New(refresh Service, logger *slog.Logger) *Handler {
	return &Handler{refresh: refresh, logger: logger}
}

// Register registers the refresh routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/admin/preview-refresh", h.handlePreview)
	r.Post("/api/admin/preview-refresh/inspect", h.handleInspect)
	r.Post("/api/admin/apply-refresh", h.handleApply)
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	res, err := h.refresh.Preview(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate refresh preview",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, asInternal(err, "failed to generate preview"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toPreviewResponse(res))
}

func (h *Handler) handleInspect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[TokenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.refresh.Inspect(ctx, req.PreviewToken)
	if err != nil {
		h.logger.WarnContext(ctx, "preview inspection failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toPreviewResponse(res))
}

func (h *Handler) handleApply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[TokenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	counts, err := h.refresh.Apply(ctx, req.PreviewToken)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeInvalidToken) {
			h.logger.WarnContext(ctx, "refresh apply rejected",
				"request_id", requestID,
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "refresh apply failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, asInternal(err, "failed to apply refresh"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ApplyResponse{Success: true, Applied: counts})
}

// asInternal keeps codes that already map to 500 and wraps anything else as
// an internal error.
func asInternal(err error, msg string) error {
	if de, ok := dErrors.As(err); ok && dErrors.HTTPStatus(de.Code) == http.StatusInternalServerError {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func toPreviewResponse(res *refreshservice.PreviewResult) PreviewResponse {
	cs := res.Changeset
	cs.Normalize()
	return PreviewResponse{
		Additions:       cs.Additions,
		Updates:         cs.Updates,
		Removals:        cs.Removals,
		PreviewToken:    res.Token,
		ExpiresAt:       res.ExpiresAt,
		FailedPositions: res.FailedPositions,
	}
}
