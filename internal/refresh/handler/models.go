package handler

import (
	"strings"
	"time"

	"facecards/internal/refresh/changeset"
	"facecards/internal/roster/models"

	dErrors "facecards/pkg/domain-errors"
)

// TokenRequest carries a preview token. Used by apply and inspect.
type TokenRequest struct {
	PreviewToken string `json:"previewToken"`
}

func (r *TokenRequest) Validate() error {
	r.PreviewToken = strings.TrimSpace(r.PreviewToken)
	if r.PreviewToken == "" {
		return dErrors.New(dErrors.CodeBadRequest, "previewToken is required")
	}
	return nil
}

// PreviewResponse is the reviewable changeset plus the token that redeems it.
type PreviewResponse struct {
	Additions       []models.CandidateLeader `json:"additions"`
	Updates         []changeset.Update       `json:"updates"`
	Removals        []changeset.Removal      `json:"removals"`
	PreviewToken    string                   `json:"previewToken,omitempty"`
	ExpiresAt       time.Time                `json:"expiresAt"`
	FailedPositions []string                 `json:"failedPositions,omitempty"`
}

// ApplyResponse reports how many changes were committed.
type ApplyResponse struct {
	Success bool             `json:"success"`
	Applied changeset.Counts `json:"applied"`
}
