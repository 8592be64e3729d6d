package handler

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"facecards/internal/refresh/changeset"
	"facecards/internal/roster/models"

	dErrors "facecards/pkg/domain-errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// CreateLeaderRequest is the admin form for a new record.
type CreateLeaderRequest struct {
	Name         string  `json:"name" validate:"required,max=200"`
	Title        string  `json:"title" validate:"required,max=500"`
	PhotoURL     string  `json:"photoUrl" validate:"required,url,max=2000"`
	Category     string  `json:"category" validate:"required"`
	Branch       *string `json:"branch"`
	Organization string  `json:"organization" validate:"required,max=500"`
	IsActive     *bool   `json:"isActive"`
}

func (r *CreateLeaderRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Title = strings.TrimSpace(r.Title)
	r.PhotoURL = strings.TrimSpace(r.PhotoURL)
	r.Organization = strings.TrimSpace(r.Organization)
	if err := validate.Struct(r); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, describe(err))
	}
	if !models.Category(r.Category).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid category")
	}
	if _, err := models.ParseBranch(r.Branch); err != nil {
		return err
	}
	return nil
}

func (r *CreateLeaderRequest) Candidate() models.CandidateLeader {
	branch, _ := models.ParseBranch(r.Branch)
	return models.CandidateLeader{
		Name:         r.Name,
		Title:        r.Title,
		PhotoURL:     r.PhotoURL,
		Category:     models.Category(r.Category),
		Branch:       branch,
		Organization: r.Organization,
	}
}

func (r *CreateLeaderRequest) Active() bool {
	return r.IsActive == nil || *r.IsActive
}

// nullableString tells an absent key from an explicit null.
type nullableString struct {
	Set   bool
	Value *string
}

func (n *nullableString) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

// UpdateLeaderRequest is a partial edit. Absent fields are left alone; a
// null branch clears it. Unknown keys are dropped by the decoder.
type UpdateLeaderRequest struct {
	Name         *string        `json:"name" validate:"omitempty,max=200"`
	Title        *string        `json:"title" validate:"omitempty,max=500"`
	PhotoURL     *string        `json:"photoUrl" validate:"omitempty,url,max=2000"`
	Category     *string        `json:"category"`
	Branch       nullableString `json:"branch"`
	Organization *string        `json:"organization" validate:"omitempty,max=500"`
	IsActive     *bool          `json:"isActive"`
}

func (r *UpdateLeaderRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, describe(err))
	}
	if len(r.Changes()) == 0 {
		return dErrors.New(dErrors.CodeValidation, "no fields to update")
	}
	return nil
}

// Changes lists the fields present in the request as whitelisted changes.
func (r *UpdateLeaderRequest) Changes() []changeset.FieldChange {
	var out []changeset.FieldChange
	add := func(field string, v *string) {
		if v != nil {
			out = append(out, changeset.FieldChange{Field: field, Proposed: *v})
		}
	}
	add(changeset.FieldName, r.Name)
	add(changeset.FieldTitle, r.Title)
	add(changeset.FieldPhotoURL, r.PhotoURL)
	add(changeset.FieldCategory, r.Category)
	if r.Branch.Set {
		v := ""
		if r.Branch.Value != nil {
			v = *r.Branch.Value
		}
		out = append(out, changeset.FieldChange{Field: changeset.FieldBranch, Proposed: v})
	}
	add(changeset.FieldOrganization, r.Organization)
	if r.IsActive != nil {
		out = append(out, changeset.FieldChange{Field: changeset.FieldIsActive, Proposed: strconv.FormatBool(*r.IsActive)})
	}
	return out
}

// LeaderResponse is the wire form of a record.
type LeaderResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Title        string    `json:"title"`
	PhotoURL     string    `json:"photoUrl"`
	Category     string    `json:"category"`
	Branch       *string   `json:"branch"`
	Organization string    `json:"organization"`
	IsActive     bool      `json:"isActive"`
	LastVerified time.Time `json:"lastVerified"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func toResponse(l *models.Leader) LeaderResponse {
	var branch *string
	if l.Branch != nil {
		b := string(*l.Branch)
		branch = &b
	}
	return LeaderResponse{
		ID:           l.ID,
		Name:         l.Name,
		Title:        l.Title,
		PhotoURL:     l.PhotoURL,
		Category:     string(l.Category),
		Branch:       branch,
		Organization: l.Organization,
		IsActive:     l.IsActive(),
		LastVerified: l.LastVerified,
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
}

func toResponses(leaders []*models.Leader) []LeaderResponse {
	out := make([]LeaderResponse, 0, len(leaders))
	for _, l := range leaders {
		out = append(out, toResponse(l))
	}
	return out
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	field := fe.Field()
	if field == "PhotoURL" {
		field = "photoUrl"
	} else if field != "" {
		field = strings.ToLower(field[:1]) + field[1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return field + " is too long"
	case "url":
		return field + " must be a URL"
	default:
		return field + " is invalid"
	}
}
