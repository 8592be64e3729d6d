package models

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "facecards/pkg/domain-errors"
)

// CandidateLeader is a proposed roster entry without an identity.
type CandidateLeader struct {
	Name         string   `json:"name" validate:"required,max=200"`
	Title        string   `json:"title" validate:"required,max=500"`
	PhotoURL     string   `json:"photoUrl" validate:"required,max=2000"`
	Category     Category `json:"category" validate:"required"`
	Branch       *Branch  `json:"branch"`
	Organization string   `json:"organization" validate:"required,max=500"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Normalized returns c with surrounding whitespace removed from the text
// fields, the same form NewLeader stores.
func (c CandidateLeader) Normalized() CandidateLeader {
	c.Name = strings.TrimSpace(c.Name)
	c.Title = strings.TrimSpace(c.Title)
	c.PhotoURL = strings.TrimSpace(c.PhotoURL)
	c.Organization = strings.TrimSpace(c.Organization)
	return c
}

// Validate checks required fields and the closed enums.
func (c CandidateLeader) Validate() error {
	if err := validate.Struct(c.Normalized()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, describe(err))
	}
	if !c.Category.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid category")
	}
	if c.Branch != nil && !c.Branch.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid branch")
	}
	return nil
}

// describe turns the first validator failure into a client-safe message.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid leader"
	}
	fe := verrs[0]
	field := fieldName(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return field + " is too long"
	default:
		return field + " is invalid"
	}
}

func fieldName(structField string) string {
	switch structField {
	case "PhotoURL":
		return "photoUrl"
	case "":
		return "field"
	default:
		return strings.ToLower(structField[:1]) + structField[1:]
	}
}
