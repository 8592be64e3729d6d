package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	dErrors "facecards/pkg/domain-errors"
)

var validate = validator.New()

// LoginRequest is the admin login form.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=200"`
}

// Validate rejects malformed input without saying which field was wrong.
func (r *LoginRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	if err := validate.Struct(r); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid input")
	}
	return nil
}

// Session is a signed admin session.
type Session struct {
	Token     string
	Subject   string
	JTI       string
	ExpiresAt time.Time
}
