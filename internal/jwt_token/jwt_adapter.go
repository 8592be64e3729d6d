package jwttoken

import (
	authmw "facecards/pkg/platform/middleware/auth"
)

// SessionAdapter exposes admin session verification to the auth middleware.
type SessionAdapter struct {
	service *JWTService
}

func NewSessionAdapter(service *JWTService) *SessionAdapter {
	return &SessionAdapter{service: service}
}

func (a *SessionAdapter) VerifySession(token string) (*authmw.SessionClaims, error) {
	claims, err := a.service.Verify(token, TypeSession)
	if err != nil {
		return nil, err
	}
	return &authmw.SessionClaims{Subject: claims.Subject, JTI: claims.ID}, nil
}
