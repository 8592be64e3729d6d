package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// so services can translate them into domain errors:
//   - ErrNotFound: record does not exist (or is no longer pending)
//   - ErrExpired: a preview or session is past its expiry
//   - ErrAlreadyUsed: a single-use artifact was consumed
//   - ErrInvalidState: record in the wrong lifecycle state for the operation
//   - ErrUnavailable: backing service temporarily unreachable
var (
	ErrNotFound     = errors.New("not found")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
