package shared

import "errors"

// Sentinel errors shared by every domain package. Wrap them with
// fmt.Errorf("%w: ...") so the HTTP layer can map status codes.
var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a unique key already exists.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState occurs when an action violates a status workflow.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized indicates a missing or rejected bearer token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the caller lacks the required role.
	ErrForbidden = errors.New("forbidden")
)
