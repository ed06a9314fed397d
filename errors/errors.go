package errors

import "errors"

// Sentinel errors for common error conditions
var (
	// ErrSessionNotFound indicates that no session exists for the given identifier
	ErrSessionNotFound = errors.New("session not found")

	// ErrRouteUnset indicates a node ran before the router classified the turn
	ErrRouteUnset = errors.New("turn route not set")

	// ErrMissingAPIKey indicates that required generation-service credentials are absent
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidInput indicates that input validation failed
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")
)
