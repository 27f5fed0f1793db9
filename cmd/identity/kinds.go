package identity

import "errors"

// Sentinel error kinds (stable for errors.Is and for mapping to API status codes).
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrNotFound     = errors.New("not_found")
	ErrConflict     = errors.New("conflict")

	// ErrInvalidCredentials is the single failure kind for a rejected login.
	// Unknown username and wrong password MUST map to this same kind so the
	// store boundary never reveals which of the two occurred.
	ErrInvalidCredentials = errors.New("invalid_credentials")
)
