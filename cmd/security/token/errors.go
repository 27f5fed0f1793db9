package token

import "errors"

// Public, stable errors for callers.
//
// ErrTokenInvalid and ErrTokenExpired are distinct on purpose: callers may
// collapse both to 401, but diagnostics must be able to tell a forged or
// altered token from one that simply aged out. Verification checks the
// signature before expiry, so a tampered token is always ErrTokenInvalid.
var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")

	ErrSecretMissing  = errors.New("token secret missing")
	ErrSecretTooShort = errors.New("token secret too short")
)
