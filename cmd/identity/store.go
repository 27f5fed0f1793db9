package identity

import (
	"context"
	"time"
)

// User is traq's canonical security principal.
//
// PasswordHash is the opaque Argon2id PHC string; it never leaves the
// identity package boundary in API responses and is never logged.
type User struct {
	ID           string
	Username     string
	UsernameNorm string
	DisplayName  string
	Role         Role
	PasswordHash string
	CreatedAt    time.Time
}

// CreateUserInput describes a user creation request.
// Role defaults to RoleUser when empty. Now allows callers (and tests) to
// inject the clock; stores fall back to time.Now().UTC() when zero.
type CreateUserInput struct {
	Username    string
	DisplayName string
	Password    string
	Role        Role
	Now         time.Time
}

// Store is the credential persistence and verification boundary.
//
// Contract (must hold identically for every implementation):
//
//   - ValidateCredentials looks up by case-insensitive username and verifies
//     the password against the stored hash. Unknown user and wrong password
//     both fail with ErrInvalidCredentials and comparable timing; no caller
//     can tell them apart.
//   - GetByUsername is a case-insensitive exact lookup with no credential
//     check; missing user -> ErrNotFound.
//   - ListAll returns every identity. Authorization is the caller's
//     responsibility, not the store's.
//   - Create fails with a ConflictError (ErrConflict) when a case-insensitive
//     username collision exists, without mutating state. Racing creates for
//     the same username are serialized by the backing storage's uniqueness
//     enforcement: exactly one succeeds.
//
// Swapping one implementation for another must be invisible to callers.
type Store interface {
	ValidateCredentials(ctx context.Context, username, password string) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	ListAll(ctx context.Context) ([]User, error)
	Create(ctx context.Context, in CreateUserInput) (User, error)
}
