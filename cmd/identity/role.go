package identity

import "strings"

// Role is the authorization scope attached to an identity.
// The set is deliberately small; routes declare which roles may call them.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole normalizes and validates a role string.
// Unknown values are rejected rather than defaulted so a typo in config or
// a request body cannot silently grant or deny access.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// Valid reports whether r is a member of the known role set.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}
