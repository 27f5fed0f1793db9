package identity

import "strings"

// NormalizeUsername performs case-insensitive canonicalization.
// Usernames are email-shaped login identifiers; comparison is always done
// on the normalized form. Note: for now we only trim + lower-case.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
