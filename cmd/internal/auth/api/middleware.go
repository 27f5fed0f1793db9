package authapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"traq/cmd/identity"
	"traq/cmd/security/token"
)

// Principal is the verified caller identity attached to a request context
// after RequireAuth admits it.
type Principal struct {
	Username string
	Role     identity.Role
}

type principalCtxKey struct{}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalCtxKey{}).(Principal)
	return p, ok
}

// RequireAuth wraps next with bearer-token authentication and, when roles are
// given, role-scoped authorization.
//
// Authentication runs before authorization: a request with a bad token gets
// 401 even on a route it could never access, so probing with garbage tokens
// learns nothing about the role map. An empty roles list admits any
// authenticated principal.
func (h *Handler) RequireAuth(next http.Handler, roles ...identity.Role) http.Handler {
	allowed := make(map[identity.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			authRejected("missing_token")
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		claims, err := h.tokens.Verify(raw, h.now())
		if err != nil {
			switch {
			case errors.Is(err, token.ErrTokenExpired):
				authRejected("expired")
				writeError(w, http.StatusUnauthorized, "token_expired", "token expired")
			default:
				authRejected("invalid")
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			}
			return
		}

		role, ok := identity.ParseRole(claims.Role)
		if !ok {
			authRejected("invalid")
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		if len(allowed) > 0 {
			if _, ok := allowed[role]; !ok {
				authRejected("forbidden")
				writeError(w, http.StatusForbidden, "forbidden", "insufficient role")
				return
			}
		}

		p := Principal{Username: claims.Subject, Role: role}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalCtxKey{}, p)))
	})
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. Scheme matching is case-insensitive per RFC 7235.
func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
