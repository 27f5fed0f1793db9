// Package authapi exposes traq's authentication endpoints over HTTP.
//
// Routes:
//
//	POST /auth/login    credentials -> bearer access token
//	POST /auth/register open self-service signup (always role "user")
//	GET  /auth/me       current principal (any authenticated role)
//	GET  /auth/users    directory listing (admin only)
//	POST /auth/verify   token introspection for sibling services
//
// Failure responses follow one taxonomy: 400 malformed input, 401 missing or
// bad credentials/token, 403 authenticated but wrong role, 409 duplicate
// username, 500 for everything internal. 401 bodies never reveal whether a
// username exists or which part of the credential pair was wrong.
package authapi
