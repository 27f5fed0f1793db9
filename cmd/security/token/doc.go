// Package token provides traq's stateless access-token service.
//
// It issues and verifies HMAC-SHA256 signed JWTs carrying the minimal
// identity envelope {sub, role, iat, exp, jti}. There is no server-side
// session table: a token is valid until its natural expiry and cannot be
// revoked early. A role change after issuance is therefore visible only
// once the old token expires; that staleness window is bounded by the TTL
// and accepted deliberately. Rotating the secret invalidates every
// outstanding token at once.
//
// Environment:
// - TRAQ_TOKEN_SECRET: signing secret, required, >= 32 bytes.
// - TRAQ_TOKEN_TTL: token lifetime (Go duration, default 30m).
// - TRAQ_TOKEN_ISSUER: iss claim (default "traq").
//
// The clock is always injected (now parameters) so expiry behavior is
// testable without sleeping.
package token
