// Package identity password hashing (Argon2id).
//
// identity delegates to cmd/security/password as the single source of truth
// for Argon2id parameters (defaults + env overrides), password policy and
// strict PHC decoding with anti-DoS bounds during Verify.
//
// identity keeps a historical baseline of min length 8 (the seeded demo
// credentials are 8 chars) but honors a stricter env policy.
package identity

import (
	"errors"

	"traq/cmd/security/password"
)

// HashPassword returns a PHC-style Argon2id hash string.
//
// Two calls with the same plaintext produce different encoded values (fresh
// random salt) but both verify against the original plaintext.
func HashPassword(passwordPlain string) (string, error) {
	cfg, err := password.FromEnv()
	if err != nil {
		// Treat invalid env as an operational error, not a weak fallback.
		return "", err
	}
	clampPolicyBaseline(&cfg)

	enc, err := cfg.Hash(passwordPlain)
	if err != nil {
		switch {
		case errors.Is(err, password.ErrPasswordTooShort):
			return "", OpError{Op: "identity.HashPassword", Kind: ErrInvalidInput, Msg: "password too short"}
		case errors.Is(err, password.ErrPasswordTooLong):
			return "", OpError{Op: "identity.HashPassword", Kind: ErrInvalidInput, Msg: "password too long"}
		case errors.Is(err, password.ErrWeakPassword):
			return "", OpError{Op: "identity.HashPassword", Kind: ErrInvalidInput, Msg: "weak password"}
		default:
			return "", err
		}
	}

	return enc, nil
}

// VerifyPassword checks a password against a PHC Argon2id hash.
// A malformed stored hash reports (false, nil) rather than an error so that
// ValidateCredentials cannot be turned into a hash-format oracle.
func VerifyPassword(passwordPlain string, encodedPHC string) (bool, error) {
	cfg, err := password.FromEnv()
	if err != nil {
		return false, err
	}
	clampPolicyBaseline(&cfg)

	ok, err := cfg.Verify(encodedPHC, passwordPlain)
	if err != nil {
		if errors.Is(err, password.ErrInvalidHash) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

// clampPolicyBaseline applies identity's historical policy floor:
// min 8 chars (env may be stricter), max defaults to 256.
func clampPolicyBaseline(cfg *password.Config) {
	if cfg.Policy.MinLength < 8 {
		cfg.Policy.MinLength = 8
	}
	if cfg.Policy.MaxLength <= 0 {
		cfg.Policy.MaxLength = 256
	}
}
