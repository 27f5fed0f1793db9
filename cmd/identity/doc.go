// Package identity implements traq's identity & authentication foundation.
//
// It contains the credential store contract (lookup, create, credential
// verification) with interchangeable volatile and Postgres-backed
// implementations, plus the security primitives they share (ULID ids,
// Argon2id password hashing, username normalization).
//
// This package is intentionally dependency-light and security-first. It
// never logs and never returns plaintext credentials; callers receive typed
// failures and decide what to reveal.
package identity
