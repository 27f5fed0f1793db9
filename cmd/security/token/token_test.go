package token

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef" // 32 bytes

func testManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	m, err := NewManager(Config{Secret: []byte(testSecret), TTL: ttl})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	m := testManager(t, time.Hour)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tok, expiresIn, err := m.Issue("admin@example.com", "admin", now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if expiresIn != time.Hour {
		t.Fatalf("expiresIn = %v, want 1h", expiresIn)
	}

	claims, err := m.Verify(tok, now)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "admin@example.com" {
		t.Fatalf("subject = %q", claims.Subject)
	}
	if claims.Role != "admin" {
		t.Fatalf("role = %q", claims.Role)
	}
	if !claims.IssuedAt.Equal(now) {
		t.Fatalf("iat = %v, want %v", claims.IssuedAt, now)
	}
	if !claims.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("exp = %v, want %v", claims.ExpiresAt, now.Add(time.Hour))
	}
	if claims.ID == "" {
		t.Fatalf("jti missing")
	}
}

func TestVerify_ExpiryBoundary(t *testing.T) {
	t.Parallel()

	ttl := 60 * time.Second
	m := testManager(t, ttl)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tok, _, err := m.Issue("user@example.com", "user", now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// One second before expiry: still valid.
	if _, err := m.Verify(tok, now.Add(ttl-time.Second)); err != nil {
		t.Fatalf("Verify at ttl-1s: %v", err)
	}

	// One second after expiry: expired, not invalid.
	_, err = m.Verify(tok, now.Add(ttl+time.Second))
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("Verify at ttl+1s = %v, want ErrTokenExpired", err)
	}
}

func TestVerify_TamperedSignatureIsInvalidNeverExpired(t *testing.T) {
	t.Parallel()

	m := testManager(t, time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tok, _, err := m.Issue("user@example.com", "user", now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %d segments", len(parts))
	}

	// Flip every byte position of the signature segment in turn; the
	// result must always be ErrTokenInvalid, even when verified long
	// after expiry. The final char is skipped: its low bits are padding
	// and a flip there may decode to the same signature bytes.
	sig := parts[2]
	late := now.Add(24 * time.Hour)
	for i := 0; i < len(sig)-1; i++ {
		flipped := flipBase64URLByte(sig, i)
		if flipped == sig {
			continue
		}
		bad := parts[0] + "." + parts[1] + "." + flipped

		_, err := m.Verify(bad, now)
		if !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("tampered sig byte %d at now: got %v, want ErrTokenInvalid", i, err)
		}
		_, err = m.Verify(bad, late)
		if !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("tampered sig byte %d after expiry: got %v, want ErrTokenInvalid", i, err)
		}
	}
}

func TestVerify_TamperedPayloadIsInvalid(t *testing.T) {
	t.Parallel()

	m := testManager(t, time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tok, _, err := m.Issue("user@example.com", "user", now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	parts := strings.Split(tok, ".")
	bad := parts[0] + "." + flipBase64URLByte(parts[1], 1) + "." + parts[2]

	if _, err := m.Verify(bad, now); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("tampered payload: got %v, want ErrTokenInvalid", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	m1 := testManager(t, time.Minute)
	m2, err := NewManager(Config{Secret: []byte("ffffffffffffffffffffffffffffffff")})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tok, _, err := m1.Issue("user@example.com", "user", now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Secret rotation: tokens signed with the old secret become invalid.
	if _, err := m2.Verify(tok, now); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("rotated secret: got %v, want ErrTokenInvalid", err)
	}
}

func TestVerify_GarbageInputs(t *testing.T) {
	t.Parallel()

	m := testManager(t, time.Minute)
	now := time.Now().UTC()

	cases := []string{
		"",
		"not-a-jwt",
		"a.b",
		"a.b.c",
		strings.Repeat("x", 5000),
	}
	for _, c := range cases {
		if _, err := m.Verify(c, now); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("Verify(%.20q) = %v, want ErrTokenInvalid", c, err)
		}
	}
}

func TestNewManager_SecretPolicy(t *testing.T) {
	t.Parallel()

	if _, err := NewManager(Config{}); !errors.Is(err, ErrSecretMissing) {
		t.Fatalf("empty secret: got %v, want ErrSecretMissing", err)
	}
	if _, err := NewManager(Config{Secret: []byte("short")}); !errors.Is(err, ErrSecretTooShort) {
		t.Fatalf("short secret: got %v, want ErrSecretTooShort", err)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv(SecretEnvKey, testSecret)
	t.Setenv("TRAQ_TOKEN_TTL", "15m")
	t.Setenv("TRAQ_TOKEN_ISSUER", "traq-test")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.TTL != 15*time.Minute {
		t.Fatalf("ttl = %v, want 15m", cfg.TTL)
	}
	if cfg.Issuer != "traq-test" {
		t.Fatalf("issuer = %q", cfg.Issuer)
	}

	t.Setenv("TRAQ_TOKEN_TTL", "not-a-duration")
	if _, err := LoadConfigFromEnv(); err == nil {
		t.Fatalf("expected ttl parse error")
	}

	t.Setenv("TRAQ_TOKEN_TTL", "")
	t.Setenv(SecretEnvKey, "short")
	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrSecretTooShort) {
		t.Fatalf("short secret: got %v, want ErrSecretTooShort", err)
	}

	t.Setenv(SecretEnvKey, "")
	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrSecretMissing) {
		t.Fatalf("missing secret: got %v, want ErrSecretMissing", err)
	}
}

// flipBase64URLByte replaces the byte at index i with a different
// base64url character so the segment stays syntactically decodable.
func flipBase64URLByte(s string, i int) string {
	if i < 0 || i >= len(s) {
		return s
	}
	replacement := byte('A')
	if s[i] == 'A' {
		replacement = 'B'
	}
	return s[:i] + string(replacement) + s[i+1:]
}
