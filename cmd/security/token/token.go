package token

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// SecretEnvKey is the env var name for the signing secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	SecretEnvKey = "TRAQ_TOKEN_SECRET"

	// MinSecretBytes is the minimum secret size for HMAC-SHA256.
	// Measured in bytes (not runes) because the key is used as raw bytes.
	MinSecretBytes = 32

	defaultTTL    = 30 * time.Minute
	defaultIssuer = "traq"
)

// Claims is the verified claim set carried by an access token.
type Claims struct {
	Subject   string // username
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string // jti
}

// Config controls token issuance and verification.
type Config struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
}

// LoadConfigFromEnv reads token configuration from the environment.
// A missing or short secret is a startup error, never a silent fallback:
// running with a guessable signing key would make every token forgeable.
func LoadConfigFromEnv() (Config, error) {
	secret := strings.TrimSpace(os.Getenv(SecretEnvKey))
	if secret == "" {
		return Config{}, ErrSecretMissing
	}
	if len(secret) < MinSecretBytes {
		return Config{}, ErrSecretTooShort
	}

	ttl := defaultTTL
	if v := strings.TrimSpace(os.Getenv("TRAQ_TOKEN_TTL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("TRAQ_TOKEN_TTL: invalid duration %q", v)
		}
		ttl = d
	}

	issuer := strings.TrimSpace(os.Getenv("TRAQ_TOKEN_ISSUER"))
	if issuer == "" {
		issuer = defaultIssuer
	}

	return Config{
		Secret: []byte(secret),
		TTL:    ttl,
		Issuer: issuer,
	}, nil
}

// Manager issues and verifies signed access tokens.
// It is stateless and safe for concurrent use: issuance and verification
// are pure functions of input + secret + clock.
type Manager struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// jwtClaims is the on-wire claim layout.
type jwtClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// NewManager constructs a Manager, enforcing the secret-size floor.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrSecretMissing
	}
	if len(cfg.Secret) < MinSecretBytes {
		return nil, ErrSecretTooShort
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultIssuer
	}

	return &Manager{
		secret: cfg.Secret,
		ttl:    ttl,
		issuer: issuer,
	}, nil
}

// TTL returns the configured token lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue builds and signs a token for the given subject and role.
// It returns the signed token string and the TTL applied, which callers
// may surface to clients as expires_in.
func (m *Manager) Issue(subject, role string, now time.Time) (string, time.Duration, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", 0, fmt.Errorf("token: empty subject")
	}
	if strings.TrimSpace(role) == "" {
		return "", 0, fmt.Errorf("token: empty role")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        uuid.NewString(),
		},
		Role: role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", 0, fmt.Errorf("signing token: %w", err)
	}
	return signed, m.ttl, nil
}

// Verify parses and checks a token string at the given instant.
//
// The signature is checked before any semantic claim: a forged or altered
// token fails with ErrTokenInvalid regardless of its embedded timestamps.
// A well-signed token past its exp fails with ErrTokenExpired.
func (m *Manager) Verify(tokenStr string, now time.Time) (Claims, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	// Sanity bound to avoid pathological inputs.
	if tokenStr == "" || len(tokenStr) > 4096 {
		return Claims{}, ErrTokenInvalid
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var claims jwtClaims
	_, err := jwt.ParseWithClaims(tokenStr, &claims,
		func(_ *jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrTokenExpired
	case err != nil:
		return Claims{}, ErrTokenInvalid
	}

	if claims.Subject == "" || claims.Role == "" {
		return Claims{}, ErrTokenInvalid
	}

	out := Claims{
		Subject: claims.Subject,
		Role:    claims.Role,
		ID:      claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
