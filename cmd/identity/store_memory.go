package identity

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"traq/cmd/identity/ids"
)

// SeedUser describes a demo identity created when the volatile store starts.
type SeedUser struct {
	Username    string
	DisplayName string
	Password    string
	Role        Role
}

// DefaultSeedUsers returns the fixed demo identities for in-memory mode.
// Passwords can be overridden via env so shared environments don't ship the
// documented defaults.
func DefaultSeedUsers() []SeedUser {
	return []SeedUser{
		{
			Username:    "admin@example.com",
			DisplayName: "Demo Admin",
			Password:    seedPassword("TRAQ_SEED_ADMIN_PASSWORD", "Admin123!"),
			Role:        RoleAdmin,
		},
		{
			Username:    "user@example.com",
			DisplayName: "Demo User",
			Password:    seedPassword("TRAQ_SEED_USER_PASSWORD", "User123!"),
			Role:        RoleUser,
		},
	}
}

func seedPassword(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// MemoryStore is the volatile credential store: a process-lifetime map
// guarded by a RWMutex. The mutex is the storage layer here, so it is also
// the uniqueness serialization point for racing creates.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]User // keyed by UsernameNorm

	// dummyHash is verified when a username is unknown so that the missing
	// and present-but-wrong-password paths cost roughly the same.
	dummyHash string
}

// NewMemoryStore builds a volatile store pre-seeded with the given identities.
func NewMemoryStore(seed []SeedUser) (*MemoryStore, error) {
	dummy, err := HashPassword("dummy-password-for-timing-only")
	if err != nil {
		return nil, err
	}

	s := &MemoryStore{
		users:     make(map[string]User, len(seed)),
		dummyHash: dummy,
	}

	now := time.Now().UTC()
	for _, su := range seed {
		if _, err := s.Create(context.Background(), CreateUserInput{
			Username:    su.Username,
			DisplayName: su.DisplayName,
			Password:    su.Password,
			Role:        su.Role,
			Now:         now,
		}); err != nil {
			return nil, fmt.Errorf("identity: seed %q: %w", su.Username, err)
		}
	}

	return s, nil
}

// ValidateCredentials implements Store.
func (s *MemoryStore) ValidateCredentials(ctx context.Context, username, passwordPlain string) (User, error) {
	const op = "identity.ValidateCredentials"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	norm := NormalizeUsername(username)

	s.mu.RLock()
	u, found := s.users[norm]
	s.mu.RUnlock()

	if !found {
		// Equalize timing with the found path.
		_, _ = VerifyPassword(passwordPlain, s.dummyHash)
		return User{}, invalidCredentials(op)
	}

	ok, err := VerifyPassword(passwordPlain, u.PasswordHash)
	if err != nil || !ok {
		return User{}, invalidCredentials(op)
	}
	return u, nil
}

// GetByUsername implements Store.
func (s *MemoryStore) GetByUsername(ctx context.Context, username string) (User, error) {
	const op = "identity.GetByUsername"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	norm := NormalizeUsername(username)

	s.mu.RLock()
	u, found := s.users[norm]
	s.mu.RUnlock()

	if !found {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	return u, nil
}

// ListAll implements Store. Output is ordered by creation (ULID order).
func (s *MemoryStore) ListAll(ctx context.Context) ([]User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Create implements Store.
// The password is hashed before the lock is taken: hashing is slow and must
// not serialize readers. The map insert under the write lock is the
// uniqueness check, so of two racing creates exactly one wins.
func (s *MemoryStore) Create(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.Create"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "username is required"}
	}
	if strings.TrimSpace(in.Password) == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "password is required"}
	}

	role := in.Role
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "unknown role"}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	pwHash, err := HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}

	id, err := ids.NewULID(now)
	if err != nil {
		return User{}, err
	}

	u := User{
		ID:           id,
		Username:     username,
		UsernameNorm: NormalizeUsername(username),
		DisplayName:  strings.TrimSpace(in.DisplayName),
		Role:         role,
		PasswordHash: pwHash,
		CreatedAt:    now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.UsernameNorm]; exists {
		return User{}, ConflictError{Op: op, Field: "username"}
	}
	s.users[u.UsernameNorm] = u

	return u, nil
}
