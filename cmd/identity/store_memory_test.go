package identity

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStore_Conformance(t *testing.T) {
	setCheapArgon2(t)

	runStoreConformance(t, func(t *testing.T) Store {
		t.Helper()
		s, err := NewMemoryStore(nil)
		if err != nil {
			t.Fatalf("NewMemoryStore: %v", err)
		}
		return s
	})
}

func TestMemoryStore_SeededDemoUsersValidate(t *testing.T) {
	setCheapArgon2(t)

	s, err := NewMemoryStore(DefaultSeedUsers())
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	ctx := context.Background()

	admin, err := s.ValidateCredentials(ctx, "admin@example.com", "Admin123!")
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	if admin.Role != RoleAdmin {
		t.Fatalf("admin role = %q", admin.Role)
	}
	if admin.DisplayName != "Demo Admin" {
		t.Fatalf("admin display name = %q", admin.DisplayName)
	}

	user, err := s.ValidateCredentials(ctx, "user@example.com", "User123!")
	if err != nil {
		t.Fatalf("user login: %v", err)
	}
	if user.Role != RoleUser {
		t.Fatalf("user role = %q", user.Role)
	}

	// Cross-checking: the admin password does not open the user account.
	if _, err := s.ValidateCredentials(ctx, "user@example.com", "Admin123!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("cross password: got %v, want ErrInvalidCredentials", err)
	}
}

func TestDefaultSeedUsers_PasswordEnvOverride(t *testing.T) {
	t.Setenv("TRAQ_SEED_ADMIN_PASSWORD", "override-pass-1")

	seeds := DefaultSeedUsers()
	if seeds[0].Password != "override-pass-1" {
		t.Fatalf("admin seed password = %q, want env override", seeds[0].Password)
	}
	if seeds[1].Password != "User123!" {
		t.Fatalf("user seed password = %q, want default", seeds[1].Password)
	}
}

func TestMemoryStore_NeverReturnsPlaintext(t *testing.T) {
	setCheapArgon2(t)

	s, err := NewMemoryStore(nil)
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	ctx := context.Background()

	u := mustCreate(t, s, "g@example.com", "G", "plain-text-pw", RoleUser)
	if u.PasswordHash == "plain-text-pw" {
		t.Fatalf("plaintext stored as hash")
	}

	got, err := s.GetByUsername(ctx, "g@example.com")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if got.PasswordHash != u.PasswordHash {
		t.Fatalf("hash changed between create and read")
	}
}
