package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// setCheapArgon2 shrinks hashing cost so store tests stay fast. Correctness
// of the Argon2id parameters themselves is covered in cmd/security/password.
func setCheapArgon2(t *testing.T) {
	t.Helper()

	t.Setenv("TRAQ_ARGON2_MEMORY_KIB", "8192")
	t.Setenv("TRAQ_ARGON2_ITERATIONS", "1")
	t.Setenv("TRAQ_ARGON2_PARALLELISM", "1")
}

// runStoreConformance exercises the Store contract against any implementation.
// Both backends must pass the identical suite: swapping one for the other has
// to be invisible to callers.
func runStoreConformance(t *testing.T, mk func(t *testing.T) Store) {
	t.Helper()

	ctx := context.Background()

	t.Run("ValidateCredentials_OK", func(t *testing.T) {
		s := mk(t)
		mustCreate(t, s, "Alice@Example.com", "Wonder Alice", "s3cret-pw", RoleUser)

		u, err := s.ValidateCredentials(ctx, "alice@example.com", "s3cret-pw")
		if err != nil {
			t.Fatalf("ValidateCredentials: %v", err)
		}
		if u.Username != "Alice@Example.com" {
			t.Fatalf("username = %q, want original casing preserved", u.Username)
		}
		if u.Role != RoleUser {
			t.Fatalf("role = %q", u.Role)
		}
	})

	t.Run("ValidateCredentials_CaseInsensitiveUsername", func(t *testing.T) {
		s := mk(t)
		mustCreate(t, s, "bob@example.com", "Bob", "s3cret-pw", RoleUser)

		if _, err := s.ValidateCredentials(ctx, "  BOB@Example.COM  ", "s3cret-pw"); err != nil {
			t.Fatalf("case-variant login: %v", err)
		}
	})

	t.Run("ValidateCredentials_UnknownAndWrongPasswordIndistinguishable", func(t *testing.T) {
		s := mk(t)
		mustCreate(t, s, "carol@example.com", "Carol", "s3cret-pw", RoleUser)

		_, errUnknown := s.ValidateCredentials(ctx, "nobody@example.com", "s3cret-pw")
		_, errWrongPw := s.ValidateCredentials(ctx, "carol@example.com", "not-the-password")

		if !errors.Is(errUnknown, ErrInvalidCredentials) {
			t.Fatalf("unknown user: got %v, want ErrInvalidCredentials", errUnknown)
		}
		if !errors.Is(errWrongPw, ErrInvalidCredentials) {
			t.Fatalf("wrong password: got %v, want ErrInvalidCredentials", errWrongPw)
		}
		// Same message text either way: no enumeration signal.
		if errUnknown.Error() != errWrongPw.Error() {
			t.Fatalf("messages differ: %q vs %q", errUnknown, errWrongPw)
		}
	})

	t.Run("GetByUsername", func(t *testing.T) {
		s := mk(t)
		created := mustCreate(t, s, "dave@example.com", "Dave", "s3cret-pw", RoleAdmin)

		u, err := s.GetByUsername(ctx, "DAVE@example.com")
		if err != nil {
			t.Fatalf("GetByUsername: %v", err)
		}
		if u.ID != created.ID {
			t.Fatalf("id = %q, want %q", u.ID, created.ID)
		}
		if u.Role != RoleAdmin {
			t.Fatalf("role = %q", u.Role)
		}

		if _, err := s.GetByUsername(ctx, "missing@example.com"); !IsNotFound(err) {
			t.Fatalf("missing user: got %v, want not-found", err)
		}
	})

	t.Run("Create_DefaultsRoleToUser", func(t *testing.T) {
		s := mk(t)

		u, err := s.Create(ctx, CreateUserInput{
			Username: "erin@example.com",
			Password: "s3cret-pw",
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if u.Role != RoleUser {
			t.Fatalf("default role = %q, want %q", u.Role, RoleUser)
		}
		if u.PasswordHash == "" || u.PasswordHash == "s3cret-pw" {
			t.Fatalf("password not hashed")
		}
	})

	t.Run("Create_RejectsInvalidInput", func(t *testing.T) {
		s := mk(t)

		cases := []CreateUserInput{
			{Username: "", Password: "s3cret-pw"},
			{Username: "   ", Password: "s3cret-pw"},
			{Username: "x@example.com", Password: ""},
			{Username: "x@example.com", Password: "s3cret-pw", Role: Role("superuser")},
		}
		for i, in := range cases {
			if _, err := s.Create(ctx, in); !IsInvalidInput(err) {
				t.Fatalf("case %d: got %v, want invalid-input", i, err)
			}
		}
	})

	t.Run("Create_CaseInsensitiveDuplicateConflicts", func(t *testing.T) {
		s := mk(t)
		mustCreate(t, s, "Frank@Example.com", "Frank", "s3cret-pw", RoleUser)

		_, err := s.Create(ctx, CreateUserInput{
			Username: "frank@EXAMPLE.com",
			Password: "other-pw-123",
		})
		if !IsConflict(err) {
			t.Fatalf("duplicate create: got %v, want conflict", err)
		}

		// The failed create must not have mutated state.
		all, err := s.ListAll(ctx)
		if err != nil {
			t.Fatalf("ListAll: %v", err)
		}
		n := 0
		for _, u := range all {
			if u.UsernameNorm == "frank@example.com" {
				n++
			}
		}
		if n != 1 {
			t.Fatalf("got %d frank rows, want 1", n)
		}

		// The original credentials still work.
		if _, err := s.ValidateCredentials(ctx, "frank@example.com", "s3cret-pw"); err != nil {
			t.Fatalf("original credentials broken after conflict: %v", err)
		}
	})

	t.Run("ListAll_OrderedByCreation", func(t *testing.T) {
		s := mk(t)

		t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		for i, name := range []string{"a@example.com", "b@example.com", "c@example.com"} {
			if _, err := s.Create(ctx, CreateUserInput{
				Username: name,
				Password: "s3cret-pw",
				Now:      t0.Add(time.Duration(i) * time.Minute),
			}); err != nil {
				t.Fatalf("Create %s: %v", name, err)
			}
		}

		all, err := s.ListAll(ctx)
		if err != nil {
			t.Fatalf("ListAll: %v", err)
		}
		if len(all) < 3 {
			t.Fatalf("len = %d, want >= 3", len(all))
		}
		for i := 1; i < len(all); i++ {
			if all[i-1].ID > all[i].ID {
				t.Fatalf("not sorted at %d: %q > %q", i, all[i-1].ID, all[i].ID)
			}
		}
	})

	t.Run("Create_RacingSameUsernameExactlyOneWins", func(t *testing.T) {
		s := mk(t)

		const workers = 8
		var wg sync.WaitGroup
		errs := make([]error, workers)

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = s.Create(ctx, CreateUserInput{
					Username: "raced@example.com",
					Password: "s3cret-pw",
				})
			}(i)
		}
		wg.Wait()

		wins, conflicts := 0, 0
		for i, err := range errs {
			switch {
			case err == nil:
				wins++
			case IsConflict(err):
				conflicts++
			default:
				t.Fatalf("worker %d: unexpected error %v", i, err)
			}
		}
		if wins != 1 {
			t.Fatalf("wins = %d, want exactly 1 (conflicts = %d)", wins, conflicts)
		}

		all, err := s.ListAll(ctx)
		if err != nil {
			t.Fatalf("ListAll: %v", err)
		}
		n := 0
		for _, u := range all {
			if u.UsernameNorm == "raced@example.com" {
				n++
			}
		}
		if n != 1 {
			t.Fatalf("got %d raced rows, want 1", n)
		}
	})

	t.Run("RespectsCanceledContext", func(t *testing.T) {
		s := mk(t)

		canceled, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := s.GetByUsername(canceled, "x@example.com"); !errors.Is(err, context.Canceled) {
			t.Fatalf("GetByUsername: got %v, want context.Canceled", err)
		}
		if _, err := s.ListAll(canceled); !errors.Is(err, context.Canceled) {
			t.Fatalf("ListAll: got %v, want context.Canceled", err)
		}
	})
}

func mustCreate(t *testing.T, s Store, username, display, pw string, role Role) User {
	t.Helper()

	u, err := s.Create(context.Background(), CreateUserInput{
		Username:    username,
		DisplayName: display,
		Password:    pw,
		Role:        role,
	})
	if err != nil {
		t.Fatalf("Create %q: %v", username, err)
	}
	return u
}
