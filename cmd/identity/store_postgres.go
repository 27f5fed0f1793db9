package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"traq/cmd/identity/ids"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the credential store over PostgreSQL.
//
// Design notes:
// - The pgx pool is owned by the caller; this store must NOT close it.
// - Schema/table identifiers are safely quoted to avoid SQL injection via identifiers.
// - Username uniqueness is enforced by the database, not by application
//   locking: the unique index on users.username_norm is the second line of
//   defense the application-level pre-check cannot provide under races.
//
// Expected schema:
//
//	CREATE TABLE traq.users (
//	    id            text PRIMARY KEY,
//	    username      text NOT NULL,
//	    username_norm text NOT NULL,
//	    display_name  text NOT NULL DEFAULT '',
//	    role          text NOT NULL,
//	    password_hash text NOT NULL,
//	    created_at    timestamptz NOT NULL,
//	    CONSTRAINT uq_users_username_norm UNIQUE (username_norm)
//	);
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string

	// dummyHash equalizes ValidateCredentials timing when the username is
	// unknown; computed once at construction.
	dummyHash string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the credential store (default "traq").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore with secure defaults.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "traq",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}

	dummy, err := HashPassword("dummy-password-for-timing-only")
	if err != nil {
		return nil, err
	}
	st.dummyHash = dummy

	return st, nil
}

// ValidateCredentials implements Store.
func (s *PostgresStore) ValidateCredentials(ctx context.Context, username, passwordPlain string) (User, error) {
	const op = "identity.ValidateCredentials"

	if s == nil || s.pool == nil {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	u, err := s.getByNorm(ctx, op, NormalizeUsername(username))
	if err != nil {
		if IsNotFound(err) {
			// Equalize timing with the found path.
			_, _ = VerifyPassword(passwordPlain, s.dummyHash)
			return User{}, invalidCredentials(op)
		}
		return User{}, err
	}

	ok, verr := VerifyPassword(passwordPlain, u.PasswordHash)
	if verr != nil || !ok {
		return User{}, invalidCredentials(op)
	}
	return u, nil
}

// GetByUsername implements Store.
func (s *PostgresStore) GetByUsername(ctx context.Context, username string) (User, error) {
	const op = "identity.GetByUsername"

	if s == nil || s.pool == nil {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	return s.getByNorm(ctx, op, NormalizeUsername(username))
}

// ListAll implements Store. Output is ordered by creation (ULID order).
func (s *PostgresStore) ListAll(ctx context.Context) ([]User, error) {
	const op = "identity.ListAll"

	if s == nil || s.pool == nil {
		return nil, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	users := pgIdent(s.schema, "users")

	rows, err := s.pool.Query(ctx,
		`SELECT id, username, username_norm, display_name, role, password_hash, created_at
		   FROM `+users+`
		  ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		var role string
		if err := rows.Scan(&u.ID, &u.Username, &u.UsernameNorm, &u.DisplayName, &role, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Role = Role(role)
		out = append(out, u)
	}
	return out, rows.Err()
}

// Create implements Store.
// The INSERT relies on uq_users_username_norm to resolve races: of two
// concurrent creates for the same normalized username exactly one commits,
// the other observes a unique violation and returns ConflictError.
func (s *PostgresStore) Create(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.Create"

	if s == nil || s.pool == nil {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
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

	users := pgIdent(s.schema, "users")

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+users+` (
		     id, username, username_norm, display_name, role, password_hash, created_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Username, u.UsernameNorm, u.DisplayName, string(u.Role), u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}

	return u, nil
}

// ---- helpers ----

func (s *PostgresStore) getByNorm(ctx context.Context, op, norm string) (User, error) {
	users := pgIdent(s.schema, "users")

	var u User
	var role string
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, username_norm, display_name, role, password_hash, created_at
		   FROM `+users+`
		  WHERE username_norm = $1`,
		norm,
	).Scan(&u.ID, &u.Username, &u.UsernameNorm, &u.DisplayName, &role, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, NotFoundError{Op: op, Resource: "user"}
		}
		return User{}, err
	}
	u.Role = Role(role)
	return u, nil
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer the stable schema constraint name; fall back to a substring heuristic.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch {
	case c == "uq_users_username_norm", strings.Contains(c, "username"):
		return "username", true
	default:
		return "unique", true
	}
}
