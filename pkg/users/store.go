package users

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/platinummonkey/parley/pkg/auth"
	"github.com/platinummonkey/parley/pkg/storage"
)

const userColumns = `id, username, email, COALESCE(phone, ''), password, role, status,
	COALESCE(display_name, ''), COALESCE(avatar, ''), COALESCE(bio, ''), COALESCE(timezone, ''),
	created_at, last_active`

// Store is the credential store
type Store struct {
	db     *sql.DB
	q      storage.DBTX
	hasher auth.PasswordHasher
	now    func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used for created_at and last_active
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a credential store over db
func NewStore(db *sql.DB, hasher auth.PasswordHasher, opts ...Option) *Store {
	s := &Store{
		db:     db,
		q:      db,
		hasher: hasher,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithTx returns a copy of the store whose statements run on tx
func (s *Store) WithTx(tx storage.DBTX) *Store {
	clone := *s
	clone.q = tx
	return &clone
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*auth.User, error) {
	var (
		u          auth.User
		role       string
		status     string
		lastActive sql.NullTime
	)
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.Phone,
		&u.PasswordHash,
		&role,
		&status,
		&u.DisplayName,
		&u.Avatar,
		&u.Bio,
		&u.Timezone,
		&u.CreatedAt,
		&lastActive,
	)
	if err != nil {
		return nil, err
	}
	// Unrecognised values are kept as-is; the permission resolver fails
	// closed on unknown roles and only StatusActive may authenticate.
	u.Role = auth.Role(role)
	u.Status = auth.Status(status)
	if lastActive.Valid {
		t := lastActive.Time
		u.LastActiveAt = &t
	}
	return &u, nil
}

// Verify authenticates identifier (username or email) with password. Every
// rejection is auth.ErrAuthFailure. On success last_active is refreshed.
func (s *Store) Verify(ctx context.Context, identifier, password string) (*auth.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		s.hasher.CompareDummy(password)
		return nil, auth.ErrAuthFailure
	}

	// A username match wins over an email match
	row := s.q.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1 OR email = $2
		ORDER BY CASE WHEN username = $1 THEN 0 ELSE 1 END
		LIMIT 1
	`, identifier, strings.ToLower(identifier))

	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		s.hasher.CompareDummy(password)
		return nil, auth.ErrAuthFailure
	}
	if err != nil {
		return nil, auth.NewStorageError("verify credentials", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, auth.ErrAuthFailure
	}
	if !user.IsActive() {
		return nil, auth.ErrAuthFailure
	}

	now := s.timestamp()
	if _, err := s.q.ExecContext(ctx, `UPDATE users SET last_active = $1 WHERE id = $2`, now, user.ID); err != nil {
		return nil, auth.NewStorageError("touch last_active", err)
	}
	user.LastActiveAt = &now

	return user, nil
}

// Create inserts a new active account. A taken username or email is
// auth.ErrConflict whether caught by the pre-check or by the constraint.
func (s *Store) Create(ctx context.Context, in NewUser) (*auth.User, error) {
	in, err := in.Validate()
	if err != nil {
		return nil, err
	}

	var exists int
	err = s.q.QueryRowContext(ctx, `
		SELECT 1 FROM users WHERE username = $1 OR email = $2 LIMIT 1
	`, in.Username, in.Email).Scan(&exists)
	switch {
	case err == nil:
		return nil, auth.ErrConflict
	case !errors.Is(err, sql.ErrNoRows):
		return nil, auth.NewStorageError("check user uniqueness", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &auth.User{
		Username:     in.Username,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: hash,
		Role:         in.Role,
		Status:       auth.StatusActive,
		Timezone:     "UTC",
		CreatedAt:    s.timestamp(),
	}

	var phone sql.NullString
	if in.Phone != "" {
		phone = sql.NullString{String: in.Phone, Valid: true}
	}

	err = s.q.QueryRowContext(ctx, `
		INSERT INTO users (username, email, phone, password, role, status, timezone, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`,
		user.Username,
		user.Email,
		phone,
		user.PasswordHash,
		string(user.Role),
		string(user.Status),
		user.Timezone,
		user.CreatedAt,
	).Scan(&user.ID)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return nil, auth.ErrConflict
		}
		return nil, auth.NewStorageError("create user", err)
	}

	return user, nil
}

// ByID returns the user with id, or auth.ErrNotFound
func (s *Store) ByID(ctx context.Context, id int64) (*auth.User, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, auth.NewStorageError("get user", err)
	}
	return user, nil
}

// List returns every user, newest first. Password hashes are cleared.
func (s *Store) List(ctx context.Context) ([]*auth.User, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, auth.NewStorageError("list users", err)
	}
	defer rows.Close()

	users := []*auth.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, auth.NewStorageError("scan user", err)
		}
		user.PasswordHash = ""
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, auth.NewStorageError("list users", err)
	}
	return users, nil
}

// UpdateRole overwrites the role of user id. Setting the current role again
// succeeds. Policy checks belong to the caller.
func (s *Store) UpdateRole(ctx context.Context, id int64, role auth.Role) error {
	if !role.Valid() {
		return auth.InvalidInputf("unknown role %q", role)
	}
	return s.updateColumn(ctx, "update role", `UPDATE users SET role = $1 WHERE id = $2`, string(role), id)
}

// UpdateStatus overwrites the status of user id. Setting the current status
// again succeeds. Policy checks belong to the caller.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status auth.Status) error {
	if !status.Valid() {
		return auth.InvalidInputf("unknown status %q", status)
	}
	return s.updateColumn(ctx, "update status", `UPDATE users SET status = $1 WHERE id = $2`, string(status), id)
}

func (s *Store) updateColumn(ctx context.Context, op, query string, value string, id int64) error {
	res, err := s.q.ExecContext(ctx, query, value, id)
	if err != nil {
		return auth.NewStorageError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return auth.NewStorageError(op, err)
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}
