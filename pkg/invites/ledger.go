package invites

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/platinummonkey/parley/pkg/auth"
	"github.com/platinummonkey/parley/pkg/storage"
)

const (
	// DefaultTTL applies when an invite is issued without an explicit lifetime
	DefaultTTL = 24 * time.Hour

	// DefaultMaxTTL is the longest lifetime accepted unless configured otherwise
	DefaultMaxTTL = 30 * 24 * time.Hour

	maxCodeAttempts = 3
)

const inviteColumns = `id, invite_code, created_by, email, phone, role, expires_at, used_at, used_by, created_at`

// IssueParams describes a new invite. Zero values take the ledger defaults.
type IssueParams struct {
	CreatorID int64
	Email     string
	Phone     string
	Role      auth.Role
	TTLHours  int
}

// Policy bounds invite lifetimes
type Policy struct {
	DefaultTTL time.Duration
	MaxTTL     time.Duration
}

// Ledger issues, validates and redeems invites
type Ledger struct {
	db     *sql.DB
	q      storage.DBTX
	codes  *auth.TokenGenerator
	policy Policy
	now    func() time.Time
}

// Option configures a Ledger
type Option func(*Ledger)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithPolicy overrides the lifetime policy. Zero fields keep their defaults.
func WithPolicy(p Policy) Option {
	return func(l *Ledger) {
		if p.DefaultTTL > 0 {
			l.policy.DefaultTTL = p.DefaultTTL
		}
		if p.MaxTTL > 0 {
			l.policy.MaxTTL = p.MaxTTL
		}
	}
}

// NewLedger creates an invite ledger over db
func NewLedger(db *sql.DB, opts ...Option) *Ledger {
	l := &Ledger{
		db:     db,
		q:      db,
		codes:  auth.NewInviteCodeGenerator(),
		policy: Policy{DefaultTTL: DefaultTTL, MaxTTL: DefaultMaxTTL},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// WithTx returns a copy of the ledger whose statements run on tx
func (l *Ledger) WithTx(tx storage.DBTX) *Ledger {
	clone := *l
	clone.q = tx
	return &clone
}

// Policy returns the effective lifetime policy
func (l *Ledger) Policy() Policy {
	return l.policy
}

func (l *Ledger) timestamp() time.Time {
	return l.now().UTC().Truncate(time.Microsecond)
}

var validate = validator.New()

func (l *Ledger) normalize(p IssueParams) (IssueParams, time.Duration, error) {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Phone = strings.TrimSpace(p.Phone)
	if p.Role == "" {
		p.Role = auth.RoleMember
	}

	if !p.Role.Valid() {
		return p, 0, auth.InvalidInputf("unknown role %q", p.Role)
	}
	if !Grantable(p.Role) {
		return p, 0, auth.InvalidInputf("role %q cannot be granted by invite", p.Role)
	}
	if err := validate.Var(p.Email, "omitempty,max=100,email"); err != nil {
		return p, 0, auth.InvalidInputf("email is not a valid address")
	}
	if err := validate.Var(p.Phone, "omitempty,max=15"); err != nil {
		return p, 0, auth.InvalidInputf("phone must be at most 15 characters")
	}

	maxHours := int(l.policy.MaxTTL / time.Hour)
	ttl := l.policy.DefaultTTL
	switch {
	case p.TTLHours < 0:
		return p, 0, auth.InvalidInputf("ttl_hours must not be negative")
	case p.TTLHours > maxHours:
		// Compared in hours so the multiplication below cannot overflow
		return p, 0, auth.InvalidInputf("ttl_hours must be at most %d", maxHours)
	case p.TTLHours > 0:
		ttl = time.Duration(p.TTLHours) * time.Hour
	}
	if ttl > l.policy.MaxTTL {
		return p, 0, auth.InvalidInputf("ttl_hours must be at most %d", maxHours)
	}
	return p, ttl, nil
}

// Issue persists a new unredeemed invite with a fresh random code. Whether
// the creator may issue invites is the caller's decision.
func (l *Ledger) Issue(ctx context.Context, params IssueParams) (*Invite, error) {
	params, ttl, err := l.normalize(params)
	if err != nil {
		return nil, err
	}

	now := l.timestamp()
	inv := &Invite{
		CreatedBy: params.CreatorID,
		Email:     params.Email,
		Phone:     params.Phone,
		Role:      params.Role,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	for attempt := 1; ; attempt++ {
		code, err := l.codes.Generate()
		if err != nil {
			return nil, err
		}
		inv.Code = code

		err = l.q.QueryRowContext(ctx, `
			INSERT INTO invites (invite_code, created_by, email, phone, role, expires_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`,
			inv.Code,
			nullInt64(inv.CreatedBy),
			nullString(inv.Email),
			nullString(inv.Phone),
			string(inv.Role),
			inv.ExpiresAt,
			inv.CreatedAt,
		).Scan(&inv.ID)
		if err == nil {
			return inv, nil
		}
		// A code collision is astronomically unlikely; anything else is fatal
		if !storage.IsUniqueViolation(err) || attempt >= maxCodeAttempts {
			return nil, auth.NewStorageError("issue invite", err)
		}
	}
}

// Validate returns the invite for code if it is redeemable now. Otherwise
// it returns an *auth.InviteError naming the reason.
func (l *Ledger) Validate(ctx context.Context, code string) (*Invite, error) {
	inv, err := l.byCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := inv.check(l.timestamp()); err != nil {
		return nil, err
	}
	return inv, nil
}

// Redeem marks the invite used by userID in a single conditional write. It
// succeeds only while the invite is unredeemed and unexpired at the moment
// of the write; every other caller gets an *auth.InviteError.
func (l *Ledger) Redeem(ctx context.Context, code string, userID int64) (*Invite, error) {
	code = normalizeCode(code)
	if !l.codes.ValidFormat(code) {
		return nil, auth.NewInviteError(auth.InviteNotFound)
	}

	now := l.timestamp()
	row := l.q.QueryRowContext(ctx, `
		UPDATE invites
		SET used_at = $1, used_by = $2
		WHERE invite_code = $3
		  AND used_at IS NULL
		  AND expires_at > $1
		RETURNING `+inviteColumns,
		now, userID, code)

	inv, err := scanInvite(row)
	if err == nil {
		return inv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, auth.NewStorageError("redeem invite", err)
	}

	// Nothing matched; find out why
	current, err := l.byCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := current.check(now); err != nil {
		return nil, err
	}
	// Unredeemed and unexpired yet the update missed: the row changed between
	// the two statements, which only a concurrent redemption can do.
	return nil, auth.NewInviteError(auth.InviteAlreadyUsed)
}

// List returns every invite, newest first, with the creator's username
func (l *Ledger) List(ctx context.Context) ([]*Invite, error) {
	rows, err := l.q.QueryContext(ctx, `
		SELECT i.id, i.invite_code, i.created_by, i.email, i.phone, i.role,
			i.expires_at, i.used_at, i.used_by, i.created_at,
			COALESCE(u.username, '')
		FROM invites i
		LEFT JOIN users u ON u.id = i.created_by
		ORDER BY i.created_at DESC, i.id DESC
	`)
	if err != nil {
		return nil, auth.NewStorageError("list invites", err)
	}
	defer rows.Close()

	invites := []*Invite{}
	for rows.Next() {
		var creator string
		inv, err := scanInvite(rows, &creator)
		if err != nil {
			return nil, auth.NewStorageError("scan invite", err)
		}
		inv.CreatedByUsername = creator
		invites = append(invites, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, auth.NewStorageError("list invites", err)
	}
	return invites, nil
}

func (l *Ledger) byCode(ctx context.Context, code string) (*Invite, error) {
	code = normalizeCode(code)
	if !l.codes.ValidFormat(code) {
		return nil, auth.NewInviteError(auth.InviteNotFound)
	}

	row := l.q.QueryRowContext(ctx, `SELECT `+inviteColumns+` FROM invites WHERE invite_code = $1`, code)
	inv, err := scanInvite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.NewInviteError(auth.InviteNotFound)
	}
	if err != nil {
		return nil, auth.NewStorageError("get invite", err)
	}
	return inv, nil
}

func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvite(row rowScanner, extra ...any) (*Invite, error) {
	var (
		inv       Invite
		createdBy sql.NullInt64
		email     sql.NullString
		phone     sql.NullString
		role      string
		usedAt    sql.NullTime
		usedBy    sql.NullInt64
	)
	dest := []any{
		&inv.ID,
		&inv.Code,
		&createdBy,
		&email,
		&phone,
		&role,
		&inv.ExpiresAt,
		&usedAt,
		&usedBy,
		&inv.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	inv.CreatedBy = createdBy.Int64
	inv.Email = email.String
	inv.Phone = phone.String
	inv.Role = auth.Role(role)
	if usedAt.Valid {
		t := usedAt.Time
		inv.UsedAt = &t
	}
	if usedBy.Valid {
		id := usedBy.Int64
		inv.UsedBy = &id
	}
	return &inv, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

// String renders a short identifier for logs without exposing the code
func (i *Invite) String() string {
	return fmt.Sprintf("invite %d (%s...)", i.ID, auth.TokenPrefix(i.Code))
}
