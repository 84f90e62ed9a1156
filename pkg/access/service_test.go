package access

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/platinummonkey/parley/pkg/audit"
	"github.com/platinummonkey/parley/pkg/auth"
	"github.com/platinummonkey/parley/pkg/invites"
	"github.com/platinummonkey/parley/pkg/observability"
	"github.com/platinummonkey/parley/pkg/rbac"
	"github.com/platinummonkey/parley/pkg/sessions"
	"github.com/platinummonkey/parley/pkg/storage/storagetest"
	"github.com/platinummonkey/parley/pkg/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	db       *sql.DB
	svc      *Service
	users    *users.Store
	ledger   *invites.Ledger
	resolver *rbac.Resolver
	auditLog *audit.DBLogger
	metrics  *observability.Metrics
	clock    *clock

	admin *auth.User
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := storagetest.NewSQLiteDB(t)
	clk := &clock{now: time.Now().UTC().Truncate(time.Second)}

	userStore := users.NewStore(db, auth.NewBcryptHasher(bcrypt.MinCost))
	ledger := invites.NewLedger(db, invites.WithClock(clk.Now))
	resolver := rbac.NewResolver(nil)
	manager := sessions.NewManager(sessions.NewMemoryStore(64, time.Hour), userStore, userStore, sessions.WithClock(clk.Now))
	auditLog, err := audit.NewDBLogger(db)
	require.NoError(t, err)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	svc, err := NewService(Dependencies{
		DB:          db,
		Users:       userStore,
		Invites:     ledger,
		Sessions:    manager,
		Resolver:    resolver,
		Audit:       auditLog,
		AuditSearch: auditLog,
		Metrics:     metrics,
		Logger:      observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{}),
	})
	require.NoError(t, err)

	admin, err := userStore.Create(context.Background(), users.NewUser{
		Username: "root",
		Email:    "root@example.com",
		Password: "admin-password",
		Role:     auth.RoleAdmin,
	})
	require.NoError(t, err)

	return &fixture{
		db:       db,
		svc:      svc,
		users:    userStore,
		ledger:   ledger,
		resolver: resolver,
		auditLog: auditLog,
		metrics:  metrics,
		clock:    clk,
		admin:    admin,
	}
}

// member registers a new account through an admin-issued invite
func (f *fixture) member(t *testing.T, name string, role auth.Role) *auth.User {
	t.Helper()
	ctx := context.Background()
	inv, err := f.svc.CreateInvite(ctx, f.admin, InviteParams{Role: role})
	require.NoError(t, err)
	u, err := f.svc.Register(ctx, RegisterParams{
		Username:   name,
		Email:      name + "@example.com",
		Password:   "password123",
		InviteCode: inv.Code,
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) userCount(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n))
	return n
}

func (f *fixture) auditEvents(t *testing.T, types ...audit.EventType) []*audit.Event {
	t.Helper()
	events, err := f.auditLog.Search(context.Background(), audit.SearchFilter{EventTypes: types})
	require.NoError(t, err)
	return events
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	_, err := NewService(Dependencies{})
	assert.Error(t, err)
}

func TestLoginResolvesToUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.member(t, "alice", auth.RoleMember)

	for _, identifier := range []string{"alice", "alice@example.com"} {
		t.Run(identifier, func(t *testing.T) {
			res, err := f.svc.Login(ctx, identifier, "password123")
			require.NoError(t, err)
			assert.Equal(t, alice.ID, res.User.ID)
			assert.True(t, res.ExpiresAt.After(time.Now()))
			assert.Equal(t, f.clock.Now().Add(f.svc.Sessions().TTL()), res.ExpiresAt)

			current, err := f.svc.CurrentUser(ctx, res.Handle)
			require.NoError(t, err)
			assert.Equal(t, alice.ID, current.ID)
		})
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.LoginAttemptsTotal.WithLabelValues(observability.ResultSuccess)))
	assert.Len(t, f.auditEvents(t, audit.EventTypeAuthLogin), 2)
}

func TestLoginFailureShapeIsUniform(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.member(t, "bob", auth.RoleMember)

	_, ghostErr := f.svc.Login(ctx, "ghost@x.com", "anything")
	_, wrongErr := f.svc.Login(ctx, "bob", "wrong-password")

	require.ErrorIs(t, ghostErr, auth.ErrAuthFailure)
	require.ErrorIs(t, wrongErr, auth.ErrAuthFailure)
	assert.Equal(t, ghostErr, wrongErr)
	assert.Equal(t, ghostErr.Error(), wrongErr.Error())

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.LoginAttemptsTotal.WithLabelValues(observability.ResultFailure)))
	assert.Len(t, f.auditEvents(t, audit.EventTypeAuthLoginFailed), 2)
}

func TestLoginFailureAuditOmitsIdentifier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.member(t, "bob", auth.RoleMember)

	// A password typed into the identifier field
	_, err := f.svc.Login(ctx, "  hunter2-secret ", "bob")
	require.ErrorIs(t, err, auth.ErrAuthFailure)

	events := f.auditEvents(t, audit.EventTypeAuthLoginFailed)
	require.Len(t, events, 1)
	assert.NotContains(t, events[0].Metadata, "identifier")
	assert.Equal(t, auth.TokenPrefix(auth.HashToken("hunter2-secret")), events[0].Metadata["identifier_hash"])
	for _, v := range events[0].Metadata {
		assert.NotContains(t, fmt.Sprint(v), "hunter2")
	}
	assert.NotContains(t, events[0].Message, "hunter2")
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, "root", "admin-password")
	require.NoError(t, err)

	authCtx := auth.NewContext(ctx, &auth.AuthContext{User: res.User, SessionHandle: res.Handle})
	require.NoError(t, f.svc.Logout(authCtx, res.Handle))
	require.NoError(t, f.svc.Logout(authCtx, res.Handle))

	_, err = f.svc.CurrentUser(ctx, res.Handle)
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)

	events := f.auditEvents(t, audit.EventTypeAuthLogout)
	require.Len(t, events, 2)
	require.NotNil(t, events[0].UserID)
	assert.Equal(t, f.admin.ID, *events[0].UserID)
}

func TestBannedUserSessionEndsOnNextUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	carol := f.member(t, "carol", auth.RoleMember)

	res, err := f.svc.Login(ctx, "carol", "password123")
	require.NoError(t, err)

	require.NoError(t, f.svc.UpdateUserStatus(ctx, f.admin, carol.ID, auth.StatusBanned))

	_, err = f.svc.CurrentUser(ctx, res.Handle)
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)

	_, err = f.svc.Login(ctx, "carol", "password123")
	assert.ErrorIs(t, err, auth.ErrAuthFailure)
}

func TestHasPermission(t *testing.T) {
	f := newFixture(t)

	admin := &auth.User{Role: auth.RoleAdmin}
	moderator := &auth.User{Role: auth.RoleModerator}
	member := &auth.User{Role: auth.RoleMember}
	stranger := &auth.User{Role: "owner"}

	for _, p := range auth.Permissions() {
		assert.True(t, f.svc.HasPermission(admin, p), p)
		assert.False(t, f.svc.HasPermission(member, p), p)
		assert.False(t, f.svc.HasPermission(stranger, p), p)
		assert.False(t, f.svc.HasPermission(nil, p), p)
	}
	assert.True(t, f.svc.HasPermission(moderator, auth.PermissionDeleteMessages))
	assert.True(t, f.svc.HasPermission(moderator, auth.PermissionCreateInvites))
	assert.False(t, f.svc.HasPermission(moderator, auth.PermissionManageUsers))

	t.Run("admin wildcard survives an empty catalog entry", func(t *testing.T) {
		c, err := rbac.NewCatalog([]rbac.RoleDefinition{
			{Name: auth.RoleAdmin, Rank: 100},
			{Name: auth.RoleModerator, Rank: 70},
			{Name: auth.RoleMember, Rank: 30},
		})
		require.NoError(t, err)
		f.resolver.Replace(c)

		for _, p := range auth.Permissions() {
			assert.True(t, f.svc.HasPermission(admin, p), p)
			assert.False(t, f.svc.HasPermission(moderator, p), p)
		}
	})
}

func TestAuthorize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	member := f.member(t, "dave", auth.RoleMember)

	assert.ErrorIs(t, f.svc.Authorize(ctx, nil, auth.PermissionManageUsers), auth.ErrUnauthenticated)
	assert.ErrorIs(t, f.svc.Authorize(ctx, member, auth.PermissionManageUsers), auth.ErrPermissionDenied)
	assert.NoError(t, f.svc.Authorize(ctx, f.admin, auth.PermissionManageUsers))

	denied := f.auditEvents(t, audit.EventTypeAuthzAccessDenied)
	require.Len(t, denied, 1)
	assert.Equal(t, "manage_users", denied[0].ResourceID)
}

func TestRegisterScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.svc.CreateInvite(ctx, f.admin, InviteParams{Role: auth.RoleMember, TTLHours: 1})
	require.NoError(t, err)

	erin, err := f.svc.Register(ctx, RegisterParams{
		Username:   "erin",
		Email:      "Erin@Example.com",
		Phone:      "+15550001111",
		Password:   "password123",
		InviteCode: inv.Code,
	})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleMember, erin.Role)
	assert.Equal(t, "erin@example.com", erin.Email)

	_, err = f.svc.ValidateInvite(ctx, f.admin, inv.Code)
	assert.Equal(t, auth.InviteAlreadyUsed, auth.InviteReasonOf(err))

	list, err := f.svc.ListInvites(ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, invites.StateRedeemed, list[0].State(f.clock.Now()))
	require.NotNil(t, list[0].UsedBy)
	assert.Equal(t, erin.ID, *list[0].UsedBy)

	_, err = f.svc.Register(ctx, RegisterParams{
		Username:   "frank",
		Email:      "frank@example.com",
		Password:   "password123",
		InviteCode: inv.Code,
	})
	assert.ErrorIs(t, err, auth.ErrInvalidInvite)
	assert.Empty(t, auth.InviteReasonOf(err), "registration does not reveal the reason")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.InviteRedemptionsTotal.WithLabelValues(string(auth.InviteAlreadyUsed))))

	assert.Equal(t, 2, f.userCount(t))
	assert.Len(t, f.auditEvents(t, audit.EventTypeAuthRegister), 1)
}

func TestRegisterGrantsInviteRole(t *testing.T) {
	f := newFixture(t)
	mod := f.member(t, "gina", auth.RoleModerator)
	assert.Equal(t, auth.RoleModerator, mod.Role)
	assert.True(t, f.svc.HasPermission(mod, auth.PermissionCreateInvites))
}

func TestRegisterConflictRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.member(t, "henry", auth.RoleMember)

	inv, err := f.svc.CreateInvite(ctx, f.admin, InviteParams{})
	require.NoError(t, err)

	for _, params := range []RegisterParams{
		{Username: "henry", Email: "other@example.com", Password: "password123", InviteCode: inv.Code},
		{Username: "other", Email: "henry@example.com", Password: "password123", InviteCode: inv.Code},
	} {
		_, err := f.svc.Register(ctx, params)
		assert.ErrorIs(t, err, auth.ErrConflict)
	}

	assert.Equal(t, 2, f.userCount(t), "no new record")
	_, err = f.svc.ValidateInvite(ctx, f.admin, inv.Code)
	assert.NoError(t, err, "failed registration leaves the invite unused")
}

func TestRegisterRejectsBadInvites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	expired, err := f.svc.CreateInvite(ctx, f.admin, InviteParams{TTLHours: 1})
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	tests := []struct {
		name string
		code string
	}{
		{"expired", expired.Code},
		{"unknown", "00000000000000000000000000000000"},
		{"garbage", "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, RegisterParams{
				Username:   "ivan",
				Email:      "ivan@example.com",
				Password:   "password123",
				InviteCode: tt.code,
			})
			assert.ErrorIs(t, err, auth.ErrInvalidInvite)
			assert.Empty(t, auth.InviteReasonOf(err))
		})
	}
	assert.Equal(t, 1, f.userCount(t))
}

func TestRegisterValidatesInputFirst(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(context.Background(), RegisterParams{
		Username:   "jo",
		Email:      "jo@example.com",
		Password:   "password123",
		InviteCode: "00000000000000000000000000000000",
	})
	assert.ErrorIs(t, err, auth.ErrInvalidInput)
}

func TestRegisterConcurrentSameInvite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.svc.CreateInvite(ctx, f.admin, InviteParams{})
	require.NoError(t, err)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
		start     = make(chan struct{})
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := f.svc.Register(ctx, RegisterParams{
				Username:   fmt.Sprintf("racer%d", i),
				Email:      fmt.Sprintf("racer%d@example.com", i),
				Password:   "password123",
				InviteCode: inv.Code,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, auth.ErrInvalidInvite):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, rejected)
	assert.Equal(t, 2, f.userCount(t))
}

func TestCreateInvitePolicy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mod := f.member(t, "kim", auth.RoleModerator)
	member := f.member(t, "lee", auth.RoleMember)

	t.Run("member denied", func(t *testing.T) {
		_, err := f.svc.CreateInvite(ctx, member, InviteParams{})
		assert.ErrorIs(t, err, auth.ErrPermissionDenied)
	})

	t.Run("moderator may invite moderators", func(t *testing.T) {
		inv, err := f.svc.CreateInvite(ctx, mod, InviteParams{Role: auth.RoleModerator, Email: "new@example.com"})
		require.NoError(t, err)
		assert.Equal(t, "kim", inv.CreatedByUsername)
	})

	t.Run("moderator may not invite admins", func(t *testing.T) {
		_, err := f.svc.CreateInvite(ctx, mod, InviteParams{Role: auth.RoleAdmin})
		assert.ErrorIs(t, err, auth.ErrPermissionDenied)
	})

	t.Run("nobody invites admins", func(t *testing.T) {
		_, err := f.svc.CreateInvite(ctx, f.admin, InviteParams{Role: auth.RoleAdmin})
		assert.ErrorIs(t, err, auth.ErrInvalidInput)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := f.svc.CreateInvite(ctx, nil, InviteParams{})
		assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	})

	t.Run("member cannot list", func(t *testing.T) {
		_, err := f.svc.ListInvites(ctx, member)
		assert.ErrorIs(t, err, auth.ErrPermissionDenied)
	})
}

func TestPreviewInvite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.svc.CreateInvite(ctx, f.admin, InviteParams{Role: auth.RoleModerator, Email: "mia@example.com"})
	require.NoError(t, err)

	preview, err := f.svc.PreviewInvite(ctx, inv.Code)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleModerator, preview.Role)
	assert.Equal(t, "mia@example.com", preview.Email)

	_, err = f.svc.PreviewInvite(ctx, "00000000000000000000000000000000")
	assert.ErrorIs(t, err, auth.ErrInvalidInvite)
	assert.Empty(t, auth.InviteReasonOf(err))
}

func TestUserAdministration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mod := f.member(t, "nina", auth.RoleModerator)
	member := f.member(t, "omar", auth.RoleMember)

	t.Run("list requires manage_users", func(t *testing.T) {
		_, err := f.svc.ListUsers(ctx, mod)
		assert.ErrorIs(t, err, auth.ErrPermissionDenied)

		list, err := f.svc.ListUsers(ctx, f.admin)
		require.NoError(t, err)
		assert.Len(t, list, 3)
		for _, u := range list {
			assert.Empty(t, u.PasswordHash)
		}
	})

	t.Run("promote", func(t *testing.T) {
		require.NoError(t, f.svc.UpdateUserRole(ctx, f.admin, member.ID, auth.RoleModerator))
		got, err := f.users.ByID(ctx, member.ID)
		require.NoError(t, err)
		assert.Equal(t, auth.RoleModerator, got.Role)

		// Idempotent
		require.NoError(t, f.svc.UpdateUserRole(ctx, f.admin, member.ID, auth.RoleModerator))

		events := f.auditEvents(t, audit.EventTypeAdminRoleChange)
		require.NotEmpty(t, events)
		assert.Equal(t, "moderator", events[0].Metadata["to"])
	})

	t.Run("moderator cannot manage", func(t *testing.T) {
		err := f.svc.UpdateUserRole(ctx, mod, member.ID, auth.RoleMember)
		assert.ErrorIs(t, err, auth.ErrPermissionDenied)
	})

	t.Run("self change rejected", func(t *testing.T) {
		err := f.svc.UpdateUserRole(ctx, f.admin, f.admin.ID, auth.RoleMember)
		assert.ErrorIs(t, err, auth.ErrInvalidInput)
		err = f.svc.UpdateUserStatus(ctx, f.admin, f.admin.ID, auth.StatusBanned)
		assert.ErrorIs(t, err, auth.ErrInvalidInput)
	})

	t.Run("unknown values and users", func(t *testing.T) {
		assert.ErrorIs(t, f.svc.UpdateUserRole(ctx, f.admin, member.ID, "owner"), auth.ErrInvalidInput)
		assert.ErrorIs(t, f.svc.UpdateUserStatus(ctx, f.admin, member.ID, "gone"), auth.ErrInvalidInput)
		assert.ErrorIs(t, f.svc.UpdateUserRole(ctx, f.admin, 9999, auth.RoleMember), auth.ErrNotFound)
		assert.ErrorIs(t, f.svc.UpdateUserStatus(ctx, f.admin, 9999, auth.StatusMuted), auth.ErrNotFound)
	})
}

func TestRankRulesWithDelegatedManagement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Give moderators manage_users to exercise the rank checks
	c, err := rbac.NewCatalog([]rbac.RoleDefinition{
		{Name: auth.RoleAdmin, Rank: 100},
		{Name: auth.RoleModerator, Rank: 70, Permissions: []auth.Permission{auth.PermissionManageUsers, auth.PermissionCreateInvites}},
		{Name: auth.RoleMember, Rank: 30},
	})
	require.NoError(t, err)
	f.resolver.Replace(c)

	mod := f.member(t, "pat", auth.RoleModerator)
	member := f.member(t, "quinn", auth.RoleMember)

	assert.NoError(t, f.svc.UpdateUserStatus(ctx, mod, member.ID, auth.StatusMuted))
	assert.NoError(t, f.svc.UpdateUserRole(ctx, mod, member.ID, auth.RoleModerator))
	assert.ErrorIs(t, f.svc.UpdateUserRole(ctx, mod, member.ID, auth.RoleAdmin), auth.ErrPermissionDenied)
	assert.ErrorIs(t, f.svc.UpdateUserStatus(ctx, mod, f.admin.ID, auth.StatusBanned), auth.ErrPermissionDenied)
	assert.ErrorIs(t, f.svc.UpdateUserRole(ctx, mod, f.admin.ID, auth.RoleMember), auth.ErrPermissionDenied)
}

func TestSearchAudit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	member := f.member(t, "ruth", auth.RoleMember)

	_, err := f.svc.SearchAudit(ctx, member, audit.SearchFilter{})
	assert.ErrorIs(t, err, auth.ErrPermissionDenied)

	events, err := f.svc.SearchAudit(ctx, f.admin, audit.SearchFilter{EventTypes: []audit.EventType{audit.EventTypeInviteIssued}})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestStorageFailureIsDistinct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Close())

	_, err := f.svc.Login(ctx, "root", "admin-password")
	assert.True(t, auth.IsStorageError(err))
	assert.NotErrorIs(t, err, auth.ErrAuthFailure)

	_, err = f.svc.Register(ctx, RegisterParams{
		Username:   "sam",
		Email:      "sam@example.com",
		Password:   "password123",
		InviteCode: "00000000000000000000000000000000",
	})
	assert.True(t, auth.IsStorageError(err))
	assert.NotErrorIs(t, err, auth.ErrInvalidInvite)
}

func TestAsStorageError(t *testing.T) {
	assert.NoError(t, asStorageError("op", nil))
	assert.Equal(t, auth.ErrConflict, asStorageError("op", auth.ErrConflict))
	assert.Equal(t, auth.InviteReasonOf(auth.NewInviteError(auth.InviteExpired)),
		auth.InviteReasonOf(asStorageError("op", auth.NewInviteError(auth.InviteExpired))))
	assert.True(t, auth.IsStorageError(asStorageError("op", errors.New("commit failed"))))
}
