//go:build integration

package access

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/parley/pkg/audit"
	"github.com/platinummonkey/parley/pkg/auth"
	"github.com/platinummonkey/parley/pkg/invites"
	"github.com/platinummonkey/parley/pkg/observability"
	"github.com/platinummonkey/parley/pkg/rbac"
	"github.com/platinummonkey/parley/pkg/sessions"
	"github.com/platinummonkey/parley/pkg/storage"
	"github.com/platinummonkey/parley/pkg/users"
)

// setupPostgres starts a PostgreSQL container and opens it with the schema applied
func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("parley_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := storage.DefaultConfig()
	cfg.Driver = storage.DriverPostgres
	cfg.URL = connStr
	db, err := storage.Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func newPostgresService(t *testing.T, db *sql.DB) (*Service, *auth.User) {
	t.Helper()

	userStore := users.NewStore(db, auth.NewBcryptHasher(bcrypt.MinCost))
	auditLog, err := audit.NewDBLogger(db)
	require.NoError(t, err)

	svc, err := NewService(Dependencies{
		DB:          db,
		Users:       userStore,
		Invites:     invites.NewLedger(db),
		Sessions:    sessions.NewManager(sessions.NewMemoryStore(64, time.Hour), userStore, userStore),
		Resolver:    rbac.NewResolver(nil),
		Audit:       auditLog,
		AuditSearch: auditLog,
		Metrics:     observability.NewMetrics(prometheus.NewRegistry()),
		Logger:      observability.NewLogger(observability.ErrorLevel, io.Discard),
	})
	require.NoError(t, err)

	admin, err := userStore.Create(context.Background(), users.NewUser{
		Username: "root",
		Email:    "root@example.com",
		Password: "admin-password",
		Role:     auth.RoleAdmin,
	})
	require.NoError(t, err)
	return svc, admin
}

func TestPostgresConcurrentRegistration(t *testing.T) {
	db := setupPostgres(t)
	svc, admin := newPostgresService(t, db)
	ctx := context.Background()

	inv, err := svc.CreateInvite(ctx, admin, InviteParams{})
	require.NoError(t, err)

	const attempts = 24
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := svc.Register(ctx, RegisterParams{
				Username:   fmt.Sprintf("racer%02d", i),
				Email:      fmt.Sprintf("racer%02d@example.com", i),
				Password:   "password123",
				InviteCode: inv.Code,
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			failures = append(failures, err)
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	for _, err := range failures {
		assert.ErrorIs(t, err, auth.ErrInvalidInvite)
	}

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count))
	assert.Equal(t, 2, count, "only the winner's account survives")
}

func TestPostgresConcurrentSameUsername(t *testing.T) {
	db := setupPostgres(t)
	svc, admin := newPostgresService(t, db)
	ctx := context.Background()

	codes := make([]string, 8)
	for i := range codes {
		inv, err := svc.CreateInvite(ctx, admin, InviteParams{})
		require.NoError(t, err)
		codes[i] = inv.Code
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i, code := range codes {
		wg.Add(1)
		go func(i int, code string) {
			defer wg.Done()
			_, err := svc.Register(ctx, RegisterParams{
				Username:   "alice",
				Email:      fmt.Sprintf("alice%d@example.com", i),
				Password:   "password123",
				InviteCode: code,
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			assert.ErrorIs(t, err, auth.ErrConflict)
		}(i, code)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)

	// Losers' invites were rolled back and remain usable
	list, err := svc.ListInvites(ctx, admin)
	require.NoError(t, err)
	redeemed := 0
	for _, inv := range list {
		if inv.Redeemed() {
			redeemed++
		}
	}
	assert.Equal(t, 1, redeemed)
}

func TestPostgresExpiredInviteRejected(t *testing.T) {
	db := setupPostgres(t)
	svc, admin := newPostgresService(t, db)
	ctx := context.Background()

	inv, err := svc.CreateInvite(ctx, admin, InviteParams{})
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE invites SET expires_at = $1 WHERE invite_code = $2`, time.Now().UTC().Add(-time.Minute), inv.Code)
	require.NoError(t, err)

	_, err = svc.ValidateInvite(ctx, admin, inv.Code)
	assert.Equal(t, auth.InviteExpired, auth.InviteReasonOf(err))

	_, err = svc.Register(ctx, RegisterParams{
		Username:   "late",
		Email:      "late@example.com",
		Password:   "password123",
		InviteCode: inv.Code,
	})
	assert.ErrorIs(t, err, auth.ErrInvalidInvite)
}
