package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/platinummonkey/parley/pkg/contextkeys"
	"github.com/platinummonkey/parley/pkg/observability"
	"github.com/platinummonkey/parley/pkg/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDBLogger(t *testing.T) *DBLogger {
	t.Helper()
	l, err := NewDBLogger(storagetest.NewSQLiteDB(t))
	require.NoError(t, err)
	return l
}

func TestNewDBLoggerRequiresDB(t *testing.T) {
	_, err := NewDBLogger(nil)
	assert.Error(t, err)
}

func TestDBLoggerLogAndSearch(t *testing.T) {
	l := newTestDBLogger(t)

	ctx := observability.WithRequestID(context.Background(), "req-1")
	ctx = contextkeys.WithClientIP(ctx, "198.51.100.4")
	ctx = contextkeys.WithUserAgent(ctx, "test-agent")

	login := NewEvent(ctx, EventTypeAuthLogin, EventStatusSuccess).
		WithActor(7, "alice").
		WithResource(ResourceTypeSession, "").
		WithMessage("login succeeded")
	require.NoError(t, l.Log(ctx, login))
	assert.NotZero(t, login.ID)

	role := NewEvent(ctx, EventTypeAdminRoleChange, EventStatusSuccess).
		WithActor(1, "admin").
		WithTarget(7).
		WithResource(ResourceTypeUser, "7").
		WithMetadata("from", "member").
		WithMetadata("to", "moderator")
	role.Timestamp = login.Timestamp.Add(time.Second)
	require.NoError(t, l.Log(ctx, role))

	failed := NewEvent(context.Background(), EventTypeAuthLoginFailed, EventStatusFailure)
	failed.Timestamp = login.Timestamp.Add(2 * time.Second)
	require.NoError(t, l.Log(context.Background(), failed))

	t.Run("all newest first", func(t *testing.T) {
		events, err := l.Search(context.Background(), SearchFilter{})
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Equal(t, EventTypeAuthLoginFailed, events[0].EventType)
		assert.Equal(t, EventTypeAdminRoleChange, events[1].EventType)
		assert.Equal(t, EventTypeAuthLogin, events[2].EventType)
	})

	t.Run("round trip", func(t *testing.T) {
		events, err := l.Search(context.Background(), SearchFilter{EventTypes: []EventType{EventTypeAdminRoleChange}})
		require.NoError(t, err)
		require.Len(t, events, 1)
		got := events[0]
		require.NotNil(t, got.UserID)
		assert.EqualValues(t, 1, *got.UserID)
		require.NotNil(t, got.TargetUserID)
		assert.EqualValues(t, 7, *got.TargetUserID)
		assert.Equal(t, "admin", got.Username)
		assert.Equal(t, ResourceTypeUser, got.ResourceType)
		assert.Equal(t, "198.51.100.4", got.IPAddress)
		assert.Equal(t, "test-agent", got.UserAgent)
		assert.Equal(t, "req-1", got.RequestID)
		assert.Equal(t, "moderator", got.Metadata["to"])
	})

	t.Run("by user", func(t *testing.T) {
		uid := int64(7)
		events, err := l.Search(context.Background(), SearchFilter{UserID: &uid})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeAuthLogin, events[0].EventType)
	})

	t.Run("by status", func(t *testing.T) {
		events, err := l.Search(context.Background(), SearchFilter{Status: EventStatusFailure})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Nil(t, events[0].UserID)
	})

	t.Run("time range and paging", func(t *testing.T) {
		start := login.Timestamp.Add(500 * time.Millisecond)
		events, err := l.Search(context.Background(), SearchFilter{StartTime: &start})
		require.NoError(t, err)
		assert.Len(t, events, 2)

		events, err = l.Search(context.Background(), SearchFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeAdminRoleChange, events[0].EventType)
	})
}

func TestDBLoggerCleanup(t *testing.T) {
	l := newTestDBLogger(t)
	ctx := context.Background()

	old := NewEvent(ctx, EventTypeAuthLogout, EventStatusSuccess)
	old.Timestamp = time.Now().UTC().Add(-100 * 24 * time.Hour)
	require.NoError(t, l.Log(ctx, old))
	require.NoError(t, l.Log(ctx, NewEvent(ctx, EventTypeAuthLogout, EventStatusSuccess)))

	n, err := l.Cleanup(ctx, 90*24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	events, err := l.Search(ctx, SearchFilter{})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestDBLoggerInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	l, err := NewDBLogger(db)
	require.NoError(t, err)

	mock.ExpectQuery("INSERT INTO audit_logs").WillReturnError(errors.New("disk full"))
	err = l.Log(context.Background(), NewEvent(context.Background(), EventTypeAuthLogin, EventStatusSuccess))
	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}
