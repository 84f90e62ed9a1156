// Package storagetest provides database fixtures for store tests.
package storagetest

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/platinummonkey/parley/pkg/storage"
	"github.com/stretchr/testify/require"
)

var dbCounter atomic.Int64

// NewSQLiteDB returns an in-memory SQLite database with the full schema.
// The pool is limited to one connection so concurrent callers queue on it,
// which mirrors how a single-writer store serializes conflicting writes.
func NewSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:parley_test_%d?mode=memory&cache=shared&_foreign_keys=on", dbCounter.Add(1))
	db, err := sql.Open(storage.DriverSQLite, dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	require.NoError(t, storage.EnsureSchema(context.Background(), db, storage.DriverSQLite))

	t.Cleanup(func() {
		db.Close()
	})
	return db
}

// InsertUser writes a user row directly, bypassing hashing and validation
func InsertUser(t *testing.T, db *sql.DB, username, email, passwordHash, role, status string) int64 {
	t.Helper()

	var id int64
	err := db.QueryRow(`
		INSERT INTO users (username, email, password, role, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, username, email, passwordHash, role, status, time.Now().UTC()).Scan(&id)
	require.NoError(t, err)
	return id
}
