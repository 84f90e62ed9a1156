package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is one schema step
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the schema steps for driver
func Migrations(driver string) ([]Migration, error) {
	switch driver {
	case DriverPostgres:
		return postgresMigrations, nil
	case DriverSQLite:
		return sqliteMigrations, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", driver)
	}
}

// EnsureSchema creates any missing tables. Every statement is idempotent.
func EnsureSchema(ctx context.Context, db *sql.DB, driver string) error {
	migrations, err := Migrations(driver)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("failed to apply schema step %d (%s): %w", m.Version, m.Description, err)
		}
	}
	return nil
}

var postgresMigrations = []Migration{
	{
		Version:     1,
		Description: "Create users table",
		SQL: `
			CREATE TABLE IF NOT EXISTS users (
				id BIGSERIAL PRIMARY KEY,
				username VARCHAR(50) NOT NULL,
				email VARCHAR(100) NOT NULL,
				phone VARCHAR(15),
				password VARCHAR(255) NOT NULL,
				role VARCHAR(20) NOT NULL DEFAULT 'member' CHECK (role IN ('admin', 'moderator', 'member')),
				status VARCHAR(20) NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'banned', 'restricted', 'muted')),
				display_name VARCHAR(100),
				bio TEXT,
				avatar VARCHAR(255),
				timezone VARCHAR(50) DEFAULT 'UTC',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				last_active TIMESTAMPTZ,
				CONSTRAINT users_username_key UNIQUE (username),
				CONSTRAINT users_email_key UNIQUE (email)
			);
		`,
	},
	{
		Version:     2,
		Description: "Create invites table",
		SQL: `
			CREATE TABLE IF NOT EXISTS invites (
				id BIGSERIAL PRIMARY KEY,
				invite_code VARCHAR(32) NOT NULL,
				created_by BIGINT REFERENCES users(id),
				email VARCHAR(100),
				phone VARCHAR(15),
				role VARCHAR(20) NOT NULL DEFAULT 'member' CHECK (role IN ('moderator', 'member')),
				expires_at TIMESTAMPTZ NOT NULL,
				used_at TIMESTAMPTZ,
				used_by BIGINT REFERENCES users(id),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CONSTRAINT invites_invite_code_key UNIQUE (invite_code),
				CONSTRAINT invites_redemption_marker CHECK ((used_at IS NULL) = (used_by IS NULL))
			);

			CREATE INDEX IF NOT EXISTS idx_invites_created_at ON invites(created_at DESC);
		`,
	},
	{
		Version:     3,
		Description: "Create role catalog tables",
		SQL: `
			CREATE TABLE IF NOT EXISTS roles (
				id BIGSERIAL PRIMARY KEY,
				name VARCHAR(50) NOT NULL UNIQUE,
				display_name VARCHAR(100) NOT NULL,
				description TEXT,
				level INT NOT NULL DEFAULT 0,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS role_permissions (
				id BIGSERIAL PRIMARY KEY,
				role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
				permission VARCHAR(100) NOT NULL,
				granted BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE (role_id, permission)
			);
		`,
	},
	{
		Version:     4,
		Description: "Create audit_logs table",
		SQL: `
			CREATE TABLE IF NOT EXISTS audit_logs (
				id BIGSERIAL PRIMARY KEY,
				timestamp TIMESTAMPTZ NOT NULL,
				event_type VARCHAR(100) NOT NULL,
				status VARCHAR(20) NOT NULL,
				user_id BIGINT,
				username VARCHAR(255),
				target_user_id BIGINT,
				resource_type VARCHAR(50),
				resource_id VARCHAR(255),
				ip_address VARCHAR(45),
				user_agent TEXT,
				request_id VARCHAR(100),
				message TEXT,
				metadata TEXT
			);

			CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp DESC);
			CREATE INDEX IF NOT EXISTS idx_audit_logs_event_type ON audit_logs(event_type);
			CREATE INDEX IF NOT EXISTS idx_audit_logs_user_id ON audit_logs(user_id);
		`,
	},
}

var sqliteMigrations = []Migration{
	{
		Version:     1,
		Description: "Create users table",
		SQL: `
			CREATE TABLE IF NOT EXISTS users (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				username TEXT NOT NULL UNIQUE,
				email TEXT NOT NULL UNIQUE,
				phone TEXT,
				password TEXT NOT NULL,
				role TEXT NOT NULL DEFAULT 'member' CHECK (role IN ('admin', 'moderator', 'member')),
				status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'banned', 'restricted', 'muted')),
				display_name TEXT,
				bio TEXT,
				avatar TEXT,
				timezone TEXT DEFAULT 'UTC',
				created_at TIMESTAMP NOT NULL,
				last_active TIMESTAMP
			);
		`,
	},
	{
		Version:     2,
		Description: "Create invites table",
		SQL: `
			CREATE TABLE IF NOT EXISTS invites (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				invite_code TEXT NOT NULL UNIQUE,
				created_by INTEGER REFERENCES users(id),
				email TEXT,
				phone TEXT,
				role TEXT NOT NULL DEFAULT 'member' CHECK (role IN ('moderator', 'member')),
				expires_at TIMESTAMP NOT NULL,
				used_at TIMESTAMP,
				used_by INTEGER REFERENCES users(id),
				created_at TIMESTAMP NOT NULL,
				CHECK ((used_at IS NULL) = (used_by IS NULL))
			);

			CREATE INDEX IF NOT EXISTS idx_invites_created_at ON invites(created_at);
		`,
	},
	{
		Version:     3,
		Description: "Create role catalog tables",
		SQL: `
			CREATE TABLE IF NOT EXISTS roles (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL UNIQUE,
				display_name TEXT NOT NULL,
				description TEXT,
				level INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			);

			CREATE TABLE IF NOT EXISTS role_permissions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				role_id INTEGER NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
				permission TEXT NOT NULL,
				granted INTEGER NOT NULL DEFAULT 1,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				UNIQUE (role_id, permission)
			);
		`,
	},
	{
		Version:     4,
		Description: "Create audit_logs table",
		SQL: `
			CREATE TABLE IF NOT EXISTS audit_logs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				timestamp TIMESTAMP NOT NULL,
				event_type TEXT NOT NULL,
				status TEXT NOT NULL,
				user_id INTEGER,
				username TEXT,
				target_user_id INTEGER,
				resource_type TEXT,
				resource_id TEXT,
				ip_address TEXT,
				user_agent TEXT,
				request_id TEXT,
				message TEXT,
				metadata TEXT
			);

			CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp);
		`,
	},
}
