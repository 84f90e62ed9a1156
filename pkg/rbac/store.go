package rbac

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/parley/pkg/auth"
	"github.com/platinummonkey/parley/pkg/storage"
)

// Store persists the role catalog in the roles and role_permissions tables
type Store struct {
	db *sql.DB
}

// NewStore creates a new role catalog store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// SeedDefaults inserts the built-in roles and their permissions. Existing
// rows are left untouched so operator edits survive restarts.
func (s *Store) SeedDefaults(ctx context.Context) error {
	return storage.WithTx(ctx, s.db, nil, func(ctx context.Context, tx storage.DBTX) error {
		for _, def := range BuiltInRoles() {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO roles (name, display_name, description, level)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (name) DO NOTHING
			`, string(def.Name), def.DisplayName, def.Description, def.Rank)
			if err != nil {
				return fmt.Errorf("failed to seed role %s: %w", def.Name, err)
			}

			for _, p := range def.Permissions {
				_, err := tx.ExecContext(ctx, `
					INSERT INTO role_permissions (role_id, permission)
					SELECT id, $1 FROM roles WHERE name = $2
					ON CONFLICT (role_id, permission) DO NOTHING
				`, string(p), string(def.Name))
				if err != nil {
					return fmt.Errorf("failed to seed permission %s for role %s: %w", p, def.Name, err)
				}
			}
		}
		return nil
	})
}

// LoadCatalog reads and validates the catalog from the database
func (s *Store) LoadCatalog(ctx context.Context) (*Catalog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.name, r.display_name, COALESCE(r.description, ''), r.level, rp.permission
		FROM roles r
		LEFT JOIN role_permissions rp ON rp.role_id = r.id AND rp.granted = TRUE
		ORDER BY r.level DESC, r.name, rp.permission
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	var defs []RoleDefinition
	index := make(map[string]int)
	for rows.Next() {
		var (
			name, displayName, description string
			level                          int
			permission                     sql.NullString
		)
		if err := rows.Scan(&name, &displayName, &description, &level, &permission); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}

		i, ok := index[name]
		if !ok {
			i = len(defs)
			index[name] = i
			defs = append(defs, RoleDefinition{
				Name:        auth.Role(name),
				DisplayName: displayName,
				Description: description,
				Rank:        level,
				Permissions: []auth.Permission{},
			})
		}
		if permission.Valid {
			defs[i].Permissions = append(defs[i].Permissions, auth.Permission(permission.String))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}

	c, err := NewCatalog(defs)
	if err != nil {
		return nil, fmt.Errorf("invalid role catalog in database: %w", err)
	}
	return c, nil
}

// Refresh loads the catalog and installs it into resolver. On failure the
// resolver keeps its current catalog.
func (s *Store) Refresh(ctx context.Context, resolver *Resolver) error {
	c, err := s.LoadCatalog(ctx)
	if err != nil {
		return err
	}
	resolver.Replace(c)
	return nil
}
