// Package storage provides the relational and key-value plumbing shared by the
// access-control stores.
//
// # Drivers
//
// Two database/sql drivers are supported:
//
//	postgres - github.com/lib/pq, production deployments
//	sqlite3  - github.com/mattn/go-sqlite3, single-node installs and tests
//
// Queries are written with $N placeholders, which both drivers accept.
//
// # Transactions
//
// Stores accept a DBTX so the same code runs against *sql.DB or *sql.Tx:
//
//	err := storage.WithTx(ctx, db, nil, func(ctx context.Context, tx storage.DBTX) error {
//		user, err := users.WithTx(tx).Create(ctx, req)
//		...
//		_, err = invites.WithTx(tx).Redeem(ctx, code, user.ID)
//		return err
//	})
//
// # Constraints
//
// The schema carries UNIQUE constraints on users.username, users.email and
// invites.invite_code. IsUniqueViolation recognises a violated constraint
// from either driver so stores can report ErrConflict when a check-then-insert
// race is lost.
//
// # Redis
//
// NewRedisClient builds a go-redis client from a URL and verifies connectivity.
// It backs the Redis session store and the distributed login limiter.
package storage
