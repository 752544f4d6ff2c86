// Package session defines the database capabilities the migration engine
// depends on. Implementations live in subpackages (see session/postgres).
package session

import "context"

type (
	// Rows is the result of a query. It follows database/sql.Rows.
	Rows interface {
		Next() bool
		Scan(dest ...any) error
		Close() error
		Err() error
	}

	// Querier runs parameterized commands and queries.
	Querier interface {
		Exec(ctx context.Context, query string, args ...any) error
		Query(ctx context.Context, query string, args ...any) (Rows, error)
	}

	// Tx is an open transaction.
	Tx interface {
		Querier
		Commit() error
		Rollback() error
	}

	// Session is a single database connection. Advisory locks are scoped to the
	// session, so every call must go to the same underlying connection.
	Session interface {
		Querier

		// Begin starts a transaction on the session.
		Begin(ctx context.Context) (Tx, error)

		// TryAdvisoryLock attempts to take the session level advisory lock for
		// key without waiting. It reports whether the lock was acquired.
		TryAdvisoryLock(ctx context.Context, key int64) (bool, error)

		// AdvisoryUnlock releases a lock taken with TryAdvisoryLock.
		AdvisoryUnlock(ctx context.Context, key int64) error
	}
)
