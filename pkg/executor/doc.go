// Package executor applies versioned SQL migrations to PostgreSQL.
//
// The executor resolves migrations with the migrator package, compares them
// with the Flyway compatible history table managed by the history package and
// applies whatever is pending. Scripts are split into statements by the parser
// package, which also decides how each statement may be executed.
//
// # Core Components
//
//   - Executor: runs Migrate, Validate and Info against one session
//   - Plan: the applied, pending, missing and conflicting migrations
//   - ValidationError: every violation found by a validation pass
//   - ExecutionError: the failing statement of a migration and its cause
//
// # Usage Example
//
//	sess, err := postgres.Open(ctx, postgres.DriverPQ, dsn)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sess.Close()
//
//	exec := executor.New(executor.Config{
//		Session:     sess,
//		Locations:   []string{"filesystem:db/migration"},
//		Schemas:     []string{"app", "audit"},
//		LockTimeout: time.Minute,
//	})
//
//	result, err := exec.Migrate(ctx)
//	switch {
//	case errors.Is(err, executor.ErrValidation):
//		// history and scripts disagree, nothing was applied
//	case err != nil:
//		log.Fatal(err)
//	default:
//		fmt.Printf("Applied %d migration(s)\n", result.MigrationsExecuted)
//	}
//
// # Execution Semantics
//
// Pending migrations run in ascending version order. A migration whose
// statements can all run in a transaction is applied in a single transaction
// together with its history entry, so either both are committed or neither is.
// A migration containing a non-transactional statement (CREATE INDEX
// CONCURRENTLY, ALTER TYPE ... ADD VALUE, VACUUM) runs statement by statement
// and its entry is written after the last statement succeeds. Such a migration
// can leave partial changes behind when it fails or is cancelled.
//
// The first failing migration is recorded with success=false and stops the
// run. Failed entries do not count as applied, so the migration is attempted
// again by the next run.
//
// # Concurrency
//
// Every Migrate and Validate run holds a session level advisory lock on the
// history table. A second run against the same table waits for the lock, up
// to Config.LockTimeout.
package executor
