package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/pseudomuto/dumbo/pkg/history"
	"github.com/pseudomuto/dumbo/pkg/migrator"
	"github.com/pseudomuto/dumbo/pkg/parser"
	"github.com/pseudomuto/dumbo/pkg/utils"
)

// execute applies the pending migrations with search_path set to the first
// schema, restoring the previous search_path afterwards.
func (e *Executor) execute(ctx context.Context, log *slog.Logger, plan *Plan, result *Result) (err error) {
	if len(plan.Pending) == 0 {
		log.Info("Schema is up to date", "schema", result.Schema)
		return nil
	}

	original, err := e.repo.SearchPath(ctx)
	if err != nil {
		return err
	}

	if err := e.repo.SetSearchPath(ctx, utils.QuoteIdentifier(result.Schema)); err != nil {
		return err
	}

	defer func() {
		if rerr := e.repo.SetSearchPath(context.WithoutCancel(ctx), original); rerr != nil && err == nil {
			err = rerr
		}
	}()

	for _, m := range plan.Pending {
		if err := ctx.Err(); err != nil {
			return err
		}

		entry, err := e.apply(ctx, log, m)
		if err != nil {
			return err
		}

		result.Applied = append(result.Applied, entry)
	}

	return nil
}

// apply runs a single migration and records its outcome.
func (e *Executor) apply(ctx context.Context, log *slog.Logger, m *migrator.Migration) (*history.Entry, error) {
	log = log.With("version", m.Version.String(), "script", m.Script)

	statements, err := parser.Split(string(m.Content))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", m.Script)
	}

	start := time.Now()
	transactional := true
	for _, stmt := range statements {
		switch stmt.Kind {
		case parser.Unsupported:
			if _, err := e.recordFailure(ctx, m, start); err != nil {
				return nil, err
			}
			return nil, &UnsupportedStatementError{
				Script:    m.Script,
				Version:   m.Version,
				Line:      stmt.Line,
				Statement: stmt.Text,
			}
		case parser.NonTransactional:
			transactional = false
		}
	}

	log.Info("Applying migration", "description", m.Description, "statements", len(statements), "transactional", transactional)

	var entry *history.Entry
	if transactional {
		entry, err = e.applyInTransaction(ctx, m, statements, start)
	} else {
		entry, err = e.applyOnSession(ctx, m, statements, start)
	}

	if err != nil {
		log.Error("Migration failed", "duration", time.Since(start), "error", err)
		return nil, err
	}

	log.Info("Migration applied", "rank", entry.InstalledRank, "duration", entry.ExecutionTime)
	return entry, nil
}

// applyInTransaction runs every statement and appends the success entry in one
// transaction.
func (e *Executor) applyInTransaction(
	ctx context.Context,
	m *migrator.Migration,
	statements []*parser.Statement,
	start time.Time,
) (*history.Entry, error) {
	tx, err := e.sess.Begin(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrapf(err, "failed to begin transaction for %s", m.Script)
	}

	for _, stmt := range statements {
		if err := tx.Exec(ctx, stmt.Text); err != nil {
			_ = tx.Rollback()
			return nil, e.failed(ctx, m, stmt, start, err)
		}
	}

	entry, err := e.repo.Append(ctx, tx, newEntry(m, start, true))
	if err != nil {
		_ = tx.Rollback()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, e.failed(ctx, m, nil, start, errors.Wrap(err, "failed to commit"))
	}

	return entry, nil
}

// applyOnSession runs each statement on its own and appends the success entry
// after the last one.
func (e *Executor) applyOnSession(
	ctx context.Context,
	m *migrator.Migration,
	statements []*parser.Statement,
	start time.Time,
) (*history.Entry, error) {
	for _, stmt := range statements {
		if err := e.sess.Exec(ctx, stmt.Text); err != nil {
			return nil, e.failed(ctx, m, stmt, start, err)
		}
	}

	return e.repo.Append(ctx, e.sess, newEntry(m, start, true))
}

// failed records a failure entry and builds the *ExecutionError for stmt. A
// cancelled run records nothing and returns the context error.
func (e *Executor) failed(ctx context.Context, m *migrator.Migration, stmt *parser.Statement, start time.Time, cause error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := e.recordFailure(ctx, m, start); err != nil {
		return errors.Wrapf(err, "failed to record failure of %s (%v)", m.Script, cause)
	}

	execErr := &ExecutionError{Script: m.Script, Version: m.Version, Err: cause}
	if stmt != nil {
		execErr.Line = stmt.Line
		execErr.Statement = stmt.Text
	}

	return execErr
}

func (e *Executor) recordFailure(ctx context.Context, m *migrator.Migration, start time.Time) (*history.Entry, error) {
	return e.repo.Append(ctx, e.sess, newEntry(m, start, false))
}

func newEntry(m *migrator.Migration, start time.Time, success bool) *history.Entry {
	return &history.Entry{
		Version:       utils.Ptr(m.Version),
		Description:   m.Description,
		Type:          history.TypeSQL,
		Script:        m.Script,
		Checksum:      utils.Ptr(m.Checksum),
		ExecutionTime: executionTime(start),
		Success:       success,
	}
}

// executionTime is the time since start rounded up to the millisecond, the
// resolution of the execution_time column.
func executionTime(start time.Time) time.Duration {
	elapsed := time.Since(start)
	if rounded := elapsed.Truncate(time.Millisecond); rounded < elapsed {
		return rounded + time.Millisecond
	}

	return max(elapsed, time.Millisecond)
}
