package history

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/pseudomuto/dumbo/pkg/session"
	"github.com/pseudomuto/dumbo/pkg/utils"
	"github.com/pseudomuto/dumbo/pkg/version"
)

const (
	// DefaultTable is the history table name used by Flyway.
	DefaultTable = "flyway_schema_history"

	// DefaultSchema is used when no schema is configured.
	DefaultSchema = "public"

	lockInitialInterval = 50 * time.Millisecond
	lockMaxInterval     = 2 * time.Second
)

var (
	// ErrLockTimeout is returned when the history lock could not be acquired in
	// time.
	ErrLockTimeout = errors.New("timed out waiting for schema history lock")

	errLockHeld = errors.New("schema history lock is held by another session")
)

type (
	// Config identifies the history table.
	Config struct {
		// Schema containing the table (default: DefaultSchema)
		Schema string

		// Table name (default: DefaultTable)
		Table string

		// InstalledBy is recorded in new entries. Empty means the database's
		// current_user.
		InstalledBy string
	}

	// Repository reads and appends to a Flyway compatible history table.
	//
	// The repository is the only writer of the table. All operations go
	// through a single session so that the advisory lock taken by Lock covers
	// every subsequent statement.
	//
	// Example usage:
	//
	//	repo := history.New(sess, history.Config{Schema: "app"})
	//
	//	if err := repo.Lock(ctx, 30*time.Second); err != nil {
	//		return err
	//	}
	//	defer repo.Unlock(context.WithoutCancel(ctx))
	//
	//	if _, err := repo.EnsureSchemaHistory(ctx); err != nil {
	//		return err
	//	}
	//
	//	entries, err := repo.Load(ctx)
	Repository struct {
		sess        session.Session
		schema      string
		table       string
		installedBy string
	}
)

// New creates a repository for the history table described by cfg.
func New(sess session.Session, cfg Config) *Repository {
	if cfg.Schema == "" {
		cfg.Schema = DefaultSchema
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}

	return &Repository{
		sess:        sess,
		schema:      utils.Unquote(cfg.Schema),
		table:       utils.Unquote(cfg.Table),
		installedBy: cfg.InstalledBy,
	}
}

// Schema returns the schema holding the history table.
func (r *Repository) Schema() string {
	return r.schema
}

// Table returns the history table name.
func (r *Repository) Table() string {
	return r.table
}

// QualifiedName returns the quoted "schema"."table" name.
func (r *Repository) QualifiedName() string {
	return utils.QuoteQualifiedName(r.schema, r.table)
}

// LockKey returns the advisory lock key for this table. It is the FNV-1a hash
// of the qualified table name, so every process targeting the same table uses
// the same key.
func (r *Repository) LockKey() int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(r.QualifiedName()))
	return int64(h.Sum64()) //nolint:gosec // any 64 bits will do
}

// Lock takes the session level advisory lock for the table, polling with an
// exponential backoff until it is acquired. It fails with ErrLockTimeout once
// timeout has elapsed. A zero timeout waits until ctx is done.
func (r *Repository) Lock(ctx context.Context, timeout time.Duration) error {
	key := r.LockKey()

	// the deadline bounds the wait. Attempts run on ctx so a query in flight at
	// the deadline is not cancelled after the server granted the lock.
	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = lockInitialInterval
	b.MaxInterval = lockMaxInterval
	b.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		acquired, err := r.sess.TryAdvisoryLock(ctx, key)
		if err != nil {
			return backoff.Permanent(err)
		}

		if !acquired {
			return errLockHeld
		}

		return nil
	}, backoff.WithContext(b, waitCtx))

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, errLockHeld), waitCtx.Err() != nil:
		return errors.Wrapf(ErrLockTimeout, "%s not acquired after %s", r.QualifiedName(), timeout)
	default:
		return errors.Wrapf(err, "failed to lock %s", r.QualifiedName())
	}
}

// Unlock releases the advisory lock taken by Lock.
func (r *Repository) Unlock(ctx context.Context) error {
	if err := r.sess.AdvisoryUnlock(ctx, r.LockKey()); err != nil {
		return errors.Wrapf(err, "failed to unlock %s", r.QualifiedName())
	}

	return nil
}

// Exists reports whether the history table exists.
func (r *Repository) Exists(ctx context.Context) (bool, error) {
	rows, err := r.sess.Query(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2)",
		r.schema, r.table,
	)
	if err != nil {
		return false, errors.Wrap(err, "failed to check for schema history table")
	}
	defer func() { _ = rows.Close() }()

	var exists bool
	if rows.Next() {
		if err := rows.Scan(&exists); err != nil {
			return false, errors.Wrap(err, "failed to check for schema history table")
		}
	}

	return exists, rows.Err()
}

// EnsureSchemaHistory creates the history table when it does not exist yet.
// The layout matches the table Flyway creates on PostgreSQL column for column.
// It reports whether the table was created.
func (r *Repository) EnsureSchemaHistory(ctx context.Context) (bool, error) {
	exists, err := r.Exists(ctx)
	if err != nil {
		return false, err
	}

	if exists {
		return false, nil
	}

	name := r.QualifiedName()
	statements := []string{
		fmt.Sprintf(`CREATE TABLE %s (
    "installed_rank" INT NOT NULL,
    "version" VARCHAR(50),
    "description" VARCHAR(200) NOT NULL,
    "type" VARCHAR(20) NOT NULL,
    "script" VARCHAR(1000) NOT NULL,
    "checksum" INTEGER,
    "installed_by" VARCHAR(100) NOT NULL,
    "installed_on" TIMESTAMP NOT NULL DEFAULT now(),
    "execution_time" INTEGER NOT NULL,
    "success" BOOLEAN NOT NULL
)`, name),
		fmt.Sprintf(`ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY ("installed_rank")`,
			name, utils.QuoteIdentifier(r.table+"_pk")),
		fmt.Sprintf(`CREATE INDEX %s ON %s ("success")`,
			utils.QuoteIdentifier(r.table+"_s_idx"), name),
	}

	for _, stmt := range statements {
		if err := r.sess.Exec(ctx, stmt); err != nil {
			return false, errors.Wrapf(err, "failed to create schema history table %s", name)
		}
	}

	return true, nil
}

// Load returns every entry ordered by installed_rank.
func (r *Repository) Load(ctx context.Context) ([]*Entry, error) {
	rows, err := r.sess.Query(ctx, fmt.Sprintf(`
		SELECT
			installed_rank,
			version,
			description,
			type,
			script,
			checksum,
			installed_by,
			installed_on,
			execution_time,
			success
		FROM %s
		ORDER BY installed_rank ASC
	`, r.QualifiedName()))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load schema history")
	}
	defer func() { _ = rows.Close() }()

	var entries []*Entry
	for rows.Next() {
		entry := &Entry{}
		var (
			rawVersion      sql.NullString
			sum             sql.NullInt32
			executionTimeMs int64
		)

		err := rows.Scan(
			&entry.InstalledRank,
			&rawVersion,
			&entry.Description,
			&entry.Type,
			&entry.Script,
			&sum,
			&entry.InstalledBy,
			&entry.InstalledOn,
			&executionTimeMs,
			&entry.Success,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan schema history row")
		}

		if rawVersion.Valid && rawVersion.String != "" {
			v, err := version.Parse(rawVersion.String)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid version in schema history (installed_rank %d)", entry.InstalledRank)
			}
			entry.Version = &v
		}

		if sum.Valid {
			entry.Checksum = utils.Ptr(sum.Int32)
		}

		entry.ExecutionTime = time.Duration(executionTimeMs) * time.Millisecond
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate schema history rows")
	}

	return entries, nil
}

// Append writes entry through q, which is either the repository's session or
// a transaction opened on it. The installed_rank is computed by the INSERT
// itself so assignment and write are a single statement. It returns a copy of
// entry with InstalledRank, InstalledBy and InstalledOn filled in.
func (r *Repository) Append(ctx context.Context, q session.Querier, entry *Entry) (*Entry, error) {
	var (
		rawVersion  sql.NullString
		sum         sql.NullInt32
		installedBy sql.NullString
	)

	if entry.Version != nil {
		rawVersion = sql.NullString{String: entry.Version.String(), Valid: true}
	}
	if entry.Checksum != nil {
		sum = sql.NullInt32{Int32: *entry.Checksum, Valid: true}
	}
	if by := firstNonEmpty(entry.InstalledBy, r.installedBy); by != "" {
		installedBy = sql.NullString{String: by, Valid: true}
	}

	query := fmt.Sprintf(`
		INSERT INTO %[1]s (installed_rank, version, description, type, script, checksum, installed_by, execution_time, success)
		SELECT
			COALESCE(MAX(installed_rank), 0) + 1,
			$1::varchar,
			$2::varchar,
			$3::varchar,
			$4::varchar,
			$5::integer,
			COALESCE($6::varchar, current_user),
			$7::integer,
			$8::boolean
		FROM %[1]s
		RETURNING installed_rank, installed_by, installed_on
	`, r.QualifiedName())

	rows, err := q.Query(ctx, query,
		rawVersion,
		entry.Description,
		entry.Type,
		entry.Script,
		sum,
		installedBy,
		entry.ExecutionTime.Milliseconds(),
		entry.Success,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to append schema history entry for %s", entry.Script)
	}
	defer func() { _ = rows.Close() }()

	saved := *entry
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, errors.Wrapf(err, "failed to append schema history entry for %s", entry.Script)
		}
		return nil, errors.Errorf("no row returned appending schema history entry for %s", entry.Script)
	}

	if err := rows.Scan(&saved.InstalledRank, &saved.InstalledBy, &saved.InstalledOn); err != nil {
		return nil, errors.Wrap(err, "failed to read appended schema history entry")
	}

	return &saved, rows.Err()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
