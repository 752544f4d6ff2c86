// Package sessiontest provides an in-memory session.Session for tests.
//
// A Database understands the statements issued by the history package (the
// schema history DDL, its INSERT ... RETURNING and SELECT, schema and search
// path commands, advisory locks). Every other statement is recorded in
// Statements, optionally failing through FailOn. Several sessions can share a
// Database to exercise locking between concurrent runs.
//
//	db := sessiontest.NewDatabase()
//	sess := db.Session()
//
//	exec := executor.New(executor.Config{Session: sess, Lister: lister})
//	result, err := exec.Migrate(ctx)
//
//	require.Len(t, db.History(), 2)
package sessiontest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/pseudomuto/dumbo/pkg/session"
)

// DefaultUser is reported as current_user.
const DefaultUser = "dumbo"

type (
	// HistoryRow is a stored schema history row.
	HistoryRow struct {
		InstalledRank int
		Version       sql.NullString
		Description   string
		Type          string
		Script        string
		Checksum      sql.NullInt32
		InstalledBy   string
		InstalledOn   time.Time
		ExecutionTime int64
		Success       bool
	}

	// Database is the state shared by every session created from it.
	Database struct {
		mu sync.Mutex

		// FailOn is called for every statement not handled by the fake. A non-nil
		// error is returned to the caller and the statement is not recorded.
		FailOn func(ctx context.Context, stmt string) error

		// CurrentUser is recorded when an entry does not name its installer.
		CurrentUser string

		historyExists bool
		history       []HistoryRow
		schemas       map[string]bool
		statements    []string
		locks         map[int64]*Session
		lockAttempts  int
	}

	// Session is one connection to a Database.
	Session struct {
		db         *Database
		searchPath string
	}

	// Tx buffers statements and history rows until Commit.
	Tx struct {
		sess       *Session
		done       bool
		statements []string
		history    []HistoryRow
	}

	rows struct {
		values [][]any
		pos    int
	}
)

var (
	_ session.Session = (*Session)(nil)
	_ session.Tx      = (*Tx)(nil)
)

// NewDatabase creates an empty database containing the public schema.
func NewDatabase() *Database {
	return &Database{
		CurrentUser: DefaultUser,
		schemas:     map[string]bool{"public": true},
		locks:       make(map[int64]*Session),
	}
}

// Session opens a new session with the default search path.
func (d *Database) Session() *Session {
	return &Session{db: d, searchPath: `"$user", public`}
}

// AddSchema marks a schema as existing.
func (d *Database) AddSchema(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.schemas[name] = true
}

// HasSchema reports whether the schema exists.
func (d *Database) HasSchema(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.schemas[name]
}

// Seed creates the history table with the given rows. Ranks are assigned in
// order when left at zero and InstalledOn defaults to now.
func (d *Database) Seed(rows ...HistoryRow) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.historyExists = true
	for _, row := range rows {
		if row.InstalledRank == 0 {
			row.InstalledRank = d.nextRank(nil)
		}
		if row.InstalledOn.IsZero() {
			row.InstalledOn = time.Now()
		}
		if row.InstalledBy == "" {
			row.InstalledBy = d.CurrentUser
		}
		d.history = append(d.history, row)
	}
}

// HistoryExists reports whether the history table was created.
func (d *Database) HistoryExists() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.historyExists
}

// History returns a copy of the stored history rows.
func (d *Database) History() []HistoryRow {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]HistoryRow(nil), d.history...)
}

// Statements returns every committed statement not handled by the fake.
func (d *Database) Statements() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.statements...)
}

// LockAttempts returns the number of TryAdvisoryLock calls made so far.
func (d *Database) LockAttempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lockAttempts
}

// Locked reports whether any session holds an advisory lock.
func (d *Database) Locked() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.locks) > 0
}

// SearchPath returns the session's search_path.
func (s *Session) SearchPath() string {
	return s.searchPath
}

// Hold takes the advisory lock for key on behalf of this session.
func (s *Session) Hold(key int64) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.locks[key] = s
}

// Close is a no-op. The database outlives its sessions.
func (s *Session) Close() error {
	return nil
}

func (s *Session) Exec(ctx context.Context, query string, args ...any) error {
	handled, err := s.handleExec(ctx, query)
	if handled || err != nil {
		return err
	}

	if err := s.db.fail(ctx, query); err != nil {
		return err
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.statements = append(s.db.statements, query)
	return nil
}

func (s *Session) Query(ctx context.Context, query string, args ...any) (session.Rows, error) {
	return s.query(ctx, nil, query, args...)
}

func (s *Session) Begin(ctx context.Context) (session.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Tx{sess: s}, nil
}

func (s *Session) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	s.db.lockAttempts++
	if owner, ok := s.db.locks[key]; ok && owner != s {
		return false, nil
	}

	s.db.locks[key] = s
	return true, nil
}

func (s *Session) AdvisoryUnlock(ctx context.Context, key int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if owner, ok := s.db.locks[key]; !ok || owner != s {
		return errors.Errorf("advisory lock %d was not held by this session", key)
	}

	delete(s.db.locks, key)
	return nil
}

func (t *Tx) Exec(ctx context.Context, query string, args ...any) error {
	if t.done {
		return sql.ErrTxDone
	}

	if err := t.sess.db.fail(ctx, query); err != nil {
		return err
	}

	t.statements = append(t.statements, query)
	return nil
}

func (t *Tx) Query(ctx context.Context, query string, args ...any) (session.Rows, error) {
	if t.done {
		return nil, sql.ErrTxDone
	}

	return t.sess.query(ctx, t, query, args...)
}

func (t *Tx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true

	db := t.sess.db
	db.mu.Lock()
	defer db.mu.Unlock()

	db.statements = append(db.statements, t.statements...)
	db.history = append(db.history, t.history...)
	return nil
}

func (t *Tx) Rollback() error {
	t.done = true
	return nil
}

// handleExec applies the commands the history package issues outside of
// queries. It reports whether the statement was one of them.
func (s *Session) handleExec(ctx context.Context, query string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return true, err
	}

	q := strings.TrimSpace(query)
	db := s.db

	switch {
	case strings.HasPrefix(q, "CREATE TABLE") && strings.Contains(q, `"installed_rank" INT`):
		db.mu.Lock()
		defer db.mu.Unlock()
		if db.historyExists {
			return true, errors.New("relation already exists")
		}
		db.historyExists = true
		return true, nil
	case strings.HasPrefix(q, "ALTER TABLE") && strings.Contains(q, `PRIMARY KEY ("installed_rank")`):
		return true, nil
	case strings.HasPrefix(q, "CREATE INDEX") && strings.HasSuffix(q, `("success")`):
		return true, nil
	case strings.HasPrefix(q, "CREATE SCHEMA IF NOT EXISTS "):
		name := unquote(strings.TrimPrefix(q, "CREATE SCHEMA IF NOT EXISTS "))
		db.mu.Lock()
		defer db.mu.Unlock()
		db.schemas[name] = true
		return true, nil
	case strings.HasPrefix(q, "SET search_path TO "):
		s.searchPath = strings.TrimPrefix(q, "SET search_path TO ")
		return true, nil
	}

	return false, nil
}

func (s *Session) query(ctx context.Context, tx *Tx, query string, args ...any) (session.Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := strings.TrimSpace(query)
	db := s.db

	db.mu.Lock()
	defer db.mu.Unlock()

	switch {
	case strings.Contains(q, "information_schema.tables"):
		return &rows{values: [][]any{{db.historyExists}}}, nil
	case strings.Contains(q, "information_schema.schemata"):
		name, _ := args[0].(string)
		return &rows{values: [][]any{{db.schemas[name]}}}, nil
	case q == "SHOW search_path":
		return &rows{values: [][]any{{s.searchPath}}}, nil
	case strings.HasPrefix(q, "INSERT INTO") && strings.Contains(q, "installed_rank"):
		return db.insert(tx, args)
	case strings.HasPrefix(q, "SELECT") && strings.Contains(q, "ORDER BY installed_rank"):
		if !db.historyExists {
			return nil, errors.New("relation does not exist")
		}
		values := make([][]any, 0, len(db.history))
		for _, row := range db.history {
			values = append(values, []any{
				row.InstalledRank,
				row.Version,
				row.Description,
				row.Type,
				row.Script,
				row.Checksum,
				row.InstalledBy,
				row.InstalledOn,
				row.ExecutionTime,
				row.Success,
			})
		}
		return &rows{values: values}, nil
	}

	return nil, errors.Errorf("unsupported query: %s", q)
}

// insert must be called with d.mu held.
func (d *Database) insert(tx *Tx, args []any) (session.Rows, error) {
	if !d.historyExists {
		return nil, errors.New("relation does not exist")
	}
	if len(args) != 8 {
		return nil, errors.Errorf("expected 8 arguments, got %d", len(args))
	}

	row := HistoryRow{
		InstalledRank: d.nextRank(tx),
		InstalledOn:   time.Now(),
		InstalledBy:   d.CurrentUser,
	}

	row.Version, _ = args[0].(sql.NullString)
	row.Description, _ = args[1].(string)
	row.Type, _ = args[2].(string)
	row.Script, _ = args[3].(string)
	row.Checksum, _ = args[4].(sql.NullInt32)
	if by, ok := args[5].(sql.NullString); ok && by.Valid {
		row.InstalledBy = by.String
	}
	row.ExecutionTime, _ = args[6].(int64)
	row.Success, _ = args[7].(bool)

	if tx != nil {
		tx.history = append(tx.history, row)
	} else {
		d.history = append(d.history, row)
	}

	return &rows{values: [][]any{{row.InstalledRank, row.InstalledBy, row.InstalledOn}}}, nil
}

// nextRank must be called with d.mu held.
func (d *Database) nextRank(tx *Tx) int {
	rank := 0
	for _, row := range d.history {
		rank = max(rank, row.InstalledRank)
	}
	if tx != nil {
		for _, row := range tx.history {
			rank = max(rank, row.InstalledRank)
		}
	}

	return rank + 1
}

func (d *Database) fail(ctx context.Context, stmt string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if d.FailOn != nil {
		return d.FailOn(ctx, stmt)
	}

	return nil
}

func (r *rows) Next() bool {
	if r.pos >= len(r.values) {
		return false
	}
	r.pos++
	return true
}

func (r *rows) Scan(dest ...any) error {
	if r.pos == 0 || r.pos > len(r.values) {
		return errors.New("scan called without a row")
	}

	row := r.values[r.pos-1]
	if len(dest) != len(row) {
		return errors.Errorf("expected %d destinations, got %d", len(row), len(dest))
	}

	for i, value := range row {
		if err := assign(dest[i], value); err != nil {
			return errors.Wrapf(err, "column %d", i)
		}
	}

	return nil
}

func (r *rows) Close() error { return nil }
func (r *rows) Err() error   { return nil }

func assign(dest, value any) error {
	switch d := dest.(type) {
	case *int:
		v, ok := value.(int)
		if !ok {
			return errors.Errorf("cannot scan %T into *int", value)
		}
		*d = v
	case *int64:
		v, ok := value.(int64)
		if !ok {
			return errors.Errorf("cannot scan %T into *int64", value)
		}
		*d = v
	case *string:
		v, ok := value.(string)
		if !ok {
			return errors.Errorf("cannot scan %T into *string", value)
		}
		*d = v
	case *bool:
		v, ok := value.(bool)
		if !ok {
			return errors.Errorf("cannot scan %T into *bool", value)
		}
		*d = v
	case *time.Time:
		v, ok := value.(time.Time)
		if !ok {
			return errors.Errorf("cannot scan %T into *time.Time", value)
		}
		*d = v
	case *sql.NullString:
		v, ok := value.(sql.NullString)
		if !ok {
			return errors.Errorf("cannot scan %T into *sql.NullString", value)
		}
		*d = v
	case *sql.NullInt32:
		v, ok := value.(sql.NullInt32)
		if !ok {
			return errors.Errorf("cannot scan %T into *sql.NullInt32", value)
		}
		*d = v
	default:
		return errors.Errorf("unsupported scan destination %T", dest)
	}

	return nil
}

func unquote(name string) string {
	if len(name) >= 2 && name[0] == '"' && name[len(name)-1] == '"' {
		return strings.ReplaceAll(name[1:len(name)-1], `""`, `"`)
	}

	return name
}

// String renders the row for test failure messages.
func (r HistoryRow) String() string {
	return fmt.Sprintf("%d %s %q %s %s success=%t", r.InstalledRank, r.Version.String, r.Description, r.Type, r.Script, r.Success)
}
