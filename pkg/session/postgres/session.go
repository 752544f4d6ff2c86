package postgres

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq" // registers the "postgres" driver
	"github.com/pkg/errors"
	"github.com/pseudomuto/dumbo/pkg/session"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	// DriverPQ opens connections with github.com/lib/pq.
	DriverPQ = "postgres"

	// DriverPGX opens connections through gorm's PostgreSQL driver (pgx).
	DriverPGX = "pgx"
)

type (
	// Session is a session.Session bound to a single PostgreSQL connection.
	//
	// The connection is taken out of the pool when the session is created and
	// returned by Close, so advisory locks and SET commands issued through the
	// session stay on one server backend.
	Session struct {
		conn *sql.Conn
		db   *sql.DB
		own  bool
	}

	transaction struct {
		tx *sql.Tx
	}
)

var _ session.Session = (*Session)(nil)

// Open connects to the database at dsn using the named driver (DriverPQ or
// DriverPGX) and pins one connection for the returned session.
//
// Example:
//
//	sess, err := postgres.Open(ctx, postgres.DriverPQ, "postgres://localhost:5432/app?sslmode=disable")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sess.Close()
func Open(ctx context.Context, driver, dsn string) (*Session, error) {
	var (
		db  *sql.DB
		err error
	)

	switch driver {
	case "", DriverPQ:
		db, err = sql.Open(DriverPQ, dsn)
	case DriverPGX:
		db, err = openGorm(dsn)
	default:
		return nil, errors.Errorf("unknown driver: %s", driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	s, err := New(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s.own = true
	return s, nil
}

// New pins a connection from an existing pool. Closing the session returns
// the connection but leaves db open.
func New(ctx context.Context, db *sql.DB) (*Session, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire connection")
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "failed to connect to PostgreSQL")
	}

	return &Session{conn: conn, db: db}, nil
}

// FromGorm creates a session from an application's gorm handle, sharing its
// connection pool.
func FromGorm(ctx context.Context, gdb *gorm.DB) (*Session, error) {
	db, err := gdb.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get sql.DB from gorm")
	}

	return New(ctx, db)
}

// Close releases the pinned connection, and the pool when the session opened
// it.
func (s *Session) Close() error {
	err := s.conn.Close()
	if s.own {
		if cerr := s.db.Close(); err == nil {
			err = cerr
		}
	}

	return err
}

func (s *Session) Exec(ctx context.Context, query string, args ...any) error {
	_, err := s.conn.ExecContext(ctx, query, args...)
	return err
}

func (s *Session) Query(ctx context.Context, query string, args ...any) (session.Rows, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...) //nolint:rowserrcheck // caller checks Err
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (s *Session) Begin(ctx context.Context) (session.Tx, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	return &transaction{tx: tx}, nil
}

func (s *Session) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var acquired bool
	if err := s.conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired); err != nil {
		return false, errors.Wrap(err, "failed to take advisory lock")
	}

	return acquired, nil
}

func (s *Session) AdvisoryUnlock(ctx context.Context, key int64) error {
	var released bool
	if err := s.conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&released); err != nil {
		return errors.Wrap(err, "failed to release advisory lock")
	}

	if !released {
		return errors.Errorf("advisory lock %d was not held by this session", key)
	}

	return nil
}

func (t *transaction) Exec(ctx context.Context, query string, args ...any) error {
	_, err := t.tx.ExecContext(ctx, query, args...)
	return err
}

func (t *transaction) Query(ctx context.Context, query string, args ...any) (session.Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...) //nolint:rowserrcheck // caller checks Err
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (t *transaction) Commit() error {
	return t.tx.Commit()
}

func (t *transaction) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}

	return err
}

func openGorm(dsn string) (*sql.DB, error) {
	gdb, err := gorm.Open(gormpg.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	return gdb.DB()
}
