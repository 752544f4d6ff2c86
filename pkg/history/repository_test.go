package history_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/pseudomuto/dumbo/pkg/history"
	"github.com/pseudomuto/dumbo/pkg/session"
	"github.com/pseudomuto/dumbo/pkg/session/sessiontest"
	"github.com/pseudomuto/dumbo/pkg/utils"
	"github.com/pseudomuto/dumbo/pkg/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSession struct {
	sessiontest.Session

	tryLockFunc func(context.Context, int64) (bool, error)
	execFunc    func(context.Context, string, ...any) error
	queryFunc   func(context.Context, string, ...any) (session.Rows, error)
	execs       []string
}

func (m *mockSession) Exec(ctx context.Context, query string, args ...any) error {
	m.execs = append(m.execs, query)
	if m.execFunc != nil {
		return m.execFunc(ctx, query, args...)
	}
	return nil
}

func (m *mockSession) Query(ctx context.Context, query string, args ...any) (session.Rows, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, query, args...)
	}
	return nil, errors.New("no query func")
}

func (m *mockSession) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	return m.tryLockFunc(ctx, key)
}

type boolRows struct {
	value bool
	read  bool
}

func (r *boolRows) Next() bool {
	if r.read {
		return false
	}
	r.read = true
	return true
}

func (r *boolRows) Scan(dest ...any) error {
	*(dest[0].(*bool)) = r.value
	return nil
}

func (r *boolRows) Close() error { return nil }
func (r *boolRows) Err() error   { return nil }

func TestNew_Defaults(t *testing.T) {
	repo := history.New(sessiontest.NewDatabase().Session(), history.Config{})

	require.Equal(t, history.DefaultSchema, repo.Schema())
	require.Equal(t, history.DefaultTable, repo.Table())
	require.Equal(t, `"public"."flyway_schema_history"`, repo.QualifiedName())
}

func TestRepository_QualifiedName(t *testing.T) {
	sess := sessiontest.NewDatabase().Session()

	repo := history.New(sess, history.Config{Schema: `"App"`, Table: "history"})
	require.Equal(t, "App", repo.Schema())
	require.Equal(t, `"App"."history"`, repo.QualifiedName())
}

func TestRepository_LockKey(t *testing.T) {
	sess := sessiontest.NewDatabase().Session()

	a := history.New(sess, history.Config{Schema: "app"})
	b := history.New(sess, history.Config{Schema: "app"})
	c := history.New(sess, history.Config{Schema: "audit"})

	require.Equal(t, a.LockKey(), b.LockKey())
	require.NotEqual(t, a.LockKey(), c.LockKey())

	// FNV-1a 64 of "app"."flyway_schema_history"
	require.Equal(t, fnv64a(`"app"."flyway_schema_history"`), a.LockKey())
}

func TestRepository_EnsureSchemaHistory(t *testing.T) {
	ctx := context.Background()
	db := sessiontest.NewDatabase()
	repo := history.New(db.Session(), history.Config{})

	exists, err := repo.Exists(ctx)
	require.NoError(t, err)
	require.False(t, exists)

	created, err := repo.EnsureSchemaHistory(ctx)
	require.NoError(t, err)
	require.True(t, created)
	require.True(t, db.HistoryExists())

	created, err = repo.EnsureSchemaHistory(ctx)
	require.NoError(t, err)
	require.False(t, created)
}

func TestRepository_EnsureSchemaHistory_DDL(t *testing.T) {
	sess := &mockSession{
		queryFunc: func(context.Context, string, ...any) (session.Rows, error) {
			return &boolRows{value: false}, nil
		},
	}

	repo := history.New(sess, history.Config{Schema: "app", Table: "ledger"})
	created, err := repo.EnsureSchemaHistory(context.Background())
	require.NoError(t, err)
	require.True(t, created)

	require.Len(t, sess.execs, 3)
	assert.Contains(t, sess.execs[0], `CREATE TABLE "app"."ledger" (`)
	assert.Contains(t, sess.execs[0], `"installed_on" TIMESTAMP NOT NULL DEFAULT now()`)
	assert.Contains(t, sess.execs[0], `"checksum" INTEGER,`)
	assert.Equal(t, `ALTER TABLE "app"."ledger" ADD CONSTRAINT "ledger_pk" PRIMARY KEY ("installed_rank")`, sess.execs[1])
	assert.Equal(t, `CREATE INDEX "ledger_s_idx" ON "app"."ledger" ("success")`, sess.execs[2])
}

func TestRepository_EnsureSchemaHistory_Error(t *testing.T) {
	sess := &mockSession{
		queryFunc: func(context.Context, string, ...any) (session.Rows, error) {
			return nil, errors.New("connection reset")
		},
	}

	_, err := history.New(sess, history.Config{}).EnsureSchemaHistory(context.Background())
	require.ErrorContains(t, err, "failed to check for schema history table")
	require.ErrorContains(t, err, "connection reset")
}

func TestRepository_AppendAndLoad(t *testing.T) {
	ctx := context.Background()
	db := sessiontest.NewDatabase()
	sess := db.Session()
	repo := history.New(sess, history.Config{})

	_, err := repo.EnsureSchemaHistory(ctx)
	require.NoError(t, err)

	v1 := version.MustParse("1")
	v11 := version.MustParse("1.1")

	first, err := repo.Append(ctx, sess, &history.Entry{
		Version:       &v1,
		Description:   "create accounts",
		Type:          history.TypeSQL,
		Script:        "V1__create_accounts.sql",
		Checksum:      utils.Ptr[int32](0),
		ExecutionTime: 1500 * time.Millisecond,
		Success:       true,
	})
	require.NoError(t, err)
	require.Equal(t, 1, first.InstalledRank)
	require.Equal(t, sessiontest.DefaultUser, first.InstalledBy)
	require.False(t, first.InstalledOn.IsZero())

	second, err := repo.Append(ctx, sess, &history.Entry{
		Version:     &v11,
		Description: "add index",
		Type:        history.TypeSQL,
		Script:      "V1_1__add_index.sql",
		InstalledBy: "deployer",
		Success:     false,
	})
	require.NoError(t, err)
	require.Equal(t, 2, second.InstalledRank)
	require.Equal(t, "deployer", second.InstalledBy)

	entries, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.Equal(t, 1, entries[0].InstalledRank)
	require.True(t, entries[0].Version.Equal(v1))
	require.NotNil(t, entries[0].Checksum)
	require.Equal(t, int32(0), *entries[0].Checksum)
	require.Equal(t, 1500*time.Millisecond, entries[0].ExecutionTime)
	require.True(t, entries[0].Success)

	require.Equal(t, "1.1", entries[1].Version.String())
	require.Nil(t, entries[1].Checksum)
	require.False(t, entries[1].Success)
}

func TestRepository_Append_InstalledByFromConfig(t *testing.T) {
	ctx := context.Background()
	db := sessiontest.NewDatabase()
	db.Seed()
	sess := db.Session()

	repo := history.New(sess, history.Config{InstalledBy: "ci"})
	entry, err := repo.Append(ctx, sess, &history.Entry{Description: "x", Type: history.TypeSQL, Script: "V1__x.sql"})
	require.NoError(t, err)
	require.Equal(t, "ci", entry.InstalledBy)
}

func TestRepository_Append_InTransaction(t *testing.T) {
	ctx := context.Background()
	db := sessiontest.NewDatabase()
	db.Seed()
	sess := db.Session()
	repo := history.New(sess, history.Config{})

	tx, err := sess.Begin(ctx)
	require.NoError(t, err)

	_, err = repo.Append(ctx, tx, &history.Entry{Description: "x", Type: history.TypeSQL, Script: "V1__x.sql", Success: true})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	entries, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRepository_Load_Versions(t *testing.T) {
	db := sessiontest.NewDatabase()
	db.Seed(
		sessiontest.HistoryRow{
			Description: history.SchemaMarkerDescription,
			Type:        history.TypeSchema,
			Script:      `"app"`,
			Success:     true,
		},
		sessiontest.HistoryRow{
			Version:     sql.NullString{String: "2024.01.15", Valid: true},
			Description: "seed",
			Type:        history.TypeSQL,
			Script:      "V2024.01.15__seed.sql",
			Checksum:    sql.NullInt32{Int32: -42, Valid: true},
			Success:     true,
		},
	)

	entries, err := history.New(db.Session(), history.Config{}).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.Nil(t, entries[0].Version)
	require.True(t, entries[0].IsSchemaMarker())
	require.False(t, entries[0].IsVersioned())

	require.True(t, entries[1].IsVersioned())
	require.Equal(t, "2024.01.15", entries[1].Version.String())
	require.Equal(t, int32(-42), *entries[1].Checksum)
}

func TestRepository_Load_InvalidVersion(t *testing.T) {
	db := sessiontest.NewDatabase()
	db.Seed(sessiontest.HistoryRow{
		Version: sql.NullString{String: "1.x", Valid: true},
		Type:    history.TypeSQL,
		Script:  "V1_x__bad.sql",
	})

	_, err := history.New(db.Session(), history.Config{}).Load(context.Background())
	require.ErrorIs(t, err, version.ErrInvalidVersion)
}

func TestEntry_IsBaseline(t *testing.T) {
	require.True(t, (&history.Entry{Type: history.TypeBaseline}).IsBaseline())
	require.True(t, (&history.Entry{Type: history.TypeSQLBaseline}).IsBaseline())
	require.False(t, (&history.Entry{Type: history.TypeSQL}).IsBaseline())
}

func fnv64a(s string) int64 {
	const (
		offset = 14695981039346656037
		prime  = 1099511628211
	)

	h := uint64(offset)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}

	return int64(h) //nolint:gosec
}
