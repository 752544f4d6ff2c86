package postgres_test

import (
	"context"
	"testing"

	"github.com/pseudomuto/dumbo/pkg/cmd/testutil"
	"github.com/pseudomuto/dumbo/pkg/session/postgres"
	"github.com/stretchr/testify/require"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := postgres.Open(context.Background(), "mysql", "whatever")
	require.ErrorContains(t, err, "unknown driver: mysql")
}

func TestSession(t *testing.T) {
	_, dsn := testutil.StartPostgresContainer(t)

	for _, driver := range []string{postgres.DriverPQ, postgres.DriverPGX} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			sess := testutil.OpenSession(t, driver, dsn)

			table := "session_" + driver
			require.NoError(t, sess.Exec(ctx, "CREATE TABLE "+table+" (id INT, name TEXT)"))

			tx, err := sess.Begin(ctx)
			require.NoError(t, err)
			require.NoError(t, tx.Exec(ctx, "INSERT INTO "+table+" VALUES ($1, $2)", 1, "rolled back"))
			require.NoError(t, tx.Rollback())
			require.NoError(t, tx.Rollback(), "rollback after rollback is a no-op")

			tx, err = sess.Begin(ctx)
			require.NoError(t, err)
			require.NoError(t, tx.Exec(ctx, "INSERT INTO "+table+" VALUES ($1, $2)", 2, "committed"))
			require.NoError(t, tx.Commit())

			rows, err := sess.Query(ctx, "SELECT id, name FROM "+table+" ORDER BY id")
			require.NoError(t, err)

			var (
				ids   []int
				names []string
			)
			for rows.Next() {
				var (
					id   int
					name string
				)
				require.NoError(t, rows.Scan(&id, &name))
				ids = append(ids, id)
				names = append(names, name)
			}
			require.NoError(t, rows.Err())
			require.NoError(t, rows.Close())

			require.Equal(t, []int{2}, ids)
			require.Equal(t, []string{"committed"}, names)
		})
	}
}

func TestSession_AdvisoryLock(t *testing.T) {
	_, dsn := testutil.StartPostgresContainer(t)
	ctx := context.Background()

	first := testutil.OpenSession(t, postgres.DriverPQ, dsn)
	second := testutil.OpenSession(t, postgres.DriverPQ, dsn)

	const key int64 = -8_123_456_789

	acquired, err := first.TryAdvisoryLock(ctx, key)
	require.NoError(t, err)
	require.True(t, acquired)

	acquired, err = second.TryAdvisoryLock(ctx, key)
	require.NoError(t, err)
	require.False(t, acquired)

	require.Error(t, second.AdvisoryUnlock(ctx, key), "second session does not hold the lock")
	require.NoError(t, first.AdvisoryUnlock(ctx, key))

	acquired, err = second.TryAdvisoryLock(ctx, key)
	require.NoError(t, err)
	require.True(t, acquired)
	require.NoError(t, second.AdvisoryUnlock(ctx, key))
}

func TestFromGorm(t *testing.T) {
	_, dsn := testutil.StartPostgresContainer(t)
	ctx := context.Background()

	gdb, err := gorm.Open(gormpg.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sess, err := postgres.FromGorm(ctx, gdb)
	require.NoError(t, err)
	require.NoError(t, sess.Exec(ctx, "SELECT 1"))
	require.NoError(t, sess.Close())

	// the gorm pool stays usable after the session is closed
	var one int
	require.NoError(t, gdb.Raw("SELECT 1").Scan(&one).Error)
	require.Equal(t, 1, one)
}
