package history_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/pseudomuto/dumbo/pkg/history"
	"github.com/pseudomuto/dumbo/pkg/session/sessiontest"
	"github.com/stretchr/testify/require"
)

func TestRepository_Lock(t *testing.T) {
	ctx := context.Background()
	db := sessiontest.NewDatabase()
	repo := history.New(db.Session(), history.Config{})

	require.NoError(t, repo.Lock(ctx, time.Second))
	require.True(t, db.Locked())

	require.NoError(t, repo.Unlock(ctx))
	require.False(t, db.Locked())
}

func TestRepository_Lock_Timeout(t *testing.T) {
	ctx := context.Background()
	db := sessiontest.NewDatabase()

	holder := history.New(db.Session(), history.Config{})
	require.NoError(t, holder.Lock(ctx, time.Second))

	waiter := history.New(db.Session(), history.Config{})
	err := waiter.Lock(ctx, 200*time.Millisecond)
	require.ErrorIs(t, err, history.ErrLockTimeout)
	require.GreaterOrEqual(t, db.LockAttempts(), 2)
}

func TestRepository_Lock_WaitsForTheFullTimeout(t *testing.T) {
	ctx := context.Background()
	db := sessiontest.NewDatabase()

	holder := history.New(db.Session(), history.Config{})
	require.NoError(t, holder.Lock(ctx, time.Second))

	timeout := 700 * time.Millisecond
	start := time.Now()

	err := history.New(db.Session(), history.Config{}).Lock(ctx, timeout)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, history.ErrLockTimeout)
	require.GreaterOrEqual(t, elapsed, timeout)
	require.Less(t, elapsed, timeout+time.Second)
}

func TestRepository_Lock_WaitsForRelease(t *testing.T) {
	ctx := context.Background()
	db := sessiontest.NewDatabase()

	holder := history.New(db.Session(), history.Config{})
	require.NoError(t, holder.Lock(ctx, time.Second))

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = holder.Unlock(ctx)
	}()

	waiter := history.New(db.Session(), history.Config{})
	require.NoError(t, waiter.Lock(ctx, 5*time.Second))
	require.NoError(t, waiter.Unlock(ctx))
}

func TestRepository_Lock_ZeroTimeoutWaitsForContext(t *testing.T) {
	db := sessiontest.NewDatabase()

	holder := history.New(db.Session(), history.Config{})
	require.NoError(t, holder.Lock(context.Background(), time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	waiter := history.New(db.Session(), history.Config{})
	err := waiter.Lock(ctx, 0)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotErrorIs(t, err, history.ErrLockTimeout)
}

func TestRepository_Lock_QueryError(t *testing.T) {
	calls := 0
	sess := &mockSession{
		tryLockFunc: func(context.Context, int64) (bool, error) {
			calls++
			return false, errors.New("connection refused")
		},
	}

	err := history.New(sess, history.Config{}).Lock(context.Background(), time.Second)
	require.ErrorContains(t, err, "connection refused")
	require.NotErrorIs(t, err, history.ErrLockTimeout)
	require.Equal(t, 1, calls)
}

func TestRepository_Unlock_NotHeld(t *testing.T) {
	db := sessiontest.NewDatabase()

	err := history.New(db.Session(), history.Config{}).Unlock(context.Background())
	require.ErrorContains(t, err, "failed to unlock")
}
