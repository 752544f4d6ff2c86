package testutil

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/pseudomuto/dumbo/pkg/docker"
	"github.com/pseudomuto/dumbo/pkg/session/postgres"
	"github.com/stretchr/testify/require"
)

// SkipIfNoDocker skips the test in short mode or when Docker is not available
func SkipIfNoDocker(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping Docker tests in short mode")
	}

	// Check if Docker binary exists
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("Docker not available")
	}

	// Check if Docker daemon is running
	cmd := exec.CommandContext(t.Context(), "docker", "ps")
	if err := cmd.Run(); err != nil {
		t.Skip("Docker daemon not running")
	}
}

// StartPostgresContainer starts a PostgreSQL container that is stopped when
// the test completes and returns it along with its DSN.
func StartPostgresContainer(t *testing.T) (*docker.Container, string) {
	t.Helper()

	SkipIfNoDocker(t)

	container := docker.New()
	t.Cleanup(func() {
		_ = container.Stop(context.Background())
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	require.NoError(t, container.Start(ctx), "Failed to start PostgreSQL container")

	dsn, err := container.GetDSN(ctx)
	require.NoError(t, err, "Failed to get container DSN")

	return container, dsn
}

// OpenSession opens a session against dsn that is closed when the test
// completes.
func OpenSession(t *testing.T, driver, dsn string) *postgres.Session {
	t.Helper()

	sess, err := postgres.Open(t.Context(), driver, dsn)
	require.NoError(t, err, "Failed to open session")
	t.Cleanup(func() { _ = sess.Close() })

	return sess
}
