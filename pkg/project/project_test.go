package project_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pseudomuto/dumbo/pkg/config"
	"github.com/pseudomuto/dumbo/pkg/consts"
	"github.com/pseudomuto/dumbo/pkg/migrator"
	"github.com/pseudomuto/dumbo/pkg/project"
	"github.com/pseudomuto/dumbo/pkg/version"
	"github.com/stretchr/testify/require"
)

func TestProjectInitialize_CreatesDirectoriesAndFiles(t *testing.T) {
	t.Setenv(consts.EnvDatabaseURL, "")
	tmpDir := t.TempDir()

	proj := project.New(tmpDir)
	require.NoError(t, proj.Initialize(project.InitOptions{}))

	require.DirExists(t, filepath.Join(tmpDir, "db"))
	require.DirExists(t, filepath.Join(tmpDir, "db", "migration"))
	require.FileExists(t, filepath.Join(tmpDir, consts.ConfigFile))

	// the template matches the built in defaults
	cfg, err := proj.Config()
	require.NoError(t, err)
	require.Equal(t, config.Default(), cfg)
}

func TestProjectInitialize_PreservesExisting(t *testing.T) {
	t.Setenv(consts.EnvDatabaseURL, "")

	t.Run("preserves existing files", func(t *testing.T) {
		tmpDir := t.TempDir()

		existingContent := []byte("schemas: [app]\n")
		configPath := filepath.Join(tmpDir, consts.ConfigFile)
		require.NoError(t, os.WriteFile(configPath, existingContent, consts.ModeFile))

		require.NoError(t, project.New(tmpDir).Initialize(project.InitOptions{}))

		content, err := os.ReadFile(configPath)
		require.NoError(t, err)
		require.Equal(t, existingContent, content)
	})

	t.Run("preserves existing directories", func(t *testing.T) {
		tmpDir := t.TempDir()

		migrationDir := filepath.Join(tmpDir, "db", "migration")
		require.NoError(t, os.MkdirAll(migrationDir, consts.ModeDir))

		script := filepath.Join(migrationDir, "V1__init.sql")
		require.NoError(t, os.WriteFile(script, []byte("SELECT 1;"), consts.ModeFile))

		require.NoError(t, project.New(tmpDir).Initialize(project.InitOptions{}))

		content, err := os.ReadFile(script)
		require.NoError(t, err)
		require.Equal(t, []byte("SELECT 1;"), content)
		require.FileExists(t, filepath.Join(tmpDir, consts.ConfigFile))
	})

	t.Run("is idempotent", func(t *testing.T) {
		tmpDir := t.TempDir()
		proj := project.New(tmpDir)

		require.NoError(t, proj.Initialize(project.InitOptions{}))
		first, err := os.ReadFile(filepath.Join(tmpDir, consts.ConfigFile))
		require.NoError(t, err)

		require.NoError(t, proj.Initialize(project.InitOptions{}))
		second, err := os.ReadFile(filepath.Join(tmpDir, consts.ConfigFile))
		require.NoError(t, err)
		require.Equal(t, first, second)
	})
}

func TestProjectInitialize_WithOptions(t *testing.T) {
	t.Setenv(consts.EnvDatabaseURL, "")
	tmpDir := t.TempDir()

	proj := project.New(tmpDir)
	require.NoError(t, proj.Initialize(project.InitOptions{
		URL:     "postgres://localhost:5432/app",
		Schemas: []string{"app", "audit"},
	}))

	cfg, err := proj.Config()
	require.NoError(t, err)
	require.Equal(t, "postgres://localhost:5432/app", cfg.URL)
	require.Equal(t, []string{"app", "audit"}, cfg.Schemas)
	require.Equal(t, consts.DefaultLockTimeout, cfg.LockTimeout.Duration)

	// explicit settings only, defaults are not inlined
	content, err := os.ReadFile(filepath.Join(tmpDir, consts.ConfigFile))
	require.NoError(t, err)
	require.NotContains(t, string(content), "validate_on_migrate")
}

func TestProjectInitialize_Errors(t *testing.T) {
	err := project.New(filepath.Join(t.TempDir(), "missing")).Initialize(project.InitOptions{})
	require.ErrorContains(t, err, "failed to stat dir")

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, consts.ModeFile))

	err = project.New(file).Initialize(project.InitOptions{})
	require.ErrorContains(t, err, "is not a directory")
}

func TestProject_NewMigration(t *testing.T) {
	t.Setenv(consts.EnvDatabaseURL, "")
	ctx := context.Background()

	tmpDir := t.TempDir()
	proj := project.New(tmpDir)
	require.NoError(t, proj.Initialize(project.InitOptions{}))

	t.Run("explicit version", func(t *testing.T) {
		path, err := proj.NewMigration(ctx, "create  users table", "1.1")
		require.NoError(t, err)
		require.Equal(t, filepath.Join(tmpDir, "db", "migration", "V1_1__create_users_table.sql"), path)

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, "-- create  users table\n", string(content))

		catalog, err := migrator.Resolve(ctx, migrator.DirLister{}, filepath.Join(tmpDir, "db", "migration"))
		require.NoError(t, err)
		require.Equal(t, 1, catalog.Len())
		require.Equal(t, "create users table", catalog.Migrations[0].Description)
	})

	t.Run("timestamp version", func(t *testing.T) {
		path, err := proj.NewMigration(ctx, "seed", "")
		require.NoError(t, err)

		ver, _, ok := migrator.ParseFilename(path)
		require.True(t, ok)
		require.Len(t, ver, len(project.TimestampFormat))
	})

	t.Run("duplicate version", func(t *testing.T) {
		_, err := proj.NewMigration(ctx, "again", "1.1.0")
		require.ErrorIs(t, err, migrator.ErrDuplicateVersion)
	})

	t.Run("invalid version", func(t *testing.T) {
		_, err := proj.NewMigration(ctx, "bad", "1.x")
		require.ErrorIs(t, err, version.ErrInvalidVersion)
	})

	t.Run("missing description", func(t *testing.T) {
		_, err := proj.NewMigration(ctx, "  ", "9")
		require.ErrorContains(t, err, "description is required")
	})
}
