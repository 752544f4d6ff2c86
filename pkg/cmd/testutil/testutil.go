package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pseudomuto/dumbo/pkg/config"
	"github.com/pseudomuto/dumbo/pkg/consts"
	"github.com/pseudomuto/dumbo/pkg/migrator"
	"github.com/pseudomuto/dumbo/pkg/project"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// ProjectFixture represents a test project environment with all necessary dependencies
type ProjectFixture struct {
	Dir     string
	Config  *config.Config
	Project *project.Project
	t       *testing.T
}

// TestProject creates an isolated temp directory with an initialized dumbo
// project. The migration location is absolute, so commands can run from any
// working directory.
func TestProject(t *testing.T) *ProjectFixture {
	t.Helper()

	tmpDir := t.TempDir()
	proj := project.New(tmpDir)
	require.NoError(t, proj.Initialize(project.InitOptions{}), "Failed to initialize test project")

	cfg, err := proj.Config()
	require.NoError(t, err, "Failed to load config file")

	fixture := &ProjectFixture{
		Dir:     tmpDir,
		Config:  cfg,
		Project: proj,
		t:       t,
	}

	return fixture.WithConfig(func(cfg *config.Config) {
		cfg.Locations = []string{migrator.FilesystemPrefix + fixture.MigrationDir()}
	})
}

// WithConfig updates the project configuration and writes it back to
// dumbo.yaml.
func (p *ProjectFixture) WithConfig(fn func(*config.Config)) *ProjectFixture {
	p.t.Helper()

	fn(p.Config)

	data, err := yaml.Marshal(p.Config)
	require.NoError(p.t, err, "Failed to encode config")
	require.NoError(p.t, os.WriteFile(p.ConfigPath(), data, consts.ModeFile), "Failed to write updated config")

	return p
}

// WithMigration adds a migration script named name (V1__init.sql) to the
// project.
func (p *ProjectFixture) WithMigration(name, sql string) *ProjectFixture {
	p.t.Helper()

	require.NoError(p.t, os.MkdirAll(p.MigrationDir(), consts.ModeDir), "Failed to create migration directory")

	path := filepath.Join(p.MigrationDir(), name)
	require.NoError(p.t, os.WriteFile(path, []byte(sql), consts.ModeFile), "Failed to write migration file: %s", name)

	return p
}

// MigrationDir returns the path to the migration directory
func (p *ProjectFixture) MigrationDir() string {
	return filepath.Join(p.Dir, "db", "migration")
}

// ConfigPath returns the path to the dumbo.yaml file
func (p *ProjectFixture) ConfigPath() string {
	return filepath.Join(p.Dir, consts.ConfigFile)
}
