package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pseudomuto/dumbo/pkg/consts"
	"github.com/pseudomuto/dumbo/pkg/parser"
	"github.com/stretchr/testify/require"
)

// RequireValidProject asserts that a project structure is correctly initialized
func RequireValidProject(t *testing.T, projectDir string) {
	t.Helper()

	require.DirExists(t, filepath.Join(projectDir, "db", "migration"), "migration directory should exist")
	require.FileExists(t, filepath.Join(projectDir, consts.ConfigFile), "dumbo.yaml should exist")
}

// RequireFileExists asserts that a file exists and optionally checks its content
func RequireFileExists(t *testing.T, path string, checks ...func(content string)) {
	t.Helper()

	require.FileExists(t, path, "File should exist: %s", path)

	if len(checks) > 0 {
		content, err := os.ReadFile(path)
		require.NoError(t, err, "Failed to read file: %s", path)

		contentStr := string(content)
		for _, check := range checks {
			check(contentStr)
		}
	}
}

// RequireFileContains returns a check function that verifies file contains text
func RequireFileContains(t *testing.T, expected string) func(string) {
	return func(content string) {
		require.Contains(t, content, expected, "File should contain: %s", expected)
	}
}

// RequireMigrationValid asserts that a migration file splits into
// statements.
func RequireMigrationValid(t *testing.T, migrationPath string) {
	t.Helper()

	content, err := os.ReadFile(migrationPath)
	require.NoError(t, err, "Failed to read migration file")

	_, err = parser.Split(string(content))
	require.NoError(t, err, "Migration should split into statements: %s", migrationPath)
}
