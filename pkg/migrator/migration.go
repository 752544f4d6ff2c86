package migrator

import (
	"path"
	"strings"

	"github.com/pseudomuto/dumbo/pkg/version"
)

const (
	// SQLMigration is the history type recorded for versioned SQL scripts.
	SQLMigration = "SQL"

	versionedPrefix = "V"
	separator       = "__"
	sqlSuffix       = ".sql"
)

type (
	// Migration is a versioned script discovered in a location.
	//
	// Migrations are created by Resolve and never modified afterwards. The
	// checksum is computed from Content when the migration is resolved.
	Migration struct {
		// Version parsed from the file name.
		Version version.Version

		// Description from the file name with underscores rendered as spaces.
		Description string

		// Script is the path relative to Location, using forward slashes. This is
		// the value stored in the history table's script column.
		Script string

		// Location the script was found in.
		Location string

		// Content is the raw script.
		Content []byte

		// Checksum is the Flyway checksum of Content.
		Checksum int32

		// Type is always SQLMigration.
		Type string
	}

	// Catalog is the set of resolved migrations in ascending version order.
	Catalog struct {
		Migrations []*Migration

		byKey map[string]*Migration
	}
)

// ParseFilename splits a file name following the V<version>__<description>.sql
// convention. ok is false when name does not follow the convention, in which
// case the file is not a migration. Underscores inside the version are read as
// dots (V1_1__x.sql is version 1.1) and underscores in the description become
// spaces.
//
// Example:
//
//	ver, desc, ok := migrator.ParseFilename("V2.1__add_users_table.sql")
//	// ver = "2.1", desc = "add users table", ok = true
func ParseFilename(name string) (ver, desc string, ok bool) {
	base := path.Base(name)
	if !strings.HasPrefix(base, versionedPrefix) || !strings.HasSuffix(base, sqlSuffix) {
		return "", "", false
	}

	stem := strings.TrimSuffix(strings.TrimPrefix(base, versionedPrefix), sqlSuffix)
	ver, desc, ok = strings.Cut(stem, separator)
	if !ok {
		return "", "", false
	}

	return strings.ReplaceAll(ver, "_", "."), strings.ReplaceAll(desc, "_", " "), true
}

// Len returns the number of migrations.
func (c *Catalog) Len() int {
	return len(c.Migrations)
}

// Find returns the migration whose version is numerically equal to v.
func (c *Catalog) Find(v version.Version) (*Migration, bool) {
	m, ok := c.byKey[v.Key()]
	return m, ok
}

// Latest returns the migration with the highest version, or nil when the
// catalog is empty.
func (c *Catalog) Latest() *Migration {
	if len(c.Migrations) == 0 {
		return nil
	}

	return c.Migrations[len(c.Migrations)-1]
}
