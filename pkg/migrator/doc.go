// Package migrator discovers versioned SQL migrations and builds the catalog
// the executor compares against the schema history.
//
// Migrations follow Flyway's naming convention:
//
//	V<version>__<description>.sql
//
// where <version> is one or more dot separated non-negative integers (V1,
// V2.1, V20240101120000) and <description> is free text whose underscores are
// rendered as spaces. Files that do not match the convention are ignored.
//
// Scripts are read through a Lister, which makes the source pluggable:
//
//	// A directory on disk
//	catalog, err := migrator.Resolve(ctx, migrator.DirLister{}, "filesystem:db/migration")
//
//	// Migrations compiled into the binary
//	//go:embed db/migration/*.sql
//	var migrations embed.FS
//	catalog, err := migrator.Resolve(ctx, migrator.FSLister{FS: migrations}, "db/migration")
//
// Each resolved migration carries its Flyway checksum, computed once from the
// raw content. Versions that are numerically equal ("1" and "1.0") are the same
// identity and resolving both fails with ErrDuplicateVersion.
package migrator
