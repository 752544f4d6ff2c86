package migrator

import (
	"context"
	"slices"

	"github.com/pkg/errors"
	"github.com/pseudomuto/dumbo/pkg/checksum"
	"github.com/pseudomuto/dumbo/pkg/version"
)

// ErrDuplicateVersion is returned when two scripts resolve to numerically
// equal versions.
var ErrDuplicateVersion = errors.New("duplicate migration version")

// Resolve lists every location and builds the migration catalog.
//
// Files whose names do not follow the V<version>__<description>.sql convention
// are skipped. A file that does follow it but carries an unparsable version
// fails with version.ErrInvalidVersion. Two files whose versions are
// numerically equal ("1" and "1.0") fail with ErrDuplicateVersion, even when
// they live in different locations.
//
// Example:
//
//	catalog, err := migrator.Resolve(ctx, migrator.DirLister{}, "db/migration")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	for _, m := range catalog.Migrations {
//		fmt.Printf("%s %s (%d)\n", m.Version, m.Description, m.Checksum)
//	}
func Resolve(ctx context.Context, lister Lister, locations ...string) (*Catalog, error) {
	catalog := &Catalog{byKey: make(map[string]*Migration)}

	for _, location := range locations {
		resources, err := lister.List(ctx, location)
		if err != nil {
			return nil, err
		}

		for _, res := range resources {
			rawVersion, desc, ok := ParseFilename(res.Name)
			if !ok {
				continue
			}

			v, err := version.Parse(rawVersion)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to resolve migration: %s", res.Name)
			}

			m := &Migration{
				Version:     v,
				Description: desc,
				Script:      res.Name,
				Location:    location,
				Content:     res.Content,
				Checksum:    checksum.Compute(res.Content),
				Type:        SQLMigration,
			}

			if existing, ok := catalog.byKey[v.Key()]; ok {
				return nil, errors.Wrapf(
					ErrDuplicateVersion,
					"version %s is used by %s and %s",
					v, existing.Script, m.Script,
				)
			}

			catalog.byKey[v.Key()] = m
			catalog.Migrations = append(catalog.Migrations, m)
		}
	}

	slices.SortFunc(catalog.Migrations, func(a, b *Migration) int {
		return a.Version.Compare(b.Version)
	})

	return catalog, nil
}
