package history

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/pseudomuto/dumbo/pkg/utils"
)

// EnsureSchemas creates every schema in schemas that does not exist yet and
// returns the ones it created, in the given order.
func (r *Repository) EnsureSchemas(ctx context.Context, schemas []string) ([]string, error) {
	var created []string
	for _, schema := range schemas {
		name := utils.Unquote(schema)

		exists, err := r.schemaExists(ctx, name)
		if err != nil {
			return created, err
		}

		if exists {
			continue
		}

		if err := r.sess.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+utils.QuoteIdentifier(name)); err != nil {
			return created, errors.Wrapf(err, "failed to create schema %s", name)
		}

		created = append(created, name)
	}

	return created, nil
}

// AppendSchemaMarker records that the given schemas were created by the
// migration tool. Flyway only drops schemas listed by this marker when cleaning.
func (r *Repository) AppendSchemaMarker(ctx context.Context, schemas []string) (*Entry, error) {
	if len(schemas) == 0 {
		return nil, errors.New("schema marker requires at least one schema")
	}

	return r.Append(ctx, r.sess, &Entry{
		Description: SchemaMarkerDescription,
		Type:        TypeSchema,
		Script:      utils.QuoteIdentifiers(schemas),
		Success:     true,
	})
}

// SearchPath returns the session's current search_path setting.
func (r *Repository) SearchPath(ctx context.Context) (string, error) {
	rows, err := r.sess.Query(ctx, "SHOW search_path")
	if err != nil {
		return "", errors.Wrap(err, "failed to read search_path")
	}
	defer func() { _ = rows.Close() }()

	var path string
	if rows.Next() {
		if err := rows.Scan(&path); err != nil {
			return "", errors.Wrap(err, "failed to read search_path")
		}
	}

	return path, rows.Err()
}

// SetSearchPath replaces the session's search_path. The value is used as
// given, so callers pass either a previous SearchPath result or quoted names.
func (r *Repository) SetSearchPath(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}

	if err := r.sess.Exec(ctx, fmt.Sprintf("SET search_path TO %s", path)); err != nil {
		return errors.Wrapf(err, "failed to set search_path to %s", path)
	}

	return nil
}

func (r *Repository) schemaExists(ctx context.Context, name string) (bool, error) {
	rows, err := r.sess.Query(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)",
		name,
	)
	if err != nil {
		return false, errors.Wrapf(err, "failed to check for schema %s", name)
	}
	defer func() { _ = rows.Close() }()

	var exists bool
	if rows.Next() {
		if err := rows.Scan(&exists); err != nil {
			return false, errors.Wrapf(err, "failed to check for schema %s", name)
		}
	}

	return exists, rows.Err()
}
