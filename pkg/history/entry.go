package history

import (
	"time"

	"github.com/pseudomuto/dumbo/pkg/version"
)

// Entry types written to the type column.
const (
	TypeSQL         = "SQL"
	TypeSchema      = "SCHEMA"
	TypeBaseline    = "BASELINE"
	TypeSQLBaseline = "SQL_BASELINE"
)

// SchemaMarkerDescription is the description Flyway uses for the row recording
// that it created the managed schemas.
const SchemaMarkerDescription = "<< Flyway Schema Creation >>"

// Entry is one row of the schema history table.
//
// Entries are append-only. A failed migration still produces an entry, with
// Success set to false.
type Entry struct {
	// InstalledRank orders entries. It is assigned by Append and is 1-based.
	InstalledRank int

	// Version is nil for rows that are not tied to a version, such as the
	// schema creation marker.
	Version *version.Version

	Description string
	Type        string
	Script      string

	// Checksum is nil when no checksum was recorded. Nil and zero are distinct.
	Checksum *int32

	InstalledBy   string
	InstalledOn   time.Time
	ExecutionTime time.Duration
	Success       bool
}

// IsBaseline reports whether the entry marks a baseline version. Versions at
// or below a baseline are treated as applied.
func (e *Entry) IsBaseline() bool {
	return e.Type == TypeBaseline || e.Type == TypeSQLBaseline
}

// IsSchemaMarker reports whether the entry records schema creation.
func (e *Entry) IsSchemaMarker() bool {
	return e.Type == TypeSchema
}

// IsVersioned reports whether the entry corresponds to a versioned migration.
func (e *Entry) IsVersioned() bool {
	return e.Version != nil && !e.IsBaseline() && !e.IsSchemaMarker()
}
