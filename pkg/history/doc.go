// Package history reads and writes the schema history table.
//
// The table layout, entry types and rank assignment follow Flyway's
// flyway_schema_history on PostgreSQL, so a database migrated by one tool can
// be migrated or validated by the other.
//
// Concurrent migration runs against the same table are serialized with a
// session level advisory lock (see Repository.Lock). Entries are appended with
// a single INSERT that computes the next installed_rank, so ranks stay gap
// free as long as every writer holds the lock.
package history
