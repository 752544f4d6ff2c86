// Package utils provides small helpers shared by the history, executor and
// CLI packages.
//
// # Identifier Utilities (identifier.go)
//
// Schema and table names are interpolated into DDL, so they are always double
// quoted the way PostgreSQL expects. Quoting is idempotent:
//
//	utils.QuoteIdentifier("accounts")        // "accounts"
//	utils.QuoteIdentifier(`"accounts"`)      // "accounts" (not quoted twice)
//	utils.QuoteQualifiedName("app", "flyway_schema_history")
//	// "app"."flyway_schema_history"
//
//	utils.QuoteIdentifiers([]string{"app", "audit"}) // "app","audit"
//	utils.Unquote(`"Mixed ""Case"""`)                // Mixed "Case"
//
// The comma joined form produced by QuoteIdentifiers is also the script
// recorded for the schema creation marker row of the history table.
//
// # Pointers (ptr.go)
//
// Ptr returns a pointer to any value, which is how optional boolean settings
// are given explicitly:
//
//	executor.Config{ValidateOnMigrate: utils.Ptr(false)}
package utils
