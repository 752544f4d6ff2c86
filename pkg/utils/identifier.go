package utils

import (
	"strings"

	"github.com/lib/pq"
)

// QuoteIdentifier wraps a PostgreSQL identifier in double quotes, doubling any
// embedded quotes. Identifiers that are already quoted are returned as-is.
//
// Examples:
//   - "accounts" -> "\"accounts\""
//   - "Mixed Case" -> "\"Mixed Case\""
//   - "we\"ird" -> "\"we\"\"ird\""
//   - "\"accounts\"" -> "\"accounts\"" (not quoted twice)
//   - "" -> ""
func QuoteIdentifier(name string) string {
	if name == "" || IsQuoted(name) {
		return name
	}

	return pq.QuoteIdentifier(name)
}

// QuoteQualifiedName formats schema.name with each part quoted. An empty
// schema yields just the quoted name.
//
// Examples:
//   - ("public", "flyway_schema_history") -> "\"public\".\"flyway_schema_history\""
//   - ("", "flyway_schema_history") -> "\"flyway_schema_history\""
func QuoteQualifiedName(schema, name string) string {
	if schema == "" {
		return QuoteIdentifier(name)
	}

	return QuoteIdentifier(schema) + "." + QuoteIdentifier(name)
}

// QuoteIdentifiers quotes each name and joins them with commas, the format
// Flyway records for schema creation markers.
//
// Example:
//   - ["app", "audit"] -> "\"app\",\"audit\""
func QuoteIdentifiers(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = QuoteIdentifier(name)
	}

	return strings.Join(quoted, ",")
}

// IsQuoted checks if a string is a single double-quoted identifier.
//
// Examples:
//   - "\"accounts\"" -> true
//   - "\"a\"\"b\"" -> true (escaped quote inside)
//   - "accounts" -> false
//   - "\"a\".\"b\"" -> false (qualified name)
func IsQuoted(s string) bool {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return false
	}

	inner := s[1 : len(s)-1]
	return !strings.Contains(strings.ReplaceAll(inner, `""`, ""), `"`)
}

// Unquote removes the surrounding quotes of a quoted identifier and collapses
// doubled quotes. Unquoted input is returned unchanged.
func Unquote(s string) string {
	if !IsQuoted(s) {
		return s
	}

	return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
}
