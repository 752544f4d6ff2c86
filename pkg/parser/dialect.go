package parser

import "slices"

const (
	// Transactional statements may run inside a transaction block.
	Transactional Kind = iota

	// NonTransactional statements are rejected by the database when run inside
	// a transaction block (CREATE INDEX CONCURRENTLY, VACUUM, ...).
	NonTransactional

	// Unsupported statements cannot be executed through a plain session, such
	// as COPY ... FROM STDIN which needs a client-side data stream.
	Unsupported
)

type (
	// Kind classifies how a statement may be executed.
	Kind int

	// Dialect decides the Kind of a statement for a target database.
	Dialect interface {
		Classify(*Statement) Kind
	}

	// DialectFunc adapts a function to the Dialect interface.
	DialectFunc func(*Statement) Kind
)

// Keywords classifies statements using only their leading bare words. It is
// the fallback used by Postgres when a statement cannot be parsed.
var Keywords Dialect = DialectFunc(classifyKeywords)

func (f DialectFunc) Classify(stmt *Statement) Kind {
	return f(stmt)
}

func (k Kind) String() string {
	switch k {
	case Transactional:
		return "transactional"
	case NonTransactional:
		return "non-transactional"
	case Unsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

func classifyKeywords(stmt *Statement) Kind {
	words := stmt.Keywords

	switch {
	case hasPrefix(words, "COPY") && (slices.Contains(words, "STDIN") || slices.Contains(words, "STDOUT")):
		return Unsupported
	case hasPrefix(words, "VACUUM"),
		hasPrefix(words, "CREATE", "DATABASE"),
		hasPrefix(words, "DROP", "DATABASE"),
		hasPrefix(words, "CREATE", "TABLESPACE"),
		hasPrefix(words, "DROP", "TABLESPACE"),
		hasPrefix(words, "ALTER", "SYSTEM"):
		return NonTransactional
	case hasPrefix(words, "CREATE", "INDEX", "CONCURRENTLY"),
		hasPrefix(words, "CREATE", "UNIQUE", "INDEX", "CONCURRENTLY"),
		hasPrefix(words, "DROP", "INDEX", "CONCURRENTLY"),
		hasPrefix(words, "REINDEX") && slices.Contains(words, "CONCURRENTLY"):
		return NonTransactional
	case hasPrefix(words, "ALTER", "TYPE") && containsSeq(words, "ADD", "VALUE"):
		return NonTransactional
	}

	return Transactional
}

func hasPrefix(words []string, prefix ...string) bool {
	return len(words) >= len(prefix) && slices.Equal(words[:len(prefix)], prefix)
}

func containsSeq(words []string, seq ...string) bool {
	for i := range words {
		if hasPrefix(words[i:], seq...) {
			return true
		}
	}
	return false
}
