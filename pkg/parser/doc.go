// Package parser splits PostgreSQL migration scripts into executable
// statements and classifies how each statement may be run.
//
// Splitting is lexical: a stateful lexer recognizes single-quoted strings,
// E'' escape strings, double-quoted identifiers, dollar-quoted bodies with
// arbitrary tags, line comments and nested block comments, and only a
// terminator outside all of them ends a statement. No grammar is applied, so
// any syntax the server accepts can be split.
//
// # Classification
//
// Every statement carries a Kind:
//
//   - Transactional statements are grouped into a single transaction with the
//     rest of their migration.
//   - NonTransactional statements (CREATE INDEX CONCURRENTLY, VACUUM,
//     ALTER TYPE ... ADD VALUE, CREATE DATABASE, ...) force the whole
//     migration to run outside a transaction.
//   - Unsupported statements (COPY ... FROM STDIN, COPY ... TO STDOUT) need a
//     client-side data stream and are rejected before execution.
//
// The Postgres dialect decides the Kind from the parse tree produced by
// pg_query, the PostgreSQL server's own parser. Statements it cannot parse are
// matched against their leading keywords instead.
//
// # Usage Example
//
//	stmts, err := parser.Split(script)
//	if err != nil {
//		// errors.Is(err, parser.ErrMalformedScript)
//		return err
//	}
//
//	for _, stmt := range stmts {
//		if stmt.Kind == parser.NonTransactional {
//			fmt.Printf("line %d must run outside a transaction\n", stmt.Line)
//		}
//	}
package parser
