package parser

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Postgres classifies statements by parsing them with the PostgreSQL parser.
// Statements the parser rejects (usually because of syntax from a newer
// server) are classified with Keywords instead.
var Postgres Dialect = DialectFunc(classifyPostgres)

func classifyPostgres(stmt *Statement) Kind {
	result, err := pg_query.Parse(stmt.Text)
	if err != nil || len(result.GetStmts()) == 0 {
		return classifyKeywords(stmt)
	}

	kind := Transactional
	for _, raw := range result.GetStmts() {
		switch classifyNode(raw.GetStmt()) {
		case Unsupported:
			return Unsupported
		case NonTransactional:
			kind = NonTransactional
		}
	}

	return kind
}

func classifyNode(node *pg_query.Node) Kind {
	if node == nil {
		return Transactional
	}

	switch n := node.GetNode().(type) {
	case *pg_query.Node_CopyStmt:
		if n.CopyStmt.GetFilename() == "" && !n.CopyStmt.GetIsProgram() {
			return Unsupported
		}
	case *pg_query.Node_AlterEnumStmt:
		// ADD VALUE leaves OldVal empty; RENAME VALUE sets it.
		if n.AlterEnumStmt.GetOldVal() == "" {
			return NonTransactional
		}
	case *pg_query.Node_IndexStmt:
		if n.IndexStmt.GetConcurrent() {
			return NonTransactional
		}
	case *pg_query.Node_DropStmt:
		if n.DropStmt.GetConcurrent() {
			return NonTransactional
		}
	case *pg_query.Node_ReindexStmt:
		for _, param := range n.ReindexStmt.GetParams() {
			if strings.EqualFold(param.GetDefElem().GetDefname(), "concurrently") {
				return NonTransactional
			}
		}
	case *pg_query.Node_VacuumStmt:
		if n.VacuumStmt.GetIsVacuumcmd() {
			return NonTransactional
		}
	case *pg_query.Node_CreatedbStmt,
		*pg_query.Node_DropdbStmt,
		*pg_query.Node_CreateTableSpaceStmt,
		*pg_query.Node_DropTableSpaceStmt,
		*pg_query.Node_AlterSystemStmt:
		return NonTransactional
	}

	return Transactional
}
