package parser

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"
)

// ErrMalformedScript is returned when a script ends inside a quoted string,
// quoted identifier, dollar-quoted body or block comment.
var ErrMalformedScript = errors.New("malformed script")

type (
	// Statement is a single executable command extracted from a script.
	Statement struct {
		// Text is the statement as written, without the trailing terminator.
		Text string

		// Line is the 1-based line of the statement's first significant token.
		Line int

		// Kind tells the executor how the statement may be run.
		Kind Kind

		// Keywords holds the upper-cased bare words of the statement in order.
		// Words inside strings, identifiers, dollar bodies and comments are
		// excluded.
		Keywords []string
	}

	// construct is an open quoted region or comment.
	construct struct {
		name string
		line int
	}

	// splitter accumulates one statement at a time while walking tokens.
	splitter struct {
		script     string
		statements []*Statement
		open       []construct

		start    int
		end      int
		line     int
		keywords []string
	}
)

const blockComment = "block comment"

var openers = map[string]string{
	tokBlockCommentStart:  blockComment,
	tokNestedCommentStart: blockComment,
	tokEscapeStringStart:  "escape string literal",
	tokStringStart:        "string literal",
	tokIdentStart:         "quoted identifier",
	tokDollarStart:        "dollar-quoted string",
}

var closers = map[string]bool{
	tokBlockCommentEnd: true,
	tokStringEnd:       true,
	tokEscapeStringEnd: true,
	tokIdentEnd:        true,
	tokDollarEnd:       true,
}

// Split breaks a PostgreSQL script into its statements and classifies each
// one with the Postgres dialect.
//
// Terminators inside single-quoted strings, E'' strings, double-quoted
// identifiers, dollar-quoted bodies and comments do not end a statement. Empty
// and comment-only fragments are dropped, and a final statement does not need
// a terminator.
//
// Example:
//
//	stmts, err := parser.Split(`
//	CREATE FUNCTION one() RETURNS int AS $$ SELECT 1; $$ LANGUAGE sql;
//	ALTER TYPE mood ADD VALUE 'meh';
//	`)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	for _, stmt := range stmts {
//		fmt.Printf("line %d (%s): %s\n", stmt.Line, stmt.Kind, stmt.Text)
//	}
func Split(script string) ([]*Statement, error) {
	return SplitWith(script, Postgres)
}

// SplitWith is Split using the given dialect for classification. A nil dialect
// leaves every statement Transactional.
func SplitWith(script string, dialect Dialect) ([]*Statement, error) {
	statements, err := tokenize(script)
	if err != nil {
		return nil, err
	}

	if dialect != nil {
		for _, stmt := range statements {
			stmt.Kind = dialect.Classify(stmt)
		}
	}

	return statements, nil
}

func tokenize(script string) ([]*Statement, error) {
	lex, err := scriptLexer.LexString("", script)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize lexer")
	}

	s := &splitter{script: script, start: -1}
	for {
		tok, err := lex.Next()
		if err != nil {
			if len(s.open) > 0 {
				return nil, s.unterminated()
			}
			return nil, errors.Wrapf(ErrMalformedScript, "%v", err)
		}

		if tok.EOF() {
			break
		}

		s.consume(tok)
	}

	if len(s.open) > 0 {
		return nil, s.unterminated()
	}

	s.flush()
	return s.statements, nil
}

func (s *splitter) consume(tok lexer.Token) {
	name := tokenNames[tok.Type]
	tokEnd := tok.Pos.Offset + len(tok.Value)

	if desc, ok := openers[name]; ok {
		s.open = append(s.open, construct{name: desc, line: tok.Pos.Line})
		if desc != blockComment {
			s.mark(tok, tokEnd)
		}
		return
	}

	if closers[name] {
		s.open = s.open[:len(s.open)-1]
		if name != tokBlockCommentEnd {
			s.end = tokEnd
		}
		return
	}

	if len(s.open) > 0 {
		if !s.inComment() {
			s.end = tokEnd
		}
		return
	}

	switch name {
	case tokWhitespace, tokLineComment:
	case tokTerminator:
		s.flush()
	case tokWord:
		s.mark(tok, tokEnd)
		s.keywords = append(s.keywords, strings.ToUpper(tok.Value))
	default:
		s.mark(tok, tokEnd)
	}
}

// mark records tok as significant for the statement being built.
func (s *splitter) mark(tok lexer.Token, end int) {
	if s.start < 0 {
		s.start = tok.Pos.Offset
		s.line = tok.Pos.Line
	}
	s.end = end
}

func (s *splitter) inComment() bool {
	return s.open[len(s.open)-1].name == blockComment
}

func (s *splitter) flush() {
	if s.start >= 0 {
		s.statements = append(s.statements, &Statement{
			Text:     s.script[s.start:s.end],
			Line:     s.line,
			Kind:     Transactional,
			Keywords: s.keywords,
		})
	}

	s.start = -1
	s.end = 0
	s.line = 0
	s.keywords = nil
}

func (s *splitter) unterminated() error {
	c := s.open[0]
	return errors.Wrapf(ErrMalformedScript, "unterminated %s starting on line %d", c.name, c.line)
}
