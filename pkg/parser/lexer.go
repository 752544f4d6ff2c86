package parser

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// Token names produced by scriptLexer. Each state uses its own names so the
// splitter can track which construct is open without inspecting values.
const (
	tokLineComment       = "LineComment"
	tokBlockCommentStart = "BlockCommentStart"
	tokEscapeStringStart = "EscapeStringStart"
	tokStringStart       = "StringStart"
	tokIdentStart        = "IdentStart"
	tokDollarStart       = "DollarStart"
	tokWord              = "Word"
	tokTerminator        = "Terminator"
	tokWhitespace        = "Whitespace"
	tokOther             = "Other"

	tokNestedCommentStart = "NestedCommentStart"
	tokBlockCommentEnd    = "BlockCommentEnd"
	tokBlockCommentBody   = "BlockCommentBody"

	tokStringEscape = "StringEscape"
	tokStringEnd    = "StringEnd"
	tokStringBody   = "StringBody"

	tokEscapeSeq         = "EscapeSeq"
	tokEscapeQuote       = "EscapeQuote"
	tokEscapeStringEnd   = "EscapeStringEnd"
	tokEscapeStringBody  = "EscapeStringBody"
	tokIdentEscape       = "IdentEscape"
	tokIdentEnd          = "IdentEnd"
	tokIdentBody         = "IdentBody"
	tokDollarEnd         = "DollarEnd"
	tokDollarBody        = "DollarBody"
	tokDollarBodyDollar  = "DollarBodyDollar"
	tokBlockCommentChar  = "BlockCommentChar"
)

// scriptLexer tokenizes PostgreSQL scripts just enough to find statement
// boundaries. Quoted constructs push a state so that terminators inside them
// are never seen by the Root rules.
var scriptLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: tokLineComment, Pattern: `--[^\n]*`},
		{Name: tokBlockCommentStart, Pattern: `/\*`, Action: lexer.Push("BlockComment")},
		{Name: tokEscapeStringStart, Pattern: `[eE]'`, Action: lexer.Push("EscapeString")},
		{Name: tokStringStart, Pattern: `'`, Action: lexer.Push("String")},
		{Name: tokIdentStart, Pattern: `"`, Action: lexer.Push("QuotedIdent")},
		{Name: tokDollarStart, Pattern: `\$([\p{L}_][\p{L}\p{N}_]*|)\$`, Action: lexer.Push("DollarQuoted")},
		{Name: tokWord, Pattern: `[\p{L}_][\p{L}\p{N}_$]*`},
		{Name: tokTerminator, Pattern: `;`},
		{Name: tokWhitespace, Pattern: `\s+`},
		{Name: tokOther, Pattern: `[^\s\p{L}_;'"$/-]+|[$/-]`},
	},
	"BlockComment": {
		{Name: tokNestedCommentStart, Pattern: `/\*`, Action: lexer.Push("BlockComment")},
		{Name: tokBlockCommentEnd, Pattern: `\*/`, Action: lexer.Pop()},
		{Name: tokBlockCommentBody, Pattern: `[^/*]+`},
		{Name: tokBlockCommentChar, Pattern: `[/*]`},
	},
	"String": {
		{Name: tokStringEscape, Pattern: `''`},
		{Name: tokStringEnd, Pattern: `'`, Action: lexer.Pop()},
		{Name: tokStringBody, Pattern: `[^']+`},
	},
	"EscapeString": {
		{Name: tokEscapeSeq, Pattern: `\\[\s\S]`},
		{Name: tokEscapeQuote, Pattern: `''`},
		{Name: tokEscapeStringEnd, Pattern: `'`, Action: lexer.Pop()},
		{Name: tokEscapeStringBody, Pattern: `[^'\\]+`},
	},
	"QuotedIdent": {
		{Name: tokIdentEscape, Pattern: `""`},
		{Name: tokIdentEnd, Pattern: `"`, Action: lexer.Pop()},
		{Name: tokIdentBody, Pattern: `[^"]+`},
	},
	"DollarQuoted": {
		{Name: tokDollarEnd, Pattern: `\$\1\$`, Action: lexer.Pop()},
		{Name: tokDollarBody, Pattern: `[^$]+`},
		{Name: tokDollarBodyDollar, Pattern: `\$`},
	},
})

// tokenNames maps token types back to the rule names above.
var tokenNames = func() map[lexer.TokenType]string {
	names := make(map[lexer.TokenType]string)
	for name, typ := range scriptLexer.Symbols() {
		names[typ] = name
	}
	return names
}()
