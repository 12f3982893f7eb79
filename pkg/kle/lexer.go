package kle

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// RawLexer tokenizes keyboard-layout-editor raw data. Property names may be
// bare identifiers or quoted strings, so the same lexer serves the pasted
// raw form and the downloaded JSON form.
var RawLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},

	// JSON style strings with escape sequences
	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"`},

	{Name: "Number", Pattern: `[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?`},

	// Bare property names and true/false
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},

	{Name: "Punct", Pattern: `[\[\]{}:,]`},
})
