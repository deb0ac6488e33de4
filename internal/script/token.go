// Package script implements the lexer, syntax tree and parser for the
// snippet language: the Python 3 subset that agents submit for execution.
//
// The package only turns source text into a tree. It never evaluates
// anything, so both the policy validator and the sandbox interpreter can
// build their own tree from the same text without sharing state.
package script

import "fmt"

// TokenKind classifies a lexical token.
type TokenKind int

const (
	EOF TokenKind = iota
	NEWLINE
	INDENT
	DEDENT
	NAME
	KEYWORD
	INT
	FLOAT
	STRING
	OP
)

var tokenKindNames = [...]string{
	EOF:     "end of input",
	NEWLINE: "newline",
	INDENT:  "indent",
	DEDENT:  "dedent",
	NAME:    "name",
	KEYWORD: "keyword",
	INT:     "integer",
	FLOAT:   "float",
	STRING:  "string",
	OP:      "operator",
}

func (k TokenKind) String() string {
	if int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Pos is a 1-based source position.
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string {
	return fmt.Sprintf("line %d, column %d", p.Line, p.Col)
}

// Token is a single lexical token.
//
// For STRING tokens Text holds the decoded value, except for f-strings
// where it holds the undecoded body so the parser can split it into
// literal parts and replacement fields.
type Token struct {
	Kind    TokenKind
	Text    string
	Pos     Pos
	FString bool
	Raw     bool
}

func (t Token) String() string {
	switch t.Kind {
	case EOF, NEWLINE, INDENT, DEDENT:
		return t.Kind.String()
	case STRING:
		return "string literal"
	}
	return fmt.Sprintf("'%s'", t.Text)
}

var keywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true,
	"class": true, "continue": true, "def": true, "del": true,
	"elif": true, "else": true, "except": true, "finally": true,
	"for": true, "from": true, "global": true, "if": true,
	"import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true,
	"raise": true, "return": true, "try": true, "while": true,
	"with": true, "yield": true,
}

// IsKeyword reports whether name is a reserved word of the language.
func IsKeyword(name string) bool { return keywords[name] }

// operators is ordered longest first so the lexer can match greedily.
var operators = []string{
	"**=", "//=", ">>=", "<<=", "...",
	"->", ":=", "**", "//", "==", "!=", "<=", ">=", "<<", ">>",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "@=",
	"+", "-", "*", "/", "%", "@", "&", "|", "^", "~", "<", ">",
	"(", ")", "[", "]", "{", "}", ",", ":", ".", ";", "=",
}

// SyntaxError reports source text that does not parse.
type SyntaxError struct {
	Msg string
	Pos Pos
}

func (e *SyntaxError) Error() string {
	if e.Pos.Line == 0 {
		return e.Msg
	}
	return fmt.Sprintf("%s (%s)", e.Msg, e.Pos)
}
