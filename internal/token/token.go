package token

import "fmt"

// Kind identifies the lexical class of a token.
type Kind string

// Token is one lexical unit of a source file. Line and Column refer to the
// first character of the lexeme and are 1-based.
type Token struct {
	Kind   Kind
	Lexeme string
	Line   int
	Column int
}

func (t Token) String() string {
	return fmt.Sprintf("Line %d:%d, Kind: %s, Lexeme: '%s'", t.Line, t.Column, t.Kind, t.Lexeme)
}

const (
	// Special tokens
	Illegal   Kind = "ILLEGAL"
	Utf8Error Kind = "UTF8_ERROR"
	EOF       Kind = "EOF"

	// Trivia (produced by the scanner, stripped by the token producer)
	Whitespace Kind = "WHITESPACE"
	Newline    Kind = "NEWLINE"
	Comment    Kind = "COMMENT"

	// Literals
	Int    Kind = "INT"
	Float  Kind = "FLOAT"
	String Kind = "STRING"
	Ident  Kind = "IDENT"

	// Operators and punctuation
	Plus     Kind = "+"
	Minus    Kind = "-"
	Asterisk Kind = "*"
	Slash    Kind = "/"
	Percent  Kind = "%"
	Eq       Kind = "=="
	NotEq    Kind = "!="
	Lt       Kind = "<"
	Gt       Kind = ">"
	Le       Kind = "<="
	Ge       Kind = ">="
	Assign   Kind = "="
	Dot      Kind = "."
	Comma    Kind = ","
	Semi     Kind = ";"
	Colon    Kind = ":"
	LParen   Kind = "("
	RParen   Kind = ")"
	LBrace   Kind = "{"
	RBrace   Kind = "}"
	LBracket Kind = "["
	RBracket Kind = "]"
	Pipe     Kind = "|"
	Arrow    Kind = "->"

	// Keywords
	Var      Kind = "var"
	If       Kind = "if"
	Else     Kind = "else"
	Elif     Kind = "elif"
	While    Kind = "while"
	For      Kind = "for"
	In       Kind = "in"
	Return   Kind = "return"
	Break    Kind = "break"
	Continue Kind = "continue"
	True     Kind = "true"
	False    Kind = "false"
	Null     Kind = "null"
	And      Kind = "and"
	Or       Kind = "or"
	Not      Kind = "not"
	Struct   Kind = "struct"
	Impl     Kind = "impl"
	Import   Kind = "import"
	From     Kind = "from"
	As       Kind = "as"
	Pub      Kind = "pub"
	Module   Kind = "module"
	Yield    Kind = "yield"
	Json     Kind = "json"
	Operator Kind = "operator"
)

// Keywords lists every reserved word in registration order. The scanner
// registers one machine per keyword before the identifier machine, so a
// keyword always wins the priority tie-break against IDENT.
var Keywords = []Kind{
	Var, If, Else, Elif, While, For, In, Return, Break, Continue,
	True, False, Null, And, Or, Not, Struct, Impl, Import, From,
	As, Pub, Module, Yield, Json, Operator,
}

var keywordSet = func() map[string]Kind {
	m := make(map[string]Kind, len(Keywords))
	for _, k := range Keywords {
		m[string(k)] = k
	}
	return m
}()

// LookupKeyword reports whether lexeme is a reserved word.
func LookupKeyword(lexeme string) (Kind, bool) {
	k, ok := keywordSet[lexeme]
	return k, ok
}

// TwoCharSymbols lists the two-character operators, checked before the
// single-character ones.
var TwoCharSymbols = []Kind{Eq, NotEq, Le, Ge, Arrow}

// OneCharSymbols lists the single-character operators and punctuation.
var OneCharSymbols = []Kind{
	Plus, Minus, Asterisk, Slash, Percent, Lt, Gt, Assign, Dot, Comma,
	Semi, Colon, LParen, RParen, LBrace, RBrace, LBracket, RBracket, Pipe,
}

// IsTrivia reports whether the kind carries no syntactic meaning and should
// be stripped by the token producer.
func IsTrivia(k Kind) bool {
	return k == Whitespace || k == Newline || k == Comment
}
