package ast

import (
	"github.com/nyml2003/kaubo/internal/token"
)

// ExpressionStatement wraps an expression in statement position.
type ExpressionStatement struct {
	Token      token.Token
	Expression Expression
}

func (es *ExpressionStatement) statementNode()       {}
func (es *ExpressionStatement) TokenLiteral() string { return es.Token.Lexeme }

// BlockStatement is { stmt; ... }.
type BlockStatement struct {
	Token      token.Token // the '{' token
	Statements []Statement
}

func (bs *BlockStatement) statementNode()       {}
func (bs *BlockStatement) TokenLiteral() string { return bs.Token.Lexeme }

// VarStatement is var name: T? = expr. Pub marks the binding exported from
// the enclosing module block.
type VarStatement struct {
	Token token.Token
	Pub   bool
	Name  *Identifier
	Type  TypeExpr // may be nil
	Value Expression
}

func (vs *VarStatement) statementNode()       {}
func (vs *VarStatement) TokenLiteral() string { return vs.Token.Lexeme }

// IfStatement is if cond { } [elif cond { }]* [else { }]. Elif chains parse
// into a nested IfStatement in the Else position.
type IfStatement struct {
	Token token.Token
	Cond  Expression
	Then  *BlockStatement
	Else  Statement // *BlockStatement, *IfStatement or nil
}

func (is *IfStatement) statementNode()       {}
func (is *IfStatement) TokenLiteral() string { return is.Token.Lexeme }

// WhileStatement is while cond { }.
type WhileStatement struct {
	Token token.Token
	Cond  Expression
	Body  *BlockStatement
}

func (ws *WhileStatement) statementNode()       {}
func (ws *WhileStatement) TokenLiteral() string { return ws.Token.Lexeme }

// ForStatement is for name in expr { }.
type ForStatement struct {
	Token    token.Token
	Name     *Identifier
	Iterable Expression
	Body     *BlockStatement
}

func (fs *ForStatement) statementNode()       {}
func (fs *ForStatement) TokenLiteral() string { return fs.Token.Lexeme }

// ReturnStatement is return expr?.
type ReturnStatement struct {
	Token token.Token
	Value Expression // may be nil
}

func (rs *ReturnStatement) statementNode()       {}
func (rs *ReturnStatement) TokenLiteral() string { return rs.Token.Lexeme }

// BreakStatement exits the innermost loop.
type BreakStatement struct {
	Token token.Token
}

func (bs *BreakStatement) statementNode()       {}
func (bs *BreakStatement) TokenLiteral() string { return bs.Token.Lexeme }

// ContinueStatement restarts the innermost loop.
type ContinueStatement struct {
	Token token.Token
}

func (cs *ContinueStatement) statementNode()       {}
func (cs *ContinueStatement) TokenLiteral() string { return cs.Token.Lexeme }

// StructStatement is struct Name { field: Type, ... }.
type StructStatement struct {
	Token      token.Token
	Pub        bool
	Name       *Identifier
	FieldNames []*Identifier
	FieldTypes []TypeExpr
}

func (ss *StructStatement) statementNode()       {}
func (ss *StructStatement) TokenLiteral() string { return ss.Token.Lexeme }

// ImplMethod is one entry of an impl block: a named lambda method, or an
// operator handler when Operator is true.
type ImplMethod struct {
	Token    token.Token
	Name     string // method name, or the operator name after `operator`
	Operator bool
	Lambda   *LambdaExpression
}

// ImplStatement is impl Name { method: lambda, operator op: lambda, ... }.
type ImplStatement struct {
	Token   token.Token
	Name    *Identifier
	Methods []*ImplMethod
}

func (is *ImplStatement) statementNode()       {}
func (is *ImplStatement) TokenLiteral() string { return is.Token.Lexeme }

// ImportStatement is import a.b.c.
type ImportStatement struct {
	Token token.Token
	Path  []string
}

func (is *ImportStatement) statementNode()       {}
func (is *ImportStatement) TokenLiteral() string { return is.Token.Lexeme }

// FromImportStatement is from a.b import x, y.
type FromImportStatement struct {
	Token token.Token
	Path  []string
	Names []*Identifier
}

func (fs *FromImportStatement) statementNode()       {}
func (fs *FromImportStatement) TokenLiteral() string { return fs.Token.Lexeme }

// ModuleStatement is module name { ... }.
type ModuleStatement struct {
	Token token.Token
	Name  *Identifier
	Body  []Statement
}

func (ms *ModuleStatement) statementNode()       {}
func (ms *ModuleStatement) TokenLiteral() string { return ms.Token.Lexeme }
