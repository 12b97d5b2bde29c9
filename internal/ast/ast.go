package ast

import (
	"github.com/nyml2003/kaubo/internal/token"
)

// Node is the base interface for all AST nodes.
type Node interface {
	TokenLiteral() string
}

// Statement is a Node that represents a statement.
type Statement interface {
	Node
	statementNode()
}

// Expression is a Node that represents an expression.
type Expression interface {
	Node
	expressionNode()
	GetToken() token.Token
}

// Program is the root node of every AST the parser produces.
type Program struct {
	Statements []Statement
}

func (p *Program) TokenLiteral() string {
	if len(p.Statements) > 0 {
		return p.Statements[0].TokenLiteral()
	}
	return ""
}

// TypeExpr is a syntactic type annotation.
type TypeExpr interface {
	Node
	typeExprNode()
}

// NamedTypeExpr is a (possibly parameterized) type name: int, list<int>,
// tuple<int, string>, or a user struct name.
type NamedTypeExpr struct {
	Token token.Token
	Name  string
	Args  []TypeExpr
}

func (t *NamedTypeExpr) typeExprNode()        {}
func (t *NamedTypeExpr) TokenLiteral() string { return t.Token.Lexeme }

// FuncTypeExpr is a function type annotation: function(int, int) -> int.
type FuncTypeExpr struct {
	Token  token.Token
	Params []TypeExpr
	Return TypeExpr
}

func (t *FuncTypeExpr) typeExprNode()        {}
func (t *FuncTypeExpr) TokenLiteral() string { return t.Token.Lexeme }
