package parser

import (
	"github.com/nyml2003/kaubo/internal/ast"
	"github.com/nyml2003/kaubo/internal/diagnostics"
	"github.com/nyml2003/kaubo/internal/pipeline"
	"github.com/nyml2003/kaubo/internal/token"
)

// Parser holds the state of the Pratt parser.
type Parser struct {
	stream    pipeline.TokenStream
	curToken  token.Token
	peekToken token.Token
	ctx       *pipeline.Context

	prefixParseFns map[token.Kind]prefixParseFn
	infixParseFns  map[token.Kind]infixParseFn

	// failed is set on the first error; parsing stops, no recovery.
	failed bool
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// Precedence levels (higher binds tighter). Binary operators are
// left-associative except assignment.
const (
	LOWEST  = 0
	ASSIGN  = 50 // = (right-associative)
	OR      = 60
	PIPE    = 70 // | (reserved)
	AND     = 80
	EQUALS  = 100 // == != < > <= >=
	SUM     = 200 // + -
	PRODUCT = 300 // * / %
	CAST    = 350 // as
	POSTFIX = 400 // . f(a) a[i]
	PREFIX  = 450 // not, unary -
)

var precedences = map[token.Kind]int{
	token.Assign:   ASSIGN,
	token.Or:       OR,
	token.Pipe:     PIPE,
	token.And:      AND,
	token.Eq:       EQUALS,
	token.NotEq:    EQUALS,
	token.Lt:       EQUALS,
	token.Gt:       EQUALS,
	token.Le:       EQUALS,
	token.Ge:       EQUALS,
	token.Plus:     SUM,
	token.Minus:    SUM,
	token.Asterisk: PRODUCT,
	token.Slash:    PRODUCT,
	token.Percent:  PRODUCT,
	token.As:       CAST,
	token.Dot:      POSTFIX,
	token.LParen:   POSTFIX,
	token.LBracket: POSTFIX,
}

func New(stream pipeline.TokenStream, ctx *pipeline.Context) *Parser {
	p := &Parser{
		stream: stream,
		ctx:    ctx,
	}

	p.prefixParseFns = make(map[token.Kind]prefixParseFn)
	p.registerPrefix(token.Ident, p.parseIdentifierOrStructLiteral)
	p.registerPrefix(token.Int, p.parseIntegerLiteral)
	p.registerPrefix(token.Float, p.parseFloatLiteral)
	p.registerPrefix(token.String, p.parseStringLiteral)
	p.registerPrefix(token.True, p.parseBoolean)
	p.registerPrefix(token.False, p.parseBoolean)
	p.registerPrefix(token.Null, p.parseNull)
	p.registerPrefix(token.Not, p.parseUnaryExpression)
	p.registerPrefix(token.Minus, p.parseUnaryExpression)
	p.registerPrefix(token.LParen, p.parseGroupedExpression)
	p.registerPrefix(token.LBracket, p.parseListLiteral)
	p.registerPrefix(token.Json, p.parseJsonLiteral)
	p.registerPrefix(token.Pipe, p.parseLambda)
	p.registerPrefix(token.Yield, p.parseYield)

	p.infixParseFns = make(map[token.Kind]infixParseFn)
	for _, kind := range []token.Kind{
		token.Plus, token.Minus, token.Asterisk, token.Slash, token.Percent,
		token.Eq, token.NotEq, token.Lt, token.Gt, token.Le, token.Ge,
		token.And, token.Or, token.Pipe,
	} {
		p.registerInfix(kind, p.parseBinaryExpression)
	}
	p.registerInfix(token.LParen, p.parseCallExpression)
	p.registerInfix(token.LBracket, p.parseIndexExpression)
	p.registerInfix(token.Dot, p.parseMemberExpression)
	p.registerInfix(token.Assign, p.parseAssignExpression)
	p.registerInfix(token.As, p.parseCastExpression)

	// Prime curToken and peekToken.
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) registerPrefix(kind token.Kind, fn prefixParseFn) {
	p.prefixParseFns[kind] = fn
}

func (p *Parser) registerInfix(kind token.Kind, fn infixParseFn) {
	p.infixParseFns[kind] = fn
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.stream.Next()
}

// peekAhead returns the n tokens after peekToken.
func (p *Parser) peekAhead(n int) []token.Token {
	return p.stream.Peek(n)
}

func (p *Parser) curIs(kind token.Kind) bool  { return p.curToken.Kind == kind }
func (p *Parser) peekIs(kind token.Kind) bool { return p.peekToken.Kind == kind }

// expectPeek advances when the next token has the wanted kind, and fails the
// parse with code otherwise. The argument list is shaped to the code's
// message template.
func (p *Parser) expectPeek(kind token.Kind, code diagnostics.ErrorCode) bool {
	if p.peekIs(kind) {
		p.nextToken()
		return true
	}
	got := string(p.peekToken.Kind)
	switch code {
	case diagnostics.ErrUnexpectedToken:
		p.errorAt(p.peekToken, code, string(kind), got)
	case diagnostics.ErrExpectedIdentifierAfterDot, diagnostics.ErrUnexpectedEndOfInput:
		p.errorAt(p.peekToken, code)
	default:
		p.errorAt(p.peekToken, code, got)
	}
	return false
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Kind]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) errorAt(tok token.Token, code diagnostics.ErrorCode, args ...interface{}) {
	if p.failed {
		return
	}
	p.failed = true
	if tok.Kind == token.EOF && code == diagnostics.ErrUnexpectedToken {
		code = diagnostics.ErrUnexpectedEndOfInput
		args = nil
	}
	p.ctx.AddError(diagnostics.New(diagnostics.PhaseParser, code, tok, args...))
}

// ParseProgram parses the full token stream into a Program. Errors are
// recorded on the context; the first error aborts parsing.
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{}
	for !p.curIs(token.EOF) && !p.failed {
		stmt := p.parseStatement()
		if p.failed {
			break
		}
		if stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		p.nextToken()
	}
	return program
}

// Processor is the parsing stage of the pipeline.
type Processor struct{}

func (pp *Processor) Process(ctx *pipeline.Context) *pipeline.Context {
	p := New(ctx.TokenStream, ctx)
	ctx.AstRoot = p.ParseProgram()
	return ctx
}
