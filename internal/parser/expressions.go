package parser

import (
	"strconv"

	"github.com/nyml2003/kaubo/internal/ast"
	"github.com/nyml2003/kaubo/internal/diagnostics"
	"github.com/nyml2003/kaubo/internal/token"
)

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken.Kind]
	if prefix == nil {
		p.errorAt(p.curToken, diagnostics.ErrUnexpectedToken, "expression", string(p.curToken.Kind))
		return nil
	}
	leftExp := prefix()

	for !p.failed && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Kind]
		if infix == nil {
			return leftExp
		}
		p.nextToken()
		leftExp = infix(leftExp)
	}
	return leftExp
}

// parseIdentifierOrStructLiteral disambiguates a plain identifier from a
// struct literal Name { field: expr, ... }. The literal form is recognized
// only when the brace is immediately followed by `ident :` or `}`, so block
// statements after a bare condition still parse (`if x { ... }`).
func (p *Parser) parseIdentifierOrStructLiteral() ast.Expression {
	ident := &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}
	if !p.peekIs(token.LBrace) {
		return ident
	}
	ahead := p.peekAhead(2)
	isLiteral := false
	if len(ahead) >= 1 && ahead[0].Kind == token.RBrace {
		isLiteral = true
	} else if len(ahead) >= 2 && ahead[0].Kind == token.Ident && ahead[1].Kind == token.Colon {
		isLiteral = true
	}
	if !isLiteral {
		return ident
	}
	return p.parseStructLiteral(ident)
}

func (p *Parser) parseStructLiteral(name *ast.Identifier) ast.Expression {
	lit := &ast.StructLiteral{Token: name.Token, Name: name}
	p.nextToken() // onto '{'
	for !p.peekIs(token.RBrace) {
		if !p.expectPeek(token.Ident, diagnostics.ErrUnexpectedToken) {
			return nil
		}
		field := &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}
		if !p.expectPeek(token.Colon, diagnostics.ErrUnexpectedToken) {
			return nil
		}
		p.nextToken()
		value := p.parseExpression(LOWEST)
		if p.failed {
			return nil
		}
		lit.FieldNames = append(lit.FieldNames, field)
		lit.FieldValues = append(lit.FieldValues, value)
		if p.peekIs(token.Comma) {
			p.nextToken()
			continue
		}
		break
	}
	if !p.expectPeek(token.RBrace, diagnostics.ErrMissingRightBrace) {
		return nil
	}
	return lit
}

func (p *Parser) parseIntegerLiteral() ast.Expression {
	value, err := strconv.ParseInt(p.curToken.Lexeme, 10, 64)
	if err != nil {
		p.errorAt(p.curToken, diagnostics.ErrInvalidNumberFormat, p.curToken.Lexeme)
		return nil
	}
	return &ast.IntegerLiteral{Token: p.curToken, Value: value}
}

func (p *Parser) parseFloatLiteral() ast.Expression {
	value, err := strconv.ParseFloat(p.curToken.Lexeme, 64)
	if err != nil {
		p.errorAt(p.curToken, diagnostics.ErrInvalidNumberFormat, p.curToken.Lexeme)
		return nil
	}
	return &ast.FloatLiteral{Token: p.curToken, Value: value}
}

func (p *Parser) parseStringLiteral() ast.Expression {
	lexeme := p.curToken.Lexeme
	// Strip the surrounding quotes; the characters in between pass through
	// literally.
	value := lexeme
	if len(lexeme) >= 2 {
		value = lexeme[1 : len(lexeme)-1]
	}
	return &ast.StringLiteral{Token: p.curToken, Value: value}
}

func (p *Parser) parseBoolean() ast.Expression {
	return &ast.BooleanLiteral{Token: p.curToken, Value: p.curIs(token.True)}
}

func (p *Parser) parseNull() ast.Expression {
	return &ast.NullLiteral{Token: p.curToken}
}

func (p *Parser) parseUnaryExpression() ast.Expression {
	expr := &ast.UnaryExpression{Token: p.curToken, Operator: p.curToken.Kind}
	p.nextToken()
	expr.Operand = p.parseExpression(PREFIX)
	return expr
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	p.nextToken()
	expr := p.parseExpression(LOWEST)
	if p.failed {
		return nil
	}
	if !p.expectPeek(token.RParen, diagnostics.ErrMissingRightParen) {
		return nil
	}
	return expr
}

func (p *Parser) parseListLiteral() ast.Expression {
	lit := &ast.ListLiteral{Token: p.curToken}
	lit.Elements = p.parseExpressionList(token.RBracket)
	return lit
}

// parseExpressionList parses a comma-separated list up to (and including)
// the end token.
func (p *Parser) parseExpressionList(end token.Kind) []ast.Expression {
	var list []ast.Expression
	if p.peekIs(end) {
		p.nextToken()
		return list
	}
	p.nextToken()
	list = append(list, p.parseExpression(LOWEST))
	for !p.failed && p.peekIs(token.Comma) {
		p.nextToken()
		p.nextToken()
		list = append(list, p.parseExpression(LOWEST))
	}
	if p.failed {
		return nil
	}
	code := diagnostics.ErrUnexpectedToken
	if end == token.RParen {
		code = diagnostics.ErrMissingRightParen
	}
	if !p.expectPeek(end, code) {
		return nil
	}
	return list
}

func (p *Parser) parseJsonLiteral() ast.Expression {
	lit := &ast.JsonLiteral{Token: p.curToken}
	if !p.expectPeek(token.LBrace, diagnostics.ErrUnexpectedToken) {
		return nil
	}
	for !p.peekIs(token.RBrace) {
		if !p.expectPeek(token.String, diagnostics.ErrUnexpectedToken) {
			return nil
		}
		key := p.parseStringLiteral().(*ast.StringLiteral)
		if !p.expectPeek(token.Colon, diagnostics.ErrUnexpectedToken) {
			return nil
		}
		p.nextToken()
		value := p.parseExpression(LOWEST)
		if p.failed {
			return nil
		}
		lit.Keys = append(lit.Keys, key)
		lit.Values = append(lit.Values, value)
		if p.peekIs(token.Comma) {
			p.nextToken()
			continue
		}
		break
	}
	if !p.expectPeek(token.RBrace, diagnostics.ErrMissingRightBrace) {
		return nil
	}
	return lit
}

// parseLambda parses |param: T?, ...| -> T? { body }. The body must be a
// block; the short form |x| x+1 is rejected.
func (p *Parser) parseLambda() ast.Expression {
	lambda := &ast.LambdaExpression{Token: p.curToken}

	for !p.peekIs(token.Pipe) {
		if !p.peekIs(token.Ident) {
			p.errorAt(p.peekToken, diagnostics.ErrExpectedIdentifierInLambda, string(p.peekToken.Kind))
			return nil
		}
		p.nextToken()
		param := &ast.Param{Name: &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}}
		if p.peekIs(token.Colon) {
			p.nextToken()
			p.nextToken()
			param.Type = p.parseTypeExpr()
			if p.failed {
				return nil
			}
		}
		lambda.Params = append(lambda.Params, param)
		if p.peekIs(token.Comma) {
			p.nextToken()
			continue
		}
		if !p.peekIs(token.Pipe) {
			p.errorAt(p.peekToken, diagnostics.ErrExpectedCommaOrPipeInLambda, string(p.peekToken.Kind))
			return nil
		}
	}
	if !p.expectPeek(token.Pipe, diagnostics.ErrExpectedPipe) {
		return nil
	}

	if p.peekIs(token.Arrow) {
		p.nextToken()
		p.nextToken()
		lambda.ReturnType = p.parseTypeExpr()
		if p.failed {
			return nil
		}
	}

	if !p.peekIs(token.LBrace) {
		p.errorAt(p.peekToken, diagnostics.ErrExpectedLeftBraceInLambdaBody, string(p.peekToken.Kind))
		return nil
	}
	p.nextToken()
	lambda.Body = p.parseBlockStatement()
	return lambda
}

func (p *Parser) parseYield() ast.Expression {
	expr := &ast.YieldExpression{Token: p.curToken}
	switch p.peekToken.Kind {
	case token.Semi, token.RBrace, token.RParen, token.RBracket, token.Comma, token.EOF:
		return expr
	}
	p.nextToken()
	expr.Value = p.parseExpression(LOWEST)
	return expr
}

func (p *Parser) parseBinaryExpression(left ast.Expression) ast.Expression {
	expr := &ast.BinaryExpression{
		Token:    p.curToken,
		Operator: p.curToken.Kind,
		Left:     left,
	}
	precedence := precedences[p.curToken.Kind]
	p.nextToken()
	expr.Right = p.parseExpression(precedence)

	// Fold-time guard: dividing a literal by literal zero can never execute
	// successfully, so it is rejected during parsing.
	if expr.Operator == token.Slash || expr.Operator == token.Percent {
		if isLiteralZero(expr.Right) && isNumberLiteral(expr.Left) {
			p.errorAt(expr.Token, diagnostics.ErrDivisionByZero)
			return nil
		}
	}
	return expr
}

func isNumberLiteral(e ast.Expression) bool {
	switch e.(type) {
	case *ast.IntegerLiteral, *ast.FloatLiteral:
		return true
	}
	return false
}

func isLiteralZero(e ast.Expression) bool {
	if lit, ok := e.(*ast.IntegerLiteral); ok {
		return lit.Value == 0
	}
	return false
}

func (p *Parser) parseCallExpression(callee ast.Expression) ast.Expression {
	expr := &ast.CallExpression{Token: p.curToken, Callee: callee}
	expr.Arguments = p.parseExpressionList(token.RParen)
	return expr
}

func (p *Parser) parseIndexExpression(object ast.Expression) ast.Expression {
	expr := &ast.IndexExpression{Token: p.curToken, Object: object}
	p.nextToken()
	expr.Index = p.parseExpression(LOWEST)
	if p.failed {
		return nil
	}
	if !p.expectPeek(token.RBracket, diagnostics.ErrUnexpectedToken) {
		return nil
	}
	return expr
}

func (p *Parser) parseMemberExpression(object ast.Expression) ast.Expression {
	expr := &ast.MemberExpression{Token: p.curToken, Object: object}
	if !p.peekIs(token.Ident) {
		p.errorAt(p.peekToken, diagnostics.ErrExpectedIdentifierAfterDot)
		return nil
	}
	p.nextToken()
	expr.Property = &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}
	return expr
}

func (p *Parser) parseAssignExpression(target ast.Expression) ast.Expression {
	switch target.(type) {
	case *ast.Identifier, *ast.MemberExpression, *ast.IndexExpression:
	default:
		p.errorAt(p.curToken, diagnostics.ErrUnexpectedToken, "assignable target", string(token.Assign))
		return nil
	}
	expr := &ast.AssignExpression{Token: p.curToken, Target: target}
	p.nextToken()
	// Right-associative: a = b = c parses as a = (b = c).
	expr.Value = p.parseExpression(ASSIGN - 1)
	return expr
}

func (p *Parser) parseCastExpression(left ast.Expression) ast.Expression {
	expr := &ast.CastExpression{Token: p.curToken, Expr: left}
	p.nextToken()
	expr.Type = p.parseTypeExpr()
	return expr
}

// parseTypeExpr parses a type annotation at curToken: a type name with
// optional <...> arguments.
func (p *Parser) parseTypeExpr() ast.TypeExpr {
	if !p.curIs(token.Ident) && !p.curIs(token.Json) {
		p.errorAt(p.curToken, diagnostics.ErrUnexpectedToken, "type name", string(p.curToken.Kind))
		return nil
	}
	t := &ast.NamedTypeExpr{Token: p.curToken, Name: p.curToken.Lexeme}
	if p.peekIs(token.Lt) {
		p.nextToken()
		p.nextToken()
		t.Args = append(t.Args, p.parseTypeExpr())
		for !p.failed && p.peekIs(token.Comma) {
			p.nextToken()
			p.nextToken()
			t.Args = append(t.Args, p.parseTypeExpr())
		}
		if p.failed {
			return nil
		}
		if !p.expectPeek(token.Gt, diagnostics.ErrUnexpectedToken) {
			return nil
		}
	}
	return t
}
