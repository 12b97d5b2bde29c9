package parser

import (
	"github.com/nyml2003/kaubo/internal/ast"
	"github.com/nyml2003/kaubo/internal/diagnostics"
	"github.com/nyml2003/kaubo/internal/token"
)

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Kind {
	case token.Var:
		return p.parseVarStatement(false)
	case token.Pub:
		return p.parsePubStatement()
	case token.If:
		return p.parseIfStatement()
	case token.While:
		return p.parseWhileStatement()
	case token.For:
		return p.parseForStatement()
	case token.Return:
		return p.parseReturnStatement()
	case token.Break:
		stmt := &ast.BreakStatement{Token: p.curToken}
		p.expectSemi()
		return stmt
	case token.Continue:
		stmt := &ast.ContinueStatement{Token: p.curToken}
		p.expectSemi()
		return stmt
	case token.Struct:
		return p.parseStructStatement(false)
	case token.Impl:
		return p.parseImplStatement()
	case token.Import:
		return p.parseImportStatement()
	case token.From:
		return p.parseFromImportStatement()
	case token.Module:
		return p.parseModuleStatement()
	case token.LBrace:
		return p.parseBlockStatement()
	case token.Semi:
		return nil
	default:
		return p.parseExpressionStatement()
	}
}

func (p *Parser) expectSemi() bool {
	return p.expectPeek(token.Semi, diagnostics.ErrUnexpectedToken)
}

func (p *Parser) parseExpressionStatement() ast.Statement {
	stmt := &ast.ExpressionStatement{Token: p.curToken}
	stmt.Expression = p.parseExpression(LOWEST)
	if p.failed {
		return nil
	}
	p.expectSemi()
	return stmt
}

// parseBlockStatement parses { stmt* } with curToken on '{'.
func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	block := &ast.BlockStatement{Token: p.curToken}
	p.nextToken()
	for !p.curIs(token.RBrace) && !p.failed {
		if p.curIs(token.EOF) {
			p.errorAt(p.curToken, diagnostics.ErrMissingRightBrace, string(token.EOF))
			return nil
		}
		stmt := p.parseStatement()
		if p.failed {
			return nil
		}
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.nextToken()
	}
	return block
}

func (p *Parser) parsePubStatement() ast.Statement {
	switch p.peekToken.Kind {
	case token.Var:
		p.nextToken()
		return p.parseVarStatement(true)
	case token.Struct:
		p.nextToken()
		return p.parseStructStatement(true)
	default:
		p.errorAt(p.peekToken, diagnostics.ErrUnexpectedToken, "var or struct", string(p.peekToken.Kind))
		return nil
	}
}

func (p *Parser) parseVarStatement(pub bool) ast.Statement {
	stmt := &ast.VarStatement{Token: p.curToken, Pub: pub}
	if !p.expectPeek(token.Ident, diagnostics.ErrUnexpectedToken) {
		return nil
	}
	stmt.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}

	if p.peekIs(token.Colon) {
		p.nextToken()
		p.nextToken()
		stmt.Type = p.parseTypeExpr()
		if p.failed {
			return nil
		}
	}

	if !p.expectPeek(token.Assign, diagnostics.ErrUnexpectedToken) {
		return nil
	}
	p.nextToken()
	stmt.Value = p.parseExpression(LOWEST)
	if p.failed {
		return nil
	}
	p.expectSemi()
	return stmt
}

func (p *Parser) parseIfStatement() ast.Statement {
	stmt := &ast.IfStatement{Token: p.curToken}
	p.nextToken()
	stmt.Cond = p.parseExpression(LOWEST)
	if p.failed {
		return nil
	}
	if !p.expectPeek(token.LBrace, diagnostics.ErrUnexpectedToken) {
		return nil
	}
	stmt.Then = p.parseBlockStatement()
	if p.failed {
		return nil
	}

	switch p.peekToken.Kind {
	case token.Elif:
		p.nextToken()
		stmt.Else = p.parseIfStatement()
	case token.Else:
		p.nextToken()
		if !p.expectPeek(token.LBrace, diagnostics.ErrUnexpectedToken) {
			return nil
		}
		stmt.Else = p.parseBlockStatement()
	}
	if p.failed {
		return nil
	}
	return stmt
}

func (p *Parser) parseWhileStatement() ast.Statement {
	stmt := &ast.WhileStatement{Token: p.curToken}
	p.nextToken()
	stmt.Cond = p.parseExpression(LOWEST)
	if p.failed {
		return nil
	}
	if !p.expectPeek(token.LBrace, diagnostics.ErrUnexpectedToken) {
		return nil
	}
	stmt.Body = p.parseBlockStatement()
	return stmt
}

func (p *Parser) parseForStatement() ast.Statement {
	stmt := &ast.ForStatement{Token: p.curToken}
	if !p.expectPeek(token.Ident, diagnostics.ErrUnexpectedToken) {
		return nil
	}
	stmt.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}
	if !p.expectPeek(token.In, diagnostics.ErrUnexpectedToken) {
		return nil
	}
	p.nextToken()
	stmt.Iterable = p.parseExpression(LOWEST)
	if p.failed {
		return nil
	}
	if !p.expectPeek(token.LBrace, diagnostics.ErrUnexpectedToken) {
		return nil
	}
	stmt.Body = p.parseBlockStatement()
	return stmt
}

func (p *Parser) parseReturnStatement() ast.Statement {
	stmt := &ast.ReturnStatement{Token: p.curToken}
	if p.peekIs(token.Semi) {
		p.nextToken()
		return stmt
	}
	p.nextToken()
	stmt.Value = p.parseExpression(LOWEST)
	if p.failed {
		return nil
	}
	p.expectSemi()
	return stmt
}

func (p *Parser) parseStructStatement(pub bool) ast.Statement {
	stmt := &ast.StructStatement{Token: p.curToken, Pub: pub}
	if !p.expectPeek(token.Ident, diagnostics.ErrUnexpectedToken) {
		return nil
	}
	stmt.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}
	if !p.expectPeek(token.LBrace, diagnostics.ErrUnexpectedToken) {
		return nil
	}
	for !p.peekIs(token.RBrace) {
		if !p.expectPeek(token.Ident, diagnostics.ErrUnexpectedToken) {
			return nil
		}
		field := &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}
		if !p.expectPeek(token.Colon, diagnostics.ErrUnexpectedToken) {
			return nil
		}
		p.nextToken()
		fieldType := p.parseTypeExpr()
		if p.failed {
			return nil
		}
		stmt.FieldNames = append(stmt.FieldNames, field)
		stmt.FieldTypes = append(stmt.FieldTypes, fieldType)
		if p.peekIs(token.Comma) {
			p.nextToken()
			continue
		}
		break
	}
	if !p.expectPeek(token.RBrace, diagnostics.ErrMissingRightBrace) {
		return nil
	}
	return stmt
}

func (p *Parser) parseImplStatement() ast.Statement {
	stmt := &ast.ImplStatement{Token: p.curToken}
	if !p.expectPeek(token.Ident, diagnostics.ErrUnexpectedToken) {
		return nil
	}
	stmt.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}
	if !p.expectPeek(token.LBrace, diagnostics.ErrUnexpectedToken) {
		return nil
	}
	for !p.peekIs(token.RBrace) {
		method := &ast.ImplMethod{}
		if p.peekIs(token.Operator) {
			p.nextToken()
			method.Token = p.curToken
			method.Operator = true
			if !p.expectPeek(token.Ident, diagnostics.ErrUnexpectedToken) {
				return nil
			}
			method.Name = p.curToken.Lexeme
		} else {
			if !p.expectPeek(token.Ident, diagnostics.ErrUnexpectedToken) {
				return nil
			}
			method.Token = p.curToken
			method.Name = p.curToken.Lexeme
		}
		if !p.expectPeek(token.Colon, diagnostics.ErrUnexpectedToken) {
			return nil
		}
		if !p.expectPeek(token.Pipe, diagnostics.ErrExpectedPipe) {
			return nil
		}
		lambda, ok := p.parseLambda().(*ast.LambdaExpression)
		if !ok || p.failed {
			return nil
		}
		method.Lambda = lambda
		stmt.Methods = append(stmt.Methods, method)
		if p.peekIs(token.Comma) {
			p.nextToken()
			continue
		}
		break
	}
	if !p.expectPeek(token.RBrace, diagnostics.ErrMissingRightBrace) {
		return nil
	}
	return stmt
}

func (p *Parser) parseDottedPath() []string {
	path := []string{p.curToken.Lexeme}
	for p.peekIs(token.Dot) {
		p.nextToken()
		if !p.expectPeek(token.Ident, diagnostics.ErrExpectedIdentifierAfterDot) {
			return nil
		}
		path = append(path, p.curToken.Lexeme)
	}
	return path
}

func (p *Parser) parseImportStatement() ast.Statement {
	stmt := &ast.ImportStatement{Token: p.curToken}
	if !p.expectPeek(token.Ident, diagnostics.ErrUnexpectedToken) {
		return nil
	}
	stmt.Path = p.parseDottedPath()
	if p.failed {
		return nil
	}
	p.expectSemi()
	return stmt
}

func (p *Parser) parseFromImportStatement() ast.Statement {
	stmt := &ast.FromImportStatement{Token: p.curToken}
	if !p.expectPeek(token.Ident, diagnostics.ErrUnexpectedToken) {
		return nil
	}
	stmt.Path = p.parseDottedPath()
	if p.failed {
		return nil
	}
	if !p.expectPeek(token.Import, diagnostics.ErrUnexpectedToken) {
		return nil
	}
	if !p.expectPeek(token.Ident, diagnostics.ErrUnexpectedToken) {
		return nil
	}
	stmt.Names = append(stmt.Names, &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme})
	for p.peekIs(token.Comma) {
		p.nextToken()
		if !p.expectPeek(token.Ident, diagnostics.ErrUnexpectedToken) {
			return nil
		}
		stmt.Names = append(stmt.Names, &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme})
	}
	p.expectSemi()
	return stmt
}

func (p *Parser) parseModuleStatement() ast.Statement {
	stmt := &ast.ModuleStatement{Token: p.curToken}
	if !p.expectPeek(token.Ident, diagnostics.ErrUnexpectedToken) {
		return nil
	}
	stmt.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}
	if !p.expectPeek(token.LBrace, diagnostics.ErrUnexpectedToken) {
		return nil
	}
	p.nextToken()
	for !p.curIs(token.RBrace) && !p.failed {
		if p.curIs(token.EOF) {
			p.errorAt(p.curToken, diagnostics.ErrMissingRightBrace, string(token.EOF))
			return nil
		}
		inner := p.parseStatement()
		if p.failed {
			return nil
		}
		if inner != nil {
			stmt.Body = append(stmt.Body, inner)
		}
		p.nextToken()
	}
	return stmt
}
