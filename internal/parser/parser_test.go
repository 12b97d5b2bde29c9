package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyml2003/kaubo/internal/ast"
	"github.com/nyml2003/kaubo/internal/config"
	"github.com/nyml2003/kaubo/internal/diagnostics"
	"github.com/nyml2003/kaubo/internal/lexer"
	"github.com/nyml2003/kaubo/internal/parser"
	"github.com/nyml2003/kaubo/internal/pipeline"
	"github.com/nyml2003/kaubo/internal/token"
)

func parse(t *testing.T, source string) *pipeline.Context {
	t.Helper()
	ctx := pipeline.NewContext(source)
	ctx = (&lexer.Processor{Config: config.Default().Lexer}).Process(ctx)
	return (&parser.Processor{}).Process(ctx)
}

func parseOK(t *testing.T, source string) *ast.Program {
	t.Helper()
	ctx := parse(t, source)
	require.Empty(t, ctx.Errors, "parse errors: %v", ctx.Errors)
	return ctx.AstRoot
}

func TestParseStatements(t *testing.T) {
	sources := []string{
		"var x = 5;",
		"var x: int = 5;",
		"var l: list<int> = [1, 2];",
		"x = 1;",
		"if a { b(); }",
		"if a { b(); } else { c(); }",
		"if a { b(); } elif c { d(); } else { e(); }",
		"while x < 10 { x = x + 1; }",
		"for v in items { total = total + v; }",
		"return;",
		"return 1 + 2;",
		"while true { break; continue; }",
		"struct P { x: int, y: int }",
		"impl P { dist: |self| { return self.x; }, operator add: |self, other| { return self; } }",
		"import a.b.c;",
		"from m import x, y;",
		"module geo { pub var k = 1; var hidden = 2; }",
		"{ var scoped = 1; }",
		"var j = json { \"a\": 1, \"b\": [2, 3] };",
		"var f = || { return 1; };",
		"var g = |x: int, y| -> int { return x; };",
		"p = P { x: 1, y: 2 };",
		"var c = a.b.c(1)[2].d;",
		"yield;",
		"yield 42;",
		"var casted = 1 as float;",
	}
	for _, source := range sources {
		t.Run(source, func(t *testing.T) {
			parseOK(t, source)
		})
	}
}

func TestPrecedence(t *testing.T) {
	program := parseOK(t, "return 1 + 2 * 3;")
	ret := program.Statements[0].(*ast.ReturnStatement)
	add := ret.Value.(*ast.BinaryExpression)
	require.Equal(t, token.Plus, add.Operator)
	assert.IsType(t, &ast.IntegerLiteral{}, add.Left)
	mul := add.Right.(*ast.BinaryExpression)
	assert.Equal(t, token.Asterisk, mul.Operator)
}

func TestAssignmentIsRightAssociative(t *testing.T) {
	program := parseOK(t, "a = b = 1;")
	expr := program.Statements[0].(*ast.ExpressionStatement)
	outer := expr.Expression.(*ast.AssignExpression)
	assert.Equal(t, "a", outer.Target.(*ast.Identifier).Value)
	inner := outer.Value.(*ast.AssignExpression)
	assert.Equal(t, "b", inner.Target.(*ast.Identifier).Value)
}

func TestComparisonBindsLooserThanSum(t *testing.T) {
	program := parseOK(t, "return 1 + 2 == 3;")
	ret := program.Statements[0].(*ast.ReturnStatement)
	eq := ret.Value.(*ast.BinaryExpression)
	assert.Equal(t, token.Eq, eq.Operator)
}

func TestStructLiteralVersusBlock(t *testing.T) {
	// A bare identifier condition followed by a block must not parse as a
	// struct literal.
	program := parseOK(t, "if x { y(); }")
	ifStmt := program.Statements[0].(*ast.IfStatement)
	assert.IsType(t, &ast.Identifier{}, ifStmt.Cond)

	program = parseOK(t, "p = P { x: 1 };")
	expr := program.Statements[0].(*ast.ExpressionStatement)
	assign := expr.Expression.(*ast.AssignExpression)
	assert.IsType(t, &ast.StructLiteral{}, assign.Value)
}

func TestLambdaBodyMustBeBlock(t *testing.T) {
	ctx := parse(t, "var f = |x| x + 1;")
	require.NotEmpty(t, ctx.Errors)
	assert.Equal(t, diagnostics.ErrExpectedLeftBraceInLambdaBody, ctx.Errors[0].Code)
}

func TestElifChainsNest(t *testing.T) {
	program := parseOK(t, "if a { x(); } elif b { y(); } else { z(); }")
	ifStmt := program.Statements[0].(*ast.IfStatement)
	nested := ifStmt.Else.(*ast.IfStatement)
	assert.NotNil(t, nested.Else)
}

func TestImplOperators(t *testing.T) {
	program := parseOK(t, "impl P { operator add: |self, other| { return self; }, bump: |self| { return self; } }")
	impl := program.Statements[0].(*ast.ImplStatement)
	require.Len(t, impl.Methods, 2)
	assert.True(t, impl.Methods[0].Operator)
	assert.Equal(t, "add", impl.Methods[0].Name)
	assert.False(t, impl.Methods[1].Operator)
	assert.Equal(t, "bump", impl.Methods[1].Name)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		code   diagnostics.ErrorCode
	}{
		{"unexpected_token", "var = 1;", diagnostics.ErrUnexpectedToken},
		{"end_of_input", "var x = ", diagnostics.ErrUnexpectedEndOfInput},
		{"missing_paren", "return (1;", diagnostics.ErrMissingRightParen},
		{"missing_brace", "if a { b();", diagnostics.ErrMissingRightBrace},
		{"ident_after_dot", "a.;", diagnostics.ErrExpectedIdentifierAfterDot},
		{"lambda_param", "var f = |1| { };", diagnostics.ErrExpectedIdentifierInLambda},
		{"lambda_separator", "var f = |a b| { };", diagnostics.ErrExpectedCommaOrPipeInLambda},
		{"lambda_block", "var f = |a| a;", diagnostics.ErrExpectedLeftBraceInLambdaBody},
		{"division_by_zero", "return 3 / 0;", diagnostics.ErrDivisionByZero},
		{"modulo_by_zero", "return 3 % 0;", diagnostics.ErrDivisionByZero},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := parse(t, tc.source)
			require.NotEmpty(t, ctx.Errors)
			err := ctx.Errors[0]
			assert.Equal(t, tc.code, err.Code)
			assert.Equal(t, diagnostics.PhaseParser, err.Phase)
			assert.GreaterOrEqual(t, err.Token.Line, 0)
		})
	}
}

func TestErrorsCarryPosition(t *testing.T) {
	ctx := parse(t, "var x = 1;\nvar = 2;")
	require.NotEmpty(t, ctx.Errors)
	assert.Equal(t, 2, ctx.Errors[0].Token.Line)
}
