package checker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyml2003/kaubo/internal/checker"
	"github.com/nyml2003/kaubo/internal/config"
	"github.com/nyml2003/kaubo/internal/diagnostics"
	"github.com/nyml2003/kaubo/internal/lexer"
	"github.com/nyml2003/kaubo/internal/parser"
	"github.com/nyml2003/kaubo/internal/pipeline"
	"github.com/nyml2003/kaubo/internal/runtime"
)

func check(t *testing.T, source string) *pipeline.Context {
	t.Helper()
	ctx := pipeline.NewContext(source)
	stages := pipeline.New(
		&lexer.Processor{Config: config.Default().Lexer},
		&parser.Processor{},
		&checker.Processor{},
	)
	return stages.Run(ctx)
}

func TestValidPrograms(t *testing.T) {
	sources := []string{
		"var x = 5; x = x + 1;",
		"var x: int = 5;",
		"var s = \"a\" + \"b\";",
		"var f = |a: int, b: int| -> int { return a + b; }; f(1, 2);",
		"var any_val: any = 5; var s2: string = any_val;",
		"if true { } elif 1 < 2 { } else { }",
		"while 1 < 2 { break; }",
		"for v in [1, 2] { v = v + 1; }",
		"for ch in \"abc\" { }",
		"struct P { x: int } var p = P { x: 1 }; p.x = 2;",
		"std.print(42);",
		"std.assert(true, \"msg\");",
		"var r = std.sqrt(2 as float);",
		"var co = std.create_coroutine(|| { yield 1; });",
		"var l = [1, 2, 3]; var e: int = l[0];",
		"var j = json { \"a\": 1 }; var v = j[\"a\"];",
		"module m { pub var k = 1; } import m; var z = m.k;",
		"var cmp = 1 < 2 and 3 < 4 or not false;",
	}
	for _, source := range sources {
		t.Run(source, func(t *testing.T) {
			ctx := check(t, source)
			assert.Empty(t, ctx.Errors, "unexpected errors: %v", ctx.Errors)
		})
	}
}

func TestCheckerErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		code   diagnostics.ErrorCode
	}{
		{"undefined_var", "x = 1;", diagnostics.ErrUndefinedVar},
		{"annotation_mismatch", "var x: int = \"s\";", diagnostics.ErrTypeMismatch},
		{"assign_mismatch", "var x = 1; x = \"s\";", diagnostics.ErrTypeMismatch},
		{"int_plus_float", "var x = 1 + 2.0;", diagnostics.ErrTypeMismatch},
		{"int_plus_string", "var x = 1 + \"s\";", diagnostics.ErrTypeMismatch},
		{"condition_int", "if 1 { }", diagnostics.ErrTypeMismatch},
		{"while_condition", "while 1 { }", diagnostics.ErrTypeMismatch},
		{"not_on_int", "var x = not 1;", diagnostics.ErrTypeMismatch},
		{"neg_on_string", "var x = -\"s\";", diagnostics.ErrTypeMismatch},
		{"arity", "var f = |a: int| -> int { return a; }; f(1, 2);", diagnostics.ErrArityMismatch},
		{"arg_type", "var f = |a: int| -> int { return a; }; f(\"s\");", diagnostics.ErrTypeMismatch},
		{"call_non_function", "var x = 1; x(2);", diagnostics.ErrTypeMismatch},
		{"unknown_field", "struct P { x: int } var p = P { x: 1 }; var y = p.nope;", diagnostics.ErrUnknownField},
		{"unknown_member_std", "std.nope(1);", diagnostics.ErrUnknownField},
		{"duplicate_var", "var x = 1; var x = 2;", diagnostics.ErrDuplicateName},
		{"duplicate_struct", "struct P { x: int } struct P { y: int }", diagnostics.ErrDuplicateName},
		{"duplicate_field", "struct P { x: int, x: int }", diagnostics.ErrDuplicateName},
		{"struct_missing_field", "struct P { x: int, y: int } var p = P { x: 1 };", diagnostics.ErrTypeMismatch},
		{"struct_wrong_field_type", "struct P { x: int } var p = P { x: \"s\" };", diagnostics.ErrTypeMismatch},
		{"declared_return_mismatch", "var f = |a: int| -> int { return \"s\"; };", diagnostics.ErrTypeMismatch},
		{"joined_returns_conflict", "var f = |c: bool| { if c { return 1; } return \"s\"; };", diagnostics.ErrTypeMismatch},
		{"invalid_cast", "var x = true as int;", diagnostics.ErrInvalidCast},
		{"cast_string_to_int", "var x = \"5\" as int;", diagnostics.ErrInvalidCast},
		{"pipe_reserved", "var x = 1 | 2;", diagnostics.ErrTypeMismatch},
		{"break_outside_loop", "break;", diagnostics.ErrTypeMismatch},
		{"not_iterable", "for v in 5 { }", diagnostics.ErrTypeMismatch},
		{"list_index_type", "var l = [1]; var v = l[\"a\"];", diagnostics.ErrTypeMismatch},
		{"unknown_type_name", "var x: wibble = 1;", diagnostics.ErrTypeMismatch},
		{"unknown_import", "import nothing;", diagnostics.ErrUndefinedVar},
		{"impl_unknown_operator", "struct P { x: int } impl P { operator frobnicate: |self| { return 1; } }", diagnostics.ErrUnknownMethod},
		{"null_to_int", "var x: int = null;", diagnostics.ErrTypeMismatch},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := check(t, tc.source)
			require.NotEmpty(t, ctx.Errors)
			assert.Equal(t, tc.code, ctx.Errors[0].Code)
			assert.Equal(t, diagnostics.PhaseChecker, ctx.Errors[0].Phase)
		})
	}
}

func TestShapeAssignment(t *testing.T) {
	ctx := check(t, `
		struct P { x: int, y: int }
		struct Q { z: float }
		impl P {
			norm: |self| -> int { return self.x; },
			operator add: |self, other| { return P { x: self.x + other.x, y: self.y + other.y }; }
		}
	`)
	require.Empty(t, ctx.Errors)
	shapes := ctx.Shapes.(*runtime.ShapeTable)

	p, ok := shapes.Lookup("P")
	require.True(t, ok)
	q, ok := shapes.Lookup("Q")
	require.True(t, ok)

	assert.GreaterOrEqual(t, p.ID, runtime.UserShapeBase)
	assert.Equal(t, p.ID+1, q.ID)
	assert.Equal(t, []string{"x", "y"}, p.FieldNames)
	assert.Equal(t, 0, p.SlotOf("x"))
	assert.Equal(t, 1, p.SlotOf("y"))
	assert.Equal(t, -1, p.SlotOf("nope"))

	assert.Contains(t, p.MethodTypes, "norm")
	assert.NotNil(t, p.OperatorTypes[config.OpAdd])
	assert.Nil(t, p.OperatorTypes[config.OpSub])
}

func TestStdShapeDeclared(t *testing.T) {
	ctx := check(t, "var x = 1;")
	shapes := ctx.Shapes.(*runtime.ShapeTable)
	std, ok := shapes.Lookup("std")
	require.True(t, ok)
	assert.Equal(t, 0, std.SlotOf("print"))
	assert.Equal(t, 14, std.SlotOf("len"))
	assert.Equal(t, 15, std.SlotOf("range"))
}
