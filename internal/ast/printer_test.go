package ast

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFprint(t *testing.T) {
	program := &Program{
		Statements: []Statement{
			&VarStatement{
				Name: &Identifier{Value: "x"},
				Type: &NamedTypeExpr{Name: "int"},
				Value: &BinaryExpression{
					Operator: "+",
					Left:     &IntegerLiteral{Value: 1},
					Right: &BinaryExpression{
						Operator: "*",
						Left:     &IntegerLiteral{Value: 2},
						Right:    &IntegerLiteral{Value: 3},
					},
				},
			},
			&ReturnStatement{
				Value: &CallExpression{
					Callee:    &Identifier{Value: "f"},
					Arguments: []Expression{&StringLiteral{Value: "s"}},
				},
			},
		},
	}

	var sb strings.Builder
	Fprint(&sb, program)

	want := strings.Join([]string{
		"Var x: int",
		"  Binary +",
		"    Integer 1",
		"    Binary *",
		"      Integer 2",
		"      Integer 3",
		"Return",
		"  Call",
		"    Identifier f",
		`    String "s"`,
		"",
	}, "\n")
	assert.Equal(t, want, sb.String())
}

func TestFprintLambdaAndStruct(t *testing.T) {
	program := &Program{
		Statements: []Statement{
			&StructStatement{
				Name:       &Identifier{Value: "P"},
				FieldNames: []*Identifier{{Value: "x"}},
				FieldTypes: []TypeExpr{&NamedTypeExpr{Name: "int"}},
			},
			&ExpressionStatement{
				Expression: &LambdaExpression{
					Params:     []*Param{{Name: &Identifier{Value: "a"}, Type: &NamedTypeExpr{Name: "int"}}},
					ReturnType: &NamedTypeExpr{Name: "int"},
					Body: &BlockStatement{
						Statements: []Statement{
							&ReturnStatement{Value: &Identifier{Value: "a"}},
						},
					},
				},
			},
		},
	}

	var sb strings.Builder
	Fprint(&sb, program)
	out := sb.String()

	assert.Contains(t, out, "Struct P")
	assert.Contains(t, out, "x: int")
	assert.Contains(t, out, "Lambda |a: int| -> int")
	assert.Contains(t, out, "Return")
}
