package ast

import (
	"fmt"
	"io"
	"strings"
)

// Fprint writes an indented tree rendering of the program, one node per
// line. It backs the CLI's ast emit mode.
func Fprint(w io.Writer, program *Program) {
	p := &printer{w: w}
	for _, stmt := range program.Statements {
		p.stmt(stmt)
	}
}

type printer struct {
	w      io.Writer
	indent int
}

func (p *printer) line(format string, args ...interface{}) {
	fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("  ", p.indent), fmt.Sprintf(format, args...))
}

func (p *printer) nested(fn func()) {
	p.indent++
	fn()
	p.indent--
}

func typeString(t TypeExpr) string {
	switch tt := t.(type) {
	case nil:
		return ""
	case *NamedTypeExpr:
		if len(tt.Args) == 0 {
			return tt.Name
		}
		args := make([]string, len(tt.Args))
		for i, a := range tt.Args {
			args[i] = typeString(a)
		}
		return tt.Name + "<" + strings.Join(args, ", ") + ">"
	case *FuncTypeExpr:
		params := make([]string, len(tt.Params))
		for i, pt := range tt.Params {
			params[i] = typeString(pt)
		}
		return "function(" + strings.Join(params, ", ") + ") -> " + typeString(tt.Return)
	}
	return "?"
}

func (p *printer) stmt(s Statement) {
	switch st := s.(type) {
	case *ExpressionStatement:
		p.line("ExpressionStatement")
		p.nested(func() { p.expr(st.Expression) })
	case *BlockStatement:
		p.line("Block")
		p.nested(func() {
			for _, inner := range st.Statements {
				p.stmt(inner)
			}
		})
	case *VarStatement:
		label := "Var " + st.Name.Value
		if st.Pub {
			label = "Pub" + label
		}
		if st.Type != nil {
			label += ": " + typeString(st.Type)
		}
		p.line(label)
		p.nested(func() { p.expr(st.Value) })
	case *IfStatement:
		p.line("If")
		p.nested(func() {
			p.expr(st.Cond)
			p.stmt(st.Then)
			if st.Else != nil {
				p.line("Else")
				p.nested(func() { p.stmt(st.Else) })
			}
		})
	case *WhileStatement:
		p.line("While")
		p.nested(func() {
			p.expr(st.Cond)
			p.stmt(st.Body)
		})
	case *ForStatement:
		p.line("For %s in", st.Name.Value)
		p.nested(func() {
			p.expr(st.Iterable)
			p.stmt(st.Body)
		})
	case *ReturnStatement:
		p.line("Return")
		if st.Value != nil {
			p.nested(func() { p.expr(st.Value) })
		}
	case *BreakStatement:
		p.line("Break")
	case *ContinueStatement:
		p.line("Continue")
	case *StructStatement:
		label := "Struct " + st.Name.Value
		if st.Pub {
			label = "Pub" + label
		}
		p.line(label)
		p.nested(func() {
			for i, field := range st.FieldNames {
				p.line("%s: %s", field.Value, typeString(st.FieldTypes[i]))
			}
		})
	case *ImplStatement:
		p.line("Impl %s", st.Name.Value)
		p.nested(func() {
			for _, m := range st.Methods {
				if m.Operator {
					p.line("Operator %s", m.Name)
				} else {
					p.line("Method %s", m.Name)
				}
				p.nested(func() { p.expr(m.Lambda) })
			}
		})
	case *ImportStatement:
		p.line("Import %s", strings.Join(st.Path, "."))
	case *FromImportStatement:
		names := make([]string, len(st.Names))
		for i, n := range st.Names {
			names[i] = n.Value
		}
		p.line("From %s Import %s", strings.Join(st.Path, "."), strings.Join(names, ", "))
	case *ModuleStatement:
		p.line("Module %s", st.Name.Value)
		p.nested(func() {
			for _, inner := range st.Body {
				p.stmt(inner)
			}
		})
	default:
		p.line("%T", s)
	}
}

func (p *printer) expr(e Expression) {
	switch ex := e.(type) {
	case *Identifier:
		p.line("Identifier %s", ex.Value)
	case *IntegerLiteral:
		p.line("Integer %d", ex.Value)
	case *FloatLiteral:
		p.line("Float %g", ex.Value)
	case *StringLiteral:
		p.line("String %q", ex.Value)
	case *BooleanLiteral:
		p.line("Boolean %t", ex.Value)
	case *NullLiteral:
		p.line("Null")
	case *ListLiteral:
		p.line("List")
		p.nested(func() {
			for _, el := range ex.Elements {
				p.expr(el)
			}
		})
	case *JsonLiteral:
		p.line("Json")
		p.nested(func() {
			for i, key := range ex.Keys {
				p.line("%q:", key.Value)
				p.nested(func() { p.expr(ex.Values[i]) })
			}
		})
	case *StructLiteral:
		p.line("StructLiteral %s", ex.Name.Value)
		p.nested(func() {
			for i, field := range ex.FieldNames {
				p.line("%s:", field.Value)
				p.nested(func() { p.expr(ex.FieldValues[i]) })
			}
		})
	case *MemberExpression:
		p.line("Member .%s", ex.Property.Value)
		p.nested(func() { p.expr(ex.Object) })
	case *IndexExpression:
		p.line("Index")
		p.nested(func() {
			p.expr(ex.Object)
			p.expr(ex.Index)
		})
	case *CallExpression:
		p.line("Call")
		p.nested(func() {
			p.expr(ex.Callee)
			for _, arg := range ex.Arguments {
				p.expr(arg)
			}
		})
	case *BinaryExpression:
		p.line("Binary %s", ex.Operator)
		p.nested(func() {
			p.expr(ex.Left)
			p.expr(ex.Right)
		})
	case *UnaryExpression:
		p.line("Unary %s", ex.Operator)
		p.nested(func() { p.expr(ex.Operand) })
	case *LambdaExpression:
		params := make([]string, len(ex.Params))
		for i, param := range ex.Params {
			params[i] = param.Name.Value
			if param.Type != nil {
				params[i] += ": " + typeString(param.Type)
			}
		}
		label := "Lambda |" + strings.Join(params, ", ") + "|"
		if ex.ReturnType != nil {
			label += " -> " + typeString(ex.ReturnType)
		}
		p.line(label)
		p.nested(func() { p.stmt(ex.Body) })
	case *AssignExpression:
		p.line("Assign")
		p.nested(func() {
			p.expr(ex.Target)
			p.expr(ex.Value)
		})
	case *CastExpression:
		p.line("Cast as %s", typeString(ex.Type))
		p.nested(func() { p.expr(ex.Expr) })
	case *YieldExpression:
		p.line("Yield")
		if ex.Value != nil {
			p.nested(func() { p.expr(ex.Value) })
		}
	default:
		p.line("%T", e)
	}
}
