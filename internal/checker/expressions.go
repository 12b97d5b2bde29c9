package checker

import (
	"github.com/nyml2003/kaubo/internal/ast"
	"github.com/nyml2003/kaubo/internal/config"
	"github.com/nyml2003/kaubo/internal/diagnostics"
	"github.com/nyml2003/kaubo/internal/token"
	"github.com/nyml2003/kaubo/internal/typesystem"
)

func (c *Checker) checkExpression(expr ast.Expression) typesystem.Type {
	if c.failed || expr == nil {
		return typesystem.Any
	}
	switch e := expr.(type) {
	case *ast.IntegerLiteral:
		return c.record(e, typesystem.Int)
	case *ast.FloatLiteral:
		return c.record(e, typesystem.Float)
	case *ast.StringLiteral:
		return c.record(e, typesystem.String)
	case *ast.BooleanLiteral:
		return c.record(e, typesystem.Bool)
	case *ast.NullLiteral:
		return c.record(e, typesystem.Null)
	case *ast.Identifier:
		return c.checkIdentifier(e)
	case *ast.ListLiteral:
		return c.checkListLiteral(e)
	case *ast.JsonLiteral:
		return c.checkJsonLiteral(e)
	case *ast.StructLiteral:
		return c.checkStructLiteral(e)
	case *ast.MemberExpression:
		return c.checkMemberExpression(e)
	case *ast.IndexExpression:
		return c.checkIndexExpression(e)
	case *ast.CallExpression:
		return c.checkCallExpression(e)
	case *ast.BinaryExpression:
		return c.checkBinaryExpression(e)
	case *ast.UnaryExpression:
		return c.checkUnaryExpression(e)
	case *ast.LambdaExpression:
		return c.record(e, c.checkLambda(e, nil))
	case *ast.AssignExpression:
		return c.checkAssignExpression(e)
	case *ast.CastExpression:
		return c.checkCastExpression(e)
	case *ast.YieldExpression:
		if e.Value != nil {
			c.checkExpression(e.Value)
		}
		return c.record(e, typesystem.Any)
	}
	return typesystem.Any
}

func (c *Checker) checkIdentifier(e *ast.Identifier) typesystem.Type {
	if t, ok := c.resolve(e.Value); ok {
		return c.record(e, t)
	}
	// Unresolved names fall back to module-qualified lookups in std.
	if std, ok := c.shapes.Lookup("std"); ok {
		if slot := std.SlotOf(e.Value); slot >= 0 {
			return c.record(e, std.FieldTypes[slot])
		}
	}
	c.errorAt(e.Token, diagnostics.ErrUndefinedVar, e.Value)
	return typesystem.Any
}

func (c *Checker) checkListLiteral(e *ast.ListLiteral) typesystem.Type {
	elem := typesystem.Type(nil)
	for _, el := range e.Elements {
		t := c.checkExpression(el)
		if c.failed {
			return typesystem.Any
		}
		joined := typesystem.Join(elem, t)
		if joined == nil {
			// Mixed element types degrade to list<any>.
			joined = typesystem.Any
		}
		elem = joined
	}
	if elem == nil {
		elem = typesystem.Any
	}
	return c.record(e, typesystem.List{Elem: elem})
}

func (c *Checker) checkJsonLiteral(e *ast.JsonLiteral) typesystem.Type {
	seen := make(map[string]bool, len(e.Keys))
	for i, key := range e.Keys {
		if seen[key.Value] {
			c.errorAt(key.Token, diagnostics.ErrDuplicateName, key.Value)
			return typesystem.Any
		}
		seen[key.Value] = true
		c.checkExpression(e.Values[i])
		if c.failed {
			return typesystem.Any
		}
	}
	return c.record(e, typesystem.Json{})
}

func (c *Checker) checkStructLiteral(e *ast.StructLiteral) typesystem.Type {
	shape, ok := c.shapes.Lookup(e.Name.Value)
	if !ok {
		c.errorAt(e.Name.Token, diagnostics.ErrUndefinedVar, e.Name.Value)
		return typesystem.Any
	}
	provided := make(map[string]bool, len(e.FieldNames))
	for i, field := range e.FieldNames {
		slot := shape.SlotOf(field.Value)
		if slot < 0 {
			c.errorAt(field.Token, diagnostics.ErrUnknownField, shape.Name, field.Value)
			return typesystem.Any
		}
		if provided[field.Value] {
			c.errorAt(field.Token, diagnostics.ErrDuplicateName, field.Value)
			return typesystem.Any
		}
		provided[field.Value] = true
		valueType := c.checkExpression(e.FieldValues[i])
		if c.failed {
			return typesystem.Any
		}
		if !typesystem.Compatible(shape.FieldTypes[slot], valueType) {
			c.mismatch(field.Token, "field %s.%s expects %s, got %s",
				shape.Name, field.Value, shape.FieldTypes[slot], valueType)
			return typesystem.Any
		}
	}
	for _, name := range shape.FieldNames {
		if !provided[name] {
			c.mismatch(e.Token, "missing field %s.%s", shape.Name, name)
			return typesystem.Any
		}
	}
	return c.record(e, typesystem.Named{Name: shape.Name, ShapeID: shape.ID})
}

func (c *Checker) checkMemberExpression(e *ast.MemberExpression) typesystem.Type {
	objType := c.checkExpression(e.Object)
	if c.failed {
		return typesystem.Any
	}
	prop := e.Property.Value
	switch t := objType.(type) {
	case typesystem.Module:
		shape := c.shapes.Get(t.ShapeID)
		slot := shape.SlotOf(prop)
		if slot < 0 {
			c.errorAt(e.Property.Token, diagnostics.ErrUnknownField, t.Name, prop)
			return typesystem.Any
		}
		return c.record(e, shape.FieldTypes[slot])
	case typesystem.Named:
		shape := c.shapes.Get(t.ShapeID)
		if slot := shape.SlotOf(prop); slot >= 0 {
			return c.record(e, shape.FieldTypes[slot])
		}
		if mt, ok := shape.MethodTypes[prop]; ok {
			// Accessing a method through a value binds the receiver: the
			// self parameter disappears from the visible signature.
			if ft, isFunc := mt.(typesystem.Func); isFunc && len(ft.Params) > 0 {
				return c.record(e, typesystem.Func{Params: ft.Params[1:], Return: ft.Return})
			}
			return c.record(e, mt)
		}
		c.errorAt(e.Property.Token, diagnostics.ErrUnknownField, t.Name, prop)
		return typesystem.Any
	case typesystem.Primitive:
		if t.Name == "any" {
			return c.record(e, typesystem.Any)
		}
		c.errorAt(e.Property.Token, diagnostics.ErrUnknownField, objType.String(), prop)
		return typesystem.Any
	default:
		c.errorAt(e.Property.Token, diagnostics.ErrUnknownField, objType.String(), prop)
		return typesystem.Any
	}
}

func (c *Checker) checkIndexExpression(e *ast.IndexExpression) typesystem.Type {
	objType := c.checkExpression(e.Object)
	if c.failed {
		return typesystem.Any
	}
	idxType := c.checkExpression(e.Index)
	if c.failed {
		return typesystem.Any
	}
	switch t := objType.(type) {
	case typesystem.List:
		if !typesystem.Compatible(typesystem.Int, idxType) {
			c.mismatch(e.Token, "list index must be int, got %s", idxType)
			return typesystem.Any
		}
		return c.record(e, t.Elem)
	case typesystem.Json:
		if !typesystem.Compatible(typesystem.String, idxType) {
			c.mismatch(e.Token, "json key must be string, got %s", idxType)
			return typesystem.Any
		}
		return c.record(e, typesystem.Any)
	case typesystem.Named:
		shape := c.shapes.Get(t.ShapeID)
		if opType := shape.OperatorTypes[config.OpGet]; opType != nil {
			if ft, ok := opType.(typesystem.Func); ok {
				return c.record(e, ft.Return)
			}
			return c.record(e, typesystem.Any)
		}
		c.mismatch(e.Token, "%s does not define operator get", t)
		return typesystem.Any
	case typesystem.Primitive:
		switch t.Name {
		case "string":
			if !typesystem.Compatible(typesystem.Int, idxType) {
				c.mismatch(e.Token, "string index must be int, got %s", idxType)
				return typesystem.Any
			}
			return c.record(e, typesystem.String)
		case "any":
			return c.record(e, typesystem.Any)
		}
	}
	c.mismatch(e.Token, "%s is not indexable", objType)
	return typesystem.Any
}

func (c *Checker) checkCallExpression(e *ast.CallExpression) typesystem.Type {
	calleeType := c.checkExpression(e.Callee)
	if c.failed {
		return typesystem.Any
	}
	argTypes := make([]typesystem.Type, len(e.Arguments))
	for i, arg := range e.Arguments {
		argTypes[i] = c.checkExpression(arg)
		if c.failed {
			return typesystem.Any
		}
	}
	switch ft := calleeType.(type) {
	case typesystem.Func:
		if len(ft.Params) != len(argTypes) {
			c.errorAt(e.Token, diagnostics.ErrArityMismatch, len(ft.Params), len(argTypes))
			return typesystem.Any
		}
		for i, pt := range ft.Params {
			if !typesystem.Compatible(pt, argTypes[i]) {
				c.mismatch(e.Arguments[i].GetToken(), "argument %d expects %s, got %s", i+1, pt, argTypes[i])
				return typesystem.Any
			}
		}
		return c.record(e, ft.Return)
	case typesystem.Primitive:
		if ft.Name == "any" {
			return c.record(e, typesystem.Any)
		}
	case typesystem.Named:
		shape := c.shapes.Get(ft.ShapeID)
		if opType := shape.OperatorTypes[config.OpCall]; opType != nil {
			if f, ok := opType.(typesystem.Func); ok {
				return c.record(e, f.Return)
			}
			return c.record(e, typesystem.Any)
		}
	}
	c.mismatch(e.Token, "%s is not callable", calleeType)
	return typesystem.Any
}

func (c *Checker) checkBinaryExpression(e *ast.BinaryExpression) typesystem.Type {
	left := c.checkExpression(e.Left)
	if c.failed {
		return typesystem.Any
	}
	right := c.checkExpression(e.Right)
	if c.failed {
		return typesystem.Any
	}

	switch e.Operator {
	case token.And, token.Or:
		if !typesystem.Compatible(typesystem.Bool, left) || !typesystem.Compatible(typesystem.Bool, right) {
			c.mismatch(e.Token, "%s expects bool operands, got %s and %s", e.Operator, left, right)
			return typesystem.Any
		}
		return c.record(e, typesystem.Bool)
	}

	// Custom operator dispatch on user shapes, including the reserved pipe.
	if t, ok := left.(typesystem.Named); ok {
		return c.checkShapeOperator(e, t, right)
	}
	if e.Operator == token.Pipe {
		if t, ok := right.(typesystem.Named); ok {
			return c.checkShapeOperator(e, t, left)
		}
		c.mismatch(e.Token, "operator | is reserved; %s does not define operator pipe", left)
		return typesystem.Any
	}
	if t, ok := right.(typesystem.Named); ok {
		// Left operand is built-in: only the commuted radd/rmul forms apply.
		kind, _ := opKindOfToken(e.Operator)
		if rev, hasRev := config.ReverseOf(kind); hasRev {
			shape := c.shapes.Get(t.ShapeID)
			if opType := shape.OperatorTypes[rev]; opType != nil {
				if ft, ok := opType.(typesystem.Func); ok {
					return c.record(e, ft.Return)
				}
				return c.record(e, typesystem.Any)
			}
		}
		c.mismatch(e.Token, "operator %s not supported for %s and %s", e.Operator, left, right)
		return typesystem.Any
	}

	switch e.Operator {
	case token.Plus:
		if typesystem.Equal(left, typesystem.String) && typesystem.Equal(right, typesystem.String) {
			return c.record(e, typesystem.String)
		}
		fallthrough
	case token.Minus, token.Asterisk, token.Slash, token.Percent:
		if typesystem.IsAny(left) || typesystem.IsAny(right) {
			return c.record(e, typesystem.Any)
		}
		if !typesystem.IsNumeric(left) || !typesystem.Equal(left, right) {
			c.mismatch(e.Token, "operator %s expects matching numeric operands, got %s and %s", e.Operator, left, right)
			return typesystem.Any
		}
		return c.record(e, left)
	case token.Eq, token.NotEq, token.Lt, token.Gt, token.Le, token.Ge:
		if !typesystem.IsAny(left) && !typesystem.IsAny(right) && !typesystem.Equal(left, right) {
			c.mismatch(e.Token, "comparison %s expects matching operands, got %s and %s", e.Operator, left, right)
			return typesystem.Any
		}
		return c.record(e, typesystem.Bool)
	case token.Pipe:
		c.mismatch(e.Token, "operator | is reserved; %s does not define operator pipe", left)
		return typesystem.Any
	}
	c.mismatch(e.Token, "unsupported operator %s", e.Operator)
	return typesystem.Any
}

func (c *Checker) checkShapeOperator(e *ast.BinaryExpression, t typesystem.Named, other typesystem.Type) typesystem.Type {
	kind, ok := opKindOfToken(e.Operator)
	if !ok {
		c.mismatch(e.Token, "unsupported operator %s", e.Operator)
		return typesystem.Any
	}
	shape := c.shapes.Get(t.ShapeID)
	opType := shape.OperatorTypes[kind]
	if opType == nil {
		if e.Operator == token.Pipe {
			c.mismatch(e.Token, "operator | is reserved; %s does not define operator pipe", t)
		} else {
			c.mismatch(e.Token, "operator %s not supported for %s and %s", e.Operator, t, other)
		}
		return typesystem.Any
	}
	result := typesystem.Type(typesystem.Any)
	if ft, isFunc := opType.(typesystem.Func); isFunc {
		result = ft.Return
	}
	if kind == config.OpEq || kind == config.OpLt || kind == config.OpLe {
		result = typesystem.Bool
	}
	return c.record(e, result)
}

func (c *Checker) checkUnaryExpression(e *ast.UnaryExpression) typesystem.Type {
	operand := c.checkExpression(e.Operand)
	if c.failed {
		return typesystem.Any
	}
	switch e.Operator {
	case token.Not:
		if !typesystem.Compatible(typesystem.Bool, operand) {
			c.mismatch(e.Token, "not expects bool, got %s", operand)
			return typesystem.Any
		}
		return c.record(e, typesystem.Bool)
	case token.Minus:
		if t, ok := operand.(typesystem.Named); ok {
			shape := c.shapes.Get(t.ShapeID)
			if opType := shape.OperatorTypes[config.OpNeg]; opType != nil {
				if ft, isFunc := opType.(typesystem.Func); isFunc {
					return c.record(e, ft.Return)
				}
				return c.record(e, typesystem.Any)
			}
			c.mismatch(e.Token, "%s does not define operator neg", t)
			return typesystem.Any
		}
		if !typesystem.IsNumeric(operand) && !typesystem.IsAny(operand) {
			c.mismatch(e.Token, "unary - expects a number, got %s", operand)
			return typesystem.Any
		}
		return c.record(e, operand)
	}
	return typesystem.Any
}

// checkLambda types a lambda body. When selfType is non-nil the lambda is an
// impl method and its first parameter defaults to the receiver type.
func (c *Checker) checkLambda(e *ast.LambdaExpression, selfType typesystem.Type) typesystem.Type {
	params := make([]typesystem.Type, len(e.Params))
	for i, p := range e.Params {
		switch {
		case p.Type != nil:
			params[i] = c.resolveTypeExpr(p.Type)
			if c.failed {
				return typesystem.Any
			}
		case i == 0 && selfType != nil:
			params[i] = selfType
		default:
			params[i] = typesystem.Any
		}
	}

	var declared typesystem.Type
	if e.ReturnType != nil {
		declared = c.resolveTypeExpr(e.ReturnType)
		if c.failed {
			return typesystem.Any
		}
	}

	c.funcs = append(c.funcs, &funcCtx{declared: declared})
	c.pushScope()
	for i, p := range e.Params {
		c.define(p.Name.Value, params[i])
	}
	for _, stmt := range e.Body.Statements {
		if c.failed {
			break
		}
		c.checkStatement(stmt)
	}
	c.popScope()
	fc := c.funcs[len(c.funcs)-1]
	c.funcs = c.funcs[:len(c.funcs)-1]
	if c.failed {
		return typesystem.Any
	}

	ret := declared
	if ret == nil {
		if fc.inferred != nil {
			ret = fc.inferred
		} else {
			ret = typesystem.Void
		}
	}
	fnType := typesystem.Func{Params: params, Return: ret}
	c.record(e, fnType)
	return fnType
}

func (c *Checker) checkAssignExpression(e *ast.AssignExpression) typesystem.Type {
	valueType := c.checkExpression(e.Value)
	if c.failed {
		return typesystem.Any
	}
	switch target := e.Target.(type) {
	case *ast.Identifier:
		declared, ok := c.resolve(target.Value)
		if !ok {
			c.errorAt(target.Token, diagnostics.ErrUndefinedVar, target.Value)
			return typesystem.Any
		}
		if !typesystem.Compatible(declared, valueType) {
			c.mismatch(e.Token, "cannot assign %s to %s %s", valueType, declared, target.Value)
			return typesystem.Any
		}
		c.record(target, declared)
	case *ast.MemberExpression:
		fieldType := c.checkMemberExpression(target)
		if c.failed {
			return typesystem.Any
		}
		if _, isModule := c.ctx.TypeMap[target.Object].(typesystem.Module); isModule {
			c.mismatch(e.Token, "module members are read-only")
			return typesystem.Any
		}
		if !typesystem.Compatible(fieldType, valueType) {
			c.mismatch(e.Token, "cannot assign %s to field of type %s", valueType, fieldType)
			return typesystem.Any
		}
	case *ast.IndexExpression:
		elemType := c.checkIndexExpression(target)
		if c.failed {
			return typesystem.Any
		}
		if !typesystem.Compatible(elemType, valueType) {
			c.mismatch(e.Token, "cannot assign %s to element of type %s", valueType, elemType)
			return typesystem.Any
		}
	}
	return c.record(e, valueType)
}

func (c *Checker) checkCastExpression(e *ast.CastExpression) typesystem.Type {
	from := c.checkExpression(e.Expr)
	if c.failed {
		return typesystem.Any
	}
	to := c.resolveTypeExpr(e.Type)
	if c.failed {
		return typesystem.Any
	}
	if typesystem.IsAny(from) || typesystem.IsAny(to) {
		return c.record(e, to)
	}
	ok := false
	switch {
	case typesystem.Equal(from, typesystem.Int):
		ok = typesystem.Equal(to, typesystem.Float) || typesystem.Equal(to, typesystem.String) || typesystem.Equal(to, typesystem.Int)
	case typesystem.Equal(from, typesystem.Float):
		ok = typesystem.Equal(to, typesystem.Int) || typesystem.Equal(to, typesystem.String) || typesystem.Equal(to, typesystem.Float)
	case typesystem.Equal(from, typesystem.Bool):
		ok = typesystem.Equal(to, typesystem.String) || typesystem.Equal(to, typesystem.Bool)
	}
	if !ok {
		c.errorAt(e.Token, diagnostics.ErrInvalidCast, from.String(), to.String())
		return typesystem.Any
	}
	return c.record(e, to)
}
