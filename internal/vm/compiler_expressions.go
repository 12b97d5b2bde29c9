package vm

import (
	"github.com/nyml2003/kaubo/internal/ast"
	"github.com/nyml2003/kaubo/internal/diagnostics"
	"github.com/nyml2003/kaubo/internal/stdlib"
	"github.com/nyml2003/kaubo/internal/token"
	"github.com/nyml2003/kaubo/internal/typesystem"
)

// compileExpression pushes exactly one value onto the stack.
func (c *Compiler) compileExpression(expr ast.Expression) {
	if c.err != nil || expr == nil {
		return
	}
	c.line = expr.GetToken().Line
	switch e := expr.(type) {
	case *ast.IntegerLiteral:
		c.compileIntegerLiteral(e)
	case *ast.FloatLiteral:
		c.emitConstant(FloatConstant{Value: e.Value})
	case *ast.StringLiteral:
		c.emitConstant(StringConstant{Value: e.Value})
	case *ast.BooleanLiteral:
		if e.Value {
			c.emit(OpLoadTrue)
		} else {
			c.emit(OpLoadFalse)
		}
	case *ast.NullLiteral:
		c.emit(OpLoadNull)
	case *ast.Identifier:
		c.compileIdentifier(e)
	case *ast.ListLiteral:
		for _, el := range e.Elements {
			c.compileExpression(el)
		}
		c.emit(OpBuildList)
		c.emitU16(uint16(len(e.Elements)))
	case *ast.JsonLiteral:
		for i, key := range e.Keys {
			c.emitConstant(StringConstant{Value: key.Value})
			c.compileExpression(e.Values[i])
		}
		c.emit(OpBuildJson)
		c.emitU16(uint16(len(e.Keys)))
	case *ast.StructLiteral:
		c.compileStructLiteral(e)
	case *ast.MemberExpression:
		c.compileMemberExpression(e)
	case *ast.IndexExpression:
		c.compileIndexExpression(e)
	case *ast.CallExpression:
		c.compileCallExpression(e)
	case *ast.BinaryExpression:
		c.compileBinaryExpression(e)
	case *ast.UnaryExpression:
		c.compileUnaryExpression(e)
	case *ast.LambdaExpression:
		c.compileLambda(e)
	case *ast.AssignExpression:
		c.compileAssignExpression(e)
	case *ast.CastExpression:
		c.compileCastExpression(e)
	case *ast.YieldExpression:
		if e.Value != nil {
			c.compileExpression(e.Value)
		} else {
			c.emit(OpLoadNull)
		}
		c.emit(OpYield)
	}
}

func (c *Compiler) compileIntegerLiteral(e *ast.IntegerLiteral) {
	switch e.Value {
	case 0:
		c.emit(OpLoadZero)
	case 1:
		c.emit(OpLoadOne)
	default:
		c.emitConstant(IntConstant{Value: e.Value})
	}
}

func (c *Compiler) compileIdentifier(e *ast.Identifier) {
	if slot := c.resolveLocal(e.Value); slot >= 0 {
		c.emitLoadLocal(slot)
		return
	}
	if up := c.resolveUpvalue(e.Value); up >= 0 {
		c.emit(OpGetUpvalue)
		c.emitByte(byte(up))
		return
	}
	// Unresolved names are module-qualified lookups.
	if mod, ok := c.typeOf(e).(typesystem.Module); ok {
		idx := c.makeConstant(StringConstant{Value: mod.Name})
		c.emit(OpLoadModule)
		c.emitU16(uint16(idx))
		return
	}
	if std, ok := c.shapes.Lookup(stdlib.ModuleName); ok {
		if slot := std.SlotOf(e.Value); slot >= 0 {
			idx := c.makeConstant(StringConstant{Value: stdlib.ModuleName})
			c.emit(OpLoadModule)
			c.emitU16(uint16(idx))
			c.emit(OpModuleGet)
			c.emitByte(byte(slot))
			return
		}
	}
	c.fail(diagnostics.ErrUndefinedVar, e.Value)
}

// compileStructLiteral evaluates field initializers in shape slot order so
// BuildStruct pops them straight into the slot array.
func (c *Compiler) compileStructLiteral(e *ast.StructLiteral) {
	shape, ok := c.shapes.Lookup(e.Name.Value)
	if !ok {
		c.fail(diagnostics.ErrUndefinedVar, e.Name.Value)
		return
	}
	byName := make(map[string]ast.Expression, len(e.FieldNames))
	for i, field := range e.FieldNames {
		byName[field.Value] = e.FieldValues[i]
	}
	for _, field := range shape.FieldNames {
		c.compileExpression(byName[field])
	}
	c.emit(OpBuildStruct)
	c.emitU16(shape.ID)
	c.emitByte(byte(len(shape.FieldNames)))
}

func (c *Compiler) compileMemberExpression(e *ast.MemberExpression) {
	objType := c.typeOf(e.Object)
	switch t := objType.(type) {
	case typesystem.Module:
		shape := c.shapes.Get(t.ShapeID)
		slot := shape.SlotOf(e.Property.Value)
		if slot < 0 {
			c.fail(diagnostics.ErrUnknownField, t.Name, e.Property.Value)
			return
		}
		c.compileExpression(e.Object)
		c.emit(OpModuleGet)
		c.emitByte(byte(slot))
	case typesystem.Named:
		shape := c.shapes.Get(t.ShapeID)
		if slot := shape.SlotOf(e.Property.Value); slot >= 0 {
			c.compileExpression(e.Object)
			c.emit(OpGetField)
			c.emitByte(byte(slot))
			return
		}
		// Not a field: resolve through the shape's method table at run
		// time. The result is the unbound method closure.
		c.compileExpression(e.Object)
		nameIdx := c.makeConstant(StringConstant{Value: e.Property.Value})
		c.emit(OpGetMethod)
		c.emitU16(uint16(nameIdx))
	default:
		c.fail(diagnostics.ErrUnknownField, objType.String(), e.Property.Value)
	}
}

func (c *Compiler) compileIndexExpression(e *ast.IndexExpression) {
	c.compileExpression(e.Object)
	c.compileExpression(e.Index)
	if _, isJson := c.typeOf(e.Object).(typesystem.Json); isJson {
		c.emit(OpJsonGet)
		return
	}
	c.emit(OpIndexGet)
}

// stdCoroutineOp recognizes create_coroutine / resume / coroutine_status
// calls (qualified through std or bare-and-unshadowed) and returns the
// dedicated opcode.
func (c *Compiler) stdCoroutineOp(callee ast.Expression) (Opcode, bool) {
	var name string
	switch e := callee.(type) {
	case *ast.MemberExpression:
		mod, ok := c.typeOf(e.Object).(typesystem.Module)
		if !ok || mod.Name != stdlib.ModuleName {
			return 0, false
		}
		name = e.Property.Value
	case *ast.Identifier:
		if c.resolveLocal(e.Value) >= 0 || c.resolveUpvalue(e.Value) >= 0 {
			return 0, false
		}
		name = e.Value
	default:
		return 0, false
	}
	switch name {
	case "create_coroutine":
		return OpCreateCoroutine, true
	case "resume":
		return OpResume, true
	case "coroutine_status":
		return OpCoroutineStatus, true
	}
	return 0, false
}

func (c *Compiler) compileCallExpression(e *ast.CallExpression) {
	// Coroutine primitives compile to their dedicated instructions.
	if op, ok := c.stdCoroutineOp(e.Callee); ok {
		switch op {
		case OpCreateCoroutine, OpCoroutineStatus:
			if len(e.Arguments) == 1 {
				c.compileExpression(e.Arguments[0])
				c.emit(op)
				return
			}
		case OpResume:
			if len(e.Arguments) >= 1 && len(e.Arguments) <= 2 {
				for _, arg := range e.Arguments {
					c.compileExpression(arg)
				}
				c.emit(op)
				c.emitByte(byte(len(e.Arguments) - 1))
				return
			}
		}
	}

	// Method calls thread the receiver as the first argument.
	if member, ok := e.Callee.(*ast.MemberExpression); ok {
		if named, isNamed := c.typeOf(member.Object).(typesystem.Named); isNamed {
			shape := c.shapes.Get(named.ShapeID)
			if shape.SlotOf(member.Property.Value) < 0 {
				c.compileExpression(member.Object)
				c.emit(OpDup)
				nameIdx := c.makeConstant(StringConstant{Value: member.Property.Value})
				c.emit(OpGetMethod)
				c.emitU16(uint16(nameIdx))
				c.emit(OpSwap)
				for _, arg := range e.Arguments {
					c.compileExpression(arg)
				}
				c.emit(OpCall)
				c.emitByte(byte(len(e.Arguments) + 1))
				return
			}
		}
	}

	c.compileExpression(e.Callee)
	for _, arg := range e.Arguments {
		c.compileExpression(arg)
	}
	c.emit(OpCall)
	c.emitByte(byte(len(e.Arguments)))
}

func (c *Compiler) compileBinaryExpression(e *ast.BinaryExpression) {
	switch e.Operator {
	case token.And:
		c.compileExpression(e.Left)
		c.emit(OpDup)
		endJump := c.emitJump(OpJumpIfFalse)
		c.emit(OpPop)
		c.compileExpression(e.Right)
		c.patchJump(endJump)
		return
	case token.Or:
		c.compileExpression(e.Left)
		c.emit(OpDup)
		c.emit(OpNot)
		endJump := c.emitJump(OpJumpIfFalse)
		c.emit(OpPop)
		c.compileExpression(e.Right)
		c.patchJump(endJump)
		return
	}

	c.compileExpression(e.Left)
	c.compileExpression(e.Right)
	c.line = e.Token.Line
	switch e.Operator {
	case token.Plus:
		c.emit(OpAdd)
		c.emitU16(uint16(c.chunk().AddCacheSlot()))
	case token.Minus:
		c.emit(OpSub)
	case token.Asterisk:
		c.emit(OpMul)
		c.emitU16(uint16(c.chunk().AddCacheSlot()))
	case token.Slash:
		c.emit(OpDiv)
	case token.Percent:
		c.emit(OpMod)
	case token.Eq:
		c.emit(OpEqual)
	case token.NotEq:
		c.emit(OpEqual)
		c.emit(OpNot)
	case token.Lt:
		c.emit(OpLess)
	case token.Le:
		c.emit(OpLessEqual)
	case token.Gt:
		c.emit(OpSwap)
		c.emit(OpLess)
	case token.Ge:
		c.emit(OpSwap)
		c.emit(OpLessEqual)
	case token.Pipe:
		c.emit(OpPipeOp)
	}
}

func (c *Compiler) compileUnaryExpression(e *ast.UnaryExpression) {
	c.compileExpression(e.Operand)
	c.line = e.Token.Line
	switch e.Operator {
	case token.Not:
		c.emit(OpNot)
	case token.Minus:
		c.emit(OpNeg)
	}
}

func (c *Compiler) compileLambda(e *ast.LambdaExpression) {
	fc := newFunctionCompiler(c, "<lambda>", len(e.Params))
	for _, p := range e.Params {
		fc.addLocal(p.Name.Value)
	}
	for _, stmt := range e.Body.Statements {
		fc.compileStatement(stmt)
		if fc.err != nil {
			c.err = fc.err
			return
		}
	}
	fc.emit(OpReturn)
	fc.function.UpvalueCount = len(fc.upvalues)

	idx := c.makeConstant(FuncConstant{Fn: fc.function})
	c.emit(OpLambda)
	c.emitU16(uint16(idx))
	c.emitByte(byte(len(fc.upvalues)))
	for _, uv := range fc.upvalues {
		if uv.IsLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(uv.Index)
	}
}

func (c *Compiler) compileAssignExpression(e *ast.AssignExpression) {
	switch target := e.Target.(type) {
	case *ast.Identifier:
		c.compileExpression(e.Value)
		if slot := c.resolveLocal(target.Value); slot >= 0 {
			c.emitStoreLocal(slot)
			return
		}
		if up := c.resolveUpvalue(target.Value); up >= 0 {
			c.emit(OpSetUpvalue)
			c.emitByte(byte(up))
			return
		}
		c.fail(diagnostics.ErrUndefinedVar, target.Value)
	case *ast.MemberExpression:
		named, ok := c.typeOf(target.Object).(typesystem.Named)
		if !ok {
			c.fail(diagnostics.ErrUnknownField, c.typeOf(target.Object).String(), target.Property.Value)
			return
		}
		shape := c.shapes.Get(named.ShapeID)
		slot := shape.SlotOf(target.Property.Value)
		if slot < 0 {
			c.fail(diagnostics.ErrUnknownField, named.Name, target.Property.Value)
			return
		}
		c.compileExpression(target.Object)
		c.compileExpression(e.Value)
		c.emit(OpSetField)
		c.emitByte(byte(slot))
	case *ast.IndexExpression:
		c.compileExpression(target.Object)
		c.compileExpression(target.Index)
		c.compileExpression(e.Value)
		if _, isJson := c.typeOf(target.Object).(typesystem.Json); isJson {
			c.emit(OpJsonSet)
			return
		}
		c.emit(OpIndexSet)
	}
}

func (c *Compiler) compileCastExpression(e *ast.CastExpression) {
	c.compileExpression(e.Expr)
	named, ok := e.Type.(*ast.NamedTypeExpr)
	if !ok {
		return
	}
	c.line = e.Token.Line
	from := c.typeOf(e.Expr)
	switch named.Name {
	case "float":
		if !typesystem.Equal(from, typesystem.Float) {
			c.emit(OpCastFloat)
		}
	case "int":
		if !typesystem.Equal(from, typesystem.Int) {
			c.emit(OpCastInt)
		}
	case "string":
		if !typesystem.Equal(from, typesystem.String) {
			c.emit(OpCastString)
		}
	}
}
