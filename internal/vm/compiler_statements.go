package vm

import (
	"strings"

	"github.com/nyml2003/kaubo/internal/ast"
	"github.com/nyml2003/kaubo/internal/config"
	"github.com/nyml2003/kaubo/internal/diagnostics"
)

func (c *Compiler) compileStatement(stmt ast.Statement) {
	if c.err != nil || stmt == nil {
		return
	}
	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		c.line = s.Token.Line
		c.compileExpression(s.Expression)
		c.emit(OpPop)
	case *ast.BlockStatement:
		c.beginScope()
		for _, inner := range s.Statements {
			c.compileStatement(inner)
		}
		c.endScope()
	case *ast.VarStatement:
		c.compileVarStatement(s)
	case *ast.IfStatement:
		c.compileIfStatement(s)
	case *ast.WhileStatement:
		c.compileWhileStatement(s)
	case *ast.ForStatement:
		c.compileForStatement(s)
	case *ast.ReturnStatement:
		c.compileReturnStatement(s)
	case *ast.BreakStatement:
		c.compileBreakStatement()
	case *ast.ContinueStatement:
		c.compileContinueStatement()
	case *ast.StructStatement:
		// Struct layout is a compile-time artifact; no code is emitted.
	case *ast.ImplStatement:
		c.compileImplStatement(s)
	case *ast.ImportStatement:
		c.compileImportStatement(s)
	case *ast.FromImportStatement:
		c.compileFromImportStatement(s)
	case *ast.ModuleStatement:
		c.compileModuleStatement(s)
	}
}

func (c *Compiler) compileVarStatement(s *ast.VarStatement) {
	c.line = s.Token.Line
	c.compileExpression(s.Value)
	// The initializer's result slot becomes the local.
	c.addLocal(s.Name.Value)
}

func (c *Compiler) compileIfStatement(s *ast.IfStatement) {
	c.line = s.Token.Line
	c.compileExpression(s.Cond)
	elseJump := c.emitJump(OpJumpIfFalse)
	c.compileStatement(s.Then)
	if s.Else == nil {
		c.patchJump(elseJump)
		return
	}
	endJump := c.emitJump(OpJump)
	c.patchJump(elseJump)
	c.compileStatement(s.Else)
	c.patchJump(endJump)
}

func (c *Compiler) compileWhileStatement(s *ast.WhileStatement) {
	c.line = s.Token.Line
	loopStart := len(c.chunk().Code)
	c.compileExpression(s.Cond)
	exitJump := c.emitJump(OpJumpIfFalse)

	c.loopStack = append(c.loopStack, loopContext{
		loopStart:  loopStart,
		localCount: len(c.locals),
	})
	c.compileStatement(s.Body)
	ctx := c.loopStack[len(c.loopStack)-1]
	c.loopStack = c.loopStack[:len(c.loopStack)-1]

	c.emitLoop(loopStart)
	c.patchJump(exitJump)
	for _, pos := range ctx.breakJumps {
		c.patchJump(pos)
	}
}

// compileForStatement lowers `for x in e` to:
//
//	<e>; GetIter; LOOP: IterNext EXIT; (x := top) <body>; Pop; JumpBack LOOP; EXIT: Pop
func (c *Compiler) compileForStatement(s *ast.ForStatement) {
	c.line = s.Token.Line
	c.beginScope()
	c.compileExpression(s.Iterable)
	c.emit(OpGetIter)
	c.addLocal("(iter)")

	loopStart := len(c.chunk().Code)
	c.emit(OpIterNext)
	exitPos := len(c.chunk().Code)
	c.emitByte(0xff)
	c.emitByte(0xff)

	c.loopStack = append(c.loopStack, loopContext{
		loopStart:  loopStart,
		localCount: len(c.locals),
	})
	c.addLocal(s.Name.Value)
	c.compileStatement(s.Body)
	ctx := c.loopStack[len(c.loopStack)-1]
	c.loopStack = c.loopStack[:len(c.loopStack)-1]

	if c.locals[len(c.locals)-1].IsCaptured {
		c.emit(OpCloseUpvalues)
		c.emitByte(byte(len(c.locals) - 1))
	}
	c.emit(OpPop) // loop variable
	c.locals = c.locals[:len(c.locals)-1]
	c.emitLoop(loopStart)

	c.patchJump(exitPos)
	for _, pos := range ctx.breakJumps {
		c.patchJump(pos)
	}
	c.endScope() // pops the iterator
}

// unwindLoopLocals pops the locals declared since the innermost loop began,
// closing captured ones, without forgetting them at compile time (execution
// continues in the loop's scope).
func (c *Compiler) unwindLoopLocals(ctx loopContext) {
	captured := false
	for i := ctx.localCount; i < len(c.locals); i++ {
		if c.locals[i].IsCaptured {
			captured = true
		}
	}
	if captured {
		c.emit(OpCloseUpvalues)
		c.emitByte(byte(ctx.localCount))
	}
	for i := ctx.localCount; i < len(c.locals); i++ {
		c.emit(OpPop)
	}
}

func (c *Compiler) compileBreakStatement() {
	if len(c.loopStack) == 0 {
		return
	}
	ctx := &c.loopStack[len(c.loopStack)-1]
	c.unwindLoopLocals(*ctx)
	ctx.breakJumps = append(ctx.breakJumps, c.emitJump(OpJump))
}

func (c *Compiler) compileContinueStatement() {
	if len(c.loopStack) == 0 {
		return
	}
	ctx := c.loopStack[len(c.loopStack)-1]
	c.unwindLoopLocals(ctx)
	c.emitLoop(ctx.loopStart)
}

func (c *Compiler) compileReturnStatement(s *ast.ReturnStatement) {
	c.line = s.Token.Line
	if s.Value == nil {
		c.emit(OpReturn)
		return
	}
	c.compileExpression(s.Value)
	c.emit(OpReturnValue)
}

func (c *Compiler) compileImplStatement(s *ast.ImplStatement) {
	c.line = s.Token.Line
	shape, ok := c.shapes.Lookup(s.Name.Value)
	if !ok {
		c.fail(diagnostics.ErrUndefinedVar, s.Name.Value)
		return
	}
	for _, method := range s.Methods {
		c.compileLambda(method.Lambda)
		if c.err != nil {
			return
		}
		if method.Operator {
			kind, ok := config.LookupOperator(method.Name)
			if !ok {
				c.fail(diagnostics.ErrUnknownMethod, shape.Name, method.Name)
				return
			}
			c.emit(OpSetShapeOperator)
			c.emitU16(shape.ID)
			c.emitByte(byte(kind))
		} else {
			nameIdx := c.makeConstant(StringConstant{Value: method.Name})
			c.emit(OpSetShapeMethod)
			c.emitU16(shape.ID)
			c.emitU16(uint16(nameIdx))
		}
	}
}

func (c *Compiler) compileImportStatement(s *ast.ImportStatement) {
	c.line = s.Token.Line
	name := strings.Join(s.Path, ".")
	idx := c.makeConstant(StringConstant{Value: name})
	c.emit(OpLoadModule)
	c.emitU16(uint16(idx))
	c.addLocal(s.Path[len(s.Path)-1])
}

func (c *Compiler) compileFromImportStatement(s *ast.FromImportStatement) {
	c.line = s.Token.Line
	name := strings.Join(s.Path, ".")
	shape, ok := c.shapes.Lookup(name)
	if !ok {
		c.fail(diagnostics.ErrUndefinedVar, name)
		return
	}
	idx := c.makeConstant(StringConstant{Value: name})
	for _, ident := range s.Names {
		slot := shape.SlotOf(ident.Value)
		if slot < 0 {
			// Importing a struct type binds nothing at runtime.
			continue
		}
		c.emit(OpLoadModule)
		c.emitU16(uint16(idx))
		c.emit(OpModuleGet)
		c.emitByte(byte(slot))
		c.addLocal(ident.Value)
	}
}

func (c *Compiler) compileModuleStatement(s *ast.ModuleStatement) {
	c.line = s.Token.Line
	shape, ok := c.shapes.Lookup(s.Name.Value)
	if !ok {
		c.fail(diagnostics.ErrUndefinedVar, s.Name.Value)
		return
	}
	c.beginScope()
	for _, stmt := range s.Body {
		c.compileStatement(stmt)
		if c.err != nil {
			return
		}
	}
	for _, export := range shape.FieldNames {
		slot := c.resolveLocal(export)
		if slot < 0 {
			c.fail(diagnostics.ErrUndefinedVar, export)
			return
		}
		c.emitLoadLocal(slot)
	}
	c.emit(OpBuildModule)
	c.emitU16(shape.ID)
	c.emitByte(byte(len(shape.FieldNames)))
	c.emit(OpPop)
	c.endScope()
}
