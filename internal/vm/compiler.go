package vm

import (
	"github.com/nyml2003/kaubo/internal/ast"
	"github.com/nyml2003/kaubo/internal/config"
	"github.com/nyml2003/kaubo/internal/diagnostics"
	"github.com/nyml2003/kaubo/internal/runtime"
	"github.com/nyml2003/kaubo/internal/token"
	"github.com/nyml2003/kaubo/internal/typesystem"
)

// Local represents a local variable during compilation. Locals occupy the
// stack slots at the bottom of their frame in declaration order.
type Local struct {
	Name       string
	Depth      int
	IsCaptured bool
}

// Upvalue records one captured variable on the function being compiled.
type Upvalue struct {
	Index   uint8
	IsLocal bool
}

// loopContext tracks the innermost loop for break/continue lowering.
type loopContext struct {
	loopStart  int
	breakJumps []int
	localCount int
}

// Compiler lowers a type-checked AST into a Function. One Compiler instance
// exists per function being compiled; nested lambdas chain through
// enclosing.
type Compiler struct {
	function  *Function
	enclosing *Compiler

	locals     []Local
	scopeDepth int
	upvalues   []Upvalue

	loopStack []loopContext

	constIndex map[Constant]int

	// shared across the compiler chain
	typeMap map[ast.Node]typesystem.Type
	shapes  *runtime.ShapeTable
	cfg     config.CompilerConfig

	line int
	err  *diagnostics.Error
}

// Compile lowers a checked program into its top-level script function.
func Compile(program *ast.Program, typeMap map[ast.Node]typesystem.Type, shapes *runtime.ShapeTable, cfg config.CompilerConfig) (*Function, error) {
	c := &Compiler{
		function:   &Function{Name: "<script>", Chunk: NewChunk()},
		constIndex: make(map[Constant]int),
		typeMap:    typeMap,
		shapes:     shapes,
		cfg:        cfg,
	}
	for _, stmt := range program.Statements {
		c.compileStatement(stmt)
		if c.err != nil {
			return nil, c.err
		}
	}
	c.emit(OpReturn)
	c.function.UpvalueCount = len(c.upvalues)
	return c.function, nil
}

func newFunctionCompiler(enclosing *Compiler, name string, arity int) *Compiler {
	return &Compiler{
		function:   &Function{Name: name, Arity: arity, Chunk: NewChunk()},
		enclosing:  enclosing,
		constIndex: make(map[Constant]int),
		typeMap:    enclosing.typeMap,
		shapes:     enclosing.shapes,
		cfg:        enclosing.cfg,
		line:       enclosing.line,
	}
}

func (c *Compiler) chunk() *Chunk { return c.function.Chunk }

func (c *Compiler) fail(code diagnostics.ErrorCode, args ...interface{}) {
	if c.err == nil {
		c.err = diagnostics.New(diagnostics.PhaseCompiler, code, tokenAtLine(c.line), args...)
	}
}

// emitLine returns the line recorded with emitted bytes; zero when debug
// info is disabled.
func (c *Compiler) emitLine() int {
	if !c.cfg.EmitDebugInfo {
		return 0
	}
	return c.line
}

func (c *Compiler) emit(op Opcode) {
	c.chunk().WriteOp(op, c.emitLine())
}

func (c *Compiler) emitByte(b byte) {
	c.chunk().Write(b, c.emitLine())
}

func (c *Compiler) emitU16(v uint16) {
	c.chunk().WriteU16(v, c.emitLine())
}

func (c *Compiler) makeConstant(k Constant) int {
	if idx, ok := c.constIndex[k]; ok {
		return idx
	}
	idx := c.chunk().AddConstant(k)
	if idx > 0xffff {
		c.fail(diagnostics.ErrTooManyConstants)
		return 0
	}
	c.constIndex[k] = idx
	return idx
}

// emitConstant loads a pool constant, using the inline fast forms for the
// first sixteen indices.
func (c *Compiler) emitConstant(k Constant) {
	idx := c.makeConstant(k)
	if idx < 16 {
		c.emit(OpLoadConst0 + Opcode(idx))
		return
	}
	c.emit(OpLoadConst)
	c.emitU16(uint16(idx))
}

// emitJump writes a forward jump with a placeholder offset and returns the
// offset position for patching.
func (c *Compiler) emitJump(op Opcode) int {
	c.emit(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return len(c.chunk().Code) - 2
}

// patchJump back-fills a forward jump to land on the next instruction.
func (c *Compiler) patchJump(pos int) {
	offset := len(c.chunk().Code) - (pos + 2)
	if offset > 0x7fff {
		c.fail(diagnostics.ErrJumpTooFar)
		return
	}
	c.chunk().Code[pos] = byte(offset >> 8)
	c.chunk().Code[pos+1] = byte(offset)
}

// emitLoop writes a backward jump to loopStart.
func (c *Compiler) emitLoop(loopStart int) {
	c.emit(OpJumpBack)
	offset := len(c.chunk().Code) + 2 - loopStart
	if offset > 0x7fff {
		c.fail(diagnostics.ErrJumpTooFar)
		return
	}
	c.emitByte(byte(offset >> 8))
	c.emitByte(byte(offset))
}

func (c *Compiler) beginScope() {
	c.scopeDepth++
}

// endScope pops the locals of the departing scope, closing any that were
// captured by a nested function.
func (c *Compiler) endScope() {
	c.scopeDepth--
	count := 0
	captured := false
	for len(c.locals)-count > 0 {
		l := c.locals[len(c.locals)-1-count]
		if l.Depth <= c.scopeDepth {
			break
		}
		if l.IsCaptured {
			captured = true
		}
		count++
	}
	if count == 0 {
		return
	}
	from := len(c.locals) - count
	if captured {
		c.emit(OpCloseUpvalues)
		c.emitByte(byte(from))
	}
	for i := 0; i < count; i++ {
		c.emit(OpPop)
	}
	c.locals = c.locals[:from]
}

// addLocal declares a new local occupying the next stack slot (the value
// must already be on top of the stack).
func (c *Compiler) addLocal(name string) int {
	if len(c.locals) >= 256 {
		c.fail(diagnostics.ErrTooManyLocals)
		return 0
	}
	c.locals = append(c.locals, Local{Name: name, Depth: c.scopeDepth})
	return len(c.locals) - 1
}

func (c *Compiler) resolveLocal(name string) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].Name == name {
			return i
		}
	}
	return -1
}

// resolveUpvalue searches enclosing functions for name and threads an
// upvalue descriptor chain down to this function.
func (c *Compiler) resolveUpvalue(name string) int {
	if c.enclosing == nil {
		return -1
	}
	if local := c.enclosing.resolveLocal(name); local != -1 {
		c.enclosing.locals[local].IsCaptured = true
		return c.addUpvalue(uint8(local), true)
	}
	if up := c.enclosing.resolveUpvalue(name); up != -1 {
		return c.addUpvalue(uint8(up), false)
	}
	return -1
}

func (c *Compiler) addUpvalue(index uint8, isLocal bool) int {
	for i, uv := range c.upvalues {
		if uv.Index == index && uv.IsLocal == isLocal {
			return i
		}
	}
	c.upvalues = append(c.upvalues, Upvalue{Index: index, IsLocal: isLocal})
	return len(c.upvalues) - 1
}

func (c *Compiler) emitLoadLocal(slot int) {
	if slot < 8 {
		c.emit(OpLoadLocal0 + Opcode(slot))
		return
	}
	c.emit(OpLoadLocal)
	c.emitByte(byte(slot))
}

func (c *Compiler) emitStoreLocal(slot int) {
	if slot < 8 {
		c.emit(OpStoreLocal0 + Opcode(slot))
		return
	}
	c.emit(OpStoreLocal)
	c.emitByte(byte(slot))
}

func (c *Compiler) typeOf(node ast.Node) typesystem.Type {
	if t, ok := c.typeMap[node]; ok {
		return t
	}
	return typesystem.Any
}

func tokenAtLine(line int) token.Token {
	return token.Token{Line: line, Column: 1}
}
