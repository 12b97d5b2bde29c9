package checker

import (
	"fmt"

	"github.com/nyml2003/kaubo/internal/ast"
	"github.com/nyml2003/kaubo/internal/config"
	"github.com/nyml2003/kaubo/internal/diagnostics"
	"github.com/nyml2003/kaubo/internal/pipeline"
	"github.com/nyml2003/kaubo/internal/runtime"
	"github.com/nyml2003/kaubo/internal/stdlib"
	"github.com/nyml2003/kaubo/internal/token"
	"github.com/nyml2003/kaubo/internal/typesystem"
)

// Checker annotates the AST with types, verifies struct layouts and assigns
// shape ids. Checking is strict: int and float are distinct, any is the top
// type, and the first error aborts the phase.
type Checker struct {
	ctx    *pipeline.Context
	shapes *runtime.ShapeTable

	scopes    []map[string]typesystem.Type
	funcs     []*funcCtx
	loopDepth int
	failed    bool
}

// funcCtx tracks return typing for the function body being checked. The
// top-level program body is the root context.
type funcCtx struct {
	declared  typesystem.Type // nil when the return type is unannotated
	inferred  typesystem.Type
	sawReturn bool
}

func New(ctx *pipeline.Context, enableSQL bool) *Checker {
	c := &Checker{
		ctx:    ctx,
		shapes: runtime.NewShapeTable(),
	}
	stdShape := stdlib.DeclareShape(c.shapes)
	if enableSQL {
		// The sql module shape exists so `import sql` checks; the natives
		// are installed at execute time.
		stdlib.DeclareSQLShape(c.shapes)
	}
	c.pushScope()
	c.define("std", typesystem.Module{Name: stdlib.ModuleName, ShapeID: stdShape.ID})
	return c
}

// Shapes returns the shape table built during checking.
func (c *Checker) Shapes() *runtime.ShapeTable { return c.shapes }

// Check walks the program. Errors are recorded on the context.
func (c *Checker) Check(program *ast.Program) {
	c.funcs = append(c.funcs, &funcCtx{})
	for _, stmt := range program.Statements {
		if c.failed {
			return
		}
		c.checkStatement(stmt)
	}
}

// Processor is the type-checking stage of the pipeline.
type Processor struct {
	EnableSQL bool
}

func (cp *Processor) Process(ctx *pipeline.Context) *pipeline.Context {
	c := New(ctx, cp.EnableSQL)
	c.Check(ctx.AstRoot)
	ctx.Shapes = c.Shapes()
	return ctx
}

func (c *Checker) pushScope() {
	c.scopes = append(c.scopes, make(map[string]typesystem.Type))
}

func (c *Checker) popScope() {
	c.scopes = c.scopes[:len(c.scopes)-1]
}

func (c *Checker) define(name string, t typesystem.Type) {
	c.scopes[len(c.scopes)-1][name] = t
}

func (c *Checker) definedInCurrent(name string) bool {
	_, ok := c.scopes[len(c.scopes)-1][name]
	return ok
}

func (c *Checker) resolve(name string) (typesystem.Type, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if t, ok := c.scopes[i][name]; ok {
			return t, true
		}
	}
	return nil, false
}

func (c *Checker) currentFunc() *funcCtx {
	return c.funcs[len(c.funcs)-1]
}

func (c *Checker) errorAt(tok token.Token, code diagnostics.ErrorCode, args ...interface{}) {
	if c.failed {
		return
	}
	c.failed = true
	c.ctx.AddError(diagnostics.New(diagnostics.PhaseChecker, code, tok, args...))
}

func (c *Checker) mismatch(tok token.Token, format string, args ...interface{}) {
	c.errorAt(tok, diagnostics.ErrTypeMismatch, fmt.Sprintf(format, args...))
}

// record stores the inferred type of an expression node.
func (c *Checker) record(node ast.Node, t typesystem.Type) typesystem.Type {
	c.ctx.TypeMap[node] = t
	return t
}

// resolveTypeExpr converts a syntactic annotation into a type.
func (c *Checker) resolveTypeExpr(te ast.TypeExpr) typesystem.Type {
	named, ok := te.(*ast.NamedTypeExpr)
	if !ok {
		c.mismatch(token.Token{}, "unsupported type annotation")
		return typesystem.Any
	}
	switch named.Name {
	case "int":
		return typesystem.Int
	case "float":
		return typesystem.Float
	case "bool":
		return typesystem.Bool
	case "string":
		return typesystem.String
	case "void":
		return typesystem.Void
	case "any":
		return typesystem.Any
	case "json":
		return typesystem.Json{}
	case "coroutine":
		return typesystem.Coroutine{}
	case "list":
		var elem typesystem.Type = typesystem.Any
		if len(named.Args) == 1 {
			elem = c.resolveTypeExpr(named.Args[0])
		}
		return typesystem.List{Elem: elem}
	case "tuple":
		elems := make([]typesystem.Type, len(named.Args))
		for i, a := range named.Args {
			elems[i] = c.resolveTypeExpr(a)
		}
		return typesystem.Tuple{Elems: elems}
	default:
		if shape, ok := c.shapes.Lookup(named.Name); ok {
			return typesystem.Named{Name: named.Name, ShapeID: shape.ID}
		}
		c.mismatch(named.Token, "unknown type name '%s'", named.Name)
		return typesystem.Any
	}
}

// opKindOfToken maps a binary operator token to its dispatch kind.
func opKindOfToken(k token.Kind) (config.OpKind, bool) {
	switch k {
	case token.Plus:
		return config.OpAdd, true
	case token.Minus:
		return config.OpSub, true
	case token.Asterisk:
		return config.OpMul, true
	case token.Slash:
		return config.OpDiv, true
	case token.Percent:
		return config.OpMod, true
	case token.Eq, token.NotEq:
		return config.OpEq, true
	case token.Lt, token.Gt:
		return config.OpLt, true
	case token.Le, token.Ge:
		return config.OpLe, true
	case token.Pipe:
		return config.OpPipe, true
	}
	return 0, false
}
