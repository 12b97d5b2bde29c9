package checker

import (
	"github.com/nyml2003/kaubo/internal/ast"
	"github.com/nyml2003/kaubo/internal/config"
	"github.com/nyml2003/kaubo/internal/diagnostics"
	"github.com/nyml2003/kaubo/internal/typesystem"
)

func (c *Checker) checkStatement(stmt ast.Statement) {
	if c.failed || stmt == nil {
		return
	}
	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		c.checkExpression(s.Expression)
	case *ast.BlockStatement:
		c.checkBlock(s)
	case *ast.VarStatement:
		c.checkVarStatement(s)
	case *ast.IfStatement:
		c.checkIfStatement(s)
	case *ast.WhileStatement:
		c.checkWhileStatement(s)
	case *ast.ForStatement:
		c.checkForStatement(s)
	case *ast.ReturnStatement:
		c.checkReturnStatement(s)
	case *ast.BreakStatement:
		if c.loopDepth == 0 {
			c.mismatch(s.Token, "break outside of a loop")
		}
	case *ast.ContinueStatement:
		if c.loopDepth == 0 {
			c.mismatch(s.Token, "continue outside of a loop")
		}
	case *ast.StructStatement:
		c.checkStructStatement(s)
	case *ast.ImplStatement:
		c.checkImplStatement(s)
	case *ast.ImportStatement:
		c.checkImportStatement(s)
	case *ast.FromImportStatement:
		c.checkFromImportStatement(s)
	case *ast.ModuleStatement:
		c.checkModuleStatement(s)
	}
}

func (c *Checker) checkBlock(block *ast.BlockStatement) {
	c.pushScope()
	for _, stmt := range block.Statements {
		if c.failed {
			break
		}
		c.checkStatement(stmt)
	}
	c.popScope()
}

func (c *Checker) checkVarStatement(s *ast.VarStatement) {
	if c.definedInCurrent(s.Name.Value) {
		c.errorAt(s.Name.Token, diagnostics.ErrDuplicateName, s.Name.Value)
		return
	}
	valueType := c.checkExpression(s.Value)
	if c.failed {
		return
	}
	declared := valueType
	if s.Type != nil {
		declared = c.resolveTypeExpr(s.Type)
		if c.failed {
			return
		}
		if !typesystem.Compatible(declared, valueType) {
			c.mismatch(s.Token, "cannot initialize %s with %s", declared, valueType)
			return
		}
	} else if valueType == nil || typesystem.Equal(valueType, typesystem.Void) {
		c.errorAt(s.Name.Token, diagnostics.ErrCannotInfer, s.Name.Value)
		return
	}
	c.define(s.Name.Value, declared)
}

func (c *Checker) checkCondition(cond ast.Expression) {
	t := c.checkExpression(cond)
	if c.failed {
		return
	}
	if !typesystem.Compatible(typesystem.Bool, t) {
		c.mismatch(cond.GetToken(), "condition must be bool, got %s", t)
	}
}

func (c *Checker) checkIfStatement(s *ast.IfStatement) {
	c.checkCondition(s.Cond)
	c.checkBlock(s.Then)
	if s.Else != nil {
		c.checkStatement(s.Else)
	}
}

func (c *Checker) checkWhileStatement(s *ast.WhileStatement) {
	c.checkCondition(s.Cond)
	c.loopDepth++
	c.checkBlock(s.Body)
	c.loopDepth--
}

func (c *Checker) checkForStatement(s *ast.ForStatement) {
	iterType := c.checkExpression(s.Iterable)
	if c.failed {
		return
	}
	var elemType typesystem.Type
	switch t := iterType.(type) {
	case typesystem.List:
		elemType = t.Elem
	case typesystem.Json:
		elemType = typesystem.String
	case typesystem.Coroutine:
		elemType = typesystem.Any
	case typesystem.Primitive:
		switch t.Name {
		case "string":
			elemType = typesystem.String
		case "any":
			elemType = typesystem.Any
		default:
			c.mismatch(s.Token, "%s is not iterable", t)
			return
		}
	default:
		c.mismatch(s.Token, "%s is not iterable", iterType)
		return
	}

	c.loopDepth++
	c.pushScope()
	c.define(s.Name.Value, elemType)
	for _, stmt := range s.Body.Statements {
		if c.failed {
			break
		}
		c.checkStatement(stmt)
	}
	c.popScope()
	c.loopDepth--
}

func (c *Checker) checkReturnStatement(s *ast.ReturnStatement) {
	fc := c.currentFunc()
	fc.sawReturn = true
	valueType := typesystem.Type(typesystem.Void)
	if s.Value != nil {
		valueType = c.checkExpression(s.Value)
		if c.failed {
			return
		}
	}
	if fc.declared != nil {
		if !typesystem.Compatible(fc.declared, valueType) {
			c.mismatch(s.Token, "return type %s does not match declared %s", valueType, fc.declared)
		}
		return
	}
	joined := typesystem.Join(fc.inferred, valueType)
	if joined == nil {
		c.mismatch(s.Token, "return types %s and %s do not agree", fc.inferred, valueType)
		return
	}
	fc.inferred = joined
}

func (c *Checker) checkStructStatement(s *ast.StructStatement) {
	if _, exists := c.shapes.Lookup(s.Name.Value); exists {
		c.errorAt(s.Name.Token, diagnostics.ErrDuplicateName, s.Name.Value)
		return
	}
	names := make([]string, 0, len(s.FieldNames))
	types := make([]typesystem.Type, 0, len(s.FieldTypes))
	seen := make(map[string]bool, len(s.FieldNames))
	for i, field := range s.FieldNames {
		if seen[field.Value] {
			c.errorAt(field.Token, diagnostics.ErrDuplicateName, field.Value)
			return
		}
		seen[field.Value] = true
		names = append(names, field.Value)
		types = append(types, c.resolveTypeExpr(s.FieldTypes[i]))
		if c.failed {
			return
		}
	}
	c.shapes.New(s.Name.Value, names, types)
}

func (c *Checker) checkImplStatement(s *ast.ImplStatement) {
	shape, ok := c.shapes.Lookup(s.Name.Value)
	if !ok {
		c.errorAt(s.Name.Token, diagnostics.ErrUndefinedVar, s.Name.Value)
		return
	}
	selfType := typesystem.Named{Name: shape.Name, ShapeID: shape.ID}
	for _, method := range s.Methods {
		fnType := c.checkLambda(method.Lambda, selfType)
		if c.failed {
			return
		}
		if method.Operator {
			kind, ok := config.LookupOperator(method.Name)
			if !ok {
				c.errorAt(method.Token, diagnostics.ErrUnknownMethod, shape.Name, method.Name)
				return
			}
			shape.OperatorTypes[kind] = fnType
		} else {
			shape.MethodTypes[method.Name] = fnType
		}
	}
}

func (c *Checker) checkImportStatement(s *ast.ImportStatement) {
	name := joinPath(s.Path)
	t, ok := c.moduleTypeOf(name)
	if !ok {
		c.errorAt(s.Token, diagnostics.ErrUndefinedVar, name)
		return
	}
	c.define(s.Path[len(s.Path)-1], t)
}

func (c *Checker) checkFromImportStatement(s *ast.FromImportStatement) {
	name := joinPath(s.Path)
	modType, ok := c.moduleTypeOf(name)
	if !ok {
		c.errorAt(s.Token, diagnostics.ErrUndefinedVar, name)
		return
	}
	shape := c.shapes.Get(modType.(typesystem.Module).ShapeID)
	for _, ident := range s.Names {
		slot := shape.SlotOf(ident.Value)
		if slot < 0 {
			// A pub struct is importable as a type; struct shapes are
			// registered by bare name.
			if _, isType := c.shapes.Lookup(ident.Value); isType {
				continue
			}
			c.errorAt(ident.Token, diagnostics.ErrUnknownField, name, ident.Value)
			return
		}
		c.define(ident.Value, shape.FieldTypes[slot])
	}
}

// moduleTypeOf resolves a module name to its Module type: either a module
// declared earlier in the program, or the built-in std.
func (c *Checker) moduleTypeOf(name string) (typesystem.Type, bool) {
	if t, ok := c.resolve(name); ok {
		if _, isModule := t.(typesystem.Module); isModule {
			return t, true
		}
	}
	if shape, ok := c.shapes.Lookup(name); ok && len(shape.FieldNames) > 0 {
		return typesystem.Module{Name: name, ShapeID: shape.ID}, true
	}
	return nil, false
}

func (c *Checker) checkModuleStatement(s *ast.ModuleStatement) {
	if c.definedInCurrent(s.Name.Value) {
		c.errorAt(s.Name.Token, diagnostics.ErrDuplicateName, s.Name.Value)
		return
	}

	c.pushScope()
	var exportNames []string
	var exportTypes []typesystem.Type
	for _, stmt := range s.Body {
		if c.failed {
			break
		}
		c.checkStatement(stmt)
		if vs, ok := stmt.(*ast.VarStatement); ok && vs.Pub {
			if t, found := c.resolve(vs.Name.Value); found {
				exportNames = append(exportNames, vs.Name.Value)
				exportTypes = append(exportTypes, t)
			}
		}
	}
	c.popScope()
	if c.failed {
		return
	}

	shape := c.shapes.New(s.Name.Value, exportNames, exportTypes)
	c.define(s.Name.Value, typesystem.Module{Name: s.Name.Value, ShapeID: shape.ID})
}

func joinPath(path []string) string {
	name := path[0]
	for _, p := range path[1:] {
		name += "." + p
	}
	return name
}
