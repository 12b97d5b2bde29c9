package pipeline

import (
	"github.com/nyml2003/kaubo/internal/ast"
	"github.com/nyml2003/kaubo/internal/diagnostics"
	"github.com/nyml2003/kaubo/internal/typesystem"
)

// Context holds all the data passed between pipeline stages.
type Context struct {
	SourceCode  string
	FilePath    string
	TokenStream TokenStream
	AstRoot     *ast.Program

	// TypeMap stores the type inferred for every expression node.
	TypeMap map[ast.Node]typesystem.Type

	// Shapes is the struct/module shape table built by the checker. It is
	// declared as an interface to keep the runtime package out of the
	// pipeline's import graph; the checker and compiler agree on the
	// concrete type.
	Shapes interface{}

	Errors []*diagnostics.Error
}

// NewContext creates and initializes a pipeline context for source.
func NewContext(source string) *Context {
	return &Context{
		SourceCode: source,
		TypeMap:    make(map[ast.Node]typesystem.Type),
		Errors:     []*diagnostics.Error{},
	}
}

// AddError appends a diagnostic to the context.
func (c *Context) AddError(err *diagnostics.Error) {
	c.Errors = append(c.Errors, err)
}

// HasErrors reports whether any stage recorded a diagnostic.
func (c *Context) HasErrors() bool {
	return len(c.Errors) > 0
}

// FirstError returns the first recorded diagnostic, or nil.
func (c *Context) FirstError() *diagnostics.Error {
	if len(c.Errors) == 0 {
		return nil
	}
	return c.Errors[0]
}
