package runtime

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dolthub/swiss"

	"github.com/nyml2003/kaubo/internal/config"
)

// Runtime bundles the heap, shape table, string interner and module
// registry shared by a VM and its natives. It is re-entrant across distinct
// instances; nothing in it is process-global.
type Runtime struct {
	Heap   *Heap
	Shapes *ShapeTable
	Stdout io.Writer

	// Dispatch invokes an operator handler synchronously. The VM installs
	// it at creation so natives and Display can reach user-defined
	// operators such as `operator str` and `operator len`.
	Dispatch func(handler Value, args []Value) (Value, error)

	interner *interner
	modules  *swiss.Map[string, Value]
}

func NewRuntime(stdout io.Writer) *Runtime {
	return NewRuntimeWithShapes(NewShapeTable(), stdout)
}

// NewRuntimeWithShapes creates a runtime over a shape table built during
// compilation, so compile-time shape ids line up with runtime dispatch.
func NewRuntimeWithShapes(shapes *ShapeTable, stdout io.Writer) *Runtime {
	if stdout == nil {
		stdout = os.Stdout
	}
	return &Runtime{
		Heap:     NewHeap(),
		Shapes:   shapes,
		Stdout:   stdout,
		interner: newInterner(),
		modules:  swiss.NewMap[string, Value](8),
	}
}

// InternString returns the canonical handle for s.
func (rt *Runtime) InternString(s string) Value {
	return rt.interner.intern(rt.Heap, s)
}

// StringOf unboxes a string value.
func (rt *Runtime) StringOf(v Value) string {
	return rt.Heap.Get(v).(*ObjString).Value
}

// NewList allocates a list from the given elements.
func (rt *Runtime) NewList(elements []Value) Value {
	return rt.Heap.Alloc(&ObjList{Elements: elements})
}

// NewJsonValue allocates an empty JSON object.
func (rt *Runtime) NewJsonValue() (*ObjJson, Value) {
	j := NewJson()
	return j, rt.Heap.Alloc(j)
}

// NewStruct allocates a struct instance of shape with the given slots.
func (rt *Runtime) NewStruct(shape *Shape, slots []Value) Value {
	return rt.Heap.Alloc(&ObjStruct{Shape: shape, Slots: slots})
}

// NewModule allocates a module instance of shape with the given slots.
func (rt *Runtime) NewModule(shape *Shape, slots []Value) Value {
	return rt.Heap.Alloc(&ObjModule{Shape: shape, Slots: slots})
}

// NewNative allocates a host function.
func (rt *Runtime) NewNative(name string, arity byte, fn NativeFn) Value {
	return rt.Heap.Alloc(&ObjNative{Name: name, Arity: arity, Fn: fn})
}

// RegisterModule installs a module value under a global name.
func (rt *Runtime) RegisterModule(name string, module Value) {
	rt.modules.Put(name, module)
}

// Module resolves a registered module by name.
func (rt *Runtime) Module(name string) (Value, bool) {
	return rt.modules.Get(name)
}

// ShapeIDOf returns the dispatch shape id of any value.
func (rt *Runtime) ShapeIDOf(v Value) uint16 {
	switch v.TagOf() {
	case TagStruct:
		return rt.Heap.Get(v).(*ObjStruct).Shape.ID
	case TagModule:
		return rt.Heap.Get(v).(*ObjModule).Shape.ID
	default:
		return BuiltinShapeID(v.TagOf())
	}
}

// ShapeOf returns the dispatch shape of any value.
func (rt *Runtime) ShapeOf(v Value) *Shape {
	return rt.Shapes.Get(rt.ShapeIDOf(v))
}

// TypeName returns the runtime type tag string reported by std.type.
func (rt *Runtime) TypeName(v Value) string {
	switch v.TagOf() {
	case TagNull:
		return "null"
	case TagTrue, TagFalse:
		return "bool"
	case TagSmallInt, TagTinyInt:
		return "int"
	case TagFloat:
		return "float"
	case TagString:
		return "string"
	case TagList:
		return "list"
	case TagJson:
		return "json"
	case TagFunction, TagClosure, TagNative:
		return "function"
	case TagCoroutine:
		return "coroutine"
	case TagModule:
		return "module"
	default:
		return "unknown"
	}
}

// Truthy reports whether a value counts as true for std.assert: everything
// except false and null.
func (rt *Runtime) Truthy(v Value) bool {
	return v != FalseValue && v != NullValue
}

// Equal implements the default total equality: bit equality for immediates,
// numeric equality within a numeric kind, structural equality for strings,
// lists and json, handle equality for other heap objects.
func (rt *Runtime) Equal(a, b Value) bool {
	if a == b {
		return true
	}
	at, bt := a.TagOf(), b.TagOf()
	switch {
	case a.IsInt() && b.IsInt():
		return a.AsInt() == b.AsInt()
	case at == TagFloat && bt == TagFloat:
		return a.AsFloat() == b.AsFloat()
	case at != bt:
		return false
	case at == TagString:
		return rt.StringOf(a) == rt.StringOf(b)
	case at == TagList:
		la := rt.Heap.Get(a).(*ObjList)
		lb := rt.Heap.Get(b).(*ObjList)
		if len(la.Elements) != len(lb.Elements) {
			return false
		}
		for i := range la.Elements {
			if !rt.Equal(la.Elements[i], lb.Elements[i]) {
				return false
			}
		}
		return true
	case at == TagJson:
		ja := rt.Heap.Get(a).(*ObjJson)
		jb := rt.Heap.Get(b).(*ObjJson)
		if len(ja.Keys) != len(jb.Keys) {
			return false
		}
		for i, k := range ja.Keys {
			if jb.Keys[i] != k || !rt.Equal(ja.Values[i], jb.Values[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Display renders a value's human-readable form, used by std.print and
// std.to_string.
func (rt *Runtime) Display(v Value) string {
	return rt.display(v, false)
}

func (rt *Runtime) display(v Value, nested bool) string {
	switch v.TagOf() {
	case TagNull:
		return "null"
	case TagTrue:
		return "true"
	case TagFalse:
		return "false"
	case TagSmallInt, TagTinyInt:
		return fmt.Sprintf("%d", v.AsInt())
	case TagFloat:
		return fmt.Sprintf("%g", v.AsFloat())
	case TagString:
		s := rt.StringOf(v)
		if nested {
			return fmt.Sprintf("%q", s)
		}
		return s
	case TagList:
		l := rt.Heap.Get(v).(*ObjList)
		parts := make([]string, len(l.Elements))
		for i, e := range l.Elements {
			parts[i] = rt.display(e, true)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case TagJson:
		j := rt.Heap.Get(v).(*ObjJson)
		parts := make([]string, len(j.Keys))
		for i, k := range j.Keys {
			parts[i] = fmt.Sprintf("%q: %s", k, rt.display(j.Values[i], true))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case TagStruct:
		s := rt.Heap.Get(v).(*ObjStruct)
		if handler := s.Shape.Operator(config.OpStr); handler.IsValid() && rt.Dispatch != nil {
			// A failing handler falls back to the field dump; Display
			// itself is infallible.
			if out, err := rt.Dispatch(handler, []Value{v}); err == nil && out.TagOf() == TagString {
				return rt.StringOf(out)
			}
		}
		parts := make([]string, len(s.Slots))
		for i, slot := range s.Slots {
			parts[i] = fmt.Sprintf("%s: %s", s.Shape.FieldNames[i], rt.display(slot, true))
		}
		return s.Shape.Name + " { " + strings.Join(parts, ", ") + " }"
	case TagModule:
		m := rt.Heap.Get(v).(*ObjModule)
		return "<module " + m.Shape.Name + ">"
	case TagNative:
		n := rt.Heap.Get(v).(*ObjNative)
		return "<native fn " + n.Name + ">"
	case TagCoroutine:
		return "<coroutine>"
	case TagFunction, TagClosure:
		return "<fn>"
	case TagShape:
		return "<shape>"
	default:
		return "<unknown>"
	}
}
