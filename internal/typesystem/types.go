package typesystem

import (
	"fmt"
	"strings"
)

// Type is the closed sum of kaubo static types.
type Type interface {
	String() string
	typeNode()
}

// Primitive covers the nullary built-in types.
type Primitive struct {
	Name string
}

func (p Primitive) typeNode()      {}
func (p Primitive) String() string { return p.Name }

var (
	Int    = Primitive{Name: "int"}
	Float  = Primitive{Name: "float"}
	Bool   = Primitive{Name: "bool"}
	String = Primitive{Name: "string"}
	Void   = Primitive{Name: "void"}
	Any    = Primitive{Name: "any"}
	Null   = Primitive{Name: "null"}
)

// List is a homogeneous list type.
type List struct {
	Elem Type
}

func (l List) typeNode() {}
func (l List) String() string {
	return fmt.Sprintf("list<%s>", l.Elem)
}

// Tuple is a fixed-arity heterogeneous sequence type.
type Tuple struct {
	Elems []Type
}

func (t Tuple) typeNode() {}
func (t Tuple) String() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.String()
	}
	return fmt.Sprintf("tuple<%s>", strings.Join(parts, ", "))
}

// Func is a function type.
type Func struct {
	Params []Type
	Return Type
}

func (f Func) typeNode() {}
func (f Func) String() string {
	parts := make([]string, len(f.Params))
	for i, p := range f.Params {
		parts[i] = p.String()
	}
	return fmt.Sprintf("function(%s) -> %s", strings.Join(parts, ", "), f.Return)
}

// Named is a user-defined struct type (or a module), identified by its shape.
type Named struct {
	Name    string
	ShapeID uint16
}

func (n Named) typeNode()      {}
func (n Named) String() string { return n.Name }

// Json is the dynamic JSON object type.
type Json struct{}

func (Json) typeNode()      {}
func (Json) String() string { return "json" }

// Coroutine is the runtime coroutine handle type.
type Coroutine struct{}

func (Coroutine) typeNode()      {}
func (Coroutine) String() string { return "coroutine" }

// Module is the type of an imported or declared module value.
type Module struct {
	Name    string
	ShapeID uint16
}

func (m Module) typeNode()      {}
func (m Module) String() string { return "module " + m.Name }

// Equal reports structural equality of two types.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch at := a.(type) {
	case Primitive:
		bt, ok := b.(Primitive)
		return ok && at.Name == bt.Name
	case List:
		bt, ok := b.(List)
		return ok && Equal(at.Elem, bt.Elem)
	case Tuple:
		bt, ok := b.(Tuple)
		if !ok || len(at.Elems) != len(bt.Elems) {
			return false
		}
		for i := range at.Elems {
			if !Equal(at.Elems[i], bt.Elems[i]) {
				return false
			}
		}
		return true
	case Func:
		bt, ok := b.(Func)
		if !ok || len(at.Params) != len(bt.Params) {
			return false
		}
		for i := range at.Params {
			if !Equal(at.Params[i], bt.Params[i]) {
				return false
			}
		}
		return Equal(at.Return, bt.Return)
	case Named:
		bt, ok := b.(Named)
		return ok && at.ShapeID == bt.ShapeID
	case Json:
		_, ok := b.(Json)
		return ok
	case Coroutine:
		_, ok := b.(Coroutine)
		return ok
	case Module:
		bt, ok := b.(Module)
		return ok && at.ShapeID == bt.ShapeID
	}
	return false
}

// IsAny reports whether t is the top type.
func IsAny(t Type) bool {
	p, ok := t.(Primitive)
	return ok && p.Name == "any"
}

// IsNumeric reports whether t is int or float.
func IsNumeric(t Type) bool {
	p, ok := t.(Primitive)
	return ok && (p.Name == "int" || p.Name == "float")
}

// Compatible reports whether a value of type src may flow where dst is
// expected. Compatibility is strict: int and float are distinct, null only
// flows to any, and any flows everywhere in both directions.
func Compatible(dst, src Type) bool {
	if dst == nil || src == nil {
		return false
	}
	if IsAny(dst) || IsAny(src) {
		return true
	}
	return Equal(dst, src)
}

// Join computes the least common type of two branches: equal types join to
// themselves, anything else joins to any only if one side is any, otherwise
// the join does not exist and nil is returned.
func Join(a, b Type) Type {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if Equal(a, b) {
		return a
	}
	if IsAny(a) || IsAny(b) {
		return Any
	}
	return nil
}
