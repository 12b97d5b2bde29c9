package runtime

import (
	"github.com/dolthub/swiss"
	"golang.org/x/exp/slices"

	"github.com/nyml2003/kaubo/internal/config"
	"github.com/nyml2003/kaubo/internal/typesystem"
)

// Built-in shape ids. Ids 1-99 are reserved for built-in kinds; user struct
// shapes start at UserShapeBase. Id 0 is invalid so a zeroed inline-cache
// key always reads as cold.
const (
	ShapeInvalid uint16 = iota
	ShapeNull
	ShapeBool
	ShapeInt
	ShapeFloat
	ShapeString
	ShapeList
	ShapeJson
	ShapeFunction
	ShapeClosure
	ShapeCoroutine
	ShapeModule
	ShapeNative
	ShapeIterator

	// Built-in module shapes live at the top of the reserved range.
	ShapeStd uint16 = 90
	ShapeSQL uint16 = 91

	UserShapeBase uint16 = 100
)

// Shape is an immutable runtime type descriptor: field layout plus method
// and operator tables. Struct and module values point to exactly one shape.
type Shape struct {
	ID         uint16
	Name       string
	FieldNames []string
	FieldTypes []typesystem.Type

	methods   *swiss.Map[string, Value]
	operators [config.OpCount]Value

	// Static signatures recorded by the checker; the Value tables above are
	// populated when the impl block executes.
	MethodTypes   map[string]typesystem.Type
	OperatorTypes [config.OpCount]typesystem.Type
}

func newShape(id uint16, name string, fields []string, types []typesystem.Type) *Shape {
	return &Shape{
		ID:          id,
		Name:        name,
		FieldNames:  fields,
		FieldTypes:  types,
		methods:     swiss.NewMap[string, Value](8),
		MethodTypes: make(map[string]typesystem.Type),
	}
}

// SlotOf returns the slot index of a field, or -1.
func (s *Shape) SlotOf(name string) int {
	for i, f := range s.FieldNames {
		if f == name {
			return i
		}
	}
	return -1
}

// Method returns the named method closure.
func (s *Shape) Method(name string) (Value, bool) {
	return s.methods.Get(name)
}

// SetMethod attaches a method closure.
func (s *Shape) SetMethod(name string, fn Value) {
	s.methods.Put(name, fn)
}

// MethodNames returns the attached method names in sorted order.
func (s *Shape) MethodNames() []string {
	names := make([]string, 0, s.methods.Count())
	s.methods.Iter(func(k string, _ Value) bool {
		names = append(names, k)
		return false
	})
	slices.Sort(names)
	return names
}

// Operator returns the handler for an operator kind; InvalidValue when the
// shape does not define it.
func (s *Shape) Operator(k config.OpKind) Value {
	return s.operators[k]
}

// SetOperator attaches an operator handler.
func (s *Shape) SetOperator(k config.OpKind, fn Value) {
	s.operators[k] = fn
}

// ShapeTable owns every shape for the lifetime of a runtime.
type ShapeTable struct {
	shapes []*Shape
	byName *swiss.Map[string, *Shape]
	nextID uint16
}

func NewShapeTable() *ShapeTable {
	st := &ShapeTable{
		shapes: make([]*Shape, UserShapeBase),
		byName: swiss.NewMap[string, *Shape](16),
		nextID: UserShapeBase,
	}
	builtins := map[uint16]string{
		ShapeNull:      "null",
		ShapeBool:      "bool",
		ShapeInt:       "int",
		ShapeFloat:     "float",
		ShapeString:    "string",
		ShapeList:      "list",
		ShapeJson:      "json",
		ShapeFunction:  "function",
		ShapeClosure:   "function",
		ShapeCoroutine: "coroutine",
		ShapeModule:    "module",
		ShapeNative:    "function",
		ShapeIterator:  "iterator",
	}
	for id, name := range builtins {
		st.shapes[id] = newShape(id, name, nil, nil)
	}
	return st
}

// New registers a fresh user shape.
func (st *ShapeTable) New(name string, fields []string, types []typesystem.Type) *Shape {
	s := newShape(st.nextID, name, fields, types)
	st.nextID++
	st.shapes = append(st.shapes, s)
	st.byName.Put(name, s)
	return s
}

// NewReserved installs a shape at a fixed id in the built-in range,
// used by the standard-library modules whose slots are part of the
// compiled-chunk contract.
func (st *ShapeTable) NewReserved(id uint16, name string, fields []string, types []typesystem.Type) *Shape {
	s := newShape(id, name, fields, types)
	st.shapes[id] = s
	st.byName.Put(name, s)
	return s
}

// Get returns the shape with the given id, or nil.
func (st *ShapeTable) Get(id uint16) *Shape {
	if int(id) >= len(st.shapes) {
		return nil
	}
	return st.shapes[id]
}

// Lookup finds a user shape by name.
func (st *ShapeTable) Lookup(name string) (*Shape, bool) {
	return st.byName.Get(name)
}

// Builtin returns the built-in shape for a value tag.
func (st *ShapeTable) Builtin(t Tag) *Shape {
	return st.shapes[BuiltinShapeID(t)]
}

// BuiltinShapeID maps a value tag to its built-in shape id.
func BuiltinShapeID(t Tag) uint16 {
	switch t {
	case TagNull:
		return ShapeNull
	case TagTrue, TagFalse:
		return ShapeBool
	case TagSmallInt, TagTinyInt:
		return ShapeInt
	case TagFloat:
		return ShapeFloat
	case TagString:
		return ShapeString
	case TagList:
		return ShapeList
	case TagJson:
		return ShapeJson
	case TagFunction:
		return ShapeFunction
	case TagClosure:
		return ShapeClosure
	case TagCoroutine:
		return ShapeCoroutine
	case TagModule:
		return ShapeModule
	case TagNative:
		return ShapeNative
	case TagIterator:
		return ShapeIterator
	}
	return ShapeInvalid
}
