package stdlib

import (
	"fmt"
	"math"

	"github.com/nyml2003/kaubo/internal/config"
	"github.com/nyml2003/kaubo/internal/runtime"
	"github.com/nyml2003/kaubo/internal/typesystem"
)

// ModuleName is the global name of the built-in module.
const ModuleName = "std"

// Member describes one std slot. Slot assignments are fixed at registration
// time and never change between releases: compiled chunks address std
// members by slot.
type Member struct {
	Name  string
	Type  typesystem.Type
	Arity byte
}

// Members returns the std module layout in slot order.
func Members() []Member {
	anyT := typesystem.Any
	floatT := typesystem.Float
	return []Member{
		{Name: "print", Type: typesystem.Func{Params: []typesystem.Type{anyT}, Return: typesystem.Void}, Arity: 1},
		{Name: "assert", Type: anyT, Arity: runtime.VariadicArity},
		{Name: "type", Type: typesystem.Func{Params: []typesystem.Type{anyT}, Return: typesystem.String}, Arity: 1},
		{Name: "to_string", Type: typesystem.Func{Params: []typesystem.Type{anyT}, Return: typesystem.String}, Arity: 1},
		{Name: "sqrt", Type: typesystem.Func{Params: []typesystem.Type{floatT}, Return: floatT}, Arity: 1},
		{Name: "sin", Type: typesystem.Func{Params: []typesystem.Type{floatT}, Return: floatT}, Arity: 1},
		{Name: "cos", Type: typesystem.Func{Params: []typesystem.Type{floatT}, Return: floatT}, Arity: 1},
		{Name: "floor", Type: typesystem.Func{Params: []typesystem.Type{floatT}, Return: floatT}, Arity: 1},
		{Name: "ceil", Type: typesystem.Func{Params: []typesystem.Type{floatT}, Return: floatT}, Arity: 1},
		{Name: "PI", Type: floatT},
		{Name: "E", Type: floatT},
		{Name: "create_coroutine", Type: typesystem.Func{Params: []typesystem.Type{anyT}, Return: typesystem.Coroutine{}}, Arity: 1},
		{Name: "resume", Type: anyT, Arity: runtime.VariadicArity},
		{Name: "coroutine_status", Type: typesystem.Func{Params: []typesystem.Type{typesystem.Coroutine{}}, Return: typesystem.Int}, Arity: 1},
		{Name: "len", Type: typesystem.Func{Params: []typesystem.Type{anyT}, Return: typesystem.Int}, Arity: 1},
		{Name: "range", Type: anyT, Arity: runtime.VariadicArity},
	}
}

// DeclareShape registers the std module shape in a compile-time shape
// table. The checker resolves std.member accesses against it.
func DeclareShape(st *runtime.ShapeTable) *runtime.Shape {
	members := Members()
	names := make([]string, len(members))
	types := make([]typesystem.Type, len(members))
	for i, m := range members {
		names[i] = m.Name
		types[i] = m.Type
	}
	return st.NewReserved(runtime.ShapeStd, ModuleName, names, types)
}

// Install creates the std natives and registers the module value under its
// global name. The shape must be the one declared at compile time.
func Install(rt *runtime.Runtime, shape *runtime.Shape) runtime.Value {
	members := Members()
	slots := make([]runtime.Value, len(members))
	for i, m := range members {
		switch m.Name {
		case "PI":
			slots[i] = runtime.FloatVal(math.Pi)
		case "E":
			slots[i] = runtime.FloatVal(math.E)
		case "create_coroutine":
			slots[i] = allocHooked(rt, m, runtime.HookCreateCoroutine)
		case "resume":
			slots[i] = allocHooked(rt, m, runtime.HookResume)
		case "coroutine_status":
			slots[i] = allocHooked(rt, m, runtime.HookCoroutineStatus)
		default:
			slots[i] = rt.NewNative(m.Name, m.Arity, nativeFns[m.Name])
		}
	}
	module := rt.NewModule(shape, slots)
	rt.RegisterModule(ModuleName, module)
	return module
}

// allocHooked creates a native the VM intercepts: coroutine operations need
// the VM's execution state, which the NativeFn convention cannot reach.
func allocHooked(rt *runtime.Runtime, m Member, hook runtime.VMHook) runtime.Value {
	v := rt.Heap.Alloc(&runtime.ObjNative{
		Name:  m.Name,
		Arity: m.Arity,
		Hook:  hook,
		Fn: func(_ *runtime.Runtime, _ []runtime.Value) (runtime.Value, error) {
			return runtime.NullValue, fmt.Errorf("%s requires a running vm", m.Name)
		},
	})
	return v
}

var nativeFns = map[string]runtime.NativeFn{
	"print":     nativePrint,
	"assert":    nativeAssert,
	"type":      nativeType,
	"to_string": nativeToString,
	"sqrt":      floatNative("sqrt", math.Sqrt),
	"sin":       floatNative("sin", math.Sin),
	"cos":       floatNative("cos", math.Cos),
	"floor":     floatNative("floor", math.Floor),
	"ceil":      floatNative("ceil", math.Ceil),
	"len":       nativeLen,
	"range":     nativeRange,
}

func nativePrint(rt *runtime.Runtime, args []runtime.Value) (runtime.Value, error) {
	fmt.Fprintln(rt.Stdout, rt.Display(args[0]))
	return runtime.NullValue, nil
}

func nativeAssert(rt *runtime.Runtime, args []runtime.Value) (runtime.Value, error) {
	if len(args) < 1 || len(args) > 2 {
		return runtime.NullValue, fmt.Errorf("assert expects 1 or 2 arguments, got %d", len(args))
	}
	if rt.Truthy(args[0]) {
		return runtime.NullValue, nil
	}
	if len(args) == 2 {
		return runtime.NullValue, fmt.Errorf("assertion failed: %s", rt.Display(args[1]))
	}
	return runtime.NullValue, fmt.Errorf("assertion failed")
}

func nativeType(rt *runtime.Runtime, args []runtime.Value) (runtime.Value, error) {
	return rt.InternString(rt.TypeName(args[0])), nil
}

func nativeToString(rt *runtime.Runtime, args []runtime.Value) (runtime.Value, error) {
	return rt.InternString(rt.Display(args[0])), nil
}

func floatNative(name string, fn func(float64) float64) runtime.NativeFn {
	return func(rt *runtime.Runtime, args []runtime.Value) (runtime.Value, error) {
		v := args[0]
		if !v.IsFloat() {
			return runtime.NullValue, fmt.Errorf("%s expects a float, got %s", name, rt.TypeName(v))
		}
		return runtime.FloatVal(fn(v.AsFloat())), nil
	}
}

func nativeLen(rt *runtime.Runtime, args []runtime.Value) (runtime.Value, error) {
	v := args[0]
	switch v.TagOf() {
	case runtime.TagString:
		return runtime.IntVal(int64(len(rt.StringOf(v)))), nil
	case runtime.TagList:
		l := rt.Heap.Get(v).(*runtime.ObjList)
		return runtime.IntVal(int64(len(l.Elements))), nil
	case runtime.TagJson:
		j := rt.Heap.Get(v).(*runtime.ObjJson)
		return runtime.IntVal(int64(j.Len())), nil
	case runtime.TagStruct:
		shape := rt.Heap.Get(v).(*runtime.ObjStruct).Shape
		if handler := shape.Operator(config.OpLen); handler.IsValid() && rt.Dispatch != nil {
			out, err := rt.Dispatch(handler, []runtime.Value{v})
			if err != nil {
				return runtime.NullValue, err
			}
			if !out.IsInt() {
				return runtime.NullValue, fmt.Errorf("operator len must return an int, got %s", rt.TypeName(out))
			}
			return out, nil
		}
		return runtime.NullValue, fmt.Errorf("%s does not define operator len", shape.Name)
	}
	return runtime.NullValue, fmt.Errorf("len expects a list, string or json, got %s", rt.TypeName(v))
}

// nativeRange builds an integer range as a list: range(stop),
// range(start, stop) or range(start, stop, step).
func nativeRange(rt *runtime.Runtime, args []runtime.Value) (runtime.Value, error) {
	if len(args) < 1 || len(args) > 3 {
		return runtime.NullValue, fmt.Errorf("range expects 1 to 3 arguments, got %d", len(args))
	}
	for _, a := range args {
		if !a.IsInt() {
			return runtime.NullValue, fmt.Errorf("range expects integers, got %s", rt.TypeName(a))
		}
	}
	var start, stop, step int64
	switch len(args) {
	case 1:
		start, stop, step = 0, args[0].AsInt(), 1
	case 2:
		start, stop, step = args[0].AsInt(), args[1].AsInt(), 1
	default:
		start, stop, step = args[0].AsInt(), args[1].AsInt(), args[2].AsInt()
	}
	if step == 0 {
		return runtime.NullValue, fmt.Errorf("range step must not be zero")
	}
	var elements []runtime.Value
	if step > 0 {
		for i := start; i < stop; i += step {
			elements = append(elements, runtime.IntVal(i))
		}
	} else {
		for i := start; i > stop; i += step {
			elements = append(elements, runtime.IntVal(i))
		}
	}
	return rt.NewList(elements), nil
}
