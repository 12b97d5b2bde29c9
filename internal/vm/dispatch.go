package vm

import (
	"fmt"

	"github.com/nyml2003/kaubo/internal/config"
	"github.com/nyml2003/kaubo/internal/runtime"
)

// dispatchBinary implements the four-level arithmetic ladder: built-in fast
// paths, inline cache, shape operator tables (with the commuted radd/rmul
// fallback on the right operand), then failure.
func (vm *VM) dispatchBinary(kind config.OpKind, cache *CacheSlot) error {
	right := vm.pop()
	left := vm.pop()

	// Level 1: monomorphic built-in pairs.
	if left.IsInt() && right.IsInt() {
		l, r := left.AsInt(), right.AsInt()
		switch kind {
		case config.OpAdd:
			vm.push(runtime.IntVal(l + r))
			return nil
		case config.OpSub:
			vm.push(runtime.IntVal(l - r))
			return nil
		case config.OpMul:
			vm.push(runtime.IntVal(l * r))
			return nil
		case config.OpDiv:
			if r == 0 {
				return fmt.Errorf("division by zero")
			}
			vm.push(runtime.IntVal(l / r))
			return nil
		case config.OpMod:
			if r == 0 {
				return fmt.Errorf("division by zero")
			}
			vm.push(runtime.IntVal(l % r))
			return nil
		}
	}
	if left.IsFloat() && right.IsFloat() {
		l, r := left.AsFloat(), right.AsFloat()
		switch kind {
		case config.OpAdd:
			vm.push(runtime.FloatVal(l + r))
			return nil
		case config.OpSub:
			vm.push(runtime.FloatVal(l - r))
			return nil
		case config.OpMul:
			vm.push(runtime.FloatVal(l * r))
			return nil
		case config.OpDiv:
			vm.push(runtime.FloatVal(l / r))
			return nil
		}
	}
	if kind == config.OpAdd && left.TagOf() == runtime.TagString && right.TagOf() == runtime.TagString {
		vm.push(vm.rt.InternString(vm.rt.StringOf(left) + vm.rt.StringOf(right)))
		return nil
	}

	lid := vm.rt.ShapeIDOf(left)
	rid := vm.rt.ShapeIDOf(right)
	key := uint32(lid)<<16 | uint32(rid)

	// Level 2: inline cache.
	if cache != nil && cache.Key == key && cache.Handler != 0 {
		result, err := vm.callSync(runtime.Value(cache.Handler), []runtime.Value{left, right})
		if err != nil {
			return err
		}
		vm.push(result)
		return nil
	}

	// Level 3: shape operator tables.
	if handler := vm.rt.Shapes.Get(lid).Operator(kind); handler.IsValid() {
		if cache != nil {
			cache.Key = key
			cache.Handler = uint64(handler)
		}
		result, err := vm.callSync(handler, []runtime.Value{left, right})
		if err != nil {
			return err
		}
		vm.push(result)
		return nil
	}
	if rev, hasRev := config.ReverseOf(kind); hasRev {
		if handler := vm.rt.Shapes.Get(rid).Operator(rev); handler.IsValid() {
			// The commuted handler receives its own instance first; the
			// cache stays cold since it records direct handlers only.
			result, err := vm.callSync(handler, []runtime.Value{right, left})
			if err != nil {
				return err
			}
			vm.push(result)
			return nil
		}
	}

	// Level 4: no default behavior.
	return fmt.Errorf("operator %s not supported for types %s,%s",
		kind, vm.rt.TypeName(left), vm.rt.TypeName(right))
}

// dispatchEqual implements total equality: a custom operator eq wins,
// otherwise the runtime's structural/pointer default applies.
func (vm *VM) dispatchEqual() error {
	right := vm.pop()
	left := vm.pop()

	if left.TagOf() == runtime.TagStruct {
		shape := vm.rt.Heap.Get(left).(*runtime.ObjStruct).Shape
		if handler := shape.Operator(config.OpEq); handler.IsValid() {
			result, err := vm.callSync(handler, []runtime.Value{left, right})
			if err != nil {
				return err
			}
			vm.push(result)
			return nil
		}
	}
	if right.TagOf() == runtime.TagStruct {
		shape := vm.rt.Heap.Get(right).(*runtime.ObjStruct).Shape
		if handler := shape.Operator(config.OpEq); handler.IsValid() {
			result, err := vm.callSync(handler, []runtime.Value{right, left})
			if err != nil {
				return err
			}
			vm.push(result)
			return nil
		}
	}
	vm.push(runtime.BoolVal(vm.rt.Equal(left, right)))
	return nil
}

func (vm *VM) dispatchCompare(kind config.OpKind) error {
	right := vm.pop()
	left := vm.pop()

	if left.IsInt() && right.IsInt() {
		if kind == config.OpLt {
			vm.push(runtime.BoolVal(left.AsInt() < right.AsInt()))
		} else {
			vm.push(runtime.BoolVal(left.AsInt() <= right.AsInt()))
		}
		return nil
	}
	if left.IsFloat() && right.IsFloat() {
		if kind == config.OpLt {
			vm.push(runtime.BoolVal(left.AsFloat() < right.AsFloat()))
		} else {
			vm.push(runtime.BoolVal(left.AsFloat() <= right.AsFloat()))
		}
		return nil
	}
	if left.TagOf() == runtime.TagString && right.TagOf() == runtime.TagString {
		l, r := vm.rt.StringOf(left), vm.rt.StringOf(right)
		if kind == config.OpLt {
			vm.push(runtime.BoolVal(l < r))
		} else {
			vm.push(runtime.BoolVal(l <= r))
		}
		return nil
	}
	if left.TagOf() == runtime.TagStruct {
		shape := vm.rt.Heap.Get(left).(*runtime.ObjStruct).Shape
		if handler := shape.Operator(kind); handler.IsValid() {
			result, err := vm.callSync(handler, []runtime.Value{left, right})
			if err != nil {
				return err
			}
			vm.push(result)
			return nil
		}
	}
	return fmt.Errorf("operator %s not supported for types %s,%s",
		kind, vm.rt.TypeName(left), vm.rt.TypeName(right))
}

func (vm *VM) dispatchNeg() error {
	v := vm.pop()
	switch {
	case v.IsInt():
		vm.push(runtime.IntVal(-v.AsInt()))
	case v.IsFloat():
		vm.push(runtime.FloatVal(-v.AsFloat()))
	case v.TagOf() == runtime.TagStruct:
		shape := vm.rt.Heap.Get(v).(*runtime.ObjStruct).Shape
		handler := shape.Operator(config.OpNeg)
		if !handler.IsValid() {
			return fmt.Errorf("operator neg not supported for type %s", shape.Name)
		}
		result, err := vm.callSync(handler, []runtime.Value{v})
		if err != nil {
			return err
		}
		vm.push(result)
	default:
		return fmt.Errorf("operator neg not supported for type %s", vm.rt.TypeName(v))
	}
	return nil
}
