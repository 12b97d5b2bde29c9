package vm

import (
	"fmt"

	"github.com/nyml2003/kaubo/internal/config"
	"github.com/nyml2003/kaubo/internal/runtime"
)

// step fetches, decodes and executes one instruction of the current
// execution state.
func (vm *VM) step() error {
	op := Opcode(vm.readByte())
	switch op {

	case OpLoadConst:
		idx := vm.readU16()
		vm.push(vm.frame().consts[idx])

	case OpLoadConst0, OpLoadConst1, OpLoadConst2, OpLoadConst3,
		OpLoadConst4, OpLoadConst5, OpLoadConst6, OpLoadConst7,
		OpLoadConst8, OpLoadConst9, OpLoadConst10, OpLoadConst11,
		OpLoadConst12, OpLoadConst13, OpLoadConst14, OpLoadConst15:
		vm.push(vm.frame().consts[op-OpLoadConst0])

	case OpLoadNull:
		vm.push(runtime.NullValue)
	case OpLoadTrue:
		vm.push(runtime.TrueValue)
	case OpLoadFalse:
		vm.push(runtime.FalseValue)
	case OpLoadZero:
		vm.push(runtime.IntVal(0))
	case OpLoadOne:
		vm.push(runtime.IntVal(1))

	case OpPop:
		vm.pop()
	case OpDup:
		vm.push(vm.peek(0))
	case OpSwap:
		st := vm.cur
		st.stack[st.sp-1], st.stack[st.sp-2] = st.stack[st.sp-2], st.stack[st.sp-1]

	case OpLoadLocal:
		slot := int(vm.readByte())
		vm.push(vm.cur.stack[vm.frame().base+slot])
	case OpLoadLocal0, OpLoadLocal1, OpLoadLocal2, OpLoadLocal3,
		OpLoadLocal4, OpLoadLocal5, OpLoadLocal6, OpLoadLocal7:
		vm.push(vm.cur.stack[vm.frame().base+int(op-OpLoadLocal0)])

	case OpStoreLocal:
		slot := int(vm.readByte())
		vm.cur.stack[vm.frame().base+slot] = vm.peek(0)
	case OpStoreLocal0, OpStoreLocal1, OpStoreLocal2, OpStoreLocal3,
		OpStoreLocal4, OpStoreLocal5, OpStoreLocal6, OpStoreLocal7:
		vm.cur.stack[vm.frame().base+int(op-OpStoreLocal0)] = vm.peek(0)

	case OpLoadModule:
		idx := vm.readU16()
		name := vm.rt.StringOf(vm.frame().consts[idx])
		module, ok := vm.rt.Module(name)
		if !ok {
			return fmt.Errorf("unknown module '%s'", name)
		}
		vm.push(module)

	case OpBuildModule:
		shapeID := vm.readU16()
		count := int(vm.readByte())
		shape := vm.rt.Shapes.Get(shapeID)
		if shape == nil {
			return fmt.Errorf("unknown shape id %d", shapeID)
		}
		slots := make([]runtime.Value, count)
		copy(slots, vm.cur.stack[vm.cur.sp-count:vm.cur.sp])
		vm.cur.sp -= count
		module := vm.rt.NewModule(shape, slots)
		vm.rt.RegisterModule(shape.Name, module)
		vm.push(module)

	case OpModuleGet:
		slot := int(vm.readByte())
		v := vm.pop()
		if v.TagOf() != runtime.TagModule {
			return fmt.Errorf("expected a module, got %s", vm.rt.TypeName(v))
		}
		vm.push(vm.rt.Heap.Get(v).(*runtime.ObjModule).Slots[slot])

	case OpGetUpvalue:
		idx := int(vm.readByte())
		vm.push(vm.frame().closure.Upvalues[idx].get())

	case OpSetUpvalue:
		idx := int(vm.readByte())
		vm.frame().closure.Upvalues[idx].set(vm.peek(0))

	case OpCloseUpvalues:
		from := int(vm.readByte())
		vm.closeUpvalues(vm.frame().base + from)

	case OpAdd:
		slot := vm.readU16()
		return vm.dispatchBinary(config.OpAdd, &vm.frame().closure.Fn.Chunk.InlineCaches[slot])
	case OpSub:
		return vm.dispatchBinary(config.OpSub, nil)
	case OpMul:
		slot := vm.readU16()
		return vm.dispatchBinary(config.OpMul, &vm.frame().closure.Fn.Chunk.InlineCaches[slot])
	case OpDiv:
		return vm.dispatchBinary(config.OpDiv, nil)
	case OpMod:
		return vm.dispatchBinary(config.OpMod, nil)
	case OpPipeOp:
		return vm.dispatchBinary(config.OpPipe, nil)
	case OpEqual:
		return vm.dispatchEqual()
	case OpLess:
		return vm.dispatchCompare(config.OpLt)
	case OpLessEqual:
		return vm.dispatchCompare(config.OpLe)
	case OpNeg:
		return vm.dispatchNeg()
	case OpNot:
		v := vm.pop()
		if !v.IsBool() {
			return fmt.Errorf("not expects a bool, got %s", vm.rt.TypeName(v))
		}
		vm.push(runtime.BoolVal(!v.AsBool()))

	case OpCastFloat:
		v := vm.pop()
		switch {
		case v.IsInt():
			vm.push(runtime.FloatVal(float64(v.AsInt())))
		case v.IsFloat():
			vm.push(v)
		default:
			return fmt.Errorf("cannot cast %s to float", vm.rt.TypeName(v))
		}
	case OpCastInt:
		v := vm.pop()
		switch {
		case v.IsFloat():
			vm.push(runtime.IntVal(int64(v.AsFloat())))
		case v.IsInt():
			vm.push(v)
		default:
			return fmt.Errorf("cannot cast %s to int", vm.rt.TypeName(v))
		}
	case OpCastString:
		v := vm.pop()
		switch v.TagOf() {
		case runtime.TagSmallInt, runtime.TagTinyInt, runtime.TagFloat, runtime.TagTrue, runtime.TagFalse:
			vm.push(vm.rt.InternString(vm.rt.Display(v)))
		case runtime.TagString:
			vm.push(v)
		default:
			return fmt.Errorf("cannot cast %s to string", vm.rt.TypeName(v))
		}

	case OpJump:
		offset := vm.readS16()
		vm.frame().ip += offset

	case OpJumpIfFalse:
		offset := vm.readS16()
		v := vm.pop()
		if !v.IsBool() {
			return fmt.Errorf("condition must be a bool, got %s", vm.rt.TypeName(v))
		}
		if !v.AsBool() {
			vm.frame().ip += offset
		}

	case OpJumpBack:
		offset := vm.readS16()
		vm.frame().ip -= offset

	case OpCall:
		argc := int(vm.readByte())
		return vm.callValue(vm.peek(argc), argc)

	case OpReturn:
		vm.doReturn(runtime.NullValue)

	case OpReturnValue:
		vm.doReturn(vm.pop())

	case OpLambda:
		idx := vm.readU16()
		count := int(vm.readByte())
		fnVal := vm.frame().consts[idx]
		fn := vm.rt.Heap.Get(fnVal).(*Function)
		closure := &ObjClosure{Fn: fn, Upvalues: make([]*ObjUpvalue, count)}
		parent := vm.frame()
		for i := 0; i < count; i++ {
			isLocal := vm.readByte() == 1
			index := int(vm.readByte())
			if isLocal {
				closure.Upvalues[i] = vm.captureUpvalue(parent.base + index)
			} else {
				closure.Upvalues[i] = parent.closure.Upvalues[index]
			}
		}
		vm.push(vm.rt.Heap.Alloc(closure))

	case OpBuildList:
		count := int(vm.readU16())
		elements := make([]runtime.Value, count)
		copy(elements, vm.cur.stack[vm.cur.sp-count:vm.cur.sp])
		vm.cur.sp -= count
		vm.push(vm.rt.NewList(elements))

	case OpIndexGet:
		return vm.indexGet()

	case OpIndexSet:
		return vm.indexSet()

	case OpBuildJson:
		count := int(vm.readU16())
		j, v := vm.rt.NewJsonValue()
		base := vm.cur.sp - count*2
		for i := 0; i < count; i++ {
			key := vm.cur.stack[base+i*2]
			val := vm.cur.stack[base+i*2+1]
			j.Set(vm.rt.StringOf(key), val)
		}
		vm.cur.sp = base
		vm.push(v)

	case OpJsonGet:
		key := vm.pop()
		obj := vm.pop()
		if obj.TagOf() != runtime.TagJson {
			return fmt.Errorf("expected json, got %s", vm.rt.TypeName(obj))
		}
		if key.TagOf() != runtime.TagString {
			return fmt.Errorf("json key must be a string, got %s", vm.rt.TypeName(key))
		}
		vm.push(vm.rt.Heap.Get(obj).(*runtime.ObjJson).Get(vm.rt.StringOf(key)))

	case OpJsonSet:
		val := vm.pop()
		key := vm.pop()
		obj := vm.pop()
		if obj.TagOf() != runtime.TagJson {
			return fmt.Errorf("expected json, got %s", vm.rt.TypeName(obj))
		}
		if key.TagOf() != runtime.TagString {
			return fmt.Errorf("json key must be a string, got %s", vm.rt.TypeName(key))
		}
		vm.rt.Heap.Get(obj).(*runtime.ObjJson).Set(vm.rt.StringOf(key), val)
		vm.push(val)

	case OpGetField:
		slot := int(vm.readByte())
		v := vm.pop()
		if v.TagOf() != runtime.TagStruct {
			return fmt.Errorf("expected a struct, got %s", vm.rt.TypeName(v))
		}
		vm.push(vm.rt.Heap.Get(v).(*runtime.ObjStruct).Slots[slot])

	case OpSetField:
		slot := int(vm.readByte())
		val := vm.pop()
		obj := vm.pop()
		if obj.TagOf() != runtime.TagStruct {
			return fmt.Errorf("expected a struct, got %s", vm.rt.TypeName(obj))
		}
		vm.rt.Heap.Get(obj).(*runtime.ObjStruct).Slots[slot] = val
		vm.push(val)

	case OpBuildStruct:
		shapeID := vm.readU16()
		count := int(vm.readByte())
		shape := vm.rt.Shapes.Get(shapeID)
		if shape == nil {
			return fmt.Errorf("unknown shape id %d", shapeID)
		}
		slots := make([]runtime.Value, count)
		copy(slots, vm.cur.stack[vm.cur.sp-count:vm.cur.sp])
		vm.cur.sp -= count
		vm.push(vm.rt.NewStruct(shape, slots))

	case OpGetMethod:
		idx := vm.readU16()
		name := vm.rt.StringOf(vm.frame().consts[idx])
		recv := vm.pop()
		shape := vm.rt.ShapeOf(recv)
		method, ok := shape.Method(name)
		if !ok {
			return fmt.Errorf("%s has no method '%s'", vm.rt.TypeName(recv), name)
		}
		vm.push(method)

	case OpSetShapeMethod:
		shapeID := vm.readU16()
		nameIdx := vm.readU16()
		shape := vm.rt.Shapes.Get(shapeID)
		name := vm.rt.StringOf(vm.frame().consts[nameIdx])
		shape.SetMethod(name, vm.pop())

	case OpSetShapeOperator:
		shapeID := vm.readU16()
		kind := config.OpKind(vm.readByte())
		shape := vm.rt.Shapes.Get(shapeID)
		shape.SetOperator(kind, vm.pop())

	case OpGetIter:
		return vm.getIter()

	case OpIterNext:
		return vm.iterNext()

	case OpCreateCoroutine:
		co, err := vm.createCoroutine(vm.pop())
		if err != nil {
			return err
		}
		vm.push(co)

	case OpResume:
		extra := int(vm.readByte())
		var arg runtime.Value
		hasArg := extra == 1
		if hasArg {
			arg = vm.pop()
		}
		co, err := vm.resolveCoroutine(vm.pop())
		if err != nil {
			return err
		}
		result, _, err := vm.doResume(co, arg, hasArg)
		if err != nil {
			return err
		}
		vm.push(result)

	case OpYield:
		if len(vm.resumeChain) == 0 {
			return fmt.Errorf("yield outside of a coroutine")
		}
		vm.yieldVal = vm.pop()
		vm.yieldFlag = true

	case OpCoroutineStatus:
		status, err := vm.coroutineStatus(vm.pop())
		if err != nil {
			return err
		}
		vm.push(status)

	case OpInvalid:
		return fmt.Errorf("invalid instruction")

	default:
		return fmt.Errorf("unknown opcode 0x%02x", byte(op))
	}
	return nil
}

// doReturn pops the current frame, closes its upvalues and delivers the
// return value: to the caller's stack, or as the final result when the
// last frame of an execution state returns.
func (vm *VM) doReturn(result runtime.Value) {
	st := vm.cur
	f := st.frames[len(st.frames)-1]
	vm.closeUpvalues(f.base)
	st.frames = st.frames[:len(st.frames)-1]
	st.sp = f.base - 1 // discard locals and the callee

	if len(st.frames) == 0 {
		if st == &vm.main {
			vm.halted = true
			vm.result = result
		} else {
			co := vm.resumeChain[len(vm.resumeChain)-1]
			co.status = CoroDead
			co.result = result
		}
		return
	}
	vm.push(result)
}

func (vm *VM) getIter() error {
	v := vm.pop()
	switch v.TagOf() {
	case runtime.TagList:
		vm.push(vm.rt.Heap.Alloc(&ObjIterator{list: vm.rt.Heap.Get(v).(*runtime.ObjList)}))
	case runtime.TagCoroutine:
		vm.push(vm.rt.Heap.Alloc(&ObjIterator{coro: vm.rt.Heap.Get(v).(*ObjCoroutine)}))
	case runtime.TagString:
		vm.push(vm.rt.Heap.Alloc(&ObjIterator{str: vm.rt.StringOf(v)}))
	case runtime.TagJson:
		j := vm.rt.Heap.Get(v).(*runtime.ObjJson)
		keys := make([]string, len(j.Keys))
		copy(keys, j.Keys)
		vm.push(vm.rt.Heap.Alloc(&ObjIterator{keys: keys}))
	default:
		return fmt.Errorf("%s is not iterable", vm.rt.TypeName(v))
	}
	return nil
}

// iterNext pushes the iterator's next value, or jumps past the loop when
// the source is exhausted. The iterator itself stays on the stack.
func (vm *VM) iterNext() error {
	offset := vm.readS16()
	top := vm.peek(0)
	if top.TagOf() != runtime.TagIterator {
		return fmt.Errorf("expected an iterator, got %s", vm.rt.TypeName(top))
	}
	it := vm.rt.Heap.Get(top).(*ObjIterator)

	switch {
	case it.list != nil:
		if it.index >= len(it.list.Elements) {
			vm.frame().ip += offset
			return nil
		}
		vm.push(it.list.Elements[it.index])
		it.index++
	case it.coro != nil:
		if it.coro.status == CoroDead {
			vm.frame().ip += offset
			return nil
		}
		result, dead, err := vm.doResume(it.coro, runtime.NullValue, false)
		if err != nil {
			return err
		}
		if dead {
			vm.frame().ip += offset
			return nil
		}
		vm.push(result)
	case it.keys != nil:
		if it.index >= len(it.keys) {
			vm.frame().ip += offset
			return nil
		}
		vm.push(vm.rt.InternString(it.keys[it.index]))
		it.index++
	default:
		runes := []rune(it.str)
		if it.index >= len(runes) {
			vm.frame().ip += offset
			return nil
		}
		vm.push(vm.rt.InternString(string(runes[it.index])))
		it.index++
	}
	return nil
}

func (vm *VM) indexGet() error {
	idx := vm.pop()
	obj := vm.pop()
	switch obj.TagOf() {
	case runtime.TagList:
		list := vm.rt.Heap.Get(obj).(*runtime.ObjList)
		if !idx.IsInt() {
			return fmt.Errorf("list index must be an int, got %s", vm.rt.TypeName(idx))
		}
		i := idx.AsInt()
		if i < 0 || i >= int64(len(list.Elements)) {
			return fmt.Errorf("list index %d out of bounds (len %d)", i, len(list.Elements))
		}
		vm.push(list.Elements[i])
	case runtime.TagString:
		s := []rune(vm.rt.StringOf(obj))
		if !idx.IsInt() {
			return fmt.Errorf("string index must be an int, got %s", vm.rt.TypeName(idx))
		}
		i := idx.AsInt()
		if i < 0 || i >= int64(len(s)) {
			return fmt.Errorf("string index %d out of bounds (len %d)", i, len(s))
		}
		vm.push(vm.rt.InternString(string(s[i])))
	case runtime.TagJson:
		if idx.TagOf() != runtime.TagString {
			return fmt.Errorf("json key must be a string, got %s", vm.rt.TypeName(idx))
		}
		vm.push(vm.rt.Heap.Get(obj).(*runtime.ObjJson).Get(vm.rt.StringOf(idx)))
	case runtime.TagStruct:
		shape := vm.rt.Heap.Get(obj).(*runtime.ObjStruct).Shape
		handler := shape.Operator(config.OpGet)
		if !handler.IsValid() {
			return fmt.Errorf("%s does not define operator get", shape.Name)
		}
		result, err := vm.callSync(handler, []runtime.Value{obj, idx})
		if err != nil {
			return err
		}
		vm.push(result)
	default:
		return fmt.Errorf("%s is not indexable", vm.rt.TypeName(obj))
	}
	return nil
}

func (vm *VM) indexSet() error {
	val := vm.pop()
	idx := vm.pop()
	obj := vm.pop()
	switch obj.TagOf() {
	case runtime.TagList:
		list := vm.rt.Heap.Get(obj).(*runtime.ObjList)
		if !idx.IsInt() {
			return fmt.Errorf("list index must be an int, got %s", vm.rt.TypeName(idx))
		}
		i := idx.AsInt()
		if i < 0 || i >= int64(len(list.Elements)) {
			return fmt.Errorf("list index %d out of bounds (len %d)", i, len(list.Elements))
		}
		list.Elements[i] = val
	case runtime.TagJson:
		if idx.TagOf() != runtime.TagString {
			return fmt.Errorf("json key must be a string, got %s", vm.rt.TypeName(idx))
		}
		vm.rt.Heap.Get(obj).(*runtime.ObjJson).Set(vm.rt.StringOf(idx), val)
	case runtime.TagStruct:
		shape := vm.rt.Heap.Get(obj).(*runtime.ObjStruct).Shape
		handler := shape.Operator(config.OpSet)
		if !handler.IsValid() {
			return fmt.Errorf("%s does not define operator set", shape.Name)
		}
		if _, err := vm.callSync(handler, []runtime.Value{obj, idx, val}); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%s does not support index assignment", vm.rt.TypeName(obj))
	}
	vm.push(val)
	return nil
}
