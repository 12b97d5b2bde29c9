package vm

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/nyml2003/kaubo/internal/config"
	"github.com/nyml2003/kaubo/internal/diagnostics"
	"github.com/nyml2003/kaubo/internal/logging"
	"github.com/nyml2003/kaubo/internal/runtime"
	"github.com/nyml2003/kaubo/internal/token"
)

// VM executes compiled chunks against a value stack, a call-frame stack and
// a list of open upvalues. Coroutines own their own execution states; the
// VM switches between them by swapping its current-state pointer.
type VM struct {
	rt  *runtime.Runtime
	cfg config.RunConfig

	main execState
	cur  *execState

	// resumeChain tracks the active coroutine nesting, innermost last.
	resumeChain []*ObjCoroutine

	consts map[*Chunk][]runtime.Value

	yieldFlag bool
	yieldVal  runtime.Value

	halted bool
	result runtime.Value

	// ID tags this instance's log events and diagnostics.
	ID string
}

// New creates a VM over a shared runtime.
func New(rt *runtime.Runtime, cfg config.RunConfig) *VM {
	vm := &VM{
		rt:     rt,
		cfg:    cfg,
		main:   newExecState(cfg.VM.InitialStackSize, cfg.VM.InitialFramesCapacity),
		consts: make(map[*Chunk][]runtime.Value),
		ID:     uuid.NewString(),
	}
	vm.cur = &vm.main
	// Natives and Display dispatch user operators (str, len) through the VM.
	rt.Dispatch = vm.callSync
	return vm
}

// Run executes a compiled script function and returns the top-of-stack
// value (or null).
func (vm *VM) Run(fn *Function) (runtime.Value, error) {
	log := logging.Phase(logging.PhaseVM)
	if log.Enabled() {
		log.Debug("run", "vm_id", vm.ID, "code_bytes", len(fn.Chunk.Code))
	}
	resetCaches(fn, make(map[*Chunk]bool))

	closure := &ObjClosure{Fn: fn}
	vm.push(vm.rt.Heap.Alloc(closure))
	if err := vm.call(closure, 0); err != nil {
		return runtime.NullValue, vm.runtimeError(err)
	}
	for !vm.halted {
		if err := vm.step(); err != nil {
			return runtime.NullValue, vm.runtimeError(err)
		}
	}
	if log.Enabled() {
		log.Debug("done", "vm_id", vm.ID, "heap_objects", vm.rt.Heap.Size())
	}
	return vm.result, nil
}

// runtimeError logs a VM failure and wraps it as a phase-tagged diagnostic.
func (vm *VM) runtimeError(err error) error {
	log := logging.Phase(logging.PhaseVM)
	if log.Enabled() {
		log.Error("runtime error", "vm_id", vm.ID, "err", err.Error())
	}
	return diagnostics.Wrap(diagnostics.PhaseVM, token.Token{}, err)
}

// resetCaches zeroes every inline-cache slot reachable from fn. Cached
// handlers are heap handles of a previous execution's runtime and must not
// leak into a new one.
func resetCaches(fn *Function, seen map[*Chunk]bool) {
	if seen[fn.Chunk] {
		return
	}
	seen[fn.Chunk] = true
	for i := range fn.Chunk.InlineCaches {
		fn.Chunk.InlineCaches[i] = CacheSlot{}
	}
	for _, k := range fn.Chunk.Constants {
		if fc, ok := k.(FuncConstant); ok {
			resetCaches(fc.Fn, seen)
		}
	}
}

// realize converts a chunk's compile-time constant pool into runtime
// values, memoized per chunk.
func (vm *VM) realize(c *Chunk) []runtime.Value {
	if vals, ok := vm.consts[c]; ok {
		return vals
	}
	vals := make([]runtime.Value, len(c.Constants))
	for i, k := range c.Constants {
		switch kc := k.(type) {
		case IntConstant:
			vals[i] = runtime.IntVal(kc.Value)
		case FloatConstant:
			vals[i] = runtime.FloatVal(kc.Value)
		case StringConstant:
			vals[i] = vm.rt.InternString(kc.Value)
		case FuncConstant:
			vals[i] = vm.rt.Heap.Alloc(kc.Fn)
		}
	}
	vm.consts[c] = vals
	return vals
}

// --- stack helpers (current execution state) ---

func (vm *VM) push(v runtime.Value) {
	st := vm.cur
	if st.sp == len(st.stack) {
		st.stack = append(st.stack, make([]runtime.Value, len(st.stack)+8)...)
	}
	st.stack[st.sp] = v
	st.sp++
}

// checkStackLimit enforces the byte ceiling on the value stack; it is
// called at frame entry where growth concentrates.
func (vm *VM) checkStackLimit() error {
	limit := vm.cfg.Limits.MaxStackSize
	if limit > 0 && vm.cur.sp*8 > limit {
		return fmt.Errorf("stack overflow: value stack exceeds %d bytes", limit)
	}
	return nil
}

func (vm *VM) pop() runtime.Value {
	st := vm.cur
	st.sp--
	return st.stack[st.sp]
}

func (vm *VM) peek(distance int) runtime.Value {
	st := vm.cur
	return st.stack[st.sp-1-distance]
}

func (vm *VM) frame() *frame {
	st := vm.cur
	return &st.frames[len(st.frames)-1]
}

func (vm *VM) readByte() byte {
	f := vm.frame()
	b := f.closure.Fn.Chunk.Code[f.ip]
	f.ip++
	return b
}

func (vm *VM) readU16() uint16 {
	hi := vm.readByte()
	lo := vm.readByte()
	return uint16(hi)<<8 | uint16(lo)
}

func (vm *VM) readS16() int {
	return int(int16(vm.readU16()))
}

// --- calls ---

func (vm *VM) call(closure *ObjClosure, argc int) error {
	if closure.Fn.Arity != argc {
		return fmt.Errorf("wrong number of arguments: expected %d, got %d", closure.Fn.Arity, argc)
	}
	maxDepth := vm.cfg.Limits.MaxRecursionDepth
	if maxDepth > 0 && len(vm.cur.frames) >= maxDepth {
		return fmt.Errorf("stack overflow: recursion depth exceeds %d", maxDepth)
	}
	if err := vm.checkStackLimit(); err != nil {
		return err
	}
	vm.cur.frames = append(vm.cur.frames, frame{
		closure: closure,
		consts:  vm.realize(closure.Fn.Chunk),
		base:    vm.cur.sp - argc,
	})
	return nil
}

func (vm *VM) callValue(callee runtime.Value, argc int) error {
	switch callee.TagOf() {
	case runtime.TagClosure:
		return vm.call(vm.rt.Heap.Get(callee).(*ObjClosure), argc)
	case runtime.TagNative:
		return vm.callNative(vm.rt.Heap.Get(callee).(*runtime.ObjNative), argc)
	case runtime.TagStruct:
		obj := vm.rt.Heap.Get(callee).(*runtime.ObjStruct)
		handler := obj.Shape.Operator(config.OpCall)
		if !handler.IsValid() {
			return fmt.Errorf("%s is not callable", vm.rt.TypeName(callee))
		}
		args := make([]runtime.Value, argc+1)
		args[0] = callee
		copy(args[1:], vm.cur.stack[vm.cur.sp-argc:vm.cur.sp])
		vm.cur.sp -= argc + 1
		result, err := vm.callSync(handler, args)
		if err != nil {
			return err
		}
		vm.push(result)
		return nil
	default:
		return fmt.Errorf("can only call functions, got %s", vm.rt.TypeName(callee))
	}
}

func (vm *VM) callNative(native *runtime.ObjNative, argc int) error {
	if native.Arity != runtime.VariadicArity && int(native.Arity) != argc {
		return fmt.Errorf("%s expects %d arguments, got %d", native.Name, native.Arity, argc)
	}
	args := vm.cur.stack[vm.cur.sp-argc : vm.cur.sp]

	switch native.Hook {
	case runtime.HookCreateCoroutine:
		if argc != 1 {
			return fmt.Errorf("create_coroutine expects 1 argument, got %d", argc)
		}
		co, err := vm.createCoroutine(args[0])
		if err != nil {
			return err
		}
		vm.cur.sp -= argc + 1
		vm.push(co)
		return nil
	case runtime.HookResume:
		if argc < 1 || argc > 2 {
			return fmt.Errorf("resume expects 1 or 2 arguments, got %d", argc)
		}
		co, err := vm.resolveCoroutine(args[0])
		if err != nil {
			return err
		}
		var arg runtime.Value
		hasArg := argc == 2
		if hasArg {
			arg = args[1]
		}
		vm.cur.sp -= argc + 1
		result, _, err := vm.doResume(co, arg, hasArg)
		if err != nil {
			return err
		}
		vm.push(result)
		return nil
	case runtime.HookCoroutineStatus:
		if argc != 1 {
			return fmt.Errorf("coroutine_status expects 1 argument, got %d", argc)
		}
		status, err := vm.coroutineStatus(args[0])
		if err != nil {
			return err
		}
		vm.cur.sp -= argc + 1
		vm.push(status)
		return nil
	}

	result, err := native.Fn(vm.rt, args)
	if err != nil {
		return err
	}
	vm.cur.sp -= argc + 1
	vm.push(result)
	return nil
}

// callSync invokes a callable and runs it to completion before returning,
// used by operator dispatch where the result is needed mid-instruction.
func (vm *VM) callSync(callee runtime.Value, args []runtime.Value) (runtime.Value, error) {
	if callee.TagOf() == runtime.TagNative {
		native := vm.rt.Heap.Get(callee).(*runtime.ObjNative)
		if native.Hook != runtime.HookNone {
			return runtime.NullValue, fmt.Errorf("%s cannot be used as an operator handler", native.Name)
		}
		return native.Fn(vm.rt, args)
	}
	if callee.TagOf() != runtime.TagClosure {
		return runtime.NullValue, fmt.Errorf("operator handler is not a function")
	}
	vm.push(callee)
	for _, a := range args {
		vm.push(a)
	}
	depth := len(vm.cur.frames)
	if err := vm.call(vm.rt.Heap.Get(callee).(*ObjClosure), len(args)); err != nil {
		return runtime.NullValue, err
	}
	for len(vm.cur.frames) > depth {
		if vm.yieldFlag {
			return runtime.NullValue, fmt.Errorf("cannot yield across an operator handler")
		}
		if err := vm.step(); err != nil {
			return runtime.NullValue, err
		}
	}
	return vm.pop(), nil
}

// --- upvalues ---

// captureUpvalue reuses an open upvalue for slot or creates one, keeping
// the open list sorted by descending location.
func (vm *VM) captureUpvalue(slot int) *ObjUpvalue {
	st := vm.cur
	for i, uv := range st.openUpvalues {
		if uv.Location == slot {
			return uv
		}
		if uv.Location < slot {
			created := &ObjUpvalue{owner: st, Location: slot}
			st.openUpvalues = append(st.openUpvalues, nil)
			copy(st.openUpvalues[i+1:], st.openUpvalues[i:])
			st.openUpvalues[i] = created
			return created
		}
	}
	created := &ObjUpvalue{owner: st, Location: slot}
	st.openUpvalues = append(st.openUpvalues, created)
	return created
}

// closeUpvalues closes every open upvalue at or above slot: the stack
// value moves into the upvalue's owned storage. This is what keeps captured
// variables alive after the owning frame returns.
func (vm *VM) closeUpvalues(slot int) {
	st := vm.cur
	kept := st.openUpvalues[:0]
	for _, uv := range st.openUpvalues {
		if uv.Location >= slot {
			uv.Closed = st.stack[uv.Location]
			uv.Location = -1
			continue
		}
		kept = append(kept, uv)
	}
	st.openUpvalues = kept
}

// --- coroutines ---

func (vm *VM) createCoroutine(v runtime.Value) (runtime.Value, error) {
	if v.TagOf() != runtime.TagClosure {
		return runtime.NullValue, fmt.Errorf("create_coroutine expects a function, got %s", vm.rt.TypeName(v))
	}
	closure := vm.rt.Heap.Get(v).(*ObjClosure)
	if closure.Fn.Arity != 0 {
		return runtime.NullValue, fmt.Errorf("coroutine entry function must take no arguments")
	}
	co := &ObjCoroutine{
		state:  newExecState(vm.cfg.Coroutine.InitialStackSize, vm.cfg.Coroutine.InitialFramesCapacity),
		status: CoroSuspended,
	}
	co.state.stack[0] = v
	co.state.sp = 1
	co.state.frames = append(co.state.frames, frame{
		closure: closure,
		consts:  vm.realize(closure.Fn.Chunk),
		base:    1,
	})
	return vm.rt.Heap.Alloc(co), nil
}

func (vm *VM) coroutineStatus(v runtime.Value) (runtime.Value, error) {
	if v.TagOf() != runtime.TagCoroutine {
		return runtime.NullValue, fmt.Errorf("coroutine_status expects a coroutine, got %s", vm.rt.TypeName(v))
	}
	co := vm.rt.Heap.Get(v).(*ObjCoroutine)
	return runtime.IntVal(int64(co.Status())), nil
}

// resolveCoroutine unwraps a coroutine handle.
func (vm *VM) resolveCoroutine(v runtime.Value) (*ObjCoroutine, error) {
	if v.TagOf() != runtime.TagCoroutine {
		return nil, fmt.Errorf("expected a coroutine, got %s", vm.rt.TypeName(v))
	}
	return vm.rt.Heap.Get(v).(*ObjCoroutine), nil
}

// doResume switches execution into a suspended coroutine and runs it until
// it yields or its entry closure returns. It returns the yielded (or
// returned) value and whether the coroutine is now dead.
func (vm *VM) doResume(co *ObjCoroutine, arg runtime.Value, hasArg bool) (runtime.Value, bool, error) {
	if co.status != CoroSuspended {
		return runtime.NullValue, false, fmt.Errorf("cannot resume a coroutine that is not suspended")
	}

	prev := vm.cur
	vm.resumeChain = append(vm.resumeChain, co)
	co.status = CoroRunning
	vm.cur = &co.state

	if !co.started {
		co.started = true
	} else if hasArg {
		// The delivered value becomes the result of the Yield expression.
		vm.push(arg)
	} else {
		vm.push(runtime.NullValue)
	}

	restore := func() {
		vm.cur = prev
		vm.resumeChain = vm.resumeChain[:len(vm.resumeChain)-1]
	}

	for {
		if vm.yieldFlag {
			vm.yieldFlag = false
			co.status = CoroSuspended
			restore()
			return vm.yieldVal, false, nil
		}
		if co.status == CoroDead {
			restore()
			return co.result, true, nil
		}
		if err := vm.step(); err != nil {
			co.status = CoroDead
			restore()
			return runtime.NullValue, true, err
		}
	}
}
