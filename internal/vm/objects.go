package vm

import (
	"github.com/nyml2003/kaubo/internal/runtime"
)

// Kind makes compiled functions heap objects.
func (*Function) Kind() runtime.Tag { return runtime.TagFunction }

// ObjClosure binds a function to the upvalues it captured.
type ObjClosure struct {
	Fn       *Function
	Upvalues []*ObjUpvalue
}

func (*ObjClosure) Kind() runtime.Tag { return runtime.TagClosure }

// ObjUpvalue is a captured variable cell. While open it points at a live
// stack slot of its owning execution state; when that frame returns the
// slot's value moves into Closed and Location becomes -1.
type ObjUpvalue struct {
	owner    *execState
	Location int
	Closed   runtime.Value
}

func (*ObjUpvalue) Kind() runtime.Tag { return runtime.TagUpvalue }

func (u *ObjUpvalue) get() runtime.Value {
	if u.Location >= 0 {
		return u.owner.stack[u.Location]
	}
	return u.Closed
}

func (u *ObjUpvalue) set(v runtime.Value) {
	if u.Location >= 0 {
		u.owner.stack[u.Location] = v
		return
	}
	u.Closed = v
}

// Coroutine states.
const (
	CoroSuspended byte = iota
	CoroRunning
	CoroDead
)

// ObjCoroutine owns dedicated value and call stacks; switching in and out
// of it swaps the VM's current execution-state pointer.
type ObjCoroutine struct {
	state   execState
	status  byte
	started bool
	result  runtime.Value // the entry closure's return value once dead
}

func (*ObjCoroutine) Kind() runtime.Tag { return runtime.TagCoroutine }

// Status reports the coroutine lifecycle state (0 suspended, 1 running,
// 2 dead).
func (co *ObjCoroutine) Status() byte { return co.status }

// ObjIterator wraps an iteration source for the for-in protocol.
type ObjIterator struct {
	// exactly one of the following drives the iterator
	list  *runtime.ObjList
	coro  *ObjCoroutine
	str   string
	keys  []string // json key iteration
	index int
}

func (*ObjIterator) Kind() runtime.Tag { return runtime.TagIterator }

// execState is one execution context: the main program or one coroutine.
type execState struct {
	stack        []runtime.Value
	sp           int
	frames       []frame
	openUpvalues []*ObjUpvalue
}

// frame is one call activation.
type frame struct {
	closure *ObjClosure
	consts  []runtime.Value
	ip      int
	base    int
}

func newExecState(stackSize, framesCap int) execState {
	if stackSize <= 0 {
		stackSize = 64
	}
	if framesCap <= 0 {
		framesCap = 8
	}
	return execState{
		stack:  make([]runtime.Value, stackSize),
		frames: make([]frame, 0, framesCap),
	}
}
