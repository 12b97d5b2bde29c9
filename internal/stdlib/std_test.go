package stdlib

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyml2003/kaubo/internal/runtime"
)

func newInstalled(t *testing.T) (*runtime.Runtime, *runtime.ObjModule, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	rt := runtime.NewRuntime(buf)
	shape := DeclareShape(rt.Shapes)
	modVal := Install(rt, shape)
	mod := rt.Heap.Get(modVal).(*runtime.ObjModule)
	return rt, mod, buf
}

func nativeAt(t *testing.T, rt *runtime.Runtime, mod *runtime.ObjModule, slot int) *runtime.ObjNative {
	t.Helper()
	v := mod.Slots[slot]
	require.Equal(t, runtime.TagNative, v.TagOf())
	return rt.Heap.Get(v).(*runtime.ObjNative)
}

func TestSlotAssignmentsAreFixed(t *testing.T) {
	members := Members()
	wantOrder := []string{
		"print", "assert", "type", "to_string", "sqrt", "sin", "cos",
		"floor", "ceil", "PI", "E", "create_coroutine", "resume",
		"coroutine_status", "len", "range",
	}
	require.Len(t, members, len(wantOrder))
	for i, name := range wantOrder {
		assert.Equal(t, name, members[i].Name, "slot %d", i)
	}
}

func TestStdShapeReservedID(t *testing.T) {
	rt := runtime.NewRuntime(&bytes.Buffer{})
	shape := DeclareShape(rt.Shapes)
	assert.Equal(t, runtime.ShapeStd, shape.ID)
	assert.Less(t, shape.ID, runtime.UserShapeBase)
}

func TestPrintWritesDisplayForm(t *testing.T) {
	rt, mod, buf := newInstalled(t)
	print := nativeAt(t, rt, mod, 0)
	_, err := print.Fn(rt, []runtime.Value{runtime.IntVal(42)})
	require.NoError(t, err)
	assert.Equal(t, "42\n", buf.String())
}

func TestAssert(t *testing.T) {
	rt, mod, _ := newInstalled(t)
	doAssert := nativeAt(t, rt, mod, 1)

	_, err := doAssert.Fn(rt, []runtime.Value{runtime.TrueValue})
	assert.NoError(t, err)

	_, err = doAssert.Fn(rt, []runtime.Value{runtime.FalseValue})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assertion failed")

	_, err = doAssert.Fn(rt, []runtime.Value{runtime.NullValue, rt.InternString("custom")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "custom")
}

func TestTypeNative(t *testing.T) {
	rt, mod, _ := newInstalled(t)
	typeFn := nativeAt(t, rt, mod, 2)

	cases := map[string]runtime.Value{
		"int":    runtime.IntVal(1),
		"float":  runtime.FloatVal(1.5),
		"bool":   runtime.TrueValue,
		"null":   runtime.NullValue,
		"string": rt.InternString("s"),
		"list":   rt.NewList(nil),
	}
	for want, v := range cases {
		got, err := typeFn.Fn(rt, []runtime.Value{v})
		require.NoError(t, err)
		assert.Equal(t, want, rt.StringOf(got))
	}
}

func TestToString(t *testing.T) {
	rt, mod, _ := newInstalled(t)
	toString := nativeAt(t, rt, mod, 3)

	cases := map[string]runtime.Value{
		"42":   runtime.IntVal(42),
		"true": runtime.TrueValue,
		"null": runtime.NullValue,
	}
	for want, v := range cases {
		got, err := toString.Fn(rt, []runtime.Value{v})
		require.NoError(t, err)
		assert.Equal(t, want, rt.StringOf(got))
	}
}

func TestMathNatives(t *testing.T) {
	rt, mod, _ := newInstalled(t)

	sqrt := nativeAt(t, rt, mod, 4)
	got, err := sqrt.Fn(rt, []runtime.Value{runtime.FloatVal(16)})
	require.NoError(t, err)
	assert.Equal(t, 4.0, got.AsFloat())

	_, err = sqrt.Fn(rt, []runtime.Value{runtime.IntVal(16)})
	assert.Error(t, err, "sqrt requires a float argument")

	floor := nativeAt(t, rt, mod, 7)
	got, err = floor.Fn(rt, []runtime.Value{runtime.FloatVal(1.9)})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.AsFloat())

	assert.InDelta(t, 3.14159, mod.Slots[9].AsFloat(), 0.0001)  // PI
	assert.InDelta(t, 2.71828, mod.Slots[10].AsFloat(), 0.0001) // E
}

func TestLenNative(t *testing.T) {
	rt, mod, _ := newInstalled(t)
	lenFn := nativeAt(t, rt, mod, 14)

	got, err := lenFn.Fn(rt, []runtime.Value{rt.NewList([]runtime.Value{runtime.IntVal(1), runtime.IntVal(2)})})
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.AsInt())

	got, err = lenFn.Fn(rt, []runtime.Value{rt.InternString("hello")})
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.AsInt())

	_, err = lenFn.Fn(rt, []runtime.Value{runtime.IntVal(1)})
	assert.Error(t, err)
}

func TestRangeNative(t *testing.T) {
	rt, mod, _ := newInstalled(t)
	rangeFn := nativeAt(t, rt, mod, 15)

	ints := func(v runtime.Value) []int64 {
		list := rt.Heap.Get(v).(*runtime.ObjList)
		out := make([]int64, len(list.Elements))
		for i, e := range list.Elements {
			out[i] = e.AsInt()
		}
		return out
	}

	got, err := rangeFn.Fn(rt, []runtime.Value{runtime.IntVal(4)})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 2, 3}, ints(got))

	got, err = rangeFn.Fn(rt, []runtime.Value{runtime.IntVal(2), runtime.IntVal(5)})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 4}, ints(got))

	got, err = rangeFn.Fn(rt, []runtime.Value{runtime.IntVal(6), runtime.IntVal(0), runtime.IntVal(-2)})
	require.NoError(t, err)
	assert.Equal(t, []int64{6, 4, 2}, ints(got))

	_, err = rangeFn.Fn(rt, []runtime.Value{runtime.IntVal(1), runtime.IntVal(2), runtime.IntVal(0)})
	assert.Error(t, err, "zero step is rejected")
}

func TestCoroutineNativesAreHooked(t *testing.T) {
	rt, mod, _ := newInstalled(t)
	for slot, hook := range map[int]runtime.VMHook{
		11: runtime.HookCreateCoroutine,
		12: runtime.HookResume,
		13: runtime.HookCoroutineStatus,
	} {
		native := nativeAt(t, rt, mod, slot)
		assert.Equal(t, hook, native.Hook, "slot %d", slot)
	}
}

func TestVariadicArities(t *testing.T) {
	rt, mod, _ := newInstalled(t)
	assert.Equal(t, runtime.VariadicArity, nativeAt(t, rt, mod, 1).Arity)  // assert
	assert.Equal(t, runtime.VariadicArity, nativeAt(t, rt, mod, 12).Arity) // resume
	assert.Equal(t, runtime.VariadicArity, nativeAt(t, rt, mod, 15).Arity) // range
	assert.Equal(t, byte(1), nativeAt(t, rt, mod, 0).Arity)                // print
}

func TestModuleRegistered(t *testing.T) {
	rt, _, _ := newInstalled(t)
	_, ok := rt.Module(ModuleName)
	assert.True(t, ok)
}
