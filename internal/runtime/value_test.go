package runtime

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntValRoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 7, -8, 8, -9, 1000, -1000, smallIntMax, smallIntMin}
	for _, v := range values {
		val := IntVal(v)
		assert.True(t, val.IsInt(), "IntVal(%d) should stay an int", v)
		assert.Equal(t, v, val.AsInt(), "round trip of %d", v)
		assert.False(t, val.IsFloat())
		assert.False(t, val.IsObj())
	}
}

func TestTinyIntUsesTinyTag(t *testing.T) {
	for v := int64(-8); v <= 7; v++ {
		assert.Equal(t, TagTinyInt, IntVal(v).TagOf(), "value %d", v)
	}
	assert.Equal(t, TagSmallInt, IntVal(8).TagOf())
	assert.Equal(t, TagSmallInt, IntVal(-9).TagOf())
}

func TestIntValPromotesToFloatBeyond31Bits(t *testing.T) {
	big := int64(smallIntMax) + 1
	val := IntVal(big)
	assert.True(t, val.IsFloat())
	assert.Equal(t, float64(big), val.AsFloat())
}

func TestIntValCanonical(t *testing.T) {
	// Identical integers must encode to identical bit patterns so bitwise
	// equality holds.
	assert.Equal(t, IntVal(5), IntVal(5))
	assert.Equal(t, IntVal(-3), IntVal(-3))
	assert.Equal(t, IntVal(100000), IntVal(100000))
}

func TestFloatValRoundTrip(t *testing.T) {
	values := []float64{0, 1.5, -2.25, math.Pi, math.MaxFloat64, math.SmallestNonzeroFloat64, math.Inf(1), math.Inf(-1)}
	for _, v := range values {
		val := FloatVal(v)
		assert.True(t, val.IsFloat())
		assert.Equal(t, v, val.AsFloat())
	}
}

func TestFloatNaNDoesNotCollideWithBoxes(t *testing.T) {
	val := FloatVal(math.NaN())
	assert.True(t, val.IsFloat())
	assert.True(t, math.IsNaN(val.AsFloat()))
	assert.Equal(t, TagFloat, val.TagOf())
}

func TestSingletons(t *testing.T) {
	assert.True(t, NullValue.IsNull())
	assert.True(t, TrueValue.IsBool())
	assert.True(t, TrueValue.AsBool())
	assert.False(t, FalseValue.AsBool())
	assert.NotEqual(t, TrueValue, FalseValue)
	assert.Equal(t, TrueValue, BoolVal(true))
	assert.Equal(t, FalseValue, BoolVal(false))
	assert.Equal(t, TagNull, NullValue.TagOf())
}

func TestEveryValueHasExactlyOneTag(t *testing.T) {
	cases := map[Tag]Value{
		TagNull:     NullValue,
		TagTrue:     TrueValue,
		TagFalse:    FalseValue,
		TagTinyInt:  IntVal(3),
		TagSmallInt: IntVal(300),
		TagFloat:    FloatVal(1.5),
	}
	for tag, v := range cases {
		assert.Equal(t, tag, v.TagOf())
	}
}

func TestHeapHandles(t *testing.T) {
	h := NewHeap()
	v := h.Alloc(&ObjString{Value: "hi"})
	assert.True(t, v.IsObj())
	assert.Equal(t, TagString, v.TagOf())
	assert.Equal(t, "hi", h.Get(v).(*ObjString).Value)

	v2 := h.Alloc(&ObjList{})
	assert.Equal(t, TagList, v2.TagOf())
	assert.Equal(t, uint64(1), v2.Handle())
	assert.Equal(t, 2, h.Size())
}

func TestInternerSharesHandles(t *testing.T) {
	rt := NewRuntime(&bytes.Buffer{})
	a := rt.InternString("hello")
	b := rt.InternString("hello")
	c := rt.InternString("world")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, "hello", rt.StringOf(a))
}

func TestRuntimeEqual(t *testing.T) {
	rt := NewRuntime(&bytes.Buffer{})

	assert.True(t, rt.Equal(NullValue, NullValue))
	assert.True(t, rt.Equal(IntVal(5), IntVal(5)))
	assert.False(t, rt.Equal(IntVal(5), IntVal(6)))
	assert.False(t, rt.Equal(IntVal(1), FloatVal(1))) // distinct numeric kinds
	assert.True(t, rt.Equal(FloatVal(2.5), FloatVal(2.5)))
	assert.True(t, rt.Equal(rt.InternString("x"), rt.InternString("x")))

	l1 := rt.NewList([]Value{IntVal(1), IntVal(2)})
	l2 := rt.NewList([]Value{IntVal(1), IntVal(2)})
	l3 := rt.NewList([]Value{IntVal(1)})
	assert.True(t, rt.Equal(l1, l2))
	assert.False(t, rt.Equal(l1, l3))

	j1, v1 := rt.NewJsonValue()
	j1.Set("a", IntVal(1))
	j2, v2 := rt.NewJsonValue()
	j2.Set("a", IntVal(1))
	assert.True(t, rt.Equal(v1, v2))
	j2.Set("b", IntVal(2))
	assert.False(t, rt.Equal(v1, v2))
}

func TestDisplay(t *testing.T) {
	rt := NewRuntime(&bytes.Buffer{})

	assert.Equal(t, "42", rt.Display(IntVal(42)))
	assert.Equal(t, "true", rt.Display(TrueValue))
	assert.Equal(t, "null", rt.Display(NullValue))
	assert.Equal(t, "1.5", rt.Display(FloatVal(1.5)))
	assert.Equal(t, "plain", rt.Display(rt.InternString("plain")))

	list := rt.NewList([]Value{IntVal(1), rt.InternString("s")})
	assert.Equal(t, `[1, "s"]`, rt.Display(list))

	j, jv := rt.NewJsonValue()
	j.Set("k", IntVal(7))
	assert.Equal(t, `{"k": 7}`, rt.Display(jv))
}

func TestJsonInsertionOrder(t *testing.T) {
	j := NewJson()
	j.Set("b", IntVal(1))
	j.Set("a", IntVal(2))
	j.Set("b", IntVal(3)) // overwrite keeps position
	assert.Equal(t, []string{"b", "a"}, j.Keys)
	assert.Equal(t, IntVal(3), j.Get("b"))
	assert.Equal(t, NullValue, j.Get("missing"))
	assert.Equal(t, 2, j.Len())
}

func TestShapeTable(t *testing.T) {
	st := NewShapeTable()

	p := st.New("P", []string{"x", "y"}, nil)
	q := st.New("Q", []string{"z"}, nil)
	assert.Equal(t, UserShapeBase, p.ID)
	assert.Equal(t, UserShapeBase+1, q.ID)

	got, ok := st.Lookup("P")
	require.True(t, ok)
	assert.Same(t, p, got)
	assert.Same(t, p, st.Get(p.ID))

	assert.Equal(t, ShapeInt, BuiltinShapeID(TagSmallInt))
	assert.Equal(t, ShapeInt, BuiltinShapeID(TagTinyInt))
	assert.Equal(t, ShapeBool, BuiltinShapeID(TagTrue))
	assert.Equal(t, ShapeBool, BuiltinShapeID(TagFalse))
	assert.Equal(t, "int", st.Builtin(TagSmallInt).Name)
}

func TestShapeMethodAndOperatorTables(t *testing.T) {
	st := NewShapeTable()
	s := st.New("S", nil, nil)

	_, ok := s.Method("m")
	assert.False(t, ok)
	s.SetMethod("m", IntVal(1)) // any value works for the table test
	got, ok := s.Method("m")
	require.True(t, ok)
	assert.Equal(t, IntVal(1), got)
	assert.Contains(t, s.MethodNames(), "m")
}

func TestTypeNames(t *testing.T) {
	rt := NewRuntime(&bytes.Buffer{})
	assert.Equal(t, "int", rt.TypeName(IntVal(1)))
	assert.Equal(t, "float", rt.TypeName(FloatVal(1)))
	assert.Equal(t, "bool", rt.TypeName(TrueValue))
	assert.Equal(t, "null", rt.TypeName(NullValue))
	assert.Equal(t, "string", rt.TypeName(rt.InternString("s")))
	assert.Equal(t, "list", rt.TypeName(rt.NewList(nil)))
}
