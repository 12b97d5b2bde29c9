package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkWriteAndLineTable(t *testing.T) {
	c := NewChunk()
	c.WriteOp(OpLoadNull, 1)
	c.WriteOp(OpPop, 1)
	c.WriteOp(OpLoadTrue, 2)
	c.WriteOp(OpReturn, 4)

	assert.Equal(t, []byte{byte(OpLoadNull), byte(OpPop), byte(OpLoadTrue), byte(OpReturn)}, c.Code)
	assert.Equal(t, 1, c.LineAt(0))
	assert.Equal(t, 1, c.LineAt(1))
	assert.Equal(t, 2, c.LineAt(2))
	assert.Equal(t, 4, c.LineAt(3))
}

func TestChunkOmitsZeroLines(t *testing.T) {
	c := NewChunk()
	c.WriteOp(OpLoadNull, 0)
	c.WriteOp(OpReturn, 0)
	assert.Empty(t, c.Lines)
	assert.Equal(t, 0, c.LineAt(1))
}

func TestWriteU16BigEndian(t *testing.T) {
	c := NewChunk()
	c.WriteU16(0x1234, 0)
	assert.Equal(t, []byte{0x12, 0x34}, c.Code)
}

func TestAddConstantAndCacheSlots(t *testing.T) {
	c := NewChunk()
	assert.Equal(t, 0, c.AddConstant(IntConstant{Value: 1}))
	assert.Equal(t, 1, c.AddConstant(StringConstant{Value: "s"}))
	assert.Equal(t, 0, c.AddCacheSlot())
	assert.Equal(t, 1, c.AddCacheSlot())
	assert.Len(t, c.InlineCaches, 2)
	assert.Zero(t, c.InlineCaches[0].Key)
}

func TestOpcodeNames(t *testing.T) {
	assert.Equal(t, "Add", OpAdd.String())
	assert.Equal(t, "LoadConst3", (OpLoadConst0 + 3).String())
	assert.Equal(t, "LoadLocal7", (OpLoadLocal0 + 7).String())
	assert.Equal(t, "StoreLocal0", OpStoreLocal0.String())
	assert.Equal(t, "Invalid", OpInvalid.String())
}
