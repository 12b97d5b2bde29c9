package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.Compiler.EmitDebugInfo)
	assert.Positive(t, cfg.Limits.MaxStackSize)
	assert.Positive(t, cfg.Limits.MaxRecursionDepth)
	assert.Positive(t, cfg.VM.InitialStackSize)
	assert.Positive(t, cfg.Coroutine.InitialStackSize)
	assert.Positive(t, cfg.Lexer.BufferSize)
	assert.False(t, cfg.EnableSQL)
	assert.NotNil(t, cfg.Stdout)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("KAUBO_MAX_RECURSION_DEPTH", "77")
	t.Setenv("KAUBO_LEXER_BUFFER_SIZE", "1234")
	t.Setenv("KAUBO_ENABLE_SQL", "true")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 77, cfg.Limits.MaxRecursionDepth)
	assert.Equal(t, 1234, cfg.Lexer.BufferSize)
	assert.True(t, cfg.EnableSQL)
	// Untouched settings keep their defaults.
	assert.Equal(t, Default().VM.InitialStackSize, cfg.VM.InitialStackSize)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kaubo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
compiler:
  emit_debug_info: false
limits:
  max_recursion_depth: 32
vm:
  inline_cache_capacity: 128
lexer:
  buffer_size: 2048
`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.False(t, cfg.Compiler.EmitDebugInfo)
	assert.Equal(t, 32, cfg.Limits.MaxRecursionDepth)
	assert.Equal(t, 128, cfg.VM.InlineCacheCapacity)
	assert.Equal(t, 2048, cfg.Lexer.BufferSize)
	// Untouched settings keep their defaults.
	assert.Equal(t, Default().Coroutine.InitialStackSize, cfg.Coroutine.InitialStackSize)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestOperatorLookup(t *testing.T) {
	for _, name := range []string{
		"add", "sub", "mul", "div", "mod", "eq", "lt", "le", "neg",
		"get", "set", "str", "len", "call", "radd", "rmul", "pipe",
	} {
		k, ok := LookupOperator(name)
		require.True(t, ok, name)
		assert.Equal(t, name, k.String())
	}
	_, ok := LookupOperator("xor")
	assert.False(t, ok)
}

func TestReverseOf(t *testing.T) {
	rev, ok := ReverseOf(OpAdd)
	require.True(t, ok)
	assert.Equal(t, OpRAdd, rev)

	rev, ok = ReverseOf(OpMul)
	require.True(t, ok)
	assert.Equal(t, OpRMul, rev)

	_, ok = ReverseOf(OpSub)
	assert.False(t, ok)
}
