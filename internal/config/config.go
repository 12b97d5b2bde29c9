package config

import (
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v6"
	"sigs.k8s.io/yaml"
)

// CompilerConfig controls bytecode generation.
type CompilerConfig struct {
	// EmitDebugInfo includes the line table in the chunk.
	EmitDebugInfo bool `json:"emit_debug_info" env:"KAUBO_EMIT_DEBUG_INFO"`
}

// LimitConfig bounds a single execution.
type LimitConfig struct {
	// MaxStackSize is the value-stack ceiling in bytes.
	MaxStackSize int `json:"max_stack_size" env:"KAUBO_MAX_STACK_SIZE"`

	// MaxRecursionDepth caps the number of nested call frames.
	MaxRecursionDepth int `json:"max_recursion_depth" env:"KAUBO_MAX_RECURSION_DEPTH"`
}

// VMConfig provides pre-allocation hints for the main VM.
type VMConfig struct {
	InitialStackSize      int `json:"initial_stack_size" env:"KAUBO_VM_INITIAL_STACK_SIZE"`
	InitialFramesCapacity int `json:"initial_frames_capacity" env:"KAUBO_VM_INITIAL_FRAMES_CAPACITY"`
	InlineCacheCapacity   int `json:"inline_cache_capacity" env:"KAUBO_VM_INLINE_CACHE_CAPACITY"`
}

// CoroutineConfig provides per-coroutine pre-allocation hints.
type CoroutineConfig struct {
	InitialStackSize      int `json:"initial_stack_size" env:"KAUBO_CORO_INITIAL_STACK_SIZE"`
	InitialFramesCapacity int `json:"initial_frames_capacity" env:"KAUBO_CORO_INITIAL_FRAMES_CAPACITY"`
}

// LexerConfig sizes the scanner's ring buffer.
type LexerConfig struct {
	// BufferSize is the buffer's initial capacity in bytes. Feed appends
	// past it, so the buffer has no upper bound.
	BufferSize int `json:"buffer_size" env:"KAUBO_LEXER_BUFFER_SIZE"`

	// CompactFraction is the consumed fraction of the buffer past which the
	// token producer compacts it.
	CompactFraction float64 `json:"compact_fraction" env:"KAUBO_LEXER_COMPACT_FRACTION"`
}

// RunConfig aggregates every recognized option of a compile+execute run.
type RunConfig struct {
	Compiler  CompilerConfig  `json:"compiler"`
	Limits    LimitConfig     `json:"limits"`
	VM        VMConfig        `json:"vm"`
	Coroutine CoroutineConfig `json:"coroutine"`
	Lexer     LexerConfig     `json:"lexer"`

	// EnableSQL declares and installs the optional sql native module.
	EnableSQL bool `json:"enable_sql" env:"KAUBO_ENABLE_SQL"`

	// Stdout receives the output of std.print. Defaults to os.Stdout.
	// Not serialized; installed by the host.
	Stdout io.Writer `json:"-" env:"-"`
}

// Default returns the baseline configuration.
func Default() RunConfig {
	return RunConfig{
		Compiler: CompilerConfig{EmitDebugInfo: true},
		Limits: LimitConfig{
			MaxStackSize:      1 << 20,
			MaxRecursionDepth: 1024,
		},
		VM: VMConfig{
			InitialStackSize:      256,
			InitialFramesCapacity: 64,
			InlineCacheCapacity:   64,
		},
		Coroutine: CoroutineConfig{
			InitialStackSize:      64,
			InitialFramesCapacity: 8,
		},
		Lexer: LexerConfig{
			BufferSize:      4096,
			CompactFraction: 0.5,
		},
		Stdout: os.Stdout,
	}
}

// FromEnv overlays KAUBO_* environment variables on the defaults.
func FromEnv() (RunConfig, error) {
	cfg := Default()
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing environment: %w", err)
	}
	return cfg, nil
}

// LoadFile overlays a YAML (or JSON) config file on the defaults.
func LoadFile(path string) (RunConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}
