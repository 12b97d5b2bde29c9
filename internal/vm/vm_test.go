package vm_test

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyml2003/kaubo/internal/checker"
	"github.com/nyml2003/kaubo/internal/config"
	"github.com/nyml2003/kaubo/internal/lexer"
	"github.com/nyml2003/kaubo/internal/parser"
	"github.com/nyml2003/kaubo/internal/pipeline"
	"github.com/nyml2003/kaubo/internal/runtime"
	"github.com/nyml2003/kaubo/internal/stdlib"
	"github.com/nyml2003/kaubo/internal/vm"
)

// buildAndRun compiles a source string and executes it on a fresh runtime,
// returning the result, the script function and the runtime for inspection.
func buildAndRun(t *testing.T, source string, cfg config.RunConfig) (runtime.Value, *vm.Function, *runtime.Runtime, error) {
	t.Helper()
	ctx := pipeline.NewContext(source)
	stages := pipeline.New(
		&lexer.Processor{Config: cfg.Lexer},
		&parser.Processor{},
		&checker.Processor{},
	)
	ctx = stages.Run(ctx)
	require.Empty(t, ctx.Errors, "front-end errors: %v", ctx.Errors)

	shapes := ctx.Shapes.(*runtime.ShapeTable)
	fn, err := vm.Compile(ctx.AstRoot, ctx.TypeMap, shapes, cfg.Compiler)
	require.NoError(t, err)

	rt := runtime.NewRuntimeWithShapes(shapes, cfg.Stdout)
	if stdShape, ok := shapes.Lookup(stdlib.ModuleName); ok {
		stdlib.Install(rt, stdShape)
	}
	result, err := vm.New(rt, cfg).Run(fn)
	return result, fn, rt, err
}

func TestInlineCacheWarmsOnStructOperators(t *testing.T) {
	cfg := config.Default()
	cfg.Stdout = &bytes.Buffer{}
	source := `
		struct V { n: int }
		impl V {
			operator add: |self, other| { return V { n: self.n + other.n }; }
		}
		var acc = V { n: 0 };
		for i in [1, 2, 3] {
			acc = acc + V { n: i };
		}
		return acc.n;`

	result, fn, rt, err := buildAndRun(t, source, cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(6), result.AsInt())

	shape, ok := rt.Shapes.Lookup("V")
	require.True(t, ok)

	// The loop body's Add site must have resolved to the shape pair.
	warmed := 0
	for _, slot := range fn.Chunk.InlineCaches {
		if slot.Key != 0 {
			warmed++
			assert.Equal(t, uint32(shape.ID)<<16|uint32(shape.ID), slot.Key)
			assert.NotZero(t, slot.Handler)
		}
	}
	assert.Equal(t, 1, warmed, "exactly the struct+struct Add site warms")
}

func TestIntAddLeavesCacheCold(t *testing.T) {
	cfg := config.Default()
	cfg.Stdout = &bytes.Buffer{}
	result, fn, _, err := buildAndRun(t, "var a = 1; var b = 2; return a + b;", cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.AsInt())
	for _, slot := range fn.Chunk.InlineCaches {
		assert.Zero(t, slot.Key, "built-in fast paths bypass the cache")
	}
}

func TestCachesResetBetweenExecutions(t *testing.T) {
	source := `
		struct V { n: int }
		impl V { operator add: |self, other| { return V { n: self.n + other.n }; } }
		return (V { n: 1 } + V { n: 2 }).n;`

	ctx := pipeline.NewContext(source)
	stages := pipeline.New(
		&lexer.Processor{Config: config.Default().Lexer},
		&parser.Processor{},
		&checker.Processor{},
	)
	ctx = stages.Run(ctx)
	require.Empty(t, ctx.Errors)
	shapes := ctx.Shapes.(*runtime.ShapeTable)
	fn, err := vm.Compile(ctx.AstRoot, ctx.TypeMap, shapes, config.Default().Compiler)
	require.NoError(t, err)

	for run := 0; run < 2; run++ {
		rt := runtime.NewRuntimeWithShapes(shapes, &bytes.Buffer{})
		if stdShape, ok := shapes.Lookup(stdlib.ModuleName); ok {
			stdlib.Install(rt, stdShape)
		}
		result, err := vm.New(rt, config.Default()).Run(fn)
		require.NoError(t, err, "run %d", run)
		assert.Equal(t, int64(3), result.AsInt(), "run %d", run)
	}
}

func TestRecursionLimitIsConfigurable(t *testing.T) {
	cfg := config.Default()
	cfg.Stdout = &bytes.Buffer{}
	cfg.Limits.MaxRecursionDepth = 16
	_, _, _, err := buildAndRun(t, `
		var f = |self: any| -> any { return self(self); };
		return f(f);`, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "16")
}

func TestValueStackGrows(t *testing.T) {
	cfg := config.Default()
	cfg.Stdout = &bytes.Buffer{}
	cfg.VM.InitialStackSize = 4

	var sb strings.Builder
	sb.WriteString("var l = [")
	for i := 0; i < 100; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%d", i)
	}
	sb.WriteString("]; return len(l);")

	result, _, _, err := buildAndRun(t, sb.String(), cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(100), result.AsInt())
}

func TestDeepCallChain(t *testing.T) {
	cfg := config.Default()
	cfg.Stdout = &bytes.Buffer{}
	result, _, _, err := buildAndRun(t, `
		var down = |self, n| {
			if n == 0 { return 0; }
			return 1 + self(self, n - 1);
		};
		return down(down, 200);`, cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(200), result.AsInt())
}

func TestHeapIsAppendOnly(t *testing.T) {
	cfg := config.Default()
	cfg.Stdout = &bytes.Buffer{}
	_, _, rt, err := buildAndRun(t, `
		var l: any = [];
		for i in range(10) {
			l = [i];
		}
		return len(l);`, cfg)
	require.NoError(t, err)
	// Every iteration allocated a fresh list; nothing is reclaimed.
	assert.Greater(t, rt.Heap.Size(), 10)
}

func TestCoroutineStacksAreIndependent(t *testing.T) {
	cfg := config.Default()
	cfg.Stdout = &bytes.Buffer{}
	cfg.Coroutine.InitialStackSize = 4
	result, _, _, err := buildAndRun(t, `
		var g = || {
			var a = [1, 2, 3, 4, 5, 6, 7, 8];
			yield len(a);
			yield len(a) * 2;
		};
		var co = create_coroutine(g);
		var x = resume(co);
		var y = resume(co);
		return x + y;`, cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(24), result.AsInt())
}

func TestNestedCoroutines(t *testing.T) {
	cfg := config.Default()
	cfg.Stdout = &bytes.Buffer{}
	result, _, _, err := buildAndRun(t, `
		var inner = || { yield 10; };
		var outer = || {
			var co = create_coroutine(inner);
			yield resume(co) + 1;
		};
		return resume(create_coroutine(outer));`, cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(11), result.AsInt())
}
