// Package kaubo is the embedder surface of the kaubo language runtime: a
// streaming scanner, Pratt parser, type checker, bytecode compiler and
// stack-based virtual machine behind three calls: Compile, Execute and Run.
package kaubo

import (
	"log/slog"

	"github.com/nyml2003/kaubo/internal/checker"
	"github.com/nyml2003/kaubo/internal/config"
	"github.com/nyml2003/kaubo/internal/diagnostics"
	"github.com/nyml2003/kaubo/internal/lexer"
	"github.com/nyml2003/kaubo/internal/logging"
	"github.com/nyml2003/kaubo/internal/parser"
	"github.com/nyml2003/kaubo/internal/pipeline"
	"github.com/nyml2003/kaubo/internal/runtime"
	"github.com/nyml2003/kaubo/internal/stdlib"
	"github.com/nyml2003/kaubo/internal/token"
	"github.com/nyml2003/kaubo/internal/vm"
)

// Program is a compiled script: its top-level function plus the shape table
// the chunks were compiled against.
type Program struct {
	main   *vm.Function
	shapes *runtime.ShapeTable
}

// Disassemble renders the program's bytecode for inspection.
func (p *Program) Disassemble() string {
	return vm.Disassemble(p.main)
}

// ExecuteOutput is the result of one execution.
type ExecuteOutput struct {
	// Value is the top-of-stack result (null when the program ends without
	// an explicit return).
	Value runtime.Value

	// Display is the value's human-readable form.
	Display string

	// VMID identifies the VM instance in log events.
	VMID string
}

// SetLogHandler installs the host's structured-log sink.
func SetLogHandler(h slog.Handler) {
	logging.SetHandler(h)
}

// SetLogLevel overrides the minimum log level for one phase.
func SetLogLevel(phase string, level slog.Level) {
	logging.SetLevel(logging.PhaseName(phase), level)
}

// Compile runs lex, parse, type-check and lowering on a source string.
func Compile(source string, cfg config.CompilerConfig) (*Program, error) {
	runCfg := config.Default()
	runCfg.Compiler = cfg
	return compile(source, runCfg)
}

func compile(source string, cfg config.RunConfig) (*Program, error) {
	ctx := pipeline.NewContext(source)
	stages := pipeline.New(
		&lexer.Processor{Config: cfg.Lexer},
		&parser.Processor{},
		&checker.Processor{EnableSQL: cfg.EnableSQL},
	)
	ctx = stages.Run(ctx)
	if ctx.HasErrors() {
		return nil, ctx.FirstError()
	}

	shapes := ctx.Shapes.(*runtime.ShapeTable)
	main, err := vm.Compile(ctx.AstRoot, ctx.TypeMap, shapes, cfg.Compiler)
	if err != nil {
		return nil, err
	}
	log := logging.Phase(logging.PhaseCompiler)
	if log.Enabled() {
		log.Debug("compiled", "code_bytes", len(main.Chunk.Code), "constants", len(main.Chunk.Constants))
	}
	return &Program{main: main, shapes: shapes}, nil
}

// Execute creates a VM with the configured capacities, installs the
// standard library and runs the program.
func Execute(p *Program, cfg config.RunConfig) (ExecuteOutput, error) {
	rt := runtime.NewRuntimeWithShapes(p.shapes, cfg.Stdout)
	if stdShape, ok := p.shapes.Lookup(stdlib.ModuleName); ok {
		stdlib.Install(rt, stdShape)
	}
	if sqlShape, ok := p.shapes.Lookup(stdlib.SQLModuleName); ok {
		stdlib.InstallSQL(rt, sqlShape)
	}

	machine := vm.New(rt, cfg)
	value, err := machine.Run(p.main)
	if err != nil {
		return ExecuteOutput{VMID: machine.ID}, diagnostics.Wrap(diagnostics.PhaseVM, token.Token{}, err)
	}
	return ExecuteOutput{
		Value:   value,
		Display: rt.Display(value),
		VMID:    machine.ID,
	}, nil
}

// Run composes Compile and Execute.
func Run(source string, cfg config.RunConfig) (ExecuteOutput, error) {
	p, err := compile(source, cfg)
	if err != nil {
		return ExecuteOutput{}, err
	}
	return Execute(p, cfg)
}
