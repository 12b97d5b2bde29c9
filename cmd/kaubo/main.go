package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nyml2003/kaubo"
	"github.com/nyml2003/kaubo/internal/ast"
	"github.com/nyml2003/kaubo/internal/config"
	"github.com/nyml2003/kaubo/internal/lexer"
	"github.com/nyml2003/kaubo/internal/parser"
	"github.com/nyml2003/kaubo/internal/pipeline"
	"github.com/nyml2003/kaubo/internal/token"
)

const usage = `usage: kaubo [options] <file>

Run a kaubo source file.

Options:
  --emit=run     execute the program and print its result (default)
  --emit=tokens  print the token stream and exit
  --emit=ast     print the parsed syntax tree and exit
  --emit=asm     print the compiled bytecode and exit
  --config=FILE  load a YAML config file
  --verbose      emit debug logs for every phase
  -h, --help     show this help
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	emit := "run"
	configPath := ""
	verbose := false
	var path string

	for _, arg := range args {
		switch {
		case arg == "-h" || arg == "--help":
			fmt.Fprint(stdout, usage)
			return 0
		case arg == "--verbose":
			verbose = true
		case len(arg) > 7 && arg[:7] == "--emit=":
			emit = arg[7:]
		case len(arg) > 9 && arg[:9] == "--config=":
			configPath = arg[9:]
		default:
			path = arg
		}
	}
	if path == "" {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "kaubo: %v\n", err)
		return 1
	}
	if configPath != "" {
		if cfg, err = config.LoadFile(configPath); err != nil {
			fmt.Fprintf(stderr, "kaubo: %v\n", err)
			return 1
		}
	}
	cfg.Stdout = stdout

	if verbose {
		kaubo.SetLogHandler(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "kaubo: %v\n", err)
		return 1
	}

	switch emit {
	case "tokens":
		return emitTokens(string(source), cfg, stdout, stderr)
	case "ast":
		return emitAST(string(source), cfg, stdout, stderr)
	case "asm":
		program, err := kaubo.Compile(string(source), cfg.Compiler)
		if err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return 1
		}
		fmt.Fprint(stdout, program.Disassemble())
		return 0
	case "run":
		out, err := kaubo.Run(string(source), cfg)
		if err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return 1
		}
		if !out.Value.IsNull() {
			fmt.Fprintln(stdout, out.Display)
		}
		return 0
	default:
		fmt.Fprintf(stderr, "kaubo: unknown emit mode %q\n", emit)
		return 2
	}
}

func emitAST(source string, cfg config.RunConfig, stdout, stderr io.Writer) int {
	ctx := pipeline.NewContext(source)
	stages := pipeline.New(
		&lexer.Processor{Config: cfg.Lexer},
		&parser.Processor{},
	)
	ctx = stages.Run(ctx)
	if ctx.HasErrors() {
		fmt.Fprintf(stderr, "%v\n", ctx.FirstError())
		return 1
	}
	ast.Fprint(stdout, ctx.AstRoot)
	return 0
}

func emitTokens(source string, cfg config.RunConfig, stdout, stderr io.Writer) int {
	p := lexer.NewProducer(cfg.Lexer)
	if err := p.Feed([]byte(source)); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	p.Terminate()
	for {
		tok, err := p.Next()
		if err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, tok)
		if tok.Kind == token.EOF {
			return 0
		}
	}
}
