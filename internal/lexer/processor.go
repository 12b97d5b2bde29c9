package lexer

import (
	"github.com/nyml2003/kaubo/internal/config"
	"github.com/nyml2003/kaubo/internal/pipeline"
	"github.com/nyml2003/kaubo/internal/token"
)

const lookaheadBufferSize = 10

// bufferedProducer adapts a Producer to the pipeline's TokenStream contract,
// adding bounded lookahead for the parser.
type bufferedProducer struct {
	p      *Producer
	buffer []token.Token
	pos    int
}

// NewTokenStream wraps a producer whose input is fully fed and terminated.
func NewTokenStream(p *Producer) pipeline.TokenStream {
	return &bufferedProducer{p: p}
}

func (bp *bufferedProducer) next() token.Token {
	// The producer's input is terminated, so ErrNeedMoreInput cannot occur.
	tok, err := bp.p.Next()
	if err != nil {
		return token.Token{Kind: token.EOF}
	}
	return tok
}

func (bp *bufferedProducer) Next() token.Token {
	if bp.pos < len(bp.buffer) {
		tok := bp.buffer[bp.pos]
		bp.pos++
		return tok
	}
	return bp.next()
}

func (bp *bufferedProducer) Peek(n int) []token.Token {
	for len(bp.buffer)-bp.pos < n {
		tok := bp.next()
		bp.buffer = append(bp.buffer, tok)
		if tok.Kind == token.EOF {
			break
		}
	}

	if bp.pos > lookaheadBufferSize {
		bp.buffer = bp.buffer[bp.pos:]
		bp.pos = 0
	}

	end := bp.pos + n
	if end > len(bp.buffer) {
		end = len(bp.buffer)
	}
	return bp.buffer[bp.pos:end]
}

var _ pipeline.TokenStream = (*bufferedProducer)(nil)

// Processor is the lexing stage of the pipeline: it feeds the whole source
// into a producer, terminates it and installs the token stream on the
// context.
type Processor struct {
	Config config.LexerConfig
}

func (lp *Processor) Process(ctx *pipeline.Context) *pipeline.Context {
	p := NewProducer(lp.Config)
	// Feed cannot fail here: the producer is fresh and not terminated.
	_ = p.Feed([]byte(ctx.SourceCode))
	p.Terminate()
	ctx.TokenStream = NewTokenStream(p)
	return ctx
}
