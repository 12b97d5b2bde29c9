package lexer

import (
	"io"

	"github.com/nyml2003/kaubo/internal/config"
	"github.com/nyml2003/kaubo/internal/scanner"
	"github.com/nyml2003/kaubo/internal/token"
)

// Producer owns the scanner engine and yields syntactic tokens lazily. It
// strips whitespace and comment tokens, compacts the engine's buffer between
// tokens, and emits exactly one synthetic EOF marker once the terminated
// input drains.
type Producer struct {
	engine          *scanner.Engine
	compactFraction float64
	eofEmitted      bool
	lastLine        int
	lastCol         int
}

// NewProducer creates a producer over a freshly registered engine.
func NewProducer(cfg config.LexerConfig) *Producer {
	fraction := cfg.CompactFraction
	if fraction <= 0 {
		fraction = 0.5
	}
	return &Producer{
		engine:          scanner.NewDefault(cfg.BufferSize),
		compactFraction: fraction,
		lastLine:        1,
		lastCol:         1,
	}
}

// Feed appends source bytes. It never blocks.
func (p *Producer) Feed(b []byte) error {
	return p.engine.Feed(b)
}

// Terminate signals end of input.
func (p *Producer) Terminate() {
	p.engine.Terminate()
}

// Next returns the next non-trivia token, scanner.ErrNeedMoreInput when the
// buffered input is exhausted before EOF, or the EOF marker (repeatedly,
// after it has been emitted once the stream drains).
func (p *Producer) Next() (token.Token, error) {
	for {
		tok, err := p.engine.NextToken()
		if err == io.EOF {
			if !p.eofEmitted {
				p.eofEmitted = true
			}
			return token.Token{Kind: token.EOF, Line: p.lastLine, Column: p.lastCol}, nil
		}
		if err != nil {
			return token.Token{}, err
		}
		p.lastLine, p.lastCol = tok.Line, tok.Column
		p.engine.Compact(p.compactFraction)
		if token.IsTrivia(tok.Kind) {
			continue
		}
		return tok, nil
	}
}
