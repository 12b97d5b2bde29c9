package scanner

import (
	"errors"
	"io"
	"unicode"
	"unicode/utf8"

	"github.com/nyml2003/kaubo/internal/token"
)

// ErrNeedMoreInput is returned by NextToken when the input cursor reached the
// end of the buffered bytes and EOF has not been signalled. The caller feeds
// more bytes or terminates the stream and retries.
var ErrNeedMoreInput = errors.New("scanner: need more input")

// ErrFeedAfterEOF is returned by Feed once Terminate has been called.
var ErrFeedAfterEOF = errors.New("scanner: feed after end of input")

const tabWidth = 4

type registered struct {
	machine Machine
	kind    token.Kind
}

// Engine multiplexes a set of token machines over a streaming byte buffer.
// Each call to NextToken advances all machines in parallel and commits the
// longest accepted prefix; among machines of equal match length the one with
// the lowest registration index wins.
type Engine struct {
	machines []registered

	buf []byte
	off int

	eof bool

	line, col int

	// scratch state vectors, reused across NextToken calls
	states []State
	dead   []bool
}

// NewEngine creates an engine with the given initial buffer capacity and no
// machines registered.
func NewEngine(bufferSize int) *Engine {
	if bufferSize <= 0 {
		bufferSize = 4096
	}
	return &Engine{
		buf:  make([]byte, 0, bufferSize),
		line: 1,
		col:  1,
	}
}

// NewDefault creates an engine with the full kaubo token set registered:
// keyword machines first (so keywords win the priority tie-break against
// identifiers), then identifier, float before integer, string, two-character
// symbols before their one-character prefixes, comments and whitespace.
func NewDefault(bufferSize int) *Engine {
	e := NewEngine(bufferSize)
	for _, kw := range token.Keywords {
		e.Register(newLiteralMachine(string(kw)), kw)
	}
	e.Register(identMachine{}, token.Ident)
	e.Register(floatMachine{}, token.Float)
	e.Register(intMachine{}, token.Int)
	e.Register(stringMachine{}, token.String)
	for _, sym := range token.TwoCharSymbols {
		e.Register(newLiteralMachine(string(sym)), sym)
	}
	for _, sym := range token.OneCharSymbols {
		e.Register(newLiteralMachine(string(sym)), sym)
	}
	e.Register(lineCommentMachine{}, token.Comment)
	e.Register(blockCommentMachine{}, token.Comment)
	e.Register(whitespaceMachine{}, token.Whitespace)
	e.Register(newLiteralMachine("\n"), token.Newline)
	return e
}

// Register adds a machine producing tokens of the given kind. Registration
// order establishes priority.
func (e *Engine) Register(m Machine, kind token.Kind) {
	e.machines = append(e.machines, registered{machine: m, kind: kind})
	e.states = append(e.states, 0)
	e.dead = append(e.dead, false)
}

// Feed appends bytes to the input buffer. It never blocks. Feeding after
// Terminate is an error.
func (e *Engine) Feed(p []byte) error {
	if e.eof {
		return ErrFeedAfterEOF
	}
	e.buf = append(e.buf, p...)
	return nil
}

// Terminate signals end of input. Subsequent NextToken calls finalize any
// in-flight machine: the longest match is emitted, or an ILLEGAL token if
// nothing accepts.
func (e *Engine) Terminate() {
	e.eof = true
}

// Consumed reports how many buffered bytes have been committed to tokens.
func (e *Engine) Consumed() int { return e.off }

// Buffered reports the total number of bytes currently held.
func (e *Engine) Buffered() int { return len(e.buf) }

// Compact drops the consumed prefix of the buffer when at least fraction of
// it has been committed. The token producer calls this between tokens.
func (e *Engine) Compact(fraction float64) {
	if len(e.buf) == 0 || fraction <= 0 {
		return
	}
	if float64(e.off) >= fraction*float64(len(e.buf)) {
		n := copy(e.buf, e.buf[e.off:])
		e.buf = e.buf[:n]
		e.off = 0
	}
}

// NextToken scans the next token from the buffer. It returns ErrNeedMoreInput
// when the cursor reached the end of the buffered bytes without EOF, and
// io.EOF once the terminated input is fully drained.
func (e *Engine) NextToken() (token.Token, error) {
	if e.off >= len(e.buf) {
		if !e.eof {
			return token.Token{}, ErrNeedMoreInput
		}
		return token.Token{}, io.EOF
	}

	startLine, startCol := e.line, e.col

	for i := range e.machines {
		e.states[i] = e.machines[i].machine.Start()
		e.dead[i] = false
	}
	alive := len(e.machines)
	bestLen, bestIdx := 0, -1

	i := e.off
	for alive > 0 {
		if i >= len(e.buf) {
			if !e.eof {
				// A live machine could still extend its match.
				return token.Token{}, ErrNeedMoreInput
			}
			break
		}
		if !utf8.FullRune(e.buf[i:]) && !e.eof {
			return token.Token{}, ErrNeedMoreInput
		}
		r, size := utf8.DecodeRune(e.buf[i:])
		if r == utf8.RuneError && size == 1 {
			if bestLen > 0 {
				// Commit the match; the bad byte surfaces on the next call.
				break
			}
			b := e.buf[i]
			e.advance(i + 1)
			return token.Token{Kind: token.Utf8Error, Lexeme: string(b), Line: startLine, Column: startCol}, nil
		}

		matchLen := i + size - e.off
		for idx := range e.machines {
			if e.dead[idx] {
				continue
			}
			next := e.machines[idx].machine.Step(e.states[idx], r)
			if next == Reject {
				e.dead[idx] = true
				alive--
				continue
			}
			e.states[idx] = next
			if e.machines[idx].machine.Accepting(next) && matchLen > bestLen {
				bestLen = matchLen
				bestIdx = idx
			}
		}
		i += size
	}

	if bestLen > 0 {
		lexeme := string(e.buf[e.off : e.off+bestLen])
		e.advance(e.off + bestLen)
		return token.Token{Kind: e.machines[bestIdx].kind, Lexeme: lexeme, Line: startLine, Column: startCol}, nil
	}

	// Nothing accepted: emit an ILLEGAL token for one rune and move on.
	r, size := utf8.DecodeRune(e.buf[e.off:])
	lexeme := string(r)
	if r == utf8.RuneError && size == 1 {
		lexeme = string(e.buf[e.off])
	}
	e.advance(e.off + size)
	return token.Token{Kind: token.Illegal, Lexeme: lexeme, Line: startLine, Column: startCol}, nil
}

// advance commits bytes up to newOff and updates the line/column of the
// cursor. Newline advances the line and resets the column; tab advances the
// column by a fixed width of 4.
func (e *Engine) advance(newOff int) {
	for i := e.off; i < newOff; {
		r, size := utf8.DecodeRune(e.buf[i:])
		switch r {
		case '\n':
			e.line++
			e.col = 1
		case '\t':
			e.col += tabWidth
		default:
			e.col++
		}
		if size == 0 {
			size = 1
		}
		i += size
	}
	e.off = newOff
}

func isUnicodeLetter(r rune) bool { return unicode.IsLetter(r) }
