package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyml2003/kaubo/internal/config"
	"github.com/nyml2003/kaubo/internal/pipeline"
	"github.com/nyml2003/kaubo/internal/token"
)

func produceAll(t *testing.T, source string) []token.Token {
	t.Helper()
	p := NewProducer(config.Default().Lexer)
	require.NoError(t, p.Feed([]byte(source)))
	p.Terminate()

	var toks []token.Token
	for {
		tok, err := p.Next()
		require.NoError(t, err)
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks
		}
	}
}

func TestProducerStripsTrivia(t *testing.T) {
	toks := produceAll(t, "var x = 1; // trailing comment\n/* block */ x")
	want := []token.Kind{token.Var, token.Ident, token.Assign, token.Int, token.Semi, token.Ident, token.EOF}
	got := make([]token.Kind, len(toks))
	for i, tok := range toks {
		got[i] = tok.Kind
	}
	assert.Equal(t, want, got)
}

func TestProducerEmitsSingleEOF(t *testing.T) {
	toks := produceAll(t, "1")
	require.Len(t, toks, 2)
	assert.Equal(t, token.Int, toks[0].Kind)
	assert.Equal(t, token.EOF, toks[1].Kind)
}

func TestProducerPositionsPointAtFirstCharacter(t *testing.T) {
	toks := produceAll(t, "  var\n  while")
	require.Len(t, toks, 3)
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 3, toks[0].Column)
	assert.Equal(t, 2, toks[1].Line)
	assert.Equal(t, 3, toks[1].Column)
}

func TestTokenStreamLookahead(t *testing.T) {
	p := NewProducer(config.Default().Lexer)
	require.NoError(t, p.Feed([]byte("a b c")))
	p.Terminate()
	stream := NewTokenStream(p)

	peeked := stream.Peek(2)
	require.Len(t, peeked, 2)
	assert.Equal(t, "a", peeked[0].Lexeme)
	assert.Equal(t, "b", peeked[1].Lexeme)

	assert.Equal(t, "a", stream.Next().Lexeme)
	assert.Equal(t, "b", stream.Next().Lexeme)
	assert.Equal(t, "c", stream.Next().Lexeme)
	assert.Equal(t, token.EOF, stream.Next().Kind)
}

func TestProcessorInstallsStream(t *testing.T) {
	ctx := pipeline.NewContext("var x = 1;")
	ctx = (&Processor{Config: config.Default().Lexer}).Process(ctx)
	require.NotNil(t, ctx.TokenStream)
	assert.Equal(t, token.Var, ctx.TokenStream.Next().Kind)
}
