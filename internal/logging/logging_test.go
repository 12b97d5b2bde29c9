package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSilentByDefault(t *testing.T) {
	log := Phase(PhaseVM)
	assert.False(t, log.Enabled())
	log.Debug("ignored") // must not panic
}

func TestInstalledHandlerReceivesEvents(t *testing.T) {
	var buf bytes.Buffer
	SetHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	defer SetHandler(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))

	log := Phase(PhaseCompiler)
	assert.True(t, log.Enabled())
	log.Debug("compiled", "bytes", 12)

	out := buf.String()
	assert.Contains(t, out, "phase=compiler")
	assert.Contains(t, out, "compiled")
	assert.Contains(t, out, "bytes=12")
}

func TestPerPhaseLevel(t *testing.T) {
	var buf bytes.Buffer
	SetHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	defer SetHandler(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))

	SetLevel(PhaseLexer, slog.LevelError)
	defer SetLevel(PhaseLexer, slog.LevelDebug)

	Phase(PhaseLexer).Debug("noisy")
	Phase(PhaseLexer).Info("still noisy")
	Phase(PhaseParser).Debug("wanted")

	out := buf.String()
	assert.NotContains(t, out, "noisy")
	assert.Contains(t, out, "wanted")
	assert.Equal(t, 1, strings.Count(out, "msg="))
}
