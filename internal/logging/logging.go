package logging

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// PhaseName tags every event with the pipeline stage that emitted it.
type PhaseName string

const (
	PhaseLexer    PhaseName = "lexer"
	PhaseParser   PhaseName = "parser"
	PhaseChecker  PhaseName = "checker"
	PhaseCompiler PhaseName = "compiler"
	PhaseVM       PhaseName = "vm"
)

var (
	mu      sync.RWMutex
	handler slog.Handler
	levels  = map[PhaseName]slog.Level{}
)

func init() {
	// Silent by default: the host installs a sink. Emission never sits on
	// the hot path of error-free execution; callers gate on Enabled.
	handler = slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})
}

// SetHandler installs the host's sink for all phases.
func SetHandler(h slog.Handler) {
	mu.Lock()
	defer mu.Unlock()
	handler = h
}

// SetLevel overrides the minimum level for one phase.
func SetLevel(phase PhaseName, level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	levels[phase] = level
}

// Logger is a phase-scoped event emitter.
type Logger struct {
	phase PhaseName
	log   *slog.Logger
	min   slog.Level
	isSet bool
}

// Phase returns the logger for a pipeline stage.
func Phase(phase PhaseName) Logger {
	mu.RLock()
	defer mu.RUnlock()
	min, isSet := levels[phase]
	return Logger{
		phase: phase,
		log:   slog.New(handler).With("phase", string(phase)),
		min:   min,
		isSet: isSet,
	}
}

// Enabled reports whether debug events for this phase would be recorded;
// callers use it to skip attribute construction entirely.
func (l Logger) Enabled() bool {
	if l.isSet {
		return l.min <= slog.LevelDebug
	}
	return l.log.Enabled(context.Background(), slog.LevelDebug)
}

func (l Logger) Debug(msg string, args ...any) {
	if l.isSet && l.min > slog.LevelDebug {
		return
	}
	l.log.Debug(msg, args...)
}

func (l Logger) Info(msg string, args ...any) {
	if l.isSet && l.min > slog.LevelInfo {
		return
	}
	l.log.Info(msg, args...)
}

func (l Logger) Error(msg string, args ...any) {
	l.log.Error(msg, args...)
}
