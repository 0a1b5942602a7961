package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewDefaultConfig(t *testing.T) {
	l := New(nil)
	if l == nil {
		t.Fatal("New(nil) returned nil")
	}
}

func TestLoggerNamedAndWith(t *testing.T) {
	l := New(DefaultConfig())
	named := l.Named("scheduler")
	if named == nil {
		t.Fatal("Named() returned nil")
	}
	withFields := named.With("trial", 3)
	if withFields == nil {
		t.Fatal("With() returned nil")
	}

	// None of these should panic; zap's sugared logger tolerates any level.
	withFields.Debug("waiting for event", "label", "c1_1")
	withFields.Info("matched internal event", "label", "c1_1", "class", "ControllerStateChange")
	withFields.Warn("event ambiguous", "label", "c1_1")
	withFields.Error("trial failed", "err", "boom")
}

func TestDefaultLoggerSingleton(t *testing.T) {
	first := Default()
	second := Default()
	if first != second {
		t.Fatal("Default() should return the same instance across calls")
	}

	replacement := New(&Config{Level: LevelDebug, Verbose: 1})
	SetDefault(replacement)
	if Default() != replacement {
		t.Fatal("SetDefault() should update the process-wide default")
	}
}

func TestVerboseForcesDebugLevel(t *testing.T) {
	cfg := &Config{Level: LevelError, Verbose: 2}
	l := New(cfg)
	// Should not panic and should accept debug-level calls.
	l.Debug("verbose override")
	if !l.s.Desugar().Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("Verbose > 0 should enable debug level despite Level: LevelError")
	}
}
