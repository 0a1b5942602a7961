// Package logging provides the structured logger used across sts
// components. It keeps the call shape of a level-per-method logger
// (Debug/Info/Warn/Error plus key-value fields) but is backed by
// go.uber.org/zap rather than a hand-rolled wrapper around stdlib log.
package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap.SugaredLogger with the field-pair call convention
// used throughout the sts packages: Info("msg", "key", value, ...).
type Logger struct {
	s *zap.SugaredLogger
}

// Level selects the minimum level a Logger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Config holds logging configuration.
type Config struct {
	Level   Level
	Verbose int // verbosity counter from the CLI -v flag; any positive value forces debug level
}

// DefaultConfig returns a sensible default configuration: info level,
// human-readable console encoding to stderr.
func DefaultConfig() *Config {
	return &Config{Level: LevelInfo}
}

// New creates a new Logger from the given Config.
func New(cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	level := cfg.Level
	if cfg.Verbose > 0 {
		level = LevelDebug
	}
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(os.Stderr),
		level.zapLevel(),
	)
	return &Logger{s: zap.New(core).Sugar()}
}

var (
	mu      sync.RWMutex
	current *Logger
)

// Default returns the process-wide default logger, creating it on first use.
func Default() *Logger {
	mu.RLock()
	if current != nil {
		defer mu.RUnlock()
		return current
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		current = New(nil)
	}
	return current
}

// SetDefault installs l as the process-wide default logger.
func SetDefault(l *Logger) {
	mu.Lock()
	defer mu.Unlock()
	current = l
}

// Named returns a child logger with an additional name component, used to
// tag which component (scheduler, fuzzer, ddmin, ...) emitted a line.
func (l *Logger) Named(name string) *Logger {
	return &Logger{s: l.s.Named(name)}
}

// With returns a child logger with the given key-value pairs attached to
// every subsequent call.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{s: l.s.With(kv...)}
}

func (l *Logger) Debug(msg string, kv ...any) { l.s.Debugw(msg, kv...) }
func (l *Logger) Info(msg string, kv ...any)  { l.s.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.s.Warnw(msg, kv...) }
func (l *Logger) Error(msg string, kv ...any) { l.s.Errorw(msg, kv...) }

func (l *Logger) Sync() error { return l.s.Sync() }
