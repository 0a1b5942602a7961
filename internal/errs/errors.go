// Package errs provides the structured error type shared across the
// scheduler, replay engine, fuzzer, and delta-debugging driver.
package errs

import (
	"errors"
	"fmt"
)

// Kind is a closed set of error categories (spec.md §7).
type Kind string

const (
	KindBugNotReproducible    Kind = "bug_not_reproducible"
	KindNoSupportedInputs     Kind = "no_supported_inputs"
	KindUnsupportedDeterministicValue Kind = "unsupported_deterministic_value"
	KindCorruptTrace          Kind = "corrupt_trace"
	KindEventTimeout          Kind = "event_timeout"
	KindUnexpectedInternalEvent Kind = "unexpected_internal_event"
	KindSubprocessCrash       Kind = "subprocess_crash"
	KindIO                    Kind = "io"
)

// Error is a structured sts error with operation context and errno-like
// classification, mirroring the shape of a typical wrapped-error type but
// specialized for record/replay operations (op, event label, kind).
type Error struct {
	Op    string // operation that failed, e.g. "ddmin.test", "scheduler.wait"
	Label string // event label involved, if any
	Kind  Kind
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	var parts string
	if e.Op != "" {
		parts += fmt.Sprintf("op=%s ", e.Op)
	}
	if e.Label != "" {
		parts += fmt.Sprintf("label=%s ", e.Label)
	}
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if parts != "" {
		return fmt.Sprintf("sts: %s (%s)", msg, parts[:len(parts)-1])
	}
	return fmt.Sprintf("sts: %s", msg)
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Kind == te.Kind
	}
	return false
}

// New creates a structured error of the given kind.
func New(op string, kind Kind, msg string) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

// NewForEvent creates a structured error tied to a specific event label.
func NewForEvent(op, label string, kind Kind, msg string) *Error {
	return &Error{Op: op, Label: label, Kind: kind, Msg: msg}
}

// Wrap attaches sts context (op, kind) to an arbitrary inner error.
func Wrap(op string, kind Kind, inner error) *Error {
	if inner == nil {
		return nil
	}
	if se, ok := inner.(*Error); ok {
		return &Error{Op: op, Label: se.Label, Kind: se.Kind, Msg: se.Msg, Inner: se.Inner}
	}
	return &Error{Op: op, Kind: kind, Msg: inner.Error(), Inner: inner}
}

// IsKind reports whether err is (or wraps) a structured Error of kind.
func IsKind(err error, kind Kind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}
