// Package oracle adapts the external InvariantChecker collaborator into
// the yes/no "does this trial reproduce the target bug" decision the
// delta-debugging driver needs (spec.md §4.F). Grounded on
// _examples/original_source/sts/control_flow/mcs_finder.py's
// _check_violation / bug-signature comparison.
package oracle

import (
	"context"

	"github.com/sts-go/sts/internal/event"
	"github.com/sts-go/sts/internal/simulation"
)

// Oracle wraps an external InvariantChecker with a fixed target bug
// signature, the fingerprint the search is trying to reproduce.
type Oracle struct {
	checker   simulation.InvariantChecker
	signature event.Fingerprint
}

// New builds an Oracle that checks sim against checker and declares a
// match whenever the returned fingerprint list contains signature.
func New(checker simulation.InvariantChecker, signature event.Fingerprint) *Oracle {
	return &Oracle{checker: checker, signature: signature}
}

// Signature returns the bug signature this oracle is searching for.
func (o *Oracle) Signature() event.Fingerprint {
	return o.signature
}

// Check calls the external checker and reports whether the target bug
// signature is present in the returned fingerprint list. An empty list
// means "no violation" (spec.md §4.F); any non-empty list is a candidate,
// and the trial matches iff the signature is a member.
func (o *Oracle) Check(ctx context.Context, sim simulation.Simulation) (found bool, fingerprints []event.Fingerprint, err error) {
	fingerprints, err = o.checker.Check(ctx, sim)
	if err != nil {
		return false, nil, err
	}
	for _, fp := range fingerprints {
		if fp.Equal(o.signature) {
			return true, fingerprints, nil
		}
	}
	return false, fingerprints, nil
}

// SelectSignature implements the original's interactive bug-signature
// selection (SPEC_FULL.md §D "Interactive bug-signature selection"): when
// the final InvariantViolation carries more than one fingerprint, pick
// returns the fingerprint at the chosen index, or the sole fingerprint
// when there is exactly one.
func SelectSignature(violation event.Event, chosenIndex int) (event.Fingerprint, error) {
	list, ok := violation.FP.Payload.([]any)
	if !ok || len(list) == 0 {
		return event.Fingerprint{}, errNoFingerprints
	}
	if len(list) == 1 {
		return event.Fingerprint{Class: violation.Cls, Payload: list[0]}, nil
	}
	if chosenIndex < 0 || chosenIndex >= len(list) {
		return event.Fingerprint{}, errIndexOutOfRange
	}
	return event.Fingerprint{Class: violation.Cls, Payload: list[chosenIndex]}, nil
}

type oracleError string

func (e oracleError) Error() string { return string(e) }

const (
	errNoFingerprints  oracleError = "oracle: InvariantViolation carries no fingerprints"
	errIndexOutOfRange oracleError = "oracle: chosen violation index out of range"
)
