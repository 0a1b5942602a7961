package event

import (
	"encoding/json"

	"github.com/cespare/xxhash/v2"
)

// Time is a logical timestamp (seconds, microseconds), the unit the trace
// log and the interpolated-time heuristic both operate in.
type Time struct {
	Seconds int64
	Micros  int64
}

// Compare returns -1, 0, or 1 as t is before, equal to, or after o.
func (t Time) Compare(o Time) int {
	switch {
	case t.Seconds < o.Seconds:
		return -1
	case t.Seconds > o.Seconds:
		return 1
	case t.Micros < o.Micros:
		return -1
	case t.Micros > o.Micros:
		return 1
	default:
		return 0
	}
}

// Before reports whether t strictly precedes o.
func (t Time) Before(o Time) bool { return t.Compare(o) < 0 }

// Fingerprint is the canonical identity used to match an expected internal
// event against an observed one: the event's class plus its class-defining
// payload fields (spec.md §4.A). Fingerprints are compared by value
// equality, never by identity.
type Fingerprint struct {
	Class   Class
	Payload any // JSON-decoded value: map[string]any, []any, scalar, or nil
}

// Empty reports whether the fingerprint carries no identifying payload.
// Every internal event's fingerprint must be non-empty (spec.md §3
// invariants); InvariantViolation fingerprints carry a list of violation
// fingerprints rather than a scalar payload, which still counts as non-empty
// when the list is non-empty.
func (f Fingerprint) Empty() bool {
	if f.Payload == nil {
		return true
	}
	if list, ok := f.Payload.([]any); ok {
		return len(list) == 0
	}
	return false
}

// Equal compares two fingerprints by structural value equality.
func (f Fingerprint) Equal(o Fingerprint) bool {
	if f.Class != o.Class {
		return false
	}
	fb, err1 := json.Marshal(f.Payload)
	ob, err2 := json.Marshal(o.Payload)
	if err1 != nil || err2 != nil {
		return false
	}
	return string(fb) == string(ob)
}

// Digest returns a fast, order-independent hash of the fingerprint, used as
// a bucketing key in the scheduler's pending-match index and the sync
// package's ReplayCallback pending multiset. It is never used in place of
// Equal for the actual match decision: encoding/json sorts object keys at
// every nesting level, so two structurally-equal payloads always hash the
// same, but hash collisions between distinct payloads remain possible.
func (f Fingerprint) Digest() uint64 {
	h := xxhash.New()
	h.WriteString(string(f.Class))
	h.Write([]byte{0})
	b, err := json.Marshal(f.Payload)
	if err == nil {
		h.Write(b)
	}
	return h.Sum64()
}
