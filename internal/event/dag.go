package event

import (
	"fmt"

	"github.com/sts-go/sts/internal/errs"
)

// Atom is an indivisible group of input labels — a Failure/Recovery pair
// sharing an entity, or a singleton for non-paired input classes
// (spec.md §4.A "Atomic grouping").
type Atom struct {
	Labels []string
}

// DAG is the ordered event log plus derived input/internal views and the
// subset/complement algebra the delta-debugging driver searches over
// (spec.md §3 "Event DAG"). Despite the name, edges are never modelled
// explicitly beyond pair atomicity — see spec.md GLOSSARY.
type DAG struct {
	events   []Event
	all      []Event // the root superset this DAG and its derivatives were filtered from
	timedOut map[string]bool
}

// NewDAG builds a DAG from events in recorded order. The slice is copied;
// callers may reuse or mutate their own copy afterward. timedOut starts as
// a live (non-nil) map so every derived DAG shares the same underlying
// map by reference: a SetEventsAsTimedOut call against any subset or
// complement of this DAG is visible from the root and every sibling
// derived from it, matching the original's single shared
// timed_out_events structure.
func NewDAG(events []Event) *DAG {
	cp := append([]Event(nil), events...)
	return &DAG{events: cp, all: cp, timedOut: map[string]bool{}}
}

// derive builds a DAG sharing this DAG's root superset, for operations that
// filter d.events down further (spec.md §4.A subset/complement family).
func (d *DAG) derive(filtered []Event) *DAG {
	return &DAG{events: filtered, all: d.all, timedOut: d.timedOut}
}

// Events returns all events in recorded order.
func (d *DAG) Events() []Event {
	return d.events
}

// Len returns the total event count.
func (d *DAG) Len() int {
	return len(d.events)
}

// InputEvents returns the input-event view, order preserved.
func (d *DAG) InputEvents() []Event {
	out := make([]Event, 0, len(d.events))
	for _, e := range d.events {
		if e.IsInput() {
			out = append(out, e)
		}
	}
	return out
}

// InternalEvents returns the internal-event view, order preserved.
func (d *DAG) InternalEvents() []Event {
	out := make([]Event, 0, len(d.events))
	for _, e := range d.events {
		if !e.IsInput() {
			out = append(out, e)
		}
	}
	return out
}

// AtomicInputEvents groups input events into atoms: a Failure and its
// matching Recovery (by EntityKey) collapse into one atom; everything else
// is a singleton atom. Order follows the Failure's (or the singleton's)
// position in the DAG.
func (d *DAG) AtomicInputEvents() []Atom {
	var atoms []Atom
	indexByLabel := map[string]int{}
	pendingFailure := map[string]string{} // entity key -> failure label

	for _, e := range d.events {
		if !e.IsInput() {
			continue
		}
		info := Info(e.Cls)
		switch info.PairKind {
		case PairFailure:
			pendingFailure[e.EntityKey()] = e.Label
			indexByLabel[e.Label] = len(atoms)
			atoms = append(atoms, Atom{Labels: []string{e.Label}})
		case PairRecovery:
			key := e.EntityKey()
			if failureLabel, ok := pendingFailure[key]; ok {
				idx := indexByLabel[failureLabel]
				atoms[idx].Labels = append(atoms[idx].Labels, e.Label)
				delete(pendingFailure, key)
			} else {
				atoms = append(atoms, Atom{Labels: []string{e.Label}})
			}
		default:
			atoms = append(atoms, Atom{Labels: []string{e.Label}})
		}
	}
	return atoms
}

// InputSubset returns a new DAG containing the original internal events
// plus only the input events whose label is in keep. Order is preserved
// (spec.md §4.A "input_subset").
func (d *DAG) InputSubset(keep map[string]bool) *DAG {
	out := make([]Event, 0, len(d.events))
	for _, e := range d.events {
		if e.IsInput() {
			if keep[e.Label] {
				out = append(out, e)
			}
			continue
		}
		out = append(out, e)
	}
	return d.derive(out)
}

// InputComplement returns a new DAG containing the original internal events
// plus only the input events whose label is NOT in remove
// (spec.md §4.A "input_complement").
func (d *DAG) InputComplement(remove map[string]bool) *DAG {
	out := make([]Event, 0, len(d.events))
	for _, e := range d.events {
		if e.IsInput() {
			if remove[e.Label] {
				continue
			}
			out = append(out, e)
			continue
		}
		out = append(out, e)
	}
	return d.derive(out)
}

// AtomicInputSubset is InputSubset over atoms rather than individual
// labels: keeping an atom keeps every label in it, so a surviving Recovery
// always keeps its Failure and vice versa.
func (d *DAG) AtomicInputSubset(keep []Atom) *DAG {
	labels := map[string]bool{}
	for _, a := range keep {
		for _, l := range a.Labels {
			labels[l] = true
		}
	}
	return d.InputSubset(labels)
}

// AtomicInputComplement is InputComplement over atoms.
func (d *DAG) AtomicInputComplement(remove []Atom) *DAG {
	labels := map[string]bool{}
	for _, a := range remove {
		for _, l := range a.Labels {
			labels[l] = true
		}
	}
	return d.InputComplement(labels)
}

// InsertAtomicInputs returns a new DAG containing this DAG's own input
// events unioned with atoms, re-filtered from the root superset so
// chronological order is preserved. Used by the O(n) MCS search to test a
// candidate half against the inputs it is carrying over from the other half
// (spec.md §4.G "EfficientMCSFinder").
func (d *DAG) InsertAtomicInputs(atoms []Atom) *DAG {
	keep := map[string]bool{}
	for _, e := range d.events {
		if e.IsInput() {
			keep[e.Label] = true
		}
	}
	for _, a := range atoms {
		for _, l := range a.Labels {
			keep[l] = true
		}
	}
	out := make([]Event, 0, len(d.all))
	for _, e := range d.all {
		if e.IsInput() {
			if keep[e.Label] {
				out = append(out, e)
			}
			continue
		}
		out = append(out, e)
	}
	return d.derive(out)
}

// MarkInvalidInputSequences drops any surviving Recovery whose matching
// Failure is absent (spec.md §4.A). Returns a new DAG.
func (d *DAG) MarkInvalidInputSequences() *DAG {
	failurePresent := map[string]bool{}
	for _, e := range d.events {
		if e.IsInput() && Info(e.Cls).PairKind == PairFailure {
			failurePresent[e.EntityKey()] = true
		}
	}
	out := make([]Event, 0, len(d.events))
	for _, e := range d.events {
		if e.IsInput() && Info(e.Cls).PairKind == PairRecovery && !failurePresent[e.EntityKey()] {
			continue
		}
		out = append(out, e)
	}
	return d.derive(out)
}

// FilterUnsupportedInputTypes drops events whose class was never
// registered (spec.md §4.A). Internal events are always considered
// supported since their classes are fixed (spec.md §3).
func (d *DAG) FilterUnsupportedInputTypes() *DAG {
	out := make([]Event, 0, len(d.events))
	for _, e := range d.events {
		if !Known(e.Cls) {
			continue
		}
		out = append(out, e)
	}
	return d.derive(out)
}

// SetEventsAsTimedOut flags labels so a later FilterTimeouts call removes
// them (spec.md §4.A "set_events_as_timed_out").
func (d *DAG) SetEventsAsTimedOut(labels []string) {
	if d.timedOut == nil {
		d.timedOut = make(map[string]bool, len(labels))
	}
	for _, l := range labels {
		d.timedOut[l] = true
	}
}

// FilterTimeouts returns a new DAG with events flagged by
// SetEventsAsTimedOut removed.
func (d *DAG) FilterTimeouts() *DAG {
	out := make([]Event, 0, len(d.events))
	for _, e := range d.events {
		if d.timedOut[e.Label] {
			continue
		}
		out = append(out, e)
	}
	return d.derive(out)
}

// LastInvariantViolation returns the last InvariantViolation event in the
// DAG, if any.
func (d *DAG) LastInvariantViolation() (Event, bool) {
	for i := len(d.events) - 1; i >= 0; i-- {
		if d.events[i].Cls == ClassInvariantViolation {
			return d.events[i], true
		}
	}
	return Event{}, false
}

// Validate checks the invariants of spec.md §3: unique labels,
// non-decreasing logical time, every surviving Recovery preceded by its
// Failure, every internal event's fingerprint non-empty, and at least one
// InvariantViolation present.
func (d *DAG) Validate() error {
	seen := make(map[string]bool, len(d.events))
	failureSeen := map[string]bool{}
	hasViolation := false
	haveLast := false
	var last Time

	for _, e := range d.events {
		if seen[e.Label] {
			return errs.NewForEvent("event.Validate", e.Label, errs.KindCorruptTrace,
				fmt.Sprintf("duplicate event label %q", e.Label))
		}
		seen[e.Label] = true

		if haveLast && e.T.Compare(last) < 0 {
			return errs.NewForEvent("event.Validate", e.Label, errs.KindCorruptTrace,
				"logical time decreased")
		}
		last = e.T
		haveLast = true

		if e.IsInput() {
			switch Info(e.Cls).PairKind {
			case PairFailure:
				failureSeen[e.EntityKey()] = true
			case PairRecovery:
				if !failureSeen[e.EntityKey()] {
					return errs.NewForEvent("event.Validate", e.Label, errs.KindCorruptTrace,
						"recovery without a preceding failure")
				}
			}
			continue
		}

		if e.Cls == ClassInvariantViolation {
			hasViolation = true
			continue
		}
		if e.FP.Empty() {
			return errs.NewForEvent("event.Validate", e.Label, errs.KindCorruptTrace,
				"internal event has an empty fingerprint")
		}
	}

	if !hasViolation {
		return errs.New("event.Validate", errs.KindCorruptTrace, "no InvariantViolation present in DAG")
	}
	return nil
}

// SplitList partitions labels into n roughly-equal contiguous chunks. If
// n > len(labels), it returns one-element chunks and stops there
// (spec.md §4.A "Split").
func SplitList(labels []string, n int) [][]string {
	if n <= 0 {
		n = 1
	}
	if n > len(labels) {
		out := make([][]string, len(labels))
		for i, l := range labels {
			out[i] = []string{l}
		}
		return out
	}
	out := make([][]string, n)
	base := len(labels) / n
	rem := len(labels) % n
	idx := 0
	for i := 0; i < n; i++ {
		size := base
		if i < rem {
			size++
		}
		out[i] = append([]string(nil), labels[idx:idx+size]...)
		idx += size
	}
	return out
}

// SplitAtoms is SplitList over atoms, used by the ddmin driver which
// partitions atomic input events rather than raw labels.
func SplitAtoms(atoms []Atom, n int) [][]Atom {
	if n <= 0 {
		n = 1
	}
	if n > len(atoms) {
		out := make([][]Atom, len(atoms))
		for i, a := range atoms {
			out[i] = []Atom{a}
		}
		return out
	}
	out := make([][]Atom, n)
	base := len(atoms) / n
	rem := len(atoms) % n
	idx := 0
	for i := 0; i < n; i++ {
		size := base
		if i < rem {
			size++
		}
		out[i] = append([]Atom(nil), atoms[idx:idx+size]...)
		idx += size
	}
	return out
}
