package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkInput(label string, cls Class, t Time, fields map[string]any) Event {
	return Event{Label: label, T: t, Cls: cls, FP: Fingerprint{Class: cls}, Extra: rawExtra(fields)}
}

func mkInternal(label string, cls Class, t Time, fp any) Event {
	return Event{Label: label, T: t, Cls: cls, FP: Fingerprint{Class: cls, Payload: fp}, Extra: map[string]json.RawMessage{}}
}

func rawExtra(fields map[string]any) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		b, err := json.Marshal(v)
		if err != nil {
			panic(err)
		}
		out[k] = b
	}
	return out
}

func TestDAGInputInternalViews(t *testing.T) {
	d := NewDAG([]Event{
		mkInput("i1", ClassSwitchFailure, Time{0, 0}, map[string]any{"dpid": float64(1)}),
		mkInternal("c1", ClassControlMessageReceive, Time{0, 100}, map[string]any{"dpid": float64(1)}),
		mkInternal("v1", ClassInvariantViolation, Time{1, 0}, []any{"F"}),
	})
	assert.Len(t, d.InputEvents(), 1)
	assert.Len(t, d.InternalEvents(), 2)
}

func TestAtomicGroupingAndPairPreservation(t *testing.T) {
	// S3: SwitchFailure(1) ... SwitchRecovery(1) ... violation requiring the failure.
	fail := mkInput("fail1", ClassSwitchFailure, Time{0, 0}, map[string]any{"dpid": float64(1)})
	recover_ := mkInput("rec1", ClassSwitchRecovery, Time{1, 0}, map[string]any{"dpid": float64(1)})
	violation := mkInternal("v1", ClassInvariantViolation, Time{2, 0}, []any{"F"})
	d := NewDAG([]Event{fail, recover_, violation})

	atoms := d.AtomicInputEvents()
	require.Len(t, atoms, 1)
	assert.ElementsMatch(t, []string{"fail1", "rec1"}, atoms[0].Labels)

	// Keeping the atom keeps both labels; dropping it drops both.
	kept := d.AtomicInputSubset(atoms)
	assert.Len(t, kept.InputEvents(), 2)

	dropped := d.AtomicInputSubset(nil)
	assert.Len(t, dropped.InputEvents(), 0)
}

func TestMarkInvalidInputSequencesDropsOrphanRecovery(t *testing.T) {
	recover_ := mkInput("rec1", ClassSwitchRecovery, Time{0, 0}, map[string]any{"dpid": float64(1)})
	violation := mkInternal("v1", ClassInvariantViolation, Time{1, 0}, []any{"F"})
	d := NewDAG([]Event{recover_, violation})

	cleaned := d.MarkInvalidInputSequences()
	assert.Len(t, cleaned.InputEvents(), 0)
}

func TestInputSubsetAndComplement(t *testing.T) {
	a := mkInput("a", ClassSwitchFailure, Time{0, 0}, map[string]any{"dpid": float64(1)})
	b := mkInput("b", ClassSwitchFailure, Time{0, 1}, map[string]any{"dpid": float64(2)})
	v := mkInternal("v", ClassInvariantViolation, Time{1, 0}, []any{"F"})
	d := NewDAG([]Event{a, b, v})

	sub := d.InputSubset(map[string]bool{"a": true})
	assert.Equal(t, []string{"a", "v"}, labelsOf(sub.Events()))

	comp := d.InputComplement(map[string]bool{"a": true})
	assert.Equal(t, []string{"b", "v"}, labelsOf(comp.Events()))
}

func TestSplitList(t *testing.T) {
	labels := []string{"a", "b", "c", "d", "e"}

	chunks := SplitList(labels, 2)
	require.Len(t, chunks, 2)
	assert.Equal(t, []string{"a", "b", "c"}, chunks[0])
	assert.Equal(t, []string{"d", "e"}, chunks[1])

	single := SplitList(labels, 10)
	assert.Len(t, single, len(labels))
	for _, c := range single {
		assert.Len(t, c, 1)
	}
}

func TestValidateRequiresInvariantViolation(t *testing.T) {
	d := NewDAG([]Event{
		mkInput("a", ClassSwitchFailure, Time{0, 0}, map[string]any{"dpid": float64(1)}),
	})
	assert.Error(t, d.Validate())
}

func TestValidateDetectsDuplicateLabel(t *testing.T) {
	a := mkInput("dup", ClassSwitchFailure, Time{0, 0}, map[string]any{"dpid": float64(1)})
	v := mkInternal("dup", ClassInvariantViolation, Time{1, 0}, []any{"F"})
	d := NewDAG([]Event{a, v})
	assert.Error(t, d.Validate())
}

func TestValidateDetectsTimeRegression(t *testing.T) {
	a := mkInput("a", ClassSwitchFailure, Time{5, 0}, map[string]any{"dpid": float64(1)})
	v := mkInternal("v", ClassInvariantViolation, Time{1, 0}, []any{"F"})
	d := NewDAG([]Event{a, v})
	assert.Error(t, d.Validate())
}

func TestFilterTimeouts(t *testing.T) {
	a := mkInternal("a", ClassControlMessageReceive, Time{0, 0}, map[string]any{"dpid": float64(1)})
	v := mkInternal("v", ClassInvariantViolation, Time{1, 0}, []any{"F"})
	d := NewDAG([]Event{a, v})
	d.SetEventsAsTimedOut([]string{"a"})
	filtered := d.FilterTimeouts()
	assert.Equal(t, []string{"v"}, labelsOf(filtered.Events()))
}

func TestLastInvariantViolation(t *testing.T) {
	v1 := mkInternal("v1", ClassInvariantViolation, Time{1, 0}, []any{"F"})
	v2 := mkInternal("v2", ClassInvariantViolation, Time{2, 0}, []any{"G"})
	d := NewDAG([]Event{v1, v2})
	last, ok := d.LastInvariantViolation()
	require.True(t, ok)
	assert.Equal(t, "v2", last.Label)
}

func labelsOf(events []Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Label
	}
	return out
}
