package ddmin

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sts-go/sts/internal/config"
	"github.com/sts-go/sts/internal/event"
)

func TestPrecomputeCacheOrderSensitive(t *testing.T) {
	c := NewPrecomputeCache()
	assert.False(t, c.AlreadyDone([]string{"a", "b"}))
	c.Update([]string{"a", "b"})
	assert.True(t, c.AlreadyDone([]string{"a", "b"}))
	assert.False(t, c.AlreadyDone([]string{"b", "a"}))
}

func TestRuntimeStatsMergeClientDict(t *testing.T) {
	parent := NewRuntimeStats(0)
	parent.RecordIterationSize(10)
	parent.RecordViolationFound(0)

	child := NewRuntimeStats(1)
	child.RecordIterationSize(5)
	child.RecordViolationFound(0)
	child.RecordNewInternalEvents([]string{"e1"})

	parent.MergeClientDict(child)

	assert.Equal(t, 10, parent.IterationSize[0])
	assert.Equal(t, 5, parent.IterationSize[1])
	assert.Equal(t, 2, parent.ViolationFoundInRun[0])
	assert.Equal(t, []string{"e1"}, parent.NewInternalEvents[1])
}

func mkFailure(label string, dpid int64, t event.Time) event.Event {
	fields := map[string]any{"dpid": float64(dpid)}
	extra := map[string]json.RawMessage{}
	for k, v := range fields {
		b, _ := json.Marshal(v)
		extra[k] = b
	}
	return event.Event{
		Label: label, T: t, Cls: event.ClassSwitchFailure,
		FP:    event.Fingerprint{Class: event.ClassSwitchFailure, Payload: fields},
		Extra: extra,
	}
}

func mkViolation(label string, t event.Time) event.Event {
	return event.Event{Label: label, T: t, Cls: event.ClassInvariantViolation,
		FP: event.Fingerprint{Class: event.ClassInvariantViolation, Payload: []any{"bug"}}}
}

// buildDag constructs a trace with five independent SwitchFailure inputs
// followed by a single InvariantViolation marker, where only the failure of
// dpid 3 actually matters.
func buildDag() *event.DAG {
	events := []event.Event{
		mkFailure("s1", 1, event.Time{Seconds: 1}),
		mkFailure("s2", 2, event.Time{Seconds: 2}),
		mkFailure("s3", 3, event.Time{Seconds: 3}),
		mkFailure("s4", 4, event.Time{Seconds: 4}),
		mkFailure("s5", 5, event.Time{Seconds: 5}),
		mkViolation("v1", event.Time{Seconds: 6}),
	}
	return event.NewDAG(events)
}

// replayRequiresS3 reproduces the bug iff dag's input events include s3.
func replayRequiresS3(ctx context.Context, dag *event.DAG, label string) (bool, error) {
	for _, e := range dag.InputEvents() {
		if e.Label == "s3" {
			return true, nil
		}
	}
	return false, nil
}

func TestDdminFindsMinimalCause(t *testing.T) {
	cfg := config.Driver{NoViolationVerificationRuns: 1}
	f := NewFinder(cfg, replayRequiresS3, nil, nil, nil, nil)

	result, err := f.Run(context.Background(), buildDag())
	require.NoError(t, err)

	inputs := result.DAG.InputEvents()
	require.Len(t, inputs, 1)
	assert.Equal(t, "s3", inputs[0].Label)
	assert.Equal(t, 4, result.InputsPruned)
}

func TestEfficientDdminFindsMinimalCause(t *testing.T) {
	cfg := config.Driver{NoViolationVerificationRuns: 1, Efficient: true}
	f := NewFinder(cfg, replayRequiresS3, nil, nil, nil, nil)

	result, err := f.Run(context.Background(), buildDag())
	require.NoError(t, err)

	inputs := result.DAG.InputEvents()
	require.Len(t, inputs, 1)
	assert.Equal(t, "s3", inputs[0].Label)
}

func TestDdminSkipsAlreadyComputedSubsets(t *testing.T) {
	calls := 0
	replay := func(ctx context.Context, dag *event.DAG, label string) (bool, error) {
		calls++
		return replayRequiresS3(ctx, dag, label)
	}

	cfg := config.Driver{NoViolationVerificationRuns: 1}
	f := NewFinder(cfg, replay, nil, nil, nil, nil)

	_, err := f.Run(context.Background(), buildDag())
	require.NoError(t, err)
	assert.True(t, f.cache.Size() > 0)
	// Every distinct input sequence was replayed exactly once...
	assert.Equal(t, f.cache.Size(), calls)
	// ...and presenting an already-tried sequence again is skipped.
	assert.True(t, f.alreadyDoneOrEmpty(buildDag().InputSubset(map[string]bool{"s1": true, "s2": true})))
}
