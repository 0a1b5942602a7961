package replay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sts-go/sts/internal/config"
	"github.com/sts-go/sts/internal/event"
	"github.com/sts-go/sts/internal/oracle"
	"github.com/sts-go/sts/internal/scheduler"
	"github.com/sts-go/sts/internal/simtest"
)

type noopEnv struct{ now time.Time }

func (n *noopEnv) PollObserved() (event.Event, bool) { return event.Event{}, false }
func (n *noopEnv) Sleep(d time.Duration)              { n.now = n.now.Add(d) }
func (n *noopEnv) Now() time.Time                     { return n.now }

func TestInterpolatedClockMonotonicAndBeforeLandmark(t *testing.T) {
	c := &InterpolatedClock{}
	t1 := c.Next(event.Time{Seconds: 10, Micros: 1000})
	assert.Equal(t, event.Time{Seconds: 10, Micros: 500}, t1)
	assert.True(t, t1.Before(event.Time{Seconds: 10, Micros: 1000}))

	// A landmark earlier than the clamp floor does not regress the clock.
	t2 := c.Next(event.Time{Seconds: 9, Micros: 0})
	assert.False(t, t2.Compare(t1) < 0, "clock must never regress")
}

func TestEngineRunInjectsInputsAndChecksOracle(t *testing.T) {
	sim := simtest.NewFakeSimulation()
	sim.Topo.AddSwitch(1)

	dag := event.NewDAG([]event.Event{
		mkSwitchFailure("i1", 1, event.Time{Seconds: 0}),
		mkViolationMarker("v1", event.Time{Seconds: 1}),
	})

	target := event.Fingerprint{Class: event.ClassInvariantViolation, Payload: "F"}
	checker := simtest.NewFakeInvariantChecker([]event.Fingerprint{target})
	o := oracle.New(checker, target)

	sched := scheduler.New(config.Default().Scheduler, nil)
	eng := NewEngine(nil)

	result, err := eng.Run(context.Background(), dag, sim, sched, &noopEnv{now: time.Unix(0, 0)}, o, SimulationConfig{})
	require.NoError(t, err)

	assert.Contains(t, sim.Topo.FailedSwitches(), int64(1))
	assert.Equal(t, 1, sim.BootstrapCalls)
	assert.Equal(t, 1, sim.CleanUpCalls)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, "F", result.Violations[0].Payload)
}

func mkSwitchFailure(label string, dpid int64, t event.Time) event.Event {
	return event.Event{
		Label: label, T: t, Cls: event.ClassSwitchFailure,
		FP:    event.Fingerprint{Class: event.ClassSwitchFailure, Payload: map[string]any{"dpid": float64(dpid)}},
		Extra: rawExtra(map[string]any{"dpid": float64(dpid)}),
	}
}

func mkViolationMarker(label string, t event.Time) event.Event {
	return event.Event{Label: label, T: t, Cls: event.ClassInvariantViolation,
		FP: event.Fingerprint{Class: event.ClassInvariantViolation, Payload: []any{"F"}}}
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
