package trial

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sts-go/sts/internal/config"
	"github.com/sts-go/sts/internal/event"
	"github.com/sts-go/sts/internal/scheduler"
	"github.com/sts-go/sts/internal/simtest"
	"github.com/sts-go/sts/internal/simulation"
)

// TestMain implements the standard Go "helper subprocess" pattern (as used
// by the stdlib's own os/exec tests): when ChildEnvVar is set, this test
// binary itself becomes the trial child instead of running any tests.
func TestMain(m *testing.M) {
	if os.Getenv(ChildEnvVar) == "1" {
		runHelperChild()
		return
	}
	os.Exit(m.Run())
}

func runHelperChild() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := RunChild(ctx, os.Stdin, os.Stdout, &fakeBuilder{}, config.Default().Scheduler, nil); err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}

type fakeBuilder struct{}

func (b *fakeBuilder) BuildSimulation(ctx context.Context, kind Kind) (simulation.Simulation, error) {
	sim := simtest.NewFakeSimulation()
	sim.Topo.AddSwitch(1)
	return sim, nil
}

func (b *fakeBuilder) BuildEnvironment(sim simulation.Simulation) scheduler.Environment {
	return &noopEnv{now: time.Unix(0, 0)}
}

func (b *fakeBuilder) BuildChecker(sim simulation.Simulation) simulation.InvariantChecker {
	target := event.Fingerprint{Class: event.ClassInvariantViolation, Payload: "F"}
	return simtest.NewFakeInvariantChecker([]event.Fingerprint{target})
}

type noopEnv struct{ now time.Time }

func (n *noopEnv) PollObserved() (event.Event, bool) { return event.Event{}, false }
func (n *noopEnv) Sleep(d time.Duration)             { n.now = n.now.Add(d) }
func (n *noopEnv) Now() time.Time                    { return n.now }

func mkSwitchFailure(label string, dpid int64, t event.Time) event.Event {
	extra := map[string]json.RawMessage{}
	b, _ := json.Marshal(float64(dpid))
	extra["dpid"] = b
	return event.Event{
		Label: label, T: t, Cls: event.ClassSwitchFailure,
		FP:    event.Fingerprint{Class: event.ClassSwitchFailure},
		Extra: extra,
	}
}

func TestDriverRunReplaySpawnsChildAndReturnsResult(t *testing.T) {
	exe, err := os.Executable()
	require.NoError(t, err)

	d := NewDriver(exe, nil, nil)
	req := Request{
		Kind: KindReplay,
		Trace: []event.Event{
			mkSwitchFailure("i1", 1, event.Time{Seconds: 0}),
			{Label: "v1", T: event.Time{Seconds: 1}, Cls: event.ClassInvariantViolation,
				FP: event.Fingerprint{Class: event.ClassInvariantViolation, Payload: []any{"F"}}},
		},
		BugSignature: event.Fingerprint{Class: event.ClassInvariantViolation, Payload: "F"},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	resp, err := d.Run(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, resp.Replay)
	require.Len(t, resp.Replay.Violations, 1)
	assert.Equal(t, "F", resp.Replay.Violations[0].Payload)
}

func TestDriverRunKillsChildOnContextCancel(t *testing.T) {
	exe, err := os.Executable()
	require.NoError(t, err)

	d := NewDriver(exe, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = d.Run(ctx, Request{Kind: KindReplay})
	assert.Error(t, err)
}
