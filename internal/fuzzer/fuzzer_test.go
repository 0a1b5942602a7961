package fuzzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sts-go/sts/internal/config"
	"github.com/sts-go/sts/internal/event"
	"github.com/sts-go/sts/internal/oracle"
	"github.com/sts-go/sts/internal/simtest"
)

func allRatesZero() config.Fuzzer {
	p := config.Default().Fuzzer
	p.Seed = 1
	p.Steps = 5
	p.CheckInterval = 0
	p.TraceInterval = 0
	p.DataplaneDelayRate = 0
	p.DataplaneDropRate = 0
	p.ControlplaneBlockRate = 0
	p.ControlplaneUnblockRate = 0
	p.OFPMessageReceiptRate = 0
	p.SwitchFailureRate = 0
	p.SwitchRecoveryRate = 0
	p.LinkFailureRate = 0
	p.LinkRecoveryRate = 0
	p.TrafficGenerationRate = 0
	p.ControllerFailureRate = 0
	p.ControllerRecoveryRate = 0
	p.HostMigrationRate = 0
	return p
}

func TestRunAllRatesZeroProducesNoEvents(t *testing.T) {
	sim := simtest.NewFakeSimulation()
	sim.Topo.AddSwitch(1)

	f := New(sim, allRatesZero(), nil, nil)
	result, err := f.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, result.Events)
	assert.Equal(t, 5, result.Rounds)
	assert.Equal(t, 1, sim.BootstrapCalls)
	assert.Equal(t, 1, sim.CleanUpCalls)
}

func TestRunSwitchFailureRateOneCrashesEverySwitch(t *testing.T) {
	sim := simtest.NewFakeSimulation()
	sim.Topo.AddSwitch(1)
	sim.Topo.AddSwitch(2)

	params := allRatesZero()
	params.Steps = 1
	params.SwitchFailureRate = 1.0

	f := New(sim, params, nil, nil)
	result, err := f.Run(context.Background(), 0)
	require.NoError(t, err)

	assert.ElementsMatch(t, []int64{1, 2}, sim.Topo.FailedSwitches())
	assert.Len(t, result.Events, 2)
	for _, e := range result.Events {
		assert.Equal(t, event.ClassSwitchFailure, e.Cls)
	}
}

func TestRunDeterministicAcrossRunsWithSameSeed(t *testing.T) {
	build := func() *simtest.FakeSimulation {
		sim := simtest.NewFakeSimulation()
		for i := int64(1); i <= 5; i++ {
			sim.Topo.AddSwitch(i)
		}
		sim.Ctrl.AddController(100)
		return sim
	}

	params := config.Default().Fuzzer
	params.Seed = 42
	params.Steps = 20
	params.CheckInterval = 0
	params.TraceInterval = 0

	f1 := New(build(), params, nil, nil)
	r1, err := f1.Run(context.Background(), 0)
	require.NoError(t, err)

	f2 := New(build(), params, nil, nil)
	r2, err := f2.Run(context.Background(), 0)
	require.NoError(t, err)

	require.Equal(t, len(r1.Events), len(r2.Events))
	for i := range r1.Events {
		assert.Equal(t, r1.Events[i].Cls, r2.Events[i].Cls)
		assert.True(t, r1.Events[i].FP.Equal(r2.Events[i].FP))
	}
}

func TestRunHaltsOnViolationWhenConfigured(t *testing.T) {
	sim := simtest.NewFakeSimulation()
	sim.Topo.AddSwitch(1)

	target := event.Fingerprint{Class: event.ClassInvariantViolation, Payload: "F"}
	checker := simtest.NewFakeInvariantChecker([]event.Fingerprint{target})
	o := oracle.New(checker, target)

	params := allRatesZero()
	params.Steps = 10
	params.CheckInterval = 1
	params.HaltOnViolation = true

	f := New(sim, params, o, nil)
	result, err := f.Run(context.Background(), 0)
	require.NoError(t, err)

	assert.True(t, result.Halted)
	assert.Equal(t, 1, result.Rounds)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, "F", result.Violations[0].Payload)
}
