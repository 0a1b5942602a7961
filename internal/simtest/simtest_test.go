package simtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sts-go/sts/internal/simulation"
)

func TestFakeSimulationBootstrapAndCleanUp(t *testing.T) {
	sim := NewFakeSimulation()
	require.NoError(t, sim.Bootstrap(context.Background(), 1.0))
	require.NoError(t, sim.CleanUp(context.Background()))
	assert.Equal(t, 1, sim.BootstrapCalls)
	assert.Equal(t, 1, sim.CleanUpCalls)
}

func TestFakeTopologyViewCrashRecover(t *testing.T) {
	topo := NewFakeTopologyView()
	topo.AddSwitch(1)
	assert.Contains(t, topo.LiveSwitches(), int64(1))

	require.NoError(t, topo.CrashSwitch(1))
	assert.Contains(t, topo.FailedSwitches(), int64(1))
	assert.NotContains(t, topo.LiveSwitches(), int64(1))

	require.NoError(t, topo.RecoverSwitch(1))
	assert.Contains(t, topo.LiveSwitches(), int64(1))
}

func TestFakeTopologyViewLinkSeverRepair(t *testing.T) {
	topo := NewFakeTopologyView()
	l := simulation.Link{SrcDPID: 1, SrcPort: 1, DstDPID: 2, DstPort: 1}
	topo.AddLink(l)
	assert.Contains(t, topo.LiveLinks(), l)

	require.NoError(t, topo.SeverLink(l))
	assert.NotContains(t, topo.LiveLinks(), l)
	assert.Contains(t, topo.CutLinks(), l)

	require.NoError(t, topo.RepairLink(l))
	assert.Contains(t, topo.LiveLinks(), l)
}

func TestFakeInvariantCheckerByCallIndex(t *testing.T) {
	checker := NewFakeInvariantChecker(nil, nil)
	sim := NewFakeSimulation()

	fps, err := checker.Check(context.Background(), sim)
	require.NoError(t, err)
	assert.Empty(t, fps)
	assert.Equal(t, 1, checker.Calls())
}
