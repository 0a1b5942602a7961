package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTrialAccumulatesCountersAndHistogram(t *testing.T) {
	s := NewSearch()
	s.RecordTrial(5_000_000, false, nil)
	s.RecordTrial(2_000_000_000, true, nil)
	s.RecordTrial(1_000_000, false, errors.New("boom"))
	s.Stop()

	snap := s.Snapshot()
	assert.EqualValues(t, 3, snap.TrialsRun)
	assert.EqualValues(t, 1, snap.ViolationsFound)
	assert.EqualValues(t, 1, snap.TrialErrors)
	require.Greater(t, snap.AvgLatencyNs, uint64(0))
	assert.Greater(t, snap.LatencyHistogram[numLatencyBuckets-1], uint64(0))
}

func TestRecordPruneIgnoresNonPositive(t *testing.T) {
	s := NewSearch()
	s.RecordPrune(3)
	s.RecordPrune(0)
	s.RecordPrune(-1)
	assert.EqualValues(t, 3, s.Snapshot().InputsPrunedTotal)
}

func TestSearchObserverForwardsToSearch(t *testing.T) {
	s := NewSearch()
	obs := NewSearchObserver(s)
	obs.ObserveTrial(1_000_000, true, nil)
	obs.ObservePrune(4)

	snap := s.Snapshot()
	assert.EqualValues(t, 1, snap.TrialsRun)
	assert.EqualValues(t, 1, snap.ViolationsFound)
	assert.EqualValues(t, 4, snap.InputsPrunedTotal)
}

func TestNoOpObserverDoesNothing(t *testing.T) {
	var obs Observer = NoOpObserver{}
	assert.NotPanics(t, func() {
		obs.ObserveTrial(1, true, nil)
		obs.ObservePrune(5)
	})
}
