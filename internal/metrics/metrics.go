// Package metrics tracks delta-debugging search statistics with the same
// atomic-counter-plus-snapshot shape the teacher's metrics.go used for
// device I/O throughput: counters are updated lock-free from whichever
// goroutine records a trial, and Snapshot computes the derived rates
// (trials/sec, average latency, percentiles) once, on read.
package metrics

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets are the trial-latency histogram boundaries in
// nanoseconds, log-spaced from 1ms (a trivial in-process replay) to
// 100s (a wedged controller the driver is about to kill).
var LatencyBuckets = []uint64{
	1_000_000,     // 1ms
	10_000_000,    // 10ms
	100_000_000,   // 100ms
	1_000_000_000, // 1s
	10_000_000_000, // 10s
	100_000_000_000, // 100s
}

const numLatencyBuckets = 6

// Search tracks one delta-debugging search run's trial counters.
type Search struct {
	TrialsRun        atomic.Uint64
	ViolationsFound   atomic.Uint64
	TrialErrors      atomic.Uint64
	InputsPrunedTotal atomic.Uint64

	TotalLatencyNs atomic.Uint64
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewSearch builds a Search with StartTime set to now.
func NewSearch() *Search {
	s := &Search{}
	s.StartTime.Store(time.Now().UnixNano())
	return s
}

// RecordTrial records one checkViolation replay attempt.
func (s *Search) RecordTrial(latencyNs uint64, violation bool, err error) {
	s.TrialsRun.Add(1)
	if err != nil {
		s.TrialErrors.Add(1)
	}
	if violation {
		s.ViolationsFound.Add(1)
	}
	s.TotalLatencyNs.Add(latencyNs)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			s.LatencyBuckets[i].Add(1)
		}
	}
}

// RecordPrune accumulates the number of input events a reduction step
// removed.
func (s *Search) RecordPrune(n int) {
	if n > 0 {
		s.InputsPrunedTotal.Add(uint64(n))
	}
}

// Stop marks the search as finished.
func (s *Search) Stop() {
	s.StopTime.Store(time.Now().UnixNano())
}

// Snapshot is a point-in-time read of Search's derived statistics.
type Snapshot struct {
	TrialsRun         uint64
	ViolationsFound   uint64
	TrialErrors       uint64
	InputsPrunedTotal uint64

	AvgLatencyNs  uint64
	TrialsPerSec  float64
	UptimeNs      uint64
	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyHistogram [numLatencyBuckets]uint64
}

// Snapshot computes derived statistics from s's current counter values.
func (s *Search) Snapshot() Snapshot {
	snap := Snapshot{
		TrialsRun:         s.TrialsRun.Load(),
		ViolationsFound:   s.ViolationsFound.Load(),
		TrialErrors:       s.TrialErrors.Load(),
		InputsPrunedTotal: s.InputsPrunedTotal.Load(),
	}

	totalLatency := s.TotalLatencyNs.Load()
	if snap.TrialsRun > 0 {
		snap.AvgLatencyNs = totalLatency / snap.TrialsRun
	}

	start := s.StartTime.Load()
	stop := s.StopTime.Load()
	if stop > 0 {
		snap.UptimeNs = uint64(stop - start)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - start)
	}
	if snap.UptimeNs > 0 {
		snap.TrialsPerSec = float64(snap.TrialsRun) / (float64(snap.UptimeNs) / 1e9)
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = s.LatencyBuckets[i].Load()
	}
	if snap.TrialsRun > 0 {
		snap.LatencyP50Ns = s.percentile(0.50)
		snap.LatencyP99Ns = s.percentile(0.99)
	}
	return snap
}

// percentile estimates the latency at the given percentile (0.0-1.0) by
// linear interpolation between histogram buckets.
func (s *Search) percentile(p float64) uint64 {
	total := s.TrialsRun.Load()
	if total == 0 {
		return 0
	}
	target := uint64(float64(total) * p)
	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		count := s.LatencyBuckets[i].Load()
		if count >= target {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = s.LatencyBuckets[i-1].Load()
			}
			if count == prevCount {
				return bucket
			}
			fraction := float64(target-prevCount) / float64(count-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}
	return LatencyBuckets[numLatencyBuckets-1]
}

// Observer lets callers outside internal/ddmin follow search progress,
// e.g. for a live CLI status line.
type Observer interface {
	ObserveTrial(latencyNs uint64, violation bool, err error)
	ObservePrune(n int)
}

// NoOpObserver discards every observation.
type NoOpObserver struct{}

func (NoOpObserver) ObserveTrial(uint64, bool, error) {}
func (NoOpObserver) ObservePrune(int)                 {}

// SearchObserver implements Observer by recording into a Search.
type SearchObserver struct {
	search *Search
}

// NewSearchObserver builds an Observer that records into search.
func NewSearchObserver(search *Search) *SearchObserver {
	return &SearchObserver{search: search}
}

func (o *SearchObserver) ObserveTrial(latencyNs uint64, violation bool, err error) {
	o.search.RecordTrial(latencyNs, violation, err)
}

func (o *SearchObserver) ObservePrune(n int) {
	o.search.RecordPrune(n)
}

var _ Observer = (*SearchObserver)(nil)
var _ Observer = NoOpObserver{}
