// Package scheduler matches observed internal events against expected ones
// during replay: for each expected internal event the replay engine hands
// it, it waits for an observed event with an equal fingerprint, with
// per-class timeouts and FIFO fingerprint matching (spec.md §4.C). Input
// events are injected by internal/replay, not by this package. Grounded on
// the teacher's internal/queue/runner.go single-event-loop-per-resource shape (a Config, a per-tag state
// machine, an ioLoop polling completions) — reimplemented here over
// logical events instead of io_uring completions, since the unsafe/mmap
// plumbing has no analog in this domain.
package scheduler

import (
	"time"

	"github.com/sts-go/sts/internal/config"
	"github.com/sts-go/sts/internal/event"
	"github.com/sts-go/sts/internal/logging"
)

// pollInterval is how often AwaitMatch re-polls the environment while
// waiting for a match, mirroring the teacher's ioLoop re-arm cadence.
const pollInterval = time.Millisecond

// Environment is the scheduler's non-blocking I/O boundary, matching
// spec.md §5's single cooperative event loop: PollObserved never blocks,
// Sleep is how the loop cedes time between polls.
type Environment interface {
	// PollObserved returns the next observed internal event if one is
	// available right now.
	PollObserved() (event.Event, bool)
	Sleep(d time.Duration)
	Now() time.Time
}

// MatchedPair is an expected event's label paired with the observed event
// that satisfied it.
type MatchedPair struct {
	ExpectedLabel string
	Observed      event.Event
}

// MatchOutcome is the result of one AwaitMatch call.
type MatchOutcome struct {
	Matched  bool
	TimedOut bool
	Observed event.Event
}

// Report summarizes everything the scheduler observed across a replay,
// handed back to the replay engine as the D tuple's scheduler-owned
// fields (spec.md §4.D).
type Report struct {
	Matched     []MatchedPair
	TimedOut    []string
	Unexpected  []event.Event
	Early       []event.Event
	Ambiguities int
}

// Scheduler holds the pending-observed-event index and accumulated
// classification state for one replay trial. Not safe for concurrent use
// from multiple goroutines — the concurrency model is a single event loop
// per simulation (spec.md §5).
type Scheduler struct {
	cfg    config.Scheduler
	logger *logging.Logger

	pending map[uint64][]event.Event

	matched              []MatchedPair
	timedOut             []string
	unexpectedCandidates []event.Event
	earlyCandidates      []event.Event
	ambiguities          int
}

// New builds a Scheduler from its configuration and a logger; pass
// logging.Default() if the caller has no dedicated logger.
func New(cfg config.Scheduler, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{cfg: cfg, logger: logger.Named("scheduler"), pending: map[uint64][]event.Event{}}
}

// Observe buffers an observed internal event for later matching. Safe to
// call before the corresponding AwaitMatch, since an observed event may
// satisfy a later expected event of the same fingerprint.
func (s *Scheduler) Observe(e event.Event) {
	digest := e.FP.Digest()
	s.pending[digest] = append(s.pending[digest], e)
}

// tryClaim removes and returns the first buffered observed event whose
// fingerprint equals expected's, recording an ambiguity if more than one
// candidate was available (spec.md §4.C "Matching policy").
func (s *Scheduler) tryClaim(expected event.Event) (event.Event, bool) {
	digest := expected.FP.Digest()
	bucket := s.pending[digest]
	idx := -1
	matching := 0
	for i, cand := range bucket {
		if cand.FP.Equal(expected.FP) {
			matching++
			if idx < 0 {
				idx = i
			}
		}
	}
	if idx < 0 {
		return event.Event{}, false
	}
	if matching > 1 {
		s.ambiguities++
	}
	claimed := bucket[idx]
	rest := make([]event.Event, 0, len(bucket)-1)
	rest = append(rest, bucket[:idx]...)
	rest = append(rest, bucket[idx+1:]...)
	if len(rest) == 0 {
		delete(s.pending, digest)
	} else {
		s.pending[digest] = rest
	}
	return claimed, true
}

// AwaitMatch waits up to the per-class timeout for an observed event
// matching expected's fingerprint. Every observed event polled while
// waiting that is not an immediate match is buffered and provisionally
// classified as unexpected (and early, if it precedes expected's logical
// time); Report() later drops any that a subsequent AwaitMatch ends up
// claiming.
func (s *Scheduler) AwaitMatch(env Environment, expected event.Event) MatchOutcome {
	if obs, ok := s.tryClaim(expected); ok {
		s.matched = append(s.matched, MatchedPair{expected.Label, obs})
		return MatchOutcome{Matched: true, Observed: obs}
	}

	timeout := time.Duration(s.cfg.PerClassTimeout(string(expected.Cls)) * float64(time.Second))
	deadline := env.Now().Add(timeout)

	for {
		obs, ok := env.PollObserved()
		if ok {
			s.Observe(obs)
			if !obs.FP.Equal(expected.FP) {
				s.unexpectedCandidates = append(s.unexpectedCandidates, obs)
				if obs.T.Before(expected.T) {
					s.earlyCandidates = append(s.earlyCandidates, obs)
				}
			}
			if cand, ok := s.tryClaim(expected); ok {
				s.matched = append(s.matched, MatchedPair{expected.Label, cand})
				return MatchOutcome{Matched: true, Observed: cand}
			}
			continue
		}
		if !env.Now().Before(deadline) {
			s.timedOut = append(s.timedOut, expected.Label)
			s.logger.Warn("event timed out", "label", expected.Label, "class", expected.Cls)
			return MatchOutcome{TimedOut: true}
		}
		env.Sleep(pollInterval)
	}
}

// Report returns the accumulated classification for this trial.
func (s *Scheduler) Report() Report {
	matchedObserved := map[string]bool{}
	for _, m := range s.matched {
		matchedObserved[m.Observed.Label] = true
	}

	var unexpected, early []event.Event
	seenUnexpected := map[string]bool{}
	for _, u := range s.unexpectedCandidates {
		if matchedObserved[u.Label] || seenUnexpected[u.Label] {
			continue
		}
		seenUnexpected[u.Label] = true
		unexpected = append(unexpected, u)
	}
	seenEarly := map[string]bool{}
	for _, e := range s.earlyCandidates {
		if matchedObserved[e.Label] || seenEarly[e.Label] {
			continue
		}
		seenEarly[e.Label] = true
		early = append(early, e)
	}

	return Report{
		Matched:     s.matched,
		TimedOut:    s.timedOut,
		Unexpected:  unexpected,
		Early:       early,
		Ambiguities: s.ambiguities,
	}
}
