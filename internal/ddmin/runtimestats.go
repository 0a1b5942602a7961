package ddmin

import (
	"sync"
	"time"

	"github.com/sts-go/sts/internal/event"
)

// RuntimeStats tracks statistics and configuration information of a
// delta-debugging run (spec.md §4.G "Runtime stats"). A distinct
// RuntimeStats exists per search-tree node (subsequenceID 0 for the root);
// MergeClientDict folds a child's observations into the parent's, the way
// the original merges stats returned over its RPC boundary.
type RuntimeStats struct {
	mu sync.Mutex

	SubsequenceID int

	// Per-subsequence observations, keyed by SubsequenceID.
	IterationSize           map[int]int
	ViolationFoundInRun     map[int]int
	NewInternalEvents       map[int][]string
	BufferedMessageReceipts map[int][]string
	EarlyInternalEvents     map[int][]string
	TimedOutEvents          map[int][]string
	MatchedEvents           map[int][]string

	// Parent-only bookkeeping.
	TotalInputs                   int
	TotalEvents                   int
	OriginalDurationSeconds       float64
	ReplayStart, ReplayEnd        time.Time
	ReplayDurationSeconds         float64
	PruneStart, PruneEnd          time.Time
	PruneDurationSeconds          float64
	InitialVerificationRunsNeeded int
	Peeker                        string
	Config                        string
	TotalReplays                  int
	TotalInputsReplayed           int
}

// NewRuntimeStats returns an empty RuntimeStats for the given search-tree
// node. subsequenceID is 0 for the root (parent) process.
func NewRuntimeStats(subsequenceID int) *RuntimeStats {
	return &RuntimeStats{
		SubsequenceID:           subsequenceID,
		IterationSize:           map[int]int{},
		ViolationFoundInRun:     map[int]int{},
		NewInternalEvents:       map[int][]string{},
		BufferedMessageReceipts: map[int][]string{},
		EarlyInternalEvents:     map[int][]string{},
		TimedOutEvents:          map[int][]string{},
		MatchedEvents:           map[int][]string{},
	}
}

// SetDagStats records the input/event count and wall-clock span of dag.
func (s *RuntimeStats) SetDagStats(dag *event.DAG) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TotalInputs = len(dag.InputEvents())
	s.TotalEvents = dag.Len()
	events := dag.Events()
	if len(events) > 0 {
		first, last := events[0].T, events[len(events)-1].T
		s.OriginalDurationSeconds = float64(last.Seconds-first.Seconds) + float64(last.Micros-first.Micros)/1e6
	}
}

func (s *RuntimeStats) RecordReplayStart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ReplayStart = time.Now()
}

func (s *RuntimeStats) RecordReplayEnd() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ReplayEnd = time.Now()
	s.ReplayDurationSeconds = s.ReplayEnd.Sub(s.ReplayStart).Seconds()
}

func (s *RuntimeStats) RecordPruneStart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PruneStart = time.Now()
}

func (s *RuntimeStats) RecordPruneEnd() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PruneEnd = time.Now()
	s.PruneDurationSeconds = s.PruneEnd.Sub(s.PruneStart).Seconds()
}

func (s *RuntimeStats) SetInitialVerificationRunsNeeded(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InitialVerificationRunsNeeded = n
}

func (s *RuntimeStats) SetPeeker(peeker string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Peeker = peeker
}

func (s *RuntimeStats) SetConfig(cfg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Config = cfg
}

// RecordReplayStats should be invoked once per replay, with the number of
// inputs that replay drove.
func (s *RuntimeStats) RecordReplayStats(numberInputsReplayed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TotalReplays++
	s.TotalInputsReplayed += numberInputsReplayed
}

func (s *RuntimeStats) RecordIterationSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.IterationSize[s.SubsequenceID] = n
}

func (s *RuntimeStats) RecordViolationFound(verificationIteration int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ViolationFoundInRun[verificationIteration]++
}

func (s *RuntimeStats) RecordBufferedMessageReceipts(labels []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.BufferedMessageReceipts[s.SubsequenceID] = labels
}

func (s *RuntimeStats) RecordNewInternalEvents(labels []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NewInternalEvents[s.SubsequenceID] = labels
}

func (s *RuntimeStats) RecordEarlyInternalEvents(labels []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.EarlyInternalEvents[s.SubsequenceID] = labels
}

func (s *RuntimeStats) RecordTimedOutEvents(labels []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TimedOutEvents[s.SubsequenceID] = labels
}

func (s *RuntimeStats) RecordMatchedEvents(labels []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MatchedEvents[s.SubsequenceID] = labels
}

// Clone deep-copies s for dumping an intermediate snapshot alongside the
// running aggregate (spec.md §4.G "intermediate MCS dumps").
func (s *RuntimeStats) Clone() *RuntimeStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *s
	clone.IterationSize = copyIntMap(s.IterationSize)
	clone.ViolationFoundInRun = copyIntMap(s.ViolationFoundInRun)
	clone.NewInternalEvents = copyStrListMap(s.NewInternalEvents)
	clone.BufferedMessageReceipts = copyStrListMap(s.BufferedMessageReceipts)
	clone.EarlyInternalEvents = copyStrListMap(s.EarlyInternalEvents)
	clone.TimedOutEvents = copyStrListMap(s.TimedOutEvents)
	clone.MatchedEvents = copyStrListMap(s.MatchedEvents)
	return &clone
}

// MergeClientDict folds a child subsequence's observations into s: per-key
// counters sum, per-subsequence maps union by key (spec.md §4.G
// "merge_client_dict" — a child's subsequence ids never collide with the
// parent's own, so union is safe).
func (s *RuntimeStats) MergeClientDict(child *RuntimeStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	child.mu.Lock()
	defer child.mu.Unlock()

	for k, v := range child.IterationSize {
		s.IterationSize[k] = v
	}
	for k, v := range child.ViolationFoundInRun {
		s.ViolationFoundInRun[k] += v
	}
	for k, v := range child.NewInternalEvents {
		s.NewInternalEvents[k] = v
	}
	for k, v := range child.BufferedMessageReceipts {
		s.BufferedMessageReceipts[k] = v
	}
	for k, v := range child.EarlyInternalEvents {
		s.EarlyInternalEvents[k] = v
	}
	for k, v := range child.TimedOutEvents {
		s.TimedOutEvents[k] = v
	}
	for k, v := range child.MatchedEvents {
		s.MatchedEvents[k] = v
	}
}

// Rekey moves s's per-subsequence observations from its current
// SubsequenceID to newID. A trial child builds its own RuntimeStats
// fragment in isolation and always records under subsequence 0 — it has
// no notion of the parent's search-tree numbering — so the parent calls
// Rekey to assign the real id before MergeClientDict folds the fragment
// in (spec.md §4.G "merge_client_dict").
func (s *RuntimeStats) Rekey(newID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.SubsequenceID
	if old == newID {
		return
	}
	moveIntKey(s.IterationSize, old, newID)
	moveIntKey(s.ViolationFoundInRun, old, newID)
	moveStrListKey(s.NewInternalEvents, old, newID)
	moveStrListKey(s.BufferedMessageReceipts, old, newID)
	moveStrListKey(s.EarlyInternalEvents, old, newID)
	moveStrListKey(s.TimedOutEvents, old, newID)
	moveStrListKey(s.MatchedEvents, old, newID)
	s.SubsequenceID = newID
}

func moveIntKey(m map[int]int, old, newID int) {
	if v, ok := m[old]; ok {
		delete(m, old)
		m[newID] = v
	}
}

func moveStrListKey(m map[int][]string, old, newID int) {
	if v, ok := m[old]; ok {
		delete(m, old)
		m[newID] = v
	}
}

func copyIntMap(m map[int]int) map[int]int {
	out := make(map[int]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyStrListMap(m map[int][]string) map[int][]string {
	out := make(map[int][]string, len(m))
	for k, v := range m {
		out[k] = append([]string(nil), v...)
	}
	return out
}
