// Package sync implements the two sync-callback modes used during fuzzing
// and replay (spec.md §4.H): RecordingCallback answers deterministic-value
// requests with real wall-clock time and logs every controller state
// change (the deterministic-value requests themselves are not recorded);
// ReplayCallback buffers state changes as a multiset for the
// scheduler to match and answers deterministic-value requests with the
// replay engine's interpolated time. Grounded on
// _examples/original_source/sts/control_flow.py's RecordingSyncCallback
// and ReplaySyncCallback.
package sync

import (
	"fmt"
	"sync"
	"time"

	"github.com/sts-go/sts/internal/errs"
	"github.com/sts-go/sts/internal/event"
	"github.com/sts-go/sts/internal/simulation"
)

// Clock answers "what time is it" for RecordingCallback. Abstracted per
// spec.md §9 "Global mutable state" re-architecture note: time is an
// explicit collaborator, not a monkey-patched global.
type Clock interface {
	Now() event.Time
}

// WallClock is the real-time Clock implementation used outside tests.
type WallClock struct{}

func (WallClock) Now() event.Time {
	now := time.Now()
	return event.Time{Seconds: now.Unix(), Micros: int64(now.Nanosecond() / 1000)}
}

// StateChangeSink receives every controller state-change report while
// recording, so the fuzzer can append it to the input log.
type StateChangeSink interface {
	RecordStateChange(cid int64, t event.Time, fp event.Fingerprint, name string, value any)
}

// RecordingCallback is the fuzz-time sync callback: it answers
// deterministic-value requests with the real clock and forwards every
// report to a StateChangeSink for logging.
type RecordingCallback struct {
	clock Clock
	sink  StateChangeSink

	mu      sync.Mutex
	changes []simulation.PendingStateChange
}

// NewRecordingCallback builds a RecordingCallback over clock, appending
// every observed change to sink (may be nil to only buffer in-memory).
func NewRecordingCallback(clock Clock, sink StateChangeSink) *RecordingCallback {
	if clock == nil {
		clock = WallClock{}
	}
	return &RecordingCallback{clock: clock, sink: sink}
}

func (r *RecordingCallback) GetDeterministicValue(name string, args map[string]any) (any, error) {
	now := r.clock.Now()
	if name == "gettimeofday" {
		return now, nil
	}
	return now, nil
}

// ControllerStateChange records an observed state change, both into the
// in-memory buffer (for PendingStateChanges()) and the sink if present.
func (r *RecordingCallback) ControllerStateChange(cid int64, t event.Time, fp event.Fingerprint, name string, value any) {
	r.mu.Lock()
	r.changes = append(r.changes, simulation.PendingStateChange{CID: cid, Time: t, Fingerprint: fp, Name: name, Value: value})
	r.mu.Unlock()
	if r.sink != nil {
		r.sink.RecordStateChange(cid, t, fp, name, value)
	}
}

func (r *RecordingCallback) PendingStateChanges() []simulation.PendingStateChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]simulation.PendingStateChange(nil), r.changes...)
}

// InterpolatedTimeFunc is supplied by the replay engine: it returns the
// synthetic "now", positioned just before the next landmark event
// (spec.md §4.D).
type InterpolatedTimeFunc func() (event.Time, error)

// ReplayCallback is the replay-time sync callback. It buffers state
// changes as a multiset keyed by (cid, name, fingerprint-digest) for
// fingerprint matching, answers gettimeofday with interpolated time, and
// fails unsupported deterministic-value names.
//
// Pass-through mode mirrors the original's set_pass_through/
// unset_pass_through: during bootstrap, state changes are not buffered —
// they are recorded directly so the caller can return them as the
// post-bootstrap prefix once buffering begins (spec.md §4.D "Pass-through
// window").
type ReplayCallback struct {
	interpolate InterpolatedTimeFunc

	mu          sync.Mutex
	passThrough bool
	passedThru  []simulation.PendingStateChange
	pending     map[string][]simulation.PendingStateChange
}

// NewReplayCallback builds a ReplayCallback that starts in pass-through
// mode, matching the original's bootstrap default.
func NewReplayCallback(interpolate InterpolatedTimeFunc) *ReplayCallback {
	return &ReplayCallback{
		interpolate: interpolate,
		passThrough: true,
		pending:     map[string][]simulation.PendingStateChange{},
	}
}

// SetInterpolate installs (or replaces) the interpolated-time source,
// letting the replay engine hand this callback its own clock after
// construction instead of requiring it up front.
func (r *ReplayCallback) SetInterpolate(f InterpolatedTimeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interpolate = f
}

// SetPassThrough re-enables pass-through mode (bootstrap start).
func (r *ReplayCallback) SetPassThrough() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passThrough = true
}

// UnsetPassThrough switches to buffered mode (end of bootstrap) and
// returns every event that passed through while in pass-through mode, so
// the caller can fold them into the post-bootstrap prefix.
func (r *ReplayCallback) UnsetPassThrough() []simulation.PendingStateChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passThrough = false
	out := r.passedThru
	r.passedThru = nil
	return out
}

func pendingKey(cid int64, name string, fp event.Fingerprint) string {
	return fmt.Sprintf("%d|%s|%d", cid, name, fp.Digest())
}

// ControllerStateChange buffers an observed state change for the
// scheduler to match, unless in pass-through mode.
func (r *ReplayCallback) ControllerStateChange(cid int64, t event.Time, fp event.Fingerprint, name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	change := simulation.PendingStateChange{CID: cid, Time: t, Fingerprint: fp, Name: name, Value: value}
	if r.passThrough {
		r.passedThru = append(r.passedThru, change)
		return
	}
	key := pendingKey(cid, name, fp)
	r.pending[key] = append(r.pending[key], change)
}

// Match looks up and removes (garbage-collects) a pending state change
// equal to the expected one, FIFO among duplicates (spec.md §4.C
// "Matching policy", §3 "Lifecycles" — a PendingStateChange lives until
// explicit garbage-collection after being acted on).
func (r *ReplayCallback) Match(cid int64, name string, fp event.Fingerprint) (simulation.PendingStateChange, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pendingKey(cid, name, fp)
	bucket := r.pending[key]
	for i, change := range bucket {
		// The digest only buckets; equality decides the match.
		if !change.Fingerprint.Equal(fp) {
			continue
		}
		rest := append(append([]simulation.PendingStateChange(nil), bucket[:i]...), bucket[i+1:]...)
		if len(rest) == 0 {
			delete(r.pending, key)
		} else {
			r.pending[key] = rest
		}
		return change, true
	}
	return simulation.PendingStateChange{}, false
}

func (r *ReplayCallback) PendingStateChanges() []simulation.PendingStateChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []simulation.PendingStateChange
	for _, bucket := range r.pending {
		out = append(out, bucket...)
	}
	return out
}

// GetDeterministicValue answers gettimeofday with the replay engine's
// interpolated time; every other name is unsupported (spec.md §4.H).
func (r *ReplayCallback) GetDeterministicValue(name string, args map[string]any) (any, error) {
	if name != "gettimeofday" {
		return nil, errs.New("sync.GetDeterministicValue", errs.KindUnsupportedDeterministicValue,
			fmt.Sprintf("unsupported deterministic value request: %q", name))
	}
	r.mu.Lock()
	interpolate := r.interpolate
	r.mu.Unlock()
	if interpolate == nil {
		return event.Time{}, nil
	}
	return interpolate()
}
