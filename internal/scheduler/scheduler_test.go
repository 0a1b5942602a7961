package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sts-go/sts/internal/config"
	"github.com/sts-go/sts/internal/event"
)

// fakeEnv delivers a fixed queue of observed events, advancing a virtual
// clock on Sleep so timeout math doesn't depend on wall-clock time.
type fakeEnv struct {
	now   time.Time
	queue []event.Event
}

func (f *fakeEnv) PollObserved() (event.Event, bool) {
	if len(f.queue) == 0 {
		return event.Event{}, false
	}
	e := f.queue[0]
	f.queue = f.queue[1:]
	return e, true
}

func (f *fakeEnv) Sleep(d time.Duration) { f.now = f.now.Add(d) }
func (f *fakeEnv) Now() time.Time        { return f.now }

func internalEvent(label string, t event.Time, fp any) event.Event {
	return event.Event{Label: label, T: t, Cls: event.ClassControlMessageReceive,
		FP: event.Fingerprint{Class: event.ClassControlMessageReceive, Payload: fp}}
}

func TestAwaitMatchImmediate(t *testing.T) {
	s := New(config.Default().Scheduler, nil)
	obs := internalEvent("o1", event.Time{}, map[string]any{"dpid": float64(1)})
	s.Observe(obs)

	expected := internalEvent("e1", event.Time{}, map[string]any{"dpid": float64(1)})
	env := &fakeEnv{now: time.Unix(0, 0)}

	outcome := s.AwaitMatch(env, expected)
	assert.True(t, outcome.Matched)
	assert.Equal(t, "o1", outcome.Observed.Label)
}

func TestAwaitMatchPollsThenMatches(t *testing.T) {
	s := New(config.Default().Scheduler, nil)
	expected := internalEvent("e1", event.Time{Seconds: 5}, map[string]any{"dpid": float64(1)})
	env := &fakeEnv{
		now: time.Unix(0, 0),
		queue: []event.Event{
			internalEvent("noise", event.Time{Seconds: 1}, map[string]any{"dpid": float64(99)}),
			internalEvent("o1", event.Time{Seconds: 2}, map[string]any{"dpid": float64(1)}),
		},
	}

	outcome := s.AwaitMatch(env, expected)
	require.True(t, outcome.Matched)
	assert.Equal(t, "o1", outcome.Observed.Label)

	report := s.Report()
	require.Len(t, report.Unexpected, 1)
	assert.Equal(t, "noise", report.Unexpected[0].Label)
	assert.Len(t, report.Early, 1, "noise precedes the expected event's time")
}

func TestAwaitMatchTimesOut(t *testing.T) {
	cfg := config.Default().Scheduler
	cfg.PerClassTimeoutSeconds["ControlMessageReceive"] = 1
	s := New(cfg, nil)
	expected := internalEvent("e1", event.Time{}, map[string]any{"dpid": float64(1)})
	env := &fakeEnv{now: time.Unix(0, 0)}

	outcome := s.AwaitMatch(env, expected)
	assert.True(t, outcome.TimedOut)
	assert.Contains(t, s.Report().TimedOut, "e1")
}

func TestAmbiguousMatchRecorded(t *testing.T) {
	s := New(config.Default().Scheduler, nil)
	fp := map[string]any{"dpid": float64(1)}
	s.Observe(internalEvent("o1", event.Time{}, fp))
	s.Observe(internalEvent("o2", event.Time{}, fp))

	expected := internalEvent("e1", event.Time{}, fp)
	env := &fakeEnv{now: time.Unix(0, 0)}
	outcome := s.AwaitMatch(env, expected)
	require.True(t, outcome.Matched)
	assert.Equal(t, "o1", outcome.Observed.Label, "FIFO among equal fingerprints")
	assert.Equal(t, 1, s.Report().Ambiguities)
}
