package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sts-go/sts/internal/event"
)

func TestRecordingCallbackGettimeofdayReturnsClock(t *testing.T) {
	fake := fakeClock{t: event.Time{Seconds: 100, Micros: 5}}
	cb := NewRecordingCallback(fake, nil)

	v, err := cb.GetDeterministicValue("gettimeofday", nil)
	require.NoError(t, err)
	assert.Equal(t, fake.t, v)
}

func TestRecordingCallbackBuffersChanges(t *testing.T) {
	cb := NewRecordingCallback(fakeClock{}, nil)
	fp := event.Fingerprint{Class: "ControllerStateChange", Payload: map[string]any{"name": "x"}}
	cb.ControllerStateChange(1, event.Time{}, fp, "x", true)
	assert.Len(t, cb.PendingStateChanges(), 1)
}

func TestReplayCallbackPassThroughThenBuffered(t *testing.T) {
	cb := NewReplayCallback(func() (event.Time, error) { return event.Time{Seconds: 1}, nil })
	fp := event.Fingerprint{Class: "ControllerStateChange", Payload: map[string]any{"name": "x"}}

	cb.ControllerStateChange(1, event.Time{}, fp, "x", true)
	prefix := cb.UnsetPassThrough()
	require.Len(t, prefix, 1)
	assert.Empty(t, cb.PendingStateChanges())

	cb.ControllerStateChange(1, event.Time{}, fp, "x", true)
	assert.Len(t, cb.PendingStateChanges(), 1)

	match, ok := cb.Match(1, "x", fp)
	require.True(t, ok)
	assert.Equal(t, true, match.Value)
	assert.Empty(t, cb.PendingStateChanges())

	_, ok = cb.Match(1, "x", fp)
	assert.False(t, ok)
}

func TestReplayCallbackUnsupportedDeterministicValue(t *testing.T) {
	cb := NewReplayCallback(nil)
	_, err := cb.GetDeterministicValue("random", nil)
	assert.Error(t, err)
}

func TestReplayCallbackGettimeofdayUsesInterpolation(t *testing.T) {
	cb := NewReplayCallback(func() (event.Time, error) { return event.Time{Seconds: 42}, nil })
	v, err := cb.GetDeterministicValue("gettimeofday", nil)
	require.NoError(t, err)
	assert.Equal(t, event.Time{Seconds: 42}, v)
}

type fakeClock struct{ t event.Time }

func (f fakeClock) Now() event.Time { return f.t }
