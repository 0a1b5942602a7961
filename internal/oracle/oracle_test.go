package oracle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sts-go/sts/internal/event"
	"github.com/sts-go/sts/internal/simtest"
)

func TestCheckMatchesSignature(t *testing.T) {
	target := event.Fingerprint{Class: event.ClassInvariantViolation, Payload: "F"}
	checker := simtest.NewFakeInvariantChecker([]event.Fingerprint{target})
	o := New(checker, target)

	found, fps, err := o.Check(context.Background(), simtest.NewFakeSimulation())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Len(t, fps, 1)
}

func TestCheckNoViolationIsNoMatch(t *testing.T) {
	target := event.Fingerprint{Class: event.ClassInvariantViolation, Payload: "F"}
	checker := simtest.NewFakeInvariantChecker(nil)
	o := New(checker, target)

	found, fps, err := o.Check(context.Background(), simtest.NewFakeSimulation())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, fps)
}

func TestSelectSignatureSingleFingerprint(t *testing.T) {
	v := event.Event{Cls: event.ClassInvariantViolation, FP: event.Fingerprint{Payload: []any{"F"}}}
	sig, err := SelectSignature(v, 0)
	require.NoError(t, err)
	assert.Equal(t, "F", sig.Payload)
}

func TestSelectSignatureMultipleRequiresIndex(t *testing.T) {
	v := event.Event{Cls: event.ClassInvariantViolation, FP: event.Fingerprint{Payload: []any{"F", "G"}}}
	sig, err := SelectSignature(v, 1)
	require.NoError(t, err)
	assert.Equal(t, "G", sig.Payload)

	_, err = SelectSignature(v, 5)
	assert.Error(t, err)
}
