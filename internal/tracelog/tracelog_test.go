package tracelog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{"class":"SwitchFailure","label":"i1","time":[0,0],"fingerprint":null,"dpid":1}
{"class":"ControlMessageReceive","label":"c1","time":[0,500],"fingerprint":{"dpid":1,"cid":1,"ofp":"hello"}}
{"class":"InvariantViolation","label":"v1","time":[1,0],"fingerprint":["F"]}
`

func TestReadParsesEventsInOrder(t *testing.T) {
	events, err := Read(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "i1", events[0].Label)
	assert.Equal(t, "c1", events[1].Label)
	assert.Equal(t, "v1", events[2].Label)
}

func TestReadSkipsBlankLines(t *testing.T) {
	events, err := Read(strings.NewReader(sample + "\n\n"))
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestReadRejectsCorruptLine(t *testing.T) {
	_, err := Read(strings.NewReader(`{"class":"SwitchFailure"` + "\n"))
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	events, err := Read(strings.NewReader(sample))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, events))

	reparsed, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, reparsed, len(events))
	for i := range events {
		assert.Equal(t, events[i].Label, reparsed[i].Label)
		assert.Equal(t, events[i].Cls, reparsed[i].Cls)
		assert.True(t, events[i].FP.Equal(reparsed[i].FP))
	}
}

func TestReadUnackedSidecarMissingIsEmpty(t *testing.T) {
	events, found, err := ReadUnackedSidecar("/nonexistent/path/mcs.trace")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, events)
}
