package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRoundTrip(t *testing.T) {
	raw := []byte(`{
		"class": "ControlMessageReceive",
		"label": "c1_1",
		"time": [100, 250],
		"fingerprint": {"dpid": 1, "cid": 1, "ofp": "packet_in"},
		"dpid": 1,
		"cid": 1,
		"vendor_extension": {"nested": true, "n": 3}
	}`)

	var e Event
	require.NoError(t, json.Unmarshal(raw, &e))
	assert.Equal(t, ClassControlMessageReceive, e.Cls)
	assert.Equal(t, "c1_1", e.Label)
	assert.Equal(t, Time{Seconds: 100, Micros: 250}, e.T)
	assert.False(t, e.IsInput())

	dpid, ok := e.Field("dpid")
	require.True(t, ok)
	assert.Equal(t, float64(1), dpid)

	out, err := json.Marshal(e)
	require.NoError(t, err)

	var roundTripped map[string]any
	require.NoError(t, json.Unmarshal(out, &roundTripped))
	assert.Equal(t, "ControlMessageReceive", roundTripped["class"])
	assert.Equal(t, "c1_1", roundTripped["label"])
	vendorExt, ok := roundTripped["vendor_extension"].(map[string]any)
	require.True(t, ok, "unknown key vendor_extension must survive round-trip")
	assert.Equal(t, true, vendorExt["nested"])
	assert.Equal(t, float64(3), vendorExt["n"])
}

func TestEventMissingRequiredKey(t *testing.T) {
	var e Event
	err := json.Unmarshal([]byte(`{"label":"x","time":[0,0]}`), &e)
	assert.Error(t, err)
}

func TestFingerprintEqual(t *testing.T) {
	a := Fingerprint{Class: ClassControlMessageSend, Payload: map[string]any{"dpid": float64(1), "cid": float64(2)}}
	b := Fingerprint{Class: ClassControlMessageSend, Payload: map[string]any{"cid": float64(2), "dpid": float64(1)}}
	c := Fingerprint{Class: ClassControlMessageSend, Payload: map[string]any{"dpid": float64(9), "cid": float64(2)}}

	assert.True(t, a.Equal(b), "map key order must not affect equality")
	assert.False(t, a.Equal(c))
	assert.Equal(t, a.Digest(), b.Digest())
}

func TestFingerprintEmpty(t *testing.T) {
	assert.True(t, Fingerprint{}.Empty())
	assert.True(t, Fingerprint{Payload: []any{}}.Empty())
	assert.False(t, Fingerprint{Payload: []any{"x"}}.Empty())
	assert.False(t, Fingerprint{Payload: map[string]any{"dpid": float64(1)}}.Empty())
}
