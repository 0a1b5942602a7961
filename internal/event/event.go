package event

import (
	"encoding/json"
	"fmt"
)

var reservedKeys = map[string]bool{
	"class":       true,
	"label":       true,
	"time":        true,
	"fingerprint": true,
}

// Event is an immutable record: a unique label, a logical timestamp, a
// fingerprint, a class tag, and class-specific payload fields (spec.md §3).
// Payload fields and any keys this package does not recognize are kept in
// Extra as raw JSON so re-serializing an Event round-trips byte-for-byte
// for those keys (spec.md §6 "Unknown keys must be preserved").
type Event struct {
	Label string
	T     Time
	Cls   Class
	FP    Fingerprint
	Extra map[string]json.RawMessage
}

// IsInput reports whether this event's class is an input (injected from
// outside the controller, subject to pruning) rather than internal
// (observed during replay).
func (e Event) IsInput() bool {
	return Info(e.Cls).Input
}

// Field decodes a payload key from Extra, returning (nil, false) if absent.
func (e Event) Field(name string) (any, bool) {
	raw, ok := e.Extra[name]
	if !ok {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return v, true
}

// EntityKey returns the identity used to pair this event with its
// Failure/Recovery counterpart, or "" if this class is not paired.
func (e Event) EntityKey() string {
	return entityKey(e)
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("event: decode object: %w", err)
	}

	classRaw, ok := raw["class"]
	if !ok {
		return fmt.Errorf("event: missing required key %q", "class")
	}
	var class Class
	if err := json.Unmarshal(classRaw, &class); err != nil {
		return fmt.Errorf("event: decode class: %w", err)
	}

	labelRaw, ok := raw["label"]
	if !ok {
		return fmt.Errorf("event: missing required key %q", "label")
	}
	var label string
	if err := json.Unmarshal(labelRaw, &label); err != nil {
		return fmt.Errorf("event: decode label: %w", err)
	}

	timeRaw, ok := raw["time"]
	if !ok {
		return fmt.Errorf("event: missing required key %q", "time")
	}
	var tPair [2]int64
	if err := json.Unmarshal(timeRaw, &tPair); err != nil {
		return fmt.Errorf("event: decode time: %w", err)
	}

	var fp Fingerprint
	if fpRaw, ok := raw["fingerprint"]; ok {
		var payload any
		if err := json.Unmarshal(fpRaw, &payload); err != nil {
			return fmt.Errorf("event: decode fingerprint: %w", err)
		}
		fp = Fingerprint{Class: class, Payload: payload}
	} else {
		fp = Fingerprint{Class: class}
	}

	extra := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		if reservedKeys[k] {
			continue
		}
		extra[k] = v
	}

	e.Label = label
	e.T = Time{Seconds: tPair[0], Micros: tPair[1]}
	e.Cls = class
	e.FP = fp
	e.Extra = extra
	return nil
}

func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(e.Extra)+4)
	for k, v := range e.Extra {
		out[k] = v
	}

	classJSON, err := json.Marshal(e.Cls)
	if err != nil {
		return nil, err
	}
	out["class"] = classJSON

	labelJSON, err := json.Marshal(e.Label)
	if err != nil {
		return nil, err
	}
	out["label"] = labelJSON

	timeJSON, err := json.Marshal([2]int64{e.T.Seconds, e.T.Micros})
	if err != nil {
		return nil, err
	}
	out["time"] = timeJSON

	fpJSON, err := json.Marshal(e.FP.Payload)
	if err != nil {
		return nil, err
	}
	out["fingerprint"] = fpJSON

	return json.Marshal(out)
}
