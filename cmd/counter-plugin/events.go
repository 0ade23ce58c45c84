package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ============================================================================
// Counter settings
// ============================================================================

// CounterSettings is the per-instance settings record persisted by the host.
// A missing or null count is 0. Adjustments saturate at the int64 bounds, but
// the host stores JSON numbers as doubles, so counts beyond 2^53 lose precision
// once they round-trip through it.
type CounterSettings struct {
	Count int64 `json:"count"`
}

// Title renders the count the way it is shown on the key or dial.
func (s CounterSettings) Title() string {
	return strconv.FormatInt(s.Count, 10)
}

// UnmarshalJSON accepts anything the host may hand back for a settings object.
// Values that are not a finite number fall back to 0; fractional values are truncated.
func (s *CounterSettings) UnmarshalJSON(data []byte) error {
	var raw struct {
		Count json.RawMessage `json:"count"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		// Settings that are not even an object (e.g. null) carry no count.
		s.Count = 0
		return nil
	}
	s.Count = parseCount(raw.Count)
	return nil
}

func parseCount(raw json.RawMessage) int64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0
	}
	if n, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	if f <= math.MinInt64 {
		return math.MinInt64
	}
	return int64(f)
}

// ============================================================================
// Events
// ============================================================================
// Events are the inputs to the reducer. Most of them are translated from host
// frames by the host client; IPC clients can inject the same set locally.
// ============================================================================

// Event is the marker interface for everything the plugin loop reduces.
type Event interface {
	eventMarker()
	target() EventTarget
}

// EventTarget identifies the action instance an event is addressed to, plus the
// settings snapshot the host attached to it (nil when the source had none).
type EventTarget struct {
	Action   string           `json:"action,omitempty"`
	Context  string           `json:"context"`
	Device   string           `json:"device,omitempty"`
	Settings *CounterSettings `json:"settings,omitempty"`
}

func (t EventTarget) target() EventTarget { return t }

// WillAppear is sent when an instance becomes visible (startup, page or folder change).
type WillAppear struct {
	EventTarget
	Controller string `json:"controller,omitempty"` // "Keypad" or "Encoder"
}

func (WillAppear) eventMarker() {}

// WillDisappear is sent when an instance leaves the visible page.
type WillDisappear struct {
	EventTarget
}

func (WillDisappear) eventMarker() {}

// KeyDown is a key press.
type KeyDown struct {
	EventTarget
}

func (KeyDown) eventMarker() {}

// KeyUp is a key release.
type KeyUp struct {
	EventTarget
}

func (KeyUp) eventMarker() {}

// DialDown is a dial press.
type DialDown struct {
	EventTarget
}

func (DialDown) eventMarker() {}

// DialUp is a dial release.
type DialUp struct {
	EventTarget
}

func (DialUp) eventMarker() {}

// DialRotate is a dial rotation. Ticks is signed: positive is clockwise.
type DialRotate struct {
	EventTarget
	Ticks   int  `json:"ticks"`
	Pressed bool `json:"pressed,omitempty"`
}

func (DialRotate) eventMarker() {}

// DidReceiveSettings is the host echoing the persisted settings of an instance.
type DidReceiveSettings struct {
	EventTarget
}

func (DidReceiveSettings) eventMarker() {}

// ResetCounter sets the count of an instance back to 0. Only reachable over IPC.
type ResetCounter struct {
	EventTarget
}

func (ResetCounter) eventMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================
// EventEnvelope is the IPC wire format: {"type": "...", "data": {...}}.
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func decodeData(env EventEnvelope, v any, name string) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("unmarshal %s: missing data", name)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", name, err)
	}
	return nil
}

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	var (
		ev  Event
		err error
	)

	switch env.Type {
	case "will_appear":
		var e WillAppear
		err = decodeData(env, &e, "WillAppear")
		ev = e
	case "will_disappear":
		var e WillDisappear
		err = decodeData(env, &e, "WillDisappear")
		ev = e
	case "key_down":
		var e KeyDown
		err = decodeData(env, &e, "KeyDown")
		ev = e
	case "key_up":
		var e KeyUp
		err = decodeData(env, &e, "KeyUp")
		ev = e
	case "dial_down":
		var e DialDown
		err = decodeData(env, &e, "DialDown")
		ev = e
	case "dial_up":
		var e DialUp
		err = decodeData(env, &e, "DialUp")
		ev = e
	case "dial_rotate":
		var e DialRotate
		err = decodeData(env, &e, "DialRotate")
		ev = e
	case "did_receive_settings":
		var e DidReceiveSettings
		err = decodeData(env, &e, "DidReceiveSettings")
		ev = e
	case "reset_counter":
		var e ResetCounter
		err = decodeData(env, &e, "ResetCounter")
		ev = e
	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
	if err != nil {
		return nil, err
	}

	if ev.target().Context == "" {
		return nil, fmt.Errorf("event %q: context must not be empty", env.Type)
	}
	return ev, nil
}

// MarshalEvent serializes an Event into a JSON envelope with type discriminator
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope

	switch e.(type) {
	case WillAppear:
		env.Type = "will_appear"
	case WillDisappear:
		env.Type = "will_disappear"
	case KeyDown:
		env.Type = "key_down"
	case KeyUp:
		env.Type = "key_up"
	case DialDown:
		env.Type = "dial_down"
	case DialUp:
		env.Type = "dial_up"
	case DialRotate:
		env.Type = "dial_rotate"
	case DidReceiveSettings:
		env.Type = "did_receive_settings"
	case ResetCounter:
		env.Type = "reset_counter"
	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", e, err)
	}
	env.Data = data

	return json.Marshal(env)
}
