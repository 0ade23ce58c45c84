package main

import (
	"encoding/json"
	"math"
	"testing"
)

func TestCounterSettings_TolerantDecode(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{`{}`, 0},
		{`{"count":null}`, 0},
		{`{"count":7}`, 7},
		{`{"count":-12}`, -12},
		{`{"count":2.0}`, 2},
		{`{"count":2.9}`, 2},
		{`{"count":"abc"}`, 0},
		{`{"count":true}`, 0},
		{`{"count":1e300}`, math.MaxInt64},
		{`{"other":"field","count":3}`, 3},
		{`null`, 0},
		{`[]`, 0},
	}

	for _, tc := range cases {
		s := CounterSettings{Count: 99}
		if err := json.Unmarshal([]byte(tc.in), &s); err != nil {
			t.Fatalf("%s: unexpected error %v", tc.in, err)
		}
		// Top-level null is handled by encoding/json itself.
		if tc.in == `null` {
			continue
		}
		if s.Count != tc.want {
			t.Fatalf("%s: expected count=%d, got %d", tc.in, tc.want, s.Count)
		}
	}
}

func TestCounterSettings_EncodesCount(t *testing.T) {
	b, err := json.Marshal(CounterSettings{Count: -4})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"count":-4}` {
		t.Fatalf("unexpected encoding %s", b)
	}
	if got := (CounterSettings{Count: -4}).Title(); got != "-4" {
		t.Fatalf("unexpected title %q", got)
	}
}

func TestUnmarshalEvent(t *testing.T) {
	ev, err := UnmarshalEvent([]byte(`{"type":"dial_rotate","data":{"context":"c1","ticks":-3}}`))
	if err != nil {
		t.Fatalf("UnmarshalEvent: %v", err)
	}
	rot, ok := ev.(DialRotate)
	if !ok {
		t.Fatalf("expected DialRotate, got %T", ev)
	}
	if rot.Context != "c1" || rot.Ticks != -3 || rot.Settings != nil {
		t.Fatalf("unexpected event %+v", rot)
	}

	ev, err = UnmarshalEvent([]byte(`{"type":"key_down","data":{"context":"c1","settings":{"count":4}}}`))
	if err != nil {
		t.Fatalf("UnmarshalEvent: %v", err)
	}
	if s := ev.target().Settings; s == nil || s.Count != 4 {
		t.Fatalf("expected snapshot count=4, got %+v", s)
	}
}

func TestUnmarshalEvent_Errors(t *testing.T) {
	cases := map[string]string{
		"not json":      `{`,
		"unknown type":  `{"type":"explode","data":{"context":"c"}}`,
		"missing data":  `{"type":"key_down"}`,
		"empty context": `{"type":"reset_counter","data":{"context":""}}`,
		"bad data":      `{"type":"dial_rotate","data":{"context":"c","ticks":"many"}}`,
	}
	for name, in := range cases {
		if _, err := UnmarshalEvent([]byte(in)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestMarshalEvent_RoundTripsThroughIPC(t *testing.T) {
	events := []Event{
		KeyDown{EventTarget: EventTarget{Context: "a"}},
		DialDown{EventTarget: EventTarget{Context: "a", Settings: settings(5)}},
		DialRotate{EventTarget: EventTarget{Context: "a"}, Ticks: 2, Pressed: true},
		ResetCounter{EventTarget: EventTarget{Context: "a"}},
	}
	for _, in := range events {
		b, err := MarshalEvent(in)
		if err != nil {
			t.Fatalf("%T: marshal: %v", in, err)
		}
		out, err := UnmarshalEvent(b)
		if err != nil {
			t.Fatalf("%T: unmarshal: %v", in, err)
		}
		if eventName(out) != eventName(in) || out.target().Context != "a" {
			t.Fatalf("%T: got %T %+v", in, out, out)
		}
	}

	if _, err := MarshalEvent(nil); err == nil {
		t.Fatalf("expected error for nil event")
	}
}
