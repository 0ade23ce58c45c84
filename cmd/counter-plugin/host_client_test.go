package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeStreamDeck is a minimal host: it accepts one plugin connection, records
// every text frame and lets the test push frames to the plugin.
type fakeStreamDeck struct {
	srv    *httptest.Server
	frames chan map[string]any
	conns  chan *websocket.Conn
}

func newFakeStreamDeck(t *testing.T) *fakeStreamDeck {
	t.Helper()

	f := &fakeStreamDeck{
		frames: make(chan map[string]any, 16),
		conns:  make(chan *websocket.Conn, 1),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.conns <- conn
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var m map[string]any
			if err := json.Unmarshal(data, &m); err == nil {
				f.frames <- m
			}
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeStreamDeck) url() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func (f *fakeStreamDeck) nextFrame(t *testing.T) map[string]any {
	t.Helper()
	select {
	case m := <-f.frames:
		return m
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for plugin frame")
		return nil
	}
}

func (f *fakeStreamDeck) conn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-f.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for plugin connection")
		return nil
	}
}

func dialFake(t *testing.T, f *fakeStreamDeck) *HostClient {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := DialHost(ctx, HostClientConfig{
		URL:           f.url(),
		RegisterEvent: "registerPlugin",
		PluginUUID:    "ABC123",
	}, testLogger())
	if err != nil {
		t.Fatalf("DialHost: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDialHost_SendsRegistration(t *testing.T) {
	f := newFakeStreamDeck(t)
	dialFake(t, f)

	reg := f.nextFrame(t)
	if reg["event"] != "registerPlugin" || reg["uuid"] != "ABC123" {
		t.Fatalf("unexpected registration frame: %v", reg)
	}
}

func TestDialHost_RequiresRegistration(t *testing.T) {
	_, err := DialHost(context.Background(), HostClientConfig{URL: "ws://127.0.0.1:1"}, testLogger())
	if err == nil {
		t.Fatalf("expected error without register event and plugin UUID")
	}
}

func TestHostClient_OutboundFrames(t *testing.T) {
	f := newFakeStreamDeck(t)
	c := dialFake(t, f)
	_ = f.nextFrame(t) // registration

	ctx := context.Background()
	if err := c.SetSettings(ctx, "ctx-1", CounterSettings{Count: 3}); err != nil {
		t.Fatalf("SetSettings: %v", err)
	}
	if err := c.SetTitle(ctx, "ctx-1", "3"); err != nil {
		t.Fatalf("SetTitle: %v", err)
	}
	if err := c.LogMessage(ctx, "Dial Rotate count=3 ticks=1 pressed=false"); err != nil {
		t.Fatalf("LogMessage: %v", err)
	}

	set := f.nextFrame(t)
	if set["event"] != "setSettings" || set["context"] != "ctx-1" {
		t.Fatalf("unexpected setSettings frame: %v", set)
	}
	payload, _ := set["payload"].(map[string]any)
	if payload["count"] != float64(3) {
		t.Fatalf("expected payload count=3, got %v", set["payload"])
	}

	title := f.nextFrame(t)
	if title["event"] != "setTitle" || title["context"] != "ctx-1" {
		t.Fatalf("unexpected setTitle frame: %v", title)
	}
	payload, _ = title["payload"].(map[string]any)
	if payload["title"] != "3" || payload["target"] != float64(0) {
		t.Fatalf("unexpected setTitle payload: %v", title["payload"])
	}

	lm := f.nextFrame(t)
	if lm["event"] != "logMessage" {
		t.Fatalf("unexpected logMessage frame: %v", lm)
	}
	if _, ok := lm["context"]; ok {
		t.Fatalf("logMessage must not carry a context: %v", lm)
	}
	payload, _ = lm["payload"].(map[string]any)
	if payload["message"] != "Dial Rotate count=3 ticks=1 pressed=false" {
		t.Fatalf("unexpected logMessage payload: %v", lm["payload"])
	}
}

func TestHostClient_ReadEvents(t *testing.T) {
	f := newFakeStreamDeck(t)
	c := dialFake(t, f)
	server := f.conn(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan Event, 8)
	done := make(chan error, 1)
	go func() { done <- c.ReadEvents(ctx, events) }()

	frames := []string{
		`{"event":"deviceDidConnect","device":"d1"}`,
		`not json`,
		`{"action":"com.jose-rivera.vscode.increment","event":"keyDown","context":"k1","device":"d1","payload":{"settings":{"count":5}}}`,
		`{"action":"com.jose-rivera.vscode.increment","event":"dialRotate","context":"k1","device":"d1","payload":{"settings":{},"ticks":-2,"pressed":true}}`,
	}
	for _, fr := range frames {
		if err := server.WriteMessage(websocket.TextMessage, []byte(fr)); err != nil {
			t.Fatalf("write frame: %v", err)
		}
	}

	next := func() Event {
		select {
		case ev := <-events:
			return ev
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for event")
			return nil
		}
	}

	kd, ok := next().(KeyDown)
	if !ok {
		t.Fatalf("expected KeyDown first")
	}
	if kd.Context != "k1" || kd.Settings == nil || kd.Settings.Count != 5 {
		t.Fatalf("unexpected KeyDown: %+v", kd)
	}

	rot, ok := next().(DialRotate)
	if !ok {
		t.Fatalf("expected DialRotate second")
	}
	if rot.Ticks != -2 || !rot.Pressed || rot.Settings == nil || rot.Settings.Count != 0 {
		t.Fatalf("unexpected DialRotate: %+v", rot)
	}

	_ = server.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean stop on normal close, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for reader to stop")
	}
}

func TestDecodeHostFrame(t *testing.T) {
	t.Run("will appear", func(t *testing.T) {
		ev, err := decodeHostFrame([]byte(`{"action":"a","event":"willAppear","context":"c","payload":{"controller":"Encoder"}}`))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		wa, ok := ev.(WillAppear)
		if !ok {
			t.Fatalf("expected WillAppear, got %T", ev)
		}
		if wa.Controller != "Encoder" || wa.Settings != nil {
			t.Fatalf("unexpected WillAppear: %+v", wa)
		}
	})

	t.Run("dial buttons", func(t *testing.T) {
		ev, err := decodeHostFrame([]byte(`{"event":"dialDown","context":"c","payload":{"settings":{"count":2}}}`))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if _, ok := ev.(DialDown); !ok {
			t.Fatalf("expected DialDown, got %T", ev)
		}
		ev, err = decodeHostFrame([]byte(`{"event":"dialUp","context":"c","payload":{"settings":{"count":2}}}`))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if _, ok := ev.(DialUp); !ok {
			t.Fatalf("expected DialUp, got %T", ev)
		}
	})

	t.Run("null settings", func(t *testing.T) {
		ev, err := decodeHostFrame([]byte(`{"event":"keyDown","context":"c","payload":{"settings":null}}`))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if ev.target().Settings != nil {
			t.Fatalf("expected no snapshot for null settings, got %+v", ev.target().Settings)
		}
	})

	t.Run("unhandled event", func(t *testing.T) {
		ev, err := decodeHostFrame([]byte(`{"event":"titleParametersDidChange","context":"c"}`))
		if err != nil || ev != nil {
			t.Fatalf("expected (nil, nil), got (%v, %v)", ev, err)
		}
	})

	t.Run("missing context", func(t *testing.T) {
		if _, err := decodeHostFrame([]byte(`{"event":"keyDown"}`)); err == nil {
			t.Fatalf("expected error for frame without context")
		}
	})

	t.Run("malformed", func(t *testing.T) {
		if _, err := decodeHostFrame([]byte(`{`)); err == nil {
			t.Fatalf("expected error for malformed frame")
		}
	})
}
