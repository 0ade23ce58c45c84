package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ============================================================================
// Host client: Stream Deck plugin WebSocket
// ============================================================================
//
// Stream Deck launches the plugin with -port/-pluginUUID/-registerEvent/-info.
// The plugin dials ws://127.0.0.1:<port>, registers itself, then:
//   - reads JSON text frames (one event per frame) and turns them into Events
//   - writes setSettings / setTitle / logMessage frames
//
// Writes are serialized with a mutex; gorilla/websocket allows one concurrent
// writer and one concurrent reader.
// ============================================================================

// HostClientConfig configures the host connection.
type HostClientConfig struct {
	URL              string
	RegisterEvent    string
	PluginUUID       string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// HostClient manages the WebSocket connection to the Stream Deck host.
type HostClient struct {
	mu           sync.Mutex
	conn         *websocket.Conn
	url          string
	logger       *slog.Logger
	writeTimeout time.Duration
}

// hostRegistration is the first frame the plugin sends after connecting.
type hostRegistration struct {
	Event string `json:"event"`
	UUID  string `json:"uuid"`
}

// hostCall is an outbound frame. Context is omitted for plugin-wide calls (logMessage).
type hostCall struct {
	Event   string `json:"event"`
	Context string `json:"context,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

type setTitlePayload struct {
	Title  string `json:"title"`
	Target int    `json:"target"`
}

type logMessagePayload struct {
	Message string `json:"message"`
}

// hostFrame is an inbound frame. Only the fields this plugin uses are decoded.
type hostFrame struct {
	Action  string `json:"action"`
	Event   string `json:"event"`
	Context string `json:"context"`
	Device  string `json:"device"`
	Payload struct {
		Settings   *CounterSettings `json:"settings"`
		Controller string           `json:"controller"`
		Ticks      int              `json:"ticks"`
		Pressed    bool             `json:"pressed"`
	} `json:"payload"`
}

// DialHost connects to the host and registers the plugin.
func DialHost(ctx context.Context, cfg HostClientConfig, logger *slog.Logger) (*HostClient, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if cfg.RegisterEvent == "" || cfg.PluginUUID == "" {
		return nil, errors.New("register event and plugin UUID are required")
	}

	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = time.Duration(defaultWriteTimeoutMS) * time.Millisecond
	}
	handshakeTimeout := cfg.HandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = time.Duration(defaultHandshakeTimeoutMS) * time.Millisecond
	}

	d := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	conn, _, err := d.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial host: %w", err)
	}

	c := &HostClient{
		conn:         conn,
		url:          u.String(),
		logger:       logger,
		writeTimeout: writeTimeout,
	}

	if err := c.send(ctx, hostRegistration{Event: cfg.RegisterEvent, UUID: cfg.PluginUUID}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("register plugin: %w", err)
	}

	logger.Info("connected to Stream Deck", "url", c.url)
	return c, nil
}

// send writes one JSON frame.
func (c *HostClient) send(ctx context.Context, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("no websocket connection")
	}

	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	defer c.conn.SetWriteDeadline(time.Time{})

	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return err
	}
	return nil
}

// SetSettings persists settings for an instance.
func (c *HostClient) SetSettings(ctx context.Context, instance string, s CounterSettings) error {
	return c.send(ctx, hostCall{Event: hostCallSetSettings, Context: instance, Payload: s})
}

// SetTitle updates the title of an instance on both hardware and software.
func (c *HostClient) SetTitle(ctx context.Context, instance string, title string) error {
	return c.send(ctx, hostCall{
		Event:   hostCallSetTitle,
		Context: instance,
		Payload: setTitlePayload{Title: title, Target: titleTargetBoth},
	})
}

// LogMessage writes a line to the host's plugin log.
func (c *HostClient) LogMessage(ctx context.Context, message string) error {
	return c.send(ctx, hostCall{Event: hostCallLogMessage, Payload: logMessagePayload{Message: message}})
}

// ReadEvents reads frames until the connection fails or ctx is canceled.
// Frames for events the plugin does not handle are dropped.
func (c *HostClient) ReadEvents(ctx context.Context, events chan<- Event) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("no websocket connection")
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info("host closed the connection")
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}

		ev, err := decodeHostFrame(data)
		if err != nil {
			c.logger.Warn("dropping malformed host frame", "error", err)
			continue
		}
		if ev == nil {
			c.logger.Debug("ignoring host event", "frame", string(data))
			continue
		}

		select {
		case events <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

// Close sends a close frame and closes the WebSocket connection.
func (c *HostClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.writeTimeout),
	)
	err := c.conn.Close()
	c.conn = nil
	return err
}

// decodeHostFrame translates one host frame into an Event.
// It returns (nil, nil) for events the plugin does not handle.
func decodeHostFrame(data []byte) (Event, error) {
	var f hostFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal host frame: %w", err)
	}

	t := EventTarget{
		Action:   f.Action,
		Context:  f.Context,
		Device:   f.Device,
		Settings: f.Payload.Settings,
	}

	var ev Event
	switch f.Event {
	case hostEventWillAppear:
		ev = WillAppear{EventTarget: t, Controller: f.Payload.Controller}
	case hostEventWillDisappear:
		ev = WillDisappear{EventTarget: t}
	case hostEventKeyDown:
		ev = KeyDown{EventTarget: t}
	case hostEventKeyUp:
		ev = KeyUp{EventTarget: t}
	case hostEventDialDown:
		ev = DialDown{EventTarget: t}
	case hostEventDialUp:
		ev = DialUp{EventTarget: t}
	case hostEventDialRotate:
		ev = DialRotate{EventTarget: t, Ticks: f.Payload.Ticks, Pressed: f.Payload.Pressed}
	case hostEventDidReceiveSettings:
		ev = DidReceiveSettings{EventTarget: t}
	default:
		return nil, nil
	}

	if t.Context == "" {
		return nil, fmt.Errorf("%s frame without context", f.Event)
	}
	return ev, nil
}
