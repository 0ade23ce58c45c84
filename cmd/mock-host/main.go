package main

import (
	"bufio"
	"crypto/rand"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
)

// ============================================================================
// mock-host - a local stand-in for the Stream Deck application
// ============================================================================
// Accepts one plugin connection, prints everything the plugin sends and turns
// stdin lines into host events:
//
//   appear [n]       willAppear for instance n (default 0)
//   key [n]          keyDown
//   up [n]           dialUp
//   down [n]         dialDown
//   rotate T [n]     dialRotate with T ticks
//   gone [n]         willDisappear
//   list             show instances and their persisted settings
//
// Settings the plugin persists with setSettings are attached to later events,
// the way Stream Deck does it.
// ============================================================================

type instance struct {
	Context  string
	Settings json.RawMessage // nil until the plugin persists something
}

type mockHost struct {
	action string

	mu        sync.Mutex
	conn      *websocket.Conn
	instances []*instance
}

// outboundFrame is what the plugin sends us.
type outboundFrame struct {
	Event   string          `json:"event"`
	UUID    string          `json:"uuid,omitempty"`
	Context string          `json:"context,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func main() {
	var (
		port      = flag.Int("port", 28196, "Port to listen on")
		action    = flag.String("action", "com.jose-rivera.vscode.increment", "Action UUID to address events to")
		instances = flag.Int("instances", 1, "Number of action instances to simulate")
	)
	flag.Parse()

	if *instances < 1 {
		log.Fatalf("-instances must be >= 1")
	}

	h := newMockHost(*action, *instances)

	http.HandleFunc("/", h.serveWS)

	addr := fmt.Sprintf("127.0.0.1:%d", *port)
	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	log.Printf("mock host listening on ws://%s", addr)
	log.Printf("start the plugin with: -port %d -pluginUUID mock -registerEvent registerPlugin", *port)
	for i, in := range h.instances {
		log.Printf("instance %d: context=%s", i, in.Context)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-sigc:
			log.Printf("shutting down...")
			h.closeConn()
			return
		case line, ok := <-lines:
			if !ok {
				h.closeConn()
				return
			}
			if err := h.handleCommand(strings.Fields(line)); err != nil {
				log.Printf("error: %v", err)
			}
		}
	}
}

// newMockHost creates n instances with lowercase ULID contexts.
func newMockHost(action string, n int) *mockHost {
	h := &mockHost{action: action}
	entropy := ulid.Monotonic(rand.Reader, 0)
	for i := 0; i < n; i++ {
		id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
		h.instances = append(h.instances, &instance{Context: strings.ToLower(id)})
	}
	return h
}

// serveWS accepts the plugin connection and prints its frames.
func (h *mockHost) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	if h.conn != nil {
		h.mu.Unlock()
		log.Printf("rejecting second plugin connection from %s", r.RemoteAddr)
		_ = conn.Close()
		return
	}
	h.conn = conn
	h.mu.Unlock()

	log.Printf("plugin connected from %s", r.RemoteAddr)

	defer func() {
		h.mu.Lock()
		h.conn = nil
		h.mu.Unlock()
		_ = conn.Close()
		log.Printf("plugin disconnected")
	}()

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket error: %v", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			fmt.Printf("[BINARY] %d bytes\n", len(message))
			continue
		}
		h.handleFrame(message)
	}
}

func (h *mockHost) handleFrame(message []byte) {
	var f outboundFrame
	if err := json.Unmarshal(message, &f); err != nil {
		fmt.Printf("[TEXT] %s\n", string(message))
		return
	}

	switch f.Event {
	case "setSettings":
		h.mu.Lock()
		for _, in := range h.instances {
			if in.Context == f.Context {
				in.Settings = append(json.RawMessage(nil), f.Payload...)
			}
		}
		h.mu.Unlock()
		fmt.Printf("[SETTINGS] %s %s\n", f.Context, string(f.Payload))

	case "setTitle":
		var p struct {
			Title string `json:"title"`
		}
		_ = json.Unmarshal(f.Payload, &p)
		fmt.Printf("[TITLE] %s %q\n", f.Context, p.Title)

	case "logMessage":
		var p struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(f.Payload, &p)
		fmt.Printf("[LOG] %s\n", p.Message)

	default:
		if f.UUID != "" {
			fmt.Printf("[REGISTER] event=%s uuid=%s\n", f.Event, f.UUID)
			return
		}
		fmt.Printf("[%s] %s\n", strings.ToUpper(f.Event), string(message))
	}
}

// handleCommand turns one stdin line into a host event and sends it.
func (h *mockHost) handleCommand(fields []string) error {
	if len(fields) == 0 {
		return nil
	}

	if fields[0] == "list" {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, in := range h.instances {
			fmt.Printf("%d %s %s\n", i, in.Context, string(in.Settings))
		}
		return nil
	}

	event, msg, err := h.buildFrame(fields)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == nil {
		return fmt.Errorf("no plugin connected")
	}
	if err := h.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}

// buildFrame encodes a host event for one instance, attaching the settings the
// plugin last persisted for it.
func (h *mockHost) buildFrame(fields []string) (string, []byte, error) {
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("empty command")
	}

	args := fields[1:]
	payload := map[string]any{}

	var event string
	switch fields[0] {
	case "appear":
		event = "willAppear"
		payload["controller"] = "Encoder"
	case "gone":
		event = "willDisappear"
	case "key":
		event = "keyDown"
	case "up":
		event = "dialUp"
	case "down":
		event = "dialDown"
	case "rotate":
		if len(args) == 0 {
			return "", nil, fmt.Errorf("rotate requires a tick count")
		}
		ticks, err := strconv.Atoi(args[0])
		if err != nil {
			return "", nil, fmt.Errorf("invalid tick count: %w", err)
		}
		args = args[1:]
		event = "dialRotate"
		payload["ticks"] = ticks
		payload["pressed"] = false
	default:
		return "", nil, fmt.Errorf("unknown command %q (appear|key|up|down|rotate T|gone|list)", fields[0])
	}

	idx := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return "", nil, fmt.Errorf("invalid instance index: %w", err)
		}
		idx = n
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if idx < 0 || idx >= len(h.instances) {
		return "", nil, fmt.Errorf("instance %d does not exist", idx)
	}

	in := h.instances[idx]
	settings := json.RawMessage(`{}`)
	if in.Settings != nil {
		settings = in.Settings
	}
	payload["settings"] = settings

	frame := map[string]any{
		"action":  h.action,
		"event":   event,
		"context": in.Context,
		"device":  "mock-device",
		"payload": payload,
	}
	msg, err := json.Marshal(frame)
	if err != nil {
		return "", nil, fmt.Errorf("marshal frame: %w", err)
	}
	return event, msg, nil
}

func (h *mockHost) closeConn() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == nil {
		return
	}
	err := h.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		log.Printf("error closing connection: %v", err)
	}
}
