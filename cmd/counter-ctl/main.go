package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
)

// ============================================================================
// counter-ctl - Command-line IPC Client
// ============================================================================
// Injects events into a running counter-plugin (started with -ipc-socket).
//
// Usage:
//   counter-ctl key-down <context>
//   counter-ctl dial-rotate <context> -3
//   counter-ctl reset <context>
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/counter-plugin.sock)
// ============================================================================

const defaultSocketPath = "/tmp/counter-plugin.sock"

// eventTarget mirrors the plugin's EventTarget (standalone binary, no shared package).
type eventTarget struct {
	Context string `json:"context"`
}

type dialRotate struct {
	eventTarget
	Ticks int `json:"ticks"`
}

// eventEnvelope wraps events for JSON
type eventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ipcResponse represents the plugin's response
type ipcResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func main() {
	socketPath := defaultSocketPath

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "-socket" || args[0] == "--socket" {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage()
		os.Exit(0)
	}

	env, err := buildEnvelope(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		printUsage()
		os.Exit(1)
	}

	if err := sendEnvelope(socketPath, env); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("ok")
}

// buildEnvelope turns "<command> <context> [args]" into an IPC envelope.
func buildEnvelope(args []string) (eventEnvelope, error) {
	if len(args) < 2 || args[1] == "" {
		return eventEnvelope{}, fmt.Errorf("%s requires an action context", args[0])
	}
	target := eventTarget{Context: args[1]}

	var (
		typ  string
		data any = target
	)

	switch args[0] {
	case "key-down", "key", "press":
		typ = "key_down"
	case "dial-up", "up":
		typ = "dial_up"
	case "dial-down", "down":
		typ = "dial_down"
	case "appear":
		typ = "will_appear"
	case "reset":
		typ = "reset_counter"
	case "dial-rotate", "rotate":
		if len(args) < 3 {
			return eventEnvelope{}, fmt.Errorf("dial-rotate requires a tick count")
		}
		ticks, err := strconv.Atoi(args[2])
		if err != nil {
			return eventEnvelope{}, fmt.Errorf("invalid tick count: %w", err)
		}
		typ = "dial_rotate"
		data = dialRotate{eventTarget: target, Ticks: ticks}
	default:
		return eventEnvelope{}, fmt.Errorf("unknown command: %s", args[0])
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return eventEnvelope{}, fmt.Errorf("marshal %s: %w", typ, err)
	}
	return eventEnvelope{Type: typ, Data: raw}, nil
}

func sendEnvelope(socketPath string, env eventEnvelope) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	// Line-delimited JSON
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return fmt.Errorf("send event: %w", err)
	}

	var response ipcResponse
	if err := json.NewDecoder(conn).Decode(&response); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if response.Status == "error" {
		return fmt.Errorf("plugin error: %s", response.Error)
	}

	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `counter-ctl - Drive a running counter-plugin via IPC

Usage:
  counter-ctl [options] <command> <context> [args]

Options:
  -socket PATH    Unix domain socket path (default: %s)

Commands:
  key-down, key, press <context>     Simulate a key press (+1)
  dial-up, up <context>              Simulate a dial release (+1)
  dial-down, down <context>          Simulate a dial press (-1)
  dial-rotate, rotate <context> <n>  Simulate a dial rotation (logs only)
  appear <context>                   Redraw the title from the stored count
  reset <context>                    Set the count back to 0
  help, -h, --help                   Show this help message

Examples:
  counter-ctl key-down 5b6c0f2e
  counter-ctl rotate 5b6c0f2e -2
  counter-ctl -socket /run/user/1000/counter.sock reset 5b6c0f2e
`, defaultSocketPath)
}
