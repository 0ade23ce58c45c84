package main

import "math"

// This file implements the counter's reducer:
//
//   - Events: inputs delivered by the host (or injected over IPC)
//   - Commands: host calls requested by the reducer
//   - Reduce(): computes the commands for one event, without performing I/O
//
// The reducer holds no memory between events. The count lives in the host's
// per-instance settings; the plugin loop hands the current snapshot in and
// executes the returned commands in order.

// ReduceConfig carries the static policy the reducer needs.
type ReduceConfig struct {
	// ActionUUID filters events addressed to other actions of the plugin.
	// Empty accepts everything.
	ActionUUID string
}

// ReduceResult is the output of Reduce(): the settings after the event plus the
// commands to execute, in order.
type ReduceResult struct {
	Settings CounterSettings
	Changed  bool
	Commands []Command
}

// Reduce is the pure reducer:
//
// Rules:
// - Must not perform I/O
// - Must not block
// - current is the settings snapshot for the event's instance (zero value if none)
//
// Persisting always precedes the title update so a failed write leaves the
// title showing the last persisted count.
func Reduce(current CounterSettings, e Event, cfg ReduceConfig) ReduceResult {
	rr := ReduceResult{Settings: current}
	if e == nil {
		return rr
	}

	t := e.target()
	if !acceptsAction(cfg, t.Action) {
		return rr
	}

	switch ev := e.(type) {
	case WillAppear:
		rr.Commands = append(rr.Commands, CmdSetTitle{Context: t.Context, Title: current.Title()})

	case KeyDown, DialUp:
		rr = adjust(rr, t.Context, 1)

	case DialDown:
		rr = adjust(rr, t.Context, -1)

	case DialRotate:
		// Rotation is informational only; the count is left untouched.
		rr.Commands = append(rr.Commands, CmdLogMessage{
			Context: t.Context,
			Message: "Dial Rotate",
			Attrs:   []any{"count", current.Count, "ticks", ev.Ticks, "pressed", ev.Pressed},
		})

	case ResetCounter:
		rr.Settings = CounterSettings{}
		rr.Changed = current.Count != 0
		rr.Commands = append(rr.Commands,
			CmdSetSettings{Context: t.Context, Settings: rr.Settings},
			CmdSetTitle{Context: t.Context, Title: rr.Settings.Title()},
		)

	case KeyUp, WillDisappear, DidReceiveSettings:
		// Observed by the loop (settings mirror) but nothing to do here.

	default:
		// Unknown event type: no-op.
	}

	return rr
}

// acceptsAction reports whether events for action belong to this counter.
// Events without an action (IPC) always do.
func acceptsAction(cfg ReduceConfig, action string) bool {
	return cfg.ActionUUID == "" || action == "" || action == cfg.ActionUUID
}

// adjust applies delta to the count, saturating at the int64 bounds.
func adjust(rr ReduceResult, context string, delta int64) ReduceResult {
	count := rr.Settings.Count
	switch {
	case delta > 0 && count > math.MaxInt64-delta:
		count = math.MaxInt64
	case delta < 0 && count < math.MinInt64-delta:
		count = math.MinInt64
	default:
		count += delta
	}
	next := CounterSettings{Count: count}
	rr.Settings = next
	rr.Changed = true
	rr.Commands = append(rr.Commands,
		CmdSetSettings{Context: context, Settings: next},
		CmdSetTitle{Context: context, Title: next.Title()},
	)
	return rr
}
