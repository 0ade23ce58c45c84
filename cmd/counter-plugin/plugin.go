package main

import (
	"context"
	"fmt"
	"log/slog"
)

// ============================================================================
// Plugin Loop
// ============================================================================
//
// One goroutine owns event handling:
//   - Events arrive from the host reader and the IPC server on one channel.
//   - Each event is reduced against the current settings snapshot of its instance.
//   - The resulting commands run in order; the first failure abandons the rest
//     of that event's commands and is reported, then the loop moves on.
//
// Events are never reordered or coalesced: one input, one update.
// ============================================================================

// pluginConfig is the static configuration of the plugin loop.
type pluginConfig struct {
	Reduce  ReduceConfig
	Effects effectConfig
}

// runPlugin runs until ctx is canceled or the events channel is closed.
func runPlugin(
	ctx context.Context,
	events <-chan Event,
	host Host,
	store SettingsStore,
	cfg pluginConfig,
	logger *slog.Logger,
) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("plugin loop stopping (context canceled)")
			return

		case ev, ok := <-events:
			if !ok {
				logger.Info("plugin loop stopping (events channel closed)")
				return
			}
			if err := handleEvent(ctx, ev, host, store, cfg, logger); err != nil {
				logger.Error("host call rejected", "event", eventName(ev), "context", ev.target().Context, "error", err)
			}
		}
	}
}

// handleEvent reduces one event and executes its commands sequentially.
func handleEvent(
	ctx context.Context,
	ev Event,
	host Host,
	store SettingsStore,
	cfg pluginConfig,
	logger *slog.Logger,
) error {
	t := ev.target()
	current := currentSettings(t, store)

	logger.Debug("event", "event", eventName(ev), "context", t.Context, "count", current.Count)

	if obs, ok := store.(settingsObserver); ok && acceptsAction(cfg.Reduce, t.Action) {
		switch ev.(type) {
		case WillDisappear:
			obs.Forget(t.Context)
		default:
			if t.Settings != nil {
				obs.Observe(t.Context, *t.Settings)
			}
		}
	}

	rr := Reduce(current, ev, cfg.Reduce)

	cmdQueue := rr.Commands
	for len(cmdQueue) > 0 {
		cmd := cmdQueue[0]
		cmdQueue = cmdQueue[1:]

		if err := runEffect(ctx, host, store, cmd, cfg.Effects, logger); err != nil {
			return fmt.Errorf("%s: %w", cmd.String(), err)
		}
	}
	return nil
}

// currentSettings picks the snapshot attached to the event, falling back to the
// store for sources that carry none.
func currentSettings(t EventTarget, store SettingsStore) CounterSettings {
	if t.Settings != nil {
		return *t.Settings
	}
	if store != nil {
		if s, ok := store.Read(t.Context); ok {
			return s
		}
	}
	return CounterSettings{}
}

func eventName(ev Event) string {
	switch ev.(type) {
	case WillAppear:
		return hostEventWillAppear
	case WillDisappear:
		return hostEventWillDisappear
	case KeyDown:
		return hostEventKeyDown
	case KeyUp:
		return hostEventKeyUp
	case DialDown:
		return hostEventDialDown
	case DialUp:
		return hostEventDialUp
	case DialRotate:
		return hostEventDialRotate
	case DidReceiveSettings:
		return hostEventDidReceiveSettings
	case ResetCounter:
		return "resetCounter"
	default:
		return fmt.Sprintf("%T", ev)
	}
}
