package main

import (
	"context"
	"fmt"
	"log/slog"
)

// Host is the set of calls the plugin makes back into Stream Deck.
type Host interface {
	SetSettings(ctx context.Context, instance string, s CounterSettings) error
	SetTitle(ctx context.Context, instance string, title string) error
	LogMessage(ctx context.Context, message string) error
}

// effectConfig controls optional behavior of the effects layer.
type effectConfig struct {
	// ForwardLogs mirrors CmdLogMessage lines into the host's plugin log.
	ForwardLogs bool
}

// runEffect executes a single reducer-emitted Command against the host.
//
// Design rules:
// - This function is allowed to perform I/O.
// - It must never call Reduce() directly.
// - Errors are returned as-is to the loop; nothing is retried here.
func runEffect(
	ctx context.Context,
	host Host,
	store SettingsStore,
	cmd Command,
	cfg effectConfig,
	logger *slog.Logger,
) error {
	switch c := cmd.(type) {
	case CmdSetSettings:
		if store == nil {
			return errNoStore{}
		}
		if err := store.Write(ctx, c.Context, c.Settings); err != nil {
			return err
		}
		logger.Debug("settings persisted", "context", c.Context, "count", c.Settings.Count)
		return nil

	case CmdSetTitle:
		if host == nil {
			return errNoHost{}
		}
		if err := host.SetTitle(ctx, c.Context, c.Title); err != nil {
			return fmt.Errorf("set title: %w", err)
		}
		logger.Debug("title updated", "context", c.Context, "title", c.Title)
		return nil

	case CmdLogMessage:
		attrs := append([]any{"context", c.Context}, c.Attrs...)
		logger.Info(c.Message, attrs...)

		if !cfg.ForwardLogs || host == nil {
			return nil
		}
		// The host log is diagnostic only; a failure here is not worth failing the event.
		if err := host.LogMessage(ctx, formatLogLine(c)); err != nil {
			logger.Warn("forwarding log to host failed", "error", err)
		}
		return nil

	default:
		logger.Warn("unknown command type", "command", cmd.String())
		return errUnknownCommand{cmd: cmd}
	}
}

// formatLogLine flattens a CmdLogMessage into one line for the host log.
func formatLogLine(c CmdLogMessage) string {
	line := c.Message
	for i := 0; i+1 < len(c.Attrs); i += 2 {
		line += fmt.Sprintf(" %v=%v", c.Attrs[i], c.Attrs[i+1])
	}
	return line
}

// errNoHost indicates a command needed the host but the loop was started without one.
type errNoHost struct{}

func (errNoHost) Error() string { return "no host connection" }

// errNoStore indicates a settings write was requested without a settings store.
type errNoStore struct{}

func (errNoStore) Error() string { return "no settings store" }

type errUnknownCommand struct {
	cmd Command
}

func (e errUnknownCommand) Error() string { return "unknown command: " + e.cmd.String() }
