package main

import "fmt"

// ==============================
// Commands (side effects)
// ==============================

// Command represents a host call to be executed by the plugin loop.
type Command interface {
	commandMarker()
	String() string
}

// CmdSetSettings persists settings for one action instance.
type CmdSetSettings struct {
	Context  string
	Settings CounterSettings
}

func (CmdSetSettings) commandMarker() {}
func (c CmdSetSettings) String() string {
	return fmt.Sprintf("CmdSetSettings(context=%s, count=%d)", c.Context, c.Settings.Count)
}

// CmdSetTitle updates the title shown on the key or dial of one action instance.
type CmdSetTitle struct {
	Context string
	Title   string
}

func (CmdSetTitle) commandMarker() {}
func (c CmdSetTitle) String() string {
	return fmt.Sprintf("CmdSetTitle(context=%s, title=%q)", c.Context, c.Title)
}

// CmdLogMessage emits a diagnostic line. It never changes instance state.
type CmdLogMessage struct {
	Context string
	Message string
	Attrs   []any
}

func (CmdLogMessage) commandMarker() {}
func (c CmdLogMessage) String() string {
	return fmt.Sprintf("CmdLogMessage(context=%s, message=%q)", c.Context, c.Message)
}
