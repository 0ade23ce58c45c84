package main

// Action identity
const (
	defaultActionUUID = "com.jose-rivera.vscode.increment"
)

// Stream Deck event names (inbound, host -> plugin)
const (
	hostEventWillAppear         = "willAppear"
	hostEventWillDisappear      = "willDisappear"
	hostEventKeyDown            = "keyDown"
	hostEventKeyUp              = "keyUp"
	hostEventDialDown           = "dialDown"
	hostEventDialUp             = "dialUp"
	hostEventDialRotate         = "dialRotate"
	hostEventDidReceiveSettings = "didReceiveSettings"
)

// Stream Deck event names (outbound, plugin -> host)
const (
	hostCallSetSettings = "setSettings"
	hostCallSetTitle    = "setTitle"
	hostCallLogMessage  = "logMessage"
)

// Title target: 0 = hardware and software, 1 = hardware only, 2 = software only
const titleTargetBoth = 0

// Host connection defaults
const (
	defaultHandshakeTimeoutMS = 2000
	defaultWriteTimeoutMS     = 1000
	defaultHostAddr           = "127.0.0.1"
)

// Plugin loop sizing
const (
	eventQueueSize = 64
)
