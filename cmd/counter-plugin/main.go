package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("counter-plugin v%s\n", version)
	fmt.Println("Stream Deck counter action (keys and dials)")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  counter-plugin -port PORT -pluginUUID UUID -registerEvent EVENT -info JSON [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Stream Deck launches this binary and passes the connection arguments.")
	fmt.Println("  A key press or a dial release adds one to the instance's count, a dial")
	fmt.Println("  press subtracts one, and the count is shown as the title. Rotating a")
	fmt.Println("  dial only logs the current count.")
	fmt.Println()
	fmt.Println("STREAM DECK ARGUMENTS:")
	fmt.Println("  -port int            WebSocket port of the Stream Deck host")
	fmt.Println("  -pluginUUID string   Plugin registration UUID")
	fmt.Println("  -registerEvent string  Registration event name")
	fmt.Println("  -info string         Host/device info JSON")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (optional)")
	fmt.Println()
	fmt.Println("  -action-uuid string")
	fmt.Printf("        Action UUID to handle (default %q)\n", defaultActionUUID)
	fmt.Println()
	fmt.Println("  -host-url string")
	fmt.Println("        Override the host WebSocket URL (e.g. ws://127.0.0.1:28196 for cmd/mock-host)")
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Println("        Unix domain socket path for local event injection (default: disabled)")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -log-file string")
	fmt.Println("        Append logs to this file instead of stdout")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
}

// hostInfo is the subset of the -info argument worth logging.
type hostInfo struct {
	Application struct {
		Platform string `json:"platform"`
		Version  string `json:"version"`
	} `json:"application"`
	Plugin struct {
		UUID    string `json:"uuid"`
		Version string `json:"version"`
	} `json:"plugin"`
}

func main() {
	var (
		port          = flag.Int("port", 0, "Stream Deck WebSocket port")
		pluginUUID    = flag.String("pluginUUID", "", "Stream Deck plugin registration UUID")
		registerEvent = flag.String("registerEvent", "", "Stream Deck registration event")
		info          = flag.String("info", "", "Stream Deck info JSON")

		configPath  = flag.String("config", "", "Path to YAML config file")
		actionUUID  = flag.String("action-uuid", defaultActionUUID, "Action UUID to handle")
		hostURL     = flag.String("host-url", "", "Override the host WebSocket URL")
		ipcSocket   = flag.String("ipc-socket", "", "Unix domain socket path for IPC (empty disables)")
		logLevelStr = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		logFile     = flag.String("log-file", "", "Append logs to this file instead of stdout")
		showVersion = flag.Bool("version", false, "Print version and exit")
		showHelp    = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	// Defaults, then file, then explicitly set flags.
	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	var overrides FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "action-uuid":
			overrides.ActionUUID = actionUUID
		case "host-url":
			overrides.HostURL = hostURL
		case "ipc-socket":
			overrides.IPCSocketPath = ipcSocket
		case "log-level":
			overrides.LogLevel = logLevelStr
		case "log-file":
			overrides.LogFile = logFile
		}
	})
	overrides.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	wsURL, err := cfg.HostURL(*port)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	if *pluginUUID == "" || *registerEvent == "" {
		fmt.Fprintln(os.Stderr, "error: -pluginUUID and -registerEvent are required")
		os.Exit(1)
	}

	logLevel, _ := parseLogLevel(cfg.Logging.Level) // validated above
	out, closeLog, err := openLogOutput(cfg.Logging.File)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	defer closeLog()
	logger := setupLogger(logLevel, out)

	logger.Debug("starting counter-plugin", "version", version)
	logger.Debug("configuration",
		"host_url", wsURL,
		"action_uuid", cfg.Action.UUID,
		"handshake_timeout_ms", cfg.Host.HandshakeTimeoutMS,
		"write_timeout_ms", cfg.Host.WriteTimeoutMS,
		"ipc_socket", cfg.IPC.SocketPath,
		"log_file", cfg.Logging.File,
		"forward_to_host", cfg.Logging.ForwardToHost)

	if *info != "" {
		var hi hostInfo
		if err := json.Unmarshal([]byte(*info), &hi); err != nil {
			logger.Warn("could not parse -info", "error", err)
		} else {
			logger.Debug("host info",
				"platform", hi.Application.Platform,
				"streamdeck_version", hi.Application.Version,
				"plugin_uuid", hi.Plugin.UUID,
				"plugin_version", hi.Plugin.Version)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := DialHost(ctx, cfg.ToHostClientConfig(wsURL, *registerEvent, *pluginUUID), logger)
	if err != nil {
		logger.Error("failed to connect to Stream Deck", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	store := NewHostSettingsStore(client)
	events := make(chan Event, eventQueueSize)

	// Stream Deck closes the socket when it wants the plugin gone; stop everything then.
	go func() {
		if err := client.ReadEvents(ctx, events); err != nil {
			logger.Error("host reader stopped", "error", err)
		}
		stop()
	}()

	if cfg.IPC.SocketPath != "" {
		listener, err := listenIPC(cfg.IPC.SocketPath)
		if err != nil {
			logger.Error("failed to start IPC server", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := serveIPC(ctx, listener, cfg.IPC.SocketPath, events, logger); err != nil {
				logger.Error("IPC server error", "error", err)
			}
		}()
	}

	logger.Info("listening", "host", wsURL, "action", cfg.Action.UUID, "ipc", cfg.IPC.SocketPath)

	runPlugin(ctx, events, client, store, cfg.ToPluginConfig(), logger)

	logger.Info("shutting down")
}
