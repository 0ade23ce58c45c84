package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the counter plugin.
//
// Stream Deck passes the connection parameters on the command line; everything
// here is optional tuning. A config file is only read when -config is given.
type Config struct {
	// Action this plugin answers to
	Action ActionConfig `yaml:"action"`

	// Host connection tuning
	Host HostConfig `yaml:"host"`

	// Local IPC (disabled when socket_path is empty)
	IPC IPCConfig `yaml:"ipc"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type ActionConfig struct {
	UUID string `yaml:"uuid"`
}

type HostConfig struct {
	// URL overrides ws://127.0.0.1:<port>. Handy with cmd/mock-host.
	URL                string `yaml:"url,omitempty"`
	HandshakeTimeoutMS int    `yaml:"handshake_timeout_ms"`
	WriteTimeoutMS     int    `yaml:"write_timeout_ms"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type LoggingConfig struct {
	Level         string `yaml:"level"`
	File          string `yaml:"file,omitempty"`
	ForwardToHost bool   `yaml:"forward_to_host"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		Action: ActionConfig{
			UUID: defaultActionUUID,
		},
		Host: HostConfig{
			HandshakeTimeoutMS: defaultHandshakeTimeoutMS,
			WriteTimeoutMS:     defaultWriteTimeoutMS,
		},
		IPC: IPCConfig{
			SocketPath: "",
		},
		Logging: LoggingConfig{
			Level:         "info",
			ForwardToHost: true,
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides applies overrides from flags on top of a loaded config.
// Each override is only applied if its pointer is non-nil.
type FlagOverrides struct {
	ActionUUID    *string
	HostURL       *string
	IPCSocketPath *string
	LogLevel      *string
	LogFile       *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.ActionUUID != nil {
		cfg.Action.UUID = *o.ActionUUID
	}
	if o.HostURL != nil {
		cfg.Host.URL = *o.HostURL
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.LogFile != nil {
		cfg.Logging.File = *o.LogFile
	}
}

// Validate checks config invariants and returns a user-friendly error.
func (c *Config) Validate() error {
	if c.Action.UUID == "" {
		return errors.New("action.uuid must not be empty")
	}

	if c.Host.URL != "" {
		u, err := url.Parse(c.Host.URL)
		if err != nil {
			return fmt.Errorf("host.url: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("host.url must use ws:// or wss://, got %q", c.Host.URL)
		}
	}
	if c.Host.HandshakeTimeoutMS <= 0 {
		return errors.New("host.handshake_timeout_ms must be > 0")
	}
	if c.Host.WriteTimeoutMS <= 0 {
		return errors.New("host.write_timeout_ms must be > 0")
	}

	if c.Logging.Level == "" {
		return errors.New("logging.level must not be empty")
	}
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// HostURL resolves the WebSocket URL: host.url if set, else the local port Stream Deck passed.
func (c *Config) HostURL(port int) (string, error) {
	if c.Host.URL != "" {
		return c.Host.URL, nil
	}
	if port <= 0 || port > 65535 {
		return "", fmt.Errorf("-port must be between 1 and 65535 (got %d)", port)
	}
	return "ws://" + defaultHostAddr + ":" + strconv.Itoa(port), nil
}

// ToHostClientConfig converts file config plus launch arguments into the client config.
func (c *Config) ToHostClientConfig(hostURL, registerEvent, pluginUUID string) HostClientConfig {
	return HostClientConfig{
		URL:              hostURL,
		RegisterEvent:    registerEvent,
		PluginUUID:       pluginUUID,
		HandshakeTimeout: time.Duration(c.Host.HandshakeTimeoutMS) * time.Millisecond,
		WriteTimeout:     time.Duration(c.Host.WriteTimeoutMS) * time.Millisecond,
	}
}

// ToPluginConfig converts file config into the plugin loop config.
func (c *Config) ToPluginConfig() pluginConfig {
	return pluginConfig{
		Reduce:  ReduceConfig{ActionUUID: c.Action.UUID},
		Effects: effectConfig{ForwardLogs: c.Logging.ForwardToHost},
	}
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
