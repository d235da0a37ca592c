// Package config provides configuration file support for pingkit.
// The file only supplies defaults; pingkit never writes it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the pingkit configuration file structure.
type Config struct {
	// Client defaults are applied when flags are not specified
	Client Client `yaml:"client"`

	// Server defaults for `pingkit serve`
	Server Server `yaml:"server"`

	// Log settings
	Log Log `yaml:"log"`

	// Aliases for common targets
	Aliases map[string]string `yaml:"aliases,omitempty"`
}

// Client holds default values for probe sessions.
type Client struct {
	// Probe method: icmp, udp, tcp
	Method string `yaml:"method"`

	// Session parameters
	Count        int           `yaml:"count"`
	Timeout      time.Duration `yaml:"timeout"`
	Interval     time.Duration `yaml:"interval"`
	ErrorTimeout time.Duration `yaml:"error_timeout"`
	Port         int           `yaml:"port"`
	TTL          int           `yaml:"ttl"`

	// ICMPErrors enables the raw error watcher for udp and tcp
	ICMPErrors   bool `yaml:"icmp_errors"`
	Unprivileged bool `yaml:"unprivileged"`

	// Wire byte order: big or little
	ByteOrder    string `yaml:"byte_order"`
	SwapChecksum bool   `yaml:"swap_checksum"`

	// Output mode
	TUI     bool `yaml:"tui"`
	Verbose bool `yaml:"verbose"`
	JSON    bool `yaml:"json"`
	CSV     bool `yaml:"csv"`
	NoColor bool `yaml:"no_color"`
	RDNS    bool `yaml:"rdns"`
}

// Server holds default values for the echo servers.
type Server struct {
	Listen string `yaml:"listen"`
	Port   int    `yaml:"port"`

	// Preset names a built-in policy. Weights override it when set.
	Preset  string   `yaml:"preset"`
	Weights *Weights `yaml:"weights,omitempty"`

	// Destination unreachable codes, -1 keeps the transport default
	UDPDestCode int `yaml:"udp_dest_code"`
	TCPDestCode int `yaml:"tcp_dest_code"`

	// TCP serving
	Mode           string `yaml:"mode"`
	Workers        int    `yaml:"workers"`
	MaxMessages    int    `yaml:"max_messages"`
	MaxConnections int    `yaml:"max_connections"`

	// ErrorRate limits error packets per second, 0 = unlimited
	ErrorRate  float64 `yaml:"error_rate"`
	ErrorBurst int     `yaml:"error_burst"`

	// Seed for the injector, 0 = from the clock
	Seed int64 `yaml:"seed"`

	// MetricsAddr serves Prometheus metrics when set
	MetricsAddr string `yaml:"metrics_addr"`
}

// Weights is a custom injection policy in tenths.
type Weights struct {
	Echo            int `yaml:"echo"`
	Drop            int `yaml:"drop"`
	DestUnreachable int `yaml:"dest_unreachable"`
	PortUnreachable int `yaml:"port_unreachable"`
}

// Log holds logging settings.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Client: Client{
			Method:       "icmp",
			Count:        4,
			Timeout:      time.Second,
			Interval:     time.Second,
			ErrorTimeout: time.Second,
			Port:         14008,
			ByteOrder:    "big",
		},
		Server: Server{
			Listen:      "0.0.0.0",
			Port:        14008,
			Preset:      "icmp-error",
			UDPDestCode: -1,
			TCPDestCode: -1,
			Mode:        "sequential",
			Workers:     10,
			MaxMessages: 100,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Aliases: make(map[string]string),
	}
}

// Load reads configuration from the default config file locations.
// It searches in order:
//  1. ./pingkit.yaml (current directory)
//  2. ~/.config/pingkit/config.yaml (Linux/macOS)
//  3. %APPDATA%\pingkit\config.yaml (Windows)
//
// If no config file is found, returns default configuration.
func Load() (*Config, error) {
	for _, path := range getConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			return LoadFrom(path)
		}
	}

	// No config file found, return defaults
	return DefaultConfig(), nil
}

// LoadFrom reads configuration from a specific file path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if config.Aliases == nil {
		config.Aliases = make(map[string]string)
	}

	return config, nil
}

// Found returns the first existing config file, or "" when none exists.
func Found() string {
	for _, path := range getConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// getConfigPaths returns the list of config file paths to search.
func getConfigPaths() []string {
	paths := []string{
		"pingkit.yaml",
		"pingkit.yml",
		".pingkit.yaml",
		".pingkit.yml",
	}

	// Add user config path
	userPath := getUserConfigPath()
	if userPath != "" {
		paths = append(paths, userPath)
	}

	return paths
}

// getUserConfigPath returns the user-specific config file path.
func getUserConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "pingkit", "config.yaml")
		}
	default: // Linux, macOS, etc.
		// Check XDG_CONFIG_HOME first
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			return filepath.Join(xdgConfig, "pingkit", "config.yaml")
		}
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".config", "pingkit", "config.yaml")
		}
	}
	return ""
}

// GetConfigPath returns the user config file path.
func GetConfigPath() string {
	return getUserConfigPath()
}

// GenerateExample generates an example configuration file content.
func GenerateExample() string {
	return `# pingkit Configuration File
# Location: ~/.config/pingkit/config.yaml (Linux/macOS)
#           %APPDATA%\pingkit\config.yaml (Windows)
#           ./pingkit.yaml (current directory)

client:
  method: icmp            # icmp, udp or tcp
  count: 4                # Probes per session
  timeout: 1s             # Wait for each reply
  interval: 1s            # Pause between probes
  error_timeout: 1s       # Extra wait on the ICMP error socket
  port: 14008             # Echo service port (udp, tcp)
  ttl: 0                  # 0 = system default
  icmp_errors: false      # Watch for ICMP errors (needs root)
  unprivileged: false     # Use the unprivileged ICMP socket
  byte_order: big         # Header and checksum word order: big or little
  swap_checksum: false    # Swap the checksum before insertion

  # Output mode (only one should be true)
  tui: false
  verbose: false
  json: false
  csv: false
  no_color: false
  rdns: false             # Reverse DNS lookup of the target

server:
  listen: 0.0.0.0
  port: 14008
  preset: icmp-error      # reliable, lossy or icmp-error
  # weights:              # Custom policy in tenths, must sum to 10
  #   echo: 6
  #   drop: 2
  #   dest_unreachable: 1
  #   port_unreachable: 1
  udp_dest_code: -1       # -1 = network unreachable (0)
  tcp_dest_code: -1       # -1 = host unreachable (1)
  mode: sequential        # sequential or pool (tcp)
  workers: 10
  max_messages: 100       # Lines served per tcp connection
  max_connections: 0      # 0 = unlimited
  error_rate: 0           # Error packets per second, 0 = unlimited
  error_burst: 1
  seed: 0                 # 0 = seed from the clock
  metrics_addr: ""        # e.g. :9108

log:
  level: info             # debug, info, warn, error
  format: text            # text or json

# Target aliases (optional)
aliases:
  dns: 8.8.8.8
  cf: 1.1.1.1
  local: 127.0.0.1
`
}
