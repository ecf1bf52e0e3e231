package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   Server            `yaml:"server"`
	Runtime  Runtime           `yaml:"runtime"`
	Workdir  Workdir           `yaml:"workdir"`
	Sessions Sessions          `yaml:"sessions"`
	Presets  map[string]Preset `yaml:"presets"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

// Runtime describes the supervised agent runtime: the CLI binary skiff
// spawns and the JSON-RPC gateway process it queries.
type Runtime struct {
	Bin        string `yaml:"bin"`
	GatewayURL string `yaml:"gateway_url"`
	// ConfigPath is the runtime's own config file; changes to it are
	// broadcast to open dashboards.
	ConfigPath string `yaml:"config_path"`
}

type Workdir struct {
	Root string `yaml:"root"`
}

type Sessions struct {
	RingCap      int           `yaml:"ring_cap"`
	ReapInterval time.Duration `yaml:"reap_interval"`
	MaxAge       time.Duration `yaml:"max_age"`
	Keepalive    time.Duration `yaml:"keepalive"`
	KillGrace    time.Duration `yaml:"kill_grace"`
}

// Preset is a named launch template selectable at session creation.
type Preset struct {
	Command []string `yaml:"command"`
	PTY     bool     `yaml:"pty"`
	Dir     string   `yaml:"dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr: "127.0.0.1:8700",
		},
		Runtime: Runtime{
			Bin:        "strand",
			GatewayURL: "http://127.0.0.1:8719",
			ConfigPath: "",
		},
		Workdir: Workdir{
			Root: "",
		},
		Sessions: Sessions{
			RingCap:      5000,
			ReapInterval: 5 * time.Minute,
			MaxAge:       30 * time.Minute,
			Keepalive:    15 * time.Second,
			KillGrace:    2 * time.Second,
		},
	}
}

// Load reads the config at path over the defaults. A missing file is not
// an error: the defaults apply unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Preset resolves a session kind to its launch template. Config presets
// override the built-in kinds; the built-ins wrap the runtime CLI.
func (c *Config) Preset(kind string) (Preset, bool) {
	if p, ok := c.Presets[kind]; ok {
		return p, true
	}
	switch kind {
	case "terminal":
		return Preset{Command: []string{c.Runtime.Bin, "shell"}, PTY: true}, true
	case "setup":
		return Preset{Command: []string{c.Runtime.Bin, "setup", "--check"}}, true
	case "pair":
		return Preset{Command: []string{c.Runtime.Bin, "pair", "--qr"}}, true
	}
	return Preset{}, false
}
