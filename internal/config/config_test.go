package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:8700" {
		t.Errorf("default addr: got %q", cfg.Server.Addr)
	}
	if cfg.Sessions.RingCap != 5000 {
		t.Errorf("default ring cap: got %d, want 5000", cfg.Sessions.RingCap)
	}
	if cfg.Sessions.MaxAge != 30*time.Minute {
		t.Errorf("default max age: got %v, want 30m", cfg.Sessions.MaxAge)
	}
	if cfg.Sessions.Keepalive != 15*time.Second {
		t.Errorf("default keepalive: got %v, want 15s", cfg.Sessions.Keepalive)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "skiff.yaml")
	raw := `
server:
  addr: "127.0.0.1:9999"
runtime:
  bin: /usr/local/bin/strand
  gateway_url: http://127.0.0.1:4000
sessions:
  ring_cap: 100
  reap_interval: 1m
  max_age: 10m
`
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9999" {
		t.Errorf("addr: got %q", cfg.Server.Addr)
	}
	if cfg.Runtime.Bin != "/usr/local/bin/strand" {
		t.Errorf("runtime bin: got %q", cfg.Runtime.Bin)
	}
	if cfg.Sessions.RingCap != 100 {
		t.Errorf("ring cap: got %d, want 100", cfg.Sessions.RingCap)
	}
	if cfg.Sessions.ReapInterval != time.Minute {
		t.Errorf("reap interval: got %v, want 1m", cfg.Sessions.ReapInterval)
	}
	if cfg.Sessions.MaxAge != 10*time.Minute {
		t.Errorf("max age: got %v, want 10m", cfg.Sessions.MaxAge)
	}
	// Untouched keys keep their defaults.
	if cfg.Sessions.KillGrace != 2*time.Second {
		t.Errorf("kill grace: got %v, want default 2s", cfg.Sessions.KillGrace)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load malformed yaml: got nil error")
	}
}

func TestBuiltinPresets(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Runtime.Bin = "/opt/strand/bin/strand"

	term, ok := cfg.Preset("terminal")
	if !ok {
		t.Fatal("terminal preset missing")
	}
	if !term.PTY {
		t.Error("terminal preset not a pty")
	}
	if term.Command[0] != "/opt/strand/bin/strand" {
		t.Errorf("terminal command: got %q, want runtime bin", term.Command[0])
	}

	setup, ok := cfg.Preset("setup")
	if !ok || setup.PTY {
		t.Errorf("setup preset: ok=%v pty=%v, want ok and no pty", ok, setup.PTY)
	}
	if _, ok := cfg.Preset("pair"); !ok {
		t.Error("pair preset missing")
	}
	if _, ok := cfg.Preset("unknown-kind"); ok {
		t.Error("unknown preset resolved")
	}
}

func TestConfigPresetOverridesBuiltin(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "skiff.yaml")
	raw := `
presets:
  terminal:
    command: ["/bin/bash", "-l"]
    pty: true
  soak:
    command: ["/usr/bin/strand", "soak", "--hours", "8"]
`
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	term, ok := cfg.Preset("terminal")
	if !ok || term.Command[0] != "/bin/bash" {
		t.Errorf("overridden terminal preset: ok=%v command=%v", ok, term.Command)
	}
	if _, ok := cfg.Preset("soak"); !ok {
		t.Error("custom preset missing")
	}
}
