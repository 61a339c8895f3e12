package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// resetViper isolates tests that touch the global viper instance.
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "owlbridge.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_FromFile(t *testing.T) {
	resetViper(t)

	path := writeConfig(t, `
server:
  http_addr: "0.0.0.0:9000"
  max_concurrent: 2
peer:
  command: /usr/local/bin/rustowl
  args: ["--stdio"]
  timeout: 90s
  sync: delay
  write_delay: 50ms
workspace:
  dir: /srv/crate/src
cache:
  enabled: true
rate_limit:
  enabled: false
auth:
  api_keys:
    - name: ci
      key_hash: "sha256:`+strings.Repeat("a", 64)+`"
`)
	InitViper(path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if ConfigFileUsed() != path {
		t.Errorf("ConfigFileUsed() = %q, want %q", ConfigFileUsed(), path)
	}
	if cfg.Server.HTTPAddr != "0.0.0.0:9000" || cfg.Server.MaxConcurrent != 2 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Peer.Command != "/usr/local/bin/rustowl" || len(cfg.Peer.Args) != 1 || cfg.Peer.Args[0] != "--stdio" {
		t.Errorf("Peer = %+v", cfg.Peer)
	}
	if cfg.PeerTimeout() != 90*time.Second || cfg.WriteDelay() != 50*time.Millisecond || cfg.Peer.Sync != "delay" {
		t.Errorf("Peer timing = %+v", cfg.Peer)
	}
	if cfg.Workspace.Dir != "/srv/crate/src" {
		t.Errorf("Workspace.Dir = %q", cfg.Workspace.Dir)
	}
	if !cfg.Cache.Enabled || cfg.Cache.MaxEntries != 256 {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.RateLimit.Enabled {
		t.Error("RateLimit.Enabled = true, want explicit false preserved")
	}
	if len(cfg.Auth.APIKeys) != 1 || cfg.Auth.APIKeys[0].Name != "ci" {
		t.Errorf("Auth = %+v", cfg.Auth)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	resetViper(t)
	t.Setenv("OWLBRIDGE_SERVER_HTTP_ADDR", "127.0.0.1:9999")
	t.Setenv("OWLBRIDGE_PEER_SYNC", "delay")
	t.Setenv("OWLBRIDGE_DEV_MODE", "true")

	path := writeConfig(t, "server:\n  http_addr: \"127.0.0.1:1111\"\n")
	InitViper(path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Server.HTTPAddr != "127.0.0.1:9999" {
		t.Errorf("HTTPAddr = %q, want env override", cfg.Server.HTTPAddr)
	}
	if cfg.Peer.Sync != "delay" {
		t.Errorf("Peer.Sync = %q, want delay", cfg.Peer.Sync)
	}
	if !cfg.DevMode || cfg.Server.LogLevel != "debug" {
		t.Errorf("DevMode = %v, LogLevel = %q", cfg.DevMode, cfg.Server.LogLevel)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	resetViper(t)

	InitViper(writeConfig(t, "peer:\n  sync: sometimes\n"))

	_, err := LoadConfig()
	if err == nil || !strings.Contains(err.Error(), "config validation failed") {
		t.Errorf("LoadConfig() error = %v, want validation failure", err)
	}
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	resetViper(t)

	InitViper(writeConfig(t, "server: [unclosed\n"))

	_, err := LoadConfig()
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("LoadConfig() error = %v, want read failure", err)
	}
}

func TestLoadConfigRaw_NoFile(t *testing.T) {
	resetViper(t)
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	InitViper("")

	cfg, err := LoadConfigRaw()
	if err != nil {
		t.Fatalf("LoadConfigRaw() error: %v", err)
	}
	if cfg.Server.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("HTTPAddr = %q, want default", cfg.Server.HTTPAddr)
	}
	if ConfigFileUsed() != "" && !strings.HasPrefix(ConfigFileUsed(), "/etc/owlbridge") {
		t.Errorf("ConfigFileUsed() = %q, want no file", ConfigFileUsed())
	}
}
