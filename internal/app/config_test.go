package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Relay.Kind != RelayNATS {
		t.Errorf("default relay kind = %q, want nats", cfg.Relay.Kind)
	}
	if cfg.Relay.NATS.URL == "" || cfg.Store.Path == "" {
		t.Error("defaults should fill nats url and store path")
	}
}

func TestLoadConfigMissingFileIsFine(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Relay.Kind != RelayNATS {
		t.Errorf("relay kind = %q, want nats", cfg.Relay.Kind)
	}
}

func TestLoadConfigFileAndEnvLayering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
relay:
  kind: ws
  ws:
    url: wss://file.example.com/rooms
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	// Env overrides the file.
	t.Setenv("SCRUMPO_WS_URL", "wss://env.example.com/rooms")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Relay.Kind != RelayWS {
		t.Errorf("relay kind = %q, want ws", cfg.Relay.Kind)
	}
	if cfg.Relay.WS.URL != "wss://env.example.com/rooms" {
		t.Errorf("ws url = %q, want the env override", cfg.Relay.WS.URL)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoadConfigRejectsUnknownRelay(t *testing.T) {
	t.Setenv("SCRUMPO_RELAY", "carrier-pigeon")
	if _, err := LoadConfig(""); err == nil {
		t.Fatal("unknown relay kind should fail validation")
	}
}

func TestLoadConfigRejectsMissingWSURL(t *testing.T) {
	t.Setenv("SCRUMPO_RELAY", RelayWS)
	if _, err := LoadConfig(""); err == nil {
		t.Fatal("ws relay without url should fail validation")
	}
}
