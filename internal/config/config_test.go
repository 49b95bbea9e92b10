package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
jwt_secret: "s3cret"
relay:
  default_instance: "support-main"
  allowed_hosts: ["firebasestorage.googleapis.com"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPServer.Address != "localhost:8080" {
		t.Errorf("unexpected address %q", cfg.HTTPServer.Address)
	}
	if cfg.Memo.Backend != "none" || cfg.Memo.TTL != 6*time.Hour {
		t.Errorf("unexpected memo defaults %+v", cfg.Memo)
	}
	if cfg.Probe.Timeout != 5*time.Second || cfg.Probe.MinBytes != 32768 {
		t.Errorf("unexpected probe defaults %+v", cfg.Probe)
	}
	if cfg.Relay.DefaultInstance != "support-main" || len(cfg.Relay.AllowedHosts) != 1 {
		t.Errorf("unexpected relay config %+v", cfg.Relay)
	}
}

func TestLoadRejectsUnknownMemoBackend(t *testing.T) {
	path := writeConfig(t, `
jwt_secret: "s3cret"
memo:
  backend: "sqlite"
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "memo backend") {
		t.Fatalf("expected memo backend error, got %v", err)
	}
}

func TestLoadRedisMemoNeedsRedis(t *testing.T) {
	path := writeConfig(t, `
jwt_secret: "s3cret"
redis:
  enabled: false
memo:
  backend: "redis"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error when redis memo is used without redis")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
