package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.API.BaseURL != DefaultBaseURL {
		t.Fatalf("unexpected base url %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout.Duration != 10*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.API.Timeout)
	}
	if cfg.Snapshot.Backend != BackendSQLite || cfg.Snapshot.Key != "kanbanState" {
		t.Fatalf("unexpected snapshot defaults %+v", cfg.Snapshot)
	}
}

func TestFromYAMLKeepsDefaultsForMissingKeys(t *testing.T) {
	cfg, err := FromYAML([]byte("api:\n  base_url: https://board.example.com/api\n  timeout: 3s\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.API.BaseURL != "https://board.example.com/api" || cfg.API.Timeout.Duration != 3*time.Second {
		t.Fatalf("unexpected api section %+v", cfg.API)
	}
	if cfg.Server.BasePath != "/v0" || cfg.Log.Level != "info" {
		t.Fatalf("defaults lost: %+v %+v", cfg.Server, cfg.Log)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"relative url":     "api:\n  base_url: localhost/api\n",
		"bad scheme":       "api:\n  base_url: ftp://host/api\n",
		"bad backend":      "snapshot:\n  backend: postgres\n",
		"redis no addr":    "snapshot:\n  backend: redis\n",
		"empty key":        "snapshot:\n  key: \"\"\n",
		"bad base path":    "server:\n  base_path: v0\n",
		"bad log format":   "log:\n  format: xml\n",
		"bad duration":     "api:\n  timeout: soon\n",
		"negative timeout": "api:\n  timeout: -1s\n",
	}
	for name, raw := range cases {
		if _, err := FromYAML([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadAndLoadOptional(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "kb config init") {
		t.Fatalf("expected missing config hint, got %v", err)
	}
	cfg, err := LoadOptional(dir)
	if err != nil || cfg == nil {
		t.Fatalf("optional load: %v", err)
	}
	if err := os.WriteFile(Path(dir), []byte(GenerateDefault("http://example.test/api")), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err = Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.BaseURL != "http://example.test/api" {
		t.Fatalf("unexpected base url %q", cfg.API.BaseURL)
	}
	if _, err := FromFile(filepath.Join(dir, "missing.yml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Snapshot.Backend = BackendRedis
	cfg.Snapshot.RedisAddr = "127.0.0.1:6379"
	out, err := cfg.YAML()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	again, err := FromYAML([]byte(out))
	if err != nil {
		t.Fatalf("reparse: %v\n%s", err, out)
	}
	if again.Snapshot.RedisAddr != "127.0.0.1:6379" || again.API.Timeout != cfg.API.Timeout {
		t.Fatalf("round trip mismatch: %+v", again)
	}
}
