package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d; want 8080", cfg.Server.Port)
	}
	if cfg.Sandbox.TestTimeoutSec != 5 {
		t.Errorf("Sandbox.TestTimeoutSec = %d; want 5", cfg.Sandbox.TestTimeoutSec)
	}
	if cfg.Queue.Enabled {
		t.Error("Queue.Enabled = true; want false by default")
	}
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d; want default 8080", cfg.Server.Port)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: 9090
  log_level: debug
sandbox:
  memory_mb: 512
  test_timeout_seconds: 3
queue:
  enabled: true
  workers: 5
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d; want 9090", cfg.Server.Port)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("Server.LogLevel = %q; want debug", cfg.Server.LogLevel)
	}
	if cfg.Sandbox.MemoryMB != 512 {
		t.Errorf("Sandbox.MemoryMB = %d; want 512", cfg.Sandbox.MemoryMB)
	}
	if !cfg.Queue.Enabled || cfg.Queue.Workers != 5 {
		t.Errorf("Queue = %+v; want enabled with 5 workers", cfg.Queue)
	}
	// unset sections keep defaults
	if cfg.Database.URL == "" {
		t.Error("Database.URL empty; want default")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PORT", "7000")
	t.Setenv("DATABASE_URL", "postgres://env:env@db:5432/env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d; want env override 7000", cfg.Server.Port)
	}
	if cfg.Database.URL != "postgres://env:env@db:5432/env" {
		t.Errorf("Database.URL = %q; want env override", cfg.Database.URL)
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("PORT", "-1")
	if _, err := Load(""); err == nil {
		t.Error("Load() with negative port: expected error")
	}
}
