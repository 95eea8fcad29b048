package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, resolved, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved != path {
		t.Fatalf("resolved %q, want %q", resolved, path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}

	def := Default()
	if cfg.PollInterval != def.PollInterval || cfg.Latency != def.Latency {
		t.Fatalf("unexpected timings: %+v", cfg)
	}
	if cfg.Storage.Key != def.Storage.Key || cfg.Storage.Backend != def.Storage.Backend {
		t.Fatalf("unexpected storage: %+v", cfg.Storage)
	}

	// The written file must load back to the same values.
	again, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again != cfg {
		t.Fatalf("reload mismatch:\n%+v\n%+v", again, cfg)
	}
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
poll_interval: 2s
latency: 0s
storage:
  backend: sqlite
  key: custom.rooms
  sqlite_path: /tmp/rooms.db
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("poll_interval = %v", cfg.PollInterval)
	}
	if cfg.Latency != 0 {
		t.Fatalf("latency = %v", cfg.Latency)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Storage.Key != "custom.rooms" || cfg.Storage.SQLitePath != "/tmp/rooms.db" {
		t.Fatalf("unexpected storage: %+v", cfg.Storage)
	}
	if cfg.Addr != Default().Addr {
		t.Fatalf("unset keys should keep defaults, addr = %q", cfg.Addr)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  key: from.file\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ROOMCHAT_STORAGE_KEY", "from.env")
	t.Setenv("ROOMCHAT_POLL_INTERVAL", "150ms")

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Key != "from.env" {
		t.Fatalf("storage.key = %q", cfg.Storage.Key)
	}
	if cfg.PollInterval != 150*time.Millisecond {
		t.Fatalf("poll_interval = %v", cfg.PollInterval)
	}
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("addr: [unclosed"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := Load(nil, path); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

func TestResolveConfigPathFromEnv(t *testing.T) {
	base := filepath.Join(t.TempDir(), "cfg")
	t.Setenv(envConfigDefaultPath, base)

	if got := resolveConfigPath(""); got != filepath.Join(base, defaultConfigName) {
		t.Fatalf("resolveConfigPath = %q", got)
	}
	if got := resolveConfigPath("/explicit.yaml"); got != "/explicit.yaml" {
		t.Fatalf("explicit path ignored: %q", got)
	}
}

func TestUpdateFrom(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{
		LogLevel:     "debug",
		PollInterval: 3 * time.Second,
		Storage:      StorageConfig{Backend: "memory"},
	})

	if cfg.LogLevel != "debug" || cfg.PollInterval != 3*time.Second {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Storage.Backend != "memory" {
		t.Fatalf("storage override not applied: %+v", cfg.Storage)
	}
	if cfg.Storage.Key != Default().Storage.Key || cfg.Addr != Default().Addr {
		t.Fatal("zero values must not override")
	}
}
