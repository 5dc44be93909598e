package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Store.Backend != BackendFile || cfg.Store.MaxMessages != 50 || cfg.Store.Dir != "./data" {
		t.Errorf("unexpected store defaults %+v", cfg.Store)
	}
	if cfg.Gateway.Timeout != 60*time.Second || cfg.Log.Level != "info" {
		t.Errorf("unexpected defaults %+v %+v", cfg.Gateway, cfg.Log)
	}
	if cfg.Model("openai") != "" {
		t.Errorf("expected empty model override")
	}
}

// TestLoad_FileThenEnv verifies YAML values are applied and environment
// variables override them.
func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, "chatgate.yaml", strings.Join([]string{
		"store:",
		"  backend: redis",
		"  max_messages: 20",
		"redis:",
		"  addr: redis:6379",
		"  ttl: 24h",
		"gateway:",
		"  timeout: 15s",
		"  retries: 2",
		"providers:",
		"  anthropic:",
		"    model: claude-3-5-sonnet-latest",
	}, "\n"))

	t.Setenv("CHATGATE_STORE_MAX_MESSAGES", "30")
	t.Setenv("CHATGATE_LOG_FORMAT", "json")

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Store.Backend != BackendRedis || cfg.Redis.Addr != "redis:6379" || cfg.Redis.TTL != 24*time.Hour {
		t.Errorf("unexpected file values %+v %+v", cfg.Store, cfg.Redis)
	}
	if cfg.Store.MaxMessages != 30 || cfg.Log.Format != "json" {
		t.Errorf("expected env overrides, got %+v %+v", cfg.Store, cfg.Log)
	}
	if cfg.Gateway.Timeout != 15*time.Second || cfg.Gateway.Retries != 2 {
		t.Errorf("unexpected gateway config %+v", cfg.Gateway)
	}
	if cfg.Model("anthropic") != "claude-3-5-sonnet-latest" {
		t.Errorf("unexpected model %q", cfg.Model("anthropic"))
	}
}

func TestLoad_DotEnv(t *testing.T) {
	envFile := writeFile(t, ".env", "CHATGATE_STORE_BACKEND=memory\n")
	t.Cleanup(func() { _ = os.Unsetenv("CHATGATE_STORE_BACKEND") })

	cfg, err := Load("", envFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Store.Backend != BackendMemory {
		t.Errorf("expected .env value, got %q", cfg.Store.Backend)
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("CHATGATE_STORE_BACKEND", "postgres")
	if _, err := Load("", filepath.Join(t.TempDir(), "missing.env")); err == nil || !strings.Contains(err.Error(), "postgres") {
		t.Errorf("expected unknown backend error, got %v", err)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Errorf("expected error for missing config file")
	}
}
