package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("SEND_QUEUE_SIZE", "128")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("ListenAddr = %q, want default :8080", cfg.ListenAddr)
	}
	if cfg.SendQueueSize != 128 {
		t.Fatalf("SendQueueSize = %d, want 128", cfg.SendQueueSize)
	}
}

func TestLoadRequiresRedisURL(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("REDIS_URL", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when REDIS_URL missing")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "listen_addr: \":9000\"\nredis_url: \"redis://file:6379/0\"\nstats_addr: \":9090\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("REDIS_URL", "redis://env:6379/1")
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("STATS_ADDR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9000" || cfg.StatsAddr != ":9090" {
		t.Fatalf("file values not applied: %q / %q", cfg.ListenAddr, cfg.StatsAddr)
	}
	if cfg.RedisURL != "redis://env:6379/1" {
		t.Fatalf("env did not override file: %q", cfg.RedisURL)
	}
}
