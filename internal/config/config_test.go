package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("http addr %q", cfg.HTTPAddr)
	}
	if cfg.SamplePeriod() != 3*time.Second {
		t.Fatalf("sample period %s", cfg.SamplePeriod())
	}
	if cfg.Retention() != 90*24*time.Hour {
		t.Fatalf("retention %s", cfg.Retention())
	}
	if cfg.InterlockWindow() != 5*time.Second {
		t.Fatalf("interlock window %s", cfg.InterlockWindow())
	}
	if cfg.Sampling.PurgeDailyAt != "00:00" {
		t.Fatalf("purge time %q", cfg.Sampling.PurgeDailyAt)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PLANT_HTTP_ADDR", ":9090")
	t.Setenv("PLANT_SAMPLE_PERIOD_SECONDS", "10")
	t.Setenv("PLANT_PURGE_DAILY_AT", "02:30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("http addr %q", cfg.HTTPAddr)
	}
	if cfg.SamplePeriod() != 10*time.Second {
		t.Fatalf("sample period %s", cfg.SamplePeriod())
	}
	if cfg.Sampling.PurgeDailyAt != "02:30" {
		t.Fatalf("purge time %q", cfg.Sampling.PurgeDailyAt)
	}
}

func TestLoadYAMLOverridesEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plant.yaml")
	payload := []byte("http_addr: \":7070\"\nengine:\n  interlock_window_seconds: 8\n")
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	t.Setenv("PLANT_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":7070" {
		t.Fatalf("http addr %q", cfg.HTTPAddr)
	}
	if cfg.InterlockWindow() != 8*time.Second {
		t.Fatalf("interlock window %s", cfg.InterlockWindow())
	}
}

func TestLoadRejectsBadPurgeTime(t *testing.T) {
	t.Setenv("PLANT_PURGE_DAILY_AT", "25:99")
	if _, err := Load(); err == nil {
		t.Fatal("expected validation error")
	}
}
