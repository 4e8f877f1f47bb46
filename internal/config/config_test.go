package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Fatalf("unexpected server address %q", cfg.Server.Address)
	}
	if cfg.Pipeline.PeakMinDistance != 50 {
		t.Fatalf("expected default peak distance 50, got %d", cfg.Pipeline.PeakMinDistance)
	}
	if cfg.Pipeline.DefaultWindowSec != 300 {
		t.Fatalf("expected default window 300s, got %g", cfg.Pipeline.DefaultWindowSec)
	}
	if cfg.Stream.RawSubject != "ecg.raw" || cfg.Stream.StateSubject != "hrv.state" {
		t.Fatalf("unexpected stream subjects %q/%q", cfg.Stream.RawSubject, cfg.Stream.StateSubject)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	payload := []byte(`
server:
  address: ":9090"
archive:
  baseURL: "https://archive.example.com"
  timeout: 12s
pipeline:
  defaultWindowSec: 120
`)
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("HRV_SERVER_ADDRESS", ":7070")
	t.Setenv("HRV_LOG_FORMAT", "json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":7070" {
		t.Fatalf("env override lost, got %q", cfg.Server.Address)
	}
	if cfg.Archive.BaseURL != "https://archive.example.com" {
		t.Fatalf("yaml value lost, got %q", cfg.Archive.BaseURL)
	}
	if cfg.Archive.Timeout != 12*time.Second {
		t.Fatalf("expected 12s archive timeout, got %v", cfg.Archive.Timeout)
	}
	if cfg.Pipeline.DefaultWindowSec != 120 {
		t.Fatalf("expected 120s window, got %g", cfg.Pipeline.DefaultWindowSec)
	}
	if !cfg.Logging.JSON {
		t.Fatal("expected JSON logging from env override")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateRejectsBadWindowing(t *testing.T) {
	cfg := defaultConfig()
	cfg.Stream.Enabled = true
	cfg.Stream.StepSec = cfg.Stream.WindowSec + 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when step exceeds window")
	}

	cfg = defaultConfig()
	cfg.Pipeline.DefaultWindowSec = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero analysis window")
	}
}
