package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Profile != DefaultProfile {
		t.Errorf("Profile = %q, want %q", cfg.Profile, DefaultProfile)
	}
	if cfg.Storage.Backend != BackendSQLite {
		t.Errorf("Backend = %q, want sqlite", cfg.Storage.Backend)
	}
	if cfg.Analysis.Debounce != 5*time.Second {
		t.Errorf("Debounce = %v, want 5s", cfg.Analysis.Debounce)
	}
	if cfg.Analysis.Workers != DefaultAnalysis.Workers {
		t.Errorf("Workers = %d, want %d", cfg.Analysis.Workers, DefaultAnalysis.Workers)
	}
	if len(cfg.Analysis.Extensions) != len(DefaultAnalysis.Extensions) {
		t.Errorf("Extensions = %v", cfg.Analysis.Extensions)
	}
	if cfg.Analyzer.Placeholder || cfg.Analyzer.SecretScan {
		t.Error("optional analyzer passes should default to off")
	}
	if cfg.Log.Level != "warn" || cfg.Log.Format != "console" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Metrics.Addr != "" {
		t.Errorf("metrics should be disabled by default, got %q", cfg.Metrics.Addr)
	}
	if cfg.Alerts.MinPriority != "HIGH" {
		t.Errorf("Alerts.MinPriority = %q", cfg.Alerts.MinPriority)
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	path := writeConfig(t, `
profile: work
storage:
  backend: YAML
  path: ~/codehint-profiles
analysis:
  debounce: 2s
  workers: 2
  extensions: [".java", "kt"]
analyzer:
  placeholder: true
  secret_scan: true
log:
  level: debug
  format: json
output:
  color: false
  width: 120
metrics:
  addr: 127.0.0.1:9464
alerts:
  min_priority: CRITICAL
  notify: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Profile != "work" {
		t.Errorf("Profile = %q", cfg.Profile)
	}
	if cfg.Storage.Backend != BackendYAML {
		t.Errorf("Backend = %q, want yaml (normalized)", cfg.Storage.Backend)
	}
	home, _ := os.UserHomeDir()
	if cfg.Storage.Path != filepath.Join(home, "codehint-profiles") {
		t.Errorf("Storage.Path = %q, want expanded home path", cfg.Storage.Path)
	}
	if cfg.Analysis.Debounce != 2*time.Second || cfg.Analysis.Workers != 2 {
		t.Errorf("Analysis = %+v", cfg.Analysis)
	}
	if len(cfg.Analysis.Extensions) != 2 || cfg.Analysis.Extensions[1] != "kt" {
		t.Errorf("Extensions = %v", cfg.Analysis.Extensions)
	}
	if !cfg.Analyzer.Placeholder || !cfg.Analyzer.SecretScan {
		t.Errorf("Analyzer = %+v", cfg.Analyzer)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Output.Color || cfg.Output.Width != 120 {
		t.Errorf("Output = %+v", cfg.Output)
	}
	if cfg.Metrics.Addr != "127.0.0.1:9464" {
		t.Errorf("Metrics.Addr = %q", cfg.Metrics.Addr)
	}
	if cfg.Alerts.MinPriority != "CRITICAL" || !cfg.Alerts.Notify {
		t.Errorf("Alerts = %+v", cfg.Alerts)
	}
	if cfg.StoragePath() != cfg.Storage.Path {
		t.Errorf("StoragePath = %q, want configured path", cfg.StoragePath())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CODEHINT_LOG_LEVEL", "error")
	t.Setenv("CODEHINT_ANALYSIS_WORKERS", "8")
	t.Setenv("CODEHINT_STORAGE_BACKEND", "memory")

	path := writeConfig(t, "log:\n  level: debug\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("env should win over file: Level = %q", cfg.Log.Level)
	}
	if cfg.Analysis.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Analysis.Workers)
	}
	if cfg.StoragePath() != "" {
		t.Errorf("memory backend has no path, got %q", cfg.StoragePath())
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown backend", "storage:\n  backend: postgres\n"},
		{"zero workers", "analysis:\n  workers: 0\n"},
		{"negative debounce", "analysis:\n  debounce: -1s\n"},
		{"narrow output", "output:\n  width: 10\n"},
		{"empty profile", "profile: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "storage: [unclosed\n"))
	if err == nil {
		t.Fatal("expected error for malformed YAML")
	}
	if errors.Is(err, ErrInvalidConfig) {
		t.Error("parse errors are not validation errors")
	}
}

func TestStoragePath_Defaults(t *testing.T) {
	sqlite := &Config{Storage: Storage{Backend: BackendSQLite}}
	if sqlite.StoragePath() != DBPath() {
		t.Errorf("sqlite default = %q, want %q", sqlite.StoragePath(), DBPath())
	}
	yaml := &Config{Storage: Storage{Backend: BackendYAML}}
	if yaml.StoragePath() != filepath.Join(ConfigDir(), DefaultProfilesDir) {
		t.Errorf("yaml default = %q", yaml.StoragePath())
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := map[string]string{
		"~/x/y":     filepath.Join(home, "x/y"),
		"/abs/path": "/abs/path",
		"rel/path":  "rel/path",
		"~user/x":   "~user/x",
	}
	for in, want := range tests {
		if got := expandPath(in); got != want {
			t.Errorf("expandPath(%q) = %q, want %q", in, got, want)
		}
	}
}
