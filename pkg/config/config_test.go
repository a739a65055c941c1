package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Workflow.StepTimeout != 30*time.Second {
		t.Errorf("unexpected default step timeout: %v", cfg.Workflow.StepTimeout)
	}
}

func TestLoadMissingDefaultFile(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(cwd)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected defaults for missing file, got %v", err)
	}
	if cfg.ProjectsRoot != "projects" {
		t.Errorf("unexpected projects root: %s", cfg.ProjectsRoot)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openlaunch.yaml")
	content := `
projectsRoot: /srv/projects
store:
  path: /var/lib/openlaunch/runs.db
workflow:
  stepTimeout: 10s
  allowRetry: false
log:
  level: debug
  format: json
metrics:
  enabled: true
  listenAddress: ":9191"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.ProjectsRoot != "/srv/projects" {
		t.Errorf("projectsRoot not overridden: %s", cfg.ProjectsRoot)
	}
	if cfg.Workflow.StepTimeout != 10*time.Second {
		t.Errorf("stepTimeout not overridden: %v", cfg.Workflow.StepTimeout)
	}
	if cfg.Workflow.AllowRetry {
		t.Error("allowRetry not overridden")
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log config not overridden: %+v", cfg.Log)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.ListenAddress != ":9191" {
		t.Errorf("metrics config not overridden: %+v", cfg.Metrics)
	}
	// Untouched fields keep their defaults
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("metrics path default lost: %s", cfg.Metrics.Path)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"bad log level", "log:\n  level: loud\n"},
		{"bad tracing exporter", "tracing:\n  exporter: carrier-pigeon\n"},
		{"sampling rate above one", "tracing:\n  samplingRate: 1.5\n"},
		{"empty projects root", "projectsRoot: \"\"\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "openlaunch.yaml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestTelemetryMapping(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "warn"
	cfg.Metrics.Enabled = true
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.Endpoint = "collector:4317"

	tcfg := cfg.Telemetry("1.2.3")
	if tcfg.ServiceVersion != "1.2.3" {
		t.Errorf("service version not applied: %s", tcfg.ServiceVersion)
	}
	if tcfg.Logging.Level != "warn" {
		t.Errorf("log level not mapped: %s", tcfg.Logging.Level)
	}
	if !tcfg.Metrics.Enabled {
		t.Error("metrics enablement not mapped")
	}
	if tcfg.Tracing.Exporter != "otlp" || tcfg.Tracing.Endpoint != "collector:4317" {
		t.Errorf("tracing config not mapped: %+v", tcfg.Tracing)
	}
}
