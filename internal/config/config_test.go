package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadEngineConfigDefaults(t *testing.T) {
	path := writeConfig(t, "version: 1\nengine:\n  name: test\n")

	cfg, err := LoadEngineConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dir := filepath.Dir(path)

	if cfg.Tick() != 100*time.Millisecond {
		t.Errorf("expected default tick 100ms, got %s", cfg.Tick())
	}
	if !cfg.Active() {
		t.Error("expected active by default")
	}
	if d, _ := cfg.HourLength(); d != time.Minute {
		t.Errorf("expected default hour length 1m, got %s", d)
	}
	if start, _ := cfg.CalendarStart(); !start.IsZero() {
		t.Errorf("expected zero calendar start, got %s", start)
	}
	if got := cfg.JobDirs(); len(got) != 1 || got[0] != filepath.Join(dir, "jobs") {
		t.Errorf("unexpected job dirs %v", got)
	}
	if len(cfg.TriggerFiles()) != 0 {
		t.Errorf("expected no trigger files, got %v", cfg.TriggerFiles())
	}
	if cfg.UIPort() != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.UIPort())
	}
	if cfg.MQTTClientID() != "jobengine-test" {
		t.Errorf("unexpected client id %s", cfg.MQTTClientID())
	}
	if cfg.TopicPrefix() != "jobs" {
		t.Errorf("unexpected topic prefix %s", cfg.TopicPrefix())
	}
	if cfg.StorageDriver() != DriverNone {
		t.Errorf("expected no storage, got %s", cfg.StorageDriver())
	}
	if cfg.SQLitePath() != filepath.Join(dir, "data", "events.db") {
		t.Errorf("unexpected sqlite path %s", cfg.SQLitePath())
	}
	if cfg.PostgresPort() != "5432" {
		t.Errorf("unexpected postgres port %s", cfg.PostgresPort())
	}
}

func TestLoadEngineConfigValues(t *testing.T) {
	path := writeConfig(t, `version: 1
engine:
  name: lab
  tick_ms: 50
  active: false
  debug: true
  seed: 7
  hour_length: 10s
  calendar_start: "2026-01-01T06:00:00Z"
jobs:
  dirs: [/srv/jobs, more]
  triggers: [triggers.yaml]
network:
  ui_port: 9090
mqtt:
  enabled: true
  client_id: custom
  topic_prefix: lab/jobs
storage:
  driver: sqlite
  sqlite_path: /var/lib/jobs.db
`)
	cfg, err := LoadEngineConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dir := filepath.Dir(path)

	if cfg.Tick() != 50*time.Millisecond {
		t.Errorf("unexpected tick %s", cfg.Tick())
	}
	if cfg.Active() {
		t.Error("expected inactive")
	}
	if !cfg.Engine.Debug || cfg.Engine.Seed != 7 {
		t.Error("expected debug and seed")
	}
	if d, _ := cfg.HourLength(); d != 10*time.Second {
		t.Errorf("unexpected hour length %s", d)
	}
	start, _ := cfg.CalendarStart()
	if start.Hour() != 6 {
		t.Errorf("unexpected calendar start %s", start)
	}
	dirs := cfg.JobDirs()
	if dirs[0] != "/srv/jobs" || dirs[1] != filepath.Join(dir, "more") {
		t.Errorf("unexpected job dirs %v", dirs)
	}
	if cfg.TriggerFiles()[0] != filepath.Join(dir, "triggers.yaml") {
		t.Errorf("unexpected trigger files %v", cfg.TriggerFiles())
	}
	if cfg.UIPort() != 9090 || !cfg.MQTT.Enabled || cfg.MQTTClientID() != "custom" || cfg.TopicPrefix() != "lab/jobs" {
		t.Error("unexpected network or mqtt settings")
	}
	if cfg.StorageDriver() != DriverSQLite || cfg.SQLitePath() != "/var/lib/jobs.db" {
		t.Error("unexpected storage settings")
	}
}

func TestLoadEngineConfigRejects(t *testing.T) {
	cases := map[string]string{
		"version":        "version: 2\n",
		"driver":         "version: 1\nstorage:\n  driver: mongo\n",
		"hour length":    "version: 1\nengine:\n  hour_length: soon\n",
		"negative hour":  "version: 1\nengine:\n  hour_length: -1s\n",
		"calendar start": "version: 1\nengine:\n  calendar_start: tuesday\n",
		"yaml":           "version: [1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadEngineConfig(writeConfig(t, body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadEngineConfigMissingFile(t *testing.T) {
	if _, err := LoadEngineConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
