package jobs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/AaronLay10/SentientJobs/internal/schedule"
)

const patrolJSON = `{
  "id": "patrol",
  "on_fail": {"policy": "run_task", "task_id": 2},
  "tasks": {
    "0": {"type": "spawn", "loc": {"x": 1, "y": 0, "z": 2}},
    "1": {"type": "wait", "schedule": {"kind": "real_delay", "seconds": 1.5}},
    "2": {"type": "despawn"}
  }
}`

func TestDecodeStringKeys(t *testing.T) {
	tpl, err := DecodeTemplate([]byte(patrolJSON), FormatJSON)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ids := tpl.Tasks.IDs()
	if len(ids) != 3 || ids[0] != 0 || ids[1] != 1 || ids[2] != 2 {
		t.Fatalf("expected ids 0,1,2, got %v", ids)
	}
	if tpl.ID != IdentityFromString("patrol") {
		t.Errorf("expected identity from label")
	}
	if tpl.OnFail != RunTaskPolicy(2) {
		t.Errorf("expected run_task(2), got %s", tpl.OnFail)
	}
	wait, ok := tpl.Tasks.Nodes[1].Task.(*Wait)
	if !ok || wait.Schedule.Kind != schedule.KindRealDelay || wait.Schedule.Seconds != 1.5 {
		t.Errorf("expected real delay wait, got %v", tpl.Tasks.Nodes[1].Task.Describe())
	}
}

func TestRoundTrip(t *testing.T) {
	original, err := DecodeTemplate([]byte(patrolJSON), FormatJSON)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	original.Tasks.Nodes[1].Next = Next(2)

	for _, format := range []Format{FormatJSON, FormatYAML, FormatTOML} {
		t.Run(string(format), func(t *testing.T) {
			data, err := EncodeTemplate(original, format)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			back, err := DecodeTemplate(data, format)
			if err != nil {
				t.Fatalf("decode: %v\n%s", err, data)
			}
			if back.ID != original.ID || back.OnFail != original.OnFail {
				t.Errorf("identity or policy changed: %s %s", back.ID, back.OnFail)
			}
			ids := back.Tasks.IDs()
			if len(ids) != 3 {
				t.Fatalf("expected 3 tasks, got %v", ids)
			}
			for _, id := range ids {
				want := original.Tasks.Nodes[id]
				got := back.Tasks.Nodes[id]
				if got.Task.Describe() != want.Task.Describe() {
					t.Errorf("task %d: got %q, want %q", id, got.Task.Describe(), want.Task.Describe())
				}
			}
			if n := back.Tasks.Nodes[1].Next; n == nil || *n != 2 {
				t.Errorf("expected explicit next 2 preserved")
			}
		})
	}
}

func TestDecodeRejectsDuplicateKeys(t *testing.T) {
	doc := `{"id": "dup", "tasks": {"0": {"type": "hide"}, "00": {"type": "show"}}}`
	_, err := DecodeTemplate([]byte(doc), FormatJSON)
	if !errors.Is(err, ErrDuplicateTaskKey) {
		t.Errorf("expected ErrDuplicateTaskKey, got %v", err)
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"non-numeric key", `{"id": "x", "tasks": {"a": {"type": "hide"}}}`, ErrInvalidTemplate},
		{"negative key", `{"id": "x", "tasks": {"-1": {"type": "hide"}}}`, ErrInvalidTemplate},
		{"missing id", `{"tasks": {"0": {"type": "hide"}}}`, ErrInvalidTemplate},
		{"unknown type", `{"id": "x", "tasks": {"0": {"type": "fly"}}}`, ErrInvalidTemplate},
		{"decision without options", `{"id": "x", "tasks": {"0": {"type": "decision"}}}`, ErrInvalidTemplate},
		{"dangling loop", `{"id": "x", "tasks": {"0": {"type": "loop", "start_id": 5}}}`, ErrNodeNotFound},
		{"unknown policy", `{"id": "x", "on_fail": {"policy": "retry"}, "tasks": {"0": {"type": "hide"}}}`, ErrInvalidTemplate},
		{"bad version", `{"version": 2, "id": "x", "tasks": {"0": {"type": "hide"}}}`, ErrInvalidTemplate},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeTemplate([]byte(tc.doc), FormatJSON)
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestDecodeYAMLAndTOML(t *testing.T) {
	yamlDoc := `
id: guard
start: 10
tasks:
  "10":
    type: wait
    schedule:
      kind: cron
      cron: "0 6 * * *"
  "11":
    type: loop
    start_id: 10
    max_iterations: 2
`
	tpl, err := DecodeTemplate([]byte(yamlDoc), FormatYAML)
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if tpl.Tasks.Current != 10 {
		t.Errorf("expected start 10, got %d", tpl.Tasks.Current)
	}
	loop := tpl.Tasks.Nodes[11].Task.(*Loop)
	if loop.Max == nil || *loop.Max != 2 {
		t.Errorf("expected loop bound 2")
	}

	tomlDoc := `
id = "sentry"

[on_fail]
policy = "despawn"

[tasks.0]
type = "teleport"
loc = { x = 3.0, y = 0.0, z = 1.0 }

[tasks.1]
type = "spawn_group"
jobs = ["guard", "patrol"]
`
	tpl, err = DecodeTemplate([]byte(tomlDoc), FormatTOML)
	if err != nil {
		t.Fatalf("toml: %v", err)
	}
	if tpl.OnFail.Kind != PolicyDespawn {
		t.Errorf("expected despawn policy, got %s", tpl.OnFail)
	}
	group := tpl.Tasks.Nodes[1].Task.(*SpawnGroup)
	if len(group.Jobs) != 2 || group.Jobs[1] != "patrol" {
		t.Errorf("expected spawn group [guard patrol], got %v", group.Jobs)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("patrol.json", patrolJSON)
	write("broken.yaml", "id: broken\ntasks:\n  \"0\":\n    type: fly\n")
	write("notes.txt", "not a job")

	tpls, err := LoadDir(dir)
	if err == nil {
		t.Error("expected error for broken.yaml")
	}
	if len(tpls) != 1 || tpls[0].Label != "patrol" {
		t.Errorf("expected only patrol to load, got %d templates", len(tpls))
	}
}

func TestFormatFromPath(t *testing.T) {
	for path, want := range map[string]Format{
		"a.json": FormatJSON,
		"b.YML":  FormatYAML,
		"c.yaml": FormatYAML,
		"d.toml": FormatTOML,
	} {
		if got, err := FormatFromPath(path); err != nil || got != want {
			t.Errorf("FormatFromPath(%s) = %s %v, want %s", path, got, err, want)
		}
	}
	if _, err := FormatFromPath("e.ini"); err == nil {
		t.Error("expected .ini to be rejected")
	}
}
