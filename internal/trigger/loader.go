package trigger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AaronLay10/SentientJobs/internal/schedule"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Document is the persisted shape of one trigger, or of a list of them under
// Triggers.
type Document struct {
	ID       string             `json:"id,omitempty" yaml:"id,omitempty" toml:"id,omitempty"`
	Job      string             `json:"job,omitempty" yaml:"job,omitempty" toml:"job,omitempty"`
	Schedule *schedule.Schedule `json:"schedule,omitempty" yaml:"schedule,omitempty" toml:"schedule,omitempty"`
	Active   *bool              `json:"active,omitempty" yaml:"active,omitempty" toml:"active,omitempty"`
	Triggers []Document         `json:"triggers,omitempty" yaml:"triggers,omitempty" toml:"triggers,omitempty"`
}

// LoadFile reads a trigger document in JSON, YAML or TOML, picked by
// extension.
func LoadFile(path string) ([]Trigger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trigger file: %w", err)
	}

	var doc Document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &doc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	case ".toml":
		_, err = toml.Decode(string(data), &doc)
	default:
		return nil, fmt.Errorf("unsupported trigger file extension %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse trigger file %s: %w", path, err)
	}
	return doc.Build()
}

// Build converts the document into triggers. Triggers default to active and
// to an instant schedule; ids default to the job name.
func (d *Document) Build() ([]Trigger, error) {
	docs := d.Triggers
	if d.Job != "" {
		docs = append([]Document{{ID: d.ID, Job: d.Job, Schedule: d.Schedule, Active: d.Active}}, docs...)
	}
	out := make([]Trigger, 0, len(docs))
	seen := make(map[string]bool, len(docs))
	for i, td := range docs {
		if td.Job == "" {
			return nil, fmt.Errorf("trigger %d has no job", i)
		}
		t := Trigger{ID: td.ID, Job: td.Job, Schedule: schedule.Instant(), Active: true}
		if t.ID == "" {
			t.ID = td.Job
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("duplicate trigger id %q", t.ID)
		}
		seen[t.ID] = true
		if td.Schedule != nil {
			t.Schedule = *td.Schedule
		}
		if td.Active != nil {
			t.Active = *td.Active
		}
		if err := t.Schedule.Parse(); err != nil {
			return nil, fmt.Errorf("trigger %s: %w", t.ID, err)
		}
		out = append(out, t)
	}
	return out, nil
}
