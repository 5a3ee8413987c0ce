package jobs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/AaronLay10/SentientJobs/internal/schedule"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a job document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the document format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported job document extension %q", filepath.Ext(path))
	}
}

// Document is the persisted shape of a job template. Task keys are strings
// holding non-negative integers.
type Document struct {
	Version int                `json:"version,omitempty" yaml:"version,omitempty" toml:"version,omitempty"`
	ID      string             `json:"id" yaml:"id" toml:"id"`
	Start   *uint32            `json:"start,omitempty" yaml:"start,omitempty" toml:"start,omitempty"`
	OnFail  *PolicyDocument    `json:"on_fail,omitempty" yaml:"on_fail,omitempty" toml:"on_fail,omitempty"`
	Tasks   map[string]NodeDoc `json:"tasks" yaml:"tasks" toml:"tasks"`
}

// PolicyDocument is the persisted FailurePolicy.
type PolicyDocument struct {
	Policy string  `json:"policy" yaml:"policy" toml:"policy"`
	TaskID *uint32 `json:"task_id,omitempty" yaml:"task_id,omitempty" toml:"task_id,omitempty"`
}

// NodeDoc is one persisted task node. Type selects the task kind and which of
// the remaining fields apply.
type NodeDoc struct {
	Type          string             `json:"type" yaml:"type" toml:"type"`
	Next          *uint32            `json:"next,omitempty" yaml:"next,omitempty" toml:"next,omitempty"`
	Loc           *Vec3              `json:"loc,omitempty" yaml:"loc,omitempty" toml:"loc,omitempty"`
	Target        *Vec3              `json:"target,omitempty" yaml:"target,omitempty" toml:"target,omitempty"`
	Speed         float64            `json:"speed,omitempty" yaml:"speed,omitempty" toml:"speed,omitempty"`
	Angle         float64            `json:"angle,omitempty" yaml:"angle,omitempty" toml:"angle,omitempty"`
	Schedule      *schedule.Schedule `json:"schedule,omitempty" yaml:"schedule,omitempty" toml:"schedule,omitempty"`
	Min           float64            `json:"min,omitempty" yaml:"min,omitempty" toml:"min,omitempty"`
	Max           float64            `json:"max,omitempty" yaml:"max,omitempty" toml:"max,omitempty"`
	Opt1          *uint32            `json:"opt1,omitempty" yaml:"opt1,omitempty" toml:"opt1,omitempty"`
	Opt2          *uint32            `json:"opt2,omitempty" yaml:"opt2,omitempty" toml:"opt2,omitempty"`
	StartID       *uint32            `json:"start_id,omitempty" yaml:"start_id,omitempty" toml:"start_id,omitempty"`
	MaxIterations *uint32            `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty" toml:"max_iterations,omitempty"`
	Jobs          []string           `json:"jobs,omitempty" yaml:"jobs,omitempty" toml:"jobs,omitempty"`
}

// LoadTemplate reads and decodes a job document, choosing the format from the
// file extension.
func LoadTemplate(path string) (*Template, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}
	tpl, err := DecodeTemplate(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tpl, nil
}

// LoadDir decodes every job document in dir. Broken documents are reported
// together and skipped; the good ones are still returned.
func LoadDir(dir string) ([]*Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read job directory: %w", err)
	}
	var (
		out  []*Template
		errs []error
	)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if _, err := FormatFromPath(path); err != nil {
			continue
		}
		tpl, err := LoadTemplate(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, tpl)
	}
	return out, errors.Join(errs...)
}

// DecodeTemplate parses a job document and builds a validated template.
func DecodeTemplate(data []byte, format Format) (*Template, error) {
	var doc Document
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case FormatTOML:
		_, err = toml.Decode(string(data), &doc)
	default:
		return nil, fmt.Errorf("unsupported job document format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse job %s: %w", format, err)
	}
	return doc.Template()
}

// Template converts the document into a validated template.
func (d *Document) Template() (*Template, error) {
	if d.Version != 0 && d.Version != 1 {
		return nil, invalidf("unsupported job document version: %d", d.Version)
	}
	if d.ID == "" {
		return nil, invalidf("job document has no id")
	}

	graph := NewTaskGraph()
	keys := make(map[TaskID]string, len(d.Tasks))
	for key, nd := range d.Tasks {
		id, err := ParseTaskID(key)
		if err != nil {
			return nil, &JobError{Kind: ErrInvalidTemplate, Msg: fmt.Sprintf("job %q: %v", d.ID, err)}
		}
		if prev, dup := keys[id]; dup {
			a, b := prev, key
			if b < a {
				a, b = b, a
			}
			return nil, &JobError{
				Kind: ErrDuplicateTaskKey,
				Task: id,
				Msg:  fmt.Sprintf("job %q: keys %q and %q both name task %d", d.ID, a, b, id),
			}
		}
		keys[id] = key

		task, err := nd.task()
		if err != nil {
			return nil, &JobError{Kind: ErrInvalidTemplate, Task: id, Msg: fmt.Sprintf("job %q task %q: %v", d.ID, key, err)}
		}
		graph.AddAt(id, task, taskIDPtr(nd.Next))
	}
	if d.Start != nil {
		graph.Current = TaskID(*d.Start)
	}

	onFail, err := d.OnFail.policy()
	if err != nil {
		return nil, invalidf("job %q: %v", d.ID, err)
	}

	tpl := NewTemplate(d.ID, graph, onFail)
	if err := tpl.Validate(); err != nil {
		return nil, err
	}
	return tpl, nil
}

// EncodeTemplate renders tpl as a job document.
func EncodeTemplate(tpl *Template, format Format) ([]byte, error) {
	doc := NewDocument(tpl)
	switch format {
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	case FormatYAML:
		return yaml.Marshal(doc)
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported job document format %q", format)
	}
}

// NewDocument converts a template into its persisted shape.
func NewDocument(tpl *Template) *Document {
	start := uint32(tpl.Tasks.Current)
	doc := &Document{
		Version: 1,
		ID:      tpl.Label,
		Start:   &start,
		Tasks:   make(map[string]NodeDoc, len(tpl.Tasks.Nodes)),
	}
	if tpl.OnFail.Kind != "" && tpl.OnFail.Kind != PolicyCancel {
		doc.OnFail = &PolicyDocument{Policy: string(tpl.OnFail.Kind)}
		if tpl.OnFail.Kind == PolicyRunTask {
			doc.OnFail.TaskID = u32(tpl.OnFail.Task)
		}
	}
	for _, id := range tpl.Tasks.IDs() {
		n := tpl.Tasks.Nodes[id]
		nd := nodeDoc(n.Task)
		if n.Next != nil {
			nd.Next = u32(*n.Next)
		}
		doc.Tasks[strconv.FormatUint(uint64(id), 10)] = nd
	}
	return doc
}

// Keys returns the document's task keys in ascending numeric order; keys that
// do not parse sort last.
func (d *Document) Keys() []string {
	keys := make([]string, 0, len(d.Tasks))
	for k := range d.Tasks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := ParseTaskID(keys[i])
		b, errB := ParseTaskID(keys[j])
		switch {
		case errA != nil && errB != nil:
			return keys[i] < keys[j]
		case errA != nil:
			return false
		case errB != nil:
			return true
		}
		return a < b
	})
	return keys
}

func (n NodeDoc) task() (Task, error) {
	switch Kind(n.Type) {
	case KindSpawn:
		if n.Loc == nil {
			return nil, errors.New("spawn needs loc")
		}
		return &Spawn{Loc: *n.Loc}, nil
	case KindDespawn:
		return &Despawn{}, nil
	case KindMove:
		if n.Target == nil {
			return nil, errors.New("move needs target")
		}
		return &Move{Target: *n.Target, Speed: n.Speed}, nil
	case KindRotate:
		return &Rotate{Angle: n.Angle, Speed: n.Speed}, nil
	case KindWait:
		if n.Schedule == nil {
			return nil, errors.New("wait needs schedule")
		}
		return &Wait{Schedule: *n.Schedule}, nil
	case KindRandomWait:
		return &RandomWait{Min: n.Min, Max: n.Max}, nil
	case KindTeleport:
		if n.Loc == nil {
			return nil, errors.New("teleport needs loc")
		}
		return &Teleport{Loc: *n.Loc}, nil
	case KindHide:
		return &Hide{}, nil
	case KindShow:
		return &Show{}, nil
	case KindDecision:
		if n.Opt1 == nil || n.Opt2 == nil {
			return nil, errors.New("decision needs opt1 and opt2")
		}
		return &Decision{Opt1: TaskID(*n.Opt1), Opt2: TaskID(*n.Opt2)}, nil
	case KindLoop:
		if n.StartID == nil {
			return nil, errors.New("loop needs start_id")
		}
		loop := &Loop{StartID: TaskID(*n.StartID)}
		if n.MaxIterations != nil {
			loop.Max = MaxIterations(*n.MaxIterations)
		}
		return loop, nil
	case KindSpawnGroup:
		return &SpawnGroup{Jobs: append([]string(nil), n.Jobs...)}, nil
	case "":
		return nil, errors.New("missing type")
	default:
		return nil, fmt.Errorf("unknown task type %q", n.Type)
	}
}

func nodeDoc(task Task) NodeDoc {
	nd := NodeDoc{Type: string(task.Kind())}
	switch t := task.(type) {
	case *Spawn:
		loc := t.Loc
		nd.Loc = &loc
	case *Move:
		target := t.Target
		nd.Target = &target
		nd.Speed = t.Speed
	case *Rotate:
		nd.Angle = t.Angle
		nd.Speed = t.Speed
	case *Wait:
		s := t.Schedule.Clone()
		nd.Schedule = &s
	case *RandomWait:
		nd.Min = t.Min
		nd.Max = t.Max
	case *Teleport:
		loc := t.Loc
		nd.Loc = &loc
	case *Decision:
		nd.Opt1 = u32(t.Opt1)
		nd.Opt2 = u32(t.Opt2)
	case *Loop:
		nd.StartID = u32(t.StartID)
		if t.Max != nil {
			m := *t.Max
			nd.MaxIterations = &m
		}
	case *SpawnGroup:
		nd.Jobs = append([]string(nil), t.Jobs...)
	}
	return nd
}

func (p *PolicyDocument) policy() (FailurePolicy, error) {
	if p == nil {
		return CancelPolicy(), nil
	}
	switch PolicyKind(p.Policy) {
	case "", PolicyCancel:
		return CancelPolicy(), nil
	case PolicyNothing:
		return NothingPolicy(), nil
	case PolicyDespawn:
		return DespawnPolicy(), nil
	case PolicyRunTask:
		if p.TaskID == nil {
			return FailurePolicy{}, errors.New("run_task policy needs task_id")
		}
		return RunTaskPolicy(TaskID(*p.TaskID)), nil
	default:
		return FailurePolicy{}, fmt.Errorf("unknown failure policy %q", p.Policy)
	}
}

func taskIDPtr(v *uint32) *TaskID {
	if v == nil {
		return nil
	}
	id := TaskID(*v)
	return &id
}

func u32(id TaskID) *uint32 {
	v := uint32(id)
	return &v
}
