package jobs

import (
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// JobID is the compact numeric identity of a job template.
type JobID uint32

func (id JobID) String() string {
	return fmt.Sprintf("job:%d", uint32(id))
}

// IdentityFromString maps an authored job name onto a JobID: the 64-bit
// xxhash digest of the UTF-8 bytes, truncated to its low 32 bits. The same
// name always yields the same id across runs and platforms. Distinct names
// may collide; the catalog does not detect it.
func IdentityFromString(name string) JobID {
	return JobID(uint32(xxhash.Sum64String(name)))
}

// PolicyKind selects what happens when a job cannot proceed.
type PolicyKind string

const (
	PolicyCancel  PolicyKind = "cancel"
	PolicyRunTask PolicyKind = "run_task"
	PolicyNothing PolicyKind = "nothing"
	PolicyDespawn PolicyKind = "despawn"
)

// FailurePolicy is applied by Engine.Fail. The zero value cancels.
type FailurePolicy struct {
	Kind PolicyKind
	Task TaskID // PolicyRunTask only
}

// CancelPolicy detaches the current task and drops the job.
func CancelPolicy() FailurePolicy { return FailurePolicy{Kind: PolicyCancel} }

// RunTaskPolicy jumps to a fallback task; a missing fallback cancels.
func RunTaskPolicy(id TaskID) FailurePolicy { return FailurePolicy{Kind: PolicyRunTask, Task: id} }

// NothingPolicy leaves the job untouched.
func NothingPolicy() FailurePolicy { return FailurePolicy{Kind: PolicyNothing} }

// DespawnPolicy destroys the owning entity.
func DespawnPolicy() FailurePolicy { return FailurePolicy{Kind: PolicyDespawn} }

func (p FailurePolicy) String() string {
	switch p.Kind {
	case PolicyRunTask:
		return fmt.Sprintf("run_task(%d)", p.Task)
	case "":
		return string(PolicyCancel)
	default:
		return string(p.Kind)
	}
}

// Template is the authored, immutable definition of a job.
type Template struct {
	ID     JobID
	Label  string
	Tasks  *TaskGraph
	OnFail FailurePolicy
}

// NewTemplate builds a template whose identity is derived from label.
func NewTemplate(label string, tasks *TaskGraph, onFail FailurePolicy) *Template {
	return &Template{
		ID:     IdentityFromString(label),
		Label:  label,
		Tasks:  tasks,
		OnFail: onFail,
	}
}

// Validate checks the template's graph and failure policy.
func (t *Template) Validate() error {
	if t.Tasks == nil {
		return invalidf("template %q has no tasks", t.Label)
	}
	switch t.OnFail.Kind {
	case "", PolicyCancel, PolicyRunTask, PolicyNothing, PolicyDespawn:
	default:
		return invalidf("template %q: unknown failure policy %q", t.Label, t.OnFail.Kind)
	}
	if err := t.Tasks.Validate(); err != nil {
		var je *JobError
		if errors.As(err, &je) {
			je.Job = t.ID
			je.Msg = fmt.Sprintf("template %q: %s", t.Label, je.Msg)
			return je
		}
		return err
	}
	return nil
}

// Clone deep-copies the template for a new instance.
func (t *Template) Clone() *Template {
	c := *t
	c.Tasks = t.Tasks.Clone()
	return &c
}
