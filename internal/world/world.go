// Package world is the in-memory entity store the job engine runs against.
// Each entity owns at most one job instance and one attached task.
package world

import (
	"sort"

	"github.com/AaronLay10/SentientJobs/internal/events"
	"github.com/AaronLay10/SentientJobs/internal/jobs"
)

// Entity is one simulated actor.
type Entity struct {
	ID       jobs.EntityID
	Position jobs.Vec3
	Rotation float64
	Visible  bool
	Paused   bool

	task jobs.Task
	kind jobs.Kind // kind the engine attached; survives Swap
	gen  uint64
	job  *jobs.Instance
}

// Task returns the attached task, or nil.
func (e *Entity) Task() jobs.Task { return e.task }

// Job returns the bound instance, or nil.
func (e *Entity) Job() *jobs.Instance { return e.job }

// Attachment identifies one attach of a task to an entity. Gen changes on
// every attach, so a stale Attachment can be told apart from a fresh one
// even when the task kind is the same.
type Attachment struct {
	Entity jobs.EntityID
	Gen    uint64
	Task   jobs.Task
}

var _ jobs.Host = (*World)(nil)

// World implements jobs.Host. It is not safe for concurrent use; the
// simulation loop owns it.
type World struct {
	next     jobs.EntityID
	gen      uint64
	entities map[jobs.EntityID]*Entity
}

// New creates an empty world.
func New() *World {
	return &World{
		next:     1,
		entities: make(map[jobs.EntityID]*Entity),
	}
}

// Spawn creates an entity shaped by task. A Spawn task places the entity at
// its location, hidden until the task runs.
func (w *World) Spawn(task jobs.Task) jobs.EntityID {
	e := w.add()
	if s, ok := task.(*jobs.Spawn); ok {
		e.Position = s.Loc
		e.Visible = false
	}
	events.Emit("info", "entity.spawned", "", map[string]interface{}{
		"entity": uint64(e.ID),
		"kind":   string(task.Kind()),
	})
	return e.ID
}

// SpawnEmpty creates a visible entity at the origin with no job.
func (w *World) SpawnEmpty() jobs.EntityID {
	e := w.add()
	events.Emit("info", "entity.spawned", "", map[string]interface{}{
		"entity": uint64(e.ID),
	})
	return e.ID
}

func (w *World) add() *Entity {
	e := &Entity{ID: w.next, Visible: true}
	w.next++
	w.entities[e.ID] = e
	return e
}

func (w *World) Despawn(id jobs.EntityID) {
	if _, ok := w.entities[id]; !ok {
		return
	}
	delete(w.entities, id)
	events.Emit("info", "entity.despawned", "", map[string]interface{}{
		"entity": uint64(id),
	})
}

func (w *World) Exists(id jobs.EntityID) bool {
	_, ok := w.entities[id]
	return ok
}

// Attach stores a clone of task so handlers can count down in it.
func (w *World) Attach(id jobs.EntityID, task jobs.Task) {
	e, ok := w.entities[id]
	if !ok {
		return
	}
	w.gen++
	e.task = task.Clone()
	e.kind = task.Kind()
	e.gen = w.gen
}

// Detach removes the attached task if it was attached as kind.
func (w *World) Detach(id jobs.EntityID, kind jobs.Kind) {
	e, ok := w.entities[id]
	if !ok || e.task == nil || e.kind != kind {
		return
	}
	e.task = nil
	e.kind = ""
	e.gen = 0
}

// Swap replaces the task of a live attachment in place, for tasks that turn
// into another kind while running (a random wait becoming a timed wait). The
// attachment gets a new generation; Detach still matches the original kind.
func (w *World) Swap(a Attachment, task jobs.Task) bool {
	if !w.Current(a) {
		return false
	}
	e := w.entities[a.Entity]
	w.gen++
	e.task = task
	e.gen = w.gen
	return true
}

func (w *World) SetPaused(id jobs.EntityID, paused bool) {
	if e, ok := w.entities[id]; ok {
		e.Paused = paused
	}
}

func (w *World) Job(id jobs.EntityID) (*jobs.Instance, bool) {
	e, ok := w.entities[id]
	if !ok || e.job == nil {
		return nil, false
	}
	return e.job, true
}

func (w *World) BindJob(id jobs.EntityID, inst *jobs.Instance) {
	if e, ok := w.entities[id]; ok {
		e.job = inst
	}
}

func (w *World) UnbindJob(id jobs.EntityID) {
	if e, ok := w.entities[id]; ok {
		e.job = nil
	}
}

// Entity returns the entity with the given id.
func (w *World) Entity(id jobs.EntityID) (*Entity, bool) {
	e, ok := w.entities[id]
	return e, ok
}

// Len returns the number of live entities.
func (w *World) Len() int { return len(w.entities) }

// IDs returns live entity ids in ascending order.
func (w *World) IDs() []jobs.EntityID {
	ids := make([]jobs.EntityID, 0, len(w.entities))
	for id := range w.entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Attachments returns the current attachments whose task is one of kinds,
// ordered by entity id. Paused entities are left out.
func (w *World) Attachments(kinds ...jobs.Kind) []Attachment {
	want := make(map[jobs.Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var out []Attachment
	for _, id := range w.IDs() {
		e := w.entities[id]
		if e.task == nil || e.Paused || !want[e.task.Kind()] {
			continue
		}
		out = append(out, Attachment{Entity: id, Gen: e.gen, Task: e.task})
	}
	return out
}

// Current reports whether a is still the live attachment on its entity and
// the entity is not paused.
func (w *World) Current(a Attachment) bool {
	e, ok := w.entities[a.Entity]
	return ok && e.task != nil && e.gen == a.Gen && !e.Paused
}

// Jobs is the non-owning job index: a snapshot of every bound instance,
// rebuilt from the entities on each call.
func (w *World) Jobs() []jobs.Snapshot {
	var out []jobs.Snapshot
	for _, id := range w.IDs() {
		if e := w.entities[id]; e.job != nil {
			out = append(out, e.job.Snapshot(id))
		}
	}
	return out
}

// EntitySnapshot is a read-only view of an entity.
type EntitySnapshot struct {
	ID       jobs.EntityID `json:"id"`
	Position jobs.Vec3     `json:"position"`
	Rotation float64       `json:"rotation"`
	Visible  bool          `json:"visible"`
	Paused   bool          `json:"paused"`
	Task     string        `json:"task,omitempty"`
	Job      *jobs.JobID   `json:"job_id,omitempty"`
}

// Snapshot captures every live entity.
func (w *World) Snapshot() []EntitySnapshot {
	out := make([]EntitySnapshot, 0, len(w.entities))
	for _, id := range w.IDs() {
		e := w.entities[id]
		s := EntitySnapshot{
			ID:       id,
			Position: e.Position,
			Rotation: e.Rotation,
			Visible:  e.Visible,
			Paused:   e.Paused,
		}
		if e.task != nil {
			s.Task = e.task.Describe()
		}
		if e.job != nil {
			jid := e.job.Template.ID
			s.Job = &jid
		}
		out = append(out, s)
	}
	return out
}
