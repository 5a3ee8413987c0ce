package jobs

import (
	"fmt"

	"github.com/AaronLay10/SentientJobs/internal/events"
)

// Rand is the random source used by decision tasks. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

// DecisionThreshold splits decision draws: a draw in [0,100] that is less
// than or equal to it picks Opt1.
const DecisionThreshold = 50

// Engine moves job cursors and keeps the host's attached descriptors in step
// with them. Every call runs synchronously inside a tick.
type Engine struct {
	host  Host
	debug bool
}

// NewEngine creates an engine driving host.
func NewEngine(host Host) *Engine {
	return &Engine{host: host}
}

// SetDebug enables task-level events (task.attached, task.detached).
func (e *Engine) SetDebug(debug bool) { e.debug = debug }

// Host returns the host the engine drives.
func (e *Engine) Host() Host { return e.host }

// Bind makes ent the owner of inst and attaches the current task.
func (e *Engine) Bind(ent EntityID, inst *Instance) error {
	node, ok := inst.CurrentNode()
	if !ok {
		return &JobError{
			Kind:   ErrNodeNotFound,
			Entity: ent,
			Job:    inst.Template.ID,
			Task:   inst.Current(),
			Msg:    fmt.Sprintf("start task %d", inst.Current()),
		}
	}
	e.host.BindJob(ent, inst)
	e.attach(ent, inst, node)
	inst.status = StatusActive
	e.emitJob("job.started", ent, inst)
	return nil
}

// Advance detaches the current task and attaches its successor. When the
// successor does not exist the job is done and dropped.
func (e *Engine) Advance(ent EntityID) error {
	inst, err := e.bound(ent)
	if err != nil {
		return err
	}
	cur, ok := inst.CurrentNode()
	if !ok {
		missing := inst.Current()
		e.applyPolicy(ent, inst)
		return &JobError{Kind: ErrNodeNotFound, Entity: ent, Job: inst.Template.ID, Task: missing,
			Msg: fmt.Sprintf("current task %d", missing)}
	}

	e.detach(ent, inst)
	next, ok := inst.Template.Tasks.Node(inst.Template.Tasks.ResolveNext(cur))
	if !ok {
		e.complete(ent, inst)
		return nil
	}
	e.attach(ent, inst, next)
	return nil
}

// Jump moves the cursor to id. A missing id leaves the current task in place,
// applies the job's failure policy and reports ErrInvalidJumpTarget. The error
// is returned whatever the policy did, including when RunTask moved the job
// onto its fallback; check host.Job to see whether the job is still running.
func (e *Engine) Jump(ent EntityID, id TaskID) error {
	inst, err := e.bound(ent)
	if err != nil {
		return err
	}
	node, ok := inst.Template.Tasks.Node(id)
	if !ok {
		e.applyPolicy(ent, inst)
		return &JobError{Kind: ErrInvalidJumpTarget, Entity: ent, Job: inst.Template.ID, Task: id,
			Msg: fmt.Sprintf("task %d", id)}
	}
	e.detach(ent, inst)
	e.attach(ent, inst, node)
	return nil
}

// Fail applies the job's failure policy.
func (e *Engine) Fail(ent EntityID) error {
	inst, err := e.bound(ent)
	if err != nil {
		return err
	}
	e.applyPolicy(ent, inst)
	return nil
}

// Pause flags the job as paused and marks the entity so effect handlers skip
// it. Nothing is detached.
func (e *Engine) Pause(ent EntityID) error {
	inst, err := e.bound(ent)
	if err != nil {
		return err
	}
	if inst.status == StatusPaused {
		return nil
	}
	inst.status = StatusPaused
	e.host.SetPaused(ent, true)
	e.emitJob("job.paused", ent, inst)
	return nil
}

// Unpause resumes a paused job.
func (e *Engine) Unpause(ent EntityID) error {
	inst, err := e.bound(ent)
	if err != nil {
		return err
	}
	if inst.status != StatusPaused {
		return nil
	}
	inst.status = StatusActive
	e.host.SetPaused(ent, false)
	e.emitJob("job.resumed", ent, inst)
	return nil
}

// Cancel detaches the current task and drops the job. The entity survives.
func (e *Engine) Cancel(ent EntityID) error {
	inst, err := e.bound(ent)
	if err != nil {
		return err
	}
	e.cancel(ent, inst)
	return nil
}

// Despawn ends the job and destroys its entity.
func (e *Engine) Despawn(ent EntityID) error {
	inst, err := e.bound(ent)
	if err != nil {
		return err
	}
	e.despawn(ent, inst, StatusDone)
	return nil
}

// Loop runs the Loop task under the cursor: below the bound it increments the
// job's loop counter and jumps to the loop start, at the bound it resets the
// counter and advances past the loop.
func (e *Engine) Loop(ent EntityID) error {
	inst, err := e.bound(ent)
	if err != nil {
		return err
	}
	node, ok := inst.CurrentNode()
	if !ok {
		return e.Advance(ent)
	}
	loop, ok := node.Task.(*Loop)
	if !ok {
		return unexpectedTask(ent, inst, node, KindLoop)
	}
	if loop.Max != nil && inst.loops >= *loop.Max {
		inst.loops = 0
		return e.Advance(ent)
	}
	inst.loops++
	return e.Jump(ent, loop.StartID)
}

// Decide runs the Decision task under the cursor with a draw from rng.
func (e *Engine) Decide(ent EntityID, rng Rand) error {
	inst, err := e.bound(ent)
	if err != nil {
		return err
	}
	node, ok := inst.CurrentNode()
	if !ok {
		return e.Advance(ent)
	}
	d, ok := node.Task.(*Decision)
	if !ok {
		return unexpectedTask(ent, inst, node, KindDecision)
	}
	return e.Jump(ent, Choose(d, rng.IntN(101)))
}

// Choose maps a draw in [0,100] to one of the decision's options.
func Choose(d *Decision, draw int) TaskID {
	if draw <= DecisionThreshold {
		return d.Opt1
	}
	return d.Opt2
}

func (e *Engine) bound(ent EntityID) (*Instance, error) {
	inst, ok := e.host.Job(ent)
	if !ok || inst == nil {
		return nil, notBound(ent)
	}
	return inst, nil
}

func (e *Engine) applyPolicy(ent EntityID, inst *Instance) {
	policy := inst.Template.OnFail
	events.Emit("warn", "job.failed", "", map[string]interface{}{
		"entity":  uint64(ent),
		"job_id":  uint32(inst.Template.ID),
		"label":   inst.Template.Label,
		"task_id": uint32(inst.Current()),
		"policy":  policy.String(),
	})

	switch policy.Kind {
	case PolicyNothing:
	case PolicyDespawn:
		e.despawn(ent, inst, StatusInactive)
	case PolicyRunTask:
		node, ok := inst.Template.Tasks.Node(policy.Task)
		if !ok {
			e.cancel(ent, inst)
			return
		}
		e.detach(ent, inst)
		e.attach(ent, inst, node)
	default:
		e.cancel(ent, inst)
	}
}

// attach puts node's task on the entity and only then publishes the new
// cursor.
func (e *Engine) attach(ent EntityID, inst *Instance, node *TaskNode) {
	e.host.Attach(ent, node.Task)
	inst.attached = node.Task.Kind()
	inst.Template.Tasks.Current = node.ID
	if e.debug {
		e.emitTask("task.attached", ent, inst, node)
	}
}

func (e *Engine) detach(ent EntityID, inst *Instance) {
	if inst.attached == "" {
		return
	}
	e.host.Detach(ent, inst.attached)
	inst.attached = ""
	if e.debug {
		if node, ok := inst.CurrentNode(); ok {
			e.emitTask("task.detached", ent, inst, node)
		}
	}
}

func (e *Engine) complete(ent EntityID, inst *Instance) {
	inst.status = StatusDone
	e.host.SetPaused(ent, false)
	e.host.UnbindJob(ent)
	e.emitJob("job.completed", ent, inst)
}

func (e *Engine) cancel(ent EntityID, inst *Instance) {
	e.detach(ent, inst)
	inst.status = StatusInactive
	e.host.SetPaused(ent, false)
	e.host.UnbindJob(ent)
	e.emitJob("job.cancelled", ent, inst)
}

func (e *Engine) despawn(ent EntityID, inst *Instance, final Status) {
	e.detach(ent, inst)
	inst.status = final
	e.host.UnbindJob(ent)
	e.host.Despawn(ent)
	e.emitJob("job.despawned", ent, inst)
}

func (e *Engine) emitJob(name string, ent EntityID, inst *Instance) {
	events.Emit("info", name, "", map[string]interface{}{
		"entity":  uint64(ent),
		"job_id":  uint32(inst.Template.ID),
		"label":   inst.Template.Label,
		"task_id": uint32(inst.Current()),
		"status":  string(inst.status),
	})
}

func (e *Engine) emitTask(name string, ent EntityID, inst *Instance, node *TaskNode) {
	events.Emit("debug", name, "", map[string]interface{}{
		"entity":  uint64(ent),
		"job_id":  uint32(inst.Template.ID),
		"task_id": uint32(node.ID),
		"kind":    string(node.Task.Kind()),
	})
}

func unexpectedTask(ent EntityID, inst *Instance, node *TaskNode, want Kind) error {
	return &JobError{
		Kind:   ErrUnexpectedTask,
		Entity: ent,
		Job:    inst.Template.ID,
		Task:   node.ID,
		Msg:    fmt.Sprintf("task %d is %s, want %s", node.ID, node.Task.Kind(), want),
	}
}
