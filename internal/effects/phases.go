// Package effects holds the per-tick handlers that run attached tasks and
// decide when they are done.
package effects

import (
	"fmt"
	"time"

	"github.com/AaronLay10/SentientJobs/internal/events"
	"github.com/AaronLay10/SentientJobs/internal/jobs"
	"github.com/AaronLay10/SentientJobs/internal/schedule"
	"github.com/AaronLay10/SentientJobs/internal/world"
)

// Rand is the random source handlers draw from. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

// Env is what a handler sees during one tick.
type Env struct {
	World    *world.World
	Engine   *jobs.Engine
	Catalog  *jobs.Catalog
	Calendar *schedule.Calendar
	Rand     Rand
	DT       time.Duration
}

// Handler runs one attached task for one tick.
type Handler func(env *Env, a world.Attachment) error

// Phase is a named group of task kinds evaluated together.
type Phase struct {
	Name  string
	Kinds []jobs.Kind
}

// DefaultPhases is the evaluation order within a tick. A task attached during
// a phase is not run again by that phase or any earlier one in the same tick;
// it is picked up by a later phase that handles its kind, or on the next tick.
var DefaultPhases = []Phase{
	{Name: "dispatch", Kinds: []jobs.Kind{jobs.KindSpawn, jobs.KindRandomWait}},
	{Name: "extension", Kinds: []jobs.Kind{jobs.KindMove, jobs.KindRotate}},
	{Name: "simple", Kinds: []jobs.Kind{
		jobs.KindWait, jobs.KindTeleport, jobs.KindHide, jobs.KindShow,
		jobs.KindSpawnGroup, jobs.KindDespawn,
	}},
	{Name: "decision", Kinds: []jobs.Kind{jobs.KindDecision}},
	{Name: "loop", Kinds: []jobs.Kind{jobs.KindLoop}},
}

// Runner owns the handler table and runs the phases in order.
type Runner struct {
	phases   []Phase
	handlers map[jobs.Kind]Handler
}

// NewRunner creates a runner with the default phases and handlers.
func NewRunner() *Runner {
	r := &Runner{
		phases:   DefaultPhases,
		handlers: make(map[jobs.Kind]Handler),
	}
	r.Handle(jobs.KindSpawn, spawn)
	r.Handle(jobs.KindRandomWait, randomWait)
	r.Handle(jobs.KindMove, move)
	r.Handle(jobs.KindRotate, rotate)
	r.Handle(jobs.KindWait, wait)
	r.Handle(jobs.KindTeleport, teleport)
	r.Handle(jobs.KindHide, hide)
	r.Handle(jobs.KindShow, show)
	r.Handle(jobs.KindSpawnGroup, spawnGroup)
	r.Handle(jobs.KindDespawn, despawn)
	r.Handle(jobs.KindDecision, decide)
	r.Handle(jobs.KindLoop, loop)
	return r
}

// Handle installs h for kind, replacing the built-in handler.
func (r *Runner) Handle(kind jobs.Kind, h Handler) {
	r.handlers[kind] = h
}

// Phases returns the phase order.
func (r *Runner) Phases() []Phase { return r.phases }

// Run evaluates every phase once. Handler errors are reported as task.error
// events and never stop the tick.
func (r *Runner) Run(env *Env) {
	for _, p := range r.phases {
		r.RunPhase(env, p)
	}
}

// RunPhase evaluates one phase against the attachments present when it
// starts.
func (r *Runner) RunPhase(env *Env, p Phase) {
	for _, a := range env.World.Attachments(p.Kinds...) {
		if !env.World.Current(a) {
			continue
		}
		h, ok := r.handlers[a.Task.Kind()]
		if !ok {
			continue
		}
		if err := h(env, a); err != nil {
			events.Emit("warn", "task.error", err.Error(), map[string]interface{}{
				"entity": uint64(a.Entity),
				"kind":   string(a.Task.Kind()),
				"phase":  p.Name,
			})
		}
	}
}

func errorf(a world.Attachment, format string, args ...any) error {
	return fmt.Errorf("entity %d %s: %s", a.Entity, a.Task.Kind(), fmt.Sprintf(format, args...))
}
