package jobs

import (
	"fmt"
	"strings"

	"github.com/AaronLay10/SentientJobs/internal/schedule"
)

// Kind identifies a task variant.
// Allowed kinds: spawn, despawn, move, rotate, wait, random_wait, teleport, hide, show, decision, loop, spawn_group
type Kind string

const (
	KindSpawn      Kind = "spawn"
	KindDespawn    Kind = "despawn"
	KindMove       Kind = "move"
	KindRotate     Kind = "rotate"
	KindWait       Kind = "wait"
	KindRandomWait Kind = "random_wait"
	KindTeleport   Kind = "teleport"
	KindHide       Kind = "hide"
	KindShow       Kind = "show"
	KindDecision   Kind = "decision"
	KindLoop       Kind = "loop"
	KindSpawnGroup Kind = "spawn_group"
)

// Kinds lists every task kind in declaration order.
var Kinds = []Kind{
	KindSpawn, KindDespawn, KindMove, KindRotate, KindWait, KindRandomWait,
	KindTeleport, KindHide, KindShow, KindDecision, KindLoop, KindSpawnGroup,
}

// Vec3 is a position or direction in simulation space.
type Vec3 struct {
	X float64 `json:"x" yaml:"x" toml:"x"`
	Y float64 `json:"y" yaml:"y" toml:"y"`
	Z float64 `json:"z" yaml:"z" toml:"z"`
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%.1f, %.1f, %.1f)", v.X, v.Y, v.Z)
}

// Task is one atomic unit of entity behavior. The set of implementations is
// closed; switch on the concrete type to handle every kind.
//
// Hosts receive a Clone on attach so effect handlers may keep per-attachment
// state (countdowns) in the task without touching the template.
type Task interface {
	Kind() Kind
	Describe() string
	Clone() Task
	isTask()
}

// Spawn places a freshly started entity at Loc.
type Spawn struct {
	Loc Vec3
}

// Despawn destroys the owning entity and ends the job.
type Despawn struct{}

// Move travels to Target at Speed units per second.
type Move struct {
	Target Vec3
	Speed  float64
}

// Rotate turns the entity by Angle degrees at Speed degrees per second.
// A zero speed rotates instantly.
type Rotate struct {
	Angle float64
	Speed float64
}

// Wait holds the job until its schedule elapses.
type Wait struct {
	Schedule schedule.Schedule
}

// RandomWait turns into a real-time Wait of a random length in [Min, Max]
// seconds.
type RandomWait struct {
	Min float64
	Max float64
}

// Teleport moves the entity to Loc instantly.
type Teleport struct {
	Loc Vec3
}

// Hide makes the entity invisible.
type Hide struct{}

// Show makes the entity visible.
type Show struct{}

// Decision branches to Opt1 or Opt2 with equal probability.
type Decision struct {
	Opt1 TaskID
	Opt2 TaskID
}

// Loop jumps back to StartID until the job's loop counter reaches Max.
// A nil Max loops forever.
type Loop struct {
	StartID TaskID
	Max     *uint32
}

// SpawnGroup starts one new job per listed identity, then continues.
type SpawnGroup struct {
	Jobs []string
}

func (*Spawn) Kind() Kind { return KindSpawn }
func (*Despawn) Kind() Kind { return KindDespawn }
func (*Move) Kind() Kind { return KindMove }
func (*Rotate) Kind() Kind { return KindRotate }
func (*Wait) Kind() Kind { return KindWait }
func (*RandomWait) Kind() Kind { return KindRandomWait }
func (*Teleport) Kind() Kind { return KindTeleport }
func (*Hide) Kind() Kind { return KindHide }
func (*Show) Kind() Kind { return KindShow }
func (*Decision) Kind() Kind { return KindDecision }
func (*Loop) Kind() Kind { return KindLoop }
func (*SpawnGroup) Kind() Kind { return KindSpawnGroup }

func (t *Spawn) Describe() string { return "spawn at " + t.Loc.String() }
func (*Despawn) Describe() string { return "despawn" }
func (t *Move) Describe() string { return fmt.Sprintf("move to %s at %.1f/s", t.Target, t.Speed) }
func (t *Rotate) Describe() string { return fmt.Sprintf("rotate %.1f deg", t.Angle) }
func (t *Wait) Describe() string { return "wait " + t.Schedule.String() }
func (t *Teleport) Describe() string { return "teleport to " + t.Loc.String() }
func (*Hide) Describe() string { return "hide" }
func (*Show) Describe() string { return "show" }

func (t *RandomWait) Describe() string {
	return fmt.Sprintf("random wait %.2f-%.2fs", t.Min, t.Max)
}

func (t *Decision) Describe() string {
	return fmt.Sprintf("decide %d or %d", t.Opt1, t.Opt2)
}

func (t *Loop) Describe() string {
	if t.Max == nil {
		return fmt.Sprintf("loop from %d forever", t.StartID)
	}
	return fmt.Sprintf("loop from %d x%d", t.StartID, *t.Max)
}

func (t *SpawnGroup) Describe() string {
	return "spawn group [" + strings.Join(t.Jobs, ", ") + "]"
}

func (t *Spawn) Clone() Task {
	c := *t
	return &c
}

func (*Despawn) Clone() Task { return &Despawn{} }

func (t *Move) Clone() Task {
	c := *t
	return &c
}

func (t *Rotate) Clone() Task {
	c := *t
	return &c
}

func (t *Wait) Clone() Task { return &Wait{Schedule: t.Schedule.Clone()} }

func (t *RandomWait) Clone() Task {
	c := *t
	return &c
}

func (t *Teleport) Clone() Task {
	c := *t
	return &c
}

func (*Hide) Clone() Task { return &Hide{} }

func (*Show) Clone() Task { return &Show{} }

func (t *Decision) Clone() Task {
	c := *t
	return &c
}

func (t *Loop) Clone() Task {
	c := &Loop{StartID: t.StartID}
	if t.Max != nil {
		m := *t.Max
		c.Max = &m
	}
	return c
}

func (t *SpawnGroup) Clone() Task {
	return &SpawnGroup{Jobs: append([]string(nil), t.Jobs...)}
}

func (*Spawn) isTask() {}
func (*Despawn) isTask() {}
func (*Move) isTask() {}
func (*Rotate) isTask() {}
func (*Wait) isTask() {}
func (*RandomWait) isTask() {}
func (*Teleport) isTask() {}
func (*Hide) isTask() {}
func (*Show) isTask() {}
func (*Decision) isTask() {}
func (*Loop) isTask() {}
func (*SpawnGroup) isTask() {}

// MaxIterations is a convenience for building bounded Loop tasks.
func MaxIterations(n uint32) *uint32 { return &n }
