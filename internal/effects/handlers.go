package effects

import (
	"math"

	"github.com/AaronLay10/SentientJobs/internal/jobs"
	"github.com/AaronLay10/SentientJobs/internal/schedule"
	"github.com/AaronLay10/SentientJobs/internal/world"
)

func spawn(env *Env, a world.Attachment) error {
	t := a.Task.(*jobs.Spawn)
	if e, ok := env.World.Entity(a.Entity); ok {
		e.Position = t.Loc
		e.Visible = true
	}
	return env.Engine.Advance(a.Entity)
}

// randomWait draws its length once and turns into a real-time wait.
func randomWait(env *Env, a world.Attachment) error {
	t := a.Task.(*jobs.RandomWait)
	secs := t.Min
	if t.Max > t.Min {
		secs += env.Rand.Float64() * (t.Max - t.Min)
	}
	if !env.World.Swap(a, &jobs.Wait{Schedule: schedule.RealDelay(secs)}) {
		return errorf(a, "attachment changed before swap")
	}
	return nil
}

func move(env *Env, a world.Attachment) error {
	t := a.Task.(*jobs.Move)
	e, ok := env.World.Entity(a.Entity)
	if !ok {
		return nil
	}
	dx := t.Target.X - e.Position.X
	dy := t.Target.Y - e.Position.Y
	dz := t.Target.Z - e.Position.Z
	dist := math.Sqrt(dx*dx + dy*dy + dz*dz)
	step := t.Speed * env.DT.Seconds()

	if t.Speed <= 0 || dist <= step {
		e.Position = t.Target
		return env.Engine.Advance(a.Entity)
	}
	f := step / dist
	e.Position.X += dx * f
	e.Position.Y += dy * f
	e.Position.Z += dz * f
	return nil
}

// rotate counts the remaining angle down in the attached copy.
func rotate(env *Env, a world.Attachment) error {
	t := a.Task.(*jobs.Rotate)
	e, ok := env.World.Entity(a.Entity)
	if !ok {
		return nil
	}
	step := t.Speed * env.DT.Seconds()
	if t.Speed <= 0 || math.Abs(t.Angle) <= step {
		e.Rotation = math.Mod(e.Rotation+t.Angle, 360)
		t.Angle = 0
		return env.Engine.Advance(a.Entity)
	}
	if t.Angle < 0 {
		step = -step
	}
	e.Rotation = math.Mod(e.Rotation+step, 360)
	t.Angle -= step
	return nil
}

func wait(env *Env, a world.Attachment) error {
	t := a.Task.(*jobs.Wait)
	var done bool
	switch t.Schedule.Kind {
	case schedule.KindInstant:
		done = true
	case schedule.KindCron:
		done = env.Calendar != nil && env.Calendar.NewHour() && t.Schedule.IsTime(env.Calendar)
	case schedule.KindDelay:
		done = env.Calendar != nil && env.Calendar.NewHour() && t.Schedule.TickHour()
	case schedule.KindRealDelay:
		done = t.Schedule.TickReal(env.DT)
	default:
		return env.Engine.Fail(a.Entity)
	}
	if !done {
		return nil
	}
	return env.Engine.Advance(a.Entity)
}

func teleport(env *Env, a world.Attachment) error {
	if e, ok := env.World.Entity(a.Entity); ok {
		e.Position = a.Task.(*jobs.Teleport).Loc
	}
	return env.Engine.Advance(a.Entity)
}

func hide(env *Env, a world.Attachment) error {
	if e, ok := env.World.Entity(a.Entity); ok {
		e.Visible = false
	}
	return env.Engine.Advance(a.Entity)
}

func show(env *Env, a world.Attachment) error {
	if e, ok := env.World.Entity(a.Entity); ok {
		e.Visible = true
	}
	return env.Engine.Advance(a.Entity)
}

// spawnGroup starts every listed job and advances once whatever the outcome.
func spawnGroup(env *Env, a world.Attachment) error {
	t := a.Task.(*jobs.SpawnGroup)
	var firstErr error
	for _, name := range t.Jobs {
		if _, err := env.Catalog.StartName(name); err != nil && firstErr == nil {
			firstErr = errorf(a, "start %q: %v", name, err)
		}
	}
	if err := env.Engine.Advance(a.Entity); err != nil {
		return err
	}
	return firstErr
}

func despawn(env *Env, a world.Attachment) error {
	return env.Engine.Despawn(a.Entity)
}

func decide(env *Env, a world.Attachment) error {
	return env.Engine.Decide(a.Entity, env.Rand)
}

func loop(env *Env, a world.Attachment) error {
	return env.Engine.Loop(a.Entity)
}
