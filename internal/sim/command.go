package sim

import (
	"errors"
	"fmt"

	"github.com/AaronLay10/SentientJobs/internal/jobs"
)

// Op names an operator command.
type Op string

const (
	OpStart              Op = "start"
	OpAssign             Op = "assign"
	OpAdvance            Op = "advance"
	OpJump               Op = "jump"
	OpFail               Op = "fail"
	OpPause              Op = "pause"
	OpUnpause            Op = "unpause"
	OpCancel             Op = "cancel"
	OpSpawn              Op = "spawn"
	OpActivateTrigger    Op = "activate_trigger"
	OpDeactivateTrigger  Op = "deactivate_trigger"
	OpActivateTriggers   Op = "activate_triggers"
	OpDeactivateTriggers Op = "deactivate_triggers"
	OpSetActive          Op = "set_active"
	OpSkipHour           Op = "skip_hour"
)

var (
	// ErrQueueFull is returned when the command queue cannot take more work.
	ErrQueueFull = errors.New("command queue full")
	// ErrInvalidCommand wraps every Validate failure.
	ErrInvalidCommand = errors.New("invalid command")
	// ErrUnknownEntity is returned by commands naming a dead entity.
	ErrUnknownEntity = jobs.ErrUnknownEntity
)

// Command is work submitted from outside the tick loop. It is applied at the
// start of the next tick.
type Command struct {
	Op      Op            `json:"op"`
	Job     string        `json:"job,omitempty"`
	Entity  jobs.EntityID `json:"entity,omitempty"`
	Task    jobs.TaskID   `json:"task,omitempty"`
	Trigger string        `json:"trigger,omitempty"`
	Active  bool          `json:"active,omitempty"`

	reply chan Result
}

// Result is the outcome of a command.
type Result struct {
	Entity jobs.EntityID `json:"entity,omitempty"`
	Err    error         `json:"-"`
}

// Validate checks that the command carries the fields its op needs.
func (c Command) Validate() error {
	switch c.Op {
	case OpStart:
		if c.Job == "" {
			return fmt.Errorf("%w: %s needs job", ErrInvalidCommand, c.Op)
		}
	case OpAssign:
		if c.Job == "" || c.Entity == 0 {
			return fmt.Errorf("%w: %s needs job and entity", ErrInvalidCommand, c.Op)
		}
	case OpAdvance, OpJump, OpFail, OpPause, OpUnpause, OpCancel:
		if c.Entity == 0 {
			return fmt.Errorf("%w: %s needs entity", ErrInvalidCommand, c.Op)
		}
	case OpActivateTrigger, OpDeactivateTrigger:
		if c.Trigger == "" {
			return fmt.Errorf("%w: %s needs trigger", ErrInvalidCommand, c.Op)
		}
	case OpSpawn, OpActivateTriggers, OpDeactivateTriggers, OpSetActive, OpSkipHour:
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidCommand, c.Op)
	}
	return nil
}

func (s *Simulation) apply(c Command) Result {
	switch c.Op {
	case OpStart:
		ent, err := s.catalog.StartName(c.Job)
		return Result{Entity: ent, Err: err}
	case OpAssign:
		return Result{Entity: c.Entity, Err: s.catalog.Assign(c.Entity, jobs.IdentityFromString(c.Job))}
	case OpAdvance:
		return Result{Entity: c.Entity, Err: s.engine.Advance(c.Entity)}
	case OpJump:
		return Result{Entity: c.Entity, Err: s.engine.Jump(c.Entity, c.Task)}
	case OpFail:
		return Result{Entity: c.Entity, Err: s.engine.Fail(c.Entity)}
	case OpPause:
		return Result{Entity: c.Entity, Err: s.engine.Pause(c.Entity)}
	case OpUnpause:
		return Result{Entity: c.Entity, Err: s.engine.Unpause(c.Entity)}
	case OpCancel:
		return Result{Entity: c.Entity, Err: s.engine.Cancel(c.Entity)}
	case OpSpawn:
		return Result{Entity: s.world.SpawnEmpty()}
	case OpActivateTrigger:
		return Result{Err: s.triggers.Activate(c.Trigger)}
	case OpDeactivateTrigger:
		return Result{Err: s.triggers.Deactivate(c.Trigger)}
	case OpActivateTriggers:
		s.triggers.ActivateAll()
	case OpDeactivateTriggers:
		s.triggers.DeactivateAll()
	case OpSetActive:
		s.setActive(c.Active)
	case OpSkipHour:
		s.calendar.SkipHour()
	default:
		return Result{Err: fmt.Errorf("unknown command %q", c.Op)}
	}
	return Result{}
}
