// Package trigger starts jobs when their schedules come due.
package trigger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AaronLay10/SentientJobs/internal/events"
	"github.com/AaronLay10/SentientJobs/internal/jobs"
	"github.com/AaronLay10/SentientJobs/internal/schedule"
)

// Starter instantiates jobs. *jobs.Catalog satisfies it.
type Starter interface {
	Start(id jobs.JobID) (jobs.EntityID, error)
}

// ErrUnknownTrigger is returned for trigger ids that were never added.
var ErrUnknownTrigger = errors.New("unknown trigger")

// Trigger starts Job whenever Schedule comes due while Active is set.
type Trigger struct {
	ID       string
	Job      string
	Schedule schedule.Schedule
	Active   bool

	jobID     jobs.JobID
	countdown schedule.Schedule
	spent     bool
}

// Status is a read-only view of a trigger.
type Status struct {
	ID       string `json:"id"`
	Job      string `json:"job"`
	Schedule string `json:"schedule"`
	Active   bool   `json:"active"`
	Spent    bool   `json:"spent"`
}

// Scheduler holds the triggers and evaluates them once per tick.
type Scheduler struct {
	mu       sync.Mutex
	triggers []*Trigger
	byID     map[string]*Trigger
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{byID: make(map[string]*Trigger)}
}

// Add registers t, replacing any trigger with the same id. Delay countdowns
// start from the full schedule.
func (s *Scheduler) Add(t Trigger) error {
	if t.ID == "" {
		return fmt.Errorf("trigger has no id")
	}
	if t.Job == "" {
		return fmt.Errorf("trigger %s has no job", t.ID)
	}
	if err := t.Schedule.Parse(); err != nil {
		return fmt.Errorf("trigger %s: %w", t.ID, err)
	}
	t.jobID = jobs.IdentityFromString(t.Job)
	t.countdown = t.Schedule.Clone()
	t.spent = false

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byID[t.ID]; ok {
		*old = t
		return nil
	}
	tp := &t
	s.triggers = append(s.triggers, tp)
	s.byID[t.ID] = tp
	return nil
}

// Remove drops the trigger with the given id.
func (s *Scheduler) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	for i, t := range s.triggers {
		if t.ID == id {
			s.triggers = append(s.triggers[:i], s.triggers[i+1:]...)
			break
		}
	}
	return true
}

// Activate enables a trigger. A spent delay trigger is re-armed.
func (s *Scheduler) Activate(id string) error {
	return s.setActive(id, true)
}

// Deactivate disables a trigger.
func (s *Scheduler) Deactivate(id string) error {
	return s.setActive(id, false)
}

func (s *Scheduler) setActive(id string, active bool) error {
	s.mu.Lock()
	t, ok := s.byID[id]
	if ok {
		s.apply(t, active)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTrigger, id)
	}
	emitState(id, active)
	return nil
}

// ActivateAll enables every trigger.
func (s *Scheduler) ActivateAll() { s.setAll(true) }

// DeactivateAll disables every trigger.
func (s *Scheduler) DeactivateAll() { s.setAll(false) }

func (s *Scheduler) setAll(active bool) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.triggers))
	for _, t := range s.triggers {
		s.apply(t, active)
		ids = append(ids, t.ID)
	}
	s.mu.Unlock()
	for _, id := range ids {
		emitState(id, active)
	}
}

func (s *Scheduler) apply(t *Trigger, active bool) {
	if active && !t.Active && t.spent {
		t.countdown = t.Schedule.Clone()
		t.spent = false
	}
	t.Active = active
}

func emitState(id string, active bool) {
	name := "trigger.deactivated"
	if active {
		name = "trigger.activated"
	}
	events.Emit("info", name, "", map[string]interface{}{"trigger": id})
}

// List returns every trigger in insertion order.
func (s *Scheduler) List() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Status, 0, len(s.triggers))
	for _, t := range s.triggers {
		out = append(out, Status{
			ID:       t.ID,
			Job:      t.Job,
			Schedule: t.Schedule.String(),
			Active:   t.Active,
			Spent:    t.spent,
		})
	}
	return out
}

// Evaluate checks every active trigger against the calendar and the wall
// time elapsed this tick, starting a job for each one that is due. It
// returns the number of jobs started.
func (s *Scheduler) Evaluate(cal *schedule.Calendar, dt time.Duration, starter Starter) int {
	s.mu.Lock()
	var due []*Trigger
	for _, t := range s.triggers {
		if t.Active && !t.spent && s.isDue(t, cal, dt) {
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	started := 0
	for _, t := range due {
		ent, err := starter.Start(t.jobID)
		if err != nil {
			events.Emit("warn", "trigger.error", err.Error(), map[string]interface{}{
				"trigger": t.ID,
				"job":     t.Job,
			})
			continue
		}
		started++
		events.Emit("info", "trigger.fired", "", map[string]interface{}{
			"trigger": t.ID,
			"job":     t.Job,
			"entity":  uint64(ent),
		})
	}
	return started
}

func (s *Scheduler) isDue(t *Trigger, cal *schedule.Calendar, dt time.Duration) bool {
	switch t.countdown.Kind {
	case schedule.KindInstant:
		return true
	case schedule.KindCron:
		return cal != nil && cal.NewHour() && t.countdown.IsTime(cal)
	case schedule.KindDelay:
		if cal == nil || !cal.NewHour() {
			return false
		}
		if t.countdown.TickHour() {
			t.spent = true
			return true
		}
	case schedule.KindRealDelay:
		if t.countdown.TickReal(dt) {
			t.spent = true
			return true
		}
	}
	return false
}
