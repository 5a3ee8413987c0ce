// Package sim runs the job engine: one goroutine owns the world and advances
// it tick by tick, everything else talks to it through commands and
// snapshots.
package sim

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/AaronLay10/SentientJobs/internal/effects"
	"github.com/AaronLay10/SentientJobs/internal/events"
	"github.com/AaronLay10/SentientJobs/internal/jobs"
	"github.com/AaronLay10/SentientJobs/internal/schedule"
	"github.com/AaronLay10/SentientJobs/internal/trigger"
	"github.com/AaronLay10/SentientJobs/internal/world"
)

// Options configures a Simulation.
type Options struct {
	Tick          time.Duration
	Active        bool
	Debug         bool
	Seed          uint64
	HourLength    time.Duration
	CalendarStart time.Time
	QueueSize     int

	// WrapHost decorates the world before the engine sees it, for example to
	// mirror attach and detach calls onto a message bus.
	WrapHost func(jobs.Host) jobs.Host

	// OnTick is called after every tick from the tick goroutine.
	OnTick func(TickStats)
}

// TickStats describes one finished tick.
type TickStats struct {
	Tick     uint64
	Duration time.Duration
	Started  int
	Jobs     int
	Entities int
}

// Snapshot is the state published after each tick for readers on other
// goroutines.
type Snapshot struct {
	Tick     uint64                 `json:"tick"`
	Time     time.Time              `json:"time"`
	Active   bool                   `json:"active"`
	Jobs     []jobs.Snapshot        `json:"jobs"`
	Entities []world.EntitySnapshot `json:"entities"`
}

// Simulation owns the world, the engine and everything that drives it.
type Simulation struct {
	opts     Options
	world    *world.World
	engine   *jobs.Engine
	catalog  *jobs.Catalog
	triggers *trigger.Scheduler
	runner   *effects.Runner
	calendar *schedule.Calendar
	rng      *rand.Rand
	commands chan Command

	active bool
	ticks  uint64

	mu       sync.RWMutex
	snapshot Snapshot
}

// New builds a simulation with an empty catalog and no triggers.
func New(opts Options) *Simulation {
	if opts.Tick <= 0 {
		opts.Tick = 100 * time.Millisecond
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.CalendarStart.IsZero() {
		opts.CalendarStart = time.Now()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	w := world.New()
	var host jobs.Host = w
	if opts.WrapHost != nil {
		host = opts.WrapHost(w)
	}
	engine := jobs.NewEngine(host)
	engine.SetDebug(opts.Debug)

	s := &Simulation{
		opts:     opts,
		world:    w,
		engine:   engine,
		catalog:  jobs.NewCatalog(engine),
		triggers: trigger.NewScheduler(),
		runner:   effects.NewRunner(),
		calendar: schedule.NewCalendar(opts.CalendarStart, opts.HourLength),
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		commands: make(chan Command, opts.QueueSize),
		active:   opts.Active,
	}
	s.publish()
	return s
}

// Catalog returns the job catalog. Register templates before Run.
func (s *Simulation) Catalog() *jobs.Catalog { return s.catalog }

// Triggers returns the trigger scheduler.
func (s *Simulation) Triggers() *trigger.Scheduler { return s.triggers }

// Runner returns the effect runner, for installing custom handlers before Run.
func (s *Simulation) Runner() *effects.Runner { return s.runner }

// World returns the world. Only the tick goroutine may touch it once Run has
// started.
func (s *Simulation) World() *world.World { return s.world }

// Engine returns the transition engine. Same ownership rule as World.
func (s *Simulation) Engine() *jobs.Engine { return s.engine }

// Calendar returns the simulation calendar. Same ownership rule as World.
func (s *Simulation) Calendar() *schedule.Calendar { return s.calendar }

// LoadJobs registers every job document found in dirs. Broken documents are
// logged and skipped.
func (s *Simulation) LoadJobs(dirs ...string) (int, error) {
	n := 0
	for _, dir := range dirs {
		tpls, err := jobs.LoadDir(dir)
		if err != nil {
			log.Printf("Job load errors in %s: %v", dir, err)
		}
		if tpls == nil && err != nil {
			return n, err
		}
		for _, tpl := range tpls {
			if err := s.catalog.Register(tpl); err != nil {
				log.Printf("Skipping job %s: %v", tpl.Label, err)
				continue
			}
			n++
		}
	}
	return n, nil
}

// LoadTriggers adds every trigger in the given files.
func (s *Simulation) LoadTriggers(paths ...string) (int, error) {
	n := 0
	for _, path := range paths {
		trs, err := trigger.LoadFile(path)
		if err != nil {
			return n, err
		}
		for _, t := range trs {
			if _, ok := s.catalog.LookupName(t.Job); !ok {
				log.Printf("Trigger %s references unknown job %s", t.ID, t.Job)
			}
			if err := s.triggers.Add(t); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

// Submit queues a command without waiting for it to run.
func (s *Simulation) Submit(c Command) error {
	if err := c.Validate(); err != nil {
		return err
	}
	select {
	case s.commands <- c:
		return nil
	default:
		return ErrQueueFull
	}
}

// Do queues a command and waits until the tick loop has applied it.
func (s *Simulation) Do(ctx context.Context, c Command) (Result, error) {
	if err := c.Validate(); err != nil {
		return Result{}, err
	}
	c.reply = make(chan Result, 1)
	select {
	case s.commands <- c:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	select {
	case r := <-c.reply:
		return r, r.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Tick advances the simulation by dt: calendar, queued commands, triggers,
// then the effect phases. It must only be called from one goroutine.
func (s *Simulation) Tick(dt time.Duration) TickStats {
	began := time.Now()
	s.ticks++

	s.calendar.Advance(dt)
	s.drain()
	if s.calendar.NewHour() {
		events.Emit("debug", "engine.hour", "", map[string]interface{}{
			"time": s.calendar.Now().Format(time.RFC3339),
		})
	}

	started := 0
	if s.active {
		started = s.triggers.Evaluate(s.calendar, dt, s.catalog)
	}

	s.runner.Run(&effects.Env{
		World:    s.world,
		Engine:   s.engine,
		Catalog:  s.catalog,
		Calendar: s.calendar,
		Rand:     s.rng,
		DT:       dt,
	})

	snap := s.publish()
	stats := TickStats{
		Tick:     s.ticks,
		Duration: time.Since(began),
		Started:  started,
		Jobs:     len(snap.Jobs),
		Entities: len(snap.Entities),
	}
	if s.opts.OnTick != nil {
		s.opts.OnTick(stats)
	}
	return stats
}

func (s *Simulation) drain() {
	for {
		select {
		case c := <-s.commands:
			r := s.apply(c)
			if r.Err != nil {
				events.Emit("warn", "operator.rejected", r.Err.Error(), map[string]interface{}{
					"op":     string(c.Op),
					"entity": uint64(c.Entity),
				})
			} else {
				events.Emit("info", "operator.command", "", map[string]interface{}{
					"op":     string(c.Op),
					"entity": uint64(r.Entity),
				})
			}
			if c.reply != nil {
				c.reply <- r
			}
		default:
			return
		}
	}
}

func (s *Simulation) setActive(active bool) {
	if s.active == active {
		return
	}
	s.active = active
	name := "engine.deactivated"
	if active {
		name = "engine.activated"
	}
	events.Emit("info", name, "", nil)
}

func (s *Simulation) publish() Snapshot {
	snap := Snapshot{
		Tick:     s.ticks,
		Time:     s.calendar.Now(),
		Active:   s.active,
		Jobs:     s.world.Jobs(),
		Entities: s.world.Snapshot(),
	}
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
	return snap
}

// Snapshot returns the state published by the last tick.
func (s *Simulation) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Run ticks at the configured interval until ctx is cancelled.
func (s *Simulation) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.Tick)
	defer ticker.Stop()

	events.Emit("info", "engine.started", "", map[string]interface{}{
		"tick_ms":   s.opts.Tick.Milliseconds(),
		"templates": s.catalog.Len(),
		"triggers":  len(s.triggers.List()),
	})
	log.Printf("Engine running (tick %s, %d templates)", s.opts.Tick, s.catalog.Len())

	for {
		select {
		case <-ctx.Done():
			events.Emit("info", "engine.stopped", "", map[string]interface{}{
				"ticks": s.ticks,
			})
			return nil
		case <-ticker.C:
			s.Tick(s.opts.Tick)
		}
	}
}

func (s *Simulation) String() string {
	return fmt.Sprintf("sim(tick=%d, entities=%d)", s.ticks, s.world.Len())
}
