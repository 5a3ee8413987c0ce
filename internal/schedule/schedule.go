// Package schedule holds the time predicates shared by job triggers and wait
// tasks: instant, calendar cron, in-simulation hour delays and wall-clock delays.
package schedule

import (
	"fmt"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// Kind identifies a schedule variant.
type Kind string

const (
	KindInstant   Kind = "instant"
	KindCron      Kind = "cron"
	KindDelay     Kind = "delay"
	KindRealDelay Kind = "real_delay"
)

// cronParser accepts standard 5-field expressions evaluated against the
// simulation calendar, plus descriptors like "@daily".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// Schedule is a tagged union over the four schedule kinds. Delay and
// RealDelay carry their own countdown, so a Schedule must be copied before it
// is counted down (see Clone).
type Schedule struct {
	Kind Kind `json:"kind" yaml:"kind" toml:"kind"`

	// Cron expression, KindCron only.
	Expr string `json:"cron,omitempty" yaml:"cron,omitempty" toml:"cron,omitempty"`

	// Remaining in-simulation hours, KindDelay only.
	Hours int `json:"hours,omitempty" yaml:"hours,omitempty" toml:"hours,omitempty"`

	// Remaining wall-clock seconds, KindRealDelay only.
	Seconds float64 `json:"seconds,omitempty" yaml:"seconds,omitempty" toml:"seconds,omitempty"`

	cron cronlib.Schedule
}

// Instant fires on every eligible tick.
func Instant() Schedule { return Schedule{Kind: KindInstant} }

// Cron builds and parses a calendar cron schedule.
func Cron(expr string) (Schedule, error) {
	s := Schedule{Kind: KindCron, Expr: expr}
	if err := s.Parse(); err != nil {
		return Schedule{}, err
	}
	return s, nil
}

// Delay counts down n in-simulation hours.
func Delay(hours int) Schedule { return Schedule{Kind: KindDelay, Hours: hours} }

// RealDelay counts down wall-clock seconds.
func RealDelay(seconds float64) Schedule { return Schedule{Kind: KindRealDelay, Seconds: seconds} }

// Parse validates the schedule and prepares the cron matcher. It is safe to
// call more than once.
func (s *Schedule) Parse() error {
	switch s.Kind {
	case KindInstant:
		return nil
	case KindCron:
		if s.cron != nil {
			return nil
		}
		c, err := cronParser.Parse(s.Expr)
		if err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", s.Expr, err)
		}
		s.cron = c
		return nil
	case KindDelay:
		if s.Hours < 0 {
			return fmt.Errorf("delay hours must be non-negative, got %d", s.Hours)
		}
		return nil
	case KindRealDelay:
		if s.Seconds < 0 {
			return fmt.Errorf("real delay seconds must be non-negative, got %v", s.Seconds)
		}
		return nil
	default:
		return fmt.Errorf("unknown schedule kind: %q", s.Kind)
	}
}

// Clone returns an independent copy with its own countdown.
func (s Schedule) Clone() Schedule {
	return s
}

// IsTime reports whether a cron schedule matches the calendar's current hour.
// Non-cron schedules never match.
func (s *Schedule) IsTime(cal *Calendar) bool {
	if s.Kind != KindCron || cal == nil {
		return false
	}
	if s.cron == nil {
		if err := s.Parse(); err != nil {
			return false
		}
	}
	now := cal.Now()
	return s.cron.Next(now.Add(-time.Second)).Equal(now)
}

// TickHour consumes one in-simulation hour of a Delay schedule and reports
// whether the delay had already run out.
func (s *Schedule) TickHour() bool {
	if s.Kind != KindDelay {
		return false
	}
	if s.Hours > 0 {
		s.Hours--
		return false
	}
	return true
}

// TickReal consumes dt of a RealDelay schedule and reports whether the delay
// had already run out.
func (s *Schedule) TickReal(dt time.Duration) bool {
	if s.Kind != KindRealDelay {
		return false
	}
	if s.Seconds > 0 {
		s.Seconds -= dt.Seconds()
		return false
	}
	return true
}

// String renders the schedule for descriptions and logs.
func (s Schedule) String() string {
	switch s.Kind {
	case KindInstant:
		return "instant"
	case KindCron:
		return fmt.Sprintf("cron(%s)", s.Expr)
	case KindDelay:
		return fmt.Sprintf("delay(%dh)", s.Hours)
	case KindRealDelay:
		return fmt.Sprintf("real_delay(%.2fs)", s.Seconds)
	default:
		return string(s.Kind)
	}
}
