package schedule

import "time"

// DefaultHourLength is the wall-clock length of one simulation hour.
const DefaultHourLength = 5 * time.Second

// Calendar is the in-simulation clock. Simulation time advances in whole
// hours; each hour lasts HourLength of wall-clock time.
type Calendar struct {
	start      time.Time
	hourLength time.Duration
	hours      int
	carry      time.Duration
	newHour    bool
	active     bool
}

// NewCalendar creates a running calendar that starts at start (truncated to
// the hour).
func NewCalendar(start time.Time, hourLength time.Duration) *Calendar {
	if hourLength <= 0 {
		hourLength = DefaultHourLength
	}
	return &Calendar{
		start:      start.UTC().Truncate(time.Hour),
		hourLength: hourLength,
		active:     true,
	}
}

// Advance moves wall-clock time forward by dt. NewHour reports true until the
// next Advance if at least one hour boundary was crossed.
func (c *Calendar) Advance(dt time.Duration) {
	c.newHour = false
	if !c.active || dt <= 0 {
		return
	}
	c.carry += dt
	for c.carry >= c.hourLength {
		c.carry -= c.hourLength
		c.hours++
		c.newHour = true
	}
}

// SkipHour forces the calendar to the next hour immediately.
func (c *Calendar) SkipHour() {
	c.hours++
	c.carry = 0
	c.newHour = true
}

// NewHour reports whether the last Advance crossed an hour boundary.
func (c *Calendar) NewHour() bool { return c.newHour }

// Now returns the current simulation time at hour resolution.
func (c *Calendar) Now() time.Time {
	return c.start.Add(time.Duration(c.hours) * time.Hour)
}

// Hour returns the hour of day, 0..23.
func (c *Calendar) Hour() int { return c.Now().Hour() }

// Hours returns the number of whole hours elapsed since the start.
func (c *Calendar) Hours() int { return c.hours }

// Pause stops the calendar from advancing.
func (c *Calendar) Pause() { c.active = false }

// Resume lets the calendar advance again.
func (c *Calendar) Resume() { c.active = true }

// Active reports whether the calendar is advancing.
func (c *Calendar) Active() bool { return c.active }
